// Package txbuilder turns operation requests into contract call intents.
//
// Validation is purely local: a request that does not match its catalog entry fails with a
// *ValidationError before any nonce is allocated or any ledger call is made.
package txbuilder

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/smartcontractkit/stacks-batcher/catalog"
)

// DefaultFee is the fee in µSTX attached to each call when none is configured.
const DefaultFee uint64 = 50_000

// ValidationError reports a request that does not match its catalog entry.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidationError reports whether err is or wraps a *ValidationError.
func IsValidationError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

// Config holds the values applied to every intent.
type Config struct {
	// ContractAddress is the deployer address owning the catalog contracts.
	ContractAddress string
	// Sender is the signing account, bound to catalog.TxSender call arguments.
	Sender            string
	Fee               uint64
	PostConditionMode PostConditionMode
}

// Builder validates requests against a catalog and produces intents.
type Builder struct {
	catalog *catalog.Catalog
	cfg     Config
}

// New returns a Builder. Fee defaults to DefaultFee and the post-condition mode to allow.
func New(c *catalog.Catalog, cfg Config) (*Builder, error) {
	if c == nil {
		return nil, errors.New("catalog is required")
	}
	if strings.TrimSpace(cfg.ContractAddress) == "" {
		return nil, errors.New("contract address is required")
	}
	if strings.TrimSpace(cfg.Sender) == "" {
		return nil, errors.New("sender is required")
	}
	if cfg.Fee == 0 {
		cfg.Fee = DefaultFee
	}
	if cfg.PostConditionMode == "" {
		cfg.PostConditionMode = PostConditionAllow
	}
	if !cfg.PostConditionMode.Valid() {
		return nil, fmt.Errorf("invalid post-condition mode %q", cfg.PostConditionMode)
	}

	return &Builder{catalog: c, cfg: cfg}, nil
}

// Build validates req and returns its intent with a zero nonce.
func (b *Builder) Build(req catalog.Request) (Intent, error) {
	entry, err := b.catalog.Lookup(req.Kind)
	if err != nil {
		return Intent{}, &ValidationError{Field: "kind", Reason: err.Error()}
	}

	if len(req.Args) != len(entry.Args) {
		return Intent{}, &ValidationError{
			Field:  "args",
			Reason: fmt.Sprintf("%s expects %d arguments, got %d", entry.Kind, len(entry.Args), len(req.Args)),
		}
	}

	values := make(map[string]catalog.Value, len(req.Args))
	for i, spec := range entry.Args {
		arg := req.Args[i]
		if arg.Name != spec.Name {
			return Intent{}, &ValidationError{
				Field:  spec.Name,
				Reason: fmt.Sprintf("expected argument %d to be %s, got %s", i+1, spec.Name, arg.Name),
			}
		}
		if err := checkArg(spec, arg.Value, spec.Name == entry.Target); err != nil {
			return Intent{}, err
		}
		values[spec.Name] = arg.Value
	}

	intent := Intent{
		Kind:              entry.Kind,
		ContractAddress:   b.cfg.ContractAddress,
		ContractName:      entry.Contract,
		Function:          entry.Function,
		Fee:               b.cfg.Fee,
		PostConditionMode: b.cfg.PostConditionMode,
	}
	if entry.Target != "" {
		intent.ContractAddress, intent.ContractName, _ = strings.Cut(values[entry.Target].Text, ".")
	}

	for _, name := range entry.CallArgs() {
		v := values[name]
		if name == catalog.TxSender {
			v = catalog.Principal(b.cfg.Sender)
		}
		intent.Args = append(intent.Args, CallArg{Name: name, Value: v})
	}

	return intent, nil
}

func checkArg(spec catalog.ArgSpec, v catalog.Value, target bool) error {
	if v.Type != spec.Type {
		return &ValidationError{Field: spec.Name, Reason: fmt.Sprintf("expected %s, got %s", spec.Type, v.Type)}
	}

	switch spec.Type {
	case catalog.TypeUint:
		if v.Int < 0 {
			return &ValidationError{Field: spec.Name, Reason: "must be a non-negative integer"}
		}
		if spec.Positive && v.Int == 0 {
			return &ValidationError{Field: spec.Name, Reason: "must be greater than zero"}
		}
	case catalog.TypePrincipal:
		if v.Text == "" {
			return &ValidationError{Field: spec.Name, Reason: "must not be empty"}
		}
		if strings.IndexFunc(v.Text, unicode.IsSpace) >= 0 {
			return &ValidationError{Field: spec.Name, Reason: "must not contain whitespace"}
		}
		if target {
			addr, name, ok := strings.Cut(v.Text, ".")
			if !ok || addr == "" || name == "" || strings.Contains(name, ".") {
				return &ValidationError{Field: spec.Name, Reason: "must be a contract identifier ADDR.name"}
			}
		}
	case catalog.TypeString, catalog.TypeBool:
	}

	return nil
}
