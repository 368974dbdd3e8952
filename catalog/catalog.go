package catalog

import (
	"errors"
	"fmt"
	"slices"

	"github.com/Masterminds/semver/v3"
)

// ErrUnknownKind is returned when an operation kind is not registered in the catalog.
var ErrUnknownKind = errors.New("unknown operation kind")

// TxSender is the call argument placeholder bound to the signing account at build time.
const TxSender = "tx-sender"

// Kind identifies a supported operation.
type Kind string

const (
	KindMint                Kind = "mint"
	KindCreateListing       Kind = "create-listing"
	KindPurchaseListing     Kind = "purchase-listing"
	KindFeatureListing      Kind = "feature-listing"
	KindTransfer            Kind = "transfer"
	KindCreateOffer         Kind = "create-offer"
	KindAcceptOffer         Kind = "accept-offer"
	KindCancelOffer         Kind = "cancel-offer"
	KindCreateAuction       Kind = "create-auction"
	KindRequestVerification Kind = "request-verification"
	KindVerifyCollection    Kind = "verify-collection"
	KindCreateWhitelist     Kind = "create-whitelist"
	KindCreateBundle        Kind = "create-bundle"
	KindSetPlatformFee      Kind = "set-platform-fee"
	KindSetVerificationFee  Kind = "set-verification-fee"
)

// Definition is the versioned metadata of a catalog entry.
type Definition struct {
	ID          string          `json:"id"`
	Version     *semver.Version `json:"version"`
	Description string          `json:"description"`
}

// ArgSpec describes one argument of an operation.
type ArgSpec struct {
	Name string
	Type ArgType
	// Positive marks price-bearing amounts which must be strictly greater than zero.
	Positive bool
}

// Entry describes how an operation kind maps onto a contract call.
type Entry struct {
	Def  Definition
	Kind Kind
	// Contract is the contract name under the configured deployer address. It is empty when the
	// target contract is supplied by the request through Target.
	Contract string
	Function string
	// Args are the request arguments in their expected order.
	Args []ArgSpec
	// Target names the argument holding a fully qualified contract identifier (ADDR.name) that
	// the call is made on. The target argument is not passed to the call.
	Target string
	// Call lists the call arguments in order. Names refer to Args or to TxSender. When empty, all
	// Args except Target are passed in order.
	Call []string
}

// CallArgs returns the ordered names of the arguments passed to the contract function.
func (e Entry) CallArgs() []string {
	if len(e.Call) > 0 {
		return e.Call
	}

	names := make([]string, 0, len(e.Args))
	for _, a := range e.Args {
		if a.Name != e.Target {
			names = append(names, a.Name)
		}
	}

	return names
}

// Spec returns the argument spec with the given name.
func (e Entry) Spec(name string) (ArgSpec, bool) {
	for _, a := range e.Args {
		if a.Name == name {
			return a, true
		}
	}

	return ArgSpec{}, false
}

func (e Entry) validate() error {
	if e.Kind == "" {
		return errors.New("kind is required")
	}
	if e.Function == "" {
		return errors.New("function is required")
	}
	if e.Def.Version == nil {
		return errors.New("version is required")
	}
	if (e.Contract == "") == (e.Target == "") {
		return errors.New("exactly one of contract or target is required")
	}

	seen := make(map[string]bool, len(e.Args))
	for _, a := range e.Args {
		if !a.Type.Valid() {
			return fmt.Errorf("argument %s: invalid type %q", a.Name, a.Type)
		}
		if a.Positive && a.Type != TypeUint {
			return fmt.Errorf("argument %s: only uint arguments can be positive", a.Name)
		}
		if seen[a.Name] {
			return fmt.Errorf("argument %s: duplicated", a.Name)
		}
		seen[a.Name] = true
	}

	if e.Target != "" {
		spec, ok := e.Spec(e.Target)
		if !ok || spec.Type != TypePrincipal {
			return fmt.Errorf("target %s must be a principal argument", e.Target)
		}
	}

	for _, name := range e.Call {
		if name != TxSender && !seen[name] {
			return fmt.Errorf("call argument %s is not declared", name)
		}
	}

	return nil
}

// Catalog enumerates the supported operations.
type Catalog struct {
	entries map[Kind]Entry
	order   []Kind
}

// New creates a catalog from entries. Entries are validated and kinds must be unique.
func New(entries ...Entry) (*Catalog, error) {
	c := &Catalog{entries: make(map[Kind]Entry, len(entries))}
	for _, e := range entries {
		if err := e.validate(); err != nil {
			return nil, fmt.Errorf("catalog entry %q: %w", e.Kind, err)
		}
		if _, ok := c.entries[e.Kind]; ok {
			return nil, fmt.Errorf("catalog entry %q: registered twice", e.Kind)
		}
		c.entries[e.Kind] = e
		c.order = append(c.order, e.Kind)
	}

	return c, nil
}

// Lookup returns the entry for kind.
func (c *Catalog) Lookup(kind Kind) (Entry, error) {
	e, ok := c.entries[kind]
	if !ok {
		return Entry{}, fmt.Errorf("%q: %w", kind, ErrUnknownKind)
	}

	return e, nil
}

// Entries returns all entries in registration order.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, c.entries[k])
	}

	return out
}

// Kinds returns the registered kinds in registration order.
func (c *Catalog) Kinds() []Kind {
	return slices.Clone(c.order)
}
