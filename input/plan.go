package input

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/smartcontractkit/stacks-batcher/catalog"
)

// Plan is an authored list of operations, stored as JSON or YAML.
type Plan struct {
	Operations []PlanOperation `json:"operations" yaml:"operations" toml:"operations"`
}

// PlanOperation is one operation of a plan.
type PlanOperation struct {
	Kind  catalog.Kind `json:"kind" yaml:"kind" toml:"kind"`
	Label string       `json:"label,omitempty" yaml:"label,omitempty" toml:"label,omitempty"`
	Args  []PlanArg    `json:"args" yaml:"args" toml:"args"`
}

// PlanArg is one argument of a plan operation. Type may be omitted: integers are read as uint,
// booleans as bool, Stacks addresses as principal and other text as string.
type PlanArg struct {
	Name  string          `json:"name" yaml:"name" toml:"name"`
	Type  catalog.ArgType `json:"type,omitempty" yaml:"type,omitempty" toml:"type,omitempty"`
	Value any             `json:"value" yaml:"value" toml:"value"`
}

// ReadPlan reads the plan at path, as YAML when the extension is .yaml or .yml, as TOML for
// .toml and as JSON otherwise. Unlike CSV input a plan is authored, so any malformed operation fails the read.
func ReadPlan(path string) ([]catalog.Request, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan %s: %w", path, err)
	}

	var plan Plan
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &plan)
	case ".toml":
		err = toml.Unmarshal(b, &plan)
	default:
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.UseNumber()
		err = dec.Decode(&plan)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal plan %s: %w", path, err)
	}

	return plan.Requests(filepath.Base(path))
}

// Requests converts the plan to requests, in order.
func (p Plan) Requests(source string) ([]catalog.Request, error) {
	if len(p.Operations) == 0 {
		return nil, errors.New("plan has no operations")
	}

	reqs := make([]catalog.Request, 0, len(p.Operations))
	var errs []error
	for i, op := range p.Operations {
		req := catalog.Request{
			Kind:   op.Kind,
			Label:  op.Label,
			Source: fmt.Sprintf("%s#%d", source, i+1),
		}
		for _, a := range op.Args {
			t := a.Type
			if t == "" {
				t = inferType(a.Value)
			}
			v, err := catalog.ParseValue(t, a.Value)
			if err != nil {
				errs = append(errs, fmt.Errorf("operation %d (%s) argument %s: %w", i+1, op.Kind, a.Name, err))
				continue
			}
			req.Args = append(req.Args, catalog.A(a.Name, v))
		}
		reqs = append(reqs, req)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	return reqs, nil
}

func inferType(v any) catalog.ArgType {
	switch x := v.(type) {
	case bool:
		return catalog.TypeBool
	case int, int64, uint64, float64, json.Number:
		return catalog.TypeUint
	case string:
		if looksLikePrincipal(x) {
			return catalog.TypePrincipal
		}

		return catalog.TypeString
	default:
		return catalog.TypeString
	}
}

// looksLikePrincipal matches standard (SP.., ST.., SM.., SN..) addresses and contract ids.
func looksLikePrincipal(s string) bool {
	if len(s) < 3 || strings.ContainsAny(s, " \t\n/:") {
		return false
	}
	switch s[:2] {
	case "SP", "ST", "SM", "SN":
		return true
	default:
		return false
	}
}
