package catalog

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ArgType is the type of an operation argument.
type ArgType string

const (
	TypeUint      ArgType = "uint"
	TypePrincipal ArgType = "principal"
	TypeString    ArgType = "string"
	TypeBool      ArgType = "bool"
)

// Valid reports whether t is one of the known argument types.
func (t ArgType) Valid() bool {
	switch t {
	case TypeUint, TypePrincipal, TypeString, TypeBool:
		return true
	default:
		return false
	}
}

// Value is a typed argument value. Only the field matching Type is meaningful.
//
// Integers are kept signed so that malformed input (e.g. a negative price read from a CSV file)
// survives until validation in the transaction builder, which rejects it with a field-level
// error instead of failing at parse time.
type Value struct {
	Type ArgType `json:"type" yaml:"type"`
	Int  int64   `json:"int,omitempty" yaml:"int,omitempty"`
	Text string  `json:"text,omitempty" yaml:"text,omitempty"`
	Bool bool    `json:"bool,omitempty" yaml:"bool,omitempty"`
}

// Uint returns an integer value.
func Uint(v int64) Value { return Value{Type: TypeUint, Int: v} }

// Principal returns an address or contract identifier value.
func Principal(v string) Value { return Value{Type: TypePrincipal, Text: v} }

// String returns an ASCII string value.
func String(v string) Value { return Value{Type: TypeString, Text: v} }

// Bool returns a boolean value.
func Bool(v bool) Value { return Value{Type: TypeBool, Bool: v} }

// String renders the value the way it appears in logs and reports.
func (v Value) String() string {
	switch v.Type {
	case TypeUint:
		return "u" + strconv.FormatInt(v.Int, 10)
	case TypePrincipal:
		return "'" + v.Text
	case TypeString:
		return strconv.Quote(v.Text)
	case TypeBool:
		return strconv.FormatBool(v.Bool)
	default:
		return fmt.Sprintf("<%s>", v.Type)
	}
}

// ParseValue converts a raw plan value into a Value of type t. Numbers may be given either as
// JSON numbers or as decimal strings.
func ParseValue(t ArgType, raw any) (Value, error) {
	switch t {
	case TypeUint:
		switch x := raw.(type) {
		case int:
			return Uint(int64(x)), nil
		case int64:
			return Uint(x), nil
		case uint64:
			return Uint(int64(x)), nil //nolint:gosec // plan values are far below MaxInt64
		case float64:
			if x != float64(int64(x)) {
				return Value{}, fmt.Errorf("%v is not an integer", x)
			}

			return Uint(int64(x)), nil
		case json.Number:
			n, err := x.Int64()
			if err != nil {
				return Value{}, err
			}

			return Uint(n), nil
		case string:
			n, err := strconv.ParseInt(x, 10, 64)
			if err != nil {
				return Value{}, fmt.Errorf("%q is not an integer", x)
			}

			return Uint(n), nil
		}
	case TypePrincipal, TypeString:
		if s, ok := raw.(string); ok {
			return Value{Type: t, Text: s}, nil
		}
	case TypeBool:
		switch x := raw.(type) {
		case bool:
			return Bool(x), nil
		case string:
			b, err := strconv.ParseBool(x)
			if err != nil {
				return Value{}, err
			}

			return Bool(b), nil
		}
	default:
		return Value{}, fmt.Errorf("unknown argument type %q", t)
	}

	return Value{}, fmt.Errorf("value %v cannot be used as %s", raw, t)
}
