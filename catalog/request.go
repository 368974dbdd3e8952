package catalog

import (
	"fmt"
	"slices"
	"strings"
)

// Arg is a named argument of a Request.
type Arg struct {
	Name  string `json:"name" yaml:"name"`
	Value Value  `json:"value" yaml:"value"`
}

// A is a shorthand constructor for Arg.
func A(name string, v Value) Arg { return Arg{Name: name, Value: v} }

// Request is one requested operation of a batch. Requests are values; the core never modifies
// the Args slice of a request it receives.
type Request struct {
	Kind Kind  `json:"kind" yaml:"kind"`
	Args []Arg `json:"args" yaml:"args"`
	// Label is a human readable description used in logs and reports.
	Label string `json:"label,omitempty" yaml:"label,omitempty"`
	// Source locates the request in its input, e.g. "listings.csv:3".
	Source string `json:"source,omitempty" yaml:"source,omitempty"`
}

// NewRequest returns a Request for kind with args in order.
func NewRequest(kind Kind, args ...Arg) Request {
	return Request{Kind: kind, Args: args}
}

// WithLabel returns a copy of r with the label set.
func (r Request) WithLabel(label string) Request {
	out := r.Clone()
	out.Label = label

	return out
}

// Arg returns the value of the named argument.
func (r Request) Arg(name string) (Value, bool) {
	for _, a := range r.Args {
		if a.Name == name {
			return a.Value, true
		}
	}

	return Value{}, false
}

// Clone returns a deep copy of r.
func (r Request) Clone() Request {
	r.Args = slices.Clone(r.Args)
	return r
}

// String renders the request as "kind(name=value, ...)".
func (r Request) String() string {
	parts := make([]string, 0, len(r.Args))
	for _, a := range r.Args {
		parts = append(parts, a.Name+"="+a.Value.String())
	}

	return fmt.Sprintf("%s(%s)", r.Kind, strings.Join(parts, ", "))
}
