package txbuilder

import (
	"slices"

	"github.com/smartcontractkit/stacks-batcher/catalog"
)

// PostConditionMode controls how the ledger treats asset transfers not covered by explicit
// post-conditions.
type PostConditionMode string

const (
	PostConditionAllow PostConditionMode = "allow"
	PostConditionDeny  PostConditionMode = "deny"
)

// Valid reports whether m is a known mode.
func (m PostConditionMode) Valid() bool {
	return m == PostConditionAllow || m == PostConditionDeny
}

// CallArg is one argument of the contract function call.
type CallArg struct {
	Name  string        `json:"name"`
	Value catalog.Value `json:"value"`
}

// Intent is a fully formed call descriptor ready for signing once a nonce is assigned.
type Intent struct {
	Kind              catalog.Kind      `json:"kind"`
	ContractAddress   string            `json:"contractAddress"`
	ContractName      string            `json:"contractName"`
	Function          string            `json:"function"`
	Args              []CallArg         `json:"args"`
	Nonce             uint64            `json:"nonce"`
	Fee               uint64            `json:"fee"`
	PostConditionMode PostConditionMode `json:"postConditionMode"`
}

// ContractID returns the fully qualified contract identifier ADDR.name.
func (i Intent) ContractID() string {
	return i.ContractAddress + "." + i.ContractName
}

// WithNonce returns a copy of the intent carrying nonce. The receiver is left untouched, so an
// intent is never reused for a second submission.
func (i Intent) WithNonce(nonce uint64) Intent {
	i.Args = slices.Clone(i.Args)
	i.Nonce = nonce

	return i
}
