package batch

import (
	"time"

	"github.com/smartcontractkit/stacks-batcher/broadcast"
	"github.com/smartcontractkit/stacks-batcher/catalog"
	"github.com/smartcontractkit/stacks-batcher/confirm"
)

// Category buckets an entry for reporting.
type Category string

const (
	CategorySucceeded Category = "succeeded"
	CategoryFailed    Category = "failed"
	CategoryTimedOut  Category = "timed-out"
	CategorySkipped   Category = "skipped"
)

// Entry is the result of one request. Entries keep the index and order of the input.
type Entry struct {
	Index   int             `json:"index" yaml:"index"`
	Request catalog.Request `json:"request" yaml:"request"`
	// Nonce is the nonce the intent was submitted with, nil when no nonce was assigned.
	Nonce *uint64 `json:"nonce,omitempty" yaml:"nonce,omitempty"`
	// Fee is the fee in µSTX of a submitted intent.
	Fee          uint64            `json:"fee,omitempty" yaml:"fee,omitempty"`
	Outcome      broadcast.Outcome `json:"outcome" yaml:"outcome"`
	Confirmation *confirm.Record   `json:"confirmation,omitempty" yaml:"confirmation,omitempty"`
}

// Category returns the reporting bucket of the entry. A confirmation timeout is neither a
// success nor a failure.
func (e Entry) Category() Category {
	switch {
	case e.Outcome.Status == broadcast.StatusSkipped:
		return CategorySkipped
	case e.Outcome.IsFailed():
		return CategoryFailed
	case e.Confirmation == nil:
		return CategorySucceeded
	case e.Confirmation.Status == confirm.StatusAborted:
		return CategoryFailed
	case e.Confirmation.Status == confirm.StatusTimeout:
		return CategoryTimedOut
	default:
		return CategorySucceeded
	}
}

// Result is the ordered outcome of a batch run.
type Result struct {
	RunID     string  `json:"runId" yaml:"runId"`
	Account   string  `json:"account" yaml:"account"`
	BaseNonce uint64  `json:"baseNonce" yaml:"baseNonce"`
	Entries   []Entry `json:"entries" yaml:"entries"`
	// Cancelled is set when the run stopped early on cancellation. Entries then holds the
	// prefix processed so far.
	Cancelled  bool      `json:"cancelled" yaml:"cancelled"`
	StartedAt  time.Time `json:"startedAt" yaml:"startedAt"`
	FinishedAt time.Time `json:"finishedAt" yaml:"finishedAt"`
}
