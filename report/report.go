// Package report aggregates batch results into persisted reports.
package report

import (
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/smartcontractkit/stacks-batcher/batch"
	"github.com/smartcontractkit/stacks-batcher/broadcast"
)

// microPerSTX is the exponent of µSTX relative to STX.
const microPerSTX = -6

// Counts are the aggregate outcome counts of a batch.
type Counts struct {
	Total     int `json:"total" yaml:"total"`
	Succeeded int `json:"succeeded" yaml:"succeeded"`
	Failed    int `json:"failed" yaml:"failed"`
	TimedOut  int `json:"timedOut" yaml:"timedOut"`
	Skipped   int `json:"skipped" yaml:"skipped"`
}

// Report is the persisted summary of a batch run.
type Report struct {
	ID        string    `json:"id" yaml:"id"`
	RunID     string    `json:"runId" yaml:"runId"`
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
	Network   string    `json:"network,omitempty" yaml:"network,omitempty"`
	Account   string    `json:"account" yaml:"account"`
	BaseNonce uint64    `json:"baseNonce" yaml:"baseNonce"`
	Cancelled bool      `json:"cancelled" yaml:"cancelled"`
	Counts    Counts    `json:"counts" yaml:"counts"`
	// FeesSTX is the total fee of the submitted transactions, in STX.
	FeesSTX decimal.Decimal `json:"feesStx" yaml:"feesStx"`
	// Failures counts failed entries by failure kind. Aborted confirmations are counted under
	// "aborted".
	Failures map[string]int `json:"failures,omitempty" yaml:"failures,omitempty"`
	Entries  []batch.Entry  `json:"entries" yaml:"entries"`
}

// Summarize aggregates res. Two calls on the same result differ only in ID and CreatedAt.
func Summarize(res batch.Result) Report {
	rep := Report{
		ID:        uuid.New().String(),
		RunID:     res.RunID,
		CreatedAt: time.Now().UTC(),
		Account:   res.Account,
		BaseNonce: res.BaseNonce,
		Cancelled: res.Cancelled,
		Entries:   res.Entries,
	}

	fees := new(big.Int)
	for _, e := range res.Entries {
		rep.Counts.Total++
		if e.Outcome.Status == broadcast.StatusSubmitted {
			fees.Add(fees, new(big.Int).SetUint64(e.Fee))
		}

		switch e.Category() {
		case batch.CategorySucceeded:
			rep.Counts.Succeeded++
		case batch.CategoryFailed:
			rep.Counts.Failed++
			rep.addFailure(e)
		case batch.CategoryTimedOut:
			rep.Counts.TimedOut++
		case batch.CategorySkipped:
			rep.Counts.Skipped++
		}
	}
	rep.FeesSTX = decimal.NewFromBigInt(fees, microPerSTX)

	return rep
}

func (r *Report) addFailure(e batch.Entry) {
	if r.Failures == nil {
		r.Failures = map[string]int{}
	}

	key := string(e.Outcome.Kind)
	if e.Outcome.Status != broadcast.StatusFailed {
		key = "aborted"
	}
	r.Failures[key]++
}

// Complete reports whether every entry succeeded.
func (r Report) Complete() bool {
	return !r.Cancelled && r.Counts.Succeeded == r.Counts.Total
}
