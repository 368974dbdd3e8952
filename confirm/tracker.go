// Package confirm polls the ledger until a submitted transaction reaches a terminal status.
package confirm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smartcontractkit/stacks-batcher/ledger"
	"github.com/smartcontractkit/stacks-batcher/pkg/logger"
	"github.com/smartcontractkit/stacks-batcher/schedule"
)

// Status is the terminal state of a confirmation.
type Status string

const (
	StatusSuccess Status = "success"
	StatusAborted Status = "aborted"
	// StatusTimeout means the outcome is unknown and needs manual follow-up. It is neither a
	// success nor a failure.
	StatusTimeout Status = "timeout"
)

// Record is the result of polling one transaction.
type Record struct {
	Status Status `json:"status" yaml:"status"`
	// Reason is the ledger status that aborted the transaction.
	Reason      string `json:"reason,omitempty" yaml:"reason,omitempty"`
	Result      string `json:"result,omitempty" yaml:"result,omitempty"`
	Attempts    int    `json:"attempts" yaml:"attempts"`
	BlockHeight uint64 `json:"blockHeight,omitempty" yaml:"blockHeight,omitempty"`
}

// Tracker polls transaction status with a fixed schedule.
type Tracker struct {
	client ledger.Client
	policy schedule.Policy
	lggr   logger.Logger

	// sleep is replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New returns a tracker. A zero policy falls back to schedule.DefaultPoll.
func New(client ledger.Client, policy schedule.Policy, lggr logger.Logger) (*Tracker, error) {
	if client == nil {
		return nil, errors.New("ledger client is required")
	}
	if policy == (schedule.Policy{}) {
		policy = schedule.DefaultPoll()
	}
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid poll policy: %w", err)
	}
	if lggr == nil {
		lggr = logger.Nop()
	}

	return &Tracker{client: client, policy: policy, lggr: lggr.Named("confirm"), sleep: schedule.Sleep}, nil
}

// Policy returns the polling schedule.
func (t *Tracker) Policy() schedule.Policy {
	return t.policy
}

// Poll queries the status of txid until it is terminal, making at most MaxAttempts queries
// with the policy's wait between them and none after the last. Pending, unknown and transient
// query failures keep polling. Cancellation returns a timeout record with the context error.
func (t *Tracker) Poll(ctx context.Context, txid string) (Record, error) {
	lggr := t.lggr.With("txid", txid)

	var attempts int
	for n := range t.policy.MaxAttempts {
		if n > 0 {
			if err := t.sleep(ctx, t.policy.Delay(n-1)); err != nil {
				return Record{Status: StatusTimeout, Attempts: attempts}, err
			}
		}

		attempts++
		info, err := t.client.Status(ctx, txid)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Record{Status: StatusTimeout, Attempts: attempts}, ctxErr
			}
			lggr.Debugw("Status query failed", "attempt", attempts, "error", err)

			continue
		}

		if rec, done := terminal(info); done {
			rec.Attempts = attempts
			lggr.Debugw("Transaction confirmed", "status", rec.Status, "reason", rec.Reason, "attempts", attempts)

			return rec, nil
		}
		lggr.Debugw("Transaction pending", "status", info.Status, "attempt", attempts)
	}

	lggr.Warnw("Transaction not confirmed", "attempts", attempts)

	return Record{Status: StatusTimeout, Attempts: attempts}, nil
}

func terminal(info ledger.TxInfo) (Record, bool) {
	switch {
	case info.Status == ledger.StatusSuccess:
		return Record{Status: StatusSuccess, Result: info.Result, BlockHeight: info.BlockHeight}, true
	case info.Status.Terminal():
		return Record{
			Status:      StatusAborted,
			Reason:      string(info.Status),
			Result:      info.Result,
			BlockHeight: info.BlockHeight,
		}, true
	default:
		return Record{}, false
	}
}
