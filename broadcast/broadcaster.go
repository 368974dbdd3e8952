// Package broadcast signs and submits intents and classifies every failure into one kind.
package broadcast

import (
	"context"
	"errors"
	"fmt"

	"github.com/avast/retry-go/v4"

	"github.com/smartcontractkit/stacks-batcher/ledger"
	"github.com/smartcontractkit/stacks-batcher/pkg/logger"
	"github.com/smartcontractkit/stacks-batcher/schedule"
	"github.com/smartcontractkit/stacks-batcher/signer"
	"github.com/smartcontractkit/stacks-batcher/txbuilder"
)

// Broadcaster submits intents to the ledger. Transient errors are retried with the injected
// policy; ledger rejections are not.
type Broadcaster struct {
	client ledger.Client
	signer signer.Signer
	policy schedule.Policy
	lggr   logger.Logger
}

// New returns a broadcaster. A zero policy falls back to schedule.DefaultRetry.
func New(client ledger.Client, s signer.Signer, policy schedule.Policy, lggr logger.Logger) (*Broadcaster, error) {
	if client == nil {
		return nil, errors.New("ledger client is required")
	}
	if s == nil {
		return nil, errors.New("signer is required")
	}
	if policy == (schedule.Policy{}) {
		policy = schedule.DefaultRetry()
	}
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retry policy: %w", err)
	}
	if lggr == nil {
		lggr = logger.Nop()
	}

	return &Broadcaster{client: client, signer: s, policy: policy, lggr: lggr.Named("broadcast")}, nil
}

// Submit signs and submits intent and returns its outcome. A duplicate submission of the
// same signed payload counts as submitted, as does a nonce conflict after a transient failure
// when the ledger already knows the payload's txid.
func (b *Broadcaster) Submit(ctx context.Context, intent txbuilder.Intent) Outcome {
	payload, err := b.signer.Sign(ctx, intent)
	if err != nil {
		return Failed(KindSigningError, err.Error(), 0)
	}

	lggr := b.lggr.With("kind", intent.Kind, "nonce", intent.Nonce, "txid", payload.TxID)

	attempts := 0
	// set once an attempt failed in a way that may still have reached the ledger
	maybeAccepted := false
	txid, err := retry.DoWithData(func() (string, error) {
		attempts++

		txid, serr := b.client.Submit(ctx, payload)
		if serr == nil {
			return txid, nil
		}
		if rej, ok := ledger.AsRejection(serr); ok && rej.Category == ledger.CategoryDuplicate {
			lggr.Infow("Transaction already in mempool", "reason", rej.Reason)
			return payload.TxID, nil
		}
		if ledger.IsTransient(serr) {
			maybeAccepted = true
			return "", serr
		}
		if maybeAccepted && Classify(serr) == KindNonceConflict && b.known(ctx, payload.TxID) {
			lggr.Infow("Transaction accepted by an earlier attempt", "error", serr)
			return payload.TxID, nil
		}

		return "", retry.Unrecoverable(serr)
	}, append(b.policy.RetryOptions(ctx),
		retry.OnRetry(func(n uint, err error) {
			lggr.Warnw("Submission failed, retrying", "attempt", n+1, "error", err)
		}),
	)...)
	if err != nil {
		out := Failed(Classify(err), err.Error(), attempts)
		lggr.Warnw("Submission failed", "failureKind", out.Kind, "attempts", attempts, "error", err)

		return out
	}

	lggr.Debugw("Submitted transaction", "attempts", attempts)

	return Submitted(txid, attempts)
}

// known reports whether the ledger holds txid.
func (b *Broadcaster) known(ctx context.Context, txid string) bool {
	_, err := b.client.Status(ctx, txid)
	if err != nil && !errors.Is(err, ledger.ErrNotFound) {
		b.lggr.Warnw("Failed to look up transaction", "txid", txid, "error", err)
	}

	return err == nil
}

// Classify maps a submission error onto its failure kind.
func Classify(err error) FailureKind {
	if rej, ok := ledger.AsRejection(err); ok {
		switch rej.Category {
		case ledger.CategoryNonceConflict:
			return KindNonceConflict
		case ledger.CategoryPostCondition:
			return KindPostConditionFailure
		case ledger.CategoryMalformed, ledger.CategoryDuplicate:
			return KindValidationRejection
		}
	}
	if txbuilder.IsValidationError(err) {
		return KindValidationError
	}

	return KindNetworkError
}
