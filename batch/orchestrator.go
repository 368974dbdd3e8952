// Package batch runs ordered request batches for one account: build, allocate nonce, submit
// and optionally confirm each request, recording one entry per request.
package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/ksuid"
	"golang.org/x/time/rate"

	"github.com/smartcontractkit/stacks-batcher/broadcast"
	"github.com/smartcontractkit/stacks-batcher/catalog"
	"github.com/smartcontractkit/stacks-batcher/checkpoint"
	"github.com/smartcontractkit/stacks-batcher/confirm"
	"github.com/smartcontractkit/stacks-batcher/ledger"
	"github.com/smartcontractkit/stacks-batcher/lock"
	"github.com/smartcontractkit/stacks-batcher/nonce"
	"github.com/smartcontractkit/stacks-batcher/pkg/logger"
	"github.com/smartcontractkit/stacks-batcher/txbuilder"
)

// DefaultMinDelay is the default minimum pause between two submissions.
const DefaultMinDelay = 2 * time.Second

const (
	detailResumed = "completed in previous run"
	detailStopped = "not submitted after an earlier failure"
)

var (
	// ErrSeed is returned when the account nonce cannot be read at batch start.
	ErrSeed = errors.New("failed to seed account nonce")
	// ErrCheckpoint is returned when the run's checkpoint cannot be loaded or does not match.
	ErrCheckpoint = errors.New("invalid checkpoint")
)

// Submitter submits one intent.
type Submitter interface {
	Submit(ctx context.Context, intent txbuilder.Intent) broadcast.Outcome
}

// Poller waits for a submitted transaction to reach a terminal status.
type Poller interface {
	Poll(ctx context.Context, txid string) (confirm.Record, error)
}

// Observer is notified as the run progresses. Calls are made from the run's goroutine.
type Observer interface {
	EntryRecorded(entry Entry)
	NonceResynced(account string, nonce uint64)
}

// Options tune one run.
type Options struct {
	// RunID identifies the run for checkpoints and reports. Generated when empty.
	RunID string
	// MinDelay is the minimum pause between submissions. Zero uses DefaultMinDelay.
	MinDelay time.Duration
	// Confirm polls every submitted transaction until it is terminal.
	Confirm bool
	// StopOnFirstFailure records every request after the first failure as skipped.
	StopOnFirstFailure bool
}

func (o Options) validate() error {
	if o.MinDelay < 0 {
		return fmt.Errorf("min delay must not be negative, got %s", o.MinDelay)
	}

	return nil
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Builder     *txbuilder.Builder
	Submitter   Submitter
	Ledger      ledger.Client
	Account     string
	Poller      Poller           // required when runs confirm
	Checkpoints checkpoint.Store // optional
	Locker      lock.Locker      // optional
	Observer    Observer         // optional
	Logger      logger.Logger
}

func (d *Deps) validate() error {
	var errs []error
	if d.Builder == nil {
		errs = append(errs, errors.New("builder is required"))
	}
	if d.Submitter == nil {
		errs = append(errs, errors.New("submitter is required"))
	}
	if d.Ledger == nil {
		errs = append(errs, errors.New("ledger client is required"))
	}
	if d.Account == "" {
		errs = append(errs, errors.New("account is required"))
	}

	return errors.Join(errs...)
}

func (d *Deps) applyDefaults() {
	if d.Logger == nil {
		d.Logger = logger.Nop()
	}
	if d.Observer == nil {
		d.Observer = nopObserver{}
	}
}

// Orchestrator runs batches for one account. Runs on the same orchestrator must not overlap.
type Orchestrator struct {
	deps Deps
	lggr logger.Logger
}

// New returns an orchestrator.
func New(deps Deps) (*Orchestrator, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	deps.applyDefaults()

	return &Orchestrator{deps: deps, lggr: deps.Logger.Named("batch")}, nil
}

// Run processes requests in order and returns one entry per request. Per item failures are
// recorded in the entries. The run fails, with no entries, only when the account lock is busy,
// the nonce cannot be seeded or the checkpoint is unusable. On cancellation the processed
// prefix is returned with Cancelled set.
func (o *Orchestrator) Run(ctx context.Context, requests []catalog.Request, opts Options) (Result, error) {
	if err := opts.validate(); err != nil {
		return Result{}, err
	}
	if opts.Confirm && o.deps.Poller == nil {
		return Result{}, errors.New("confirmation requested but no poller is configured")
	}
	if opts.RunID == "" {
		opts.RunID = ksuid.New().String()
	}
	if opts.MinDelay == 0 {
		opts.MinDelay = DefaultMinDelay
	}

	res := Result{RunID: opts.RunID, Account: o.deps.Account, StartedAt: time.Now().UTC()}
	lggr := o.lggr.With("runID", opts.RunID, "account", o.deps.Account)

	if o.deps.Locker != nil {
		handle, err := o.deps.Locker.TryLock(ctx, o.deps.Account)
		if err != nil {
			return res, fmt.Errorf("lock account %s: %w", o.deps.Account, err)
		}
		defer func() {
			if uerr := handle.Unlock(context.WithoutCancel(ctx)); uerr != nil {
				lggr.Warnw("Failed to release account lock", "error", uerr)
			}
		}()
	}

	alloc := nonce.New(o.deps.Ledger, o.deps.Account, lggr)
	if _, err := alloc.Seed(ctx); err != nil {
		return res, fmt.Errorf("%w: %w", ErrSeed, err)
	}

	start, err := o.resume(ctx, alloc, opts.RunID, len(requests))
	if err != nil {
		return res, err
	}
	res.BaseNonce = alloc.Base()

	lggr.Infow("Starting batch", "requests", len(requests), "baseNonce", res.BaseNonce, "resumeAt", start)

	entries := make([]Entry, 0, len(requests))
	for i := range start {
		entries = append(entries, Entry{Index: i, Request: requests[i], Outcome: broadcast.Skipped(detailResumed)})
	}

	r := &run{
		Orchestrator: o,
		opts:         opts,
		alloc:        alloc,
		limiter:      rate.NewLimiter(rate.Every(opts.MinDelay), 1),
		lggr:         lggr,
	}

	stopped := false
	for i := start; i < len(requests); i++ {
		if ctx.Err() != nil {
			res.Cancelled = true
			break
		}

		entry := Entry{Index: i, Request: requests[i]}
		if stopped {
			entry.Outcome = broadcast.Skipped(detailStopped)
			entries = append(entries, entry)
			o.deps.Observer.EntryRecorded(entry)

			continue
		}

		entry, err = r.process(ctx, entry)
		if err != nil {
			lggr.Infow("Batch cancelled before submission", "index", i, "error", err)
			res.Cancelled = true

			break
		}

		entries = append(entries, entry)
		r.checkpoint(ctx, i+1)
		o.deps.Observer.EntryRecorded(entry)

		if opts.StopOnFirstFailure && entry.Category() == CategoryFailed {
			lggr.Warnw("Stopping batch after failure", "index", i, "kind", entry.Outcome.Kind)
			stopped = true
		}
	}

	res.Entries = entries
	res.FinishedAt = time.Now().UTC()
	lggr.Infow("Finished batch", "entries", len(entries), "cancelled", res.Cancelled)

	return res, nil
}

// resume returns the index to start at, moving the allocator forward to the checkpointed nonce.
func (o *Orchestrator) resume(ctx context.Context, alloc *nonce.Allocator, runID string, n int) (int, error) {
	if o.deps.Checkpoints == nil {
		return 0, nil
	}

	cp, ok, err := o.deps.Checkpoints.Load(ctx, runID)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrCheckpoint, err)
	}
	if !ok {
		return 0, nil
	}
	if cp.Account != o.deps.Account {
		return 0, fmt.Errorf("%w: run %s belongs to account %s", ErrCheckpoint, runID, cp.Account)
	}
	alloc.SeedAt(cp.Nonce)

	return min(cp.Index, n), nil
}

// run holds the state of one Run call.
type run struct {
	*Orchestrator

	opts    Options
	alloc   *nonce.Allocator
	limiter *rate.Limiter
	lggr    logger.Logger
}

// process builds, submits and optionally confirms one request. It returns an error only when
// the run was cancelled before the request was submitted.
func (r *run) process(ctx context.Context, entry Entry) (Entry, error) {
	lggr := r.lggr.With("index", entry.Index, "kind", entry.Request.Kind)

	intent, err := r.deps.Builder.Build(entry.Request)
	if err != nil {
		lggr.Warnw("Invalid request", "error", err)
		entry.Outcome = broadcast.Failed(broadcast.KindValidationError, err.Error(), 0)

		return entry, nil
	}

	if err = r.limiter.Wait(ctx); err != nil {
		return entry, fmt.Errorf("pace submission: %w", err)
	}

	n, err := r.alloc.Next()
	if err != nil {
		return entry, err
	}
	intent = intent.WithNonce(n)
	out := r.deps.Submitter.Submit(ctx, intent)

	if out.IsFailed() && out.Kind == broadcast.KindNonceConflict {
		intent, out = r.retryConflict(ctx, intent, out)
	}

	if out.IsFailed() && (out.Kind.Definitive() || out.Kind == broadcast.KindSigningError) {
		if r.alloc.Release(intent.Nonce) {
			lggr.Debugw("Released nonce", "nonce", intent.Nonce)
		}
	}

	nonceUsed := intent.Nonce
	entry.Nonce = &nonceUsed
	entry.Outcome = out
	if !out.IsSubmitted() {
		return entry, nil
	}
	entry.Fee = intent.Fee
	lggr.Infow("Submitted", "txid", out.TxID, "nonce", nonceUsed)

	if r.opts.Confirm {
		rec, perr := r.deps.Poller.Poll(ctx, out.TxID)
		if perr != nil {
			lggr.Warnw("Confirmation interrupted", "txid", out.TxID, "error", perr)
		}
		entry.Confirmation = &rec
	}

	return entry, nil
}

// retryConflict resyncs the allocator and submits a fresh intent once. A second conflict is
// final.
func (r *run) retryConflict(ctx context.Context, intent txbuilder.Intent, first broadcast.Outcome) (txbuilder.Intent, broadcast.Outcome) {
	lggr := r.lggr.With("kind", intent.Kind, "nonce", intent.Nonce)

	next, err := r.alloc.Resync(ctx)
	if err != nil {
		lggr.Warnw("Nonce resync failed", "error", err)
		first.Detail = fmt.Sprintf("%s; resync failed: %v", first.Detail, err)

		return intent, first
	}
	r.deps.Observer.NonceResynced(r.deps.Account, next)

	n, err := r.alloc.Next()
	if err != nil {
		return intent, first
	}
	retried := intent.WithNonce(n)
	lggr.Infow("Retrying after nonce conflict", "newNonce", n)

	out := r.deps.Submitter.Submit(ctx, retried)
	out.Attempts += first.Attempts

	return retried, out
}

func (r *run) checkpoint(ctx context.Context, processed int) {
	if r.deps.Checkpoints == nil {
		return
	}

	err := r.deps.Checkpoints.Save(context.WithoutCancel(ctx), checkpoint.Checkpoint{
		RunID:   r.opts.RunID,
		Account: r.deps.Account,
		Index:   processed,
		Nonce:   r.alloc.Peek(),
	})
	if err != nil {
		r.lggr.Warnw("Failed to save checkpoint", "index", processed, "error", err)
	}
}

type nopObserver struct{}

func (nopObserver) EntryRecorded(Entry)          {}
func (nopObserver) NonceResynced(string, uint64) {}
