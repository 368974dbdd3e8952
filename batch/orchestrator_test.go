package batch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcontractkit/stacks-batcher/broadcast"
	"github.com/smartcontractkit/stacks-batcher/catalog"
	"github.com/smartcontractkit/stacks-batcher/checkpoint"
	"github.com/smartcontractkit/stacks-batcher/confirm"
	"github.com/smartcontractkit/stacks-batcher/ledger"
	"github.com/smartcontractkit/stacks-batcher/ledger/ledgertest"
	"github.com/smartcontractkit/stacks-batcher/lock"
	"github.com/smartcontractkit/stacks-batcher/pkg/logger"
	"github.com/smartcontractkit/stacks-batcher/schedule"
	"github.com/smartcontractkit/stacks-batcher/signer"
	"github.com/smartcontractkit/stacks-batcher/txbuilder"
)

const (
	deployer = "SP1EPS1JHVHZ3MZRVY3381PDJJJ8PAFTDHMWAGK8P"
	account  = "SP2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKNRV9EJ7"
	testKey  = "b244296d5907de9864c0b0d51f98a13c52890be0404e83f273144cd5b9960eed"
	fast     = time.Millisecond
)

var (
	errTransient = &ledger.TransientError{Op: "submit", Err: errors.New("connection reset")}
	errMalformed = ledger.ClassifyRejection("BadFunctionArgument", "", "", "")
	errConflict  = ledger.ClassifyRejection("BadNonce", "", "", "")
)

// recorder is an Observer that keeps every notification.
type recorder struct {
	mu      sync.Mutex
	entries []Entry
	resyncs []uint64
	onEntry func(Entry)
}

func (r *recorder) EntryRecorded(e Entry) {
	r.mu.Lock()
	r.entries = append(r.entries, e)
	hook := r.onEntry
	r.mu.Unlock()

	if hook != nil {
		hook(e)
	}
}

func (r *recorder) NonceResynced(_ string, n uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.resyncs = append(r.resyncs, n)
}

type submitterFunc func(ctx context.Context, intent txbuilder.Intent) broadcast.Outcome

func (f submitterFunc) Submit(ctx context.Context, intent txbuilder.Intent) broadcast.Outcome {
	return f(ctx, intent)
}

type fixture struct {
	ledger   *ledgertest.Ledger
	deps     Deps
	observer *recorder
}

func newFixture(t *testing.T, base uint64) *fixture {
	t.Helper()

	l := ledgertest.New(account, base)

	b, err := txbuilder.New(catalog.Default(), txbuilder.Config{ContractAddress: deployer, Sender: account})
	require.NoError(t, err)
	s, err := signer.NewKeySigner(testKey)
	require.NoError(t, err)
	bc, err := broadcast.New(l, s, schedule.Policy{Interval: fast, Multiplier: 2, MaxAttempts: 3}, logger.Test(t))
	require.NoError(t, err)
	tr, err := confirm.New(l, schedule.Policy{Interval: fast, MaxAttempts: 3}, logger.Test(t))
	require.NoError(t, err)

	obs := &recorder{}

	return &fixture{
		ledger:   l,
		observer: obs,
		deps: Deps{
			Builder:   b,
			Submitter: bc,
			Ledger:    l,
			Account:   account,
			Poller:    tr,
			Observer:  obs,
			Logger:    logger.Test(t),
		},
	}
}

func (f *fixture) orchestrator(t *testing.T) *Orchestrator {
	t.Helper()

	o, err := New(f.deps)
	require.NoError(t, err)

	return o
}

func listing(token, price int64) catalog.Request {
	return catalog.NewRequest(catalog.KindCreateListing,
		catalog.A("nft-contract", catalog.Principal(deployer+".example-nft")),
		catalog.A("token-id", catalog.Uint(token)),
		catalog.A("price", catalog.Uint(price)),
	)
}

func listings(n int) []catalog.Request {
	reqs := make([]catalog.Request, 0, n)
	for i := range n {
		reqs = append(reqs, listing(int64(i+1), int64(1_000_000+i*100_000)))
	}

	return reqs
}

func nonces(res Result) []uint64 {
	out := make([]uint64, 0, len(res.Entries))
	for _, e := range res.Entries {
		if e.Nonce != nil {
			out = append(out, *e.Nonce)
		}
	}

	return out
}

func statuses(res Result) []broadcast.Status {
	out := make([]broadcast.Status, 0, len(res.Entries))
	for _, e := range res.Entries {
		out = append(out, e.Outcome.Status)
	}

	return out
}

func TestNew(t *testing.T) {
	t.Parallel()

	_, err := New(Deps{})
	require.Error(t, err)
	assert.ErrorContains(t, err, "builder is required")
	assert.ErrorContains(t, err, "submitter is required")
	assert.ErrorContains(t, err, "ledger client is required")
	assert.ErrorContains(t, err, "account is required")
}

func TestRun_SequentialNonces(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 10)
	reqs := listings(5)

	res, err := f.orchestrator(t).Run(context.Background(), reqs, Options{MinDelay: fast})
	require.NoError(t, err)

	require.Len(t, res.Entries, 5)
	assert.Equal(t, uint64(10), res.BaseNonce)
	assert.NotEmpty(t, res.RunID)
	assert.False(t, res.Cancelled)
	for i, e := range res.Entries {
		assert.Equal(t, i, e.Index)
		assert.Equal(t, reqs[i], e.Request)
		assert.True(t, e.Outcome.IsSubmitted(), e.Outcome.Detail)
		assert.Equal(t, txbuilder.DefaultFee, e.Fee)
		assert.Equal(t, CategorySucceeded, e.Category())
	}
	assert.Equal(t, []uint64{10, 11, 12, 13, 14}, nonces(res))
	assert.Equal(t, []uint64{10, 11, 12, 13, 14}, f.ledger.Nonces())
	assert.Equal(t, 1, f.ledger.AccountCalls(), "the account is read once per batch")
	assert.Len(t, f.observer.entries, 5)
}

func TestRun_NetworkErrorRetried(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 10)
	f.ledger.FailSubmit(nil, errTransient)

	res, err := f.orchestrator(t).Run(context.Background(), []catalog.Request{
		listing(1, 1_000_000),
		listing(2, 2_000_000),
	}, Options{MinDelay: fast})
	require.NoError(t, err)

	assert.Equal(t, []broadcast.Status{broadcast.StatusSubmitted, broadcast.StatusSubmitted}, statuses(res))
	assert.Equal(t, []uint64{10, 11}, nonces(res))
	assert.Equal(t, 2, res.Entries[1].Outcome.Attempts)
	assert.Len(t, f.ledger.Submissions(), 2, "no duplicate on-ledger effect")
}

func TestRun_LostAcceptanceNotResubmitted(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 10)
	f.ledger.MineOnAccept()
	f.ledger.FailAfterAccept(errTransient)

	res, err := f.orchestrator(t).Run(context.Background(), listings(2), Options{MinDelay: fast})
	require.NoError(t, err)

	assert.Equal(t, []broadcast.Status{broadcast.StatusSubmitted, broadcast.StatusSubmitted}, statuses(res))
	assert.Equal(t, []uint64{10, 11}, nonces(res))
	assert.Equal(t, []uint64{10, 11}, f.ledger.Nonces(), "the first listing is on the ledger once")
	assert.Equal(t, f.ledger.Submissions()[0].TxID, res.Entries[0].Outcome.TxID)
	assert.Equal(t, 2, res.Entries[0].Outcome.Attempts)
	assert.Empty(t, f.observer.resyncs)
}

func TestRun_RejectionIsolated(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0)
	f.ledger.FailSubmit(nil, nil, errMalformed)

	res, err := f.orchestrator(t).Run(context.Background(), listings(5), Options{MinDelay: fast})
	require.NoError(t, err)

	require.Len(t, res.Entries, 5)
	assert.Equal(t, []broadcast.Status{
		broadcast.StatusSubmitted,
		broadcast.StatusSubmitted,
		broadcast.StatusFailed,
		broadcast.StatusSubmitted,
		broadcast.StatusSubmitted,
	}, statuses(res))
	assert.Equal(t, broadcast.KindValidationRejection, res.Entries[2].Outcome.Kind)
	assert.Zero(t, res.Entries[2].Fee)
	assert.Equal(t, []uint64{0, 1, 2, 3}, f.ledger.Nonces(), "the rejected nonce is reused")
}

func TestRun_ValidationError(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 4)
	reqs := []catalog.Request{listing(1, 100), listing(2, 0), listing(3, 300)}

	res, err := f.orchestrator(t).Run(context.Background(), reqs, Options{MinDelay: fast})
	require.NoError(t, err)

	require.Len(t, res.Entries, 3)
	bad := res.Entries[1]
	assert.Equal(t, broadcast.KindValidationError, bad.Outcome.Kind)
	assert.Contains(t, bad.Outcome.Detail, "price")
	assert.Nil(t, bad.Nonce)
	assert.Equal(t, []uint64{4, 5}, nonces(res))
}

func TestRun_StopOnFirstFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0)
	f.ledger.FailSubmit(nil, errMalformed)

	res, err := f.orchestrator(t).Run(context.Background(), listings(5), Options{MinDelay: fast, StopOnFirstFailure: true})
	require.NoError(t, err)

	assert.Equal(t, []broadcast.Status{
		broadcast.StatusSubmitted,
		broadcast.StatusFailed,
		broadcast.StatusSkipped,
		broadcast.StatusSkipped,
		broadcast.StatusSkipped,
	}, statuses(res))
	assert.Equal(t, detailStopped, res.Entries[4].Outcome.Detail)
	assert.Len(t, f.ledger.Submissions(), 1)
	assert.Len(t, f.observer.entries, 5)
}

func TestRun_NonceConflictResyncs(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 10)
	inner := f.deps.Submitter
	calls := 0
	f.deps.Submitter = submitterFunc(func(ctx context.Context, intent txbuilder.Intent) broadcast.Outcome {
		calls++
		if calls == 2 {
			// another writer used the account
			f.ledger.SetNonce(15)
		}

		return inner.Submit(ctx, intent)
	})

	res, err := f.orchestrator(t).Run(context.Background(), listings(3), Options{MinDelay: fast})
	require.NoError(t, err)

	assert.Equal(t, []broadcast.Status{broadcast.StatusSubmitted, broadcast.StatusSubmitted, broadcast.StatusSubmitted}, statuses(res))
	assert.Equal(t, []uint64{10, 15, 16}, nonces(res))
	assert.Equal(t, 2, res.Entries[1].Outcome.Attempts)
	assert.Equal(t, []uint64{15}, f.observer.resyncs)
	assert.Equal(t, 2, f.ledger.AccountCalls())
}

func TestRun_SecondNonceConflictFails(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 10)
	f.ledger.FailSubmit(nil, errConflict, errConflict)

	res, err := f.orchestrator(t).Run(context.Background(), listings(3), Options{MinDelay: fast})
	require.NoError(t, err)

	require.Len(t, res.Entries, 3)
	failed := res.Entries[1]
	assert.Equal(t, broadcast.StatusFailed, failed.Outcome.Status)
	assert.Equal(t, broadcast.KindNonceConflict, failed.Outcome.Kind)
	assert.Equal(t, 2, failed.Outcome.Attempts)
	assert.True(t, res.Entries[2].Outcome.IsSubmitted())
	assert.Len(t, f.observer.resyncs, 1)
}

func TestRun_Cancelled(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.observer.onEntry = func(e Entry) {
		if e.Index == 1 {
			cancel()
		}
	}

	res, err := f.orchestrator(t).Run(ctx, listings(5), Options{MinDelay: fast})
	require.NoError(t, err)

	assert.True(t, res.Cancelled)
	require.Len(t, res.Entries, 2)
	assert.Equal(t, 0, res.Entries[0].Index)
	assert.Equal(t, 1, res.Entries[1].Index)
	assert.Len(t, f.ledger.Submissions(), 2)
}

func TestRun_SeedFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0)
	f.ledger.FailAccount(&ledger.TransientError{Op: "account", Err: errors.New("503")})

	res, err := f.orchestrator(t).Run(context.Background(), listings(3), Options{MinDelay: fast})
	require.ErrorIs(t, err, ErrSeed)
	assert.Empty(t, res.Entries)
	assert.Empty(t, f.ledger.Submissions())
}

func TestRun_AccountBusy(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0)
	locker := lock.NewMemory()
	f.deps.Locker = locker

	held, err := locker.TryLock(context.Background(), account)
	require.NoError(t, err)

	o := f.orchestrator(t)
	res, err := o.Run(context.Background(), listings(2), Options{MinDelay: fast})
	require.ErrorIs(t, err, lock.ErrBusy)
	assert.Empty(t, res.Entries)
	assert.Zero(t, f.ledger.AccountCalls())

	require.NoError(t, held.Unlock(context.Background()))
	res, err = o.Run(context.Background(), listings(2), Options{MinDelay: fast})
	require.NoError(t, err)
	assert.Len(t, res.Entries, 2)

	_, err = locker.TryLock(context.Background(), account)
	require.NoError(t, err, "the run releases the lock")
}

func TestRun_ResumeFromCheckpoint(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 20)
	store := checkpoint.NewMemory()
	f.deps.Checkpoints = store
	reqs := listings(4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.observer.onEntry = func(e Entry) {
		if e.Index == 1 {
			cancel()
		}
	}

	first, err := f.orchestrator(t).Run(ctx, reqs, Options{RunID: "run-1", MinDelay: fast})
	require.NoError(t, err)
	require.True(t, first.Cancelled)
	require.Len(t, first.Entries, 2)

	cp, ok, err := store.Load(context.Background(), "run-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, cp.Index)
	assert.Equal(t, uint64(22), cp.Nonce)

	f.observer.onEntry = nil
	second, err := f.orchestrator(t).Run(context.Background(), reqs, Options{RunID: "run-1", MinDelay: fast})
	require.NoError(t, err)

	require.Len(t, second.Entries, 4)
	assert.Equal(t, []broadcast.Status{
		broadcast.StatusSkipped,
		broadcast.StatusSkipped,
		broadcast.StatusSubmitted,
		broadcast.StatusSubmitted,
	}, statuses(second))
	assert.Equal(t, detailResumed, second.Entries[0].Outcome.Detail)
	assert.Equal(t, uint64(22), second.BaseNonce, "the run continues from the checkpointed nonce")
	assert.Equal(t, []uint64{20, 21, 22, 23}, f.ledger.Nonces(), "completed items are not resubmitted")
}

func TestRun_CheckpointForOtherAccount(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0)
	store := checkpoint.NewMemory()
	require.NoError(t, store.Save(context.Background(), checkpoint.Checkpoint{RunID: "run-1", Account: "SP3OTHER", Index: 1}))
	f.deps.Checkpoints = store

	res, err := f.orchestrator(t).Run(context.Background(), listings(2), Options{RunID: "run-1", MinDelay: fast})
	require.ErrorIs(t, err, ErrCheckpoint)
	assert.Empty(t, res.Entries)
}

func TestRun_Confirm(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0)
	f.ledger.ScriptNonce(1, ledger.StatusPending)
	f.ledger.ScriptNonce(2, ledger.StatusAbortByResponse)

	res, err := f.orchestrator(t).Run(context.Background(), listings(4), Options{MinDelay: fast, Confirm: true, StopOnFirstFailure: true})
	require.NoError(t, err)

	require.Len(t, res.Entries, 4)
	require.NotNil(t, res.Entries[0].Confirmation)
	assert.Equal(t, confirm.StatusSuccess, res.Entries[0].Confirmation.Status)
	assert.Equal(t, confirm.StatusTimeout, res.Entries[1].Confirmation.Status)
	assert.Equal(t, CategoryTimedOut, res.Entries[1].Category(), "a timeout does not stop the batch")
	assert.Equal(t, confirm.StatusAborted, res.Entries[2].Confirmation.Status)
	assert.Equal(t, CategoryFailed, res.Entries[2].Category())
	assert.Equal(t, broadcast.StatusSkipped, res.Entries[3].Outcome.Status)
}

func TestRun_ConfirmRequiresPoller(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0)
	f.deps.Poller = nil

	_, err := f.orchestrator(t).Run(context.Background(), listings(1), Options{Confirm: true})
	require.ErrorContains(t, err, "no poller is configured")

	_, err = f.orchestrator(t).Run(context.Background(), listings(1), Options{MinDelay: -time.Second})
	require.ErrorContains(t, err, "min delay must not be negative")
}

func TestRun_Pacing(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0)
	delay := 40 * time.Millisecond

	start := time.Now()
	res, err := f.orchestrator(t).Run(context.Background(), listings(3), Options{MinDelay: delay})
	require.NoError(t, err)
	require.Len(t, res.Entries, 3)

	assert.GreaterOrEqual(t, time.Since(start), 2*delay-5*time.Millisecond, "the first submission is immediate, the others paced")
}

func TestEntry_Category(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		entry Entry
		want  Category
	}{
		{name: "submitted", entry: Entry{Outcome: broadcast.Submitted("0x1", 1)}, want: CategorySucceeded},
		{name: "confirmed", entry: Entry{Outcome: broadcast.Submitted("0x1", 1), Confirmation: &confirm.Record{Status: confirm.StatusSuccess}}, want: CategorySucceeded},
		{name: "aborted", entry: Entry{Outcome: broadcast.Submitted("0x1", 1), Confirmation: &confirm.Record{Status: confirm.StatusAborted}}, want: CategoryFailed},
		{name: "timeout", entry: Entry{Outcome: broadcast.Submitted("0x1", 1), Confirmation: &confirm.Record{Status: confirm.StatusTimeout}}, want: CategoryTimedOut},
		{name: "failed", entry: Entry{Outcome: broadcast.Failed(broadcast.KindNetworkError, "x", 3)}, want: CategoryFailed},
		{name: "skipped", entry: Entry{Outcome: broadcast.Skipped("x")}, want: CategorySkipped},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, tt.entry.Category())
		})
	}
}
