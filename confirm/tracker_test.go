package confirm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcontractkit/stacks-batcher/ledger"
	"github.com/smartcontractkit/stacks-batcher/ledger/ledgertest"
	"github.com/smartcontractkit/stacks-batcher/pkg/logger"
	"github.com/smartcontractkit/stacks-batcher/schedule"
	"github.com/smartcontractkit/stacks-batcher/signer"
)

const account = "SP2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKNRV9EJ7"

// recordingSleep records the requested waits without sleeping.
type recordingSleep struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (r *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.waits = append(r.waits, d)

	return ctx.Err()
}

func newTestTracker(t *testing.T, l ledger.Client, policy schedule.Policy) (*Tracker, *recordingSleep) {
	t.Helper()

	tr, err := New(l, policy, logger.Test(t))
	require.NoError(t, err)
	rec := &recordingSleep{}
	tr.sleep = rec.sleep

	return tr, rec
}

func submitted(t *testing.T, l *ledgertest.Ledger, txid string, nonce uint64) {
	t.Helper()

	_, err := l.Submit(context.Background(), signer.SignedPayload{TxID: txid, Nonce: nonce})
	require.NoError(t, err)
}

func TestNew(t *testing.T) {
	t.Parallel()

	_, err := New(nil, schedule.DefaultPoll(), nil)
	require.ErrorContains(t, err, "ledger client is required")

	tr, err := New(ledgertest.New(account, 0), schedule.Policy{}, nil)
	require.NoError(t, err)
	assert.Equal(t, schedule.DefaultPoll(), tr.Policy())
}

func TestTracker_NeverLeavesPending(t *testing.T) {
	t.Parallel()

	l := ledgertest.New(account, 0)
	submitted(t, l, "0xa", 0)
	l.ScriptTx("0xa", ledger.StatusPending)

	policy := schedule.Policy{Interval: 7 * time.Second, Multiplier: 1, MaxAttempts: 5}
	tr, sleeper := newTestTracker(t, l, policy)

	rec, err := tr.Poll(context.Background(), "0xa")
	require.NoError(t, err)
	assert.Equal(t, StatusTimeout, rec.Status)
	assert.Equal(t, 5, rec.Attempts)
	assert.Equal(t, 5, l.StatusCalls("0xa"), "exactly max attempts queries")
	assert.Equal(t, []time.Duration{
		7 * time.Second, 7 * time.Second, 7 * time.Second, 7 * time.Second,
	}, sleeper.waits, "no wait after the last query")
}

func TestTracker_Terminal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		script       []ledger.TxStatus
		wantStatus   Status
		wantReason   string
		wantAttempts int
	}{
		{
			name:         "success immediately",
			script:       []ledger.TxStatus{ledger.StatusSuccess},
			wantStatus:   StatusSuccess,
			wantAttempts: 1,
		},
		{
			name:         "success after pending",
			script:       []ledger.TxStatus{ledger.StatusPending, ledger.StatusPending, ledger.StatusSuccess},
			wantStatus:   StatusSuccess,
			wantAttempts: 3,
		},
		{
			name:         "abort by response",
			script:       []ledger.TxStatus{ledger.StatusPending, ledger.StatusAbortByResponse},
			wantStatus:   StatusAborted,
			wantReason:   "abort_by_response",
			wantAttempts: 2,
		},
		{
			name:         "abort by post condition",
			script:       []ledger.TxStatus{ledger.StatusAbortByPostCondition},
			wantStatus:   StatusAborted,
			wantReason:   "abort_by_post_condition",
			wantAttempts: 1,
		},
		{
			name:         "dropped from mempool",
			script:       []ledger.TxStatus{ledger.StatusPending, "dropped_replace_by_fee"},
			wantStatus:   StatusAborted,
			wantReason:   "dropped_replace_by_fee",
			wantAttempts: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			l := ledgertest.New(account, 0)
			submitted(t, l, "0xa", 0)
			l.ScriptTx("0xa", tt.script...)
			tr, sleeper := newTestTracker(t, l, schedule.Policy{Interval: time.Second, MaxAttempts: 10})

			rec, err := tr.Poll(context.Background(), "0xa")
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, rec.Status)
			assert.Equal(t, tt.wantReason, rec.Reason)
			assert.Equal(t, tt.wantAttempts, rec.Attempts)
			assert.Len(t, sleeper.waits, tt.wantAttempts-1)
		})
	}
}

func TestTracker_ErrorsKeepPolling(t *testing.T) {
	t.Parallel()

	l := ledgertest.New(account, 0)
	l.FailStatus(&ledger.TransientError{Op: "status", Err: errors.New("502")})
	tr, _ := newTestTracker(t, l, schedule.Policy{Interval: time.Second, MaxAttempts: 4})

	// the failed query consumes the first scripted status
	l.ScriptTx("0xlate", ledger.StatusPending, ledger.StatusPending, ledger.StatusSuccess)

	rec, err := tr.Poll(context.Background(), "0xlate")
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, rec.Status)
	assert.Equal(t, 3, rec.Attempts)
}

func TestTracker_NotFoundTimesOut(t *testing.T) {
	t.Parallel()

	l := ledgertest.New(account, 0)
	tr, _ := newTestTracker(t, l, schedule.Policy{Interval: time.Second, MaxAttempts: 3})

	rec, err := tr.Poll(context.Background(), "0xmissing")
	require.NoError(t, err)
	assert.Equal(t, StatusTimeout, rec.Status)
	assert.Equal(t, 3, l.StatusCalls("0xmissing"))
}

func TestTracker_Cancelled(t *testing.T) {
	t.Parallel()

	l := ledgertest.New(account, 0)
	submitted(t, l, "0xa", 0)
	l.ScriptTx("0xa", ledger.StatusPending)

	tr, err := New(l, schedule.Policy{Interval: time.Hour, MaxAttempts: 3}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	rec, err := tr.Poll(ctx, "0xa")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StatusTimeout, rec.Status)
	assert.Equal(t, 1, rec.Attempts)
}
