package ledgertest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcontractkit/stacks-batcher/ledger"
	"github.com/smartcontractkit/stacks-batcher/signer"
)

const addr = "SP2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKNRV9EJ7"

func TestLedger_SubmitNonces(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := New(addr, 10)

	txid, err := l.Submit(ctx, signer.SignedPayload{TxID: "0x1", Nonce: 10})
	require.NoError(t, err)
	assert.Equal(t, "0x1", txid)

	_, err = l.Submit(ctx, signer.SignedPayload{TxID: "0x1", Nonce: 10})
	rej, ok := ledger.AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, ledger.CategoryDuplicate, rej.Category)

	_, err = l.Submit(ctx, signer.SignedPayload{TxID: "0x2", Nonce: 10})
	rej, ok = ledger.AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, ledger.CategoryNonceConflict, rej.Category)

	l.SetNonce(20)
	_, err = l.Submit(ctx, signer.SignedPayload{TxID: "0x3", Nonce: 11})
	rej, ok = ledger.AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, ledger.CategoryNonceConflict, rej.Category)

	info, err := l.Account(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, uint64(20), info.Nonce)
	assert.Equal(t, []uint64{10}, l.Nonces())
}

func TestLedger_ScriptedFailures(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := New(addr, 0)
	boom := errors.New("boom")

	l.FailAccount(boom)
	_, err := l.Account(ctx, addr)
	require.ErrorIs(t, err, boom)
	_, err = l.Account(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, 2, l.AccountCalls())

	l.FailSubmit(nil, boom)
	_, err = l.Submit(ctx, signer.SignedPayload{TxID: "0xa", Nonce: 0})
	require.NoError(t, err)
	_, err = l.Submit(ctx, signer.SignedPayload{TxID: "0xb", Nonce: 1})
	require.ErrorIs(t, err, boom)
}

func TestLedger_LostAcceptanceMined(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := New(addr, 10)
	l.MineOnAccept()
	lost := &ledger.TransientError{Op: "submit", Err: errors.New("connection reset")}
	l.FailAfterAccept(lost)

	_, err := l.Submit(ctx, signer.SignedPayload{TxID: "0x1", Nonce: 10})
	require.ErrorIs(t, err, lost)
	assert.Equal(t, []uint64{10}, l.Nonces(), "the transaction was kept")

	_, err = l.Submit(ctx, signer.SignedPayload{TxID: "0x1", Nonce: 10})
	rej, ok := ledger.AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, "BadNonce", rej.Reason)
	assert.Equal(t, ledger.CategoryNonceConflict, rej.Category)

	info, err := l.Status(ctx, "0x1")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusSuccess, info.Status)
}

func TestLedger_Status(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := New(addr, 0)

	_, err := l.Status(ctx, "0xnone")
	require.ErrorIs(t, err, ledger.ErrNotFound)

	l.ScriptNonce(1, ledger.StatusPending, ledger.StatusAbortByResponse)
	_, err = l.Submit(ctx, signer.SignedPayload{TxID: "0xa", Nonce: 0})
	require.NoError(t, err)
	_, err = l.Submit(ctx, signer.SignedPayload{TxID: "0xb", Nonce: 1})
	require.NoError(t, err)

	info, err := l.Status(ctx, "0xa")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusSuccess, info.Status)

	var got []ledger.TxStatus
	for range 3 {
		info, err = l.Status(ctx, "0xb")
		require.NoError(t, err)
		got = append(got, info.Status)
	}
	assert.Equal(t, []ledger.TxStatus{ledger.StatusPending, ledger.StatusAbortByResponse, ledger.StatusAbortByResponse}, got)
	assert.Equal(t, 3, l.StatusCalls("0xb"))
}
