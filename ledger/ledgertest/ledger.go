// Package ledgertest provides an in-memory ledger.Client for tests.
package ledgertest

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/smartcontractkit/stacks-batcher/ledger"
	"github.com/smartcontractkit/stacks-batcher/signer"
)

var _ ledger.Client = (*Ledger)(nil)

// Ledger simulates the mempool of a single account. Submissions must use a nonce at or above
// the account's next nonce; a reused nonce is rejected with ConflictingNonceInMempool, echoing
// the txid already holding it. Accepted transactions report StatusSuccess unless scripted.
//
// Failures are scripted with the Fail* methods: each queued error is returned by one call, a
// nil entry lets that call through.
//
// With MineOnAccept, accepted transactions leave the mempool at once, so resubmitting one is
// rejected with BadNonce instead.
type Ledger struct {
	mu sync.Mutex

	address string
	next    uint64
	balance *big.Int

	byNonce map[uint64]string
	txs     map[string]uint64

	accountErrs []error
	submitErrs  []error
	acceptErrs  []error
	statusErrs  []error

	mineOnAccept bool

	txScripts    map[string][]ledger.TxStatus
	nonceScripts map[uint64][]ledger.TxStatus

	submissions  []signer.SignedPayload
	accountCalls int
	statusCalls  map[string]int
}

// New returns a ledger holding address with next nonce.
func New(address string, nonce uint64) *Ledger {
	return &Ledger{
		address:      address,
		next:         nonce,
		balance:      big.NewInt(1_000_000_000),
		byNonce:      map[uint64]string{},
		txs:          map[string]uint64{},
		txScripts:    map[string][]ledger.TxStatus{},
		nonceScripts: map[uint64][]ledger.TxStatus{},
		statusCalls:  map[string]int{},
	}
}

// SetNonce moves the account's next nonce, as if another writer used the account.
func (l *Ledger) SetNonce(nonce uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.next = nonce
}

// FailAccount queues errors for the next Account calls.
func (l *Ledger) FailAccount(errs ...error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.accountErrs = append(l.accountErrs, errs...)
}

// FailSubmit queues errors for the next Submit calls.
func (l *Ledger) FailSubmit(errs ...error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.submitErrs = append(l.submitErrs, errs...)
}

// FailAfterAccept queues errors for the next accepted submissions. The transaction is kept
// but the caller sees the error, as when a response is lost in transit.
func (l *Ledger) FailAfterAccept(errs ...error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.acceptErrs = append(l.acceptErrs, errs...)
}

// MineOnAccept makes accepted transactions leave the mempool immediately.
func (l *Ledger) MineOnAccept() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.mineOnAccept = true
}

// FailStatus queues errors for the next Status calls.
func (l *Ledger) FailStatus(errs ...error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.statusErrs = append(l.statusErrs, errs...)
}

// ScriptTx sets the statuses reported for txid, one per Status call. The last one repeats.
func (l *Ledger) ScriptTx(txid string, statuses ...ledger.TxStatus) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.txScripts[txid] = statuses
}

// ScriptNonce sets the statuses reported for the transaction accepted with nonce.
func (l *Ledger) ScriptNonce(nonce uint64, statuses ...ledger.TxStatus) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nonceScripts[nonce] = statuses
}

// Submissions returns the payloads accepted so far, in order.
func (l *Ledger) Submissions() []signer.SignedPayload {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]signer.SignedPayload(nil), l.submissions...)
}

// Nonces returns the nonces of the accepted submissions, in order.
func (l *Ledger) Nonces() []uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]uint64, 0, len(l.submissions))
	for _, p := range l.submissions {
		out = append(out, p.Nonce)
	}

	return out
}

// AccountCalls returns how many times Account was called.
func (l *Ledger) AccountCalls() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.accountCalls
}

// StatusCalls returns how many times Status was called for txid.
func (l *Ledger) StatusCalls(txid string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.statusCalls[txid]
}

// Account implements ledger.Client.
func (l *Ledger) Account(ctx context.Context, address string) (ledger.AccountInfo, error) {
	if err := ctx.Err(); err != nil {
		return ledger.AccountInfo{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.accountCalls++
	if err := pop(&l.accountErrs); err != nil {
		return ledger.AccountInfo{}, err
	}
	if address != l.address {
		return ledger.AccountInfo{Address: address, Balance: new(big.Int)}, nil
	}

	return ledger.AccountInfo{Address: address, Nonce: l.next, Balance: new(big.Int).Set(l.balance)}, nil
}

// Submit implements ledger.Client.
func (l *Ledger) Submit(ctx context.Context, payload signer.SignedPayload) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := pop(&l.submitErrs); err != nil {
		return "", err
	}

	if held, ok := l.byNonce[payload.Nonce]; ok {
		return "", ledger.ClassifyRejection("ConflictingNonceInMempool", "", payload.TxID, held)
	}
	if payload.Nonce < l.next {
		return "", ledger.ClassifyRejection("BadNonce",
			fmt.Sprintf(`{"expected":%d,"actual":%d}`, l.next, payload.Nonce), payload.TxID, payload.TxID)
	}

	if !l.mineOnAccept {
		l.byNonce[payload.Nonce] = payload.TxID
	}
	l.txs[payload.TxID] = payload.Nonce
	l.next = payload.Nonce + 1
	l.submissions = append(l.submissions, payload)

	if err := pop(&l.acceptErrs); err != nil {
		return "", err
	}

	return payload.TxID, nil
}

// Status implements ledger.Client.
func (l *Ledger) Status(ctx context.Context, txid string) (ledger.TxInfo, error) {
	if err := ctx.Err(); err != nil {
		return ledger.TxInfo{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.statusCalls[txid]++
	if err := pop(&l.statusErrs); err != nil {
		return ledger.TxInfo{}, err
	}

	script, scripted := l.txScripts[txid]
	nonce, known := l.txs[txid]
	if !scripted && known {
		script, scripted = l.nonceScripts[nonce]
	}
	if !known && !scripted {
		return ledger.TxInfo{}, fmt.Errorf("%s: %w", txid, ledger.ErrNotFound)
	}

	status := ledger.StatusSuccess
	if scripted && len(script) > 0 {
		n := l.statusCalls[txid] - 1
		if n >= len(script) {
			n = len(script) - 1
		}
		status = script[n]
	}

	info := ledger.TxInfo{TxID: txid, Status: status}
	if status.Terminal() {
		info.BlockHeight = 100 + nonce
	}

	return info, nil
}

func pop(q *[]error) error {
	if len(*q) == 0 {
		return nil
	}
	err := (*q)[0]
	*q = (*q)[1:]

	return err
}
