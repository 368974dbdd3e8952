// Package nonce hands out sequential nonces for one account during one batch.
package nonce

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/smartcontractkit/stacks-batcher/ledger"
	"github.com/smartcontractkit/stacks-batcher/pkg/logger"
)

// ErrNotSeeded is returned when nonces are requested before Seed succeeded.
var ErrNotSeeded = errors.New("nonce allocator is not seeded")

// Allocator assigns nonces base, base+1, ... from a single ledger query. The ledger is queried
// again only on Resync. One allocator must be the only writer for its account.
type Allocator struct {
	client  ledger.Client
	account string
	lggr    logger.Logger

	mu     sync.Mutex
	seeded bool
	base   uint64
	next   uint64
	// issued reports whether next-1 was handed out and not released.
	issued bool
}

// New returns an allocator for account.
func New(client ledger.Client, account string, lggr logger.Logger) *Allocator {
	if lggr == nil {
		lggr = logger.Nop()
	}

	return &Allocator{client: client, account: account, lggr: lggr.Named("nonce")}
}

// Seed reads the account's next nonce and resets the allocator to it.
func (a *Allocator) Seed(ctx context.Context) (uint64, error) {
	info, err := a.client.Account(ctx, a.account)
	if err != nil {
		return 0, fmt.Errorf("failed to read nonce of %s: %w", a.account, err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.seeded = true
	a.base = info.Nonce
	a.next = info.Nonce
	a.issued = false
	a.lggr.Debugw("Seeded nonce", "nonce", info.Nonce)

	return info.Nonce, nil
}

// SeedAt moves the allocator forward to nonce without querying the ledger. It is used to
// resume a run from a checkpoint whose recorded nonce is ahead of the ledger's view.
func (a *Allocator) SeedAt(nonce uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.seeded = true
	a.next = max(a.next, nonce)
	a.base = a.next
	a.issued = false
}

// Next returns the next nonce.
func (a *Allocator) Next() (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.seeded {
		return 0, ErrNotSeeded
	}

	n := a.next
	a.next++
	a.issued = true

	return n, nil
}

// Peek returns the nonce Next would return.
func (a *Allocator) Peek() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.next
}

// Base returns the nonce the allocator was last seeded with, by Seed or SeedAt.
func (a *Allocator) Base() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.base
}

// Resync re-reads the account's nonce after a conflict. The allocator continues from the
// ledger's value, but never goes below the nonce it would issue next.
func (a *Allocator) Resync(ctx context.Context) (uint64, error) {
	a.mu.Lock()
	seeded := a.seeded
	a.mu.Unlock()
	if !seeded {
		return 0, ErrNotSeeded
	}

	info, err := a.client.Account(ctx, a.account)
	if err != nil {
		return 0, fmt.Errorf("failed to resync nonce of %s: %w", a.account, err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	prev := a.next
	a.next = max(a.next, info.Nonce)
	a.issued = false
	a.lggr.Infow("Resynced nonce", "ledgerNonce", info.Nonce, "previous", prev, "next", a.next)

	return a.next, nil
}

// Release gives back n when it is the most recently issued nonce and the ledger definitively
// rejected its transaction. It reports whether the nonce was reclaimed.
func (a *Allocator) Release(n uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.issued || a.next == 0 || n != a.next-1 {
		return false
	}
	a.next = n
	a.issued = false

	return true
}
