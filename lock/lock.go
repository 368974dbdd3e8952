// Package lock guards an account against concurrent batches, which would race for nonces.
package lock

import (
	"context"
	"errors"
	"strings"
	"sync"
)

var (
	// ErrBusy is returned by TryLock when another batch holds the account.
	ErrBusy = errors.New("account is locked by another batch")
	// ErrNotHeld is returned by Unlock when the lock was released or expired.
	ErrNotHeld = errors.New("lock was not held or already expired")
	// ErrEmptyAccount is returned for a blank account.
	ErrEmptyAccount = errors.New("account cannot be empty")
)

// Handle releases an acquired lock.
type Handle interface {
	Unlock(ctx context.Context) error
}

// Locker acquires per-account locks without waiting.
type Locker interface {
	TryLock(ctx context.Context, account string) (Handle, error)
}

var _ Locker = (*Memory)(nil)

// Memory is a process-local Locker.
type Memory struct {
	mu   sync.Mutex
	held map[string]uint64
	seq  uint64
}

// NewMemory returns a Locker for batches running in the same process.
func NewMemory() *Memory {
	return &Memory{held: map[string]uint64{}}
}

// TryLock implements Locker.
func (m *Memory) TryLock(ctx context.Context, account string) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(account) == "" {
		return nil, ErrEmptyAccount
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.held[account]; ok {
		return nil, ErrBusy
	}
	m.seq++
	m.held[account] = m.seq

	return &memoryHandle{m: m, account: account, token: m.seq}, nil
}

type memoryHandle struct {
	m       *Memory
	account string
	token   uint64
}

func (h *memoryHandle) Unlock(context.Context) error {
	h.m.mu.Lock()
	defer h.m.mu.Unlock()

	if h.m.held[h.account] != h.token {
		return ErrNotHeld
	}
	delete(h.m.held, h.account)

	return nil
}
