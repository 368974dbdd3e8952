// Package checkpoint persists batch progress so an interrupted run can resume without
// resubmitting completed items.
package checkpoint

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// Checkpoint records how far a run got.
type Checkpoint struct {
	RunID   string `json:"runId"`
	Account string `json:"account"`
	// Index is the number of leading items that were processed.
	Index int `json:"index"`
	// Nonce is the next nonce the run would have used.
	Nonce     uint64    `json:"nonce"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Validate checks the checkpoint can be stored.
func (c Checkpoint) Validate() error {
	if strings.TrimSpace(c.RunID) == "" {
		return errors.New("run id is required")
	}
	if strings.TrimSpace(c.Account) == "" {
		return errors.New("account is required")
	}
	if c.Index < 0 {
		return errors.New("index must not be negative")
	}

	return nil
}

// Store loads and saves checkpoints keyed by run id.
type Store interface {
	// Load returns the checkpoint of runID and whether one exists.
	Load(ctx context.Context, runID string) (Checkpoint, bool, error)
	// Save replaces the checkpoint of c.RunID.
	Save(ctx context.Context, c Checkpoint) error
}

var _ Store = (*Memory)(nil)

// Memory is a process-local Store.
type Memory struct {
	mu   sync.Mutex
	runs map[string]Checkpoint
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{runs: map[string]Checkpoint{}}
}

// Load implements Store.
func (m *Memory) Load(ctx context.Context, runID string) (Checkpoint, bool, error) {
	if err := ctx.Err(); err != nil {
		return Checkpoint{}, false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.runs[runID]

	return c, ok, nil
}

// Save implements Store.
func (m *Memory) Save(ctx context.Context, c Checkpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		return err
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = time.Now().UTC()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.runs[c.RunID] = c

	return nil
}
