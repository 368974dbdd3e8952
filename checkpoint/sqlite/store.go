// Package sqlite implements checkpoint.Store on a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/smartcontractkit/stacks-batcher/checkpoint"
)

const schema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	run_id     TEXT PRIMARY KEY,
	account    TEXT NOT NULL,
	item_index INTEGER NOT NULL,
	nonce      INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
)`

var _ checkpoint.Store = (*Store)(nil)

// Store provides SQLite-backed checkpoint persistence.
type Store struct {
	sqlDB *sql.DB
}

// Open opens the database at path, creating the schema when needed.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("checkpoint path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err = sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err = sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{sqlDB: sqlDB}, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}

	return s.sqlDB.Close()
}

// Load implements checkpoint.Store.
func (s *Store) Load(ctx context.Context, runID string) (checkpoint.Checkpoint, bool, error) {
	if err := ctx.Err(); err != nil {
		return checkpoint.Checkpoint{}, false, err
	}
	if s == nil || s.sqlDB == nil {
		return checkpoint.Checkpoint{}, false, errors.New("storage is not configured")
	}

	var (
		c         checkpoint.Checkpoint
		nonce     int64
		updatedAt int64
	)
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT run_id, account, item_index, nonce, updated_at
FROM checkpoints
WHERE run_id = ?
`, runID).Scan(&c.RunID, &c.Account, &c.Index, &nonce, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return checkpoint.Checkpoint{}, false, nil
	}
	if err != nil {
		return checkpoint.Checkpoint{}, false, fmt.Errorf("load checkpoint %s: %w", runID, err)
	}
	if nonce < 0 {
		return checkpoint.Checkpoint{}, false, fmt.Errorf("load checkpoint %s: negative nonce %d", runID, nonce)
	}
	c.Nonce = uint64(nonce)
	c.UpdatedAt = time.UnixMilli(updatedAt).UTC()

	return c, true, nil
}

// Save implements checkpoint.Store.
func (s *Store) Save(ctx context.Context, c checkpoint.Checkpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return errors.New("storage is not configured")
	}
	if err := c.Validate(); err != nil {
		return err
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO checkpoints (run_id, account, item_index, nonce, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(run_id) DO UPDATE SET
	account = excluded.account,
	item_index = excluded.item_index,
	nonce = excluded.nonce,
	updated_at = excluded.updated_at
`,
		c.RunID,
		c.Account,
		c.Index,
		int64(c.Nonce), //nolint:gosec // nonces stay far below 2^63
		c.UpdatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save checkpoint %s: %w", c.RunID, err)
	}

	return nil
}
