package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	goredislib "github.com/redis/go-redis/v9"
)

const (
	// DefaultExpiry bounds how long a crashed batch keeps its account locked.
	DefaultExpiry = 30 * time.Minute
	keyPrefix     = "stacks-batcher:lock:"
)

var _ Locker = (*Redis)(nil)

// Redis is a Locker shared by every process using the same Redis server.
type Redis struct {
	rs     *redsync.Redsync
	expiry time.Duration
}

// NewRedis returns a Locker backed by client. A non-positive expiry uses DefaultExpiry.
func NewRedis(client goredislib.UniversalClient, expiry time.Duration) (*Redis, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if expiry <= 0 {
		expiry = DefaultExpiry
	}

	return &Redis{rs: redsync.New(goredis.NewPool(client)), expiry: expiry}, nil
}

// TryLock implements Locker. It makes a single acquisition attempt.
func (r *Redis) TryLock(ctx context.Context, account string) (Handle, error) {
	if strings.TrimSpace(account) == "" {
		return nil, ErrEmptyAccount
	}

	mutex := r.rs.NewMutex(keyPrefix+account,
		redsync.WithExpiry(r.expiry),
		redsync.WithTries(1),
	)
	if err := mutex.LockContext(ctx); err != nil {
		if contended(err) {
			return nil, fmt.Errorf("%s: %w", account, ErrBusy)
		}

		return nil, fmt.Errorf("failed to lock account %s: %w", account, err)
	}

	return &redisHandle{mutex: mutex}, nil
}

type redisHandle struct {
	mutex *redsync.Mutex
}

func (h *redisHandle) Unlock(ctx context.Context) error {
	ok, err := h.mutex.UnlockContext(ctx)
	switch {
	case !ok && err != nil:
		return fmt.Errorf("unlock %s: %w", h.mutex.Name(), errors.Join(ErrNotHeld, err))
	case !ok:
		return ErrNotHeld
	case err != nil:
		return fmt.Errorf("unlock %s: %w", h.mutex.Name(), err)
	default:
		return nil
	}
}

// contended reports whether err means the lock is held elsewhere, as opposed to a connection
// failure or cancellation.
func contended(err error) bool {
	var taken *redsync.ErrTaken
	if errors.Is(err, redsync.ErrFailed) || errors.As(err, &taken) {
		return true
	}

	return strings.Contains(err.Error(), "lock already taken")
}
