// Package schedule holds the timing policies injected into the broadcaster and the
// confirmation tracker.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/avast/retry-go/v4"
)

// Policy describes a bounded series of attempts. The n-th wait (0-indexed) is
// Interval * Multiplier^n, capped at MaxDelay when MaxDelay is set.
type Policy struct {
	Interval    time.Duration `json:"interval" yaml:"interval"`
	Multiplier  float64       `json:"multiplier" yaml:"multiplier"`
	MaxAttempts uint          `json:"maxAttempts" yaml:"maxAttempts"`
	MaxDelay    time.Duration `json:"maxDelay" yaml:"maxDelay"`
}

// DefaultRetry is the policy for transient submission errors.
func DefaultRetry() Policy {
	return Policy{
		Interval:    time.Second,
		Multiplier:  2,
		MaxAttempts: 3,
		MaxDelay:    30 * time.Second,
	}
}

// DefaultPoll is the policy for confirmation polling: 30 queries, 10 seconds apart.
func DefaultPoll() Policy {
	return Policy{
		Interval:    10 * time.Second,
		Multiplier:  1,
		MaxAttempts: 30,
	}
}

// Validate checks the policy is usable.
func (p Policy) Validate() error {
	var errs []error
	if p.MaxAttempts == 0 {
		errs = append(errs, errors.New("max attempts must be at least 1"))
	}
	if p.Interval < 0 {
		errs = append(errs, fmt.Errorf("interval must not be negative, got %s", p.Interval))
	}
	if p.Multiplier != 0 && p.Multiplier < 1 {
		errs = append(errs, fmt.Errorf("multiplier must be at least 1, got %v", p.Multiplier))
	}
	if p.MaxDelay < 0 {
		errs = append(errs, fmt.Errorf("max delay must not be negative, got %s", p.MaxDelay))
	}

	return errors.Join(errs...)
}

// Delay returns the wait before attempt n+1, after n+1 attempts were made.
func (p Policy) Delay(n uint) time.Duration {
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}

	d := float64(p.Interval) * math.Pow(mult, float64(n))
	if d > math.MaxInt64 {
		d = math.MaxInt64
	}
	delay := time.Duration(d)
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}

	return delay
}

// RetryOptions returns the retry-go options implementing the policy. Only the last error is
// reported when attempts run out.
func (p Policy) RetryOptions(ctx context.Context) []retry.Option {
	return []retry.Option{
		retry.Context(ctx),
		retry.Attempts(p.MaxAttempts),
		retry.Delay(p.Interval),
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			return p.Delay(n)
		}),
		retry.LastErrorOnly(true),
	}
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
