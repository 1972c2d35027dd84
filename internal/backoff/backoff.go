// Package backoff holds the pure delay math used by the retry client.
// Nothing here sleeps except SleepWithContext, so the policy can be tested
// without timers.
package backoff

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/tinytelemetry/mcqpdf/internal/model"
)

const maxShift = 62

// Policy describes exponential backoff with additive jitter and a ceiling.
type Policy struct {
	Base      time.Duration
	Max       time.Duration
	JitterMax time.Duration
}

// DefaultPolicy is 1s doubling, up to 1s of jitter, capped at 30s.
func DefaultPolicy() Policy {
	return Policy{
		Base:      model.RetryBaseDelay,
		Max:       model.RetryMaxDelay,
		JitterMax: model.RetryJitterMax,
	}
}

// Exponential returns base * 2^attempt, saturating instead of overflowing.
// Negative attempts are treated as 0.
func Exponential(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	if attempt < 0 {
		attempt = 0
	} else if attempt > maxShift {
		attempt = maxShift
	}

	multiplier := int64(1) << attempt
	if int64(base) > math.MaxInt64/multiplier {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(int64(base) * multiplier)
}

// Jitter returns a uniformly distributed duration in [0, limit).
func Jitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(limit)))
}

// Delay computes min(Base*2^attempt + jitter, Max) for the given attempt
// index. jitter is passed in so callers and tests control randomness.
func (p Policy) Delay(attempt int, jitter time.Duration) time.Duration {
	if jitter < 0 {
		jitter = 0
	}
	d := Exponential(p.Base, attempt)
	if d > math.MaxInt64-jitter {
		d = time.Duration(math.MaxInt64)
	} else {
		d += jitter
	}
	if p.Max > 0 && d > p.Max {
		return p.Max
	}
	return d
}

// NextDelay is Delay under DefaultPolicy with a freshly drawn jitter.
func NextDelay(attempt int) time.Duration {
	p := DefaultPolicy()
	return p.Delay(attempt, Jitter(p.JitterMax))
}

// SleepWithContext waits for d or until ctx is done, whichever is first.
func SleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context done: %w", ctx.Err())
	}
}
