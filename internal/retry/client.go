// Package retry implements the resilient request client: bounded
// exponential backoff around a single outbound call, plus a cached
// best-effort health probe.
package retry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tinytelemetry/mcqpdf/internal/backoff"
	"github.com/tinytelemetry/mcqpdf/internal/model"
)

// ErrRetriesExhausted is wrapped into the error returned once every
// attempt has failed.
var ErrRetriesExhausted = errors.New("retry: attempts exhausted")

// Operation is one attempt of an outbound call.
type Operation func(ctx context.Context) error

// RetryObserver is notified after each failed attempt that will be retried.
type RetryObserver func(label string, state model.RetryState, err error)

// Client owns the retry counter and the health probe cache for one session.
// A fresh Client is created whenever the session is reset.
type Client struct {
	mu          sync.Mutex
	attempts    int
	maxAttempts int
	cache       *model.HealthSnapshot

	// probeMu serializes probes so concurrent callers share one request.
	probeMu      sync.Mutex
	prober       model.HealthProber
	probeTimeout time.Duration
	cacheTTL     time.Duration

	policy  backoff.Policy
	logger  *zap.Logger
	onRetry RetryObserver

	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() time.Duration
	now    func() time.Time
}

// Option customizes a Client.
type Option func(*Client)

// WithLogger sets the diagnostics logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithPolicy replaces the backoff policy.
func WithPolicy(p backoff.Policy) Option {
	return func(c *Client) { c.policy = p }
}

// WithMaxAttempts sets how many retries follow the initial attempt.
func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxAttempts = n
		}
	}
}

// WithProber sets the out-of-band health probe target.
func WithProber(p model.HealthProber) Option {
	return func(c *Client) { c.prober = p }
}

// WithProbeTimeout bounds a single health probe.
func WithProbeTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.probeTimeout = d
		}
	}
}

// WithCacheTTL sets how long a probe result is reused.
func WithCacheTTL(d time.Duration) Option {
	return func(c *Client) { c.cacheTTL = d }
}

// WithRetryObserver registers a callback for mid-flight retry updates.
func WithRetryObserver(fn RetryObserver) Option {
	return func(c *Client) { c.onRetry = fn }
}

// WithSleep replaces the backoff wait.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) {
		if fn != nil {
			c.sleep = fn
		}
	}
}

// WithJitter replaces the jitter source.
func WithJitter(fn func() time.Duration) Option {
	return func(c *Client) {
		if fn != nil {
			c.jitter = fn
		}
	}
}

// WithClock replaces the clock used for probe cache freshness.
func WithClock(fn func() time.Time) Option {
	return func(c *Client) {
		if fn != nil {
			c.now = fn
		}
	}
}

// New creates a Client with the default policy: 8 retries, 1s base delay
// doubling per attempt, up to 1s jitter, capped at 30s.
func New(opts ...Option) *Client {
	c := &Client{
		maxAttempts:  model.MaxRetryAttempts,
		probeTimeout: model.HealthProbeTimeout,
		cacheTTL:     model.HealthCacheTTL,
		policy:       backoff.DefaultPolicy(),
		logger:       zap.NewNop(),
		sleep:        backoff.SleepWithContext,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.jitter == nil {
		limit := c.policy.JitterMax
		c.jitter = func() time.Duration { return backoff.Jitter(limit) }
	}
	return c
}

// Status returns the current retry counter. It never mutates state.
func (c *Client) Status() model.RetryState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return model.NewRetryState(c.attempts, c.maxAttempts)
}

// Execute runs op until it succeeds, fails permanently, or the retry
// budget is spent. label only appears in diagnostics.
func (c *Client) Execute(ctx context.Context, label string, op Operation) error {
	c.setAttempts(0)

	for {
		err := op(ctx)
		if err == nil {
			c.setAttempts(0)
			return nil
		}

		attempts := c.Status().AttemptsMade
		c.logger.Warn("attempt failed",
			zap.String("context", label),
			zap.Int("attempt", attempts+1),
			zap.Error(err),
		)

		if ctx.Err() != nil {
			return err
		}

		if Classify(err) == Permanent {
			return err
		}

		if attempts >= c.maxAttempts {
			c.logger.Error("all attempts failed",
				zap.String("context", label),
				zap.Int("attempts", attempts+1),
			)
			return fmt.Errorf("%s: %w: %w", label, ErrRetriesExhausted, err)
		}

		delay := c.policy.Delay(attempts, c.jitter())
		state := c.increment()
		c.logger.Info("retrying",
			zap.String("context", label),
			zap.Duration("delay", delay),
			zap.Int("next_attempt", state.AttemptsMade+1),
			zap.Int("total_attempts", c.maxAttempts+1),
		)
		if c.onRetry != nil {
			c.onRetry(label, state, err)
		}

		if serr := c.sleep(ctx, delay); serr != nil {
			return fmt.Errorf("%s: %w", label, serr)
		}
	}
}

// Do is Execute for operations that produce a value.
func Do[T any](ctx context.Context, c *Client, label string, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := c.Execute(ctx, label, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// Timeout bounds every attempt of op with its own deadline.
func Timeout(d time.Duration, op Operation) Operation {
	return func(ctx context.Context) error {
		actx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return op(actx)
	}
}

// ProbeHealth returns the cached browser status when it is younger than
// the cache TTL, otherwise probes once. It returns nil on failure and never
// propagates errors: callers use it as a fallback while handling other
// failures.
func (c *Client) ProbeHealth(ctx context.Context) *model.BrowserStatus {
	if c.prober == nil {
		return nil
	}

	c.probeMu.Lock()
	defer c.probeMu.Unlock()

	now := c.now()
	c.mu.Lock()
	cached := c.cache
	c.mu.Unlock()
	if cached != nil && now.Sub(cached.FetchedAt) < c.cacheTTL {
		status := cached.Status
		return &status
	}

	pctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	status, err := c.prober.BrowserStatus(pctx)
	if err != nil {
		c.logger.Warn("browser status check failed", zap.Error(err))
		return nil
	}

	c.mu.Lock()
	c.cache = &model.HealthSnapshot{Status: status, FetchedAt: now}
	c.mu.Unlock()
	return &status
}

func (c *Client) setAttempts(n int) {
	c.mu.Lock()
	c.attempts = n
	c.mu.Unlock()
}

func (c *Client) increment() model.RetryState {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts++
	return model.NewRetryState(c.attempts, c.maxAttempts)
}
