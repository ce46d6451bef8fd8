// Package resilience wraps upstream fetches in retries with exponential
// backoff, a per-key circuit breaker and a shared token-bucket rate limit.
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/time/rate"

	"github.com/pawcontrol/pawsync/internal/cycle"
	"github.com/pawcontrol/pawsync/internal/errors"
	"github.com/pawcontrol/pawsync/internal/jsonvalue"
	"github.com/pawcontrol/pawsync/internal/logging"
)

// Default executor values.
const (
	defaultMaxAttempts      = 3
	defaultBaseBackoff      = 100 * time.Millisecond
	defaultMaxBackoff       = 2 * time.Second
	defaultBreakerThreshold = 5
	defaultBreakerCooldown  = 30 * time.Second
)

// Option configures an Executor.
type Option func(*Executor)

// WithMaxAttempts sets the attempts per call, including the first.
func WithMaxAttempts(n int) Option {
	return func(e *Executor) { e.maxAttempts = n }
}

// WithBackoff sets the first retry delay and the delay ceiling.
func WithBackoff(base, ceiling time.Duration) Option {
	return func(e *Executor) {
		e.baseBackoff = base
		e.maxBackoff = ceiling
	}
}

// WithBreaker sets the consecutive-failure threshold and open duration.
// A threshold of 0 disables circuit breaking.
func WithBreaker(threshold int, cooldown time.Duration) Option {
	return func(e *Executor) {
		e.breakerThreshold = threshold
		e.breakerCooldown = cooldown
	}
}

// WithRateLimit limits attempts across all keys to perSecond with the given
// burst. perSecond <= 0 disables limiting.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(e *Executor) {
		if perSecond <= 0 {
			e.limiter = nil
			return
		}
		e.limiter = rate.NewLimiter(rate.Limit(perSecond), max(burst, 1))
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Executor) { e.logger = logging.OrNop(l) }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// Executor implements cycle.Executor. It is safe for concurrent use.
type Executor struct {
	maxAttempts      int
	baseBackoff      time.Duration
	maxBackoff       time.Duration
	breakerThreshold int
	breakerCooldown  time.Duration
	limiter          *rate.Limiter
	logger           *logging.Logger
	now              func() time.Time

	mu       sync.Mutex
	breakers map[string]*breaker
	attempts *Attempts
}

var _ cycle.Executor = (*Executor)(nil)

// New creates an Executor.
func New(opts ...Option) *Executor {
	e := &Executor{
		maxAttempts:      defaultMaxAttempts,
		baseBackoff:      defaultBaseBackoff,
		maxBackoff:       defaultMaxBackoff,
		breakerThreshold: defaultBreakerThreshold,
		breakerCooldown:  defaultBreakerCooldown,
		logger:           logging.NopLogger(),
		now:              time.Now,
		breakers:         make(map[string]*breaker),
		attempts:         NewAttempts(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.maxAttempts < 1 {
		e.maxAttempts = 1
	}
	e.logger = e.logger.WithComponent("resilience")
	return e
}

func (e *Executor) breakerFor(key string) *breaker {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.breakers[key]
	if !ok {
		b = newBreaker(e.breakerThreshold, e.breakerCooldown)
		e.breakers[key] = b
	}
	return b
}

// Execute runs fn, retrying retryable errors with exponential backoff.
// Calls on a key whose breaker is open fail fast with errors.ErrCircuitOpen.
func (e *Executor) Execute(ctx context.Context, key string, fn cycle.FetchFunc) (jsonvalue.Value, error) {
	b := e.breakerFor(key)
	if !b.allow(e.now()) {
		err := errors.NewFetchError("call rejected", errors.ErrCircuitOpen)
		e.attempts.RecordCall(key, 0, err, e.now())
		return jsonvalue.Value{}, err
	}

	var (
		attempt int
		limited bool
	)
	op := func() (jsonvalue.Value, error) {
		attempt++
		if e.limiter != nil {
			if werr := e.limiter.Wait(ctx); werr != nil {
				limited = true
				return jsonvalue.Value{}, backoff.Permanent(errors.NewFetchError("rate limit wait", werr))
			}
		}
		v, err := fn(ctx)
		if err != nil && (ctx.Err() != nil || !errors.IsRetryable(err)) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}

	v, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(e.newBackOff()),
		backoff.WithMaxTries(uint(e.maxAttempts)),
		backoff.WithNotify(func(err error, delay time.Duration) {
			e.logger.Debug("retrying fetch", "key", key, "attempt", attempt, "delay_ms", delay.Milliseconds(), "error", err)
		}),
	)
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Unwrap()
	}

	switch {
	case err == nil:
		b.success()
	case ctx.Err() != nil || limited:
		b.release()
	default:
		b.failure(e.now())
		if b.current() == BreakerOpen {
			e.logger.Warn("circuit opened", "key", key, "error", err)
		}
	}
	e.attempts.RecordCall(key, attempt, err, e.now())
	return v, err
}

// newBackOff returns the retry schedule for one call: base, doubling up to
// the ceiling, without jitter.
func (e *Executor) newBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.baseBackoff
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	if e.maxBackoff > 0 {
		bo.MaxInterval = e.maxBackoff
	}
	return bo
}

// BreakerState returns the breaker state for key; keys never called are
// closed.
func (e *Executor) BreakerState(key string) BreakerState {
	e.mu.Lock()
	b, ok := e.breakers[key]
	e.mu.Unlock()
	if !ok {
		return BreakerClosed
	}
	return b.current()
}

// OpenBreakers returns the number of breakers currently open.
func (e *Executor) OpenBreakers() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, b := range e.breakers {
		if b.current() == BreakerOpen {
			n++
		}
	}
	return n
}

// Attempts exposes per-key call statistics.
func (e *Executor) Attempts() *Attempts { return e.attempts }

// FailingKeys returns the sorted keys whose most recent call failed.
func (e *Executor) FailingKeys() []string { return e.attempts.Failing() }
