package resilience

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawcontrol/pawsync/internal/errors"
	"github.com/pawcontrol/pawsync/internal/jsonvalue"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *clock { return &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)} }

// flaky fails the first n calls with err, then succeeds.
func flaky(n int32, err error) (func(context.Context) (jsonvalue.Value, error), *atomic.Int32) {
	var calls atomic.Int32
	return func(context.Context) (jsonvalue.Value, error) {
		if calls.Add(1) <= n {
			return jsonvalue.Value{}, err
		}
		return jsonvalue.String("ok"), nil
	}, &calls
}

func retryable() error {
	return errors.NewFetchError("upstream", nil).WithStatus(503)
}

func TestExecuteRetriesRetryableErrors(t *testing.T) {
	e := New(WithBackoff(time.Millisecond, 2*time.Millisecond), WithRateLimit(0, 0))
	fn, calls := flaky(2, retryable())

	v, err := e.Execute(context.Background(), "rex/gps", fn)
	require.NoError(t, err)
	s, _ := v.AsString()
	assert.Equal(t, "ok", s)
	assert.Equal(t, int32(3), calls.Load())

	st, ok := e.Attempts().State("rex/gps")
	require.True(t, ok)
	assert.Equal(t, 1, st.Calls)
	assert.Equal(t, 3, st.Attempts)
	assert.Zero(t, st.Failures)
	assert.False(t, st.LastSuccess.IsZero())
}

func TestExecuteGivesUpAfterMaxAttempts(t *testing.T) {
	e := New(WithMaxAttempts(2), WithBackoff(time.Millisecond, time.Millisecond))
	fn, calls := flaky(10, retryable())

	_, err := e.Execute(context.Background(), "rex/gps", fn)
	require.Error(t, err)
	assert.Equal(t, int32(2), calls.Load())

	st, _ := e.Attempts().State("rex/gps")
	assert.Equal(t, 2, st.Attempts)
	assert.Equal(t, 1, st.Failures)
	assert.Equal(t, []string{"rex/gps"}, e.Attempts().Failing())
}

func TestExecuteDoesNotRetryPermanentErrors(t *testing.T) {
	e := New(WithBackoff(time.Millisecond, time.Millisecond))
	fn, calls := flaky(10, errors.NewFetchError("missing", nil).WithStatus(404))

	_, err := e.Execute(context.Background(), "rex/gps", fn)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestBreakerOpensAndRecovers(t *testing.T) {
	clk := newClock()
	e := New(
		WithMaxAttempts(1),
		WithBreaker(2, 10*time.Second),
		WithClock(clk.now),
	)
	failing, calls := flaky(100, fmt.Errorf("boom"))

	for range 2 {
		_, err := e.Execute(context.Background(), "rex/gps", failing)
		require.Error(t, err)
	}
	assert.Equal(t, BreakerOpen, e.BreakerState("rex/gps"))
	assert.Equal(t, 1, e.OpenBreakers())

	_, err := e.Execute(context.Background(), "rex/gps", failing)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCircuitOpen))
	assert.Equal(t, int32(2), calls.Load(), "open breaker rejects without calling")

	assert.Equal(t, BreakerClosed, e.BreakerState("bella/gps"), "keys are independent")

	clk.advance(11 * time.Second)
	ok, _ := flaky(0, nil)
	_, err = e.Execute(context.Background(), "rex/gps", ok)
	require.NoError(t, err)
	assert.Equal(t, BreakerClosed, e.BreakerState("rex/gps"))
}

func TestBreakerFailedTrialReopens(t *testing.T) {
	clk := newClock()
	e := New(WithMaxAttempts(1), WithBreaker(1, time.Second), WithClock(clk.now))
	failing, _ := flaky(100, fmt.Errorf("boom"))

	_, _ = e.Execute(context.Background(), "k", failing)
	require.Equal(t, BreakerOpen, e.BreakerState("k"))

	clk.advance(2 * time.Second)
	_, err := e.Execute(context.Background(), "k", failing)
	require.Error(t, err)
	assert.False(t, errors.Is(err, errors.ErrCircuitOpen), "trial call went through")
	assert.Equal(t, BreakerOpen, e.BreakerState("k"))
}

func TestBreakerDisabled(t *testing.T) {
	e := New(WithMaxAttempts(1), WithBreaker(0, time.Second))
	failing, calls := flaky(100, fmt.Errorf("boom"))
	for range 10 {
		_, _ = e.Execute(context.Background(), "k", failing)
	}
	assert.Equal(t, int32(10), calls.Load())
	assert.Equal(t, BreakerClosed, e.BreakerState("k"))
}

func TestExecuteCanceledDuringBackoff(t *testing.T) {
	e := New(WithBackoff(time.Hour, time.Hour), WithBreaker(1, time.Minute))
	ctx, cancel := context.WithCancel(context.Background())
	fn := func(context.Context) (jsonvalue.Value, error) {
		cancel()
		return jsonvalue.Value{}, retryable()
	}

	done := make(chan error, 1)
	go func() {
		_, err := e.Execute(ctx, "k", fn)
		done <- err
	}()
	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Execute did not return after cancellation")
	}
	assert.Equal(t, BreakerClosed, e.BreakerState("k"), "cancellation is not an upstream failure")
}

func TestBackoffDoublesUpToCeiling(t *testing.T) {
	e := New(WithBackoff(100*time.Millisecond, 350*time.Millisecond))
	bo := e.newBackOff()

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		350 * time.Millisecond,
		350 * time.Millisecond,
		350 * time.Millisecond,
	}
	for i, w := range want {
		assert.Equal(t, w, bo.NextBackOff(), "retry %d", i+1)
	}
}

func TestExecuteSingleAttemptReturnsPlainError(t *testing.T) {
	e := New(WithMaxAttempts(1))
	cause := errors.NewFetchError("missing", nil).WithStatus(404)
	fn, calls := flaky(10, cause)

	_, err := e.Execute(context.Background(), "rex/gps", fn)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, cause.Error(), err.Error())

	var fe *errors.FetchError
	assert.True(t, errors.As(err, &fe))
}

func TestRateLimitWaitHonorsContext(t *testing.T) {
	e := New(WithRateLimit(0.001, 1), WithMaxAttempts(1))
	ok, calls := flaky(0, nil)

	_, err := e.Execute(context.Background(), "a", ok)
	require.NoError(t, err, "burst admits the first call")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = e.Execute(ctx, "b", ok)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestAttemptsReset(t *testing.T) {
	a := NewAttempts()
	now := time.Now()
	a.RecordCall("b", 1, fmt.Errorf("x"), now)
	a.RecordCall("a", 1, nil, now)

	states := a.States()
	require.Len(t, states, 2)
	assert.Equal(t, "a", states[0].Key)
	assert.Equal(t, "x", states[1].LastError)

	a.Reset("a")
	_, ok := a.State("a")
	assert.False(t, ok)

	a.ResetAll()
	assert.Empty(t, a.States())
}

func TestBreakerStateString(t *testing.T) {
	assert.Equal(t, "closed", BreakerClosed.String())
	assert.Equal(t, "open", BreakerOpen.String())
	assert.Equal(t, "half-open", BreakerHalfOpen.String())
	assert.Equal(t, "unknown", BreakerState(9).String())
}
