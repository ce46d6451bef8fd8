package cycle

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawcontrol/pawsync/internal/errors"
	"github.com/pawcontrol/pawsync/internal/jsonvalue"
)

type mapRegistry map[string]DogConfig

func (r mapRegistry) Lookup(id string) (DogConfig, error) {
	cfg, ok := r[id]
	if !ok {
		return DogConfig{}, errors.NewNotFoundError("dog", id)
	}
	return cfg, nil
}

// fakePlanner returns one fetch per module; a module listed in fail errors.
type fakePlanner struct {
	fail  map[string]bool // "dog/module"
	calls atomic.Int32
	block chan struct{}
}

func (p *fakePlanner) Plan(cfg DogConfig) []Fetch {
	var out []Fetch
	for _, m := range cfg.Modules {
		key := cfg.ID + "/" + m
		out = append(out, Fetch{Module: m, Do: func(ctx context.Context) (jsonvalue.Value, error) {
			p.calls.Add(1)
			if p.block != nil {
				select {
				case <-p.block:
				case <-ctx.Done():
					return jsonvalue.Value{}, ctx.Err()
				}
			}
			if p.fail[key] {
				return jsonvalue.Value{}, fmt.Errorf("upstream down for %s", key)
			}
			return jsonvalue.FromObject(jsonvalue.Object{"source": jsonvalue.String(key)}), nil
		}})
	}
	return out
}

type recordingMetrics struct {
	mu    sync.Mutex
	calls []struct {
		success bool
		ratio   float64
	}
}

func (m *recordingMetrics) NextInterval(_ time.Duration, success bool, ratio float64) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, struct {
		success bool
		ratio   float64
	}{success, ratio})
	return 750 * time.Millisecond
}

func registry() mapRegistry {
	return mapRegistry{
		"rex":   {ID: "rex", Modules: []string{"gps", "feeding"}},
		"bella": {ID: "bella", Modules: []string{"gps"}},
		"max":   {ID: "max", Modules: []string{"walk"}},
	}
}

func fixedID() func() string { return func() string { return "cycle-1" } }

func TestExecuteAllSucceed(t *testing.T) {
	metrics := &recordingMetrics{}
	o := New(registry(), &fakePlanner{}, nil, metrics, WithIDGenerator(fixedID()))

	snap, info, err := o.Execute(context.Background(), []string{"rex", "bella", "max"},
		func(id string) jsonvalue.Object {
			return jsonvalue.Object{"dog_id": jsonvalue.String(id)}
		})
	require.NoError(t, err)

	assert.Equal(t, []string{"bella", "max", "rex"}, snap.IDs())
	assert.Len(t, snap["rex"], 3, "two modules plus the base payload")
	src, _ := snap["rex"]["gps"].Get("source")
	assert.Equal(t, `"rex/gps"`, src.String())

	assert.Equal(t, "cycle-1", info.CycleID)
	assert.Equal(t, 3, info.DogCount)
	assert.Zero(t, info.Errors)
	assert.Equal(t, 1.0, info.SuccessRate)
	assert.True(t, info.Success)
	assert.Equal(t, 750*time.Millisecond, info.NewInterval)
	require.Len(t, metrics.calls, 1)
	assert.True(t, metrics.calls[0].success)
}

func TestExecutePartialFailureIsolated(t *testing.T) {
	metrics := &recordingMetrics{}
	planner := &fakePlanner{fail: map[string]bool{"rex/feeding": true}}
	o := New(registry(), planner, nil, metrics)

	snap, info, err := o.Execute(context.Background(), []string{"rex", "bella", "max", "ghost"}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"bella", "max"}, snap.IDs())
	assert.Equal(t, 4, info.DogCount)
	assert.Equal(t, 2, info.Errors)
	assert.Equal(t, []string{"rex", "ghost"}, info.FailedDogs)
	assert.Equal(t, 0.5, info.SuccessRate)
	assert.Equal(t, 0.5, info.ErrorRatio)
	assert.False(t, info.Success)
	require.Len(t, metrics.calls, 1)
	assert.False(t, metrics.calls[0].success)
	assert.Equal(t, 0.5, metrics.calls[0].ratio)
}

func TestExecuteNoDogs(t *testing.T) {
	o := New(registry(), &fakePlanner{}, nil, nil)
	for _, ids := range [][]string{nil, {}, {""}} {
		_, _, err := o.Execute(context.Background(), ids, nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrNoDogs))

		var ce *errors.CycleError
		assert.True(t, errors.As(err, &ce))
	}
}

func TestExecuteAllFailed(t *testing.T) {
	metrics := &recordingMetrics{}
	o := New(registry(), &fakePlanner{}, nil, metrics)

	_, info, err := o.Execute(context.Background(), []string{"ghost", "phantom"}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrAllDogsFailed))
	assert.True(t, errors.Is(err, errors.ErrDogNotFound), "last dog error is wrapped")
	assert.Equal(t, 2, info.Errors)
	assert.Empty(t, metrics.calls, "failed cycles are recorded by the caller")

	var ce *errors.CycleError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 2, ce.Failed)
	assert.Equal(t, 2, ce.Total)
}

func TestExecuteCancellationPropagates(t *testing.T) {
	planner := &fakePlanner{block: make(chan struct{})}
	o := New(registry(), planner, nil, &recordingMetrics{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, _, err := o.Execute(ctx, []string{"rex", "bella"}, nil)
		done <- err
	}()

	require.Eventually(t, func() bool { return planner.calls.Load() > 0 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled))
		assert.False(t, errors.Is(err, errors.ErrAllDogsFailed))
	case <-time.After(2 * time.Second):
		t.Fatal("Execute did not return after cancellation")
	}
}

func TestExecuteRoutesThroughExecutor(t *testing.T) {
	var mu sync.Mutex
	var keys []string
	exec := ExecutorFunc(func(ctx context.Context, key string, fn FetchFunc) (jsonvalue.Value, error) {
		mu.Lock()
		keys = append(keys, key)
		mu.Unlock()
		return fn(ctx)
	})

	o := New(registry(), &fakePlanner{}, exec, nil, WithMaxConcurrency(1))
	_, info, err := o.Execute(context.Background(), []string{"rex", "rex", "max"}, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, info.DogCount, "duplicate ids are polled once")
	assert.ElementsMatch(t, []string{"rex/gps", "rex/feeding", "max/walk"}, keys)
	assert.Zero(t, info.NewInterval, "no metrics collector configured")
}

func TestExecuteDoesNotMutateEmptyPayload(t *testing.T) {
	base := jsonvalue.Object{"status": jsonvalue.String("unknown")}
	o := New(registry(), &fakePlanner{}, nil, nil)

	_, _, err := o.Execute(context.Background(), []string{"bella"}, func(string) jsonvalue.Object { return base })
	require.NoError(t, err)
	assert.Len(t, base, 1)
}
