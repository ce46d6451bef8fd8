package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawcontrol/pawsync/internal/cycle"
	"github.com/pawcontrol/pawsync/internal/errors"
	"github.com/pawcontrol/pawsync/internal/metrics"
	"github.com/pawcontrol/pawsync/internal/polling"
)

type fakeCoordinator struct {
	mu       sync.Mutex
	snap     metrics.OperationalSnapshot
	changed  []string
	known    map[string]bool
	requests map[string]int
}

func newFakeCoordinator() *fakeCoordinator {
	return &fakeCoordinator{
		snap:     metrics.OperationalSnapshot{Dogs: 2, Polling: polling.Diagnostics{CurrentIntervalMS: 1000}},
		changed:  []string{"rex.gps"},
		known:    map[string]bool{"rex": true, "bella": true},
		requests: make(map[string]int),
	}
}

func (f *fakeCoordinator) OperationalSnapshot() metrics.OperationalSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeCoordinator) ChangedEntities() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.changed
}

func (f *fakeCoordinator) RequestRefresh(dogID string, priority int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.known[dogID] {
		return errors.NewNotFoundError("dog", dogID)
	}
	f.requests[dogID] = priority
	return nil
}

func (f *fakeCoordinator) priority(dogID string) (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.requests[dogID]
	return p, ok
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		snap       metrics.OperationalSnapshot
		wantStatus int
		wantBody   string
	}{
		{"no_cycle_yet", metrics.OperationalSnapshot{}, http.StatusOK, "ok"},
		{"error_streak", metrics.OperationalSnapshot{Polling: polling.Diagnostics{ErrorStreak: 3}}, http.StatusServiceUnavailable, "degraded"},
		{
			"all_failed",
			metrics.OperationalSnapshot{LastCycle: &cycle.RuntimeCycleInfo{DogCount: 2, Errors: 2}},
			http.StatusServiceUnavailable,
			"degraded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			coord := newFakeCoordinator()
			coord.snap = tt.snap
			srv := New(":0", coord)

			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantBody, body["status"])
		})
	}
}

func TestDiagnostics(t *testing.T) {
	srv := New(":0", newFakeCoordinator())

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/diagnostics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var snap metrics.OperationalSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, 2, snap.Dogs)
	assert.Equal(t, 1000.0, snap.Polling.CurrentIntervalMS)
}

func TestChanges(t *testing.T) {
	coord := newFakeCoordinator()
	srv := New(":0", coord)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/changes", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"entities":["rex.gps"]}`, w.Body.String())

	coord.mu.Lock()
	coord.changed = nil
	coord.mu.Unlock()
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/changes", nil))
	assert.JSONEq(t, `{"entities":[]}`, w.Body.String())
}

func TestRefresh(t *testing.T) {
	tests := []struct {
		name         string
		method       string
		url          string
		wantStatus   int
		wantPriority int
	}{
		{"default_priority", http.MethodPost, "/dogs/rex/refresh", http.StatusAccepted, 1},
		{"explicit_priority", http.MethodPost, "/dogs/rex/refresh?priority=10", http.StatusAccepted, 10},
		{"trailing_slash", http.MethodPost, "/dogs/rex/refresh/", http.StatusAccepted, 1},
		{"unknown_dog", http.MethodPost, "/dogs/ghost/refresh", http.StatusNotFound, -1},
		{"bad_priority", http.MethodPost, "/dogs/rex/refresh?priority=high", http.StatusBadRequest, -1},
		{"negative_priority", http.MethodPost, "/dogs/rex/refresh?priority=-2", http.StatusBadRequest, -1},
		{"wrong_method", http.MethodGet, "/dogs/rex/refresh", http.StatusMethodNotAllowed, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			coord := newFakeCoordinator()
			srv := New(":0", coord)

			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, httptest.NewRequest(tt.method, tt.url, nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			p, ok := coord.priority("rex")
			if tt.wantPriority < 0 {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.wantPriority, p)
		})
	}
}

func TestMetricsRoute(t *testing.T) {
	withMetrics := New(":0", newFakeCoordinator(), WithMetricsHandler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("pawsync_cycle_total 1\n"))
	})))
	w := httptest.NewRecorder()
	withMetrics.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "pawsync_cycle_total"))

	without := New(":0", newFakeCoordinator())
	w = httptest.NewRecorder()
	without.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestClient(t *testing.T) {
	coord := newFakeCoordinator()
	ts := httptest.NewServer(New(":0", coord).Handler())
	defer ts.Close()

	client := NewClient(ts.URL)
	ctx := context.Background()

	snap, err := client.Diagnostics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Dogs)

	changes, err := client.Changes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"rex.gps"}, changes)

	require.NoError(t, client.Refresh(ctx, "bella", 7))
	p, _ := coord.priority("bella")
	assert.Equal(t, 7, p)

	err = client.Refresh(ctx, "ghost", 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrDogNotFound))
}

func TestClient_BareAddress(t *testing.T) {
	ts := httptest.NewServer(New(":0", newFakeCoordinator()).Handler())
	defer ts.Close()

	client := NewClient(strings.TrimPrefix(ts.URL, "http://"))
	_, err := client.Diagnostics(context.Background())
	require.NoError(t, err)
}

func TestStartShutdown(t *testing.T) {
	srv := New("127.0.0.1:0", newFakeCoordinator())
	require.NoError(t, srv.Start())
	assert.NotEqual(t, "127.0.0.1:0", srv.Addr())

	changes, err := NewClient(srv.Addr()).Changes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"rex.gps"}, changes)

	require.NoError(t, srv.Shutdown(context.Background()))
}
