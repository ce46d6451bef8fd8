package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawcontrol/pawsync/internal/errors"
	"github.com/pawcontrol/pawsync/internal/jsonvalue"
)

func newServer(t *testing.T, h http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewHTTPClient(srv.URL+"/api/", WithTimeout(2*time.Second))
	require.NoError(t, err)
	return c
}

func TestFetchDecodesPayload(t *testing.T) {
	var gotPath, gotAccept string
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"lat":52.5,"lon":13.4,"fix":true,"tags":["a"]}`))
	})

	v, err := c.Fetch(context.Background(), "rex", "gps")
	require.NoError(t, err)
	assert.Equal(t, "/api/dogs/rex/gps", gotPath)
	assert.Equal(t, "application/json", gotAccept)

	obj, ok := v.AsObject()
	require.True(t, ok)
	assert.Equal(t, []string{"fix", "lat", "lon", "tags"}, obj.Keys())
	assert.True(t, jsonvalue.Equal(jsonvalue.Number(52.5), obj["lat"]))
}

func TestFetchStatusErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		retryable bool
	}{
		{"not found", http.StatusNotFound, false},
		{"bad request", http.StatusBadRequest, false},
		{"rate limited", http.StatusTooManyRequests, true},
		{"server error", http.StatusInternalServerError, true},
		{"unavailable", http.StatusServiceUnavailable, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "nope", tt.status)
			})

			_, err := c.Fetch(context.Background(), "rex", "gps")
			require.Error(t, err)
			assert.Equal(t, tt.retryable, errors.IsRetryable(err))
			assert.True(t, errors.Is(err, errors.ErrUnexpectedStatus))

			var fe *errors.FetchError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, tt.status, fe.Status)
			assert.Equal(t, "rex", fe.DogID)
			assert.Equal(t, "gps", fe.Module)
		})
	}
}

func TestFetchNoContentIsNull(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	v, err := c.Fetch(context.Background(), "rex", "walk")
	require.NoError(t, err)
	assert.True(t, v.IsNull())
}

func TestFetchMalformedBody(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"lat":`))
	})
	_, err := c.Fetch(context.Background(), "rex", "gps")
	require.Error(t, err)
	assert.False(t, errors.IsRetryable(err))
}

func TestFetchCanceled(t *testing.T) {
	release := make(chan struct{})
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Fetch(ctx, "rex", "gps")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestURLEscapesSegments(t *testing.T) {
	c, err := NewHTTPClient("https://dogs.example.com")
	require.NoError(t, err)
	assert.Equal(t, "https://dogs.example.com/dogs/rex%2F1/gps", c.URL("rex/1", "gps"))
}

func TestNewHTTPClientRejectsBadURL(t *testing.T) {
	for _, raw := range []string{"", "ftp://x", "/relative", "http://"} {
		_, err := NewHTTPClient(raw)
		assert.Error(t, err, raw)
		assert.True(t, errors.Is(err, errors.ErrInvalidInput), raw)
	}
}
