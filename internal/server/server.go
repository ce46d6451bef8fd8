// Package server exposes the coordinator's diagnostics and refresh queue
// over HTTP.
package server

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"

	"github.com/pawcontrol/pawsync/internal/errors"
	"github.com/pawcontrol/pawsync/internal/logging"
	"github.com/pawcontrol/pawsync/internal/metrics"
)

const (
	defaultReadHeaderTimeout = 5 * time.Second
	defaultPriority          = 1
)

// Coordinator is the part of the coordinator the server reads from and
// enqueues into.
type Coordinator interface {
	OperationalSnapshot() metrics.OperationalSnapshot
	ChangedEntities() []string
	RequestRefresh(dogID string, priority int) error
}

// ChangesResponse is the body of GET /changes.
type ChangesResponse struct {
	Entities []string `json:"entities"`
}

// RefreshResponse is the body of a successful refresh request.
type RefreshResponse struct {
	DogID    string `json:"dog_id"`
	Priority int    `json:"priority"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetricsHandler mounts h at GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// Server serves the diagnostics API.
type Server struct {
	addr    string
	coord   Coordinator
	metrics http.Handler
	logger  *logging.Logger

	httpServer *http.Server
	listener   net.Listener
}

// New creates a Server for coord listening on addr.
func New(addr string, coord Coordinator, opts ...Option) *Server {
	s := &Server{addr: addr, coord: coord}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrNop(s.logger).WithComponent("server")
	return s
}

// Handler returns the router with every route mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.StripSlashes)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	r.Get("/diagnostics", s.handleDiagnostics)
	r.Get("/changes", s.handleChanges)
	r.Post("/dogs/{id}/refresh", s.handleRefresh)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	return r
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: defaultReadHeaderTimeout,
	}

	s.logger.Info("diagnostics server listening", "addr", ln.Addr().String())
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("diagnostics server stopped", "error", err.Error())
		}
	}()
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	snap := s.coord.OperationalSnapshot()
	status := http.StatusOK
	body := map[string]any{"status": "ok", "error_streak": snap.Polling.ErrorStreak}
	if !snap.Healthy() {
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
	}
	s.writeJSON(w, status, body)
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.coord.OperationalSnapshot())
}

func (s *Server) handleChanges(w http.ResponseWriter, _ *http.Request) {
	entities := s.coord.ChangedEntities()
	if entities == nil {
		entities = []string{}
	}
	s.writeJSON(w, http.StatusOK, ChangesResponse{Entities: entities})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	dogID := chi.URLParam(r, "id")

	priority := defaultPriority
	if raw := r.URL.Query().Get("priority"); raw != "" {
		p, err := strconv.Atoi(raw)
		if err != nil || p < 0 {
			s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "priority must be a non-negative integer"})
			return
		}
		priority = p
	}

	if err := s.coord.RequestRefresh(dogID, priority); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, errors.ErrDogNotFound) {
			status = http.StatusNotFound
		}
		s.writeJSON(w, status, ErrorResponse{Error: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusAccepted, RefreshResponse{DogID: dogID, Priority: priority})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to write response", "error", err.Error())
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request served",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
