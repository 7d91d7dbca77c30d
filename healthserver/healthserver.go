// Package healthserver implements the liveness/readiness/metrics HTTP
// surface a supervisor process exposes alongside its containers.
// Grounded on Aridsondez-AWS-SQS-LITE's internal/api.Server (chi router,
// middleware stack, JSON response helpers) and the teacher's
// cmd/consumer/main.go health/ready/live handlers, merged into one
// chi-routed server with a Prometheus scrape endpoint added.
package healthserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sqskit/sqskit-go/container"
	"github.com/sqskit/sqskit-go/ports"
)

// ListenerLister is the subset of supervisor.Supervisor this package
// depends on, kept narrow so healthserver doesn't import supervisor (and
// risk a cycle if supervisor ever wants to serve its own health data).
type ListenerLister interface {
	GetListenerContext(key string) (*container.Container, bool)
	ListenerKeys() []string
}

// Checker is an extra readiness dependency (e.g. the queue client itself)
// a caller can register alongside the listener containers.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// CheckerFunc adapts a plain func to a Checker, e.g. a queue client's
// HealthCheck(ctx, queue) bound to one queue name:
//
//	s.RegisterChecker("orders", healthserver.CheckerFunc(func(ctx context.Context) error {
//	    return client.HealthCheck(ctx, "orders")
//	}))
type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

// Server is the health/readiness/metrics HTTP surface.
type Server struct {
	listeners ListenerLister
	checkers  map[string]Checker
	logger    ports.Logger
	timeout   time.Duration
	http      *http.Server
}

// Options configures New.
type Options struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	RouteTimeout time.Duration
}

// New builds the chi-routed *http.Server. It is not started until Start
// is called.
func New(listeners ListenerLister, logger ports.Logger, opts Options) *Server {
	if opts.RouteTimeout <= 0 {
		opts.RouteTimeout = 5 * time.Second
	}
	s := &Server{
		listeners: listeners,
		checkers:  make(map[string]Checker),
		logger:    logger,
		timeout:   opts.RouteTimeout,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.timeout))

	r.Get("/healthz", s.handleLive)
	r.Get("/live", s.handleLive)
	r.Get("/ready", s.handleReady)
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	s.http = &http.Server{
		Addr:         opts.Addr,
		Handler:      r,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	}
	return s
}

// RegisterChecker adds a named extra dependency check consulted by /ready,
// e.g. the queue-service client's own HealthCheck.
func (s *Server) RegisterChecker(name string, c Checker) {
	s.checkers[name] = c
}

// Start runs ListenAndServe in the background. Errors other than a clean
// Shutdown are logged, not returned, matching the teacher's
// runHealthServer (the health endpoint is diagnostic, not critical path).
func (s *Server) Start() {
	go func() {
		if s.logger != nil {
			s.logger.Info("starting health server", ports.Field{Key: "addr", Value: s.http.Addr})
		}
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if s.logger != nil {
				s.logger.Error("health server error", ports.Field{Key: "error", Value: err})
			}
		}
	}()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

type statusResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Message   string            `json:"message,omitempty"`
	Listeners map[string]string `json:"listeners,omitempty"`
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{Status: "alive", Timestamp: now()})
}

// handleReady reports ready only if every registered listener container
// is RUNNING (or PAUSED, a deliberate operator action, not a failure) and
// every registered Checker succeeds.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	listenerStatus := make(map[string]string)
	allHealthy := true

	for _, key := range s.listeners.ListenerKeys() {
		c, ok := s.listeners.GetListenerContext(key)
		if !ok {
			continue
		}
		state := c.GetState()
		listenerStatus[key] = state.String()
		if state != container.StateRunning && state != container.StatePaused {
			allHealthy = false
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	for name, checker := range s.checkers {
		if err := checker.HealthCheck(ctx); err != nil {
			allHealthy = false
			listenerStatus[name] = fmt.Sprintf("unhealthy: %v", err)
		}
	}

	if allHealthy {
		writeJSON(w, http.StatusOK, statusResponse{Status: "ready", Timestamp: now(), Listeners: listenerStatus})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, statusResponse{Status: "not_ready", Timestamp: now(), Listeners: listenerStatus})
}

func now() string { return time.Now().Format(time.RFC3339) }

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
