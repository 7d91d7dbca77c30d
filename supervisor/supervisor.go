// Package supervisor implements ContainerSupervisor: it starts one
// container.Container per entry registered in a registry.Registry, runs
// them for the process lifetime, and tears them all down on a shutdown
// signal or the first fatal container error. Grounded on the teacher's
// cmd/consumer/main.go Application (Start/Shutdown/signal-handling
// pattern), generalized from one fixed Redis+MQTT pipeline to N
// independently-configured listener containers.
package supervisor

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sqskit/sqskit-go/config"
	"github.com/sqskit/sqskit-go/container"
	sqerrors "github.com/sqskit/sqskit-go/errors"
	"github.com/sqskit/sqskit-go/ports"
	"github.com/sqskit/sqskit-go/registry"
)

// Exit codes, per spec.md §6.
const (
	ExitClean         = 0
	ExitConfiguration = 1
	ExitFatalService  = 2
	ExitSignal        = 130
)

// Supervisor owns the set of containers derived from a registry at
// StartListeners time and their shared collaborators.
type Supervisor struct {
	registry *registry.Registry
	client   ports.QueueClient
	metrics  ports.MonitoringCallback
	logger   ports.Logger
	cb       ports.CircuitBreaker
	cc       config.ContainerConfig

	mu         sync.Mutex
	containers map[string]*container.Container
	started    bool
}

// New constructs a Supervisor over reg. client, metrics, logger and cb are
// shared across every container it starts; cc is the process-wide
// container tuning applied to each one.
func New(reg *registry.Registry, client ports.QueueClient, metrics ports.MonitoringCallback, logger ports.Logger, cb ports.CircuitBreaker, cc config.ContainerConfig) *Supervisor {
	return &Supervisor{
		registry:   reg,
		client:     client,
		metrics:    metrics,
		logger:     logger,
		cb:         cb,
		cc:         cc,
		containers: make(map[string]*container.Container),
	}
}

// StartListeners constructs and starts one Container per entry currently
// registered, in registration order. A failure to start any one container
// is fatal and aborts the whole call: per spec.md §7, startup errors
// propagate out of start_listeners rather than leaving a partial set of
// containers running. Containers already started before the failing one
// are stopped before the error is returned.
func (s *Supervisor) StartListeners(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return sqerrors.Configuration("supervisor: already started")
	}

	entries := s.registry.GetListeners()
	started := make([]*container.Container, 0, len(entries))
	for _, entry := range entries {
		c := container.New(entry, s.client, s.metrics, s.logger, s.cb, s.cc)
		if err := c.Start(ctx); err != nil {
			for _, prior := range started {
				_ = prior.Stop(context.Background())
			}
			return err
		}
		s.containers[entry.Key] = c
		started = append(started, c)
	}

	s.started = true
	return nil
}

// StopListeners stops every running container concurrently, waiting for
// all of them (each bounded by its own ContainerConfig.ShutdownTimeout).
// Returns the first error encountered, if any, after every container has
// been given the chance to stop.
func (s *Supervisor) StopListeners(ctx context.Context) error {
	s.mu.Lock()
	containers := make([]*container.Container, 0, len(s.containers))
	for _, c := range s.containers {
		containers = append(containers, c)
	}
	s.started = false
	s.mu.Unlock()

	var g errgroup.Group
	for _, c := range containers {
		c := c
		g.Go(func() error {
			if c.GetState() == container.StateStopped {
				return nil
			}
			return c.Stop(ctx)
		})
	}
	return g.Wait()
}

// GetListenerContext returns the running Container registered under key,
// for introspection (state, queue) by tests and operators.
func (s *Supervisor) GetListenerContext(key string) (*container.Container, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.containers[key]
	return c, ok
}

// ListenerKeys returns the keys of every container started by
// StartListeners, for a healthserver readiness probe to enumerate without
// reaching into the registry directly.
func (s *Supervisor) ListenerKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.containers))
	for k := range s.containers {
		keys = append(keys, k)
	}
	return keys
}

// Run is the blocking entry point for a supervisor process: it starts
// every registered listener, then waits for either an OS shutdown signal
// or the first container's fatal stop, whichever comes first, stops
// everything, and returns the process exit code to use (spec.md §6).
func (s *Supervisor) Run(ctx context.Context) int {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := s.StartListeners(runCtx); err != nil {
		if s.logger != nil {
			s.logger.Error("failed to start listeners", ports.Field{Key: "error", Value: err})
		}
		if sqerrors.Is(err, sqerrors.KindConfiguration) {
			return ExitConfiguration
		}
		return ExitFatalService
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	reason := s.waitForStopReason(runCtx, sigCh)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), s.cc.ShutdownTimeout+5*time.Second)
	defer shutdownCancel()
	if err := s.StopListeners(shutdownCtx); err != nil && s.logger != nil {
		s.logger.Error("error stopping listeners", ports.Field{Key: "error", Value: err})
	}

	return reason.exitCode()
}

type stopReason struct {
	signal   bool
	fatalErr error
}

func (r stopReason) exitCode() int {
	switch {
	case r.fatalErr != nil:
		if sqerrors.Is(r.fatalErr, sqerrors.KindConfiguration) {
			return ExitConfiguration
		}
		return ExitFatalService
	case r.signal:
		return ExitSignal
	default:
		return ExitClean
	}
}

// waitForStopReason blocks until ctx is cancelled, a shutdown signal
// arrives, or any one container stops on its own (a fatalStop). It reports
// the error of the first container to stop that way; containers that stop
// on their own after that are not considered for the exit code.
func (s *Supervisor) waitForStopReason(ctx context.Context, sigCh <-chan os.Signal) stopReason {
	s.mu.Lock()
	containers := make([]*container.Container, 0, len(s.containers))
	for _, c := range s.containers {
		containers = append(containers, c)
	}
	s.mu.Unlock()

	fatal := make(chan error, 1)
	for _, c := range containers {
		c := c
		go func() {
			<-c.Done()
			if err := c.Err(); err != nil {
				select {
				case fatal <- err:
				default:
				}
			}
		}()
	}

	select {
	case <-ctx.Done():
		return stopReason{}
	case sig := <-sigCh:
		if s.logger != nil {
			s.logger.Info("received shutdown signal", ports.Field{Key: "signal", Value: sig})
		}
		return stopReason{signal: true}
	case err := <-fatal:
		return stopReason{fatalErr: err}
	}
}
