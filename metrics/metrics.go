// Package metrics provides ports.MonitoringCallback implementations: a
// no-op, an in-memory counter+ring buffer, a user-callback wrapper, a
// Prometheus collector, a StatsD collector, and a fan-out composite.
// Mirrors the "metrics sink plurality" design note: one interface, several
// interchangeable backends.
package metrics

import (
	"time"

	"github.com/sqskit/sqskit-go/ports"
)

// LifecycleEvent is the structured payload CallbackCollector hands to a
// user function, distinct from ports.Event only in using a time.Time
// instead of leaving timestamping to the caller.
type LifecycleEvent struct {
	Kind       ports.EventKind
	Queue      string
	MessageID  string
	DurationMs float64
	Count      int
	ErrorKind  string
	At         time.Time
}
