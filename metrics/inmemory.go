package metrics

import (
	"sync"
	"sync/atomic"

	"github.com/sqskit/sqskit-go/ports"
)

// MetricCounts is a point-in-time snapshot of InMemoryCollector's counters.
type MetricCounts struct {
	MessagesReceived    uint64
	MessagesProcessed   uint64
	MessagesFailed      uint64
	AckFlushed          uint64
	AckFailed           uint64
	ContainersStarted   uint64
	ContainersStopped   uint64
	BackpressureWaited  uint64
	VisibilityExtended  uint64
}

// InMemoryCollector accumulates atomic counters per event kind and keeps
// the last N events in a ring for inspection, grounded on the teacher's
// domain.Metrics atomic-counter struct (internal/domain/metrics.go),
// generalized from fixed Redis/MQTT fields to the MonitoringCallback
// event kinds of spec.md §6.
type InMemoryCollector struct {
	received           atomic.Uint64
	processed          atomic.Uint64
	failed             atomic.Uint64
	ackFlushed         atomic.Uint64
	ackFailed          atomic.Uint64
	containersStarted  atomic.Uint64
	containersStopped  atomic.Uint64
	backpressureWaited atomic.Uint64
	visibilityExtended atomic.Uint64

	mu     sync.Mutex
	ring   []ports.Event
	cursor int
}

// NewInMemoryCollector creates an InMemoryCollector retaining the last
// ringSize events (0 disables the ring, keeping only counters).
func NewInMemoryCollector(ringSize int) *InMemoryCollector {
	var ring []ports.Event
	if ringSize > 0 {
		ring = make([]ports.Event, 0, ringSize)
	}
	return &InMemoryCollector{ring: ring}
}

var _ ports.MonitoringCallback = (*InMemoryCollector)(nil)

// OnEvent records ev into the relevant counter and the event ring.
func (c *InMemoryCollector) OnEvent(ev ports.Event) {
	switch ev.Kind {
	case ports.EventMessageReceived:
		c.received.Add(1)
	case ports.EventMessageProcessed:
		c.processed.Add(1)
	case ports.EventMessageFailed:
		c.failed.Add(1)
	case ports.EventAckFlushed:
		c.ackFlushed.Add(uint64(ev.Count))
	case ports.EventAckFailed:
		c.ackFailed.Add(1)
	case ports.EventContainerStarted:
		c.containersStarted.Add(1)
	case ports.EventContainerStopped:
		c.containersStopped.Add(1)
	case ports.EventBackpressureWaited:
		c.backpressureWaited.Add(1)
	case ports.EventVisibilityExtended:
		c.visibilityExtended.Add(uint64(ev.Count))
	}

	if cap(c.ring) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.ring) < cap(c.ring) {
		c.ring = append(c.ring, ev)
	} else {
		c.ring[c.cursor] = ev
		c.cursor = (c.cursor + 1) % cap(c.ring)
	}
}

// Counts returns a snapshot of every counter.
func (c *InMemoryCollector) Counts() MetricCounts {
	return MetricCounts{
		MessagesReceived:   c.received.Load(),
		MessagesProcessed:  c.processed.Load(),
		MessagesFailed:     c.failed.Load(),
		AckFlushed:         c.ackFlushed.Load(),
		AckFailed:          c.ackFailed.Load(),
		ContainersStarted:  c.containersStarted.Load(),
		ContainersStopped:  c.containersStopped.Load(),
		BackpressureWaited: c.backpressureWaited.Load(),
		VisibilityExtended: c.visibilityExtended.Load(),
	}
}

// RecentEvents returns a copy of the currently retained events, oldest first.
func (c *InMemoryCollector) RecentEvents() []ports.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ports.Event, 0, len(c.ring))
	out = append(out, c.ring[c.cursor:]...)
	out = append(out, c.ring[:c.cursor]...)
	return out
}
