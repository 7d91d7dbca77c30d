package metrics

import (
	"time"

	statsd "github.com/cactus/go-statsd-client/v5/statsd"

	"github.com/sqskit/sqskit-go/ports"
)

func durationMs(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}

// StatsDCollector emits counters and timers to a StatsD daemon. The
// underlying client is an ecosystem dependency not present in the
// example pack (named per the dependency-naming rule, not pack-grounded);
// wiring it gives the library a second concrete metrics backend alongside
// Prometheus, matching the five collectors the distilled library exposed.
type StatsDCollector struct {
	client statsd.Statter
	prefix string
}

var _ ports.MonitoringCallback = (*StatsDCollector)(nil)

// NewStatsDCollector wraps an already-constructed statsd.Statter.
func NewStatsDCollector(client statsd.Statter) *StatsDCollector {
	return &StatsDCollector{client: client}
}

// OnEvent emits ev as a StatsD counter, and a timer for duration-bearing kinds.
func (c *StatsDCollector) OnEvent(ev ports.Event) {
	name := "sqskit." + string(ev.Kind)
	count := int64(1)
	if ev.Count > 0 {
		count = int64(ev.Count)
	}
	_ = c.client.Inc(name, count, 1.0)

	if ev.Kind == ports.EventMessageProcessed && ev.DurationMs > 0 {
		_ = c.client.TimingDuration(name+".duration", durationMs(ev.DurationMs), 1.0)
	}
}
