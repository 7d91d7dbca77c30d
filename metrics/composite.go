package metrics

import "github.com/sqskit/sqskit-go/ports"

// CompositeCollector fans a single event out to N collectors, satisfying
// the "composite variant" called for by the metrics-sink-plurality design
// note: callers configure one MonitoringCallback regardless of how many
// backends are actually wired.
type CompositeCollector struct {
	collectors []ports.MonitoringCallback
}

var _ ports.MonitoringCallback = (*CompositeCollector)(nil)

// NewCompositeCollector fans out to the given collectors in order.
func NewCompositeCollector(collectors ...ports.MonitoringCallback) *CompositeCollector {
	return &CompositeCollector{collectors: collectors}
}

// OnEvent forwards ev to every wrapped collector.
func (c *CompositeCollector) OnEvent(ev ports.Event) {
	for _, collector := range c.collectors {
		collector.OnEvent(ev)
	}
}
