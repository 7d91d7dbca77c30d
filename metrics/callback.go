package metrics

import (
	"time"

	"github.com/sqskit/sqskit-go/ports"
)

// CallbackCollector wraps a user function as a MonitoringCallback.
type CallbackCollector struct {
	fn func(LifecycleEvent)
}

var _ ports.MonitoringCallback = (*CallbackCollector)(nil)

// NewCallbackCollector wraps fn.
func NewCallbackCollector(fn func(LifecycleEvent)) *CallbackCollector {
	return &CallbackCollector{fn: fn}
}

// OnEvent converts ev to a LifecycleEvent and invokes the wrapped function.
func (c *CallbackCollector) OnEvent(ev ports.Event) {
	c.fn(LifecycleEvent{
		Kind:       ev.Kind,
		Queue:      ev.Queue,
		MessageID:  ev.MessageID,
		DurationMs: ev.DurationMs,
		Count:      ev.Count,
		ErrorKind:  ev.ErrorKind,
		At:         time.Now(),
	})
}
