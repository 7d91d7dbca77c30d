package metrics

import "github.com/sqskit/sqskit-go/ports"

// NoOpCollector discards every event. Useful as the default when the
// caller does not configure a MonitoringCallback.
type NoOpCollector struct{}

var _ ports.MonitoringCallback = NoOpCollector{}

// OnEvent discards ev.
func (NoOpCollector) OnEvent(ev ports.Event) {}
