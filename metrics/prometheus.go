package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sqskit/sqskit-go/ports"
)

// PrometheusCollector registers per-event-kind counters, a processing
// duration histogram and an ack-flush-size histogram on the given
// registerer.
type PrometheusCollector struct {
	eventsTotal     *prometheus.CounterVec
	processDuration prometheus.Histogram
	ackBatchSize    prometheus.Histogram
}

var _ ports.MonitoringCallback = (*PrometheusCollector)(nil)

// NewPrometheusCollector registers its metrics on reg under namespace/subsystem.
func NewPrometheusCollector(reg prometheus.Registerer, namespace, subsystem string) *PrometheusCollector {
	c := &PrometheusCollector{
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "events_total",
			Help:      "Total sqskit lifecycle/metric events by kind.",
		}, []string{"kind", "queue"}),
		processDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "message_processing_duration_ms",
			Help:      "Handler processing duration in milliseconds.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		ackBatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "ack_batch_size",
			Help:      "Number of receipt handles per acknowledgement flush.",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		}),
	}
	reg.MustRegister(c.eventsTotal, c.processDuration, c.ackBatchSize)
	return c
}

// OnEvent records ev into the appropriate Prometheus metric.
func (c *PrometheusCollector) OnEvent(ev ports.Event) {
	c.eventsTotal.WithLabelValues(string(ev.Kind), ev.Queue).Inc()
	switch ev.Kind {
	case ports.EventMessageProcessed:
		c.processDuration.Observe(ev.DurationMs)
	case ports.EventAckFlushed:
		c.ackBatchSize.Observe(float64(ev.Count))
	}
}
