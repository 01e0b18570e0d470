// Package metrics exposes the publisher's own health as Prometheus series.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "kiro"

// Metrics holds the Prometheus collectors. Each instance owns its registry
// so several servers can live in one process (tests do this).
type Metrics struct {
	registry       *prometheus.Registry
	streamsActive  prometheus.Gauge
	streamsTotal   prometheus.Counter
	snapshotsSent  prometheus.Counter
	sendFailures   prometheus.Counter
	sampleDuration prometheus.Histogram
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		streamsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "publisher",
			Name:      "streams_active",
			Help:      "Number of websocket streams currently being served.",
		}),
		streamsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "publisher",
			Name:      "streams_total",
			Help:      "Total number of websocket streams accepted.",
		}),
		snapshotsSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "publisher",
			Name:      "snapshots_sent_total",
			Help:      "Total number of snapshots written to clients.",
		}),
		sendFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "publisher",
			Name:      "send_failures_total",
			Help:      "Total number of streams terminated by a failed write.",
		}),
		sampleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sampler",
			Name:      "sample_duration_seconds",
			Help:      "Time spent reading host metrics for one snapshot.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		}),
	}
}

func (m *Metrics) StreamOpened() {
	m.streamsActive.Inc()
	m.streamsTotal.Inc()
}

func (m *Metrics) StreamClosed()             { m.streamsActive.Dec() }
func (m *Metrics) SnapshotSent()             { m.snapshotsSent.Inc() }
func (m *Metrics) SendFailed()               { m.sendFailures.Inc() }
func (m *Metrics) ObserveSample(sec float64) { m.sampleDuration.Observe(sec) }

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
