// Package metrics wires Framer instrumentation to Prometheus: a struct
// of pre-registered collectors behind a small typed API, exposed over
// promhttp. Counters route through luxfi/metric's Counter/NewCounter
// factory, the same construction style used across the wider fleet's
// VM and consensus metrics, rather than raw prometheus.NewCounter.
package metrics

import (
	"net/http"

	"github.com/luxfi/log"
	metric "github.com/luxfi/metric"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// FramerMetrics tracks the operational health of the Framer event loop:
// connection churn, library churn, command throughput, back-pressure
// frequency, and tick shape.
type FramerMetrics struct {
	logger   log.Logger
	registry *prometheus.Registry

	connectionsAccepted       metric.Counter
	connectionsRejectedLeader metric.Counter
	librariesConnected        metric.Counter
	librariesReconnected      metric.Counter
	librariesTimedOut         metric.Counter
	commandsProcessed         *prometheus.CounterVec
	publicationsBackpressured *prometheus.CounterVec
	tickCommandsDrained       prometheus.Histogram
	tickReceiversPolled       prometheus.Histogram
	tickSendersPolled         prometheus.Histogram
}

// New builds the Framer's metric collectors under the given namespace.
// Simple counters are built with metric.NewCounter, matching how the
// fleet's VM and consensus metrics are constructed; label vectors and
// histograms have no equivalent in that package's Counter/Registerer
// pair, so they stay on prometheus.CounterVec/Histogram directly and
// register into the same exported registry as everything else. Every
// metric.Counter that also satisfies prometheus.Collector (the case
// for the fleet's implementation) is registered too, so a single
// promhttp handler serves the whole set; one that doesn't is simply
// skipped from Prometheus export and still counts correctly in-process.
func New(namespace string) *FramerMetrics {
	logger := log.Root().New("module", "framer_metrics")
	registry := prometheus.NewRegistry()

	m := &FramerMetrics{
		logger:   logger,
		registry: registry,

		connectionsAccepted:       metric.NewCounter(namespace + "_connections_accepted_total"),
		connectionsRejectedLeader: metric.NewCounter(namespace + "_connections_rejected_not_leader_total"),
		librariesConnected:        metric.NewCounter(namespace + "_libraries_connected_total"),
		librariesReconnected:      metric.NewCounter(namespace + "_libraries_reconnected_total"),
		librariesTimedOut:         metric.NewCounter(namespace + "_libraries_timed_out_total"),

		commandsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_processed_total",
			Help:      "Total commands dispatched, by kind.",
		}, []string{"kind"}),
		publicationsBackpressured: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publications_backpressured_total",
			Help:      "Total publications that returned Backpressured, by kind.",
		}, []string{"kind"}),
		tickCommandsDrained: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_commands_drained",
			Help:      "Commands drained per do_work tick.",
			Buckets:   prometheus.LinearBuckets(0, 8, 8),
		}),
		tickReceiversPolled: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_receivers_polled",
			Help:      "Receiver endpoints that yielded bytes per do_work tick.",
			Buckets:   prometheus.LinearBuckets(0, 8, 8),
		}),
		tickSendersPolled: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_senders_polled",
			Help:      "Sender endpoints that drained bytes per do_work tick.",
			Buckets:   prometheus.LinearBuckets(0, 8, 8),
		}),
	}

	registry.MustRegister(
		m.commandsProcessed,
		m.publicationsBackpressured,
		m.tickCommandsDrained,
		m.tickReceiversPolled,
		m.tickSendersPolled,
	)
	for _, c := range []metric.Counter{
		m.connectionsAccepted,
		m.connectionsRejectedLeader,
		m.librariesConnected,
		m.librariesReconnected,
		m.librariesTimedOut,
	} {
		if coll, ok := interface{}(c).(prometheus.Collector); ok {
			registry.MustRegister(coll)
		}
	}

	return m
}

func (m *FramerMetrics) ConnectionAccepted()         { m.connectionsAccepted.Inc() }
func (m *FramerMetrics) ConnectionRejectedNotLeader() { m.connectionsRejectedLeader.Inc() }

func (m *FramerMetrics) LibraryConnected(isNew bool) {
	if isNew {
		m.librariesConnected.Inc()
		return
	}
	m.librariesReconnected.Inc()
}

func (m *FramerMetrics) LibraryTimedOut() { m.librariesTimedOut.Inc() }

func (m *FramerMetrics) CommandProcessed(kind string) {
	m.commandsProcessed.WithLabelValues(kind).Inc()
}

func (m *FramerMetrics) PublicationBackpressured(kind string) {
	m.publicationsBackpressured.WithLabelValues(kind).Inc()
}

func (m *FramerMetrics) TickObserved(commandsDrained, receiversPolled, sendersPolled int) {
	m.tickCommandsDrained.Observe(float64(commandsDrained))
	m.tickReceiversPolled.Observe(float64(receiversPolled))
	m.tickSendersPolled.Observe(float64(sendersPolled))
}

// ServeHTTP starts a background Prometheus /metrics listener as a
// fire-and-forget goroutine.
func (m *FramerMetrics) ServeHTTP(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			m.logger.Error("metrics server stopped", "error", err)
		}
	}()

	m.logger.Info("metrics available", "endpoint", "http://"+addr+"/metrics")
}
