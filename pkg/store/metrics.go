package store

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the process-internal Prometheus gauges/counters the task
// store emits (spec §4.6), generalizing the teacher pack's observability
// package (kadirpekel-hector's pkg/observability/metrics.go) down to the
// three series this store actually produces. A nil *Metrics is valid and
// every method on it is a no-op, so callers that don't wire a registry pay
// nothing.
type Metrics struct {
	activeTasks    prometheus.Gauge
	listenerCount  prometheus.Gauge
	eventsEmitted  *prometheus.CounterVec
}

// NewMetrics builds and registers the store's series against reg. Pass nil
// to disable metrics entirely.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	m := &Metrics{
		activeTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "a2a",
			Subsystem: "store",
			Name:      "active_tasks",
			Help:      "Number of non-terminal tasks currently tracked by the store.",
		}),
		listenerCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "a2a",
			Subsystem: "store",
			Name:      "listeners",
			Help:      "Number of SSE listener queues currently registered across all tasks.",
		}),
		eventsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "a2a",
			Subsystem: "store",
			Name:      "events_emitted_total",
			Help:      "Total number of events emitted by the store, by kind.",
		}, []string{"kind"}),
	}
	reg.MustRegister(m.activeTasks, m.listenerCount, m.eventsEmitted)
	return m
}

func (m *Metrics) setActiveTasks(n int) {
	if m == nil {
		return
	}
	m.activeTasks.Set(float64(n))
}

func (m *Metrics) incListeners() {
	if m == nil {
		return
	}
	m.listenerCount.Inc()
}

func (m *Metrics) decListeners() {
	if m == nil {
		return
	}
	m.listenerCount.Dec()
}

func (m *Metrics) recordEvent(kind string) {
	if m == nil {
		return
	}
	m.eventsEmitted.WithLabelValues(kind).Inc()
}
