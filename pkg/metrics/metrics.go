package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "trafficwaker"

// Failure kinds
const (
	FailureMetrics  = "metrics"
	FailureSchedule = "schedule"
	FailureBackend  = "backend"
)

// Metrics controller self-metrics. A nil *Metrics is a valid no-op recorder.
type Metrics struct {
	registry *prometheus.Registry

	cycles       *prometheus.CounterVec
	actions      *prometheus.CounterVec
	mutations    prometheus.Counter
	failures     *prometheus.CounterVec
	signals      prometheus.Counter
	trafficRate  prometheus.Gauge
	state        prometheus.Gauge
	idleDuration prometheus.Gauge
}

// New creates the collectors on a dedicated registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_cycles_total",
			Help:      "Reconcile cycles by result (ok, skipped, error).",
		}, []string{"result"}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Wake/sleep actions applied by action and trigger.",
		}, []string{"action", "trigger"}),
		mutations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Backend mutations that changed state.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Collaborator failures by kind (metrics, schedule, backend).",
		}, []string{"kind"}),
		signals: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wake_signals_total",
			Help:      "Inbound wake signals received.",
		}),
		trafficRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "traffic_rate_per_minute",
			Help:      "Last observed request rate in requests per minute.",
		}),
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reconciler_state",
			Help:      "Reconciler state (0 asleep, 1 awake by schedule, 2 awake by traffic).",
		}),
		idleDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "idle_seconds",
			Help:      "Seconds since the last recorded traffic, -1 when none was recorded.",
		}),
	}

	m.registry.MustRegister(
		m.cycles,
		m.actions,
		m.mutations,
		m.failures,
		m.signals,
		m.trafficRate,
		m.state,
		m.idleDuration,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry (tests, extra collectors)
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Cycle(result string) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(result).Inc()
}

func (m *Metrics) Action(action, trigger string) {
	if m == nil {
		return
	}
	m.actions.WithLabelValues(action, trigger).Inc()
}

func (m *Metrics) Mutations(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.mutations.Add(float64(n))
}

func (m *Metrics) Failure(kind string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(kind).Inc()
}

func (m *Metrics) Signal() {
	if m == nil {
		return
	}
	m.signals.Inc()
}

func (m *Metrics) TrafficRate(rate float64) {
	if m == nil {
		return
	}
	m.trafficRate.Set(rate)
}

func (m *Metrics) State(value int) {
	if m == nil {
		return
	}
	m.state.Set(float64(value))
}

// IdleSeconds records the idle duration; recorded=false means no traffic seen yet
func (m *Metrics) IdleSeconds(seconds float64, recorded bool) {
	if m == nil {
		return
	}
	if !recorded {
		seconds = -1
	}
	m.idleDuration.Set(seconds)
}
