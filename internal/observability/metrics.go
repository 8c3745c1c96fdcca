package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "weather_cache"

// Metrics holds the Prometheus counters, histograms, and gauges for the service.
type Metrics struct {
	// Cache metrics.
	CacheRequests *prometheus.CounterVec // labels: namespace={current,forecast,...}, result={hit,miss,degraded}
	StoreDegraded *prometheus.CounterVec // labels: op={get,set,del,...}
	StoreUp       prometheus.Gauge

	// Alert lifecycle metrics.
	AlertsCreated    *prometheus.CounterVec // labels: type, severity
	AlertTransitions *prometheus.CounterVec // labels: to={EXPIRED,CANCELLED}
	AlertsExpired    prometheus.Counter
	AlertsDeleted    prometheus.Counter
	Notifications    *prometheus.CounterVec // labels: outcome={sent,error,dropped}

	// Analytics tracking metrics.
	Tracking *prometheus.CounterVec // labels: kind={request,error,popularity}, outcome={ok,degraded,dropped}

	// Scheduler metrics.
	JobRuns     *prometheus.CounterVec   // labels: job, outcome={success,error}
	JobDuration *prometheus.HistogramVec // labels: job
}

func newMetrics() *Metrics {
	return &Metrics{
		CacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_requests_total",
			Help:      "Cache-aside lookups by namespace and result.",
		}, []string{"namespace", "result"}),
		StoreDegraded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_degraded_total",
			Help:      "Key-value store failures absorbed into degraded behavior, by operation.",
		}, []string{"op"}),
		StoreUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_up",
			Help:      "1 when the last health probe round-trip succeeded, 0 otherwise.",
		}),
		AlertsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_created_total",
			Help:      "Alerts created by type and severity.",
		}, []string{"type", "severity"}),
		AlertTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_transitions_total",
			Help:      "Alert status transitions by target status.",
		}, []string{"to"}),
		AlertsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_expired_total",
			Help:      "Alerts moved to EXPIRED by the sweep.",
		}),
		AlertsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_deleted_total",
			Help:      "Alerts hard-deleted by retention cleanup.",
		}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification enqueues by outcome.",
		}, []string{"outcome"}),
		Tracking: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tracking_total",
			Help:      "Analytics tracking calls by kind and outcome.",
		}, []string{"kind", "outcome"}),
		JobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Scheduled job runs by job and outcome.",
		}, []string{"job", "outcome"}),
		JobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Duration of scheduled job runs.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"job"}),
	}
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics that are not registered anywhere, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.CacheRequests,
		m.StoreDegraded,
		m.StoreUp,
		m.AlertsCreated,
		m.AlertTransitions,
		m.AlertsExpired,
		m.AlertsDeleted,
		m.Notifications,
		m.Tracking,
		m.JobRuns,
		m.JobDuration,
	}
}
