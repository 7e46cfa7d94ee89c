package bridge

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// namespace for all bridge metrics.
const metricsNamespace = "studiobridge"

// Metrics holds the Prometheus collectors for one Manager. A nil *Metrics
// is valid and records nothing, so tests and embedders can opt out.
type Metrics struct {
	requestsTotal      *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	notificationsTotal *prometheus.CounterVec
	parseErrorsTotal   prometheus.Counter
	reconnectsTotal    prometheus.Counter
	stateChangesTotal  *prometheus.CounterVec
	cacheHitsTotal     prometheus.Counter
	cacheMissesTotal   prometheus.Counter
}

// NewMetrics registers the bridge collector set with the given registry.
// Pass prometheus.DefaultRegisterer for the process-wide registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "requests_total",
			Help:      "Total number of RPC requests by method and status",
		}, []string{"method", "status"}),

		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "request_duration_seconds",
			Help:      "RPC round-trip duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		notificationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "notifications_total",
			Help:      "Total number of inbound notifications by method",
		}, []string{"method"}),

		parseErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "parse_errors_total",
			Help:      "Total number of malformed inbound frames dropped",
		}),

		reconnectsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "reconnects_total",
			Help:      "Total number of automatic reconnection attempts",
		}),

		stateChangesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "state_changes_total",
			Help:      "Total number of connection state transitions by new state",
		}, []string{"state"}),

		cacheHitsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "completion_cache_hits_total",
			Help:      "Completion lookups served from the local cache",
		}),

		cacheMissesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "completion_cache_misses_total",
			Help:      "Completion lookups that issued an RPC call",
		}),
	}
}

// RecordRequest records one completed RPC round trip.
func (m *Metrics) RecordRequest(method, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(method, status).Inc()
	m.requestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordNotification records one inbound notification.
func (m *Metrics) RecordNotification(method string) {
	if m == nil {
		return
	}
	m.notificationsTotal.WithLabelValues(method).Inc()
}

// RecordParseError records one dropped malformed frame.
func (m *Metrics) RecordParseError() {
	if m == nil {
		return
	}
	m.parseErrorsTotal.Inc()
}

// RecordReconnect records one automatic reconnection attempt.
func (m *Metrics) RecordReconnect() {
	if m == nil {
		return
	}
	m.reconnectsTotal.Inc()
}

// RecordStateChange records one state transition.
func (m *Metrics) RecordStateChange(state State) {
	if m == nil {
		return
	}
	m.stateChangesTotal.WithLabelValues(state.String()).Inc()
}

// RecordCacheHit records a completion lookup served locally.
func (m *Metrics) RecordCacheHit() {
	if m == nil {
		return
	}
	m.cacheHitsTotal.Inc()
}

// RecordCacheMiss records a completion lookup that went to the peer.
func (m *Metrics) RecordCacheMiss() {
	if m == nil {
		return
	}
	m.cacheMissesTotal.Inc()
}
