package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects Prometheus metrics for the tracker service.
type Metrics struct {
	requestsCreated   prometheus.Counter
	requestsFulfilled *prometheus.CounterVec
	cleanupRuns       *prometheus.CounterVec
	cleanupRemoved    prometheus.Counter
	erpCalls          *prometheus.CounterVec
	erpCallDuration   prometheus.Histogram
	wsClients         prometheus.Gauge
	activeRequests    prometheus.Gauge
}

var (
	once sync.Once
	inst *Metrics
)

// New returns the process-wide metrics collector. Collectors register
// with the default registry, so repeated calls share one instance.
func New() *Metrics {
	once.Do(func() {
		inst = &Metrics{
			requestsCreated: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "tracker_requests_created_total",
					Help: "Total number of container requests created",
				},
			),
			requestsFulfilled: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tracker_requests_fulfilled_total",
					Help: "Total number of requests fulfilled, by fulfillment type",
				},
				[]string{"fulfillment_type"},
			),
			cleanupRuns: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tracker_cleanup_runs_total",
					Help: "Total number of cleanup cycles, by outcome",
				},
				[]string{"outcome"},
			),
			cleanupRemoved: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "tracker_cleanup_removed_total",
					Help: "Total number of requests removed by cleanup",
				},
			),
			erpCalls: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tracker_erp_calls_total",
					Help: "Total number of ERP datasource calls, by status",
				},
				[]string{"status"},
			),
			erpCallDuration: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "tracker_erp_call_duration_seconds",
					Help:    "ERP datasource call duration in seconds",
					Buckets: prometheus.DefBuckets,
				},
			),
			wsClients: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "tracker_ws_clients",
					Help: "Number of connected websocket clients",
				},
			),
			activeRequests: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "tracker_active_requests",
					Help: "Number of open container requests",
				},
			),
		}
	})
	return inst
}

// RequestCreated records a newly created request.
func (m *Metrics) RequestCreated() {
	m.requestsCreated.Inc()
}

// RequestFulfilled records a fulfilled request.
func (m *Metrics) RequestFulfilled(fulfillmentType string) {
	m.requestsFulfilled.WithLabelValues(fulfillmentType).Inc()
}

// CleanupRun records a completed cleanup cycle.
func (m *Metrics) CleanupRun(outcome string, removed int) {
	m.cleanupRuns.WithLabelValues(outcome).Inc()
	m.cleanupRemoved.Add(float64(removed))
}

// ERPCall records one datasource call.
func (m *Metrics) ERPCall(status string, duration time.Duration) {
	m.erpCalls.WithLabelValues(status).Inc()
	m.erpCallDuration.Observe(duration.Seconds())
}

// SetWSClients updates the connected client gauge.
func (m *Metrics) SetWSClients(n int) {
	m.wsClients.Set(float64(n))
}

// SetActiveRequests updates the open request gauge.
func (m *Metrics) SetActiveRequests(n int64) {
	m.activeRequests.Set(float64(n))
}
