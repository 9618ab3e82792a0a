package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	HttpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HttpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)

	WaveOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wave_operations_total",
			Help: "Wave lifecycle operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	StockReversalsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stock_reversals_total",
			Help: "Outbound return documents written to reverse order issues",
		},
	)

	PickOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pick_outcomes_total",
			Help: "Finished picking sessions by outcome",
		},
		[]string{"outcome"},
	)

	IntegrityAnomalies = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "integrity_anomalies",
			Help: "Inconsistencies found by the last integrity check",
		},
		[]string{"kind"},
	)
)

var registerOnce sync.Once

// InitMetrics registers all collectors with the default registry. Safe to call more than once.
func InitMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			HttpRequestsTotal, HttpRequestDuration,
			WaveOperationsTotal, StockReversalsTotal, PickOutcomesTotal, IntegrityAnomalies,
		)
	})
}

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// ObserveWaveOperation counts one wave operation.
func ObserveWaveOperation(operation string, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	WaveOperationsTotal.WithLabelValues(operation, outcome).Inc()
}
