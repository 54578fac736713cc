package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the lifecycle engine.
type Metrics struct {
	// Operation outcomes by operation name and result
	OperationOutcome *prometheus.CounterVec

	// Operation latencies by operation name
	OperationLatency *prometheus.HistogramVec

	// Donations created
	TrackablesCreated prometheus.Counter
}

// New creates a Metrics instance with all lifecycle metrics registered.
func New() *Metrics {
	return &Metrics{
		OperationOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "givingchain_lifecycle_operations_total",
			Help: "Total lifecycle operations by operation and result",
		}, []string{"operation", "result"}), // result: "ok" or the error code

		OperationLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "givingchain_lifecycle_operation_duration_seconds",
			Help:    "Duration of lifecycle operations including document writes",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"operation"}),

		TrackablesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "givingchain_trackables_created_total",
			Help: "Total donations created",
		}),
	}
}

// IncrementOutcome records one finished operation.
func (m *Metrics) IncrementOutcome(operation, result string) {
	if m != nil {
		m.OperationOutcome.WithLabelValues(operation, result).Inc()
	}
}

// ObserveLatency records an operation duration.
func (m *Metrics) ObserveLatency(operation string, d time.Duration) {
	if m != nil {
		m.OperationLatency.WithLabelValues(operation).Observe(d.Seconds())
	}
}

// IncrementTrackablesCreated counts one created donation.
func (m *Metrics) IncrementTrackablesCreated() {
	if m != nil {
		m.TrackablesCreated.Inc()
	}
}
