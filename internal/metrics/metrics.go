package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Collector struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	BookingsTotal       *prometheus.CounterVec
	ExpiredHoldsTotal   prometheus.Counter
	NotifyFailuresTotal prometheus.Counter
}

// NewCollector registers the scheduler's metrics on the given registerer.
// Tests pass a fresh prometheus.NewRegistry to avoid duplicate registration.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scheduler",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests by method, path, and status code.",
		}, []string{"method", "path", "status"}),

		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "scheduler",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency distribution.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"method", "path", "status"}),

		BookingsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scheduler",
			Subsystem: "ledger",
			Name:      "bookings_total",
			Help:      "Booking operations by operation and outcome.",
		}, []string{"operation", "outcome"}),

		ExpiredHoldsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "scheduler",
			Subsystem: "ledger",
			Name:      "expired_holds_total",
			Help:      "Pending bookings released by the expiry worker.",
		}),

		NotifyFailuresTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "scheduler",
			Subsystem: "notify",
			Name:      "failures_total",
			Help:      "Notification publishes that failed and were dropped.",
		}),
	}
}
