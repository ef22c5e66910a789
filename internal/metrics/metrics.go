package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Collector struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	InFlightGauge   prometheus.Gauge

	BookingsTotal      *prometheus.CounterVec
	NotificationsTotal *prometheus.CounterVec
	WatchSubscribers   prometheus.Gauge
}

// NewCollector registers the service metrics on the given registerer.
// Tests pass a fresh registry to avoid duplicate-registration panics.
func NewCollector(serviceName string, reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, path, and status code.",
		}, []string{"method", "path", "status"}),

		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency distribution.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"method", "path", "status"}),

		InFlightGauge: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),

		BookingsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "booking",
			Name:      "attempts_total",
			Help:      "Booking attempts by outcome: created, booked, pending, contended, invalid, error.",
		}, []string{"outcome"}),

		NotificationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "notify",
			Name:      "deliveries_total",
			Help:      "Notification delivery attempts by result: delivered, queued, retried.",
		}, []string{"result"}),

		WatchSubscribers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: serviceName,
			Subsystem: "watch",
			Name:      "subscribers",
			Help:      "Currently connected slot watchers.",
		}),
	}
}
