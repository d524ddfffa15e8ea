package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	DomainEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purchase_domain_events_total",
			Help: "Number of dispatched domain events by type",
		},
		[]string{"type"},
	)

	PaymentNotifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purchase_payment_notifications_total",
			Help: "Number of payment provider notifications by outcome",
		},
		[]string{"outcome"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "purchase_http_request_duration_seconds",
			Help:    "Time taken to serve HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method", "status"},
	)
)

func Register(registerer prometheus.Registerer) {
	registerer.MustRegister(DomainEvents, PaymentNotifications, RequestDuration)
}
