package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bellavita",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	guardTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bellavita",
			Name:      "guard_transitions_total",
			Help:      "Confirmation guard state transitions.",
		},
		[]string{"from", "to"},
	)

	calendarCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bellavita",
			Name:      "calendar_calls_total",
			Help:      "Calendar backend calls by action and outcome.",
		},
		[]string{"action", "outcome"},
	)

	paymentStatuses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bellavita",
			Name:      "payment_status_total",
			Help:      "Payment ledger records by resulting status.",
		},
		[]string{"status"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, guardTransitions, calendarCalls, paymentStatuses)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// IncGuardTransition records a guard state change.
func IncGuardTransition(from, to string) {
	guardTransitions.WithLabelValues(from, to).Inc()
}

// IncCalendarCall records a calendar backend call outcome.
func IncCalendarCall(action, outcome string) {
	calendarCalls.WithLabelValues(action, outcome).Inc()
}

// IncPaymentStatus records a ledger record reaching a status.
func IncPaymentStatus(status string) {
	paymentStatuses.WithLabelValues(status).Inc()
}
