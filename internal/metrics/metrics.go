package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	orderCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bakehouse",
			Name:      "order_created_total",
			Help:      "Count of orders placed by customer kind.",
		},
		[]string{"kind"},
	)

	checkoutRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bakehouse",
			Name:      "checkout_rejected_total",
			Help:      "Count of checkout submissions rejected by reason.",
		},
		[]string{"reason"},
	)

	orderStatusChange = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bakehouse",
			Name:      "order_status_change_total",
			Help:      "Count of order status changes by outcome.",
		},
		[]string{"to", "outcome"},
	)

	applicationDecision = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bakehouse",
			Name:      "b2b_application_decision_total",
			Help:      "Count of B2B application reviews by decision.",
		},
		[]string{"decision"},
	)

	cartRollback = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bakehouse",
			Name:      "cart_rollback_total",
			Help:      "Count of optimistic cart mutations rolled back.",
		},
		[]string{"action"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bakehouse",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status code.",
			Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"method", "route", "code"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(orderCreated, checkoutRejected, orderStatusChange, applicationDecision, cartRollback, httpDuration)
	})
}

func IncOrderCreated(kind string) {
	orderCreated.WithLabelValues(kind).Inc()
}

func IncCheckoutRejected(reason string) {
	checkoutRejected.WithLabelValues(reason).Inc()
}

func IncOrderStatusChange(to, outcome string) {
	orderStatusChange.WithLabelValues(to, outcome).Inc()
}

func IncApplicationDecision(decision string) {
	applicationDecision.WithLabelValues(decision).Inc()
}

func IncCartRollback(action string) {
	cartRollback.WithLabelValues(action).Inc()
}

func ObserveHTTP(method, route string, code int, elapsed time.Duration) {
	if code == 0 {
		code = http.StatusOK
	}
	httpDuration.WithLabelValues(method, route, strconv.Itoa(code)).Observe(elapsed.Seconds())
}
