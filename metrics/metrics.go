package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MessagesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "pairchat",
		Name:      "messages_sent_total",
		Help:      "Messages committed to both sides of a conversation.",
	})

	SendFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pairchat",
		Name:      "send_failures_total",
		Help:      "Sends aborted or failed, by stage.",
	}, []string{"stage"})

	ActiveSubscriptions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "pairchat",
		Name:      "active_subscriptions",
		Help:      "Live conversation subscriptions currently open.",
	})

	SubscriptionErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "pairchat",
		Name:      "subscription_errors_total",
		Help:      "Live subscriptions that ended abnormally.",
	})

	DuplicateDeliveries = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "pairchat",
		Name:      "duplicate_deliveries_total",
		Help:      "Message arrivals ignored because the id was already displayed.",
	})
)

// Send failure stages.
const (
	StageIDGeneration = "id_generation"
	StageWrite        = "write"
)

func init() {
	prometheus.MustRegister(MessagesSent)
	prometheus.MustRegister(SendFailures)
	prometheus.MustRegister(ActiveSubscriptions)
	prometheus.MustRegister(SubscriptionErrors)
	prometheus.MustRegister(DuplicateDeliveries)
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
