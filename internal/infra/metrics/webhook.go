package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		webhookDeliveriesTotal,
		webhookDuration,
		duplicateEventsTotal,
		storeTxDuration,
	)
}

var (
	// result: applied|ignored|rejected|failed
	// reason (non-applied only): bad_signature|bad_payload|unhandled_kind|incomplete_metadata|duplicate|store_tx|rate_limited
	webhookDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_deliveries_total",
			Help: "Inbound payment webhook deliveries by result and bounded reason.",
		},
		[]string{"result", "reason"},
	)

	webhookDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webhook_duration_seconds",
			Help:    "Duration of webhook handling in seconds.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"result"},
	)

	duplicateEventsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "duplicate_events_total",
			Help: "Deliveries whose event id was already reconciled.",
		},
	)

	storeTxDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_tx_duration_seconds",
			Help:    "Duration of the account-update transaction in seconds.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
		[]string{"success"},
	)
)

func IncWebhookDelivery(result, reason string) {
	webhookDeliveriesTotal.WithLabelValues(norm(result), norm(reason)).Inc()
}

func ObserveWebhookDuration(result string, d time.Duration) {
	webhookDuration.WithLabelValues(norm(result)).Observe(d.Seconds())
}

func IncDuplicateEvent() {
	duplicateEventsTotal.Inc()
}

func ObserveStoreTx(d time.Duration, success bool) {
	storeTxDuration.WithLabelValues(strconv.FormatBool(success)).Observe(d.Seconds())
}
