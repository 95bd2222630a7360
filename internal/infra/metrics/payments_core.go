package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		checkoutSessionsTotal,
		reconciliationsTotal,
	)
}

var (
	checkoutSessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_sessions_total",
			Help: "Checkout session creations by outcome (ok/fail).",
		},
		[]string{"result"},
	)

	reconciliationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciliations_total",
			Help: "Completion events applied to accounts, by purchase type.",
		},
		[]string{"purchase_type"},
	)
)

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func IncCheckoutSession(result string) {
	checkoutSessionsTotal.WithLabelValues(norm(result)).Inc()
}

func IncReconciliation(purchaseType string) {
	reconciliationsTotal.WithLabelValues(norm(purchaseType)).Inc()
}
