package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		webhooksTotal,
		paymentsRevenueTotal,
		paymentsInitiatedTotal,
		cardReviewsTotal,
	)
}

var (
	webhooksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_webhooks_total",
			Help: "Inbound provider webhooks by provider and outcome (paid/failed/expired/duplicate/invalid).",
		},
		[]string{"provider", "outcome"},
	)

	paymentsRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_revenue_minor_total",
			Help: "Total completed payment value in minor units, labeled by provider.",
		},
		[]string{"provider"},
	)

	paymentsInitiatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_payments_initiated_total",
			Help: "Payments opened with a provider.",
		},
		[]string{"provider"},
	)

	cardReviewsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_card_reviews_total",
			Help: "Manual card-to-card review decisions.",
		},
		[]string{"decision"},
	)
)

func IncWebhook(provider, outcome string) {
	webhooksTotal.WithLabelValues(norm(provider), norm(outcome)).Inc()
}

func AddRevenue(provider string, amountMinor int64) {
	paymentsRevenueTotal.WithLabelValues(norm(provider)).Add(float64(amountMinor))
}

func IncPaymentInitiated(provider string) {
	paymentsInitiatedTotal.WithLabelValues(norm(provider)).Inc()
}

func IncCardReview(decision string) {
	cardReviewsTotal.WithLabelValues(norm(decision)).Inc()
}
