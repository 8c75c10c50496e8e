package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		subscriptionUpsertsTotal,
		ledgerWriteFailuresTotal,
	)
}

var (
	subscriptionUpsertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscription_upserts_total",
			Help: "Subscription records created or extended on successful payment.",
		},
		[]string{"op"}, // created | updated
	)

	ledgerWriteFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_write_failures_total",
			Help: "Ledger appends that failed after a committed capture (reconciliation gaps).",
		},
	)
)

func IncSubscriptionUpsert(op string) {
	subscriptionUpsertsTotal.WithLabelValues(norm(op)).Inc()
}

func IncLedgerWriteFailure() { ledgerWriteFailuresTotal.Inc() }
