package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(provisionOutcomesTotal)
}

var provisionOutcomesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "provision_outcomes_total",
		Help: "Account provisioning outcomes, including degraded (account_processing_failed).",
	},
	[]string{"status"},
)

func IncProvisionOutcome(status string) {
	provisionOutcomesTotal.WithLabelValues(norm(status)).Inc()
}
