package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		capturesTotal,
		captureRevenueTotal,
		priceDriftTotal,
		gatewayErrorsTotal,
	)
}

var (
	capturesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "captures_total",
			Help: "Capture attempts by provider and outcome (succeeded/declined/unavailable/replayed).",
		},
		[]string{"provider", "outcome"},
	)

	captureRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capture_revenue_total",
			Help: "Total captured amount in minor units, labeled by currency.",
		},
		[]string{"currency"},
	)

	priceDriftTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "price_drift_total",
			Help: "Client-declared final price diverged from the recomputed discounted price by more than one minor unit.",
		},
	)

	gatewayErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_errors_total",
			Help: "Gateway transport/auth failures by provider.",
		},
		[]string{"provider"},
	)
)

func IncCapture(provider, outcome string) {
	capturesTotal.WithLabelValues(norm(provider), norm(outcome)).Inc()
}

func AddCaptureRevenue(currency string, amountMinor int64) {
	captureRevenueTotal.WithLabelValues(norm(currency)).Add(float64(amountMinor))
}

func IncPriceDrift() { priceDriftTotal.Inc() }

func IncGatewayError(provider string) {
	gatewayErrorsTotal.WithLabelValues(norm(provider)).Inc()
}
