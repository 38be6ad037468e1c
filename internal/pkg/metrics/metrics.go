package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus counters for the billing and quota subsystems.
var (
	PaymentVerifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "karobar_payment_verifications_total",
		Help: "Payment verification attempts by provider and outcome.",
	}, []string{"provider", "outcome"})

	PlanActivations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "karobar_plan_activations_total",
		Help: "Successful plan activations by plan.",
	}, []string{"plan"})

	SubscriptionDowngrades = promauto.NewCounter(prometheus.CounterOpts{
		Name: "karobar_subscription_downgrades_total",
		Help: "Lazy expiry downgrades to FREE.",
	})

	QuotaDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "karobar_quota_denials_total",
		Help: "Resource creations refused by quota, by feature.",
	}, []string{"feature"})
)

// Handler exposes the default registry for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}
