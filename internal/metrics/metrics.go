// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Checkout outcomes
const (
	OutcomeSuccess           = "success"
	OutcomeInvalid           = "invalid"
	OutcomeProductNotFound   = "product_not_found"
	OutcomeInsufficientStock = "insufficient_stock"
	OutcomeConflict          = "conflict"
	OutcomeError             = "error"
)

var (
	// CheckoutTotal counts checkout attempts by outcome.
	CheckoutTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cantina_checkout_total",
			Help: "Total number of checkout attempts",
		},
		[]string{"outcome"},
	)

	CheckoutDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cantina_checkout_duration_seconds",
			Help:    "Duration of checkout transactions in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	// ItemsSold counts units decremented from stock.
	ItemsSold = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cantina_items_sold_total",
			Help: "Total number of product units sold",
		},
	)

	// AuthEvents counts authentication operations.
	// Labels:
	//   - action: register, login, refresh, profile_update, password_reset_request, password_reset
	//   - outcome: success, failure
	AuthEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cantina_auth_events_total",
			Help: "Total number of authentication events",
		},
		[]string{"action", "outcome"},
	)

	CatalogCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cantina_catalog_cache_total",
			Help: "Catalog cache lookups by result",
		},
		[]string{"result"},
	)

	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cantina_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"scope"},
	)
)

func RecordCheckout(outcome string, units int, d time.Duration) {
	CheckoutTotal.WithLabelValues(outcome).Inc()
	CheckoutDuration.Observe(d.Seconds())
	if outcome == OutcomeSuccess && units > 0 {
		ItemsSold.Add(float64(units))
	}
}

func RecordAuth(action string, ok bool) {
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	AuthEvents.WithLabelValues(action, outcome).Inc()
}
