package services

import "github.com/prometheus/client_golang/prometheus"

// tokenRefreshes counts GetValidToken outcomes: cached, refreshed, failed.
var tokenRefreshes = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "bridge_token_refresh_total",
		Help: "Token lookups by outcome.",
	},
	[]string{"outcome"},
)

func init() {
	prometheus.MustRegister(tokenRefreshes)
}
