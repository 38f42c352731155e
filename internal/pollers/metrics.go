package pollers

import "github.com/prometheus/client_golang/prometheus"

var (
	// pollerTicks counts completed ticks per periodic task.
	pollerTicks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_poller_ticks_total",
			Help: "Completed poller ticks.",
		},
		[]string{"poller"},
	)

	// pollerTickDuration records how long one tick took.
	pollerTickDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bridge_poller_tick_duration_seconds",
			Help:    "Duration of one poller tick in seconds.",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"poller"},
	)

	// dispatches counts webhook deliveries by source (chat, mail) and outcome.
	dispatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_dispatch_total",
			Help: "Webhook dispatch attempts by source and outcome.",
		},
		[]string{"source", "outcome"},
	)

	// updates counts inbound chat updates by what happened to them.
	updates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_updates_total",
			Help: "Inbound chat updates by outcome.",
		},
		[]string{"outcome"},
	)
)

// Update outcomes.
const (
	outcomeDispatched = "dispatched"
	outcomeDuplicate  = "duplicate"
	outcomeInFlight   = "in_flight"
	outcomeBot        = "bot"
	outcomeIgnored    = "ignored"
	outcomeDrained    = "drained"
	outcomeFailed     = "failed"
)

func init() {
	prometheus.MustRegister(pollerTicks, pollerTickDuration, dispatches, updates)
}
