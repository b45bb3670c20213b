// Package metrics provides Prometheus instrumentation for the chat relay:
// a gauge for room occupancy, counters for message throughput and
// evictions, and a histogram for sweep duration.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ActiveParticipants tracks the current number of registered
	// participants.
	ActiveParticipants = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chatrelay_active_participants",
		Help: "Current number of registered participants",
	})

	// MessagesTotal counts stored messages, labeled by kind:
	// "chat", "private_chat", or "status".
	MessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatrelay_messages_total",
		Help: "Total number of messages appended to the log",
	}, []string{"kind"})

	// EvictionsTotal counts participants removed by the staleness sweep.
	EvictionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatrelay_evictions_total",
		Help: "Total number of participants evicted for inactivity",
	})

	// SweepDuration records how long each eviction sweep takes.
	SweepDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "chatrelay_sweep_duration_seconds",
		Help:    "Duration of staleness sweep passes in seconds",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	})
)

func init() {
	prometheus.MustRegister(
		ActiveParticipants,
		MessagesTotal,
		EvictionsTotal,
		SweepDuration,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
