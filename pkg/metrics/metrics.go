// Package metrics exposes Prometheus collectors for the actor runtime.
//
// Every collector is registered with the default Prometheus registry at
// package init and updated on the hot paths (mailbox delivery, dispatcher
// scheduling, registry transitions) regardless of configuration.
// Params.MessageTracing (see pkg/env) only controls whether a scrape
// endpoint is served.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// MailboxDeliveries counts deliver() calls by mailbox kind and outcome.
	MailboxDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agency_mailbox_deliveries_total",
			Help: "Total number of mailbox deliveries by mailbox kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	// DeadlettersTotal counts events that fell through to a deadletter handler.
	DeadlettersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agency_deadletters_total",
			Help: "Total number of messages routed to a deadletter handler",
		},
		[]string{"mailbox"},
	)

	// EventQueueDepth tracks the current pending-event count per agent.
	EventQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "agency_event_queue_depth",
			Help: "Current number of pending events in an agent's event queue",
		},
		[]string{"agent"},
	)

	// DispatcherScheduled counts TryExecOne attempts a dispatcher worker
	// makes, by dispatcher and kind.
	DispatcherScheduled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agency_dispatcher_scheduled_total",
			Help: "Total number of schedule requests accepted by a dispatcher",
		},
		[]string{"dispatcher", "kind"},
	)

	// EventHandlingDuration measures how long a single handler invocation took.
	EventHandlingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agency_event_handling_duration_seconds",
			Help:    "Time spent inside a single agent event handler invocation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"dispatcher"},
	)

	// CoopsTotal tracks the number of live cooperations by lifecycle phase.
	CoopsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "agency_cooperations_total",
			Help: "Total number of cooperations by lifecycle phase",
		},
		[]string{"phase"},
	)

	// CoopUsageCount mirrors a single cooperation's live usage counter.
	CoopUsageCount = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "agency_cooperation_usage_count",
			Help: "Current usage count of a registered cooperation",
		},
		[]string{"coop"},
	)

	// ExceptionReactionsTotal counts handler exceptions by the reaction taken.
	ExceptionReactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agency_exception_reactions_total",
			Help: "Total number of handler exceptions by reaction policy applied",
		},
		[]string{"reaction"},
	)

	// SvcRequestDuration measures synchronous service request round trips.
	SvcRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agency_svc_request_duration_seconds",
			Help:    "Time taken for a synchronous service request to complete",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		MailboxDeliveries,
		DeadlettersTotal,
		EventQueueDepth,
		DispatcherScheduled,
		EventHandlingDuration,
		CoopsTotal,
		CoopUsageCount,
		ExceptionReactionsTotal,
		SvcRequestDuration,
	)
}

// Handler returns the Prometheus HTTP handler for a scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
