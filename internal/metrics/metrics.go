// Package metrics provides Prometheus metrics for the support chat service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveConnections tracks live websocket connections by role.
	ActiveConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "support_active_connections",
			Help: "Number of currently open chat connections",
		},
		[]string{"role"},
	)

	// MessagesStored counts messages appended to conversations.
	MessagesStored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_messages_stored_total",
			Help: "Total number of chat messages stored, by author",
		},
		[]string{"author"},
	)

	// DuplicatesDropped counts messages suppressed by the dedup window.
	DuplicatesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "support_duplicates_dropped_total",
			Help: "Total number of customer messages dropped as duplicates",
		},
	)

	// Escalations counts human_needed decisions by the rule that fired.
	Escalations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_escalations_total",
			Help: "Total number of conversations escalated to staff",
		},
		[]string{"rule"},
	)

	// BotReplies counts bot replies by source (oracle or fallback).
	BotReplies = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_bot_replies_total",
			Help: "Total number of bot replies generated",
		},
		[]string{"source"},
	)

	// OracleDuration tracks text oracle latency.
	OracleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "support_oracle_duration_seconds",
			Help:    "Duration of text-completion oracle calls",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
	)

	// StateTransitions tracks conversation state changes.
	StateTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_state_transitions_total",
			Help: "Total number of conversation state transitions",
		},
		[]string{"from_state", "to_state"},
	)

	// EscalationJobs counts escalation jobs handled by the worker.
	EscalationJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_escalation_jobs_total",
			Help: "Total number of escalation jobs processed by the worker",
		},
		[]string{"result"},
	)
)

func RecordStateTransition(fromState, toState string) {
	if fromState == toState {
		return
	}
	StateTransitions.WithLabelValues(fromState, toState).Inc()
}

func RecordConnectionOpened(role string) {
	ActiveConnections.WithLabelValues(role).Inc()
}

func RecordConnectionClosed(role string) {
	ActiveConnections.WithLabelValues(role).Dec()
}
