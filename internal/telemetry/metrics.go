package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skillcheck_sessions_created_total",
		Help: "Checkout sessions created.",
	})

	SessionTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skillcheck_session_transitions_total",
		Help: "Check-and-set transitions by edge and result (applied, rejected).",
	}, []string{"from", "to", "result"})

	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skillcheck_webhook_events_total",
		Help: "Verified webhook events by type.",
	}, []string{"type"})

	WebhookRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skillcheck_webhook_rejected_total",
		Help: "Webhook deliveries rejected by signature verification.",
	})

	Reconciliations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skillcheck_reconciliations_total",
		Help: "Gateway reconciliation attempts by result.",
	}, []string{"result"})

	PipelineActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skillcheck_pipeline_actions_total",
		Help: "Completion pipeline action runs by action and result.",
	}, []string{"action", "result"})
)
