package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	JobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unileads_job_runs_total",
			Help: "Job invocations by job name and outcome",
		},
		[]string{"job", "outcome"},
	)

	OutboxCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "unileads_outbox_created_total",
			Help: "Outbox messages created",
		},
	)

	OutboxSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "unileads_outbox_skipped_total",
			Help: "Outbox inserts skipped as duplicates",
		},
	)

	WebhookFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "unileads_webhook_relay_failures_total",
			Help: "Delivery webhook relays that failed after retries",
		},
	)

	LeadDispatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unileads_lead_dispatches_total",
			Help: "Lead instant-message dispatches by outcome",
		},
		[]string{"outcome"},
	)
)

func Init() {
	prometheus.MustRegister(
		JobRuns,
		OutboxCreated,
		OutboxSkipped,
		WebhookFailures,
		LeadDispatches,
	)
}
