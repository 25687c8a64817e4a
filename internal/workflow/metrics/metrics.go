package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	StepsAdvanced        prometheus.Counter
	StepsSkipped         prometheus.Counter
	StepJumps            prometheus.Counter
	AdvancesBlocked      prometheus.Counter
	NotificationFailures prometheus.Counter
	LifecyclesCompleted  prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		StepsAdvanced: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dealflow_steps_advanced_total",
			Help: "Total number of steps completed through advance",
		}),
		StepsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dealflow_steps_skipped_total",
			Help: "Total number of steps closed through the skip override",
		}),
		StepJumps: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dealflow_step_jumps_total",
			Help: "Total number of explicit go-to-step corrections",
		}),
		AdvancesBlocked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dealflow_advances_blocked_total",
			Help: "Total number of advance attempts rejected by the gate",
		}),
		NotificationFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dealflow_step_notification_failures_total",
			Help: "Total number of step-transition notifications that failed to send",
		}),
		LifecyclesCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dealflow_transactions_completed_total",
			Help: "Total number of transactions that ran through their final step",
		}),
	}
}
