// Package notify delivers step-transition notifications. Delivery is
// fire-and-forget relative to the step transition: a failed notification is
// logged and surfaced as a secondary error, never rolled into the
// already-committed transition.
package notify

import (
	"context"
	"log/slog"
	"time"
)

// StepTransition is the event emitted when a transaction closes a step.
type StepTransition struct {
	TransactionID string    `json:"transaction_id"`
	FromStep      string    `json:"from_step"`
	ToStep        string    `json:"to_step,omitempty"`
	Outcome       string    `json:"outcome"` // completed | skipped
	Note          string    `json:"note,omitempty"`
	Email         string    `json:"email,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Notifier delivers step-transition events to interested parties.
type Notifier interface {
	NotifyStepTransition(ctx context.Context, event StepTransition) error
}

// LogNotifier writes events to the log. It stands in when no broker is
// configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) NotifyStepTransition(ctx context.Context, event StepTransition) error {
	n.logger.InfoContext(ctx, "step transition",
		"transaction_id", event.TransactionID,
		"from_step", event.FromStep,
		"to_step", event.ToStep,
		"outcome", event.Outcome,
		"email", event.Email,
	)
	return nil
}
