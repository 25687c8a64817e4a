package models

import (
	"time"

	id "dealflow/pkg/domain"
	dErrors "dealflow/pkg/domain-errors"
)

// StepStatus is the lifecycle state of one instantiated step.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepActive    StepStatus = "active"
	StepCompleted StepStatus = "completed"
	StepSkipped   StepStatus = "skipped"
)

// TransactionStep instantiates a template step for one transaction.
// Exactly one instance exists per template step per transaction; StepOrder
// is inherited from the template and is unique and contiguous.
type TransactionStep struct {
	ID            id.StepID        `json:"id"`
	TransactionID id.TransactionID `json:"transaction_id"`
	Name          string           `json:"name"`
	StepOrder     int              `json:"step_order"`
	Status        StepStatus       `json:"status"`

	// RequiresAcceptedOffer is a step-level policy copied from the
	// template: the gate refuses to advance past this step until the
	// transaction carries an accepted offer.
	RequiresAcceptedOffer bool `json:"requires_accepted_offer"`

	EnteredAt   *time.Time `json:"entered_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CanActivate checks the step may become the active one.
func (s *TransactionStep) CanActivate() error {
	if s.Status == StepActive {
		return dErrors.New(dErrors.CodeInvariantViolation, "step is already active")
	}
	return nil
}

// ApplyActivation makes the step active. Reactivating a previously closed
// step (correction jump) clears its completion timestamp.
func (s *TransactionStep) ApplyActivation(now time.Time) {
	s.Status = StepActive
	s.EnteredAt = &now
	s.CompletedAt = nil
	s.UpdatedAt = now
}

// CanClose checks the step is the active one before completing or skipping.
func (s *TransactionStep) CanClose() error {
	if s.Status != StepActive {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "cannot close step in status %q", s.Status)
	}
	return nil
}

// ApplyCompletion closes the step as done.
func (s *TransactionStep) ApplyCompletion(now time.Time) {
	s.Status = StepCompleted
	s.CompletedAt = &now
	s.UpdatedAt = now
}

// ApplySkip closes the step as explicitly not applicable.
func (s *TransactionStep) ApplySkip(now time.Time) {
	s.Status = StepSkipped
	s.CompletedAt = &now
	s.UpdatedAt = now
}

// ApplyReturnToPending deactivates the step without closing it. Used when
// a correction jump moves the active position elsewhere; the step's
// conditions stay live.
func (s *TransactionStep) ApplyReturnToPending(now time.Time) {
	s.Status = StepPending
	s.EnteredAt = nil
	s.UpdatedAt = now
}
