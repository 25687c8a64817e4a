package models

import (
	"time"

	id "dealflow/pkg/domain"
	dErrors "dealflow/pkg/domain-errors"
)

// SagaStep names one stage of the identity-compliance sub-workflow. The
// saga runs record → evidence → resolve, in order, each step idempotent.
type SagaStep string

const (
	SagaStepNone     SagaStep = ""
	SagaStepRecord   SagaStep = "record"
	SagaStepEvidence SagaStep = "evidence"
	SagaStepResolve  SagaStep = "resolve"
)

// order returns the step's position in the saga; SagaStepNone is 0.
func (s SagaStep) order() int {
	switch s {
	case SagaStepRecord:
		return 1
	case SagaStepEvidence:
		return 2
	case SagaStepResolve:
		return 3
	}
	return 0
}

// Reached reports whether the saga has already completed the given step.
func (s SagaStep) Reached(step SagaStep) bool {
	return s.order() >= step.order()
}

// Identity carries the verified party's attributes. PartyID references a
// party held by an external collaborator; this engine never resolves it.
type Identity struct {
	PartyID     string `json:"party_id"`
	FullName    string `json:"full_name,omitempty"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
	DocumentRef string `json:"document_ref,omitempty"`
}

// Record is the durable outcome of an identity-verification check plus the
// saga position for the sub-workflow that closes out the underlying
// condition. LastCompletedStep is the resumption marker: a re-run inspects
// it and continues from the first step not yet done, so a crash between
// steps never forces a client to replay completed work.
type Record struct {
	ID            id.ConditionID   `json:"id"` // keyed by the condition it closes
	ConditionID   id.ConditionID   `json:"condition_id"`
	TransactionID id.TransactionID `json:"transaction_id"`

	Party Identity `json:"party"`

	Outcome     string `json:"outcome"`
	ReferenceID string `json:"reference_id,omitempty"`
	EvidenceRef string `json:"evidence_ref,omitempty"`

	VerifiedAt *time.Time `json:"verified_at,omitempty"`
	VerifiedBy id.UserID  `json:"verified_by,omitempty"`

	LastCompletedStep SagaStep `json:"last_completed_step"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CanMarkStep enforces strict saga ordering: a step may only complete when
// the previous one has.
func (r *Record) CanMarkStep(step SagaStep) error {
	if r.LastCompletedStep.Reached(step) {
		return nil // idempotent re-mark
	}
	if step.order() != r.LastCompletedStep.order()+1 {
		return dErrors.Newf(dErrors.CodeConflict,
			"cannot complete saga step %q after %q", step, r.LastCompletedStep)
	}
	return nil
}

// ApplyStep advances the resumption marker. Call CanMarkStep first.
func (r *Record) ApplyStep(step SagaStep, now time.Time) {
	if r.LastCompletedStep.Reached(step) {
		return
	}
	r.LastCompletedStep = step
	r.UpdatedAt = now
}

// Reached reports whether the saga has completed the given step.
func (r *Record) Reached(step SagaStep) bool {
	return r.LastCompletedStep.Reached(step)
}

// Done reports whether the whole sub-workflow has run.
func (r *Record) Done() bool {
	return r.LastCompletedStep == SagaStepResolve
}

// ApplyVerification persists the identity attributes and stamps
// verifiedAt/verifiedBy. Re-verification overwrites, never errors.
func (r *Record) ApplyVerification(party Identity, by id.UserID, now time.Time) {
	r.Party = party
	r.VerifiedAt = &now
	r.VerifiedBy = by
	r.UpdatedAt = now
}

// NewRecord constructs a fresh record with no saga progress.
func NewRecord(conditionID id.ConditionID, txID id.TransactionID, outcome, referenceID string, now time.Time) (*Record, error) {
	if outcome == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "compliance outcome cannot be empty")
	}
	return &Record{
		ID:            conditionID,
		ConditionID:   conditionID,
		TransactionID: txID,
		Outcome:       outcome,
		ReferenceID:   referenceID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}
