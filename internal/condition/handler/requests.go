package handler

import (
	"strings"
	"time"

	"dealflow/internal/condition/models"
	id "dealflow/pkg/domain"
	dErrors "dealflow/pkg/domain-errors"
)

const maxTitleLength = 200

// CreateRequest is the HTTP request body for POST /transactions/{id}/conditions.
type CreateRequest struct {
	StepID   string `json:"step_id,omitempty"`
	Title    string `json:"title"`
	Category string `json:"category,omitempty"`
	Level    string `json:"level"`
	DueDate  string `json:"due_date,omitempty"`

	parsedStepID  *id.StepID
	parsedDueDate *time.Time
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *CreateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.Title = strings.TrimSpace(r.Title)
	if r.Title == "" {
		return dErrors.New(dErrors.CodeValidation, "title is required")
	}
	if len(r.Title) > maxTitleLength {
		return dErrors.Newf(dErrors.CodeValidation, "title must be at most %d characters", maxTitleLength)
	}
	if !models.Level(r.Level).Valid() {
		return dErrors.Newf(dErrors.CodeValidation, "invalid level %q", r.Level)
	}

	if r.StepID != "" {
		stepID, err := id.ParseStepID(r.StepID)
		if err != nil {
			return err
		}
		r.parsedStepID = &stepID
	}
	if r.DueDate != "" {
		due, err := time.Parse(time.RFC3339, r.DueDate)
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, "due_date must be RFC 3339")
		}
		r.parsedDueDate = &due
	}
	return nil
}

// ParsedStepID returns the validated step ID, or nil for a global condition.
func (r *CreateRequest) ParsedStepID() *id.StepID {
	return r.parsedStepID
}

// ParsedDueDate returns the validated due date.
func (r *CreateRequest) ParsedDueDate() *time.Time {
	return r.parsedDueDate
}

// ResolveRequest is the HTTP request body for POST /conditions/{id}/resolve.
type ResolveRequest struct {
	ResolutionType string `json:"resolution_type"`
	Note           string `json:"note,omitempty"`

	EvidenceRef string `json:"evidence_ref,omitempty"`

	EscapedWithoutProof bool   `json:"escaped_without_proof,omitempty"`
	EscapeReason        string `json:"escape_reason,omitempty"`
	Acknowledged        bool   `json:"acknowledged,omitempty"`
	ConfirmationPhrase  string `json:"confirmation_phrase,omitempty"`
}

// Validate checks only the wire shape. The level-dependent evidence rules
// live in the domain model, where they also guard non-HTTP callers.
func (r *ResolveRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if !models.ResolutionType(r.ResolutionType).Valid() {
		return dErrors.Newf(dErrors.CodeValidation, "invalid resolution type %q", r.ResolutionType)
	}
	return nil
}

// ToInput maps the request onto the domain resolve input.
func (r *ResolveRequest) ToInput() models.ResolveInput {
	return models.ResolveInput{
		ResolutionType:      models.ResolutionType(r.ResolutionType),
		Note:                r.Note,
		HasEvidence:         r.EvidenceRef != "",
		EvidenceRef:         r.EvidenceRef,
		EscapedWithoutProof: r.EscapedWithoutProof,
		EscapeReason:        r.EscapeReason,
		Acknowledged:        r.Acknowledged,
		ConfirmationPhrase:  r.ConfirmationPhrase,
	}
}
