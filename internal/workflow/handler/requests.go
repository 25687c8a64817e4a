package handler

import (
	"net/mail"
	"strings"

	"dealflow/internal/workflow/models"
	dErrors "dealflow/pkg/domain-errors"
)

const maxNoteLength = 2000

// CreateTransactionRequest is the HTTP request body for POST /transactions.
type CreateTransactionRequest struct {
	Type        string `json:"type"`
	ClientName  string `json:"client_name"`
	PropertyRef string `json:"property_ref,omitempty"`
}

// Validate validates and normalizes the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *CreateTransactionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if !models.TransactionType(r.Type).Valid() {
		return dErrors.Newf(dErrors.CodeValidation, "invalid transaction type %q", r.Type)
	}
	r.ClientName = strings.TrimSpace(r.ClientName)
	if r.ClientName == "" {
		return dErrors.New(dErrors.CodeValidation, "client_name is required")
	}
	r.PropertyRef = strings.TrimSpace(r.PropertyRef)
	return nil
}

// AdvanceRequest is the HTTP request body for POST /transactions/{id}/advance
// and skip. The body is optional; an empty one advances without a note or
// notification.
type AdvanceRequest struct {
	Note        string `json:"note,omitempty"`
	NotifyEmail string `json:"notify_email,omitempty"`
}

// Validate normalizes and validates the optional fields.
func (r *AdvanceRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.Note) > maxNoteLength {
		return dErrors.Newf(dErrors.CodeValidation, "note must be at most %d characters", maxNoteLength)
	}
	r.NotifyEmail = strings.TrimSpace(r.NotifyEmail)
	if r.NotifyEmail != "" {
		if _, err := mail.ParseAddress(r.NotifyEmail); err != nil {
			return dErrors.New(dErrors.CodeValidation, "notify_email is not a valid address")
		}
	}
	return nil
}

// GoToStepRequest is the HTTP request body for POST /transactions/{id}/go-to-step.
type GoToStepRequest struct {
	StepOrder int `json:"step_order"`
}

// Validate checks the target order is plausible; existence is checked
// against the transaction's own steps by the service.
func (r *GoToStepRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.StepOrder < 1 {
		return dErrors.New(dErrors.CodeValidation, "step_order must be at least 1")
	}
	return nil
}
