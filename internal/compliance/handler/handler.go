package handler

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"dealflow/internal/compliance/models"
	"dealflow/internal/compliance/service"
	"dealflow/internal/evidence"
	id "dealflow/pkg/domain"
	dErrors "dealflow/pkg/domain-errors"
	"dealflow/pkg/platform/httputil"
	"dealflow/pkg/requestcontext"
)

// Service defines the interface for compliance operations.
type Service interface {
	Get(ctx context.Context, conditionID id.ConditionID) (*models.Record, error)
	Run(ctx context.Context, conditionID id.ConditionID, input service.RunInput) (*service.RunResult, error)
	CompleteRecord(ctx context.Context, conditionID id.ConditionID, input service.RunInput) (*models.Record, error)
	AttachEvidence(ctx context.Context, conditionID id.ConditionID, input service.RunInput) (*models.Record, error)
	Resolve(ctx context.Context, conditionID id.ConditionID, input service.RunInput) (*service.RunResult, error)
}

// Handler wires compliance endpoints to the compliance service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a compliance handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts compliance endpoints on the router. The /run endpoint
// drives the whole saga; the step endpoints exist for callers that pace
// the sub-workflow themselves.
func (h *Handler) Register(r chi.Router) {
	r.Get("/conditions/{conditionID}/compliance", h.HandleGet)
	r.Post("/conditions/{conditionID}/compliance/run", h.HandleRun)
	r.Post("/conditions/{conditionID}/compliance/record", h.HandleCompleteRecord)
	r.Post("/conditions/{conditionID}/compliance/evidence", h.HandleAttachEvidence)
	r.Post("/conditions/{conditionID}/compliance/resolve", h.HandleResolve)
}

// RunRequest is the HTTP request body for POST /conditions/{id}/compliance/run.
// The same body re-runs a partially completed saga; the server resumes
// from its own marker.
type RunRequest struct {
	PartyID     string `json:"party_id"`
	FullName    string `json:"full_name,omitempty"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
	DocumentRef string `json:"document_ref,omitempty"`

	Outcome     string `json:"outcome"`
	ReferenceID string `json:"reference_id,omitempty"`
	Note        string `json:"note,omitempty"`

	DocumentName        string `json:"document_name"`
	DocumentContentType string `json:"document_content_type"`
	DocumentContent     string `json:"document_content"` // base64

	parsedContent []byte
}

// Validate validates and decodes the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *RunRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.PartyID = strings.TrimSpace(r.PartyID)
	if r.PartyID == "" {
		return dErrors.New(dErrors.CodeValidation, "party_id is required")
	}
	r.Outcome = strings.TrimSpace(r.Outcome)
	if r.Outcome == "" {
		return dErrors.New(dErrors.CodeValidation, "outcome is required")
	}
	if r.DocumentName == "" {
		return dErrors.New(dErrors.CodeValidation, "document_name is required")
	}
	content, err := base64.StdEncoding.DecodeString(r.DocumentContent)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "document_content must be base64")
	}
	if len(content) == 0 {
		return dErrors.New(dErrors.CodeValidation, "document_content is required")
	}
	r.parsedContent = content
	return nil
}

// ToInput maps the request onto the saga input.
func (r *RunRequest) ToInput() service.RunInput {
	return service.RunInput{
		Party: models.Identity{
			PartyID:     r.PartyID,
			FullName:    r.FullName,
			DateOfBirth: r.DateOfBirth,
			DocumentRef: r.DocumentRef,
		},
		Outcome:     r.Outcome,
		ReferenceID: r.ReferenceID,
		Note:        r.Note,
		Document: evidence.Document{
			Name:        r.DocumentName,
			ContentType: r.DocumentContentType,
			Content:     r.parsedContent,
		},
	}
}

// RecordRequest is the body for the standalone record step. No document:
// evidence has its own step.
type RecordRequest struct {
	PartyID     string `json:"party_id"`
	FullName    string `json:"full_name,omitempty"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
	DocumentRef string `json:"document_ref,omitempty"`

	Outcome     string `json:"outcome"`
	ReferenceID string `json:"reference_id,omitempty"`
	Note        string `json:"note,omitempty"`
}

// Validate validates the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *RecordRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.PartyID = strings.TrimSpace(r.PartyID)
	if r.PartyID == "" {
		return dErrors.New(dErrors.CodeValidation, "party_id is required")
	}
	r.Outcome = strings.TrimSpace(r.Outcome)
	if r.Outcome == "" {
		return dErrors.New(dErrors.CodeValidation, "outcome is required")
	}
	return nil
}

// ToInput maps the request onto the saga input.
func (r *RecordRequest) ToInput() service.RunInput {
	return service.RunInput{
		Party: models.Identity{
			PartyID:     r.PartyID,
			FullName:    r.FullName,
			DateOfBirth: r.DateOfBirth,
			DocumentRef: r.DocumentRef,
		},
		Outcome:     r.Outcome,
		ReferenceID: r.ReferenceID,
		Note:        r.Note,
	}
}

// EvidenceRequest is the body for the standalone evidence step.
type EvidenceRequest struct {
	Note string `json:"note,omitempty"`

	DocumentName        string `json:"document_name"`
	DocumentContentType string `json:"document_content_type"`
	DocumentContent     string `json:"document_content"` // base64

	parsedContent []byte
}

// Validate validates and decodes the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *EvidenceRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.DocumentName == "" {
		return dErrors.New(dErrors.CodeValidation, "document_name is required")
	}
	content, err := base64.StdEncoding.DecodeString(r.DocumentContent)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "document_content must be base64")
	}
	if len(content) == 0 {
		return dErrors.New(dErrors.CodeValidation, "document_content is required")
	}
	r.parsedContent = content
	return nil
}

// ToInput maps the request onto the saga input.
func (r *EvidenceRequest) ToInput() service.RunInput {
	return service.RunInput{
		Note: r.Note,
		Document: evidence.Document{
			Name:        r.DocumentName,
			ContentType: r.DocumentContentType,
			Content:     r.parsedContent,
		},
	}
}

// HandleGet handles GET /conditions/{conditionID}/compliance.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	conditionID, err := id.ParseConditionID(chi.URLParam(r, "conditionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	record, err := h.service.Get(ctx, conditionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, record)
}

// HandleRun handles POST /conditions/{conditionID}/compliance/run.
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	conditionID, err := id.ParseConditionID(chi.URLParam(r, "conditionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[RunRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.Run(ctx, conditionID, req.ToInput())
	if err != nil {
		h.logger.ErrorContext(ctx, "compliance run failed",
			"request_id", requestID,
			"condition_id", conditionID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "compliance run finished",
		"request_id", requestID,
		"condition_id", conditionID,
		"resumed_after", string(result.ResumedAfter),
	)
	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandleCompleteRecord handles POST /conditions/{conditionID}/compliance/record.
func (h *Handler) HandleCompleteRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	conditionID, err := id.ParseConditionID(chi.URLParam(r, "conditionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[RecordRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	record, err := h.service.CompleteRecord(ctx, conditionID, req.ToInput())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, record)
}

// HandleAttachEvidence handles POST /conditions/{conditionID}/compliance/evidence.
func (h *Handler) HandleAttachEvidence(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	conditionID, err := id.ParseConditionID(chi.URLParam(r, "conditionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[EvidenceRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	record, err := h.service.AttachEvidence(ctx, conditionID, req.ToInput())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, record)
}

// HandleResolve handles POST /conditions/{conditionID}/compliance/resolve.
// No body: everything the final step needs is already on the record.
func (h *Handler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	conditionID, err := id.ParseConditionID(chi.URLParam(r, "conditionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.Resolve(ctx, conditionID, service.RunInput{})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}
