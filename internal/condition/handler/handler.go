package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"dealflow/internal/condition/models"
	id "dealflow/pkg/domain"
	"dealflow/pkg/platform/httputil"
	"dealflow/pkg/requestcontext"
)

// Service defines the interface for condition operations.
type Service interface {
	CreateManual(ctx context.Context, txID id.TransactionID, stepID *id.StepID, title string, category models.Category, level models.Level, dueDate *time.Time) (*models.Condition, error)
	Resolve(ctx context.Context, conditionID id.ConditionID, input models.ResolveInput) (*models.Condition, error)
	Unresolve(ctx context.Context, conditionID id.ConditionID) (*models.Condition, error)
	Get(ctx context.Context, conditionID id.ConditionID) (*models.Condition, error)
	ListByTransaction(ctx context.Context, txID id.TransactionID) ([]*models.Condition, error)
}

// Handler wires condition endpoints to the condition service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a condition handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts condition endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/transactions/{transactionID}/conditions", h.HandleCreate)
	r.Get("/transactions/{transactionID}/conditions", h.HandleList)
	r.Get("/conditions/{conditionID}", h.HandleGet)
	r.Post("/conditions/{conditionID}/resolve", h.HandleResolve)
	r.Post("/conditions/{conditionID}/unresolve", h.HandleUnresolve)
}

// HandleCreate handles POST /transactions/{transactionID}/conditions.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	txID, err := id.ParseTransactionID(chi.URLParam(r, "transactionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[CreateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	condition, err := h.service.CreateManual(ctx, txID, req.ParsedStepID(), req.Title,
		models.Category(req.Category), models.Level(req.Level), req.ParsedDueDate())
	if err != nil {
		h.logger.ErrorContext(ctx, "condition creation failed",
			"request_id", requestID,
			"transaction_id", txID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, condition)
}

// HandleList handles GET /transactions/{transactionID}/conditions.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	txID, err := id.ParseTransactionID(chi.URLParam(r, "transactionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	conditions, err := h.service.ListByTransaction(ctx, txID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"conditions": conditions})
}

// HandleGet handles GET /conditions/{conditionID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	conditionID, err := id.ParseConditionID(chi.URLParam(r, "conditionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	condition, err := h.service.Get(ctx, conditionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, condition)
}

// HandleResolve handles POST /conditions/{conditionID}/resolve.
func (h *Handler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	conditionID, err := id.ParseConditionID(chi.URLParam(r, "conditionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[ResolveRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	condition, err := h.service.Resolve(ctx, conditionID, req.ToInput())
	if err != nil {
		h.logger.ErrorContext(ctx, "condition resolution failed",
			"request_id", requestID,
			"condition_id", conditionID,
			"resolution_type", req.ResolutionType,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "condition resolved",
		"request_id", requestID,
		"condition_id", conditionID,
		"resolution_type", req.ResolutionType,
		"escaped_without_proof", condition.EscapedWithoutProof,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, condition)
}

// HandleUnresolve handles POST /conditions/{conditionID}/unresolve.
func (h *Handler) HandleUnresolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	conditionID, err := id.ParseConditionID(chi.URLParam(r, "conditionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	condition, err := h.service.Unresolve(ctx, conditionID)
	if err != nil {
		h.logger.ErrorContext(ctx, "condition unresolve failed",
			"request_id", requestID,
			"condition_id", conditionID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, condition)
}
