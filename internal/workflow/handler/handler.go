package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"dealflow/internal/workflow/models"
	"dealflow/internal/workflow/service"
	id "dealflow/pkg/domain"
	"dealflow/pkg/platform/httputil"
	"dealflow/pkg/requestcontext"
)

// Service defines the interface for workflow operations.
type Service interface {
	CreateTransaction(ctx context.Context, txType models.TransactionType, clientName, propertyRef string) (*models.Transaction, error)
	Get(ctx context.Context, txID id.TransactionID) (*models.Transaction, error)
	ListSteps(ctx context.Context, txID id.TransactionID) ([]*models.TransactionStep, error)
	AdvanceCheck(ctx context.Context, txID id.TransactionID) (*models.GateResult, error)
	Advance(ctx context.Context, txID id.TransactionID, input service.AdvanceInput) (*service.TransitionResult, error)
	Skip(ctx context.Context, txID id.TransactionID) (*service.TransitionResult, error)
	GoToStep(ctx context.Context, txID id.TransactionID, targetOrder int) (*service.TransitionResult, error)
}

// Handler wires workflow endpoints to the workflow service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a workflow handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts workflow endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/transactions", h.HandleCreate)
	r.Get("/transactions/{transactionID}", h.HandleGet)
	r.Get("/transactions/{transactionID}/steps", h.HandleListSteps)
	r.Get("/transactions/{transactionID}/advance-check", h.HandleAdvanceCheck)
	r.Post("/transactions/{transactionID}/advance", h.HandleAdvance)
	r.Post("/transactions/{transactionID}/skip", h.HandleSkip)
	r.Post("/transactions/{transactionID}/go-to-step", h.HandleGoToStep)
}

// HandleCreate handles POST /transactions.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateTransactionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	t, err := h.service.CreateTransaction(ctx, models.TransactionType(req.Type), req.ClientName, req.PropertyRef)
	if err != nil {
		h.logger.ErrorContext(ctx, "transaction creation failed",
			"request_id", requestID,
			"type", req.Type,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "transaction created",
		"request_id", requestID,
		"transaction_id", t.ID,
		"type", req.Type,
	)
	httputil.WriteJSON(w, http.StatusCreated, t)
}

// HandleGet handles GET /transactions/{transactionID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	txID, err := id.ParseTransactionID(chi.URLParam(r, "transactionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	t, err := h.service.Get(ctx, txID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, t)
}

// HandleListSteps handles GET /transactions/{transactionID}/steps.
func (h *Handler) HandleListSteps(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	txID, err := id.ParseTransactionID(chi.URLParam(r, "transactionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	steps, err := h.service.ListSteps(ctx, txID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"steps": steps})
}

// HandleAdvanceCheck handles GET /transactions/{transactionID}/advance-check.
// Read-only; never mutates and never blocks on the advancement lock.
func (h *Handler) HandleAdvanceCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	txID, err := id.ParseTransactionID(chi.URLParam(r, "transactionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	gate, err := h.service.AdvanceCheck(ctx, txID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, gate)
}

// HandleAdvance handles POST /transactions/{transactionID}/advance. A gate
// rejection returns 409 with the blocking condition list in the details.
func (h *Handler) HandleAdvance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	txID, err := id.ParseTransactionID(chi.URLParam(r, "transactionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[AdvanceRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.Advance(ctx, txID, service.AdvanceInput{Note: req.Note, NotifyEmail: req.NotifyEmail})
	if err != nil {
		var blocked *models.BlockingConditionsError
		if errors.As(err, &blocked) {
			httputil.WriteErrorDetails(w, err, blocked.Gate)
			return
		}
		h.logger.ErrorContext(ctx, "advance failed",
			"request_id", requestID,
			"transaction_id", txID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "step advanced",
		"request_id", requestID,
		"transaction_id", txID,
		"closed_step", result.ClosedStep.Name,
		"lifecycle_complete", result.Transaction.Complete(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandleSkip handles POST /transactions/{transactionID}/skip.
func (h *Handler) HandleSkip(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	txID, err := id.ParseTransactionID(chi.URLParam(r, "transactionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.Skip(ctx, txID)
	if err != nil {
		h.logger.ErrorContext(ctx, "skip failed",
			"request_id", requestID,
			"transaction_id", txID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "step skipped",
		"request_id", requestID,
		"transaction_id", txID,
		"closed_step", result.ClosedStep.Name,
	)
	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandleGoToStep handles POST /transactions/{transactionID}/go-to-step.
func (h *Handler) HandleGoToStep(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	txID, err := id.ParseTransactionID(chi.URLParam(r, "transactionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[GoToStepRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.GoToStep(ctx, txID, req.StepOrder)
	if err != nil {
		h.logger.ErrorContext(ctx, "go-to-step failed",
			"request_id", requestID,
			"transaction_id", txID,
			"step_order", req.StepOrder,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "step jump applied",
		"request_id", requestID,
		"transaction_id", txID,
		"new_step", result.NewStep.Name,
	)
	httputil.WriteJSON(w, http.StatusOK, result)
}
