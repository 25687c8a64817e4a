package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"dealflow/internal/pack/models"
	"dealflow/internal/pack/service"
	id "dealflow/pkg/domain"
	dErrors "dealflow/pkg/domain-errors"
	"dealflow/pkg/platform/httputil"
	"dealflow/pkg/requestcontext"
)

// Service defines the interface for pack operations.
type Service interface {
	ListPacks(ctx context.Context) ([]*models.Pack, error)
	ApplyPack(ctx context.Context, txID id.TransactionID, packID id.PackID, selection []id.TemplateID) (*service.ApplyResult, error)
}

// Handler wires pack endpoints to the pack service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a pack handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts pack endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/packs", h.HandleList)
	r.Post("/transactions/{transactionID}/packs/{packID}", h.HandleApply)
}

// HandleList handles GET /packs.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	packs, err := h.service.ListPacks(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"packs": packs})
}

// HandleApply handles POST /transactions/{transactionID}/packs/{packID}.
// The response is 200 even when some templates failed; callers inspect the
// per-item result.
func (h *Handler) HandleApply(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	txID, err := id.ParseTransactionID(chi.URLParam(r, "transactionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	packID := id.PackID(chi.URLParam(r, "packID"))
	if packID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "pack id is required"))
		return
	}

	selection, err := decodeSelection(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.ApplyPack(ctx, txID, packID, selection)
	if err != nil {
		h.logger.ErrorContext(ctx, "pack application failed",
			"request_id", requestID,
			"transaction_id", txID,
			"pack_id", string(packID),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// decodeSelection reads the optional request body. No body, or an empty
// template list, means the whole pack.
func decodeSelection(r *http.Request) ([]id.TemplateID, error) {
	var body struct {
		TemplateIDs []string `json:"template_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, dErrors.New(dErrors.CodeBadRequest, "malformed request body")
	}

	selection := make([]id.TemplateID, 0, len(body.TemplateIDs))
	for _, raw := range body.TemplateIDs {
		templateID, err := id.ParseTemplateID(raw)
		if err != nil {
			return nil, err
		}
		selection = append(selection, templateID)
	}
	return selection, nil
}
