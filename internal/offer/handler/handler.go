package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"dealflow/internal/offer"
	id "dealflow/pkg/domain"
	"dealflow/pkg/platform/httputil"
	"dealflow/pkg/requestcontext"
)

// Handler wires offer-acceptance endpoints to the offer store.
type Handler struct {
	store  offer.Store
	logger *slog.Logger
}

// New constructs an offer handler.
func New(store offer.Store, logger *slog.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// Register mounts offer endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Put("/transactions/{transactionID}/offer/accepted", h.HandleMarkAccepted)
	r.Delete("/transactions/{transactionID}/offer/accepted", h.HandleClearAccepted)
}

// HandleMarkAccepted handles PUT /transactions/{transactionID}/offer/accepted.
func (h *Handler) HandleMarkAccepted(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	txID, err := id.ParseTransactionID(chi.URLParam(r, "transactionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	at := requestcontext.Now(ctx)
	if err := h.store.MarkAccepted(ctx, txID, at); err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "offer marked accepted", "transaction_id", txID)
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"transaction_id": txID, "accepted_at": at})
}

// HandleClearAccepted handles DELETE /transactions/{transactionID}/offer/accepted.
func (h *Handler) HandleClearAccepted(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	txID, err := id.ParseTransactionID(chi.URLParam(r, "transactionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.store.ClearAccepted(ctx, txID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"transaction_id": txID})
}
