package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"dealflow/internal/preference"
	dErrors "dealflow/pkg/domain-errors"
	"dealflow/pkg/platform/httputil"
	"dealflow/pkg/requestcontext"
)

// Handler wires preference endpoints to the preference store. Preferences
// always belong to the authenticated user; the user ID comes from the
// request context, never from the body.
type Handler struct {
	store  preference.Store
	logger *slog.Logger
}

// New constructs a preference handler.
func New(store preference.Store, logger *slog.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// Register mounts preference endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/preferences", h.HandleList)
	r.Put("/preferences/{key}", h.HandleSet)
}

// SetRequest is the HTTP request body for PUT /preferences/{key}.
type SetRequest struct {
	Value bool `json:"value"`
}

// Validate implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *SetRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	return nil
}

// HandleList handles GET /preferences.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := requestcontext.UserID(ctx)
	if userID.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "authentication required"))
		return
	}

	prefs, err := h.store.ListByUser(ctx, userID)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list preferences"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"preferences": prefs})
}

// HandleSet handles PUT /preferences/{key}.
func (h *Handler) HandleSet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	userID := requestcontext.UserID(ctx)
	if userID.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "authentication required"))
		return
	}

	key := preference.Key(chi.URLParam(r, "key"))
	if key == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "preference key is required"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[SetRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	pref := preference.Preference{
		UserID:    userID,
		Key:       key,
		Value:     req.Value,
		UpdatedAt: requestcontext.Now(ctx),
	}
	if err := h.store.Set(ctx, pref); err != nil {
		h.logger.ErrorContext(ctx, "preference write failed",
			"request_id", requestID,
			"user_id", userID,
			"key", string(key),
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save preference"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, pref)
}
