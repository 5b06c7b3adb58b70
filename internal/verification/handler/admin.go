package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	dErrors "docverify/pkg/domain-errors"
	"docverify/pkg/platform/circuit"
	"docverify/pkg/platform/httputil"
	"docverify/pkg/platform/sentinel"
	"docverify/pkg/requestcontext"
)

// AdminHandler lets operators inspect and reset collaborator breakers.
type AdminHandler struct {
	breakers *circuit.Registry
	logger   *slog.Logger
}

func NewAdmin(breakers *circuit.Registry, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{breakers: breakers, logger: logger}
}

// Register mounts the admin endpoints on r.
func (h *AdminHandler) Register(r chi.Router) {
	r.Get("/breakers", h.HandleListBreakers)
	r.Post("/breakers/{name}/reset", h.HandleResetBreaker)
}

type breakerList struct {
	Breakers []circuit.Snapshot `json:"breakers"`
}

func (h *AdminHandler) HandleListBreakers(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, breakerList{Breakers: h.breakers.Snapshots()})
}

func (h *AdminHandler) HandleResetBreaker(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := chi.URLParam(r, "name")
	if err := h.breakers.Reset(name); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			httputil.WriteError(w, r, dErrors.Wrap(err, dErrors.CodeNotFound, "breaker not found"))
			return
		}
		httputil.WriteError(w, r, err)
		return
	}
	h.logger.InfoContext(ctx, "circuit breaker reset by operator",
		"breaker", name,
		"request_id", requestcontext.RequestID(ctx),
	)
	httputil.WriteJSON(w, http.StatusOK, h.breakers.Get(name).Snapshot())
}
