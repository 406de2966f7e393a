package handler

import (
	"log/slog"
	"net/http"

	"github.com/maktaba-app/maktaba/internal/auth"
	"github.com/maktaba-app/maktaba/internal/entitlement"
	"github.com/maktaba-app/maktaba/internal/service"
)

// LibraryHandler serves the user's personal library: favorites, offline
// markers, and the limits summary. Every route requires an
// authenticated user, enforced by middleware ahead of these handlers.
type LibraryHandler struct {
	library   service.LibraryService
	evaluator entitlement.Evaluator
	logger    *slog.Logger
}

func NewLibraryHandler(library service.LibraryService, evaluator entitlement.Evaluator, logger *slog.Logger) *LibraryHandler {
	return &LibraryHandler{
		library:   library,
		evaluator: evaluator,
		logger:    logger,
	}
}

// AddFavorite handles POST /api/library/{type}/{id}/favorite.
//
// A denial is not an error: the response carries the decision with
// status 403 so the Mini App can render the upsell with current/limit.
func (h *LibraryHandler) AddFavorite(w http.ResponseWriter, r *http.Request) {
	const op = "LibraryHandler.AddFavorite"

	user := auth.GetUserFromRequest(r)
	ct, err := pathContentType(op, r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	id, err := pathUUID(op, r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	decision, err := h.library.AddFavorite(r.Context(), user, ct, id)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	status := http.StatusOK
	if !decision.Allowed {
		status = http.StatusForbidden
	}
	respondJSON(w, status, map[string]interface{}{"decision": decision})
}

// RemoveFavorite handles DELETE /api/library/{type}/{id}/favorite.
func (h *LibraryHandler) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	const op = "LibraryHandler.RemoveFavorite"

	user := auth.GetUserFromRequest(r)
	ct, err := pathContentType(op, r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	id, err := pathUUID(op, r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if err := h.library.RemoveFavorite(r.Context(), user, ct, id); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// ListFavorites handles GET /api/library/{type}/favorites.
func (h *LibraryHandler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	const op = "LibraryHandler.ListFavorites"

	user := auth.GetUserFromRequest(r)
	ct, err := pathContentType(op, r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	entries, err := h.library.ListFavorites(r.Context(), user, ct)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"favorites": newLibraryViews(entries)})
}

// AddOffline handles POST /api/library/{type}/{id}/offline.
func (h *LibraryHandler) AddOffline(w http.ResponseWriter, r *http.Request) {
	const op = "LibraryHandler.AddOffline"

	user := auth.GetUserFromRequest(r)
	ct, err := pathContentType(op, r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	id, err := pathUUID(op, r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	decision, err := h.library.AddOffline(r.Context(), user, ct, id)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	status := http.StatusOK
	if !decision.Allowed {
		status = http.StatusForbidden
	}
	respondJSON(w, status, map[string]interface{}{"decision": decision})
}

// RemoveOffline handles DELETE /api/library/{type}/{id}/offline.
func (h *LibraryHandler) RemoveOffline(w http.ResponseWriter, r *http.Request) {
	const op = "LibraryHandler.RemoveOffline"

	user := auth.GetUserFromRequest(r)
	ct, err := pathContentType(op, r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	id, err := pathUUID(op, r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if err := h.library.RemoveOffline(r.Context(), user, ct, id); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// ListOffline handles GET /api/library/{type}/offline.
func (h *LibraryHandler) ListOffline(w http.ResponseWriter, r *http.Request) {
	const op = "LibraryHandler.ListOffline"

	user := auth.GetUserFromRequest(r)
	ct, err := pathContentType(op, r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	entries, err := h.library.ListOffline(r.Context(), user, ct)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"offline": newLibraryViews(entries)})
}

// Limits handles GET /api/me/limits, the read-only projection the Mini
// App uses for its profile screen.
func (h *LibraryHandler) Limits(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromRequest(r)

	summary, err := h.evaluator.LimitsSummary(r.Context(), user)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}
