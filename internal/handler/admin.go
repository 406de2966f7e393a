package handler

import (
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/maktaba-app/maktaba/internal/catalog"
	"github.com/maktaba-app/maktaba/internal/domain"
	"github.com/maktaba-app/maktaba/internal/service"
)

// maxUploadMemory is the in-memory buffer for multipart parsing; larger
// parts spill to temp files.
const maxUploadMemory = 32 << 20 // 32 MB

// AdminHandler serves the admin panel API: tier settings, user tier
// assignment, catalog CRUD, and media uploads. Every route is behind
// RequireAdmin middleware.
type AdminHandler struct {
	content       service.ContentService
	subscriptions service.SubscriptionService
	tiers         catalog.Store
	cache         catalog.Clearer
	logger        *slog.Logger
}

func NewAdminHandler(content service.ContentService, subscriptions service.SubscriptionService, tiers catalog.Store, cache catalog.Clearer, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		content:       content,
		subscriptions: subscriptions,
		tiers:         tiers,
		cache:         cache,
		logger:        logger,
	}
}

// =============================================================================
// Tier settings
// =============================================================================

// ListTiers handles GET /api/admin/tiers.
func (h *AdminHandler) ListTiers(w http.ResponseWriter, r *http.Request) {
	settings, err := h.tiers.ListSettings(r.Context())
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"tiers": settings})
}

// UpdateTier handles PUT /api/admin/tiers/{tier}. The whole settings
// bundle is replaced at once and the settings cache is cleared so the
// next entitlement check sees the new limits.
func (h *AdminHandler) UpdateTier(w http.ResponseWriter, r *http.Request) {
	const op = "AdminHandler.UpdateTier"

	tier := domain.TierID(r.PathValue("tier"))

	var settings domain.TierSettings
	if err := decodeJSON(op, w, r, &settings); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	settings.TierID = tier

	if err := h.tiers.ReplaceSettings(r.Context(), settings); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	h.cache.Clear()

	h.logger.Info("tier settings updated", "tier", tier)
	respondJSON(w, http.StatusOK, map[string]interface{}{"tier": settings})
}

// =============================================================================
// User subscriptions
// =============================================================================

// AssignTier handles POST /api/admin/users/{id}/tier.
func (h *AdminHandler) AssignTier(w http.ResponseWriter, r *http.Request) {
	const op = "AdminHandler.AssignTier"

	userID, err := pathUUID(op, r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	var req struct {
		Tier      domain.TierID `json:"tier"`
		ExpiresAt *time.Time    `json:"expiresAt"`
	}
	if err := decodeJSON(op, w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if err := h.subscriptions.AssignTier(r.Context(), userID, req.Tier, req.ExpiresAt); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "assigned"})
}

// SubscriptionHistory handles GET /api/admin/users/{id}/history.
func (h *AdminHandler) SubscriptionHistory(w http.ResponseWriter, r *http.Request) {
	const op = "AdminHandler.SubscriptionHistory"

	userID, err := pathUUID(op, r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	changes, err := h.subscriptions.History(r.Context(), userID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"history": newHistoryViews(changes)})
}

// =============================================================================
// Catalog CRUD
// =============================================================================

type bookRequest struct {
	Title       string             `json:"title"`
	Author      string             `json:"author"`
	Description string             `json:"description"`
	AccessLevel domain.AccessLevel `json:"accessLevel"`
	PageCount   int                `json:"pageCount"`
}

func (req bookRequest) params() domain.BookParams {
	return domain.BookParams{
		Title:       req.Title,
		Author:      req.Author,
		Description: req.Description,
		AccessLevel: req.AccessLevel,
		PageCount:   req.PageCount,
	}
}

// CreateBook handles POST /api/admin/books.
func (h *AdminHandler) CreateBook(w http.ResponseWriter, r *http.Request) {
	const op = "AdminHandler.CreateBook"

	var req bookRequest
	if err := decodeJSON(op, w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	book, err := h.content.CreateBook(r.Context(), req.params())
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]interface{}{"book": book})
}

// UpdateBook handles PUT /api/admin/books/{id}.
func (h *AdminHandler) UpdateBook(w http.ResponseWriter, r *http.Request) {
	const op = "AdminHandler.UpdateBook"

	id, err := pathUUID(op, r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	var req bookRequest
	if err := decodeJSON(op, w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	book, err := h.content.UpdateBook(r.Context(), id, req.params())
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"book": book})
}

// DeleteBook handles DELETE /api/admin/books/{id}.
func (h *AdminHandler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	const op = "AdminHandler.DeleteBook"

	id, err := pathUUID(op, r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if err := h.content.DeleteBook(r.Context(), id); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type nashidRequest struct {
	Title           string             `json:"title"`
	Performer       string             `json:"performer"`
	AccessLevel     domain.AccessLevel `json:"accessLevel"`
	DurationSeconds int                `json:"durationSeconds"`
}

func (req nashidRequest) params() domain.NashidParams {
	return domain.NashidParams{
		Title:           req.Title,
		Performer:       req.Performer,
		AccessLevel:     req.AccessLevel,
		DurationSeconds: req.DurationSeconds,
	}
}

// CreateNashid handles POST /api/admin/nashids.
func (h *AdminHandler) CreateNashid(w http.ResponseWriter, r *http.Request) {
	const op = "AdminHandler.CreateNashid"

	var req nashidRequest
	if err := decodeJSON(op, w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	nashid, err := h.content.CreateNashid(r.Context(), req.params())
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]interface{}{"nashid": nashid})
}

// UpdateNashid handles PUT /api/admin/nashids/{id}.
func (h *AdminHandler) UpdateNashid(w http.ResponseWriter, r *http.Request) {
	const op = "AdminHandler.UpdateNashid"

	id, err := pathUUID(op, r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	var req nashidRequest
	if err := decodeJSON(op, w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	nashid, err := h.content.UpdateNashid(r.Context(), id, req.params())
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"nashid": nashid})
}

// DeleteNashid handles DELETE /api/admin/nashids/{id}.
func (h *AdminHandler) DeleteNashid(w http.ResponseWriter, r *http.Request) {
	const op = "AdminHandler.DeleteNashid"

	id, err := pathUUID(op, r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if err := h.content.DeleteNashid(r.Context(), id); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// =============================================================================
// Media uploads
// =============================================================================

// UploadBookCover handles POST /api/admin/books/{id}/cover (multipart,
// field "file").
func (h *AdminHandler) UploadBookCover(w http.ResponseWriter, r *http.Request) {
	const op = "AdminHandler.UploadBookCover"

	id, file, header, err := h.uploadParts(op, w, r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	defer file.Close()

	book, err := h.content.UploadBookCover(r.Context(), id, header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"book": book})
}

// UploadBookFile handles POST /api/admin/books/{id}/file.
func (h *AdminHandler) UploadBookFile(w http.ResponseWriter, r *http.Request) {
	const op = "AdminHandler.UploadBookFile"

	id, file, header, err := h.uploadParts(op, w, r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	defer file.Close()

	book, err := h.content.UploadBookFile(r.Context(), id, header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"book": book})
}

// UploadNashidCover handles POST /api/admin/nashids/{id}/cover.
func (h *AdminHandler) UploadNashidCover(w http.ResponseWriter, r *http.Request) {
	const op = "AdminHandler.UploadNashidCover"

	id, file, header, err := h.uploadParts(op, w, r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	defer file.Close()

	nashid, err := h.content.UploadNashidCover(r.Context(), id, header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"nashid": nashid})
}

// UploadNashidAudio handles POST /api/admin/nashids/{id}/audio.
func (h *AdminHandler) UploadNashidAudio(w http.ResponseWriter, r *http.Request) {
	const op = "AdminHandler.UploadNashidAudio"

	id, file, header, err := h.uploadParts(op, w, r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	defer file.Close()

	nashid, err := h.content.UploadNashidAudio(r.Context(), id, header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"nashid": nashid})
}

// uploadParts parses the {id} segment and the "file" multipart field.
func (h *AdminHandler) uploadParts(op string, w http.ResponseWriter, r *http.Request) (uuid.UUID, multipart.File, *multipart.FileHeader, error) {
	id, err := pathUUID(op, r, "id")
	if err != nil {
		return uuid.Nil, nil, nil, err
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		return uuid.Nil, nil, nil, domain.Invalid(op, "Invalid multipart form")
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		return uuid.Nil, nil, nil, domain.Invalid(op, "Missing file form field")
	}
	return id, f, hdr, nil
}
