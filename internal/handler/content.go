package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/maktaba-app/maktaba/internal/auth"
	"github.com/maktaba-app/maktaba/internal/domain"
	"github.com/maktaba-app/maktaba/internal/entitlement"
	"github.com/maktaba-app/maktaba/internal/service"
)

// ContentHandler serves the library catalog to the Mini App. Listings
// include entries above the user's tier marked inaccessible; only the
// file and audio endpoints enforce the access gate hard.
type ContentHandler struct {
	content   service.ContentService
	evaluator entitlement.Evaluator
	logger    *slog.Logger
}

func NewContentHandler(content service.ContentService, evaluator entitlement.Evaluator, logger *slog.Logger) *ContentHandler {
	return &ContentHandler{
		content:   content,
		evaluator: evaluator,
		logger:    logger,
	}
}

// ListBooks handles GET /api/books.
func (h *ContentHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	books, err := h.content.ListBooks(r.Context(), limit, offset)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	user := auth.GetUserFromRequest(r)
	views := make([]bookView, 0, len(books))
	for _, b := range books {
		views = append(views, h.bookView(r, user, b))
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"books": views})
}

// GetBook handles GET /api/books/{id}.
func (h *ContentHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	const op = "ContentHandler.GetBook"

	id, err := pathUUID(op, r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	book, err := h.content.GetBook(r.Context(), id)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	user := auth.GetUserFromRequest(r)
	respondJSON(w, http.StatusOK, map[string]interface{}{"book": h.bookView(r, user, book)})
}

// BookFile handles GET /api/books/{id}/file. The access gate is enforced
// here: the catalog entry is visible to everyone, the file is not.
func (h *ContentHandler) BookFile(w http.ResponseWriter, r *http.Request) {
	const op = "ContentHandler.BookFile"

	id, err := pathUUID(op, r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	book, err := h.content.GetBook(r.Context(), id)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if book.FileKey == "" {
		ErrorResponse(w, r, h.logger, domain.NotFound(op, "Book file", id.String()))
		return
	}

	user := auth.GetUserFromRequest(r)
	decision := h.evaluator.CanAccessContent(r.Context(), user, book.AccessLevel)
	if !decision.Allowed {
		ErrorResponse(w, r, h.logger, domain.Errorf(domain.EPAYMENT, op, "Upgrade required: %s", decision.Reason))
		return
	}

	url, err := h.content.MediaURL(r.Context(), book.FileKey)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"url": url})
}

// ListNashids handles GET /api/nashids.
func (h *ContentHandler) ListNashids(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	nashids, err := h.content.ListNashids(r.Context(), limit, offset)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	user := auth.GetUserFromRequest(r)
	views := make([]nashidView, 0, len(nashids))
	for _, n := range nashids {
		views = append(views, h.nashidView(r, user, n))
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"nashids": views})
}

// GetNashid handles GET /api/nashids/{id}.
func (h *ContentHandler) GetNashid(w http.ResponseWriter, r *http.Request) {
	const op = "ContentHandler.GetNashid"

	id, err := pathUUID(op, r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	nashid, err := h.content.GetNashid(r.Context(), id)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	user := auth.GetUserFromRequest(r)
	respondJSON(w, http.StatusOK, map[string]interface{}{"nashid": h.nashidView(r, user, nashid)})
}

// NashidAudio handles GET /api/nashids/{id}/audio, the hard access gate
// for streaming.
func (h *ContentHandler) NashidAudio(w http.ResponseWriter, r *http.Request) {
	const op = "ContentHandler.NashidAudio"

	id, err := pathUUID(op, r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	nashid, err := h.content.GetNashid(r.Context(), id)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if nashid.AudioKey == "" {
		ErrorResponse(w, r, h.logger, domain.NotFound(op, "Nashid audio", id.String()))
		return
	}

	user := auth.GetUserFromRequest(r)
	decision := h.evaluator.CanAccessContent(r.Context(), user, nashid.AccessLevel)
	if !decision.Allowed {
		ErrorResponse(w, r, h.logger, domain.Errorf(domain.EPAYMENT, op, "Upgrade required: %s", decision.Reason))
		return
	}

	url, err := h.content.MediaURL(r.Context(), nashid.AudioKey)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"url": url})
}

// =============================================================================
// View assembly
// =============================================================================

func (h *ContentHandler) bookView(r *http.Request, user *domain.User, b *domain.Book) bookView {
	decision := h.evaluator.CanAccessContent(r.Context(), user, b.AccessLevel)
	v := bookView{
		ID:          b.ID,
		Title:       b.Title,
		Author:      b.Author,
		Description: b.Description,
		AccessLevel: b.AccessLevel,
		PageCount:   b.PageCount,
		HasFile:     b.FileKey != "",
		Accessible:  decision.Allowed,
		CreatedAt:   b.CreatedAt,
	}
	v.CoverURL = h.mediaURL(r, b.CoverKey)
	v.ThumbnailURL = h.mediaURL(r, b.ThumbnailKey)
	return v
}

func (h *ContentHandler) nashidView(r *http.Request, user *domain.User, n *domain.Nashid) nashidView {
	decision := h.evaluator.CanAccessContent(r.Context(), user, n.AccessLevel)
	v := nashidView{
		ID:              n.ID,
		Title:           n.Title,
		Performer:       n.Performer,
		AccessLevel:     n.AccessLevel,
		DurationSeconds: n.DurationSeconds,
		HasAudio:        n.AudioKey != "",
		Accessible:      decision.Allowed,
		CreatedAt:       n.CreatedAt,
	}
	v.CoverURL = h.mediaURL(r, n.CoverKey)
	v.ThumbnailURL = h.mediaURL(r, n.ThumbnailKey)
	return v
}

// mediaURL resolves a key to a URL, degrading to empty on failure so a
// broken cover never breaks a listing.
func (h *ContentHandler) mediaURL(r *http.Request, key string) string {
	if key == "" {
		return ""
	}
	url, err := h.content.MediaURL(r.Context(), key)
	if err != nil {
		h.logger.Warn("failed to resolve media URL", "key", key, "error", err)
		return ""
	}
	return url
}

// pageParams parses limit/offset query parameters, leaving clamping to
// the service.
func pageParams(r *http.Request) (int, int) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	return limit, offset
}
