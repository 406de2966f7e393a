package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/maktaba-app/maktaba/internal/domain"
	"github.com/maktaba-app/maktaba/internal/metrics"
	"github.com/maktaba-app/maktaba/internal/repository"
	"github.com/maktaba-app/maktaba/internal/storage"
)

// Upload size caps, enforced before anything touches storage.
const (
	MaxCoverSize    = 10 << 20  // 10 MB
	MaxAudioSize    = 100 << 20 // 100 MB
	MaxBookFileSize = 200 << 20 // 200 MB
)

// MediaURLExpiry bounds presigned media URLs handed to clients.
const MediaURLExpiry = 1 * time.Hour

// Upload kinds as reported to metrics.
const (
	uploadBookCover   = "book_cover"
	uploadBookFile    = "book_file"
	uploadNashidCover = "nashid_cover"
	uploadNashidAudio = "nashid_audio"
)

// ContentService manages the book and nashid catalogs and their media
// objects. Catalog mutation and media upload are admin operations; reads
// serve the Mini App library.
type ContentService interface {
	GetBook(ctx context.Context, id uuid.UUID) (*domain.Book, error)
	ListBooks(ctx context.Context, limit, offset int) ([]*domain.Book, error)
	CreateBook(ctx context.Context, params domain.BookParams) (*domain.Book, error)
	UpdateBook(ctx context.Context, id uuid.UUID, params domain.BookParams) (*domain.Book, error)

	// DeleteBook removes the book row and every stored media object it
	// references.
	DeleteBook(ctx context.Context, id uuid.UUID) error

	GetNashid(ctx context.Context, id uuid.UUID) (*domain.Nashid, error)
	ListNashids(ctx context.Context, limit, offset int) ([]*domain.Nashid, error)
	CreateNashid(ctx context.Context, params domain.NashidParams) (*domain.Nashid, error)
	UpdateNashid(ctx context.Context, id uuid.UUID, params domain.NashidParams) (*domain.Nashid, error)
	DeleteNashid(ctx context.Context, id uuid.UUID) error

	// UploadBookCover stores a cover image plus a generated thumbnail
	// and points the book at them, replacing (and deleting) any previous
	// cover pair.
	UploadBookCover(ctx context.Context, id uuid.UUID, filename, contentType string, data io.Reader) (*domain.Book, error)

	// UploadBookFile stores the readable book file (PDF or EPUB).
	UploadBookFile(ctx context.Context, id uuid.UUID, filename, contentType string, data io.Reader) (*domain.Book, error)

	UploadNashidCover(ctx context.Context, id uuid.UUID, filename, contentType string, data io.Reader) (*domain.Nashid, error)
	UploadNashidAudio(ctx context.Context, id uuid.UUID, filename, contentType string, data io.Reader) (*domain.Nashid, error)

	// MediaURL resolves a storage key to a client-usable URL.
	MediaURL(ctx context.Context, key string) (string, error)
}

type contentService struct {
	queries *repository.Queries
	store   storage.Storage
	thumbs  ThumbnailProcessor
	logger  *slog.Logger
}

var _ ContentService = (*contentService)(nil)

func NewContentService(queries *repository.Queries, store storage.Storage, thumbs ThumbnailProcessor, logger *slog.Logger) ContentService {
	return &contentService{
		queries: queries,
		store:   store,
		thumbs:  thumbs,
		logger:  logger,
	}
}

// =============================================================================
// Books
// =============================================================================

func (s *contentService) GetBook(ctx context.Context, id uuid.UUID) (*domain.Book, error) {
	const op = "ContentService.GetBook"

	row, err := s.queries.GetBook(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "Book", id.String())
		}
		return nil, domain.Internal(err, op, "Failed to load book")
	}
	return repoBookToDomain(row), nil
}

func (s *contentService) ListBooks(ctx context.Context, limit, offset int) ([]*domain.Book, error) {
	const op = "ContentService.ListBooks"

	limit, offset = clampPage(limit, offset)
	rows, err := s.queries.ListBooks(ctx, int32(limit), int32(offset))
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to list books")
	}

	out := make([]*domain.Book, 0, len(rows))
	for _, row := range rows {
		out = append(out, repoBookToDomain(row))
	}
	return out, nil
}

func (s *contentService) CreateBook(ctx context.Context, params domain.BookParams) (*domain.Book, error) {
	const op = "ContentService.CreateBook"

	if err := validateBookParams(op, params); err != nil {
		return nil, err
	}

	row, err := s.queries.CreateBook(ctx, repository.CreateBookParams{
		Title:       strings.TrimSpace(params.Title),
		Author:      strings.TrimSpace(params.Author),
		Description: domain.ToNullString(params.Description),
		AccessLevel: string(params.AccessLevel),
		PageCount:   toNullInt32(params.PageCount),
	})
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to create book")
	}

	s.logger.Info("book created", "book_id", row.ID, "title", row.Title)
	return repoBookToDomain(row), nil
}

func (s *contentService) UpdateBook(ctx context.Context, id uuid.UUID, params domain.BookParams) (*domain.Book, error) {
	const op = "ContentService.UpdateBook"

	if err := validateBookParams(op, params); err != nil {
		return nil, err
	}

	row, err := s.queries.UpdateBook(ctx, repository.UpdateBookParams{
		ID:          id,
		Title:       strings.TrimSpace(params.Title),
		Author:      strings.TrimSpace(params.Author),
		Description: domain.ToNullString(params.Description),
		AccessLevel: string(params.AccessLevel),
		PageCount:   toNullInt32(params.PageCount),
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "Book", id.String())
		}
		return nil, domain.Internal(err, op, "Failed to update book")
	}
	return repoBookToDomain(row), nil
}

func (s *contentService) DeleteBook(ctx context.Context, id uuid.UUID) error {
	const op = "ContentService.DeleteBook"

	row, err := s.queries.GetBook(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NotFound(op, "Book", id.String())
		}
		return domain.Internal(err, op, "Failed to load book")
	}

	if err := s.queries.DeleteBook(ctx, id); err != nil {
		return domain.Internal(err, op, "Failed to delete book")
	}

	s.deleteObjects(ctx, row.CoverKey, row.ThumbnailKey, row.FileKey)
	s.logger.Info("book deleted", "book_id", id)
	return nil
}

// =============================================================================
// Nashids
// =============================================================================

func (s *contentService) GetNashid(ctx context.Context, id uuid.UUID) (*domain.Nashid, error) {
	const op = "ContentService.GetNashid"

	row, err := s.queries.GetNashid(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "Nashid", id.String())
		}
		return nil, domain.Internal(err, op, "Failed to load nashid")
	}
	return repoNashidToDomain(row), nil
}

func (s *contentService) ListNashids(ctx context.Context, limit, offset int) ([]*domain.Nashid, error) {
	const op = "ContentService.ListNashids"

	limit, offset = clampPage(limit, offset)
	rows, err := s.queries.ListNashids(ctx, int32(limit), int32(offset))
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to list nashids")
	}

	out := make([]*domain.Nashid, 0, len(rows))
	for _, row := range rows {
		out = append(out, repoNashidToDomain(row))
	}
	return out, nil
}

func (s *contentService) CreateNashid(ctx context.Context, params domain.NashidParams) (*domain.Nashid, error) {
	const op = "ContentService.CreateNashid"

	if err := validateNashidParams(op, params); err != nil {
		return nil, err
	}

	row, err := s.queries.CreateNashid(ctx, repository.CreateNashidParams{
		Title:           strings.TrimSpace(params.Title),
		Performer:       strings.TrimSpace(params.Performer),
		AccessLevel:     string(params.AccessLevel),
		DurationSeconds: toNullInt32(params.DurationSeconds),
	})
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to create nashid")
	}

	s.logger.Info("nashid created", "nashid_id", row.ID, "title", row.Title)
	return repoNashidToDomain(row), nil
}

func (s *contentService) UpdateNashid(ctx context.Context, id uuid.UUID, params domain.NashidParams) (*domain.Nashid, error) {
	const op = "ContentService.UpdateNashid"

	if err := validateNashidParams(op, params); err != nil {
		return nil, err
	}

	row, err := s.queries.UpdateNashid(ctx, repository.UpdateNashidParams{
		ID:              id,
		Title:           strings.TrimSpace(params.Title),
		Performer:       strings.TrimSpace(params.Performer),
		AccessLevel:     string(params.AccessLevel),
		DurationSeconds: toNullInt32(params.DurationSeconds),
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "Nashid", id.String())
		}
		return nil, domain.Internal(err, op, "Failed to update nashid")
	}
	return repoNashidToDomain(row), nil
}

func (s *contentService) DeleteNashid(ctx context.Context, id uuid.UUID) error {
	const op = "ContentService.DeleteNashid"

	row, err := s.queries.GetNashid(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NotFound(op, "Nashid", id.String())
		}
		return domain.Internal(err, op, "Failed to load nashid")
	}

	if err := s.queries.DeleteNashid(ctx, id); err != nil {
		return domain.Internal(err, op, "Failed to delete nashid")
	}

	s.deleteObjects(ctx, row.CoverKey, row.ThumbnailKey, row.AudioKey)
	s.logger.Info("nashid deleted", "nashid_id", id)
	return nil
}

// =============================================================================
// Media uploads
// =============================================================================

func (s *contentService) UploadBookCover(ctx context.Context, id uuid.UUID, filename, contentType string, data io.Reader) (*domain.Book, error) {
	const op = "ContentService.UploadBookCover"

	row, err := s.queries.GetBook(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "Book", id.String())
		}
		return nil, domain.Internal(err, op, "Failed to load book")
	}

	coverKey, thumbKey, err := s.storeCover(ctx, op, string(domain.ContentBooks), id, filename, contentType, data)
	if err != nil {
		metrics.MediaUploads.WithLabelValues(uploadBookCover, "error").Inc()
		return nil, err
	}

	err = s.queries.UpdateBookMedia(ctx, repository.UpdateBookMediaParams{
		ID:           id,
		CoverKey:     domain.ToNullString(coverKey),
		ThumbnailKey: domain.ToNullString(thumbKey),
		FileKey:      row.FileKey,
	})
	if err != nil {
		s.deleteObjects(ctx, domain.ToNullString(coverKey), domain.ToNullString(thumbKey))
		metrics.MediaUploads.WithLabelValues(uploadBookCover, "error").Inc()
		return nil, domain.Internal(err, op, "Failed to store cover keys")
	}

	// Replaced objects are orphans now; removal is best effort.
	s.deleteObjects(ctx, row.CoverKey, row.ThumbnailKey)

	metrics.MediaUploads.WithLabelValues(uploadBookCover, "success").Inc()
	s.logger.Info("book cover uploaded", "book_id", id, "key", coverKey)
	return s.GetBook(ctx, id)
}

func (s *contentService) UploadBookFile(ctx context.Context, id uuid.UUID, filename, contentType string, data io.Reader) (*domain.Book, error) {
	const op = "ContentService.UploadBookFile"

	row, err := s.queries.GetBook(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "Book", id.String())
		}
		return nil, domain.Internal(err, op, "Failed to load book")
	}

	buf, detected, err := s.readUpload(op, filename, contentType, data, MaxBookFileSize)
	if err != nil {
		metrics.MediaUploads.WithLabelValues(uploadBookFile, "error").Inc()
		return nil, err
	}
	if !storage.IsAllowedBookType(detected) {
		metrics.MediaUploads.WithLabelValues(uploadBookFile, "error").Inc()
		return nil, domain.Errorf(domain.EINVALID, op, "unsupported book file type %q", detected)
	}

	key := storage.BookFileKey(id, filename)
	err = s.store.Put(ctx, key, bytes.NewReader(buf), storage.PutOptions{
		ContentType: detected,
		MaxSize:     MaxBookFileSize,
	})
	if err != nil {
		metrics.MediaUploads.WithLabelValues(uploadBookFile, "error").Inc()
		return nil, domain.Internal(err, op, "Failed to store book file")
	}

	err = s.queries.UpdateBookMedia(ctx, repository.UpdateBookMediaParams{
		ID:           id,
		CoverKey:     row.CoverKey,
		ThumbnailKey: row.ThumbnailKey,
		FileKey:      domain.ToNullString(key),
	})
	if err != nil {
		s.deleteObjects(ctx, domain.ToNullString(key))
		metrics.MediaUploads.WithLabelValues(uploadBookFile, "error").Inc()
		return nil, domain.Internal(err, op, "Failed to store file key")
	}

	s.deleteObjects(ctx, row.FileKey)

	metrics.MediaUploads.WithLabelValues(uploadBookFile, "success").Inc()
	s.logger.Info("book file uploaded", "book_id", id, "key", key, "size", len(buf))
	return s.GetBook(ctx, id)
}

func (s *contentService) UploadNashidCover(ctx context.Context, id uuid.UUID, filename, contentType string, data io.Reader) (*domain.Nashid, error) {
	const op = "ContentService.UploadNashidCover"

	row, err := s.queries.GetNashid(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "Nashid", id.String())
		}
		return nil, domain.Internal(err, op, "Failed to load nashid")
	}

	coverKey, thumbKey, err := s.storeCover(ctx, op, string(domain.ContentNashids), id, filename, contentType, data)
	if err != nil {
		metrics.MediaUploads.WithLabelValues(uploadNashidCover, "error").Inc()
		return nil, err
	}

	err = s.queries.UpdateNashidMedia(ctx, repository.UpdateNashidMediaParams{
		ID:           id,
		CoverKey:     domain.ToNullString(coverKey),
		ThumbnailKey: domain.ToNullString(thumbKey),
		AudioKey:     row.AudioKey,
	})
	if err != nil {
		s.deleteObjects(ctx, domain.ToNullString(coverKey), domain.ToNullString(thumbKey))
		metrics.MediaUploads.WithLabelValues(uploadNashidCover, "error").Inc()
		return nil, domain.Internal(err, op, "Failed to store cover keys")
	}

	s.deleteObjects(ctx, row.CoverKey, row.ThumbnailKey)

	metrics.MediaUploads.WithLabelValues(uploadNashidCover, "success").Inc()
	s.logger.Info("nashid cover uploaded", "nashid_id", id, "key", coverKey)
	return s.GetNashid(ctx, id)
}

func (s *contentService) UploadNashidAudio(ctx context.Context, id uuid.UUID, filename, contentType string, data io.Reader) (*domain.Nashid, error) {
	const op = "ContentService.UploadNashidAudio"

	row, err := s.queries.GetNashid(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "Nashid", id.String())
		}
		return nil, domain.Internal(err, op, "Failed to load nashid")
	}

	buf, detected, err := s.readUpload(op, filename, contentType, data, MaxAudioSize)
	if err != nil {
		metrics.MediaUploads.WithLabelValues(uploadNashidAudio, "error").Inc()
		return nil, err
	}
	if !storage.IsAllowedAudioType(detected) {
		metrics.MediaUploads.WithLabelValues(uploadNashidAudio, "error").Inc()
		return nil, domain.Errorf(domain.EINVALID, op, "unsupported audio type %q", detected)
	}

	key := storage.AudioKey(id, filename)
	err = s.store.Put(ctx, key, bytes.NewReader(buf), storage.PutOptions{
		ContentType: detected,
		MaxSize:     MaxAudioSize,
	})
	if err != nil {
		metrics.MediaUploads.WithLabelValues(uploadNashidAudio, "error").Inc()
		return nil, domain.Internal(err, op, "Failed to store audio file")
	}

	err = s.queries.UpdateNashidMedia(ctx, repository.UpdateNashidMediaParams{
		ID:           id,
		CoverKey:     row.CoverKey,
		ThumbnailKey: row.ThumbnailKey,
		AudioKey:     domain.ToNullString(key),
	})
	if err != nil {
		s.deleteObjects(ctx, domain.ToNullString(key))
		metrics.MediaUploads.WithLabelValues(uploadNashidAudio, "error").Inc()
		return nil, domain.Internal(err, op, "Failed to store audio key")
	}

	s.deleteObjects(ctx, row.AudioKey)

	metrics.MediaUploads.WithLabelValues(uploadNashidAudio, "success").Inc()
	s.logger.Info("nashid audio uploaded", "nashid_id", id, "key", key, "size", len(buf))
	return s.GetNashid(ctx, id)
}

func (s *contentService) MediaURL(ctx context.Context, key string) (string, error) {
	const op = "ContentService.MediaURL"

	if key == "" {
		return "", domain.Invalid(op, "Media key is required")
	}
	url, err := s.store.URL(ctx, key, MediaURLExpiry)
	if err != nil {
		return "", domain.Internal(err, op, "Failed to resolve media URL")
	}
	return url, nil
}

// storeCover validates an uploaded image, stores it together with a
// generated thumbnail, and returns both keys. On a partial failure the
// already-stored cover is removed again.
func (s *contentService) storeCover(ctx context.Context, op, contentType string, id uuid.UUID, filename, providedType string, data io.Reader) (coverKey, thumbKey string, err error) {
	buf, detected, err := s.readUpload(op, filename, providedType, data, MaxCoverSize)
	if err != nil {
		return "", "", err
	}
	if !storage.IsAllowedImageType(detected) {
		return "", "", domain.Errorf(domain.EINVALID, op, "unsupported image type %q", detected)
	}

	thumb, _, _, err := s.thumbs.GenerateThumbnail(bytes.NewReader(buf), ThumbnailMaxWidth, ThumbnailMaxHeight)
	if err != nil {
		return "", "", domain.Wrap(err, domain.EINVALID, op, "Failed to process cover image")
	}

	coverKey = storage.CoverKey(contentType, id, filename)
	err = s.store.Put(ctx, coverKey, bytes.NewReader(buf), storage.PutOptions{
		ContentType: detected,
		MaxSize:     MaxCoverSize,
		Public:      true,
	})
	if err != nil {
		return "", "", domain.Internal(err, op, "Failed to store cover image")
	}

	thumbKey = storage.ThumbnailKey(contentType, id, "thumb.jpg")
	err = s.store.Put(ctx, thumbKey, bytes.NewReader(thumb), storage.PutOptions{
		ContentType: "image/jpeg",
		MaxSize:     MaxCoverSize,
		Public:      true,
	})
	if err != nil {
		s.deleteObjects(ctx, domain.ToNullString(coverKey))
		return "", "", domain.Internal(err, op, "Failed to store thumbnail")
	}

	return coverKey, thumbKey, nil
}

// readUpload buffers an upload up to maxSize bytes and sniffs its MIME
// type. Uploads arrive through multipart forms, so they fit in memory
// within the configured caps.
func (s *contentService) readUpload(op, filename, providedType string, data io.Reader, maxSize int64) ([]byte, string, error) {
	buf, err := io.ReadAll(io.LimitReader(data, maxSize+1))
	if err != nil {
		return nil, "", domain.Internal(err, op, "Failed to read upload")
	}
	if int64(len(buf)) > maxSize {
		return nil, "", domain.Errorf(domain.EINVALID, op, "file exceeds the %d byte limit", maxSize)
	}
	if len(buf) == 0 {
		return nil, "", domain.Invalid(op, "Uploaded file is empty")
	}

	detected := storage.DetectContentType(providedType, filename, bytes.NewReader(buf))
	return buf, detected, nil
}

// deleteObjects removes stored objects best effort, skipping empty keys.
// Failures leave orphans in the bucket, which is preferable to failing
// the mutation that already committed.
func (s *contentService) deleteObjects(ctx context.Context, keys ...sql.NullString) {
	for _, key := range keys {
		if !key.Valid || key.String == "" {
			continue
		}
		if err := s.store.Delete(ctx, key.String); err != nil {
			s.logger.Warn("failed to delete media object", "key", key.String, "error", err)
		}
	}
}

// =============================================================================
// Validation and conversion
// =============================================================================

// Pagination bounds for catalog listings.
const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func validateBookParams(op string, params domain.BookParams) error {
	if strings.TrimSpace(params.Title) == "" {
		return domain.Invalid(op, "Title is required")
	}
	if strings.TrimSpace(params.Author) == "" {
		return domain.Invalid(op, "Author is required")
	}
	if !domain.ValidAccessLevel(params.AccessLevel) {
		return domain.Errorf(domain.EINVALID, op, "unknown access level %q", params.AccessLevel)
	}
	if params.PageCount < 0 {
		return domain.Invalid(op, "Page count cannot be negative")
	}
	return nil
}

func validateNashidParams(op string, params domain.NashidParams) error {
	if strings.TrimSpace(params.Title) == "" {
		return domain.Invalid(op, "Title is required")
	}
	if strings.TrimSpace(params.Performer) == "" {
		return domain.Invalid(op, "Performer is required")
	}
	if !domain.ValidAccessLevel(params.AccessLevel) {
		return domain.Errorf(domain.EINVALID, op, "unknown access level %q", params.AccessLevel)
	}
	if params.DurationSeconds < 0 {
		return domain.Invalid(op, "Duration cannot be negative")
	}
	return nil
}

func toNullInt32(v int) sql.NullInt32 {
	if v == 0 {
		return sql.NullInt32{}
	}
	return sql.NullInt32{Int32: int32(v), Valid: true}
}

func repoBookToDomain(b repository.Book) *domain.Book {
	return &domain.Book{
		ID:           b.ID,
		Title:        b.Title,
		Author:       b.Author,
		Description:  b.Description.String,
		AccessLevel:  domain.AccessLevel(b.AccessLevel),
		CoverKey:     b.CoverKey.String,
		ThumbnailKey: b.ThumbnailKey.String,
		FileKey:      b.FileKey.String,
		PageCount:    int(b.PageCount.Int32),
		CreatedAt:    b.CreatedAt,
		UpdatedAt:    b.UpdatedAt,
	}
}

func repoNashidToDomain(n repository.Nashid) *domain.Nashid {
	return &domain.Nashid{
		ID:              n.ID,
		Title:           n.Title,
		Performer:       n.Performer,
		AccessLevel:     domain.AccessLevel(n.AccessLevel),
		CoverKey:        n.CoverKey.String,
		ThumbnailKey:    n.ThumbnailKey.String,
		AudioKey:        n.AudioKey.String,
		DurationSeconds: int(n.DurationSeconds.Int32),
		CreatedAt:       n.CreatedAt,
		UpdatedAt:       n.UpdatedAt,
	}
}
