// Package storage provides the media file abstraction for the Maktaba
// library: book files, nashid audio, covers, and generated thumbnails.
//
// Two implementations exist: LocalStorage keeps files on disk for
// development, R2Storage talks to Cloudflare R2 (S3-compatible) in
// production.
package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Storage defines the interface for media file operations.
type Storage interface {
	// Put stores data at the specified key.
	// Returns ErrKeyExists if the key exists and opts.Overwrite is off,
	// ErrTooLarge when data exceeds opts.MaxSize.
	Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error

	// Get retrieves the object at the key. The caller closes the reader.
	// Returns ErrNotFound for a missing key.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)

	// Delete removes the object at the key. Idempotent.
	Delete(ctx context.Context, key string) error

	// URL returns an access URL for the object: permanent for public
	// objects, presigned for the given duration otherwise.
	URL(ctx context.Context, key string, expires time.Duration) (string, error)

	// Exists reports whether an object exists at the key.
	Exists(ctx context.Context, key string) (bool, error)
}

// PutOptions configures how an object is stored.
type PutOptions struct {
	// ContentType is the MIME type; auto-detected when empty.
	ContentType string

	// MaxSize caps the object size in bytes. Zero means no limit.
	MaxSize int64

	// Overwrite allows replacing an existing object at the same key.
	Overwrite bool

	// Public marks the object world-readable. R2 sets a public-read ACL;
	// local storage treats it as informational.
	Public bool
}

// ObjectInfo contains metadata about a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
	ETag         string
}

// LocalConfig holds configuration for local filesystem storage.
type LocalConfig struct {
	// BasePath is the root directory where files are stored.
	BasePath string

	// BaseURL is the public URL prefix for accessing files,
	// e.g. "http://localhost:8080/files".
	BaseURL string
}

// R2Config holds configuration for Cloudflare R2 storage.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string

	// PublicURL is the bucket's custom-domain URL. When empty, every
	// access goes through presigned URLs.
	PublicURL string

	// Region defaults to "auto"; R2 is globally distributed.
	Region string
}

// Storage provider names as they appear in configuration.
const (
	ProviderLocal = "local"
	ProviderR2    = "r2"
)

// =============================================================================
// Key Generation Helpers
// =============================================================================

// CoverKey generates a storage key for a content cover image.
// Format: {contentType}/{contentID}/cover/{uuid}.{ext}
func CoverKey(contentType string, contentID uuid.UUID, filename string) string {
	return fmt.Sprintf("%s/%s/cover/%s%s", contentType, contentID, uuid.New(), filepath.Ext(filename))
}

// ThumbnailKey generates a storage key for a cover thumbnail.
// Format: {contentType}/{contentID}/thumb/{uuid}.{ext}
func ThumbnailKey(contentType string, contentID uuid.UUID, filename string) string {
	return fmt.Sprintf("%s/%s/thumb/%s%s", contentType, contentID, uuid.New(), filepath.Ext(filename))
}

// AudioKey generates a storage key for a nashid audio file.
// Format: nashids/{nashidID}/audio/{uuid}.{ext}
func AudioKey(nashidID uuid.UUID, filename string) string {
	return fmt.Sprintf("nashids/%s/audio/%s%s", nashidID, uuid.New(), filepath.Ext(filename))
}

// BookFileKey generates a storage key for a book file.
// Format: books/{bookID}/file/{uuid}.{ext}
func BookFileKey(bookID uuid.UUID, filename string) string {
	return fmt.Sprintf("books/%s/file/%s%s", bookID, uuid.New(), filepath.Ext(filename))
}
