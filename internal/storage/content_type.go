package storage

import (
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

// DetectContentType determines the MIME type of a file: the provided type
// wins, then extension lookup, then sniffing the first 512 bytes, then
// application/octet-stream.
func DetectContentType(providedType, filename string, data io.Reader) string {
	if providedType != "" {
		return providedType
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if contentType := mime.TypeByExtension(ext); contentType != "" {
		return contentType
	}

	if data != nil {
		buffer := make([]byte, 512)
		n, err := io.ReadFull(data, buffer)
		if err == nil || err == io.EOF || err == io.ErrUnexpectedEOF {
			return http.DetectContentType(buffer[:n])
		}
	}

	return "application/octet-stream"
}

// AllowedImageTypes are the MIME types accepted for cover uploads.
var AllowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/webp": true,
}

// AllowedAudioTypes are the MIME types accepted for nashid audio uploads.
var AllowedAudioTypes = map[string]bool{
	"audio/mpeg": true,
	"audio/mp4":  true,
	"audio/aac":  true,
	"audio/ogg":  true,
	"audio/opus": true,
	"audio/flac": true,
}

// AllowedBookTypes are the MIME types accepted for book file uploads.
var AllowedBookTypes = map[string]bool{
	"application/pdf":      true,
	"application/epub+zip": true,
}

func normalizeType(contentType string) string {
	baseType := strings.Split(contentType, ";")[0]
	return strings.TrimSpace(strings.ToLower(baseType))
}

// IsAllowedImageType checks a content type against the cover allow-list.
func IsAllowedImageType(contentType string) bool {
	return AllowedImageTypes[normalizeType(contentType)]
}

// IsAllowedAudioType checks a content type against the audio allow-list.
func IsAllowedAudioType(contentType string) bool {
	return AllowedAudioTypes[normalizeType(contentType)]
}

// IsAllowedBookType checks a content type against the book allow-list.
func IsAllowedBookType(contentType string) bool {
	return AllowedBookTypes[normalizeType(contentType)]
}

// IsImage returns true for any image/* content type.
func IsImage(contentType string) bool {
	return strings.HasPrefix(normalizeType(contentType), "image/")
}
