// Package domain contains core business types and interfaces.
//
// This file defines the library content types: books and nashids. The
// entitlement evaluator only consumes their access level; it never fetches
// or validates catalog entries itself.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// AccessLevel marks who may see a content item, independent of usage
// limits.
type AccessLevel string

const (
	AccessFree    AccessLevel = "free"
	AccessPro     AccessLevel = "pro"
	AccessPremium AccessLevel = "premium"
)

// ValidAccessLevel reports whether l is one of the known access levels.
func ValidAccessLevel(l AccessLevel) bool {
	return l == AccessFree || l == AccessPro || l == AccessPremium
}

// Book is one entry of the book catalog.
type Book struct {
	ID           uuid.UUID   `json:"id"`
	Title        string      `json:"title"`
	Author       string      `json:"author"`
	Description  string      `json:"description,omitempty"`
	AccessLevel  AccessLevel `json:"accessLevel"`
	CoverKey     string      `json:"coverKey,omitempty"` // storage key of the cover image, may be empty
	ThumbnailKey string      `json:"thumbnailKey,omitempty"`
	FileKey      string      `json:"fileKey,omitempty"` // storage key of the book file
	PageCount    int         `json:"pageCount,omitempty"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

// Nashid is one entry of the nashid (audio) catalog.
type Nashid struct {
	ID              uuid.UUID   `json:"id"`
	Title           string      `json:"title"`
	Performer       string      `json:"performer"`
	AccessLevel     AccessLevel `json:"accessLevel"`
	CoverKey        string      `json:"coverKey,omitempty"`
	ThumbnailKey    string      `json:"thumbnailKey,omitempty"`
	AudioKey        string      `json:"audioKey,omitempty"`
	DurationSeconds int         `json:"durationSeconds,omitempty"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

// BookParams contains validated parameters for creating or updating a book.
type BookParams struct {
	Title       string
	Author      string
	Description string
	AccessLevel AccessLevel
	PageCount   int
}

// LibraryEntry is one item of a user's favorites or offline list.
type LibraryEntry struct {
	ContentType ContentType
	ContentID   uuid.UUID
	AddedAt     time.Time
}

// NashidParams contains validated parameters for creating or updating a
// nashid.
type NashidParams struct {
	Title           string
	Performer       string
	AccessLevel     AccessLevel
	DurationSeconds int
}
