// Package domain contains core business types and interfaces.
//
// This file defines per-user usage counters. Counters move only through
// the increment/decrement operations tied 1:1 to content add/remove
// actions, and through the monthly reset, which zeroes the offline
// counters only (favorites are a standing set, not a monthly quota).
package domain

import (
	"time"

	"github.com/google/uuid"
)

// ContentType identifies a class of library content.
type ContentType string

const (
	ContentBooks   ContentType = "books"
	ContentNashids ContentType = "nashids"
)

// ValidContentType reports whether ct names a known content type.
func ValidContentType(ct ContentType) bool {
	return ct == ContentBooks || ct == ContentNashids
}

// LimitKind distinguishes the two counter families.
type LimitKind string

const (
	LimitOffline   LimitKind = "offline"
	LimitFavorites LimitKind = "favorites"
)

// UsageCounters holds one user's mutable counters.
type UsageCounters struct {
	UserID           uuid.UUID
	BooksOffline     int
	BooksFavorites   int
	NashidsOffline   int
	NashidsFavorites int
	ResetDate        time.Time
}

// counterKey addresses one counter field by {content type × limit kind}.
type counterKey struct {
	Content ContentType
	Kind    LimitKind
}

// counterFields is the explicit lookup table from {content type × limit
// kind} to the counter field. Field selection is enumerated here rather
// than assembled from strings so an unknown combination is a compile-time
// visible miss instead of a silent zero-value read.
var counterFields = map[counterKey]func(*UsageCounters) *int{
	{ContentBooks, LimitOffline}:     func(c *UsageCounters) *int { return &c.BooksOffline },
	{ContentBooks, LimitFavorites}:   func(c *UsageCounters) *int { return &c.BooksFavorites },
	{ContentNashids, LimitOffline}:   func(c *UsageCounters) *int { return &c.NashidsOffline },
	{ContentNashids, LimitFavorites}: func(c *UsageCounters) *int { return &c.NashidsFavorites },
}

// Counter returns the current value for the given content type and kind.
// The second return is false for an unknown combination.
func (c *UsageCounters) Counter(ct ContentType, kind LimitKind) (int, bool) {
	field, ok := counterFields[counterKey{ct, kind}]
	if !ok {
		return 0, false
	}
	return *field(c), true
}

// Apply adds delta to the addressed counter, flooring at zero. A decrement
// of an already-zero counter is a no-op, not an error: favorites can be
// removed redundantly by a double-click race.
func (c *UsageCounters) Apply(ct ContentType, kind LimitKind, delta int) bool {
	field, ok := counterFields[counterKey{ct, kind}]
	if !ok {
		return false
	}
	v := field(c)
	*v += delta
	if *v < 0 {
		*v = 0
	}
	return true
}

// ResetMonthly zeroes the two offline counters and stamps a new reset
// date. Favorites counters are untouched.
func (c *UsageCounters) ResetMonthly(now time.Time) {
	c.BooksOffline = 0
	c.NashidsOffline = 0
	c.ResetDate = now
}

// ResetDue reports whether the counters are due for a monthly reset:
// the stamped reset date falls in an earlier calendar month than now.
func (c *UsageCounters) ResetDue(now time.Time) bool {
	y1, m1, _ := c.ResetDate.UTC().Date()
	y2, m2, _ := now.UTC().Date()
	return y1 < y2 || (y1 == y2 && m1 < m2)
}
