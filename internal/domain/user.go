// Package domain contains core business types and interfaces.
//
// This file defines the User domain type and subscription state. Users
// arrive through the Telegram Mini App; admin accounts additionally carry
// an email and password hash for the admin panel.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered user of the Maktaba library.
type User struct {
	ID           uuid.UUID
	TelegramID   int64
	Username     string
	FirstName    string
	LastName     string
	LanguageCode string
	IsAdmin      bool
	Email        string // admin accounts only
	PasswordHash string // admin accounts only; never expose in API responses
	Subscription *Subscription
	Trial        *TrialState
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DisplayName returns the user's first name, falling back to username.
func (u *User) DisplayName() string {
	if u.FirstName != "" {
		return u.FirstName
	}
	return u.Username
}

// CurrentTier returns the user's effective tier. The second return is
// false when the user has no subscription at all, which the evaluator
// reports as "not authenticated".
func (u *User) CurrentTier() (TierID, bool) {
	if u == nil || u.Subscription == nil {
		return "", false
	}
	if !u.Subscription.IsActive {
		return TierBasic, true
	}
	return u.Subscription.Tier, true
}

// Subscription is a user's current tier assignment.
type Subscription struct {
	Tier      TierID
	ExpiresAt *time.Time // nil for non-expiring assignments
	IsActive  bool
	StartedAt time.Time
}

// Expired reports whether the assignment has an expiry in the past.
func (s *Subscription) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && now.After(*s.ExpiresAt)
}

// SubscriptionChange is one entry of the append-only subscription history.
// History entries are never mutated retroactively.
type SubscriptionChange struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	FromTier  TierID
	ToTier    TierID
	Source    string // "admin", "trial", "expiry"
	ChangedAt time.Time
}

// TrialState tracks a user's one-time trial. Used is never reset: a trial
// can be taken once per user, ever.
type TrialState struct {
	Used      bool
	Tier      TierID
	ExpiresAt *time.Time
}

// Session represents an authenticated session. The raw token is handed to
// the client once; only its SHA-256 hash is stored.
type Session struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired returns true if the session has expired.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// LoginResult contains the result of a successful login.
type LoginResult struct {
	User  *User
	Token string // Raw session token (not hashed) - only returned once
}

// TelegramProfile carries the identity fields extracted from validated
// Telegram WebApp init data.
type TelegramProfile struct {
	TelegramID   int64
	Username     string
	FirstName    string
	LastName     string
	LanguageCode string
}
