// Package domain contains core business types and interfaces.
//
// This file defines the Decision value returned by every entitlement
// check. Denials are values, never errors: callers gate on Allowed and use
// Reason/Current/Limit for user-facing messaging.
package domain

import "fmt"

// Denial reasons. ReasonSettingsUnavailable must be preserved verbatim so
// callers can distinguish a retryable settings failure from a terminal
// limit denial.
const (
	ReasonNotAuthenticated    = "not authenticated"
	ReasonSettingsUnavailable = "subscription settings unavailable"
)

// Decision is the structured result of an entitlement check.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
	Current int    `json:"current"`
	Limit   int    `json:"limit"`
}

// Allow is an unconditional positive decision.
func Allow() Decision {
	return Decision{Allowed: true}
}

// AllowUnlimited is a positive decision for an unlimited cap, reporting
// the current usage and the sentinel limit.
func AllowUnlimited(current int) Decision {
	return Decision{Allowed: true, Current: current, Limit: Unlimited}
}

// AllowWithin is a positive decision under a finite cap.
func AllowWithin(current, limit int) Decision {
	return Decision{Allowed: true, Current: current, Limit: limit}
}

// Deny is a negative decision with a reason and no usage figures.
func Deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// DenyLimitReached is a negative decision for an exhausted cap. The
// numeric limit is included in the reason for user-facing display.
func DenyLimitReached(ct ContentType, kind LimitKind, current, limit int) Decision {
	return Decision{
		Allowed: false,
		Reason:  fmt.Sprintf("%s %s limit reached (%d)", ct, kind, limit),
		Current: current,
		Limit:   limit,
	}
}

// LimitStatus pairs one cap with current usage for UI display.
type LimitStatus struct {
	Limit     int  `json:"limit"`
	Current   int  `json:"current"`
	Unlimited bool `json:"unlimited"`
}

// ContentLimitsSummary aggregates both caps for one content type.
type ContentLimitsSummary struct {
	Offline   LimitStatus `json:"offline"`
	Favorites LimitStatus `json:"favorites"`
}

// LimitsSummary is the read-only projection of every limit against
// current usage, keyed by content type.
type LimitsSummary struct {
	Tier   TierID                               `json:"tier"`
	ByType map[ContentType]ContentLimitsSummary `json:"byType"`
}
