// Package promo validates trial promo codes. During rollout the trial is
// gated behind codes handed out in the Telegram channel; codes live in
// memory from environment configuration.
package promo

import (
	"crypto/subtle"
	"strings"
)

// Validator checks trial promo codes.
type Validator struct {
	enabled bool
	codes   []string
}

// New builds a validator from configuration. Codes are normalized to
// upper case and deduplicated.
func New(enabled bool, codes []string) *Validator {
	seen := make(map[string]bool)
	normalized := make([]string, 0, len(codes))
	for _, code := range codes {
		norm := strings.TrimSpace(strings.ToUpper(code))
		if norm != "" && !seen[norm] {
			seen[norm] = true
			normalized = append(normalized, norm)
		}
	}
	return &Validator{
		enabled: enabled,
		codes:   normalized,
	}
}

// IsEnabled returns whether a promo code is required to start a trial.
func (v *Validator) IsEnabled() bool {
	return v.enabled
}

// ValidateCode reports whether the code unlocks a trial. Always true when
// codes are disabled. Every configured code is compared in constant time
// regardless of match, so timing does not leak which codes exist.
func (v *Validator) ValidateCode(code string) bool {
	if !v.enabled {
		return true
	}

	normalized := strings.TrimSpace(strings.ToUpper(code))
	if normalized == "" {
		return false
	}

	found := 0
	for _, validCode := range v.codes {
		a := []byte(normalized)
		b := []byte(validCode)
		if subtle.ConstantTimeEq(int32(len(a)), int32(len(b))) == 1 {
			found |= subtle.ConstantTimeCompare(a, b)
		}
	}
	return found == 1
}
