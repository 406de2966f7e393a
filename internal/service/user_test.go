package service

import (
	"errors"
	"testing"
)

// =============================================================================
// Session Token Tests
// =============================================================================

func TestGenerateSessionToken(t *testing.T) {
	token, err := generateSessionToken()
	if err != nil {
		t.Fatalf("generateSessionToken failed: %v", err)
	}
	if len(token) != SessionTokenBytes*2 {
		t.Errorf("token length = %d, want %d hex chars", len(token), SessionTokenBytes*2)
	}

	other, err := generateSessionToken()
	if err != nil {
		t.Fatal(err)
	}
	if token == other {
		t.Error("two generated tokens are identical")
	}
}

func TestHashSessionToken(t *testing.T) {
	const token = "a3f1c2d4e5b6a7f8a3f1c2d4e5b6a7f8a3f1c2d4e5b6a7f8a3f1c2d4e5b6a7f8"

	h1 := hashSessionToken(token)
	h2 := hashSessionToken(token)
	if h1 != h2 {
		t.Error("hashing is not deterministic")
	}
	if h1 == token {
		t.Error("hash equals the raw token")
	}
	if len(h1) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(h1))
	}

	if hashSessionToken("different") == h1 {
		t.Error("distinct tokens hash to the same value")
	}
}

// =============================================================================
// Unique Violation Detection Tests
// =============================================================================

func TestIsUniqueViolation(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("connection refused"), false},
		{"postgres unique", errors.New(`pq: duplicate key value violates unique constraint "trials_pkey"`), true},
		{"generic unique", errors.New("UNIQUE constraint failed: trials.user_id"), true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := isUniqueViolation(tc.err); got != tc.want {
				t.Errorf("isUniqueViolation(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}
