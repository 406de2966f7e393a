package promo

import "testing"

func TestValidatorDisabledAcceptsAnything(t *testing.T) {
	v := New(false, []string{"RAMADAN24"})

	if v.IsEnabled() {
		t.Error("expected validator to be disabled")
	}
	if !v.ValidateCode("anything") {
		t.Error("disabled validator should accept any code")
	}
	if !v.ValidateCode("") {
		t.Error("disabled validator should accept empty code")
	}
}

func TestValidatorEnabled(t *testing.T) {
	v := New(true, []string{"RAMADAN24", "EID2026", "friday"})

	cases := []struct {
		code  string
		valid bool
	}{
		{"RAMADAN24", true},
		{"ramadan24", true},
		{"  EID2026  ", true},
		{"FRIDAY", true}, // stored lowercase, normalized on load
		{"RAMADAN", false},
		{"", false},
		{"NOPE", false},
	}
	for _, tc := range cases {
		if got := v.ValidateCode(tc.code); got != tc.valid {
			t.Errorf("ValidateCode(%q) = %v, want %v", tc.code, got, tc.valid)
		}
	}
}

func TestValidatorDeduplicatesCodes(t *testing.T) {
	v := New(true, []string{"A1", "a1", " A1 ", ""})

	if len(v.codes) != 1 {
		t.Errorf("expected 1 normalized code, got %d", len(v.codes))
	}
	if !v.ValidateCode("A1") {
		t.Error("normalized code should validate")
	}
}
