package metrics

import "testing"

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/books", "/api/books"},
		{"/api/books/6a6e2fd4-9f3a-4a8e-b8e3-1c2d3e4f5a6b", "/api/books/{id}"},
		{"/api/library/books/6a6e2fd4-9f3a-4a8e-b8e3-1c2d3e4f5a6b/favorite", "/api/library/books/{id}/favorite"},
		{"/files/books/6a6e2fd4-9f3a-4a8e-b8e3-1c2d3e4f5a6b/cover.jpg", "/files/{key}"},
		{"/health", "/health"},
	}

	for _, tt := range tests {
		if got := normalizePath(tt.path); got != tt.want {
			t.Errorf("normalizePath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
