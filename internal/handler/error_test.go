package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/maktaba-app/maktaba/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// =============================================================================
// Error Response Tests
// =============================================================================

func TestErrorCodeToHTTPStatus(t *testing.T) {
	testCases := []struct {
		code string
		want int
	}{
		{domain.EINVALID, http.StatusBadRequest},
		{domain.EUNAUTHORIZED, http.StatusUnauthorized},
		{domain.EPAYMENT, http.StatusPaymentRequired},
		{domain.EFORBIDDEN, http.StatusForbidden},
		{domain.ENOTFOUND, http.StatusNotFound},
		{domain.ECONFLICT, http.StatusConflict},
		{domain.ETOOLARGE, http.StatusRequestEntityTooLarge},
		{domain.ERATELIMIT, http.StatusTooManyRequests},
		{domain.EINTERNAL, http.StatusInternalServerError},
		{"unknown_code", http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.code, func(t *testing.T) {
			if got := ErrorCodeToHTTPStatus(tc.code); got != tc.want {
				t.Errorf("ErrorCodeToHTTPStatus(%q) = %d, want %d", tc.code, got, tc.want)
			}
		})
	}
}

func TestErrorResponse_InternalDetailsHidden(t *testing.T) {
	err := domain.Internal(errors.New(`pq: connection refused host=db.internal`), "UserService.GetByID", "Failed to load user")

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	rec := httptest.NewRecorder()
	ErrorResponse(rec, req, testLogger(), err)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}

	body := rec.Body.String()
	if strings.Contains(body, "connection refused") || strings.Contains(body, "db.internal") {
		t.Errorf("response leaks internal error details: %s", body)
	}
	if strings.Contains(body, "UserService") {
		t.Errorf("response leaks operation name: %s", body)
	}

	var parsed JSONError
	if err := json.Unmarshal(rec.Body.Bytes(), &parsed); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if parsed.Error.Code != domain.EINTERNAL {
		t.Errorf("code = %q, want %q", parsed.Error.Code, domain.EINTERNAL)
	}
}

func TestErrorResponse_ClientErrorKeepsMessage(t *testing.T) {
	err := domain.Invalid("ContentService.CreateBook", "Title is required")

	req := httptest.NewRequest(http.MethodPost, "/api/admin/books", nil)
	rec := httptest.NewRecorder()
	ErrorResponse(rec, req, testLogger(), err)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	var parsed JSONError
	if err := json.Unmarshal(rec.Body.Bytes(), &parsed); err != nil {
		t.Fatal(err)
	}
	if parsed.Error.Message != "Title is required" {
		t.Errorf("message = %q, want the validation message", parsed.Error.Message)
	}
	if strings.Contains(rec.Body.String(), "ContentService") {
		t.Error("response leaks operation name")
	}
}

// =============================================================================
// Request Decoding Tests
// =============================================================================

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	t.Run("valid", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x"}`))
		var dst payload
		if err := decodeJSON("test", httptest.NewRecorder(), req, &dst); err != nil {
			t.Fatalf("decodeJSON failed: %v", err)
		}
		if dst.Name != "x" {
			t.Errorf("Name = %q", dst.Name)
		}
	})

	t.Run("unknown field", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x","bogus":1}`))
		var dst payload
		err := decodeJSON("test", httptest.NewRecorder(), req, &dst)
		if domain.ErrorCode(err) != domain.EINVALID {
			t.Errorf("expected EINVALID, got %v", err)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
		var dst payload
		err := decodeJSON("test", httptest.NewRecorder(), req, &dst)
		if domain.ErrorCode(err) != domain.EINVALID {
			t.Errorf("expected EINVALID, got %v", err)
		}
	})
}

func TestPathContentType(t *testing.T) {
	mux := http.NewServeMux()
	var got domain.ContentType
	var gotErr error
	mux.HandleFunc("GET /api/library/{type}/favorites", func(w http.ResponseWriter, r *http.Request) {
		got, gotErr = pathContentType("test", r)
	})

	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/library/books/favorites", nil))
	if gotErr != nil || got != domain.ContentBooks {
		t.Errorf("books segment parsed as (%v, %v)", got, gotErr)
	}

	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/library/videos/favorites", nil))
	if domain.ErrorCode(gotErr) != domain.EINVALID {
		t.Errorf("unknown content type should be EINVALID, got %v", gotErr)
	}
}
