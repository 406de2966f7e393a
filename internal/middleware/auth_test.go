package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/maktaba-app/maktaba/internal/auth"
	"github.com/maktaba-app/maktaba/internal/domain"
	"github.com/maktaba-app/maktaba/internal/session"
)

// stubUserService implements service.UserService for middleware tests.
// Only GetBySessionToken matters here; the rest are unreachable.
type stubUserService struct {
	userByToken map[string]*domain.User
}

func (s *stubUserService) GetBySessionToken(ctx context.Context, token string) (*domain.User, error) {
	if user, ok := s.userByToken[token]; ok {
		return user, nil
	}
	return nil, domain.Unauthorized("stub", "Invalid session")
}

func (s *stubUserService) LoginTelegram(ctx context.Context, initData string) (*domain.LoginResult, error) {
	panic("not used")
}

func (s *stubUserService) LoginAdmin(ctx context.Context, email, password string) (*domain.LoginResult, error) {
	panic("not used")
}

func (s *stubUserService) Logout(ctx context.Context, token string) error { panic("not used") }

func (s *stubUserService) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	panic("not used")
}

func (s *stubUserService) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	panic("not used")
}

func (s *stubUserService) EnsureAdminUser(ctx context.Context, email, password string) error {
	panic("not used")
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAuth(users *stubUserService) *AuthMiddleware {
	return NewAuthMiddleware(users, testLogger(), false)
}

// captureUser is a terminal handler that records the context user.
func captureUser(got **domain.User) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = auth.GetUser(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestWithUser_ValidSession(t *testing.T) {
	user := &domain.User{ID: uuid.New(), Username: "abdullah"}
	mw := newTestAuth(&stubUserService{userByToken: map[string]*domain.User{"good": user}})

	var got *domain.User
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "good"})
	rec := httptest.NewRecorder()

	mw.WithUser(captureUser(&got)).ServeHTTP(rec, req)

	if got == nil || got.ID != user.ID {
		t.Fatalf("expected user in context, got %v", got)
	}
}

func TestWithUser_NoCookie(t *testing.T) {
	mw := newTestAuth(&stubUserService{})

	var got *domain.User
	req := httptest.NewRequest(http.MethodGet, "/api/books", nil)
	rec := httptest.NewRecorder()

	mw.WithUser(captureUser(&got)).ServeHTTP(rec, req)

	if got != nil {
		t.Fatalf("expected no user, got %v", got)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("request should continue without user, got %d", rec.Code)
	}
}

func TestWithUser_InvalidSessionClearsCookie(t *testing.T) {
	mw := newTestAuth(&stubUserService{})

	var got *domain.User
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "stale"})
	rec := httptest.NewRecorder()

	mw.WithUser(captureUser(&got)).ServeHTTP(rec, req)

	if got != nil {
		t.Fatalf("expected no user, got %v", got)
	}

	cleared := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("expected session cookie to be cleared")
	}
}

func TestRequireUser(t *testing.T) {
	mw := newTestAuth(&stubUserService{})
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/me/limits", nil)
		rec := httptest.NewRecorder()
		mw.RequireUser(next).ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("authenticated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/me/limits", nil)
		req = req.WithContext(auth.SetUser(req.Context(), &domain.User{ID: uuid.New()}))
		rec := httptest.NewRecorder()
		mw.RequireUser(next).ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
	})
}

func TestRequireAdmin(t *testing.T) {
	mw := newTestAuth(&stubUserService{})
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/tiers", nil)
		rec := httptest.NewRecorder()
		mw.RequireAdmin(next).ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("regular user", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/tiers", nil)
		req = req.WithContext(auth.SetUser(req.Context(), &domain.User{ID: uuid.New()}))
		rec := httptest.NewRecorder()
		mw.RequireAdmin(next).ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", rec.Code)
		}
	})

	t.Run("admin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/tiers", nil)
		req = req.WithContext(auth.SetUser(req.Context(), &domain.User{ID: uuid.New(), IsAdmin: true}))
		rec := httptest.NewRecorder()
		mw.RequireAdmin(next).ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
	})
}

func TestStackOrder(t *testing.T) {
	var order []string
	tag := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	stack := Stack(tag("outer"), tag("inner"))
	stack(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	})).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	want := []string{"outer", "inner", "handler"}
	for i, name := range want {
		if i >= len(order) || order[i] != name {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}
