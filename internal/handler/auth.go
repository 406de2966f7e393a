package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/maktaba-app/maktaba/internal/auth"
	"github.com/maktaba-app/maktaba/internal/service"
	"github.com/maktaba-app/maktaba/internal/session"
)

// AuthHandler serves login, logout, and the current-user endpoint.
type AuthHandler struct {
	users    service.UserService
	logger   *slog.Logger
	isSecure bool
}

func NewAuthHandler(users service.UserService, logger *slog.Logger, isSecure bool) *AuthHandler {
	return &AuthHandler{
		users:    users,
		logger:   logger,
		isSecure: isSecure,
	}
}

// TelegramLogin handles POST /api/auth/telegram.
//
// The Mini App sends window.Telegram.WebApp.initData verbatim; the user
// service verifies the signature and creates the account on first
// contact.
func (h *AuthHandler) TelegramLogin(w http.ResponseWriter, r *http.Request) {
	const op = "AuthHandler.TelegramLogin"

	var req struct {
		InitData string `json:"initData"`
	}
	if err := decodeJSON(op, w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	result, err := h.users.LoginTelegram(r.Context(), strings.TrimSpace(req.InitData))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	session.SetCookie(w, result.Token, h.isSecure)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"user": newUserView(result.User),
	})
}

// AdminLogin handles POST /api/admin/login.
func (h *AuthHandler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	const op = "AuthHandler.AdminLogin"

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(op, w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	result, err := h.users.LoginAdmin(r.Context(), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	session.SetCookie(w, result.Token, h.isSecure)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"user": newUserView(result.User),
	})
}

// Logout handles POST /api/auth/logout. Logging out without a session is
// not an error.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(session.CookieName); err == nil {
		if err := h.users.Logout(r.Context(), cookie.Value); err != nil {
			h.logger.Warn("logout failed", "error", err)
		}
	}

	session.ClearCookie(w, h.isSecure)
	respondJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// Me handles GET /api/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromRequest(r)
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"user": newUserView(user),
	})
}
