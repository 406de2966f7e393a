// Package session provides shared session constants and cookie helpers
// used by both the handler and middleware packages.
package session

import "net/http"

const (
	// CookieName is the name of the cookie that stores the session token.
	CookieName = "maktaba_session"

	// CookiePath ensures the cookie is sent with all requests.
	CookiePath = "/"

	// CookieMaxAge sets the cookie expiration (30 days). Telegram Mini App
	// users re-authenticate transparently through init data, so the cookie
	// is longer-lived than a typical web session.
	CookieMaxAge = 30 * 24 * 60 * 60
)

// SetCookie writes the session cookie on the response.
//
// HttpOnly keeps the token away from script access; SameSite=None is
// required because the Mini App runs inside Telegram's webview, which is
// a cross-site context. SameSite=None mandates Secure.
func SetCookie(w http.ResponseWriter, token string, isSecure bool) {
	sameSite := http.SameSiteLaxMode
	if isSecure {
		sameSite = http.SameSiteNoneMode
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     CookiePath,
		MaxAge:   CookieMaxAge,
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: sameSite,
	})
}

// ClearCookie removes the session cookie from the client by expiring it
// immediately.
func ClearCookie(w http.ResponseWriter, isSecure bool) {
	sameSite := http.SameSiteLaxMode
	if isSecure {
		sameSite = http.SameSiteNoneMode
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     CookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: sameSite,
	})
}
