package middleware

import (
	"crypto/subtle"
	"net/http"
)

// SecurityHeadersMiddleware adds HTTP security headers to all responses.
type SecurityHeadersMiddleware struct {
	isSecure bool
}

// NewSecurityHeadersMiddleware creates the security headers middleware.
// Set isSecure to true in production to enable HSTS.
func NewSecurityHeadersMiddleware(isSecure bool) *SecurityHeadersMiddleware {
	return &SecurityHeadersMiddleware{
		isSecure: isSecure,
	}
}

// Handler returns middleware that sets security headers on all responses.
func (m *SecurityHeadersMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The API serves no HTML, but the headers cost nothing and cover
		// the local file-serving route.
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		// The Mini App is framed by Telegram clients; everything else is
		// denied through CSP frame-ancestors.
		w.Header().Set("Content-Security-Policy", buildCSP())

		if m.isSecure {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		w.Header().Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")

		next.ServeHTTP(w, r)
	})
}

// buildCSP constructs the Content-Security-Policy header value,
// permitting framing only from Telegram's webview origins.
func buildCSP() string {
	return "default-src 'self'; " +
		"img-src 'self' data: https:; " +
		"media-src 'self' https:; " +
		"connect-src 'self'; " +
		"frame-ancestors https://web.telegram.org https://*.telegram.org; " +
		"base-uri 'self'; " +
		"form-action 'self'"
}

// BasicAuthMiddleware protects an endpoint with HTTP basic auth. Used
// for /metrics, which must not be publicly scrapeable.
type BasicAuthMiddleware struct {
	username string
	password string
}

func NewBasicAuthMiddleware(username, password string) *BasicAuthMiddleware {
	return &BasicAuthMiddleware{
		username: username,
		password: password,
	}
}

// Handler returns middleware enforcing the credentials with
// constant-time comparison.
func (m *BasicAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		userMatch := subtle.ConstantTimeCompare([]byte(user), []byte(m.username)) == 1
		passMatch := subtle.ConstantTimeCompare([]byte(pass), []byte(m.password)) == 1
		if !ok || !userMatch || !passMatch {
			w.Header().Set("WWW-Authenticate", `Basic realm="metrics"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
