// Package middleware provides HTTP middleware for the API router.
package middleware

import (
	"net"
	"net/http"
	"strings"

	"doctranslate/internal/auth"
)

// SecurityHeaders sets the OWASP recommended response headers.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-XSS-Protection", "0") // CSP replaces the legacy XSS filter
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
		h.Set("Cache-Control", "no-store")
		h.Set("Cross-Origin-Resource-Policy", "same-site")
		next.ServeHTTP(w, r)
	})
}

// TokenAuth rejects requests whose bearer token fails check. Preflight
// requests pass so CORS can answer them. When limiter is non-nil, clients
// with too many wrong tokens get 429 until their lock expires.
func TokenAuth(check func(token string) bool, limiter *auth.LoginLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			ip := clientIP(r)
			if limiter != nil {
				if err := limiter.CheckAllowed(ip); err != nil {
					writeAuthError(w, http.StatusTooManyRequests, err.Error())
					return
				}
			}
			token := BearerToken(r)
			ok := check(token)
			if limiter != nil && token != "" {
				limiter.RecordAttempt(ip, ok)
			}
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="doctranslate"`)
				writeAuthError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeAuthError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"success":false,"error":"` + strings.ReplaceAll(msg, `"`, `'`) + `"}`))
}

// clientIP returns the host part of r.RemoteAddr, which RealIP has already
// rewritten when the request came through a proxy.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// BearerToken returns the token of an "Authorization: Bearer" header, or "".
func BearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(auth[len(prefix):])
}
