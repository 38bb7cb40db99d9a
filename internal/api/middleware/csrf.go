package middleware

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"time"
)

const (
	CSRFCookieName = "csrf_token"
	CSRFHeaderName = "X-CSRF-Token"
)

// NewCSRFToken returns a random token for the double-submit cookie.
func NewCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// SetCSRFCookie issues the readable cookie browser clients echo back in the
// X-CSRF-Token header.
func SetCSRFCookie(w http.ResponseWriter, r *http.Request, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: false, // JavaScript needs to read this
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})
}

// TokenSourceOnly records where the request's token came from without
// verifying it, so CSRF can guard routes that do not require a session.
func TokenSourceOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, source := TokenFromRequest(r)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), tokenSourceKey, source)))
	})
}

// CSRF protects state-changing requests that were authenticated by the token
// cookie. Header-authenticated requests are not exposed to CSRF and pass. It
// must run after Auth or TokenSourceOnly.
func CSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
			next.ServeHTTP(w, r)
			return
		}

		if GetTokenSource(r.Context()) != SourceCookie {
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie(CSRFCookieName)
		if err != nil || cookie.Value == "" {
			writeError(w, http.StatusForbidden, "CSRF token missing")
			return
		}
		provided := r.Header.Get(CSRFHeaderName)
		if provided == "" {
			writeError(w, http.StatusForbidden, "CSRF token missing")
			return
		}
		if subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(provided)) != 1 {
			writeError(w, http.StatusForbidden, "Invalid CSRF token")
			return
		}

		next.ServeHTTP(w, r)
	})
}
