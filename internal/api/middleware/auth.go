package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/testforge/internal/auth"
)

type contextKey string

const (
	identityKey    contextKey = "identity"
	tokenKey       contextKey = "token"
	tokenSourceKey contextKey = "token_source"
)

// TokenCookieName is the cookie login sets for browser clients.
const TokenCookieName = "token"

// TokenSource records where the bearer token of a request came from.
type TokenSource string

const (
	SourceNone      TokenSource = ""
	SourceHeader    TokenSource = "authorization"
	SourceCookie    TokenSource = "cookie"
	SourceAuthToken TokenSource = "x-auth-token"
)

// TokenFromRequest looks for a token in the Authorization header, then the
// token cookie, then the X-Auth-Token header.
func TokenFromRequest(r *http.Request) (string, TokenSource) {
	// 1. Check Authorization header (API clients)
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		if token := strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")); token != "" {
			return token, SourceHeader
		}
	}

	// 2. Check cookie (browser)
	if cookie, err := r.Cookie(TokenCookieName); err == nil && cookie.Value != "" {
		return cookie.Value, SourceCookie
	}

	// 3. Check X-Auth-Token header (localStorage fallback for AJAX)
	if token := r.Header.Get("X-Auth-Token"); token != "" {
		return token, SourceAuthToken
	}

	return "", SourceNone
}

func Auth(verifier auth.TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, source := TokenFromRequest(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "Authentication required")
				return
			}

			identity, err := verifier.Verify(r.Context(), token)
			if err != nil {
				switch {
				case errors.Is(err, auth.ErrInactiveUser):
					writeError(w, http.StatusForbidden, "Account is inactive")
				case errors.Is(err, auth.ErrExpiredToken):
					writeError(w, http.StatusUnauthorized, "Token has expired")
				case errors.Is(err, auth.ErrInvalidToken):
					writeError(w, http.StatusUnauthorized, "Invalid token")
				default:
					writeError(w, http.StatusInternalServerError, "Internal server error")
				}
				return
			}

			noteUser(r.Context(), identity.UserID)
			ctx := WithIdentity(r.Context(), identity)
			ctx = context.WithValue(ctx, tokenKey, token)
			ctx = context.WithValue(ctx, tokenSourceKey, source)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithIdentity stores a verified identity on ctx.
func WithIdentity(ctx context.Context, identity *auth.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

func GetIdentity(ctx context.Context) *auth.Identity {
	if identity, ok := ctx.Value(identityKey).(*auth.Identity); ok {
		return identity
	}
	return nil
}

func GetUserID(ctx context.Context) uuid.UUID {
	if identity := GetIdentity(ctx); identity != nil {
		return identity.UserID
	}
	return uuid.Nil
}

func GetToken(ctx context.Context) string {
	if token, ok := ctx.Value(tokenKey).(string); ok {
		return token
	}
	return ""
}

func GetTokenSource(ctx context.Context) TokenSource {
	if source, ok := ctx.Value(tokenSourceKey).(TokenSource); ok {
		return source
	}
	return SourceNone
}

// RequireAdmin rejects authenticated users without the admin flag.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := GetIdentity(r.Context())
		if identity == nil {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		if !identity.IsAdmin {
			writeError(w, http.StatusForbidden, "Admin privileges required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: message})
}
