package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/animxo/mailpanel/internal/api/response"
	"github.com/animxo/mailpanel/internal/model"
)

type contextKey string

const claimsKey contextKey = "claims"

// SessionCookie carries the session token for browser clients.
const SessionCookie = "mailpanel_session"

// TokenValidator verifies a session token. *core.AuthService satisfies it.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*model.Claims, error)
}

// Auth returns middleware that validates the session token and injects its
// claims into the context.
func Auth(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				response.WriteError(w, http.StatusUnauthorized, "missing session token")
				return
			}

			claims, err := validator.ValidateToken(r.Context(), token)
			if err != nil {
				response.WriteError(w, http.StatusUnauthorized, "invalid or expired session")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// extractToken reads the bearer header, then the session cookie. WebSocket
// upgrades may also pass the token as the "token" query parameter since
// browsers cannot set headers on them.
func extractToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		token, ok := strings.CutPrefix(h, "Bearer ")
		if !ok {
			return ""
		}
		return strings.TrimSpace(token)
	}
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return r.URL.Query().Get("token")
	}
	return ""
}

// RequireAdmin rejects callers whose token lacks the admin claim.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := GetClaims(r.Context())
		if claims == nil {
			response.WriteError(w, http.StatusUnauthorized, "missing claims")
			return
		}
		if !claims.Admin {
			response.WriteError(w, http.StatusForbidden, "administrator access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func WithClaims(ctx context.Context, claims *model.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// GetClaims extracts session claims from the request context.
func GetClaims(ctx context.Context) *model.Claims {
	claims, _ := ctx.Value(claimsKey).(*model.Claims)
	return claims
}
