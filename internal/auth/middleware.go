package auth

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const (
	claimsContextKey contextKey = "auth-claims"
	tokenContextKey  contextKey = "auth-token"
)

// RequireRole returns middleware that verifies the bearer token and checks
// the caller's role against the allowed list. Missing or invalid tokens are
// rejected with 401, valid tokens with a disallowed role with 403.
func RequireRole(verifier *Verifier, allowed []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				http.Error(w, "Missing bearer token", http.StatusUnauthorized)
				return
			}

			tokenString := strings.TrimSpace(header[len("Bearer "):])
			claims, err := verifier.VerifyToken(tokenString)
			if err != nil {
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			if !claims.HasRole(allowed) {
				http.Error(w, "Insufficient role", http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			ctx = context.WithValue(ctx, tokenContextKey, tokenString)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext returns the verified claims stored by RequireRole
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*Claims)
	return claims, ok
}

// TokenFromContext returns the raw bearer token stored by RequireRole.
// Downstream pushes reuse it so the trust chain is preserved end-to-end.
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenContextKey).(string)
	return token, ok
}
