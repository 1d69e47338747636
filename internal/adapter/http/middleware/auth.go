package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/iho/offledger/internal/domain"
	"github.com/iho/offledger/internal/infrastructure/auth"
	"github.com/iho/offledger/internal/infrastructure/metrics"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// UserContextKey is the context key for the authenticated user id
	UserContextKey ContextKey = "user_id"
)

// TokenVerifier verifies bearer tokens.
type TokenVerifier interface {
	Verify(tokenString string) (*auth.Claims, error)
}

// AuthMiddleware rejects requests without a valid bearer token and stores
// the verified user id in the request context.
func AuthMiddleware(verifier TokenVerifier, m *metrics.Metrics) func(http.Handler) http.Handler {
	fail := func(w http.ResponseWriter, reason, message string) {
		if m != nil {
			m.AuthFailures.WithLabelValues(reason).Inc()
		}
		writeJSONError(w, http.StatusUnauthorized, message)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				fail(w, "missing", "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				fail(w, "malformed", "invalid authorization header format")
				return
			}

			claims, err := verifier.Verify(parts[1])
			if err != nil {
				reason := "invalid"
				if errors.Is(err, domain.ErrExpiredToken) {
					reason = "expired"
				}
				fail(w, reason, "invalid or expired token")
				return
			}

			ctx := WithUserID(r.Context(), claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUserParam rejects requests whose path user differs from the
// authenticated one. Requests without an authenticated user pass through,
// which is the case when authentication is disabled.
func RequireUserParam(param string, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := UserIDFromContext(r.Context())
			if ok && chi.URLParam(r, param) != userID {
				if m != nil {
					m.AuthFailures.WithLabelValues("forbidden").Inc()
				}
				writeJSONError(w, http.StatusForbidden, domain.ErrForbidden.Error())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// WithUserID returns a context carrying the authenticated user id.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserContextKey, userID)
}

// UserIDFromContext extracts the authenticated user id from context
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserContextKey).(string)
	return userID, ok && userID != ""
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
