package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/secissues/secissues-go/internal/model"
	"github.com/secissues/secissues-go/internal/service"
)

type contextKey string

const userKey contextKey = "user"

// Resolver maps a bearer token to the current account.
type Resolver interface {
	Resolve(ctx context.Context, token string) (model.User, error)
}

// BearerAuth returns middleware that resolves the Bearer token from the
// Authorization header and stores the live user in the request context.
func BearerAuth(auth Resolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeJSONError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			token, found := strings.CutPrefix(authHeader, "Bearer ")
			token = strings.TrimSpace(token)
			if !found || token == "" {
				writeJSONError(w, http.StatusUnauthorized, "invalid authorization format")
				return
			}

			user, err := auth.Resolve(r.Context(), token)
			if err != nil {
				switch {
				case errors.Is(err, service.ErrInvalidToken), errors.Is(err, service.ErrUserNotFound):
					writeJSONError(w, http.StatusUnauthorized, "unauthorized")
				case errors.Is(err, service.ErrStoreUnavailable):
					logger.Error("token resolve failed", slog.Any("error", err))
					writeJSONError(w, http.StatusServiceUnavailable, "service unavailable")
				default:
					logger.Error("token resolve failed", slog.Any("error", err))
					writeJSONError(w, http.StatusInternalServerError, "internal server error")
				}
				return
			}

			ctx := context.WithValue(r.Context(), userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext extracts the authenticated user from the request context.
func UserFromContext(ctx context.Context) (model.User, bool) {
	user, ok := ctx.Value(userKey).(model.User)
	return user, ok
}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user model.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
