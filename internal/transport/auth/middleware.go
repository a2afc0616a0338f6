package auth

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"school-admin/internal/domain"
)

type ctxKey string

const UserIDKey ctxKey = "userID"

var ErrNoUser = errors.New("userID not found in context")

type TokenFinder interface {
	FindTokenByPlainToken(ctx context.Context, plainToken string) (*domain.PersonalAccessToken, error)
}

// bearerToken reads "Authorization: Bearer <token>" and falls back to
// ?token=, which browsers need for websocket handshakes.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		if tok := strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")); tok != "" {
			return tok
		}
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

// TokenMiddleware authenticates the admin behind a personal access token and
// stores the user id in the request context.
func TokenMiddleware(tokens TokenFinder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			plain := bearerToken(r)
			if plain == "" {
				unauthorized(w, "Unauthorized")
				return
			}

			pat, err := tokens.FindTokenByPlainToken(r.Context(), plain)
			if err != nil {
				log.Printf("[AUTH] %s %s: %v", r.Method, r.URL.Path, err)
				unauthorized(w, "Unauthorized")
				return
			}
			if pat.Expired(time.Now()) {
				unauthorized(w, "Token expired")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), pat.UserID)))
		})
	}
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error_code":401,"status":"error","message":"` + message + `","data":null}`))
}

func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

func GetUserID(ctx context.Context) (int64, error) {
	userID, ok := ctx.Value(UserIDKey).(int64)
	if !ok {
		return 0, ErrNoUser
	}
	return userID, nil
}
