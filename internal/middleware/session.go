package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/codeandrun/server/internal/model"
)

// SessionCookieName is the cookie carrying the signed session token.
const SessionCookieName = "authToken"

type contextKey string

const userKey contextKey = "user"

// SessionVerifier establishes a user from a session token.
type SessionVerifier interface {
	VerifySession(ctx context.Context, token string) (model.User, error)
}

// SessionMiddleware extracts the session cookie, verifies the token, loads the
// user and attaches it to the request context. Any failure is a generic 401.
func SessionMiddleware(sessions SessionVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				respondWithError(w, http.StatusUnauthorized, "unauthenticated")
				return
			}

			user, err := sessions.VerifySession(r.Context(), cookie.Value)
			if err != nil {
				respondWithError(w, http.StatusUnauthorized, "unauthenticated")
				return
			}

			ctx := context.WithValue(r.Context(), userKey, &user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUser returns the user attached to the request context by SessionMiddleware.
func GetUser(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(userKey).(*model.User)
	return u, ok
}

// respondWithError sends a JSON error response.
func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
