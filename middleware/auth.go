package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/ajperformance/storefront/backend/models"
	"github.com/ajperformance/storefront/backend/service"
	"github.com/rs/zerolog/log"
)

type contextKey string

const (
	SessionKey contextKey = "session"
)

// Authenticator resolves a bearer token to a session.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*service.Session, error)
}

// ProfileLookup loads the user document for an account id.
type ProfileLookup interface {
	Get(ctx context.Context, id string) (*models.User, error)
}

// Auth requires a valid, not logged out bearer token and stores its session on the request context.
func Auth(auth Authenticator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				http.Error(w, `{"error":"missing authorization header"}`, http.StatusUnauthorized)
				return
			}
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, `{"error":"invalid authorization format"}`, http.StatusUnauthorized)
				return
			}
			session, err := auth.Authenticate(r.Context(), parts[1])
			if errors.Is(err, service.ErrTransient) {
				http.Error(w, `{"error":"session check unavailable"}`, http.StatusBadGateway)
				return
			}
			if err != nil {
				http.Error(w, `{"error":"invalid or expired token"}`, http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), SessionKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin lets the request through only when the signed-in user's profile has isAdmin set.
// It must run after Auth.
func RequireAdmin(users ProfileLookup) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := UserIDFromContext(r.Context())
			if !ok {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			user, err := users.Get(r.Context(), id)
			if err != nil && !errors.Is(err, service.ErrNotFound) {
				log.Error().Err(err).Str("user", id).Msg("admin check")
				http.Error(w, `{"error":"failed to check permissions"}`, http.StatusBadGateway)
				return
			}
			if user == nil || !user.IsAdmin {
				http.Error(w, `{"error":"admin access required"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func SessionFromContext(ctx context.Context) (*service.Session, bool) {
	s, ok := ctx.Value(SessionKey).(*service.Session)
	return s, ok && s != nil
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	s, ok := SessionFromContext(ctx)
	if !ok {
		return "", false
	}
	return s.AccountID, true
}
