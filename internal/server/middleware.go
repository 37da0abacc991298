package server

import (
	"context"
	"errors"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"topicdesk/internal/core"
	"topicdesk/internal/persistence"
)

// UserIDHeader carries the authenticated user's id, set by the upstream auth proxy
const UserIDHeader = "X-User-ID"

type contextKey string

const userIDKey contextKey = "user_id"

func canView(r core.Role) bool     { return r.CanPreview() }
func canGenerate(r core.Role) bool { return r.CanGenerate() }

// userID returns the caller set by requireProjectRole or authorize
func userID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// requireProjectRole admits members of the {projectID} project whose role passes allowed
func (s *Server) requireProjectRole(allowed func(core.Role) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, err := s.authorize(r, chi.URLParam(r, "projectID"), allowed)
			if err != nil {
				s.respondFailure(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// authorize checks the caller's role in projectID and returns a context carrying the user id
func (s *Server) authorize(r *http.Request, projectID string, allowed func(core.Role) bool) (context.Context, error) {
	user := r.Header.Get(UserIDHeader)
	if user == "" {
		return nil, errUnauthenticated
	}

	role, err := s.db.Members().Role(r.Context(), projectID, user)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, core.NewPermissionError("not a member of this project")
		}
		return nil, core.NewPersistenceError("failed to resolve membership", err)
	}
	if !allowed(role) {
		return nil, core.NewPermissionError("role " + string(role) + " is not allowed to perform this action")
	}
	return context.WithValue(r.Context(), userIDKey, user), nil
}

var errUnauthenticated = errors.New("missing " + UserIDHeader + " header")

// requireAdminAPI middleware protects admin endpoints with an API key.
// The key comes from server configuration, falling back to ADMIN_API_KEY.
func (s *Server) requireAdminAPI(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		adminAPIKey := s.config.AdminAPIKey
		if adminAPIKey == "" {
			adminAPIKey = os.Getenv("ADMIN_API_KEY")
		}

		if adminAPIKey == "" {
			s.log.Warn("Admin API accessed but ADMIN_API_KEY not set")
			s.respondError(w, http.StatusForbidden, "Admin API is disabled. Set ADMIN_API_KEY environment variable to enable.")
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			s.respondError(w, http.StatusUnauthorized, "Missing Authorization header")
			return
		}

		if authHeader != "Bearer "+adminAPIKey {
			s.log.Warn("Invalid admin API key attempt", "remote_addr", r.RemoteAddr)
			s.respondError(w, http.StatusUnauthorized, "Invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}
