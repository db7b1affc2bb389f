package auth

import (
	"context"
	"net/http"

	"github.com/nordvik-media/blog-api/internal/domain"
	"go.uber.org/zap"
)

// UserLookup resolves a session's user id to the stored account
type UserLookup interface {
	GetByID(ctx context.Context, id uint) (*domain.User, error)
}

// Middleware attaches the server-side session to incoming requests and
// gates protected routes on an authenticated user.
type Middleware struct {
	sessions   *SessionStore
	users      UserLookup
	cookieName string
	logger     *zap.Logger
}

// NewMiddleware creates a new session middleware
func NewMiddleware(sessions *SessionStore, users UserLookup, cookieName string, logger *zap.Logger) *Middleware {
	return &Middleware{
		sessions:   sessions,
		users:      users,
		cookieName: cookieName,
		logger:     logger,
	}
}

// LoadSession attaches the caller's session to the request context when the
// session cookie references a live session. Requests without a valid cookie
// pass through untouched; handlers that need a session create one themselves.
func (m *Middleware) LoadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(m.cookieName)
		if err != nil || cookie.Value == "" {
			next.ServeHTTP(w, r)
			return
		}

		sess, ok := m.sessions.Get(cookie.Value)
		if !ok {
			// Stale cookie, clear it so the client stops sending it
			http.SetCookie(w, &http.Cookie{
				Name:     m.cookieName,
				Value:    "",
				Path:     "/",
				MaxAge:   -1,
				HttpOnly: true,
			})
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
	})
}

// RequireUser rejects requests whose session is missing or not yet bound to
// a user account.
func (m *Middleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := SessionFromContext(r.Context())
		if !ok || !sess.Authenticated() {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		user, err := m.users.GetByID(r.Context(), *sess.UserID)
		if err != nil {
			m.logger.Warn("session user not found",
				zap.Uint("user_id", *sess.UserID),
				zap.String("path", r.URL.Path),
				zap.Error(err),
			)
			m.sessions.Delete(sess.Token)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		// Federated is an account property, not a session one: a user
		// provisioned by federated login has no password hash, no matter
		// which path established the current session. Mirrors the DTO
		// mapping so /auth/me and user payloads always agree.
		userCtx := &UserContext{
			UserID:    user.ID,
			Username:  user.Username,
			Federated: user.PasswordHash == "",
		}
		next.ServeHTTP(w, r.WithContext(WithUserContext(r.Context(), userCtx)))
	})
}
