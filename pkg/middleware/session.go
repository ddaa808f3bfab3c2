package middleware

import (
	"errors"
	"net/http"

	"github.com/platinummonkey/lockbox/pkg/contextkeys"
	"github.com/platinummonkey/lockbox/pkg/httputil"
	"github.com/platinummonkey/lockbox/pkg/observability"
	"github.com/platinummonkey/lockbox/pkg/session"
)

// SessionAuth authenticates requests through the session cookie. On
// success the resolved identity and session ID are placed on the
// request context; everything behind this middleware can assume an
// authenticated principal.
type SessionAuth struct {
	sessions *session.Manager
	logger   *observability.Logger
}

// NewSessionAuth creates the session authentication middleware.
func NewSessionAuth(sessions *session.Manager, logger *observability.Logger) *SessionAuth {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &SessionAuth{
		sessions: sessions,
		logger:   logger.WithField("component", "session_auth"),
	}
}

// Handler wraps next with session authentication. Requests without a
// valid session get 401; the SSO login flow is the only way in.
func (m *SessionAuth) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident, sessionID, err := m.sessions.Resolve(r.Context(), r)
		if err != nil {
			if !errors.Is(err, session.ErrSessionNotFound) {
				m.logger.WithError(err).Error("session resolution failed")
				httputil.WriteInternalError(w, errors.New("session lookup failed"))
				return
			}
			httputil.WriteUnauthorized(w, "authentication required")
			return
		}

		ctx := contextkeys.WithIdentity(r.Context(), &ident)
		ctx = contextkeys.WithSessionID(ctx, sessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
