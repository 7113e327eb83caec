// internal/middleware/auth_middleware.go
package middleware

import (
	"soulchat-agent/internal/domain/auth"
	xerrors "soulchat-agent/internal/pkg/errors"
	"soulchat-agent/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

// SessionReader exposes the current session to the middleware.
type SessionReader interface {
	Snapshot() auth.Snapshot
}

type AuthMiddleware struct {
	sessions SessionReader
}

func NewAuthMiddleware(sessions SessionReader) *AuthMiddleware {
	return &AuthMiddleware{
		sessions: sessions,
	}
}

// Auth rejects requests while the agent holds no authenticated session.
func (m *AuthMiddleware) Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		snap := m.sessions.Snapshot()
		if !snap.Authenticated() {
			response.FromError(c, "not signed in", xerrors.ErrNotAuthenticated)
			return
		}

		c.Set("session_status", string(snap.Status))
		if snap.User != nil {
			c.Set("user_id", snap.User.ID)
		}
		c.Next()
	}
}
