package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"synbot/internal/session"
)

const (
	sessionContextKey   = "auth_session"
	authTokenContextKey = "auth_token"
)

// Middleware validates bearer tokens and stores the resolved session in the
// request context.
func (m *Manager) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := m.extractToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			return
		}
		sess, err := m.Resolve(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Set(sessionContextKey, sess)
		c.Set(authTokenContextKey, token)
		c.Next()
	}
}

// SessionFromContext retrieves the authenticated session from the gin context.
func SessionFromContext(c *gin.Context) (*session.Session, bool) {
	val, ok := c.Get(sessionContextKey)
	if !ok {
		return nil, false
	}
	sess, ok := val.(*session.Session)
	return sess, ok
}

// TokenFromContext retrieves the bearer token captured by the middleware.
func TokenFromContext(c *gin.Context) (string, bool) {
	val, ok := c.Get(authTokenContextKey)
	if !ok {
		return "", false
	}
	token, ok := val.(string)
	return token, ok
}

func (m *Manager) extractToken(c *gin.Context) string {
	authHeader := c.GetHeader(m.headerName)
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	if token, err := c.Cookie(m.cookieName); err == nil && token != "" {
		return token
	}
	return ""
}
