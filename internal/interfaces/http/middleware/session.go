// internal/interfaces/http/middleware/session.go
package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/varalakshmimaha/Mahafashion-sub000/internal/config"
)

const sessionIDKey = "session_id"

// Session ensures every request has a cart session id, issuing a cookie when absent
func Session(cfg *config.Config) gin.HandlerFunc {
	name := cfg.Cart.SessionCookie
	maxAge := int(cfg.Cart.SessionCookieTTL / time.Second)

	return func(c *gin.Context) {
		sessionID, err := c.Cookie(name)
		if err != nil || !validSessionID(sessionID) {
			sessionID = uuid.New().String()
		}

		// Refresh the cookie on every request so active sessions do not expire
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(name, sessionID, maxAge, "/", "", cfg.Cart.SecureCookie, true)

		c.Set(sessionIDKey, sessionID)
		c.Next()
	}
}

// GetSessionID returns the cart session id of the request
func GetSessionID(c *gin.Context) string {
	return c.GetString(sessionIDKey)
}

func validSessionID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
