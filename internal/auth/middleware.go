package auth

import (
	"net/http"
	"strings"

	"github.com/carecircle/hub/internal/apperrors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const (
	sessionUserID = "user_id"
	ctxUserID     = "user_id"
)

// RequireAuth accepts either a session cookie or an "Authorization: Bearer"
// token and aborts with 401 otherwise.
func RequireAuth(j *JWT) gin.HandlerFunc {
	return func(c *gin.Context) {
		if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
			userID, err := j.Verify(strings.TrimPrefix(h, "Bearer "))
			if err != nil {
				unauthorized(c)
				return
			}
			c.Set(ctxUserID, userID)
			c.Next()
			return
		}

		session := sessions.Default(c)
		userID, ok := session.Get(sessionUserID).(string)
		if !ok || userID == "" {
			unauthorized(c)
			return
		}

		c.Set(ctxUserID, userID)
		c.Set("user_email", session.Get("user_email"))
		c.Set("user_name", session.Get("user_name"))

		c.Next()
	}
}

func unauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": "authentication required",
		"code":  apperrors.CodeUnauthenticated,
	})
}

// CurrentUserID returns the id set by RequireAuth, or "" outside it.
func CurrentUserID(c *gin.Context) string {
	return c.GetString(ctxUserID)
}
