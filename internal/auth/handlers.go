package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/carecircle/hub/internal/models"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/markbates/goth/gothic"
)

// UserResolver maps an OAuth identity to a hub user, creating it on first
// sign-in.
type UserResolver interface {
	FindOrCreateUser(ctx context.Context, email, name string) (*models.User, error)
}

// HandleLogin initiates the Google OAuth flow
func HandleLogin(c *gin.Context) {
	q := c.Request.URL.Query()
	q.Add("provider", providerGoogle)
	c.Request.URL.RawQuery = q.Encode()

	gothic.BeginAuthHandler(c.Writer, c.Request)
}

// HandleCallback completes the OAuth flow, resolves the hub user and stores
// its id in the session.
func HandleCallback(users UserResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := c.Request.URL.Query()
		q.Add("provider", providerGoogle)
		c.Request.URL.RawQuery = q.Encode()

		gothUser, err := gothic.CompleteUserAuth(c.Writer, c.Request)
		if err != nil {
			slog.Warn("OAuth callback failed", "error", err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
			return
		}

		user, err := users.FindOrCreateUser(c.Request.Context(), gothUser.Email, gothUser.Name)
		if err != nil {
			slog.Error("Failed to resolve user", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}

		session := sessions.Default(c)
		session.Set(sessionUserID, user.ID)
		session.Set("user_email", user.Email)
		session.Set("user_name", user.Name)

		if err := session.Save(); err != nil {
			slog.Error("Session save error", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}

		slog.Info("User authenticated", "user_id", user.ID)
		c.JSON(http.StatusOK, user)
	}
}

// HandleLogout clears the session.
func HandleLogout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()

	if err := session.Save(); err != nil {
		slog.Error("Session clear error", "error", err)
	}

	c.Status(http.StatusNoContent)
}

// HandleToken issues a bearer token for the authenticated caller, so a
// browser session can hand credentials to an API client.
func HandleToken(j *JWT) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := j.Sign(CurrentUserID(c))
		if err != nil {
			slog.Error("Failed to sign token", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token, "type": "Bearer"})
	}
}
