package auth

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/carecircle/hub/internal/config"
	"github.com/gorilla/sessions"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/google"
)

const (
	providerGoogle = "google"
	// oauthStateTTL bounds how long a started login can be completed.
	oauthStateTTL = 10 * time.Minute
)

// InitProviders registers Google sign-in. Without a client id login stays
// disabled and only bearer tokens authenticate.
func InitProviders(cfg *config.Config) {
	// OAuth state lives in gothic's own cookie, apart from the hub session.
	// Secure only in production so the flow works over plain HTTP locally.
	gothStore := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	gothStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(oauthStateTTL.Seconds()),
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	}
	gothic.Store = gothStore

	if cfg.GoogleClientID == "" {
		slog.Warn("GOOGLE_CLIENT_ID not set. OAuth login will not work until credentials are configured")
		return
	}

	goth.UseProviders(
		google.New(
			cfg.GoogleClientID,
			cfg.GoogleClientSecret,
			cfg.GoogleCallbackURL,
			"email",
			"profile",
		),
	)

	slog.Info("OAuth provider registered", "provider", providerGoogle)
}
