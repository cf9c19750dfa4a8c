// Package server assembles the gin engine.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/carecircle/hub/internal/alerts"
	"github.com/carecircle/hub/internal/appointments"
	"github.com/carecircle/hub/internal/auth"
	"github.com/carecircle/hub/internal/config"
	"github.com/carecircle/hub/internal/dispatch"
	"github.com/carecircle/hub/internal/health"
	"github.com/carecircle/hub/internal/members"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

// Deps are the services the routes are bound to.
type Deps struct {
	Appointments *appointments.Service
	Members      *members.Service
	Alerts       *alerts.Aggregator
	Dispatches   *dispatch.Gateway
	JWT          *auth.JWT
	Ready        []health.Pinger
	Logger       *slog.Logger
}

// NewRouter builds the HTTP handler. Everything under /api requires a
// session or a bearer token.
func NewRouter(cfg *config.Config, d Deps) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions("hub_session", store))

	r.GET("/health", gin.WrapF(health.Handler))
	r.GET("/ready", gin.WrapF(health.NewReadyHandler(d.Ready...)))

	r.GET("/auth/login", auth.HandleLogin)
	r.GET("/auth/callback", auth.HandleCallback(d.Members))
	r.POST("/auth/logout", auth.HandleLogout)

	api := r.Group("/api", auth.RequireAuth(d.JWT))
	api.POST("/auth/token", auth.HandleToken(d.JWT))

	api.POST("/appointments/request", appointments.RequestHandler(d.Appointments))
	api.POST("/appointments/schedule", appointments.ScheduleHandler(d.Appointments))
	api.GET("/appointments/future", appointments.FutureHandler(d.Appointments))
	api.GET("/appointments/:id", appointments.GetHandler(d.Appointments))
	api.POST("/appointments/:id/end", appointments.EndHandler(d.Appointments))
	api.PUT("/appointments/:id/notes", appointments.UpdateNotesHandler(d.Appointments))
	api.DELETE("/appointments/:id", appointments.DeleteHandler(d.Appointments))

	api.POST("/recordings", appointments.AddRecordingHandler(d.Appointments))
	api.POST("/recordings/:id/review", appointments.ReviewRecordingHandler(d.Appointments))

	api.POST("/members", members.CreateHandler(d.Members))
	api.GET("/members", members.ListHandler(d.Members))
	api.DELETE("/members/:id", members.DeleteHandler(d.Members))
	api.GET("/members/:id/appointments", appointments.ListMemberAppointmentsHandler(d.Appointments))
	api.DELETE("/members/:id/appointments", appointments.DeleteMemberAppointmentsHandler(d.Appointments))

	api.GET("/users/me", members.MeHandler(d.Members))
	api.PATCH("/users/me", members.UpdateMeHandler(d.Members))

	api.GET("/alerts", alerts.ListHandler(d.Alerts))
	api.POST("/alerts/seen", alerts.SeenHandler(d.Alerts))
	api.POST("/alerts/:id/dismiss", alerts.DismissHandler(d.Alerts))

	api.POST("/dispatches", dispatch.SendHandler(d.Dispatches))
	api.GET("/dispatches/:id", dispatch.GetHandler(d.Dispatches))
	api.DELETE("/dispatches/:id", dispatch.DeleteHandler(d.Dispatches))

	return r
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if c.FullPath() == "/health" {
			return
		}
		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.LogAttrs(c.Request.Context(), level, "HTTP request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("user_id", auth.CurrentUserID(c)),
		)
	}
}
