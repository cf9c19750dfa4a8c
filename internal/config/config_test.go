package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"ENV", "PORT", "SESSION_SECRET", "JWT_SECRET", "NOTIFY_WEBHOOK_URL",
		"NOTIFY_STUB_MODE", "WORKER_MODE", "OVERDUE_SWEEP_SCHEDULE",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "all", cfg.WorkerMode)
	assert.Equal(t, "0 * * * *", cfg.OverdueSweepSchedule)
	assert.NotEmpty(t, cfg.SessionSecret)
	assert.NotEmpty(t, cfg.JWTSecret)
	assert.True(t, cfg.NotifyStubMode)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("PORT", "9090")
	t.Setenv("NOTIFY_WEBHOOK_URL", "https://notify.example.com")
	t.Setenv("NOTIFY_STUB_MODE", "false")
	t.Setenv("WORKER_MODE", "worker")
	t.Setenv("JWT_SECRET", "jwt")

	cfg := Load()

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "worker", cfg.WorkerMode)
	assert.Equal(t, "jwt", cfg.JWTSecret)
	assert.False(t, cfg.NotifyStubMode)
}

func TestLoad_StubModeWithoutURL(t *testing.T) {
	t.Setenv("NOTIFY_WEBHOOK_URL", "")
	t.Setenv("NOTIFY_STUB_MODE", "false")

	assert.True(t, Load().NotifyStubMode)
}
