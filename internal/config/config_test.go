package config

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, DefaultModel, cfg.OpenAI.Model)
	assert.Equal(t, "./data/first_principles_sessions", cfg.ReportDir)
	assert.Equal(t, 60*time.Minute, cfg.SessionIdleTTL)
	assert.Equal(t, 60*time.Second, cfg.OpenAI.Timeout)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.True(t, cfg.Transcript.Enabled)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins())
}

func TestLoadMissingAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "   ")

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.True(t, errors.Is(err, ErrMissingAPIKey))
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_MODEL", "gpt-4o-mini")
	t.Setenv("SESSION_IDLE_TTL", "5m")
	t.Setenv("RATE_LIMIT_REQUESTS", "3")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("TRANSCRIPT_QUEUE_SIZE", "-1")
	t.Setenv("FRONTEND_URL", "https://wizard.example.com/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.Model)
	assert.Equal(t, 5*time.Minute, cfg.SessionIdleTTL)
	assert.Equal(t, 3, cfg.RateLimit.RequestsPerWindow)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, 256, cfg.Transcript.QueueSize)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, []string{"https://wizard.example.com"}, cfg.AllowedOrigins())
}

func TestLoadInvalidDurationFallsBack(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("RATE_LIMIT_WINDOW", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, time.Minute, cfg.RateLimit.WindowDuration)
}
