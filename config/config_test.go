package config

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	for _, key := range []string{
		"META_DB_PATH", "LAKE_PATH", "METADATA_DIR", "LISTEN_ADDR",
		"LOG_LEVEL", "ENV", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
		"CORS_ALLOWED_ORIGINS",
	} {
		t.Setenv(key, "")
	}

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "metadata.db", cfg.MetaDBPath)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, 100.0, cfg.RateLimitRPS)
	assert.Equal(t, 200, cfg.RateLimitBurst)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.IsProduction())
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("META_DB_PATH", "/tmp/meta.db")
	t.Setenv("LAKE_PATH", "/tmp/study.duckdb")
	t.Setenv("LISTEN_ADDR", ":9999")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("ENV", "production")
	t.Setenv("RATE_LIMIT_RPS", "5")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/meta.db", cfg.MetaDBPath)
	assert.Equal(t, "/tmp/study.duckdb", cfg.LakePath)
	assert.Equal(t, ":9999", cfg.ListenAddr)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 5.0, cfg.RateLimitRPS)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
}

func TestLoadFromEnvCollectsWarnings(t *testing.T) {
	t.Setenv("LOG_LEVEL", "loud")
	t.Setenv("ENV", "staging")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	require.Len(t, cfg.Warnings, 2)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "development", cfg.Env)
}

func TestLoadFromEnvRejectsBadNumbers(t *testing.T) {
	t.Setenv("RATE_LIMIT_RPS", "fast")
	_, err := LoadFromEnv()
	require.Error(t, err)
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"nonsense", slog.LevelInfo},
	}
	for _, tt := range tests {
		cfg := &Config{LogLevel: tt.in}
		assert.Equal(t, tt.want, cfg.SlogLevel(), "level %q", tt.in)
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{MetaDBPath: "meta.db", RateLimitRPS: 1, RateLimitBurst: 1}
	require.NoError(t, cfg.Validate())

	cfg.RateLimitBurst = 0
	require.Error(t, cfg.Validate())
}
