package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kislikjeka/moneyledger/pkg/config"
)

func TestLoad_RequiresJWTSecret(t *testing.T) {
	t.Setenv("STORAGE", "memory")
	t.Setenv("JWT_SECRET", "")

	_, err := config.Load()
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestLoadStorage_SkipsHTTPSettings(t *testing.T) {
	t.Setenv("STORAGE", "Memory")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DEFAULT_CURRENCY", "ves")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := config.LoadStorage()
	require.NoError(t, err)
	assert.Equal(t, config.StorageMemory, cfg.Storage)
	assert.Equal(t, "VES", cfg.DefaultCurrency)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.True(t, cfg.SchedulerEnabled)
}

func TestLoadStorage_PostgresNeedsURL(t *testing.T) {
	t.Setenv("STORAGE", "postgres")
	t.Setenv("DATABASE_URL", "")

	_, err := config.LoadStorage()
	assert.ErrorContains(t, err, "DATABASE_URL")
}
