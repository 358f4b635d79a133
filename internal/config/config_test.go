package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("ANALYTICS_CACHE_TTL_SECONDS", "")
	t.Setenv("REPORT_SLA_DAYS", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.Postgres.DSN)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 5*time.Minute, cfg.Cache.DefaultTTL())
	assert.Equal(t, 2, cfg.Reports.SLADays)
	assert.Equal(t, "system", cfg.Auth.DefaultActor)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ANALYTICS_CACHE_ENABLED", "false")
	t.Setenv("ANALYTICS_CACHE_TTL_SECONDS", "60")
	t.Setenv("QUERY_SLOW_MILLIS", "250")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("REDIS_DB", "3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, time.Minute, cfg.Cache.DefaultTTL())
	assert.Equal(t, 250*time.Millisecond, cfg.Query.SlowQuery())
	assert.Equal(t, "0.0.0.0:9090", cfg.App.Addr())
	assert.Equal(t, 3, cfg.Redis.DB)
}

func TestLoadRejectsBadRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "zero")
	_, err := Load()
	assert.Error(t, err)
}

func TestInvalidNumbersFallBack(t *testing.T) {
	t.Setenv("HTTP_REQUEST_TIMEOUT_SECONDS", "soon")
	t.Setenv("REDIS_DB", "0")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.App.RequestTimeout())
}
