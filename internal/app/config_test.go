package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.False(t, cfg.Cache.Redis.Enabled)
	assert.Equal(t, 5*time.Second, cfg.Cache.Redis.Timeout)
	assert.Equal(t, 100, cfg.RateLimit.MaxRequests)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("PLUME_SERVER_PORT", "9090")
	t.Setenv("PLUME_DATABASE_DRIVER", "postgres")
	t.Setenv("PLUME_CACHE_REDIS_ENABLED", "true")
	t.Setenv("PLUME_CACHE_REDIS_ADDRESS", "redis.internal:6380")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.True(t, cfg.Cache.Redis.Enabled)
	assert.Equal(t, "redis.internal:6380", cfg.Cache.Redis.Address)
}

func TestRedisClientConfigTrimsFields(t *testing.T) {
	cc := CacheConfig{Redis: RedisCacheConfig{
		Address:  "  localhost:6379  ",
		Username: " plume ",
		Password: " secret ",
		DB:       2,
	}}

	rc := cc.RedisClientConfig()
	assert.Equal(t, "localhost:6379", rc.Address)
	assert.Equal(t, "plume", rc.Username)
	assert.Equal(t, " secret ", rc.Password)
	assert.Equal(t, 2, rc.DB)
}
