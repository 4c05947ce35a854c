package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "http://localhost:3000", cfg.APIBaseURL)
	assert.Equal(t, StoreMemory, cfg.CredStore)
	assert.True(t, cfg.CookieSecure)
	assert.Equal(t, 30*24*time.Hour, cfg.SessionTTL)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("API_BASE_URL", "https://api.example.com")
	t.Setenv("CRED_STORE", "redis")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://shop.example.com,https://admin.example.com")
	t.Setenv("SESSION_TTL", "24h")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, "https://api.example.com", cfg.APIBaseURL)
	assert.Equal(t, StoreRedis, cfg.CredStore)
	assert.Equal(t, []string{"https://shop.example.com", "https://admin.example.com"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			HTTPPort:   8080,
			APIBaseURL: "http://localhost:3000",
			CredStore:  StoreMemory,
			RedisAddr:  "localhost:6379",
			SessionTTL: time.Hour,
		}
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, base().Validate())
	})

	t.Run("unknown store backend", func(t *testing.T) {
		cfg := base()
		cfg.CredStore = "postgres"
		assert.Error(t, cfg.Validate())
	})

	t.Run("redis store without address", func(t *testing.T) {
		cfg := base()
		cfg.CredStore = StoreRedis
		cfg.RedisAddr = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("empty api base url", func(t *testing.T) {
		cfg := base()
		cfg.APIBaseURL = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad port", func(t *testing.T) {
		cfg := base()
		cfg.HTTPPort = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("non-positive ttl", func(t *testing.T) {
		cfg := base()
		cfg.SessionTTL = 0
		assert.Error(t, cfg.Validate())
	})
}
