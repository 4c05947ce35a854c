// Package config holds the storefront gateway's runtime configuration,
// loaded from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/utafrali/storefront/pkg/config"
)

// Credential store backends.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

// Config is the full gateway configuration.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	HTTPPort    int    `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// APIBaseURL is the e-store REST API origin, without the version prefix.
	APIBaseURL string `env:"API_BASE_URL" envDefault:"http://localhost:3000"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	// CookieSecure should only be disabled for local development over HTTP.
	CookieSecure bool          `env:"COOKIE_SECURE" envDefault:"true"`
	SessionTTL   time.Duration `env:"SESSION_TTL" envDefault:"720h"`

	// CredStore selects where per-session tokens persist: memory, file,
	// or redis.
	CredStore    string `env:"CRED_STORE" envDefault:"memory"`
	CredFilePath string `env:"CRED_FILE_PATH"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	HTTPTimeout    time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"30s"`
	HTTPMaxRetries int           `env:"UPSTREAM_MAX_RETRIES" envDefault:"3"`

	BreakerTimeout      time.Duration `env:"BREAKER_TIMEOUT" envDefault:"30s"`
	BreakerInterval     time.Duration `env:"BREAKER_INTERVAL" envDefault:"60s"`
	BreakerFailureRatio float64       `env:"BREAKER_FAILURE_RATIO" envDefault:"0.5"`
	BreakerMinRequests  uint32        `env:"BREAKER_MIN_REQUESTS" envDefault:"5"`

	TracingEnabled    bool    `env:"TRACING_ENABLED" envDefault:"false"`
	OTLPEndpoint      string  `env:"OTLP_ENDPOINT" envDefault:"localhost:4318"`
	TracingSampleRate float64 `env:"TRACING_SAMPLE_RATE" envDefault:"0.1"`
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := config.Load(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints the env parser cannot express.
func (c *Config) Validate() error {
	switch c.CredStore {
	case StoreMemory, StoreFile, StoreRedis:
	default:
		return fmt.Errorf("invalid CRED_STORE %q: must be %s, %s, or %s",
			c.CredStore, StoreMemory, StoreFile, StoreRedis)
	}
	if c.CredStore == StoreRedis && c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR is required when CRED_STORE is %s", StoreRedis)
	}
	if c.APIBaseURL == "" {
		return fmt.Errorf("API_BASE_URL must not be empty")
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP_PORT %d", c.HTTPPort)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	return nil
}

// IsProduction reports whether the gateway runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
