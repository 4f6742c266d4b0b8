// Package config loads service settings from environment variables.
// Defaults come from struct tags and every value is validated on startup so
// a misconfigured deployment fails before it accepts traffic.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Engine    EngineConfig
	Cache     CacheConfig
	Results   ResultsConfig
	Rate      RateLimitConfig
	Security  SecurityConfig
	Logging   LoggingConfig
	Retention RetentionConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" default:"8080"`

	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout also bounds how long in-flight analyses may finish.
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout applies to every route except analysis runs and exports,
	// which are bounded by the engine timeout instead.
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`

	// MaxBodyBytes caps JSON request bodies (default: 1MB).
	MaxBodyBytes int64 `env:"SERVER_MAX_BODY_BYTES" default:"1048576"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL accepts DATABASE_URL or DB_URL.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"20"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"4"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// EngineConfig configures the external rate engine and how many analyses may
// run against it at once.
type EngineConfig struct {
	URL    string `env:"ENGINE_URL" default:"http://localhost:3000"`
	APIKey string `env:"ENGINE_API_KEY"`

	// Timeout bounds a single analysis request (default: 2m).
	Timeout time.Duration `env:"ENGINE_TIMEOUT" default:"2m"`

	// MaxResponseBytes caps an engine response body (default: 64MB).
	MaxResponseBytes int64 `env:"ENGINE_MAX_RESPONSE_BYTES" default:"67108864"`

	MaxConcurrent int           `env:"ANALYSIS_MAX_CONCURRENT" default:"4"`
	MaxWaitTime   time.Duration `env:"ANALYSIS_MAX_WAIT_TIME" default:"30s"`
}

// CacheConfig holds result cache settings. An empty RedisURL selects the
// in-process cache.
type CacheConfig struct {
	RedisURL   string        `env:"CACHE_REDIS_URL"`
	MaxEntries int           `env:"CACHE_MAX_ENTRIES" default:"64"`
	TTL        time.Duration `env:"CACHE_TTL" default:"30m"`
}

// ResultsConfig holds results table paging settings.
type ResultsConfig struct {
	PageSize    int `env:"RESULTS_PAGE_SIZE" default:"50"`
	MaxPageSize int `env:"RESULTS_MAX_PAGE_SIZE" default:"500"`
}

// RateLimitConfig holds per-IP rate limiting settings.
type RateLimitConfig struct {
	Enabled           bool `env:"RATE_LIMIT_ENABLED" default:"true"`
	RequestsPerMinute int  `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// AnalysisLimit is requests per minute for the analysis run endpoint.
	AnalysisLimit int `env:"RATE_LIMIT_ANALYSIS" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of proxy CIDRs whose
	// X-Forwarded-For / X-Real-IP headers are honored.
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	RequireAPIKey bool     `env:"REQUIRE_API_KEY" default:"false"`
	APIKeys       []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is text or json.
	Format string `env:"LOG_FORMAT" default:"text"`
}

// RetentionConfig controls purging of old analyses.
type RetentionConfig struct {
	// Days is the age after which analyses are deleted. 0 disables purging.
	Days          int           `env:"RETENTION_DAYS" default:"180"`
	BatchSize     int           `env:"RETENTION_BATCH_SIZE" default:"500"`
	CheckInterval time.Duration `env:"RETENTION_CHECK_INTERVAL" default:"24h"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Enabled reports whether the retention job should run.
func (c *RetentionConfig) Enabled() bool {
	return c.Days > 0
}
