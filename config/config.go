package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Rate limiter backends
const (
	RateLimitBackendMemory = "memory"
	RateLimitBackendRedis  = "redis"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Auth          AuthConfig
	RateLimit     RateLimitConfig
	Redis         RedisConfig
	Push          PushConfig
	YouTube       YouTubeConfig
	RoleChange    RoleChangeConfig
	CORS          CORSConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	TLS             struct {
		Enabled  bool
		CertFile string
		KeyFile  string
	}
}

// DatabaseConfig holds PostgreSQL configuration for the Supabase database.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
	InitSchema       bool
}

// AuthConfig holds Supabase auth configuration
type AuthConfig struct {
	SupabaseURL    string
	ServiceRoleKey string
	JWTSecret      string
	Audience       string
	VerifyRemote   bool // call GET /auth/v1/user instead of verifying locally
	JWKSCacheTTL   time.Duration
	// JWKSMinRefresh spaces out refetches forced by unknown key ids
	JWKSMinRefresh time.Duration
}

// RateLimitConfig configures the role-change admission controller
type RateLimitConfig struct {
	Capacity       int
	RefillInterval time.Duration
	Backend        string
	KeyPrefix      string
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// PushConfig holds Web Push (VAPID) settings
type PushConfig struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	ContactEmail    string
	TTL             int
	MaxConcurrency  int
	RateLimit       int // requests per minute per IP on the push routes
}

// YouTubeConfig holds the sermons feed settings
type YouTubeConfig struct {
	APIKey        string
	BaseURL       string
	DefaultHandle string
	DefaultMax    int
	CacheTTL      time.Duration
	CacheSize     int
	Timeout       time.Duration
}

// RoleChangeConfig selects how the audit insert is tied to the role update
type RoleChangeConfig struct {
	AtomicAudit bool
}

// CORSConfig holds allowed browser origins
type CORSConfig struct {
	AllowedOrigins []string
}

// ObservabilityConfig holds logging and error reporting configuration
type ObservabilityConfig struct {
	LogLevel          string
	LogFormat         string // json or text
	SentryDSN         string
	SentryEnvironment string
	SentrySampleRate  float64
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	_ = godotenv.Load(".env")

	environment := getEnv("ENVIRONMENT", "development")
	cfg := &Config{
		Environment: environment,
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			RequestTimeout:  getEnvAsDuration("SERVER_REQUEST_TIMEOUT", 25*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			TLS: struct {
				Enabled  bool
				CertFile string
				KeyFile  string
			}{
				Enabled:  getEnvAsBool("TLS_ENABLED", false),
				CertFile: getEnv("TLS_CERT_FILE", "certs/cert.pem"),
				KeyFile:  getEnv("TLS_KEY_FILE", "certs/key.pem"),
			},
		},
		Database: loadDatabaseConfig(),
		Auth: AuthConfig{
			SupabaseURL:    strings.TrimRight(getEnv("SUPABASE_URL", ""), "/"),
			ServiceRoleKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),
			JWTSecret:      getEnv("SUPABASE_JWT_SECRET", ""),
			Audience:       getEnv("SUPABASE_JWT_AUDIENCE", "authenticated"),
			VerifyRemote:   getEnvAsBool("SUPABASE_VERIFY_REMOTE", false),
			JWKSCacheTTL:   getEnvAsDuration("SUPABASE_JWKS_CACHE_TTL", time.Hour),
			JWKSMinRefresh: getEnvAsDuration("SUPABASE_JWKS_MIN_REFRESH", 30*time.Second),
		},
		RateLimit: RateLimitConfig{
			Capacity:       getEnvAsInt("RATE_LIMIT_CAPACITY", 20),
			RefillInterval: getEnvAsDuration("RATE_LIMIT_REFILL_INTERVAL", 60*time.Second),
			Backend:        strings.ToLower(getEnv("RATE_LIMIT_BACKEND", RateLimitBackendMemory)),
			KeyPrefix:      getEnv("RATE_LIMIT_KEY_PREFIX", "ratelimit:changeRole:"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Push: PushConfig{
			VAPIDPublicKey:  getEnv("VAPID_PUBLIC_KEY", ""),
			VAPIDPrivateKey: getEnv("VAPID_PRIVATE_KEY", ""),
			ContactEmail:    getEnv("VAPID_CONTACT_EMAIL", "mailto:admin@example.com"),
			TTL:             getEnvAsInt("PUSH_TTL", 60),
			MaxConcurrency:  getEnvAsInt("PUSH_MAX_CONCURRENCY", 8),
			RateLimit:       getEnvAsInt("PUSH_RATE_LIMIT", 30),
		},
		YouTube: YouTubeConfig{
			APIKey:        getEnv("YOUTUBE_API_KEY", ""),
			BaseURL:       strings.TrimRight(getEnv("YOUTUBE_BASE_URL", "https://www.googleapis.com/youtube/v3"), "/"),
			DefaultHandle: getEnv("YOUTUBE_DEFAULT_HANDLE", "@FCMLiverpool"),
			DefaultMax:    getEnvAsInt("YOUTUBE_DEFAULT_MAX", 6),
			CacheTTL:      getEnvAsDuration("YOUTUBE_CACHE_TTL", 10*time.Minute),
			CacheSize:     getEnvAsInt("YOUTUBE_CACHE_SIZE", 64),
			Timeout:       getEnvAsDuration("YOUTUBE_TIMEOUT", 10*time.Second),
		},
		RoleChange: RoleChangeConfig{
			AtomicAudit: getEnvAsBool("ROLE_CHANGE_ATOMIC_AUDIT", false),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Observability: ObservabilityConfig{
			LogLevel:          getEnv("LOG_LEVEL", "info"),
			LogFormat:         getEnv("LOG_FORMAT", "json"),
			SentryDSN:         getEnv("SENTRY_DSN", ""),
			SentryEnvironment: getEnv("SENTRY_ENVIRONMENT", environment),
			SentrySampleRate:  getEnvAsFloat("SENTRY_SAMPLE_RATE", 1.0),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	// A development server may run without a database; the admin routes then
	// answer 500 and log "backend not configured".
	if c.IsProduction() {
		if !c.Database.IsConfigured() {
			return fmt.Errorf("database configuration required in production: set DATABASE_URL or DB_HOST")
		}
		if !c.Auth.IsConfigured() {
			return fmt.Errorf("supabase auth configuration required in production")
		}
	}
	if c.Database.ConnectionString == "" && c.Database.Host != "" {
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	}

	switch c.RateLimit.Backend {
	case RateLimitBackendMemory:
	case RateLimitBackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("REDIS_ADDR is required when RATE_LIMIT_BACKEND=redis")
		}
	default:
		return fmt.Errorf("unknown rate limit backend %q", c.RateLimit.Backend)
	}
	if c.RateLimit.Capacity <= 0 {
		return fmt.Errorf("rate limit capacity must be positive")
	}
	if c.RateLimit.RefillInterval <= 0 {
		return fmt.Errorf("rate limit refill interval must be positive")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// IsConfigured reports whether a database connection was configured
func (c *DatabaseConfig) IsConfigured() bool {
	return c.ConnectionString != "" || c.Host != ""
}

// IsConfigured reports whether tokens can be verified locally or remotely
func (c *AuthConfig) IsConfigured() bool {
	if c.SupabaseURL == "" {
		return false
	}
	if c.VerifyRemote {
		return c.ServiceRoleKey != ""
	}
	return true
}

// IsConfigured reports whether VAPID keys are present
func (c *PushConfig) IsConfigured() bool {
	return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != ""
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			return fmt.Sprintf("host=%s port=%s database=%s", u.Hostname(), port, strings.TrimPrefix(u.Path, "/"))
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars
func loadDatabaseConfig() DatabaseConfig {
	cfg := DatabaseConfig{
		ConnectionString: getEnv("DATABASE_URL", ""),
		MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		InitSchema:       getEnvAsBool("DB_INIT_SCHEMA", false),
	}
	if cfg.ConnectionString != "" {
		return cfg
	}
	cfg.Host = getEnv("DB_HOST", "")
	cfg.Port = getEnvAsInt("DB_PORT", 5432)
	cfg.User = getEnv("DB_USER", "postgres")
	cfg.Password = getEnv("DB_PASSWORD", "")
	cfg.Database = getEnv("DB_NAME", "postgres")
	cfg.SSLMode = getEnv("DB_SSLMODE", "require")
	return cfg
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8080)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 8080
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsSlice splits a comma-separated value, dropping blank entries
func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
