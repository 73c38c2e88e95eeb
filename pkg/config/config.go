package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server struct {
		Port    string
		Env     string
		Timeout time.Duration
		BaseURL string
	}

	// Database configuration
	Database struct {
		Driver   string // postgres or sqlite
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		SSLMode  string
		Path     string // sqlite file, ":memory:" allowed
		MaxConns int
		Timeout  time.Duration
		Retries  int
	}

	// Redis configuration
	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	// JWT configuration
	JWT struct {
		Secret string
		Expiry time.Duration
	}

	// Security configuration
	Security struct {
		RateLimit      float64
		RateLimitBurst int
		MaxBodySize    int64
		AdminEmails    []string
	}

	// Logging configuration
	Logging struct {
		Level  string
		Format string
	}

	// Generation backend settings
	Generation struct {
		Provider     string // gemini, openai or http
		Model        string
		Timeout      time.Duration
		MaxTokens    int
		Temperature  float64
		AIServiceURL string
	}

	// Avatar fallback chain settings
	Avatar struct {
		// Providers lists the remote providers in probe order: "robohash",
		// "dicebear" or "name=https://host/path?seed={seed}". The local
		// placeholder always ends the chain.
		Providers    []string
		ProbeTimeout time.Duration
		CacheTTL     time.Duration
		CacheSize    int
	}

	// Quota ledger settings
	Quota struct {
		Backend        string // db or redis
		DefaultCredits int
		ReducedCredits int
	}

	// Degradation tier settings
	Tiers struct {
		ReducedEnabled bool
	}

	// Circuit breakers guarding the database, redis and the generation backend
	Breaker struct {
		Failures  uint
		Successes uint
		Cooldown  time.Duration
	}

	// Feature limits
	Features struct {
		MaxBotsPerUser int
		EnableFeed     bool
	}

	// Health check settings
	Health struct {
		Interval time.Duration
	}

	// Observability settings
	Observability struct {
		Tracing     bool
		ServiceName string
	}

	// Vault secrets settings
	Vault struct {
		Enabled   bool
		Address   string
		Token     string
		Namespace string
		Mount     string
		Path      string
		CacheTTL  time.Duration
	}

	// OpenAPI request validation
	OpenAPI struct {
		SchemaPath string
	}
}

var (
	instance *Config
	once     sync.Once
)

// New creates the process-wide Config from environment variables.
// Uses singleton pattern to ensure only one instance exists
func New() *Config {
	once.Do(func() {
		_ = godotenv.Load()
		instance = Load()
	})

	return instance
}

// Load reads a fresh Config from the current environment
func Load() *Config {
	cfg := &Config{}

	cfg.Server.Port = getEnvString("PORT", "8081")
	cfg.Server.Env = getEnvString("APP_ENV", "development")
	cfg.Server.Timeout = getEnvDuration("SERVER_TIMEOUT", 30*time.Second)
	cfg.Server.BaseURL = strings.TrimRight(getEnvString("PUBLIC_BASE_URL", "http://localhost:"+cfg.Server.Port), "/")

	cfg.Database.Driver = getEnvString("DB_DRIVER", "postgres")
	cfg.Database.Host = getEnvString("DB_HOST", "localhost")
	cfg.Database.Port = getEnvString("DB_PORT", "5432")
	cfg.Database.User = getEnvString("DB_USER", "postgres")
	cfg.Database.Password = getEnvString("DB_PASSWORD", "postgres")
	cfg.Database.Name = getEnvString("DB_NAME", "bot_network")
	cfg.Database.SSLMode = getEnvString("DB_SSL_MODE", "disable")
	cfg.Database.Path = getEnvString("DB_PATH", "bot_network.db")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 20)
	cfg.Database.Timeout = getEnvDuration("DB_TIMEOUT", 5*time.Second)
	cfg.Database.Retries = getEnvInt("DB_CONNECT_RETRIES", 5)

	cfg.Redis.Addr = getEnvString("REDIS_URL", "localhost:6379")
	cfg.Redis.Password = getEnvString("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.JWT.Secret = getEnvString("JWT_SECRET", "default-jwt-secret-do-not-use-in-production")
	cfg.JWT.Expiry = getEnvDuration("JWT_EXPIRY", 24*time.Hour)

	cfg.Security.RateLimit = getEnvFloat("RATE_LIMIT", 5)
	cfg.Security.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", 10)
	cfg.Security.MaxBodySize = getEnvInt64("MAX_BODY_SIZE", 1<<20)
	for _, email := range getEnvList("ADMIN_EMAILS") {
		cfg.Security.AdminEmails = append(cfg.Security.AdminEmails, strings.ToLower(email))
	}

	cfg.Logging.Level = getEnvString("LOG_LEVEL", "info")
	cfg.Logging.Format = getEnvString("LOG_FORMAT", "json")

	cfg.Generation.Provider = strings.ToLower(getEnvString("GENERATION_PROVIDER", "gemini"))
	cfg.Generation.Model = getEnvString("GENERATION_MODEL", defaultModel(cfg.Generation.Provider))
	cfg.Generation.Timeout = getEnvDuration("BACKEND_TIMEOUT", 20*time.Second)
	cfg.Generation.MaxTokens = getEnvInt("GENERATION_MAX_TOKENS", 400)
	cfg.Generation.Temperature = getEnvFloat("GENERATION_TEMPERATURE", 0.9)
	cfg.Generation.AIServiceURL = getEnvString("AI_SERVICE_URL", "http://localhost:5000")

	cfg.Avatar.Providers = getEnvList("AVATAR_PROVIDERS")
	if len(cfg.Avatar.Providers) == 0 {
		cfg.Avatar.Providers = []string{"robohash", "dicebear"}
	}
	cfg.Avatar.ProbeTimeout = getEnvDuration("AVATAR_PROBE_TIMEOUT", 2*time.Second)
	cfg.Avatar.CacheTTL = getEnvDuration("AVATAR_CACHE_TTL", time.Hour)
	cfg.Avatar.CacheSize = getEnvInt("AVATAR_CACHE_SIZE", 1000)

	cfg.Quota.Backend = strings.ToLower(getEnvString("QUOTA_BACKEND", "db"))
	cfg.Quota.DefaultCredits = getEnvInt("QUOTA_DEFAULT_CREDITS", 10)
	cfg.Quota.ReducedCredits = getEnvInt("QUOTA_REDUCED_CREDITS", 3)

	cfg.Tiers.ReducedEnabled = getEnvBool("TIER_REDUCED_ENABLED", true)
	cfg.Breaker.Failures = uint(getEnvInt("BREAKER_FAILURES", 5))
	cfg.Breaker.Successes = uint(getEnvInt("BREAKER_SUCCESSES", 2))
	cfg.Breaker.Cooldown = getEnvDuration("BREAKER_COOLDOWN", 30*time.Second)

	cfg.Features.MaxBotsPerUser = getEnvInt("MAX_BOTS_PER_USER", 20)
	cfg.Features.EnableFeed = getEnvBool("ENABLE_FEED", true)

	cfg.Health.Interval = getEnvDuration("HEALTH_CHECK_INTERVAL", 30*time.Second)
	if cfg.Health.Interval <= 0 {
		cfg.Health.Interval = 30 * time.Second
	}

	cfg.Observability.Tracing = getEnvBool("TRACING_ENABLED", false)
	cfg.Observability.ServiceName = getEnvString("SERVICE_NAME", "bot-network")

	cfg.Vault.Enabled = getEnvBool("VAULT_ENABLED", false)
	cfg.Vault.Address = getEnvString("VAULT_ADDR", "")
	cfg.Vault.Token = getEnvString("VAULT_TOKEN", "")
	cfg.Vault.Namespace = getEnvString("VAULT_NAMESPACE", "")
	cfg.Vault.Mount = getEnvString("VAULT_KV_MOUNT", "secret")
	cfg.Vault.Path = getEnvString("VAULT_SECRETS_PATH", "bot-network")
	cfg.Vault.CacheTTL = getEnvDuration("VAULT_CACHE_TTL", 5*time.Minute)

	cfg.OpenAPI.SchemaPath = getEnvString("OPENAPI_SCHEMA_PATH", "")

	return cfg
}

func defaultModel(provider string) string {
	switch provider {
	case "openai":
		return "gpt-4o-mini"
	case "http":
		return "ai-layer"
	default:
		return "gemini-2.0-flash"
	}
}

// Helper functions to read environment variables with default values

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
