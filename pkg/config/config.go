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

	// Database configuration (characters and gallery)
	Database struct {
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		SSLMode  string
		MaxConns int
		Timeout  time.Duration
	}

	// Session store configuration (dual-backend key-value store)
	Store struct {
		// BadgerPath is the on-disk location of the primary KV store.
		BadgerPath string
		// RedisAddr is the backup mirror; empty disables mirroring.
		RedisAddr     string
		RedisPassword string
		RedisDB       int
	}

	// Generation service endpoint
	Generation struct {
		BaseURL string
		APIKey  string
		Timeout time.Duration
	}

	// Orchestrator tuning
	Orchestrator struct {
		MaxTurns               int
		SpokenDecrement        float64
		SilentDecrement        float64
		MinTurnDelay           time.Duration
		MaxTurnDelay           time.Duration
		BackgroundInitialDelay time.Duration
		BackgroundInterval     time.Duration
		BackgroundMinMessages  int
		EvolutionQueueSize     int
	}

	// JWT configuration (guest browsing-context tokens)
	JWT struct {
		Secret string
		Expiry time.Duration
	}

	// Security configuration
	Security struct {
		RateLimit      float64
		RateLimitBurst int
		AllowedOrigins []string
		MaxBodySize    int64
	}

	// Cache configuration (in-process character cache)
	Cache struct {
		TTL         time.Duration
		PurgeWindow time.Duration
		MaxSize     int
	}

	// Logging configuration
	Logging struct {
		Level  string
		Format string
	}

	// Validation
	Validation struct {
		OpenAPISchemaPath string
	}
}

var (
	instance *Config
	once     sync.Once
)

// New creates a new Config instance with values from environment variables
// Uses singleton pattern to ensure only one instance exists
func New() *Config {
	once.Do(func() {
		// Load .env file if exists
		godotenv.Load()

		instance = &Config{}

		// Server config
		instance.Server.Port = getEnvString("PORT", "8081")
		instance.Server.Env = getEnvString("APP_ENV", "development")
		instance.Server.Timeout = getEnvDuration("SERVER_TIMEOUT", 30*time.Second)
		instance.Server.BaseURL = getEnvString("BASE_URL", "http://localhost:"+instance.Server.Port)

		// Database config
		instance.Database.Host = getEnvString("DB_HOST", "localhost")
		instance.Database.Port = getEnvString("DB_PORT", "5432")
		instance.Database.User = getEnvString("DB_USER", "postgres")
		instance.Database.Password = getEnvString("DB_PASSWORD", "postgres")
		instance.Database.Name = getEnvString("DB_NAME", "ensemble-chat")
		instance.Database.SSLMode = getEnvString("DB_SSL_MODE", "disable")
		instance.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 20)
		instance.Database.Timeout = getEnvDuration("DB_TIMEOUT", 5*time.Second)

		// Session store config
		instance.Store.BadgerPath = getEnvString("STORE_BADGER_PATH", "./data/sessions")
		instance.Store.RedisAddr = getEnvString("STORE_REDIS_ADDR", "localhost:6379")
		instance.Store.RedisPassword = getEnvString("STORE_REDIS_PASSWORD", "")
		instance.Store.RedisDB = getEnvInt("STORE_REDIS_DB", 0)

		// Generation service config
		instance.Generation.BaseURL = getEnvString("GENERATION_SERVICE_URL", "http://localhost:5000")
		instance.Generation.APIKey = getEnvString("GENERATION_API_KEY", "")
		instance.Generation.Timeout = getEnvDuration("GENERATION_TIMEOUT", 120*time.Second)

		// Orchestrator tuning
		instance.Orchestrator.MaxTurns = getEnvInt("ORCH_MAX_TURNS", 5)
		instance.Orchestrator.SpokenDecrement = getEnvFloat("ORCH_SPOKEN_DECREMENT", 0.25)
		instance.Orchestrator.SilentDecrement = getEnvFloat("ORCH_SILENT_DECREMENT", 0.1)
		instance.Orchestrator.MinTurnDelay = getEnvDuration("ORCH_MIN_TURN_DELAY", time.Second)
		instance.Orchestrator.MaxTurnDelay = getEnvDuration("ORCH_MAX_TURN_DELAY", 2*time.Second)
		instance.Orchestrator.BackgroundInitialDelay = getEnvDuration("ORCH_BG_INITIAL_DELAY", 5*time.Second)
		instance.Orchestrator.BackgroundInterval = getEnvDuration("ORCH_BG_INTERVAL", 60*time.Second)
		instance.Orchestrator.BackgroundMinMessages = getEnvInt("ORCH_BG_MIN_MESSAGES", 3)
		instance.Orchestrator.EvolutionQueueSize = getEnvInt("ORCH_EVOLUTION_QUEUE_SIZE", 4)

		// JWT config
		instance.JWT.Secret = getEnvString("JWT_SECRET", "")
		instance.JWT.Expiry = getEnvDuration("JWT_EXPIRY", 24*time.Hour)

		// Security config
		instance.Security.RateLimit = getEnvFloat("RATE_LIMIT", 5)
		instance.Security.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", 10)
		instance.Security.AllowedOrigins = getEnvStringSlice("ALLOWED_ORIGINS", []string{"*"})
		instance.Security.MaxBodySize = getEnvInt64("MAX_BODY_SIZE", 16<<20)

		// Cache config
		instance.Cache.TTL = getEnvDuration("CACHE_TTL", 5*time.Minute)
		instance.Cache.PurgeWindow = getEnvDuration("CACHE_PURGE_WINDOW", 10*time.Minute)
		instance.Cache.MaxSize = getEnvInt("CACHE_MAX_SIZE", 1024)

		// Logging config
		instance.Logging.Level = getEnvString("LOG_LEVEL", "info")
		instance.Logging.Format = getEnvString("LOG_FORMAT", "json")

		// Validation config
		instance.Validation.OpenAPISchemaPath = getEnvString("OPENAPI_SCHEMA_PATH", "./api/openapi.yaml")
	})

	return instance
}

// Get returns the singleton Config instance
func Get() *Config {
	if instance == nil {
		return New()
	}
	return instance
}

// Helper functions to read environment variables with default values

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
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
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
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

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
