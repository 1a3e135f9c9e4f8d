package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	SplitterOpenAI = "openai"
	SplitterGemini = "gemini"
	SplitterLocal  = "local"
)

type Config struct {
	// Server
	APIPort            string
	Environment        string // "development" or "production"; selects the log encoder
	CorsAllowedOrigins string // Comma-separated allowed origins (empty = *, dev mode)
	HTTPTimeoutSeconds int    // Timeout for outbound calls to Pexels and the LLM providers

	// Storage
	StoreDriver string // "postgres" (default) or "memory" for local runs without a database
	DatabaseURL string

	// Redis (optional: enables async match/generate jobs)
	RedisURL          string
	WorkerEnabled     bool
	WorkerConcurrency int

	// Auth
	JWTSecret   string
	JWTTTLHours int

	// Script splitting
	SplitterProvider string // "openai", "gemini" or "local"
	OpenAIKey        string
	OpenAIModel      string
	GeminiKey        string
	GeminiModel      string

	// Media search
	PexelsKey string

	// Limits
	MaxScriptLength       int
	MaxBlockLength        int // Upper bound for paragraphs produced by the local splitter
	MaxCandidatesPerBlock int
	DefaultMaxKeywords    int
	MatchConcurrency      int // Blocks matched in parallel; 1 keeps matching sequential
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		APIPort:               getEnv("PORT", "8080"),
		Environment:           getEnv("ENVIRONMENT", "development"),
		CorsAllowedOrigins:    getEnv("CORS_ALLOWED_ORIGINS", ""),
		HTTPTimeoutSeconds:    getEnvInt("HTTP_TIMEOUT_SECONDS", 10),
		StoreDriver:           getEnv("STORE_DRIVER", StoreDriverPostgres),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		RedisURL:              getEnv("REDIS_URL", ""),
		WorkerEnabled:         getEnvBool("ENABLE_WORKER", true),
		WorkerConcurrency:     getEnvInt("WORKER_CONCURRENCY", 2),
		JWTSecret:             getEnv("JWT_SECRET", ""),
		JWTTTLHours:           getEnvInt("JWT_TTL_HOURS", 7*24),
		SplitterProvider:      getEnv("SPLITTER_PROVIDER", SplitterOpenAI),
		OpenAIKey:             getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:           getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		GeminiKey:             getEnv("GEMINI_API_KEY", ""),
		GeminiModel:           getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		PexelsKey:             getEnv("PEXELS_API_KEY", ""),
		MaxScriptLength:       getEnvInt("MAX_SCRIPT_LENGTH", 50000),
		MaxBlockLength:        getEnvInt("MAX_BLOCK_LENGTH", 500),
		MaxCandidatesPerBlock: getEnvInt("MAX_CANDIDATES_PER_BLOCK", 10),
		DefaultMaxKeywords:    getEnvInt("DEFAULT_MAX_KEYWORDS", 5),
		MatchConcurrency:      getEnvInt("MATCH_CONCURRENCY", 1),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	switch c.SplitterProvider {
	case SplitterOpenAI:
		if c.OpenAIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when SPLITTER_PROVIDER=openai")
		}
	case SplitterGemini:
		if c.GeminiKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required when SPLITTER_PROVIDER=gemini")
		}
	case SplitterLocal:
	default:
		return fmt.Errorf("unknown SPLITTER_PROVIDER %q", c.SplitterProvider)
	}

	if c.DefaultMaxKeywords < 1 || c.DefaultMaxKeywords > 10 {
		return fmt.Errorf("DEFAULT_MAX_KEYWORDS must be between 1 and 10")
	}
	if c.MaxCandidatesPerBlock < 1 {
		return fmt.Errorf("MAX_CANDIDATES_PER_BLOCK must be positive")
	}
	if c.MatchConcurrency < 1 {
		c.MatchConcurrency = 1
	}
	if c.WorkerConcurrency < 1 {
		c.WorkerConcurrency = 1
	}

	return nil
}

// AsyncEnabled reports whether a job queue is configured.
func (c *Config) AsyncEnabled() bool {
	return c.RedisURL != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}
