package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bobarin/director/internal/models"
	"github.com/bobarin/director/internal/retry"
	"github.com/bobarin/director/internal/services"
	"github.com/joho/godotenv"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

type Config struct {
	// Server
	APIPort            string
	WorkerEnabled      bool
	BackendAPIKey      string // API key for authenticating requests (empty = no auth, dev mode)
	CorsAllowedOrigins string // Comma-separated allowed origins (empty = *, dev mode)

	// Database (empty = in-memory store)
	DatabaseURL string

	// Redis (empty = jobs run in-process)
	RedisURL string

	// Supabase (empty = no archive uploads)
	SupabaseURL           string
	SupabaseServiceKey    string
	SupabaseStorageBucket string

	// Models
	ModelProvider string // gemini | openai, used for scripts and SEO
	GeminiKey     string
	ImageKey      string // Image generation key (default: GeminiKey)
	OpenAIKey     string
	ScriptModel   string
	SeoModel      string
	ImageModel    string
	AspectRatio   string

	// Production defaults
	DefaultLanguage    models.Language
	DefaultTotalScenes int

	// Retry policy for model calls
	RetryMaxAttempts  int
	RetryInitialDelay time.Duration
	RetryMaxDelay     time.Duration // 0 = uncapped
	RetryJitter       float64       // 0 = none

	// Worker
	MaxConcurrentJobs int
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		APIPort:               getEnv("API_PORT", "8080"),
		WorkerEnabled:         getEnvBool("WORKER_ENABLED", true),
		BackendAPIKey:         getEnv("BACKEND_API_KEY", ""),
		CorsAllowedOrigins:    getEnv("CORS_ALLOWED_ORIGINS", ""),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		RedisURL:              getEnv("REDIS_URL", ""),
		SupabaseURL:           getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey:    getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseStorageBucket: getEnv("SUPABASE_STORAGE_BUCKET", "director-productions"),
		ModelProvider:         strings.ToLower(getEnv("MODEL_PROVIDER", ProviderGemini)),
		GeminiKey:             getEnv("GEMINI_API_KEY", ""),
		OpenAIKey:             getEnv("OPENAI_API_KEY", ""),
		ImageModel:            getEnv("IMAGE_MODEL", services.DefaultImageModel),
		AspectRatio:           getEnv("DEFAULT_ASPECT_RATIO", services.DefaultAspectRatio),
		DefaultTotalScenes:    models.ClampTotalScenes(getEnvInt("DEFAULT_TOTAL_SCENES", models.DefaultTotalScenes)),
		RetryMaxAttempts:      getEnvInt("RETRY_MAX_ATTEMPTS", retry.DefaultMaxAttempts),
		RetryInitialDelay:     time.Duration(getEnvInt("RETRY_INITIAL_DELAY_MS", int(retry.DefaultInitialDelay/time.Millisecond))) * time.Millisecond,
		RetryMaxDelay:         time.Duration(getEnvInt("RETRY_MAX_DELAY_MS", 0)) * time.Millisecond,
		RetryJitter:           getEnvFloat("RETRY_JITTER", 0),
		MaxConcurrentJobs:     getEnvInt("MAX_CONCURRENT_JOBS", 5),
	}
	cfg.ImageKey = getEnv("IMAGE_API_KEY", cfg.GeminiKey)

	switch cfg.ModelProvider {
	case ProviderGemini:
		cfg.ScriptModel = getEnv("SCRIPT_MODEL", services.DefaultScriptModel)
		cfg.SeoModel = getEnv("SEO_MODEL", services.DefaultSeoModel)
	case ProviderOpenAI:
		cfg.ScriptModel = getEnv("SCRIPT_MODEL", services.DefaultOpenAIScriptModel)
		cfg.SeoModel = getEnv("SEO_MODEL", services.DefaultOpenAISeoModel)
	default:
		return nil, fmt.Errorf("MODEL_PROVIDER must be %q or %q, got %q", ProviderGemini, ProviderOpenAI, cfg.ModelProvider)
	}

	lang, ok := models.ParseLanguage(getEnv("DEFAULT_LANGUAGE", string(models.LanguageVietnamese)))
	if !ok {
		return nil, fmt.Errorf("DEFAULT_LANGUAGE must be %q or %q", models.LanguageEnglish, models.LanguageVietnamese)
	}
	cfg.DefaultLanguage = lang

	// Validate required fields
	if cfg.GeminiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}

	if cfg.ModelProvider == ProviderOpenAI && cfg.OpenAIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required when MODEL_PROVIDER=openai")
	}

	if (cfg.SupabaseURL == "") != (cfg.SupabaseServiceKey == "") {
		return nil, fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY must be set together")
	}

	if cfg.RetryMaxAttempts < 1 {
		return nil, fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1")
	}

	if cfg.RetryJitter < 0 {
		return nil, fmt.Errorf("RETRY_JITTER must not be negative")
	}

	return cfg, nil
}

// RetryPolicy builds the model-call retry policy from the retry settings.
func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts:  c.RetryMaxAttempts,
		InitialDelay: c.RetryInitialDelay,
		MaxDelay:     c.RetryMaxDelay,
		Jitter:       c.RetryJitter,
	}
}

// StorageEnabled reports whether archive uploads are configured.
func (c *Config) StorageEnabled() bool {
	return c.SupabaseURL != "" && c.SupabaseServiceKey != ""
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

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		f, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return f
		}
	}
	return defaultValue
}
