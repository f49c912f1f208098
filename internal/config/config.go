package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/text/language"
)

// Config holds all application configuration
// Values come from environment variables with sensible defaults; a .env
// file in the working directory is loaded first when present.
//
// Environment Variables:
// Translation Backend:
// - LLM_API_KEY: API key for the translation backend (required)
// - LLM_API_URL: API endpoint URL (default: Gemini public endpoint)
// - LLM_PRIMARY_MODEL: primary model name (default: gemini-2.0-flash-lite)
// - LLM_FALLBACK_MODEL: fallback model name (default: gemini-2.0-flash)
// - LLM_TIMEOUT: request timeout in seconds (default: 60)
// - TRANSLATE_BATCH_SIZE: max fragments per backend request (default: 50)
//
// CMS:
// - CMS_BASE_URL: base URL of the headless CMS (required)
// - CMS_API_TOKEN: bearer token (optional)
// - CMS_TIMEOUT: request timeout in seconds (default: 30)
//
// Pipeline:
// - CONTENT_TYPES: comma-separated content types to translate (default: reports)
// - TARGET_LANGUAGES: comma-separated BCP 47 tags (required)
// - SCHEMA_FILE: YAML file overriding the built-in content-type schema (optional)
// - JOB_CONCURRENCY: concurrently in-flight jobs per sweep (default: 3)
// - JOB_PAGE_SIZE: ready jobs fetched per sweep (default: 20)
// - SWEEP_CRON: cron spec for periodic sweeps (default: @every 1h)
//
// Storage:
// - DB_PATH: SQLite job table path (default: data/jobs.db)
// - CACHE_FILE: translation memory file (default: translation-cache/translationCache.json)
// - OUTPUT_DIR: translated artifact directory (default: output)
//
// Process:
// - HTTP_ADDR: status API listen address (default: :8080)
// - LOG_LEVEL: debug|info|warn|error (default: info)
type Config struct {
	LLM      LLMConfig
	CMS      CMSConfig
	Pipeline PipelineConfig
	Storage  StorageConfig
	HTTPAddr string
	LogLevel string
}

// LLMConfig holds the translation backend configuration.
type LLMConfig struct {
	APIKey        string
	APIURL        string
	PrimaryModel  string
	FallbackModel string
	Timeout       time.Duration
	BatchSize     int
}

// CMSConfig holds the source/destination CMS configuration.
type CMSConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// PipelineConfig holds job scheduling and language configuration.
type PipelineConfig struct {
	ContentTypes []string
	Languages    []string
	SchemaFile   string
	Concurrency  int
	PageSize     int
	SweepCron    string
}

// StorageConfig holds the on-disk locations the process owns.
type StorageConfig struct {
	DBPath    string
	CacheFile string
	OutputDir string
}

// Option is a function type for configuring Config
type Option func(*Config)

// NewFromEnv creates a new Config instance from environment variables and options.
func NewFromEnv(opts ...Option) (*Config, error) {
	// Missing .env is fine; real deployments use process environment.
	_ = godotenv.Load()

	config := &Config{
		LLM: LLMConfig{
			APIKey:        getEnvString("LLM_API_KEY", ""),
			APIURL:        getEnvString("LLM_API_URL", ""),
			PrimaryModel:  getEnvString("LLM_PRIMARY_MODEL", "gemini-2.0-flash-lite"),
			FallbackModel: getEnvString("LLM_FALLBACK_MODEL", "gemini-2.0-flash"),
			Timeout:       time.Duration(getEnvInt("LLM_TIMEOUT", 60)) * time.Second,
			BatchSize:     getEnvInt("TRANSLATE_BATCH_SIZE", 50),
		},
		CMS: CMSConfig{
			BaseURL: getEnvString("CMS_BASE_URL", ""),
			Token:   getEnvString("CMS_API_TOKEN", ""),
			Timeout: time.Duration(getEnvInt("CMS_TIMEOUT", 30)) * time.Second,
		},
		Pipeline: PipelineConfig{
			ContentTypes: getEnvList("CONTENT_TYPES", []string{"reports"}),
			Languages:    getEnvList("TARGET_LANGUAGES", nil),
			SchemaFile:   getEnvString("SCHEMA_FILE", ""),
			Concurrency:  getEnvInt("JOB_CONCURRENCY", 3),
			PageSize:     getEnvInt("JOB_PAGE_SIZE", 20),
			SweepCron:    getEnvString("SWEEP_CRON", "@every 1h"),
		},
		Storage: StorageConfig{
			DBPath:    getEnvString("DB_PATH", "data/jobs.db"),
			CacheFile: getEnvString("CACHE_FILE", "translation-cache/translationCache.json"),
			OutputDir: getEnvString("OUTPUT_DIR", "output"),
		},
		HTTPAddr: getEnvString("HTTP_ADDR", ":8080"),
		LogLevel: getEnvString("LOG_LEVEL", "info"),
	}

	// Apply custom options
	for _, opt := range opts {
		opt(config)
	}

	// Validate required configuration
	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM_API_KEY is required")
	}
	if c.CMS.BaseURL == "" {
		return fmt.Errorf("CMS_BASE_URL is required")
	}
	if len(c.Pipeline.Languages) == 0 {
		return fmt.Errorf("TARGET_LANGUAGES is required")
	}
	for _, lang := range c.Pipeline.Languages {
		if _, err := language.Parse(lang); err != nil {
			return fmt.Errorf("invalid target language %q: %w", lang, err)
		}
	}
	if len(c.Pipeline.ContentTypes) == 0 {
		return fmt.Errorf("CONTENT_TYPES must name at least one content type")
	}
	return nil
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvList gets a comma-separated list from environment variables with default
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	ret := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			ret = append(ret, trimmed)
		}
	}
	if len(ret) == 0 {
		return defaultValue
	}
	return ret
}
