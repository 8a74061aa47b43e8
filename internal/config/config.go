// Package config loads process settings from the environment (and an
// optional .env file) once at startup.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Notion settings
	NotionToken   string
	ArticlesDBID  string
	NotionVersion string
	NotionBaseURL string

	// Naver settings (collector disabled unless both are set)
	NaverClientID     string
	NaverClientSecret string
	NaverQPS          float64

	// Sync policy
	UpdateExisting bool

	// Ledger settings
	StatePath   string
	DatabaseURL string // PostgreSQL ledger when set

	// Collector settings
	SourcesConfigPath string
	MaxEntriesPerFeed int
	DebugDump         bool
	DebugDumpPath     string

	// App settings
	Debug          bool
	LogFormat      string // "text" or "json"
	RequestTimeout time.Duration
	RetryAttempts  int
	RetryDelay     time.Duration

	// Monitoring
	EnableHTTPMonitoring bool
	MonitoringPort       string
}

var (
	ErrMissingNotionToken = errors.New("NOTION_TOKEN is required")
	ErrMissingArticlesDB  = errors.New("ARTICLES_DB_ID is required")
)

// Load reads .env (when present) and then the environment. Variables
// already set in the environment win over .env.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		NotionVersion:     "2025-09-03",
		NotionBaseURL:     "https://api.notion.com",
		NaverQPS:          5,
		StatePath:         "state.sqlite",
		SourcesConfigPath: "configs/sources.yaml",
		MaxEntriesPerFeed: 50,
		DebugDumpPath:     "debug_published_at.jsonl",
		LogFormat:         "text",
		RequestTimeout:    30 * time.Second,
		RetryAttempts:     3,
		RetryDelay:        2 * time.Second,
		MonitoringPort:    "8080",
	}

	cfg.NotionToken = strings.TrimSpace(os.Getenv("NOTION_TOKEN"))
	cfg.ArticlesDBID = strings.TrimSpace(os.Getenv("ARTICLES_DB_ID"))
	cfg.NotionVersion = getEnvOrDefault("NOTION_VERSION", cfg.NotionVersion)
	cfg.NotionBaseURL = getEnvOrDefault("NOTION_BASE_URL", cfg.NotionBaseURL)

	cfg.NaverClientID = os.Getenv("NAVER_CLIENT_ID")
	cfg.NaverClientSecret = os.Getenv("NAVER_CLIENT_SECRET")
	if v := os.Getenv("NAVER_QPS"); v != "" {
		if val, err := strconv.ParseFloat(v, 64); err == nil && val > 0 {
			cfg.NaverQPS = val
		}
	}

	cfg.UpdateExisting = getEnvBool("UPDATE_EXISTING")

	cfg.StatePath = getEnvOrDefault("STATE_PATH", cfg.StatePath)
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")

	cfg.SourcesConfigPath = getEnvOrDefault("SOURCES_CONFIG_PATH", cfg.SourcesConfigPath)
	if val := getEnvIntOrDefault("MAX_ENTRIES_PER_FEED", 0); val > 0 {
		cfg.MaxEntriesPerFeed = val
	}
	cfg.DebugDump = getEnvBool("DEBUG_DUMP")
	cfg.DebugDumpPath = getEnvOrDefault("DEBUG_DUMP_PATH", cfg.DebugDumpPath)

	cfg.Debug = getEnvBool("DEBUG")
	cfg.LogFormat = strings.ToLower(getEnvOrDefault("LOG_FORMAT", cfg.LogFormat))
	if d := getEnvDuration("REQUEST_TIMEOUT"); d > 0 {
		cfg.RequestTimeout = d
	}
	if val := getEnvIntOrDefault("RETRY_ATTEMPTS", 0); val > 0 {
		cfg.RetryAttempts = val
	}
	if d := getEnvDuration("RETRY_DELAY"); d > 0 {
		cfg.RetryDelay = d
	}

	cfg.EnableHTTPMonitoring = getEnvBool("ENABLE_HTTP_MONITORING")
	cfg.MonitoringPort = getEnvOrDefault("MONITORING_PORT", cfg.MonitoringPort)

	return cfg, cfg.Validate()
}

// NaverEnabled reports whether both Naver credentials are present.
func (c *Config) NaverEnabled() bool {
	return c.NaverClientID != "" && c.NaverClientSecret != ""
}

func (c *Config) Validate() error {
	if c.NotionToken == "" {
		return ErrMissingNotionToken
	}
	if c.ArticlesDBID == "" {
		return ErrMissingArticlesDB
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("LOG_FORMAT must be 'text' or 'json', got %q", c.LogFormat)
	}
	if c.DatabaseURL == "" && c.StatePath == "" {
		return fmt.Errorf("STATE_PATH must not be empty")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool is true for "1", "true" or "yes" in any case.
func getEnvBool(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// getEnvDuration accepts Go durations ("45s") or plain seconds ("45").
func getEnvDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return 0
}
