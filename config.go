package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"groupfolderMetadata/internal/services"
)

type Config struct {
	Port         string
	DatabasePath string
	Environment  string
	LogLevel     string

	SessionSecret []byte
	SessionMaxAge int
	HookSecret    string

	HostURL               string
	HostOAuthClientID     string
	HostOAuthClientSecret string
	RedirectURL           string
	HostAppUser           string
	HostAppPassword       string

	FieldDeletePolicy services.DeletePolicy

	CacheBackend  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	DeletedRetention        time.Duration
	SearchIndexInterval     time.Duration
	CleanupInterval         time.Duration
	LicenseInterval         time.Duration
	GroupfolderSyncInterval time.Duration
	LicenseSheetID          string
	GoogleCredentialsFile   string

	RateLimitPerMinute int
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	config := &Config{
		Port:                  getEnvWithDefault("PORT", "8080"),
		DatabasePath:          getEnvWithDefault("DATABASE_PATH", "./metadata.db"),
		Environment:           getEnvWithDefault("ENVIRONMENT", "development"),
		LogLevel:              getEnvWithDefault("LOG_LEVEL", "INFO"),
		SessionSecret:         []byte(os.Getenv("SESSION_SECRET")),
		HookSecret:            os.Getenv("HOOK_SECRET"),
		HostURL:               strings.TrimRight(os.Getenv("HOST_URL"), "/"),
		HostOAuthClientID:     os.Getenv("HOST_OAUTH_CLIENT_ID"),
		HostOAuthClientSecret: os.Getenv("HOST_OAUTH_CLIENT_SECRET"),
		RedirectURL:           getEnvWithDefault("REDIRECT_URL", "http://localhost:8080/auth/callback"),
		HostAppUser:           os.Getenv("HOST_APP_USER"),
		HostAppPassword:       os.Getenv("HOST_APP_PASSWORD"),
		CacheBackend:          strings.ToLower(getEnvWithDefault("CACHE_BACKEND", "memory")),
		RedisAddr:             getEnvWithDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		LicenseSheetID:        os.Getenv("LICENSE_SHEET_ID"),
		GoogleCredentialsFile: os.Getenv("GOOGLE_CREDENTIALS_FILE"),
	}

	policy, err := services.ParseDeletePolicy(getEnvWithDefault("FIELD_DELETE_POLICY", "cascade"))
	if err != nil {
		return nil, fmt.Errorf("invalid FIELD_DELETE_POLICY: %v", err)
	}
	config.FieldDeletePolicy = policy

	if config.CacheBackend != "memory" && config.CacheBackend != "redis" {
		return nil, fmt.Errorf("invalid CACHE_BACKEND %q: must be memory or redis", config.CacheBackend)
	}

	ints := []struct {
		key  string
		def  string
		dest *int
	}{
		{"SESSION_MAX_AGE", "86400", &config.SessionMaxAge},
		{"REDIS_DB", "0", &config.RedisDB},
		{"RATE_LIMIT_PER_MINUTE", "120", &config.RateLimitPerMinute},
	}
	for _, i := range ints {
		v, err := strconv.Atoi(getEnvWithDefault(i.key, i.def))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %v", i.key, err)
		}
		*i.dest = v
	}
	if config.RateLimitPerMinute <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}

	durations := []struct {
		key  string
		def  string
		dest *time.Duration
	}{
		{"CACHE_TTL", "5m", &config.CacheTTL},
		{"DELETED_RETENTION", "720h", &config.DeletedRetention},
		{"SEARCH_INDEX_INTERVAL", "15m", &config.SearchIndexInterval},
		{"CLEANUP_INTERVAL", "1h", &config.CleanupInterval},
		{"LICENSE_INTERVAL", "24h", &config.LicenseInterval},
		{"GROUPFOLDER_SYNC_INTERVAL", "10m", &config.GroupfolderSyncInterval},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(getEnvWithDefault(d.key, d.def))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %v", d.key, err)
		}
		if v <= 0 {
			return nil, fmt.Errorf("%s must be positive", d.key)
		}
		*d.dest = v
	}

	return config, nil
}

// RequireSecrets checks the secrets the HTTP server cannot run without
func (c *Config) RequireSecrets() error {
	if len(c.SessionSecret) == 0 {
		return fmt.Errorf("SESSION_SECRET environment variable is required")
	}
	if len(c.SessionSecret) < 32 {
		return fmt.Errorf("SESSION_SECRET must be at least 32 characters long")
	}
	if c.HookSecret == "" {
		return fmt.Errorf("HOOK_SECRET environment variable is required")
	}
	if len(c.HookSecret) < 32 {
		return fmt.Errorf("HOOK_SECRET must be at least 32 characters long")
	}
	return nil
}

// OAuthEnabled reports whether interactive login against the host is configured
func (c *Config) OAuthEnabled() bool {
	return c.HostURL != "" && c.HostOAuthClientID != "" && c.HostOAuthClientSecret != ""
}

// HostSyncEnabled reports whether groupfolders can be listed from the host
func (c *Config) HostSyncEnabled() bool {
	return c.HostURL != "" && c.HostAppUser != "" && c.HostAppPassword != ""
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
