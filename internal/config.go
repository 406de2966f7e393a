package internal

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env         string
	Port        int
	LogLevel    string
	DatabaseUrl string

	// Application base URL (for media links)
	BaseURL string

	// Telegram Mini App authentication
	TelegramBotToken      string
	TelegramInitDataAge   time.Duration // reject init data older than this
	SessionDuration       time.Duration
	SecureCookies         bool // SameSite=None requires Secure; forced on outside development

	// Redis tier-settings cache. When REDIS_ADDR is empty the in-process
	// cache is used instead, which is fine for a single replica.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	TierCacheTTL  time.Duration

	// Storage Configuration
	StorageProvider string // "local" or "r2"

	// Local Storage (development)
	LocalStoragePath string // Base directory for local file storage
	LocalStorageURL  string // Base URL for accessing local files

	// R2 Storage (production)
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicURL       string // Optional custom domain URL

	// Worker Configuration
	WorkerEnabled        bool
	WorkerConcurrency    int
	WorkerPollInterval   time.Duration
	WorkerJobTimeout     time.Duration
	WorkerScheduleEnable bool

	// Promo code system for trial activation
	PromoCodesEnabled bool     // Require a promo code to start a trial
	ValidPromoCodes   []string // List of valid codes to accept

	// Admin bootstrap account, provisioned on startup when no admin exists
	AdminEmail    string
	AdminPassword string

	// Metrics endpoint authentication
	// If both are empty, the /metrics endpoint will be unprotected (not recommended)
	MetricsUsername string
	MetricsPassword string
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		// Base URL defaults to localhost for development
		BaseURL: getEnv("BASE_URL", "http://localhost:8080"),

		// Telegram auth
		TelegramBotToken:    getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramInitDataAge: getEnvDuration("TELEGRAM_INIT_DATA_MAX_AGE", 24*time.Hour),
		SessionDuration:     getEnvDuration("SESSION_DURATION", 30*24*time.Hour),

		// Redis cache (optional)
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		TierCacheTTL:  getEnvDuration("TIER_CACHE_TTL", 5*time.Minute),

		// Storage defaults to local filesystem for development
		StorageProvider:  getEnv("STORAGE_PROVIDER", "local"),
		LocalStoragePath: getEnv("LOCAL_STORAGE_PATH", "./storage"),
		LocalStorageURL:  getEnv("LOCAL_STORAGE_URL", "http://localhost:8080/files"),

		// R2 configuration (production only)
		R2AccountID:       getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
		R2SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2BucketName:      getEnv("R2_BUCKET_NAME", ""),
		R2PublicURL:       getEnv("R2_PUBLIC_URL", ""),

		// Worker defaults
		WorkerEnabled:        getEnvBool("WORKER_ENABLED", true),
		WorkerConcurrency:    getEnvInt("WORKER_CONCURRENCY", 2),
		WorkerPollInterval:   getEnvDuration("WORKER_POLL_INTERVAL", 5*time.Second),
		WorkerJobTimeout:     getEnvDuration("WORKER_JOB_TIMEOUT", 5*time.Minute),
		WorkerScheduleEnable: getEnvBool("WORKER_SCHEDULER_ENABLED", true),

		// Promo code defaults (trials are open unless codes are required)
		PromoCodesEnabled: getEnvBool("PROMO_CODES_ENABLED", false),

		// Admin bootstrap
		AdminEmail:    getEnv("ADMIN_EMAIL", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),

		// Metrics authentication
		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),
	}

	cfg.SecureCookies = cfg.Env != "development"

	// Parse promo codes from comma-separated environment variable
	promoCodesStr := getEnv("VALID_PROMO_CODES", "")
	if promoCodesStr != "" {
		codes := strings.Split(promoCodesStr, ",")
		for _, code := range codes {
			trimmed := strings.TrimSpace(strings.ToUpper(code))
			if trimmed != "" {
				cfg.ValidPromoCodes = append(cfg.ValidPromoCodes, trimmed)
			}
		}
	}

	// Required
	cfg.DatabaseUrl = os.Getenv("DATABASE_URL")
	if cfg.DatabaseUrl == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.TelegramBotToken == "" && cfg.Env != "development" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required outside development")
	}

	if cfg.PromoCodesEnabled && len(cfg.ValidPromoCodes) == 0 {
		return nil, fmt.Errorf("VALID_PROMO_CODES is required when PROMO_CODES_ENABLED is true")
	}

	// Validate storage configuration
	if cfg.StorageProvider == "r2" {
		if cfg.R2AccountID == "" {
			return nil, fmt.Errorf("R2_ACCOUNT_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if cfg.R2AccessKeyID == "" {
			return nil, fmt.Errorf("R2_ACCESS_KEY_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if cfg.R2SecretAccessKey == "" {
			return nil, fmt.Errorf("R2_SECRET_ACCESS_KEY is required when STORAGE_PROVIDER is 'r2'")
		}
		if cfg.R2BucketName == "" {
			return nil, fmt.Errorf("R2_BUCKET_NAME is required when STORAGE_PROVIDER is 'r2'")
		}
	} else if cfg.StorageProvider != "local" {
		return nil, fmt.Errorf("STORAGE_PROVIDER must be either 'local' or 'r2', got: %s", cfg.StorageProvider)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
