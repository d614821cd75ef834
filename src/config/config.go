package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the portal.
// The values are loaded from environment variables.
type AppConfig struct {
	// Core settings
	Port         string
	DatabasePath string
	LogLevel     string

	// Backend REST API
	BackendBaseURL       string
	BackendTimeout       time.Duration
	BackendRatePerSecond float64
	BackendBurst         int

	// Portal session settings
	SessionSecret          string
	SessionExpiry          time.Duration
	SessionCleanupSchedule string
	SecureCookies          bool

	// Upload limits
	MaxUploadSizeBytes int64
	MaxAvatarSizeBytes int64

	// Report settings
	ReportCacheExpiration time.Duration
	PDFPageFormat         string
	PDFOrientation        string

	// Frontend origins allowed by CORS
	AllowedOrigins []string

	// Role name granting access to admin routes
	AdminRole string
}

// Cfg is a global instance of the AppConfig.
var Cfg *AppConfig

const minSessionSecretLength = 32

var ErrMissingSecret = errors.New("SESSION_SECRET is not set")

// LoadConfig loads configuration from a .env file and the environment
// into Cfg. It terminates the process when the configuration is unusable.
func LoadConfig() {
	errEnv := godotenv.Load()
	if errEnv != nil {
		errEnv = godotenv.Load("../.env")
	}

	if errEnv != nil {
		if os.IsNotExist(errEnv) {
			log.Println("Info: No .env file found in current or parent directory. Relying on OS environment variables.")
		} else {
			log.Printf("Warning: Error loading .env file: %v. Relying on OS environment variables.", errEnv)
		}
	} else {
		log.Println(".env file loaded successfully.")
	}

	cfg, err := Load()
	if err != nil {
		log.Fatalf("FATAL: invalid configuration: %v", err)
	}
	Cfg = cfg

	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, DBPath=%s, Backend=%s",
		Cfg.Port, Cfg.LogLevel, Cfg.DatabasePath, Cfg.BackendBaseURL)
	log.Printf("Allowed origins loaded: %d", len(Cfg.AllowedOrigins))
}

// Load builds an AppConfig from the current environment.
func Load() (*AppConfig, error) {
	secret, err := requireEnv("SESSION_SECRET")
	if err != nil {
		return nil, err
	}
	if len(secret) < minSessionSecretLength {
		return nil, fmt.Errorf("SESSION_SECRET must be at least %d characters", minSessionSecretLength)
	}

	cfg := &AppConfig{
		Port:         getEnv("PORT", "8080"),
		DatabasePath: getEnv("DATABASE_PATH", "./fxportal.db"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),

		BackendBaseURL:       strings.TrimRight(getEnv("BACKEND_BASE_URL", "http://localhost:5000"), "/"),
		BackendTimeout:       getEnvAsDuration("BACKEND_TIMEOUT", 20*time.Second),
		BackendRatePerSecond: getEnvAsFloat("BACKEND_RATE_PER_SECOND", 20),
		BackendBurst:         getEnvAsInt("BACKEND_BURST", 40),

		SessionSecret:          secret,
		SessionExpiry:          getEnvAsDuration("SESSION_EXPIRY", 168*time.Hour),
		SessionCleanupSchedule: getEnv("SESSION_CLEANUP_SCHEDULE", "@every 15m"),
		SecureCookies:          getEnvAsBool("SECURE_COOKIES", false),

		MaxUploadSizeBytes: getEnvAsInt64("MAX_UPLOAD_SIZE_BYTES", 10*1024*1024),
		MaxAvatarSizeBytes: getEnvAsInt64("MAX_AVATAR_SIZE_BYTES", 2*1024*1024),

		ReportCacheExpiration: getEnvAsDuration("REPORT_CACHE_EXPIRATION", 5*time.Minute),
		PDFPageFormat:         getEnv("PDF_PAGE_FORMAT", "A4"),
		PDFOrientation:        strings.ToUpper(getEnv("PDF_ORIENTATION", "P")),

		AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS", "http://localhost:3000"),
		AdminRole:      getEnv("ADMIN_ROLE", "Admin"),
	}

	if cfg.PDFOrientation != "P" && cfg.PDFOrientation != "L" {
		return nil, fmt.Errorf("PDF_ORIENTATION must be P or L, got %q", cfg.PDFOrientation)
	}
	return cfg, nil
}

// getEnv retrieves an environment variable or returns a fallback value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func requireEnv(key string) (string, error) {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		if key == "SESSION_SECRET" {
			return "", ErrMissingSecret
		}
		return "", fmt.Errorf("required environment variable %s is not set", key)
	}
	return value, nil
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

func getEnvAsInt64(key string, fallback int64) int64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	log.Printf("Invalid float value for %s ('%s'), using default: %g", key, valueStr, fallback)
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid boolean value for %s ('%s'), using default: %t", key, valueStr, fallback)
	return fallback
}

// getEnvAsDuration retrieves an environment variable as a time.Duration or returns a fallback.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid duration value for %s ('%s'), using default: %s", key, valueStr, fallback.String())
	return fallback
}

// getEnvAsList parses a comma-separated variable, dropping empty entries.
func getEnvAsList(key, fallback string) []string {
	raw := getEnv(key, fallback)
	items := []string{}
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
