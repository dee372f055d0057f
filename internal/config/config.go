// Package config handles loading and validation of application configuration
// from environment variables. Supports .env files via godotenv.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port        int
	Environment string // "development" | "staging" | "production"

	// Database
	DatabaseURL string

	// Redis (event fan-out backplane & geocode cache)
	RedisURL string

	// Security
	JWTSecret      string
	AllowedOrigins []string
	RateLimitRPM   int

	// Evidence storage
	UploadDir      string
	StagingDir     string
	MaxUploadBytes int64 // full report submission (images + video)
	MaxDetectBytes int64 // detection-only flow (images)
	RetentionSweep time.Duration
	StagingMaxAge  time.Duration

	// Detector worker
	PythonBin       string
	DetectorScript  string
	DetectorTimeout time.Duration

	// Reverse geocoding
	GeocodeBaseURL string
	GeocodeTimeout time.Duration
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnvInt("PORT", 8080),
		Environment: getEnv("ENVIRONMENT", "development"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379"),

		JWTSecret:      getEnv("JWT_SECRET", "dev-secret-change-in-production"),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000"), ","),
		RateLimitRPM:   getEnvInt("RATE_LIMIT_RPM", 60),

		UploadDir:      getEnv("UPLOAD_DIR", "uploads"),
		StagingDir:     getEnv("STAGING_DIR", os.TempDir()),
		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_MB", 50)) << 20,
		MaxDetectBytes: int64(getEnvInt("MAX_DETECT_MB", 10)) << 20,
		RetentionSweep: time.Duration(getEnvInt("RETENTION_SWEEP_MINUTES", 15)) * time.Minute,
		StagingMaxAge:  time.Duration(getEnvInt("STAGING_MAX_AGE_MINUTES", 60)) * time.Minute,

		PythonBin:       getEnv("PYTHON_BIN", "python3"),
		DetectorScript:  getEnv("DETECTOR_SCRIPT", "ai/detect.py"),
		DetectorTimeout: time.Duration(getEnvInt("DETECTOR_TIMEOUT_SECONDS", 60)) * time.Second,

		GeocodeBaseURL: getEnv("GEOCODE_BASE_URL", "https://nominatim.openstreetmap.org"),
		GeocodeTimeout: time.Duration(getEnvInt("GEOCODE_TIMEOUT_SECONDS", 5)) * time.Second,
	}

	// Validate required fields in production
	if cfg.Environment == "production" {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required in production")
		}
		if cfg.JWTSecret == "dev-secret-change-in-production" {
			return nil, fmt.Errorf("JWT_SECRET must be set in production")
		}
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}
