package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime settings, read once at startup from the
// environment (optionally seeded from a .env file). Defaults are documented
// on each field.
type Config struct {
	Port       string // PORT, default 8080
	DBPath     string // DB_PATH, default planktovision.db
	ResultsDir string // RESULTS_DIR, default static/results
	UploadsDir string // UPLOADS_DIR, default static/uploads
	CORSOrigin string // CORS_ORIGIN, default *

	// Detector selection and thresholds.
	Detector         string        // DETECTOR: yolo | mock, default yolo
	DetectEndpoint   string        // DETECT_ENDPOINT, default http://127.0.0.1:8500
	ClassifyEndpoint string        // CLASSIFY_ENDPOINT, empty disables classification
	Confidence       float64       // DETECT_CONFIDENCE, default 0.25
	IoU              float64       // DETECT_IOU, default 0.45
	MaxDetections    int           // DETECT_MAX, default 300
	InferTimeout     time.Duration // INFER_TIMEOUT, default 15s

	MaxUploadMB int64 // MAX_UPLOAD_MB, default 10

	SafetyPolicyPath string // SAFETY_POLICY_PATH, empty uses the built-in map

	AdminUser string        // ADMIN_USER, default admin
	AdminPass string        // ADMIN_PASS, empty disables the admin endpoints
	JWTSecret string        // JWT_SECRET, empty generates a random dev secret
	JWTExpiry time.Duration // JWT_EXPIRY, default 24h
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present.
func Load(logger *log.Logger) (*Config, error) {
	if err := godotenv.Load(); err == nil {
		logger.Printf("[Config] Loaded settings from .env")
	}

	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		DBPath:           getEnv("DB_PATH", "planktovision.db"),
		ResultsDir:       getEnv("RESULTS_DIR", "static/results"),
		UploadsDir:       getEnv("UPLOADS_DIR", "static/uploads"),
		CORSOrigin:       getEnv("CORS_ORIGIN", "*"),
		Detector:         strings.ToLower(getEnv("DETECTOR", "yolo")),
		DetectEndpoint:   getEnv("DETECT_ENDPOINT", "http://127.0.0.1:8500"),
		ClassifyEndpoint: os.Getenv("CLASSIFY_ENDPOINT"),
		Confidence:       getEnvFloat("DETECT_CONFIDENCE", 0.25),
		IoU:              getEnvFloat("DETECT_IOU", 0.45),
		MaxDetections:    getEnvInt("DETECT_MAX", 300),
		InferTimeout:     getEnvDuration("INFER_TIMEOUT", 15*time.Second),
		MaxUploadMB:      int64(getEnvInt("MAX_UPLOAD_MB", 10)),
		SafetyPolicyPath: os.Getenv("SAFETY_POLICY_PATH"),
		AdminUser:        getEnv("ADMIN_USER", "admin"),
		AdminPass:        os.Getenv("ADMIN_PASS"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		JWTExpiry:        getEnvDuration("JWT_EXPIRY", 24*time.Hour),
	}

	if cfg.Detector != "yolo" && cfg.Detector != "mock" {
		return nil, fmt.Errorf("invalid DETECTOR %q (valid: yolo, mock)", cfg.Detector)
	}
	if cfg.Confidence <= 0 || cfg.Confidence >= 1 {
		return nil, fmt.Errorf("DETECT_CONFIDENCE must be in (0,1), got %v", cfg.Confidence)
	}
	if cfg.IoU <= 0 || cfg.IoU >= 1 {
		return nil, fmt.Errorf("DETECT_IOU must be in (0,1), got %v", cfg.IoU)
	}
	if cfg.MaxUploadMB <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_MB must be positive, got %d", cfg.MaxUploadMB)
	}

	return cfg, nil
}

// MaxUploadBytes returns the upload size cap in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
