package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds runtime configuration values.
type Config struct {
	Port            string
	DatabaseURL     string
	GeminiAPIKey    string
	InternalBaseURL string
	CORSOrigins     []string
	Session         SessionConfig
	Media           MediaConfig
	TryOn           TryOnConfig
}

// SessionConfig describes the signed session cookie.
type SessionConfig struct {
	CookieName string
	Secret     string
	Duration   time.Duration
	Secure     bool
}

// MediaConfig describes S3/MinIO related configuration.
type MediaConfig struct {
	Bucket         string
	Region         string
	Endpoint       string
	AccessKey      string
	SecretKey      string
	KeyPrefix      string
	ForcePathStyle bool
}

// TryOnConfig bounds normalization of images sent to the render service.
type TryOnConfig struct {
	MaxSide int
	Quality int
}

// FromEnv loads configuration from environment variables and applies defaults.
func FromEnv() Config {
	cfg := Config{
		Port:            getenv("APP_PORT", "8080"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		InternalBaseURL: strings.TrimSuffix(getenv("INTERNAL_BASE_URL", "http://127.0.0.1:8080"), "/"),
		CORSOrigins:     splitList(os.Getenv("CORS_ORIGINS")),
		Session: SessionConfig{
			CookieName: getenv("AUTH_COOKIE_NAME", "toptry_session"),
			Secret:     os.Getenv("SESSION_SECRET"),
			Duration:   time.Duration(getenvInt("SESSION_TTL_MINUTES", 20)) * time.Minute,
			Secure:     getenvBool("COOKIE_SECURE", false),
		},
		Media: MediaConfig{
			Bucket:         getenv("MINIO_BUCKET", "toptry"),
			Region:         getenv("MINIO_REGION", "us-east-1"),
			Endpoint:       os.Getenv("MINIO_ENDPOINT"),
			AccessKey:      os.Getenv("MINIO_ACCESS_KEY"),
			SecretKey:      os.Getenv("MINIO_SECRET_KEY"),
			KeyPrefix:      strings.Trim(os.Getenv("MINIO_KEY_PREFIX"), "/"),
			ForcePathStyle: getenvBool("MINIO_FORCE_PATH_STYLE", true),
		},
		TryOn: TryOnConfig{
			MaxSide: getenvInt("TRYON_MAX_SIDE", 1024),
			Quality: getenvInt("TRYON_WEBP_QUALITY", 80),
		},
	}

	if cfg.Port == "" {
		log.Fatal("APP_PORT cannot be empty")
	}
	if cfg.GeminiAPIKey == "" {
		log.Println("GEMINI_API_KEY is not set; AI endpoints will return errors")
	}
	if cfg.DatabaseURL == "" {
		log.Println("DATABASE_URL is not set; falling back to in-memory persistence")
	}

	return cfg
}

func getenv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return fallback
}

func getenvBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}

	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}

	return parsed
}

func getenvInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}

	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}

	return parsed
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}

	chunks := strings.Split(raw, ",")
	values := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if trimmed := strings.TrimSuffix(strings.TrimSpace(c), "/"); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
