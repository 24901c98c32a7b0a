// Package config holds environment-driven configuration. A .env file is
// honored when present; the environment always wins. Secrets never have
// in-code defaults.
package config

import (
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	AppPort   string
	DBPath    string
	JWTSecret string

	// ExternalDomain is what reset links are built from.
	ExternalDomain  string
	SessionTTLHours int

	RateLimitPerMinute int
	AllowedOrigins     []string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string
	SMTPTLS      bool

	LogLevel string
	GinMode  string

	IndexQueueLimit int
}

var (
	cfg  *AppConfig
	once sync.Once
)

func Get() *AppConfig {
	once.Do(load)
	return cfg
}

func load() {
	_ = godotenv.Load()

	cfg = &AppConfig{
		AppPort:            getEnv("APP_PORT", "3000"),
		DBPath:             getEnv("DB_PATH", "./db"),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		ExternalDomain:     getEnv("EXTERNAL_DOMAIN", "http://localhost:3000"),
		SessionTTLHours:    getEnvInt("SESSION_TTL_HOURS", 24*7),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		AllowedOrigins:     getEnvList("ALLOWED_ORIGINS", "*"),
		SMTPHost:           getEnv("SMTP_HOST", ""),
		SMTPPort:           getEnvInt("SMTP_PORT", 587),
		SMTPUsername:       getEnv("SMTP_USERNAME", ""),
		SMTPPassword:       getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:           getEnv("SMTP_FROM", ""),
		SMTPFromName:       getEnv("SMTP_FROM_NAME", ""),
		SMTPTLS:            getEnvBool("SMTP_TLS", true),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		GinMode:            getEnv("GIN_MODE", "release"),
		IndexQueueLimit:    getEnvInt("INDEX_QUEUE_LIMIT", 1024),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
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

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvList(key, fallback string) []string {
	raw := getEnv(key, fallback)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
