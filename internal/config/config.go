// Package config handles application configuration loading from environment
// variables. It provides a centralized Config struct used across the application.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// Config holds all application configuration values loaded from the environment.
type Config struct {
	// Server settings
	Host    string
	Port    string
	Env     string // "development", "production", "testing"
	BaseURL string // absolute URL used in emailed links
	Secret  string // signs verification tokens

	// PostgreSQL connection
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Valkey (Redis-compatible cache)
	ValkeyHost     string
	ValkeyPort     string
	ValkeyPassword string

	// S3-compatible asset storage
	S3Endpoint  string
	S3Region    string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3PublicURL string

	// Outgoing mail. An empty SMTPHost logs messages instead of sending.
	SMTPHost         string
	SMTPPort         int
	SMTPUser         string
	SMTPPassword     string
	SMTPSender       string
	ContactRecipient string

	// Optional RabbitMQ for mail jobs. Empty means send in-process.
	RabbitMQURL string

	// The single site administrator, matched by id or email.
	AdminUserID uuid.UUID
	AdminEmail  string

	// Origins allowed to call /api with credentials.
	CORSOrigins []string
}

// defaultSecret is only accepted outside production.
const defaultSecret = "dev-insecure-secret"

// Load reads configuration from environment variables, applying defaults
// for development where appropriate. A .env file in the working directory
// is loaded first if present; real environment variables win over it.
// Returns an error if critical values are missing in production mode.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("could not read .env file", "error", err)
	}

	cfg := &Config{
		Host:    envOrDefault("APP_HOST", "0.0.0.0"),
		Port:    envOrDefault("APP_PORT", "8080"),
		Env:     envOrDefault("APP_ENV", "development"),
		BaseURL: strings.TrimRight(envOrDefault("APP_BASE_URL", "http://localhost:8080"), "/"),
		Secret:  envOrDefault("APP_SECRET", defaultSecret),

		DBHost:     envOrDefault("POSTGRES_HOST", "localhost"),
		DBPort:     envOrDefault("POSTGRES_PORT", "5432"),
		DBUser:     envOrDefault("POSTGRES_USER", "folio"),
		DBPassword: envOrDefault("POSTGRES_PASSWORD", "changeme"),
		DBName:     envOrDefault("POSTGRES_DB", "folio"),

		ValkeyHost:     envOrDefault("VALKEY_HOST", "localhost"),
		ValkeyPort:     envOrDefault("VALKEY_PORT", "6379"),
		ValkeyPassword: os.Getenv("VALKEY_PASSWORD"),

		S3Endpoint:  os.Getenv("S3_ENDPOINT"),
		S3Region:    envOrDefault("S3_REGION", "fsn1"),
		S3AccessKey: os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey: os.Getenv("S3_SECRET_KEY"),
		S3Bucket:    envOrDefault("S3_BUCKET", "folio-assets"),
		S3PublicURL: os.Getenv("S3_PUBLIC_URL"),

		SMTPHost:         os.Getenv("SMTP_HOST"),
		SMTPUser:         os.Getenv("SMTP_USER"),
		SMTPPassword:     os.Getenv("SMTP_PASSWORD"),
		SMTPSender:       envOrDefault("SMTP_SENDER", "Folio <no-reply@folio.local>"),
		ContactRecipient: os.Getenv("CONTACT_RECIPIENT"),

		RabbitMQURL: os.Getenv("RABBITMQ_URL"),

		AdminEmail:  strings.TrimSpace(os.Getenv("ADMIN_EMAIL")),
		CORSOrigins: splitList(os.Getenv("CORS_ORIGINS")),
	}

	port, err := strconv.Atoi(envOrDefault("SMTP_PORT", "587"))
	if err != nil {
		return nil, fmt.Errorf("SMTP_PORT must be a number: %w", err)
	}
	cfg.SMTPPort = port

	if raw := strings.TrimSpace(os.Getenv("ADMIN_USER_ID")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("ADMIN_USER_ID must be a UUID: %w", err)
		}
		cfg.AdminUserID = id
	}

	if cfg.ContactRecipient == "" {
		cfg.ContactRecipient = cfg.AdminEmail
	}

	if cfg.Env == "production" {
		if cfg.DBPassword == "changeme" {
			return nil, fmt.Errorf("POSTGRES_PASSWORD must be set in production")
		}
		if cfg.Secret == defaultSecret {
			return nil, fmt.Errorf("APP_SECRET must be set in production")
		}
	}

	return cfg, nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName,
	)
}

// Addr returns the server listen address (host:port).
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// IsDev returns true if the application is running in development mode.
func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// HasAdmin reports whether an admin identity is configured.
func (c *Config) HasAdmin() bool {
	return c.AdminUserID != uuid.Nil || c.AdminEmail != ""
}

// envOrDefault reads an environment variable, returning a fallback if unset or empty.
func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// splitList parses a comma-separated list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
