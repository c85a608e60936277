// Package config provides environment-driven configuration for credsync.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Secret wraps a sensitive string to prevent accidental logging or marshalling.
type Secret string

// String implements fmt.Stringer, returning a redacted placeholder.
func (s Secret) String() string { return "[REDACTED]" }

// GoString implements fmt.GoStringer, returning a redacted placeholder.
func (s Secret) GoString() string { return "[REDACTED]" }

// MarshalText implements encoding.TextMarshaler, returning a redacted placeholder.
func (s Secret) MarshalText() ([]byte, error) { return []byte("[REDACTED]"), nil }

// Value returns the underlying secret string.
func (s Secret) Value() string { return string(s) }

// Config holds all application configuration values.
type Config struct {
	DatabaseURL        Secret
	DBMaxConns         int
	Port               string
	ListenHost         string
	MetricsPort        string
	CORSOrigins        []string
	LogLevel           string
	EncryptionProvider string
	EncryptionKey      Secret
	VaultAddr          string
	VaultToken         Secret
	Match              MatchConfig
}

// MatchConfig holds the reconciliation engine settings.
type MatchConfig struct {
	MinScore     float64
	NameWeight   float64
	DomainWeight float64
	ExactPattern string
	Workers      int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:        Secret(envOrDefault("DATABASE_URL", "")),
		Port:               envOrDefault("PORT", "3030"),
		ListenHost:         envOrDefault("LISTEN_HOST", "127.0.0.1"),
		MetricsPort:        envOrDefault("METRICS_PORT", "9091"),
		LogLevel:           envOrDefault("LOG_LEVEL", "info"),
		EncryptionProvider: envOrDefault("ENCRYPTION_PROVIDER", "static"),
		EncryptionKey:      Secret(envOrDefault("ENCRYPTION_KEY", "")),
		VaultAddr:          envOrDefault("VAULT_ADDR", "http://127.0.0.1:8200"),
		VaultToken:         Secret(envOrDefault("VAULT_TOKEN", "")),
	}

	errs := []error{
		envInt(&cfg.DBMaxConns, "DB_MAX_CONNS", 10, 1, 200),
		envInt(&cfg.Match.Workers, "MATCH_WORKERS", 4, 1, 32),
		envFloat(&cfg.Match.MinScore, "MATCH_MIN_SCORE", 0.5),
		envFloat(&cfg.Match.NameWeight, "MATCH_NAME_WEIGHT", 0.6),
		envFloat(&cfg.Match.DomainWeight, "MATCH_DOMAIN_WEIGHT", 0.4),
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	cfg.Match.ExactPattern = os.Getenv("MATCH_EXACT_PATTERN")

	origins := envOrDefault("CORS_ORIGINS", "http://localhost:3002")
	cfg.CORSOrigins = strings.Split(origins, ",")

	for i, o := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(o)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// Addr returns the listen address in host:port format.
func (c *Config) Addr() string {
	return c.ListenHost + ":" + c.Port
}

// MetricsAddr returns the Prometheus listen address in host:port format.
func (c *Config) MetricsAddr() string {
	return c.ListenHost + ":" + c.MetricsPort
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

// envInt stores key's value in dst, or fallback when unset.
func envInt(dst *int, key string, fallback, lo, hi int) error {
	v, err := strconv.Atoi(envOrDefault(key, strconv.Itoa(fallback)))
	if err != nil || v < lo || v > hi {
		return fmt.Errorf("%s must be an integer between %d and %d", key, lo, hi)
	}

	*dst = v

	return nil
}

func envFloat(dst *float64, key string, fallback float64) error {
	raw := os.Getenv(key)
	if raw == "" {
		*dst = fallback

		return nil
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("%s must be a number: %w", key, err)
	}

	*dst = v

	return nil
}
