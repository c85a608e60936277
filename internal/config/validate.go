package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// listenHosts are the only bind addresses accepted. 0.0.0.0 and :: are for
// containers where the network boundary is enforced outside the process.
var listenHosts = map[string]bool{
	"127.0.0.1": true,
	"::1":       true,
	"localhost": true,
	"0.0.0.0":   true,
	"::":        true,
}

// validate runs every check and reports all failures together.
func (c *Config) validate() error {
	checks := []func() error{
		c.validateDatabase,
		c.validateNetwork,
		c.validateMatch,
		c.validateCORS,
		c.validateEncryption,
	}

	var errs []error
	for _, check := range checks {
		if err := check(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (c *Config) validateDatabase() error {
	raw := c.DatabaseURL.Value()
	if raw == "" {
		return errors.New("DATABASE_URL is required")
	}

	u, err := url.Parse(raw)
	if err != nil {
		// url.Error echoes the input, which would leak the password.
		return errors.New("DATABASE_URL is not a valid URL")
	}

	switch {
	case u.Scheme != "postgres" && u.Scheme != "postgresql":
		return errors.New("DATABASE_URL scheme must be postgres:// or postgresql://")
	case u.Hostname() == "":
		return errors.New("DATABASE_URL must include a host")
	case !isLoopback(u.Hostname()) && u.Query().Get("sslmode") == "disable":
		return fmt.Errorf("DATABASE_URL sslmode=disable is not allowed for non-local host %q", u.Hostname())
	}

	return nil
}

func parsePort(key, raw string) (int, error) {
	port, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}

	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("%s must be between 1 and 65535", key)
	}

	return port, nil
}

func (c *Config) validateNetwork() error {
	port, err := parsePort("PORT", c.Port)
	if err != nil {
		return err
	}

	if !listenHosts[c.ListenHost] {
		return fmt.Errorf("LISTEN_HOST must be a loopback address or 0.0.0.0/:: for containers (got %q)", c.ListenHost)
	}

	metricsPort, err := parsePort("METRICS_PORT", c.MetricsPort)
	if err != nil {
		return err
	}

	if metricsPort == port {
		return errors.New("METRICS_PORT must differ from PORT")
	}

	return nil
}

func (c *Config) validateMatch() error {
	m := c.Match

	if m.MinScore < 0 || m.MinScore > 1 {
		return fmt.Errorf("MATCH_MIN_SCORE must be between 0 and 1 (0 selects exact matching), got %v", m.MinScore)
	}

	if m.NameWeight < 0 || m.DomainWeight < 0 {
		return errors.New("MATCH_NAME_WEIGHT and MATCH_DOMAIN_WEIGHT must not be negative")
	}

	if m.NameWeight+m.DomainWeight == 0 {
		return errors.New("MATCH_NAME_WEIGHT and MATCH_DOMAIN_WEIGHT must not both be zero")
	}

	if m.ExactPattern == "" {
		return nil
	}

	if m.MinScore != 0 {
		return errors.New("MATCH_EXACT_PATTERN requires MATCH_MIN_SCORE=0")
	}

	if _, err := regexp.Compile(m.ExactPattern); err != nil {
		return fmt.Errorf("MATCH_EXACT_PATTERN is not a valid regexp: %w", err)
	}

	return nil
}

func (c *Config) validateCORS() error {
	for _, origin := range c.CORSOrigins {
		if origin == "*" {
			return errors.New("CORS_ORIGINS must not contain wildcard '*'")
		}

		if strings.ContainsAny(origin, "*?[]") {
			return fmt.Errorf("CORS_ORIGINS must not contain glob characters (*?[]), got %q", origin)
		}

		if u, err := url.Parse(origin); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("CORS_ORIGINS contains invalid origin %q (must have scheme and host)", origin)
		}
	}

	return nil
}

func (c *Config) validateEncryption() error {
	switch c.EncryptionProvider {
	case "static":
		key := c.EncryptionKey.Value()
		if key == "" {
			return errors.New("ENCRYPTION_KEY is required when ENCRYPTION_PROVIDER is static")
		}

		raw, err := hex.DecodeString(key)
		if err != nil {
			return fmt.Errorf("ENCRYPTION_KEY must be valid hex: %w", err)
		}

		if len(raw) != 32 {
			return fmt.Errorf("ENCRYPTION_KEY must be 64 hex characters (32 bytes), got %d chars", len(key))
		}
	case "vault":
		if c.VaultToken.Value() == "" {
			return errors.New("VAULT_TOKEN is required when ENCRYPTION_PROVIDER is vault")
		}

		u, err := url.Parse(c.VaultAddr)
		if err != nil || u.Host == "" {
			return fmt.Errorf("VAULT_ADDR is not a valid URL: %q", c.VaultAddr)
		}

		if u.Scheme != "https" && !isLoopback(u.Hostname()) {
			return errors.New("VAULT_ADDR must use HTTPS for non-localhost connections")
		}
	default:
		return fmt.Errorf("ENCRYPTION_PROVIDER must be 'static' or 'vault', got %q", c.EncryptionProvider)
	}

	return nil
}

func isLoopback(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}
