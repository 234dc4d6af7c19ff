// Package config loads service configuration from the environment.
//
// A .env file in the working directory is honored for local development
// (godotenv); real environment variables always win. Everything except
// JWT_SECRET has a sensible default, so `JWT_SECRET=... go run ./cmd/server`
// is a complete local setup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration, read once at startup and
// treated as read-only afterwards.
type Config struct {
	Port         int
	DBPath       string
	JWTSecret    string
	TokenTTL     time.Duration
	BcryptCost   int
	CORSOrigins  []string
	LoginRateRPM int
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	// Missing .env is fine — it's a dev convenience, not a requirement.
	_ = godotenv.Load()

	cfg := &Config{
		DBPath:      getEnv("DB_PATH", "data/accounts.db"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		CORSOrigins: splitCSV(getEnv("CORS_ORIGINS", "*")),
	}

	var err error
	if cfg.Port, err = getInt("PORT", 8080); err != nil {
		return nil, err
	}
	if cfg.TokenTTL, err = getDuration("TOKEN_TTL", 2*time.Hour); err != nil {
		return nil, err
	}
	if cfg.BcryptCost, err = getInt("BCRYPT_COST", 10); err != nil {
		return nil, err
	}
	if cfg.LoginRateRPM, err = getInt("LOGIN_RATE_LIMIT", 10); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate fails fast on configuration that would only blow up later.
// The secret-length rule matches auth.NewTokenService; checking it here
// too means the process dies at startup with a clear message instead of
// during server wiring.
func (c *Config) validate() error {
	if len(c.JWTSecret) < 16 {
		return fmt.Errorf("config: JWT_SECRET is required and must be at least 16 characters")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: PORT must be in 1..65535, got %d", c.Port)
	}
	if c.BcryptCost < 10 {
		return fmt.Errorf("config: BCRYPT_COST must be at least 10, got %d", c.BcryptCost)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("config: TOKEN_TTL must be positive, got %s", c.TokenTTL)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getInt returns the fallback only when the variable is unset. A set but
// unparsable value is an error: silently falling back would hide typos
// like PORT=808O behind a server that runs on the default port.
func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s=%q is not a valid integer", key, v)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s=%q is not a valid duration (try \"30m\" or \"2h\")", key, v)
	}
	return d, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
