// Package config loads service settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config is read once at startup and treated as immutable
type Config struct {
	// Server
	HTTPAddr        string
	APIPrefix       string
	ShutdownTimeout time.Duration
	LogLevel        string

	// Sessions
	SecretKey      string
	AccessTokenTTL time.Duration

	// SIWE
	SiweDomain    string
	NonceTTL      time.Duration
	NonceEncoding string
	NonceBackend  string

	// Backends
	DatabaseURL   string
	RedisURL      string
	EthRPCURL     string
	EthRPCTimeout time.Duration

	// Rate limit, requests per minute per client IP
	RateLimitAuth int
}

// Load reads the Config from environment variables. Missing required
// variables and inconsistent backend choices are reported as an error.
func Load() (*Config, error) {
	cfg := &Config{}

	var missing []string

	cfg.SecretKey = os.Getenv("SECRET_KEY")
	if cfg.SecretKey == "" {
		missing = append(missing, "SECRET_KEY")
	}

	cfg.HTTPAddr = getEnvString("HTTP_ADDR", ":8000")
	cfg.APIPrefix = getEnvString("API_PREFIX", "/api/v1")
	cfg.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.AccessTokenTTL = getEnvDuration("ACCESS_TOKEN_TTL", 7*24*time.Hour)
	cfg.SiweDomain = os.Getenv("SIWE_DOMAIN")
	cfg.NonceTTL = getEnvDuration("SIWE_NONCE_TTL", 5*time.Minute)
	cfg.NonceEncoding = getEnvString("NONCE_ENCODING", "hex")
	cfg.NonceBackend = getEnvString("NONCE_BACKEND", BackendMemory)
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.RedisURL = os.Getenv("REDIS_URL")
	cfg.EthRPCURL = os.Getenv("ETH_RPC_URL")
	cfg.EthRPCTimeout = getEnvDuration("ETH_RPC_TIMEOUT", 5*time.Second)
	cfg.RateLimitAuth = getEnvInt("RATE_LIMIT_AUTH", 30)

	switch cfg.NonceBackend {
	case BackendMemory:
	case BackendRedis:
		if cfg.RedisURL == "" {
			missing = append(missing, "REDIS_URL")
		}
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	default:
		return nil, fmt.Errorf("unknown NONCE_BACKEND %q", cfg.NonceBackend)
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	var invalid []string
	for _, d := range []struct {
		name  string
		value time.Duration
	}{
		{"ACCESS_TOKEN_TTL", cfg.AccessTokenTTL},
		{"SIWE_NONCE_TTL", cfg.NonceTTL},
		{"ETH_RPC_TIMEOUT", cfg.EthRPCTimeout},
		{"SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout},
	} {
		if d.value <= 0 {
			invalid = append(invalid, d.name)
		}
	}
	if cfg.RateLimitAuth <= 0 {
		invalid = append(invalid, "RATE_LIMIT_AUTH")
	}
	if len(invalid) > 0 {
		return nil, fmt.Errorf("environment variables must be positive: %v", invalid)
	}

	return cfg, nil
}

// Warnings lists settings that are accepted but weaken login checks
func (c *Config) Warnings() []string {
	var warnings []string
	if c.SiweDomain == "" {
		warnings = append(warnings, "SIWE_DOMAIN is not set, messages signed for any domain are accepted")
	}
	return warnings
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
