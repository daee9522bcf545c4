// Package config loads service configuration from a .env file and the
// process environment. Environment variables always win over .env entries.
package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Ledger backend identifiers for Config.LedgerBackend.
const (
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config holds every tunable for the moderation service. Zero values are
// filled with defaults by Load; only the API key has no default.
type Config struct {
	// Classifier service.
	APIKey            string        // OPENROUTER_API_KEY (required for classification)
	Endpoint          string        // OPENROUTER_ENDPOINT
	Model             string        // MODERATION_MODEL
	ClassifierTimeout time.Duration // CLASSIFIER_TIMEOUT

	// Ledger persistence.
	LedgerBackend string // LEDGER_BACKEND: file | redis | postgres
	LedgerFile    string // LEDGER_FILE
	RedisAddr     string // REDIS_ADDR
	PostgresDSN   string // POSTGRES_DSN

	// Service plumbing.
	NATSURL     string // NATS_URL
	MetricsAddr string // METRICS_ADDR
	LogFile     string // MODGUARD_LOG_FILE (optional, console only if empty)
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Endpoint:          "https://openrouter.ai/api/v1/chat/completions",
		Model:             "mistralai/mistral-7b-instruct",
		ClassifierTimeout: 15 * time.Second,
		LedgerBackend:     BackendFile,
		LedgerFile:        "warnings.json",
		RedisAddr:         "localhost:6379",
		NATSURL:           "nats://localhost:4222",
		MetricsAddr:       ":9091",
	}
}

// Load reads .env (if present) and overlays environment variables onto the
// defaults. A missing .env file is not an error.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.Warnf("[config] .env load: %v", err)
	}

	cfg := Default()

	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("OPENROUTER_ENDPOINT"); v != "" {
		cfg.Endpoint = v
	}
	if v := os.Getenv("MODERATION_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("CLASSIFIER_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.ClassifierTimeout = d
		}
	}
	if v := os.Getenv("LEDGER_BACKEND"); v != "" {
		cfg.LedgerBackend = v
	}
	if v := os.Getenv("LEDGER_FILE"); v != "" {
		cfg.LedgerFile = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.PostgresDSN = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		cfg.NATSURL = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv("MODGUARD_LOG_FILE"); v != "" {
		cfg.LogFile = v
	}

	return cfg
}
