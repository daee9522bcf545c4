package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.Model != "mistralai/mistral-7b-instruct" {
		t.Errorf("Model = %q, want default", cfg.Model)
	}
	if cfg.ClassifierTimeout != 15*time.Second {
		t.Errorf("ClassifierTimeout = %v, want 15s", cfg.ClassifierTimeout)
	}
	if cfg.LedgerBackend != BackendFile {
		t.Errorf("LedgerBackend = %q, want %q", cfg.LedgerBackend, BackendFile)
	}
	if cfg.LedgerFile != "warnings.json" {
		t.Errorf("LedgerFile = %q, want warnings.json", cfg.LedgerFile)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "sk-test")
	t.Setenv("MODERATION_MODEL", "some/other-model")
	t.Setenv("CLASSIFIER_TIMEOUT", "3s")
	t.Setenv("LEDGER_BACKEND", BackendRedis)
	t.Setenv("REDIS_ADDR", "redis:6380")

	cfg := Load()

	if cfg.APIKey != "sk-test" {
		t.Errorf("APIKey = %q, want sk-test", cfg.APIKey)
	}
	if cfg.Model != "some/other-model" {
		t.Errorf("Model = %q, want override", cfg.Model)
	}
	if cfg.ClassifierTimeout != 3*time.Second {
		t.Errorf("ClassifierTimeout = %v, want 3s", cfg.ClassifierTimeout)
	}
	if cfg.LedgerBackend != BackendRedis {
		t.Errorf("LedgerBackend = %q, want %q", cfg.LedgerBackend, BackendRedis)
	}
	if cfg.RedisAddr != "redis:6380" {
		t.Errorf("RedisAddr = %q, want override", cfg.RedisAddr)
	}
}

func TestLoad_InvalidDurationIgnored(t *testing.T) {
	t.Setenv("CLASSIFIER_TIMEOUT", "not-a-duration")

	cfg := Load()
	if cfg.ClassifierTimeout != 15*time.Second {
		t.Errorf("ClassifierTimeout = %v, want default for invalid value", cfg.ClassifierTimeout)
	}
}
