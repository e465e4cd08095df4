package config

import (
	"errors"
	"testing"
)

func TestLoad_FailsClosedWithoutDBCredential(t *testing.T) {
	t.Setenv("DB_PASSWORD", "")

	_, err := Load()
	if !errors.Is(err, ErrNoDBCredential) {
		t.Fatalf("expected ErrNoDBCredential, got %v", err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DB_PASSWORD", "oauth-token")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBPort != "5432" {
		t.Fatalf("db port = %q", cfg.DBPort)
	}
	if cfg.RabbitQueue != "user_events" {
		t.Fatalf("rabbit queue = %q", cfg.RabbitQueue)
	}
	if cfg.StatsCacheTTL != 60 {
		t.Fatalf("stats cache ttl = %d", cfg.StatsCacheTTL)
	}
	if cfg.QuestionMaxLen != 500 {
		t.Fatalf("question max len = %d", cfg.QuestionMaxLen)
	}
	if cfg.WorkerConcurrency != 2 {
		t.Fatalf("worker concurrency = %d", cfg.WorkerConcurrency)
	}
}

func TestLoad_ClampsWorkerConcurrency(t *testing.T) {
	t.Setenv("DB_PASSWORD", "oauth-token")
	t.Setenv("WORKER_CONCURRENCY", "500")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.WorkerConcurrency != 50 {
		t.Fatalf("worker concurrency = %d, want clamped to 50", cfg.WorkerConcurrency)
	}
}

func TestLoad_SplitsCORSOrigins(t *testing.T) {
	t.Setenv("DB_PASSWORD", "oauth-token")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example.com" {
		t.Fatalf("cors origins = %v", cfg.CORSOrigins)
	}
}
