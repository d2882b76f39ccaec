package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.Port)
	}
	if cfg.Store.Backend != BackendPostgres {
		t.Fatalf("expected postgres backend, got %q", cfg.Store.Backend)
	}
	if cfg.Store.NegateEventKey {
		t.Fatal("event key negation must be off by default")
	}
	if cfg.Store.RetryAttempts != 3 {
		t.Fatalf("expected 3 retry attempts, got %d", cfg.Store.RetryAttempts)
	}
	if cfg.Registration.Timeout != 10*time.Second {
		t.Fatalf("expected 10s timeout, got %s", cfg.Registration.Timeout)
	}
	if cfg.Fields.Resources != "мастер-класс" {
		t.Fatalf("unexpected resource field %q", cfg.Fields.Resources)
	}
	if cfg.Kafka.Enabled() {
		t.Fatal("kafka must be disabled without brokers")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", "cache:6380")
	t.Setenv("DB_HOST", "pg")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("NEGATE_EVENT_KEY", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Backend != BackendRedis {
		t.Fatalf("expected redis backend, got %q", cfg.Store.Backend)
	}
	if cfg.Store.Redis.Addr != "cache:6380" {
		t.Fatalf("expected redis addr override, got %q", cfg.Store.Redis.Addr)
	}
	if !strings.Contains(cfg.Store.Postgres.DSN(), "host=pg ") {
		t.Fatalf("expected DSN to carry host override, got %q", cfg.Store.Postgres.DSN())
	}
	if len(cfg.Kafka.Brokers) != 2 || !cfg.Kafka.Enabled() {
		t.Fatalf("expected two brokers, got %v", cfg.Kafka.Brokers)
	}
	if !cfg.Store.NegateEventKey {
		t.Fatal("expected event key negation")
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("STORE_BACKEND", "firestore")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "STORE_BACKEND") {
		t.Fatalf("expected backend error, got %v", err)
	}
}

func TestLoadParseError(t *testing.T) {
	t.Setenv("STORE_RETRY_ATTEMPTS", "many")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestValidateZeroRetries(t *testing.T) {
	t.Setenv("STORE_RETRY_ATTEMPTS", "0")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for zero retry attempts")
	}
}
