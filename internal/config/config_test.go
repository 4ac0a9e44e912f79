package config

import (
	"testing"
	"time"

	"github.com/king-app/king/backend/internal/service/ai"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "AI_PROVIDER", "AI_MODEL", "AI_TEMPERATURE", "DB_DRIVER", "STREAM_BUFFER", "STREAM_SERIALIZE_PER_USER", "CHAT_RATE_LIMIT", "REDIS_ADDR"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("unexpected addr %q", cfg.Server.Addr)
	}
	if cfg.AI.Provider != ai.ProviderOpenAI || cfg.AI.Model != "gpt-4o-mini" || cfg.AI.Temperature != 0.7 {
		t.Fatalf("unexpected AI defaults %+v", cfg.AI)
	}
	if cfg.Database.Driver != DriverMemory {
		t.Fatalf("unexpected driver %q", cfg.Database.Driver)
	}
	if !cfg.Stream.SerializePerUser || cfg.Stream.SavePartialOnCancel || cfg.Stream.Buffer != 16 {
		t.Fatalf("unexpected stream defaults %+v", cfg.Stream)
	}
	if cfg.Stream.LockTTL != 2*time.Minute || cfg.Stream.PersistTimeout != 10*time.Second {
		t.Fatalf("unexpected durations %+v", cfg.Stream)
	}
	if cfg.Redis.Enabled() {
		t.Fatal("redis should be disabled without REDIS_ADDR")
	}
	if got := cfg.AI.Params(); got != ai.DefaultParams() {
		t.Fatalf("unexpected params %+v", got)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "127.0.0.1:9000")
	t.Setenv("AI_PROVIDER", "Mock")
	t.Setenv("AI_TEMPERATURE", "0.2")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", "/tmp/king.db")
	t.Setenv("STREAM_SAVE_PARTIAL_ON_CANCEL", "true")
	t.Setenv("STREAM_LOCK_TTL", "30s")
	t.Setenv("CHAT_RATE_LIMIT", "20")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:9000" {
		t.Fatalf("unexpected addr %q", cfg.Server.Addr)
	}
	if cfg.AI.Provider != ai.ProviderMock || cfg.AI.Params().Temperature != 0.2 {
		t.Fatalf("unexpected AI config %+v", cfg.AI)
	}
	if cfg.Database.SQLitePath != "/tmp/king.db" {
		t.Fatalf("unexpected sqlite path %q", cfg.Database.SQLitePath)
	}
	if !cfg.Stream.SavePartialOnCancel || cfg.Stream.LockTTL != 30*time.Second || cfg.Stream.RateLimit != 20 {
		t.Fatalf("unexpected stream config %+v", cfg.Stream)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"PORT":                      "80 80",
		"AI_PROVIDER":               "llama",
		"AI_TEMPERATURE":            "3",
		"DB_DRIVER":                 "postgres",
		"STREAM_BUFFER":             "0",
		"STREAM_SERIALIZE_PER_USER": "maybe",
		"PERSIST_TIMEOUT":           "-1s",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "")
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%q", key, value)
			}
		})
	}
}
