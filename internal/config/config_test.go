package config

import (
	"strings"
	"testing"
	"time"
)

var envKeys = []string{
	"HTTP_ADDR", "METRICS_ENABLED", "LOG_LEVEL", "LOG_FORMAT",
	"STORE_BACKEND", "MONGO_URI", "MONGO_DATABASE", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
	"SWEEP_INTERVAL_SECONDS", "ATTEMPT_TIMEOUT_SECONDS", "SWEEP_BATCH_SIZE", "CONTENT_MAX",
	"SEND_CONCURRENCY", "CARRIER_RATE_PER_SECOND", "FALLBACK_ON_EXHAUSTION",
	"FCM_PROJECT_ID", "FCM_ACCESS_TOKEN", "FCM_BASE_URL",
	"CARRIER_PROVIDER", "TWILIO_ACCOUNT_SID", "TWILIO_AUTH_TOKEN", "TWILIO_FROM",
	"SMS_WEBHOOK_URL", "SMS_WEBHOOK_SECRET",
	"API_SIGNING_SECRET", "API_SIGNATURE_TOLERANCE_SECONDS",
}

func clearTestEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearTestEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Address != ":8080" {
		t.Fatalf("unexpected Server.Address default: %q", cfg.Server.Address)
	}
	if cfg.Store.Backend != BackendMemory {
		t.Fatalf("unexpected backend default: %q", cfg.Store.Backend)
	}
	if cfg.Relay.AttemptTimeout != 15*time.Minute {
		t.Fatalf("unexpected AttemptTimeout default: %v", cfg.Relay.AttemptTimeout)
	}
	if cfg.Relay.SweepInterval != time.Minute {
		t.Fatalf("unexpected SweepInterval default: %v", cfg.Relay.SweepInterval)
	}
	if cfg.Relay.MaxContentLength != 140 {
		t.Fatalf("unexpected MaxContentLength default: %d", cfg.Relay.MaxContentLength)
	}
	if !cfg.Server.MetricsEnabled {
		t.Fatal("expected metrics enabled by default")
	}
	if cfg.Carrier.Provider != CarrierNone {
		t.Fatalf("unexpected carrier default: %q", cfg.Carrier.Provider)
	}
}

func TestLoad_RedisAndTwilio(t *testing.T) {
	clearTestEnv(t)
	t.Setenv("STORE_BACKEND", "Redis")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("CARRIER_PROVIDER", "twilio")
	t.Setenv("TWILIO_ACCOUNT_SID", "AC123")
	t.Setenv("TWILIO_AUTH_TOKEN", "secret")
	t.Setenv("TWILIO_FROM", "+15550000")
	t.Setenv("FALLBACK_ON_EXHAUSTION", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Store.Backend != BackendRedis || cfg.Store.RedisDB != 2 {
		t.Fatalf("unexpected store config: %+v", cfg.Store)
	}
	if cfg.Carrier.Provider != CarrierTwilio {
		t.Fatalf("unexpected carrier: %q", cfg.Carrier.Provider)
	}
	if !cfg.Relay.FallbackOnExhaustion {
		t.Fatal("expected FallbackOnExhaustion")
	}
}

func TestLoad_ReportsEveryProblem(t *testing.T) {
	clearTestEnv(t)
	t.Setenv("STORE_BACKEND", "mongo")
	t.Setenv("CARRIER_PROVIDER", "webhook")
	t.Setenv("SEND_CONCURRENCY", "many")
	t.Setenv("SWEEP_INTERVAL_SECONDS", "0")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error")
	}

	for _, want := range []string{"MONGO_URI", "SMS_WEBHOOK_URL", "SEND_CONCURRENCY", "SWEEP_INTERVAL_SECONDS"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected error to mention %s, got %v", want, err)
		}
	}
}

func TestLoad_UnknownBackend(t *testing.T) {
	clearTestEnv(t)
	t.Setenv("STORE_BACKEND", "postgres")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "STORE_BACKEND") {
		t.Fatalf("expected STORE_BACKEND error, got %v", err)
	}
}
