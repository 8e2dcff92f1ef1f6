// Package config loads the daemon configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendMongo  = "mongo"
	BackendRedis  = "redis"
)

// Carrier providers.
const (
	CarrierNone    = ""
	CarrierTwilio  = "twilio"
	CarrierWebhook = "webhook"
)

type Config struct {
	Server  ServerConfig
	Log     LogConfig
	Store   StoreConfig
	Relay   RelayConfig
	FCM     FCMConfig
	Carrier CarrierConfig
	Auth    AuthConfig
}

type ServerConfig struct {
	Address        string
	MetricsEnabled bool
}

type LogConfig struct {
	Level  string
	Format string
}

type StoreConfig struct {
	Backend       string
	MongoURI      string
	MongoDatabase string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

type RelayConfig struct {
	SweepInterval        time.Duration
	AttemptTimeout       time.Duration
	SweepBatchSize       int
	MaxContentLength     int
	Concurrency          int
	CarrierRate          int
	FallbackOnExhaustion bool
}

type FCMConfig struct {
	ProjectID   string
	AccessToken string
	BaseURL     string
}

type CarrierConfig struct {
	Provider string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFrom       string

	WebhookURL    string
	WebhookSecret string
}

type AuthConfig struct {
	// SigningSecret, when set, requires signed API requests.
	SigningSecret string
	Tolerance     time.Duration
}

// Load reads the configuration from the environment. Every invalid value is
// reported in the returned error.
func Load() (*Config, error) {
	var errs []error
	env := envReader{errs: &errs}

	cfg := &Config{
		Server: ServerConfig{
			Address:        env.str("HTTP_ADDR", ":8080"),
			MetricsEnabled: env.bool("METRICS_ENABLED", true),
		},
		Log: LogConfig{
			Level:  strings.ToLower(env.str("LOG_LEVEL", "info")),
			Format: strings.ToLower(env.str("LOG_FORMAT", "json")),
		},
		Store: StoreConfig{
			Backend:       strings.ToLower(env.str("STORE_BACKEND", BackendMemory)),
			MongoURI:      env.str("MONGO_URI", ""),
			MongoDatabase: env.str("MONGO_DATABASE", "smsrelay"),
			RedisAddr:     env.str("REDIS_ADDR", ""),
			RedisPassword: env.str("REDIS_PASSWORD", ""),
			RedisDB:       env.int("REDIS_DB", 0),
		},
		Relay: RelayConfig{
			SweepInterval:        env.seconds("SWEEP_INTERVAL_SECONDS", 60),
			AttemptTimeout:       env.seconds("ATTEMPT_TIMEOUT_SECONDS", 900),
			SweepBatchSize:       env.int("SWEEP_BATCH_SIZE", 200),
			MaxContentLength:     env.int("CONTENT_MAX", 140),
			Concurrency:          env.int("SEND_CONCURRENCY", 10),
			CarrierRate:          env.int("CARRIER_RATE_PER_SECOND", 10),
			FallbackOnExhaustion: env.bool("FALLBACK_ON_EXHAUSTION", false),
		},
		FCM: FCMConfig{
			ProjectID:   env.str("FCM_PROJECT_ID", ""),
			AccessToken: env.str("FCM_ACCESS_TOKEN", ""),
			BaseURL:     env.str("FCM_BASE_URL", ""),
		},
		Carrier: CarrierConfig{
			Provider:         strings.ToLower(env.str("CARRIER_PROVIDER", CarrierNone)),
			TwilioAccountSID: env.str("TWILIO_ACCOUNT_SID", ""),
			TwilioAuthToken:  env.str("TWILIO_AUTH_TOKEN", ""),
			TwilioFrom:       env.str("TWILIO_FROM", ""),
			WebhookURL:       env.str("SMS_WEBHOOK_URL", ""),
			WebhookSecret:    env.str("SMS_WEBHOOK_SECRET", ""),
		},
		Auth: AuthConfig{
			SigningSecret: env.str("API_SIGNING_SECRET", ""),
			Tolerance:     env.seconds("API_SIGNATURE_TOLERANCE_SECONDS", 300),
		},
	}

	errs = append(errs, validate(cfg)...)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

func validate(cfg *Config) []error {
	var errs []error

	switch cfg.Store.Backend {
	case BackendMemory:
	case BackendMongo:
		if cfg.Store.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required for the mongo backend"))
		}
	case BackendRedis:
		if cfg.Store.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", cfg.Store.Backend))
	}

	switch cfg.Carrier.Provider {
	case CarrierNone:
	case CarrierTwilio:
		if cfg.Carrier.TwilioAccountSID == "" || cfg.Carrier.TwilioAuthToken == "" || cfg.Carrier.TwilioFrom == "" {
			errs = append(errs, errors.New("TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_FROM are required for the twilio carrier"))
		}
	case CarrierWebhook:
		if cfg.Carrier.WebhookURL == "" {
			errs = append(errs, errors.New("SMS_WEBHOOK_URL is required for the webhook carrier"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown CARRIER_PROVIDER %q", cfg.Carrier.Provider))
	}

	if cfg.Relay.SweepInterval <= 0 {
		errs = append(errs, errors.New("SWEEP_INTERVAL_SECONDS must be > 0"))
	}
	if cfg.Relay.AttemptTimeout <= 0 {
		errs = append(errs, errors.New("ATTEMPT_TIMEOUT_SECONDS must be > 0"))
	}
	if cfg.Relay.MaxContentLength <= 0 {
		errs = append(errs, errors.New("CONTENT_MAX must be > 0"))
	}
	if cfg.Relay.Concurrency <= 0 {
		errs = append(errs, errors.New("SEND_CONCURRENCY must be > 0"))
	}
	return errs
}

// envReader reads typed variables and records parse failures.
type envReader struct {
	errs *[]error
}

func (e envReader) str(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (e envReader) int(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		*e.errs = append(*e.errs, fmt.Errorf("invalid int for env %s: %q", key, v))
		return def
	}
	return i
}

func (e envReader) bool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*e.errs = append(*e.errs, fmt.Errorf("invalid bool for env %s: %q", key, v))
		return def
	}
	return b
}

func (e envReader) seconds(key string, def int) time.Duration {
	return time.Duration(e.int(key, def)) * time.Second
}
