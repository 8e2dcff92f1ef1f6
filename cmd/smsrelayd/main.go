// Command smsrelayd runs the relay API and the attempt timeout sweep.
//
// Configuration is read from the environment and an optional .env file.
// "smsrelayd gen-secret" prints a fresh signing secret and exits.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/smsrelay"
	"github.com/xraph/smsrelay/api"
	"github.com/xraph/smsrelay/dispatch"
	"github.com/xraph/smsrelay/gateway/fcm"
	"github.com/xraph/smsrelay/gateway/twilio"
	"github.com/xraph/smsrelay/gateway/webhook"
	"github.com/xraph/smsrelay/i18n"
	"github.com/xraph/smsrelay/internal/config"
	"github.com/xraph/smsrelay/observability"
	"github.com/xraph/smsrelay/realloc"
	"github.com/xraph/smsrelay/signature"
	"github.com/xraph/smsrelay/store"
	"github.com/xraph/smsrelay/store/memory"
	"github.com/xraph/smsrelay/store/mongo"
	"github.com/xraph/smsrelay/store/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if len(os.Args) > 1 && os.Args[1] == "gen-secret" {
		fmt.Println(signature.GenerateSecret())
		return
	}

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "smsrelayd: config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("smsrelayd exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := []smsrelay.Option{
		smsrelay.WithStore(st),
		smsrelay.WithLogger(logger),
		smsrelay.WithLocaliser(i18n.New()),
		smsrelay.WithMetrics(observability.NewMetrics(reg)),
		smsrelay.WithTracer(observability.NewTracer()),
		smsrelay.WithTimeoutAfter(cfg.Relay.AttemptTimeout),
		smsrelay.WithSweepInterval(cfg.Relay.SweepInterval),
		smsrelay.WithSweepBatchSize(cfg.Relay.SweepBatchSize),
		smsrelay.WithMaxContentLength(cfg.Relay.MaxContentLength),
		smsrelay.WithConcurrency(cfg.Relay.Concurrency),
		smsrelay.WithCarrierRate(cfg.Relay.CarrierRate),
	}
	if cfg.Relay.FallbackOnExhaustion {
		opts = append(opts, smsrelay.WithFallbackPolicy(realloc.FallbackOnExhaustion))
	}
	if cfg.FCM.ProjectID != "" {
		opts = append(opts, smsrelay.WithPushGateway(fcm.New(fcm.Config{
			ProjectID:   cfg.FCM.ProjectID,
			AccessToken: cfg.FCM.AccessToken,
			BaseURL:     cfg.FCM.BaseURL,
		})))
	} else {
		logger.Warn("no push gateway configured; donors will not be notified")
	}
	if carrier := newCarrier(cfg.Carrier); carrier != nil {
		opts = append(opts, smsrelay.WithCarrierGateway(carrier))
	} else {
		logger.Warn("no carrier gateway configured; fallback sends will fail")
	}

	relay, err := smsrelay.New(opts...)
	if err != nil {
		return fmt.Errorf("create relay: %w", err)
	}

	var auth api.Authenticator
	if cfg.Auth.SigningSecret != "" {
		auth = api.SignedAuthenticator{Secret: cfg.Auth.SigningSecret, Tolerance: cfg.Auth.Tolerance}
	}

	mux := http.NewServeMux()
	mux.Handle("/", api.NewHandler(relay, auth, logger))
	if cfg.Server.MetricsEnabled {
		mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	relay.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("smsrelayd listening",
			"addr", cfg.Server.Address,
			"store", cfg.Store.Backend,
			"carrier", cfg.Carrier.Provider,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			relay.Stop(context.Background())
			return fmt.Errorf("http server: %w", err)
		}
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
	relay.Stop(shutdownCtx)
	return nil
}

func openStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Backend {
	case config.BackendMongo:
		s, err := mongo.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.BackendRedis:
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		s := redis.New(rdb)
		if err := s.Ping(ctx); err != nil {
			_ = rdb.Close()
			return nil, err
		}
		return s, nil
	default:
		return memory.New(), nil
	}
}

func newCarrier(cfg config.CarrierConfig) dispatch.CarrierGateway {
	switch cfg.Provider {
	case config.CarrierTwilio:
		return twilio.New(twilio.Config{
			AccountSID: cfg.TwilioAccountSID,
			AuthToken:  cfg.TwilioAuthToken,
			From:       cfg.TwilioFrom,
		})
	case config.CarrierWebhook:
		return webhook.New(cfg.WebhookURL, cfg.WebhookSecret, 0)
	default:
		return nil
	}
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
