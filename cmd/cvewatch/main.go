package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"cvewatch/internal/archive"
	"cvewatch/internal/config"
	"cvewatch/internal/feed"
	"cvewatch/internal/metrics"
	"cvewatch/internal/processor"
	"cvewatch/internal/producer"
	"cvewatch/internal/scheduler"
	"cvewatch/internal/sender"
	"cvewatch/internal/sender/email"
	"cvewatch/internal/sender/webhook"
	"cvewatch/internal/state"
)

func main() {
	// Parse command-line flags; string defaults come from the environment so
	// container deployments need no argument plumbing.
	cfg := &config.Config{}
	flag.StringVar(&cfg.WebhookURL, "webhook-url", config.GetEnvOrDefault("WEBHOOK_URL", ""), "Chat webhook URL for alert delivery")
	flag.StringVar(&cfg.KubernetesFeedURL, "kubernetes-feed-url", config.GetEnvOrDefault("KUBERNETES_FEED_URL", config.DefaultKubernetesFeedURL), "Kubernetes official CVE feed URL")
	flag.StringVar(&cfg.RedHatAPIURL, "redhat-api-url", config.GetEnvOrDefault("REDHAT_API_URL", config.DefaultRedHatAPIURL), "Red Hat security data API URL")
	flag.StringVar(&cfg.MetricsPort, "metrics-port", config.GetEnvOrDefault("METRICS_PORT", config.DefaultMetricsPort), "Port for the Prometheus metrics endpoint")
	flag.StringVar(&cfg.StateBackend, "state-backend", config.GetEnvOrDefault("STATE_BACKEND", config.StateBackendFile), "Run state backend (file or redis)")
	flag.StringVar(&cfg.StatePath, "state-path", config.GetEnvOrDefault("STATE_PATH", config.DefaultStatePath), "Path of the run state file")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", config.GetEnvOrDefault("REDIS_ADDR", "localhost:6379"), "Redis address for the redis state backend")
	flag.DurationVar(&cfg.Interval, "interval", config.DefaultInterval, "Time between check cycles")
	flag.IntVar(&cfg.LookbackHours, "lookback-hours", config.DefaultLookbackHours, "Default lookback window when no state exists")
	flag.StringVar(&cfg.KafkaBrokers, "kafka-brokers", config.GetEnvOrDefault("KAFKA_BROKERS", ""), "Kafka broker addresses (comma-separated, empty disables event publishing)")
	flag.StringVar(&cfg.KafkaTopic, "kafka-topic", config.GetEnvOrDefault("KAFKA_TOPIC", config.DefaultKafkaTopic), "Kafka topic for dispatched-advisory events")
	flag.StringVar(&cfg.PostgresDSN, "postgres-dsn", config.GetEnvOrDefault("POSTGRES_DSN", ""), "PostgreSQL connection string for the alert archive (empty disables)")
	flag.StringVar(&cfg.EmailTo, "email-to", config.GetEnvOrDefault("EMAIL_TO", ""), "Email alert recipients (comma-separated, empty disables)")
	flag.StringVar(&cfg.EmailFrom, "email-from", config.GetEnvOrDefault("EMAIL_FROM", ""), "Email alert sender address")
	flag.Parse()

	// Set up structured logging
	// Allow DEBUG level via environment variable for troubleshooting
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "DEBUG" || os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	slog.Info("Starting cvewatch",
		"metrics_port", cfg.MetricsPort,
		"state_backend", cfg.StateBackend,
		"interval", cfg.Interval,
		"lookback_hours", cfg.LookbackHours,
	)

	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	if cfg.WebhookURL == "" || !webhook.IsValidURL(cfg.WebhookURL) {
		slog.Warn("Webhook URL is missing or invalid; alerts will be logged as failed deliveries",
			"webhook_url", cfg.WebhookURL,
		)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Info("Received shutdown signal, shutting down gracefully...")
		cancel()
	}()

	// Metrics endpoint
	registry := prometheus.NewRegistry()
	recorder := metrics.NewPrometheus(registry)
	metricsServer := metrics.NewServer(cfg.MetricsPort, registry)
	go func() {
		slog.Info("Metrics server listening", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server failed", "error", err)
			cancel()
		}
	}()

	// State store
	var store state.Store
	switch cfg.StateBackend {
	case config.StateBackendRedis:
		redisClient, err := state.ConnectRedis(ctx, cfg.RedisAddr)
		if err != nil {
			slog.Error("Failed to connect to Redis", "error", err)
			slog.Info("Tip: Start Redis with 'docker compose up -d redis' or use -state-backend=file")
			os.Exit(1)
		}
		defer redisClient.Close()
		store = state.NewRedisStore(redisClient, cfg.Lookback())
	default:
		store = state.NewFileStore(cfg.StatePath, cfg.Lookback())
	}

	// Alert channels
	channels := []sender.AlertSender{webhook.NewSender(cfg.WebhookURL)}
	if cfg.EmailTo != "" {
		channels = append(channels, email.NewSender(cfg.EmailFrom, cfg.EmailTo))
		slog.Info("Email alert channel enabled", "to", cfg.EmailTo)
	}
	dispatcher := sender.NewSender(channels...)

	// Optional post-dispatch observers
	var observers []processor.Observer
	if cfg.KafkaBrokers != "" {
		kafkaProducer, err := producer.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			slog.Error("Failed to create Kafka producer", "error", err)
			slog.Info("Tip: Start Kafka with 'docker compose up -d kafka' or unset -kafka-brokers")
			os.Exit(1)
		}
		defer kafkaProducer.Close()
		observers = append(observers, kafkaProducer)
	}
	if cfg.PostgresDSN != "" {
		archiveDB, err := archive.NewDB(cfg.PostgresDSN)
		if err != nil {
			slog.Error("Failed to connect to alert archive", "error", err)
			slog.Info("Tip: Start Postgres with 'docker compose up -d postgres' or unset -postgres-dsn")
			os.Exit(1)
		}
		defer archiveDB.Close()
		if err := archiveDB.EnsureSchema(ctx); err != nil {
			slog.Error("Failed to prepare alert archive schema", "error", err)
			os.Exit(1)
		}
		observers = append(observers, archiveDB)
	}

	sources := []feed.Source{
		feed.NewKubernetesSource(cfg.KubernetesFeedURL),
		feed.NewRedHatSource(cfg.RedHatAPIURL),
	}

	proc := processor.New(dispatcher, recorder, observers...)
	sched := scheduler.New(sources, proc, store, recorder, cfg.Interval)

	slog.Info("Starting check loop", "sources", len(sources))
	sched.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Metrics server shutdown failed", "error", err)
	}

	slog.Info("cvewatch stopped")
}
