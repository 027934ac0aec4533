package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"

	"shopilent/internal/cache"
	"shopilent/internal/config"
	"shopilent/internal/database"
	"shopilent/internal/metrics"
	"shopilent/internal/outbox"
	"shopilent/internal/payments"
	"shopilent/internal/repositories"
	"shopilent/internal/server"
	"shopilent/pkg/kafka"
	"shopilent/pkg/logger"
	"shopilent/pkg/rabbitmq"
)

// broker is an outbox relay target that owns a connection.
type broker interface {
	outbox.Publisher
	Close() error
}

func main() {
	configPath := pflag.StringP("config", "c", "", "path to a config file (yaml, json or toml)")
	pflag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "shopilent: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	// --- Configuration ---
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		Output:     cfg.Logger.Output,
		FilePath:   cfg.Logger.FilePath,
		MaxSize:    cfg.Logger.MaxSize,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAge:     cfg.Logger.MaxAge,
		Compress:   cfg.Logger.Compress,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// --- Infrastructure ---
	db, err := database.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	appCache, err := openCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer appCache.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(registry)
	if err != nil {
		return err
	}

	// --- Services ---
	provider := payments.NewStripeProvider(cfg.Stripe)
	svc, err := server.NewServices(cfg, db, appCache, provider, m)
	if err != nil {
		return err
	}

	// --- Outbox worker ---
	processor := outbox.NewProcessor(repositories.NewGORMOutboxRepository(db), outbox.Config{
		Interval:    cfg.Outbox.Interval,
		BatchSize:   cfg.Outbox.BatchSize,
		MaxAttempts: cfg.Outbox.MaxAttempts,
	}, m)
	processor.Register(outbox.Wildcard, outbox.NewCacheInvalidationHandler(appCache))

	relay, err := openBroker(cfg.Broker)
	if err != nil {
		return err
	}
	if relay != nil {
		defer relay.Close()
		processor.Register(outbox.Wildcard, outbox.NewRelayHandler(relay))
	}

	workerCtx, stopWorker := context.WithCancel(context.Background())
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		processor.Run(workerCtx)
	}()

	// --- HTTP ---
	app := server.New(svc, server.Options{
		AppName:   cfg.App.Name,
		AccessLog: cfg.App.Env != "production",
		Metrics:   m,
		Gatherer:  registry,
		Ping:      db.SQL.PingContext,
	})

	listenErr := make(chan error, 1)
	go func() {
		logger.Info(ctx, "Starting server", "port", cfg.App.Port, "env", cfg.App.Env)
		listenErr <- app.Listen(cfg.App.Port)
	}()

	select {
	case err := <-listenErr:
		stopWorker()
		<-workerDone
		return fmt.Errorf("server failed to start: %w", err)
	case <-ctx.Done():
	}

	logger.Info(context.Background(), "Shutting down server...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error(context.Background(), "Error during Fiber shutdown", "error", err)
	}
	stopWorker()
	<-workerDone

	logger.Info(context.Background(), "Server gracefully stopped")
	return nil
}

func openCache(ctx context.Context, cfg *config.Config) (cache.Cache, error) {
	switch cfg.Cache.Driver {
	case "redis":
		client, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return cache.NewRedisCache(client, cfg.App.Name), nil
	default:
		return cache.NewLocalCache(ctx, cfg.Cache.TTL)
	}
}

func openBroker(cfg config.BrokerConfig) (broker, error) {
	switch cfg.Driver {
	case "rabbitmq":
		return rabbitmq.NewClient(rabbitmq.Config{URL: cfg.URL, Exchange: cfg.Exchange})
	case "kafka":
		return kafka.NewProducer(kafka.Config{Brokers: cfg.Brokers, Topic: cfg.Topic})
	default:
		return nil, nil
	}
}
