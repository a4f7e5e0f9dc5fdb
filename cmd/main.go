package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/auth"
	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/cache"
	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/config"
	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/kafka"
	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/logger"
	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/matching"
	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/repository/postgresql"
	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/server"
	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/stats"
	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/storage"
	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/storage/memory"
)

func main() {
	envFile := pflag.String("env-file", "", "dotenv file to load (default: nearest .env or .example.env)")
	pflag.Parse()

	cfg, err := config.Load(*envFile)
	if err == nil {
		err = cfg.RequireSecret()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Error("service stopped with error", zap.Error(err))
		os.Exit(1)
	}
	log.Info("service stopped")
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	var store storage.Store
	switch cfg.StorageDriver {
	case config.DriverMemory:
		log.Warn("using in-memory storage, data is lost on restart")
		store = memory.New()
	case config.DriverPostgres:
		database, err := db.NewDb(ctx, cfg.DB)
		if err != nil {
			return fmt.Errorf("database init: %w", err)
		}
		defer database.Close()

		if err := db.EnsureSchema(ctx, database); err != nil {
			return fmt.Errorf("schema bootstrap: %w", err)
		}

		outboxRepo := postgresql.NewOutboxTaskRepo()
		store = storage.NewPostgresStore(
			database,
			postgresql.NewUserRepo(database),
			postgresql.NewListingRepo(database),
			postgresql.NewRequestRepo(database),
			outboxRepo,
			cfg.KafkaTopic,
		)

		publisher := kafka.NewPublisher(database, outboxRepo, kafka.NewProducer(cfg.KafkaBrokers, log), kafka.PublisherConfig{
			PollInterval: cfg.OutboxPollInterval,
			BatchSize:    cfg.OutboxBatchSize,
			MaxAttempts:  cfg.OutboxMaxAttempts,
		}, log.Named("outbox"))
		g.Go(func() error { return publisher.Run(gctx) })
	default:
		return fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}

	authSvc, err := auth.NewService(
		store,
		cache.NewUserCache(store, log.Named("cache")),
		auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL),
		log.Named("auth"),
		cfg.BcryptCost,
	)
	if err != nil {
		return err
	}

	srv := server.New(
		authSvc,
		matching.NewEngine(store, log.Named("matching")),
		stats.NewAggregator(store, log.Named("stats")),
		store,
		server.NewAuditManager(cfg.AuditWorkers, cfg.AuditBatchSize, cfg.AuditFlushTimeout, log.Named("audit")),
		log.Named("http"),
	)
	g.Go(func() error { return srv.Run(gctx, cfg.HTTPPort) })

	return g.Wait()
}
