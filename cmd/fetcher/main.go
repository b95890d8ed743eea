package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rickgao/yf-price-fetcher/internal/cache"
	"github.com/rickgao/yf-price-fetcher/internal/config"
	"github.com/rickgao/yf-price-fetcher/internal/database"
	"github.com/rickgao/yf-price-fetcher/internal/fetcher"
	"github.com/rickgao/yf-price-fetcher/internal/httpapi"
	"github.com/rickgao/yf-price-fetcher/internal/logging"
	"github.com/rickgao/yf-price-fetcher/internal/lookup"
	"github.com/rickgao/yf-price-fetcher/internal/provider/yahoo"
	"github.com/rickgao/yf-price-fetcher/internal/scheduler"
	"github.com/rickgao/yf-price-fetcher/internal/store"
	"github.com/rickgao/yf-price-fetcher/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/fetcher.local.yaml", "path to config file")
	once := flag.Bool("once", false, "run a single sync and exit")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Set up structured logging
	logger, logCloser, err := logging.New(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		slog.Error("failed to set up logging", "error", err)
		os.Exit(1)
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	logger.Info("starting fetcher",
		"version", version.String(),
		"config", *configPath,
		"service", cfg.Service.Name,
	)

	if err := run(cfg, logger, *once); err != nil {
		logger.Error("fetcher failed", "error", err)
		os.Exit(1)
	}
	logger.Info("fetcher stopped")
}

func run(cfg *config.FetcherConfig, logger *slog.Logger, once bool) error {
	// Create context cancelled on shutdown signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to database
	logger.Info("connecting to database",
		"host", cfg.Database.Postgres.Host,
		"port", cfg.Database.Postgres.Port,
		"database", cfg.Database.Postgres.Name,
	)
	pool, err := database.Connect(ctx, cfg.Database.Postgres)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	if cfg.Database.Migrate {
		if err := store.Migrate(ctx, pool); err != nil {
			return err
		}
		logger.Info("schema migrated")
	}

	// Create provider client
	client := yahoo.NewClient(
		cfg.Provider.BaseURL,
		yahoo.WithLogger(logger),
		yahoo.WithTimeout(cfg.Provider.Timeout),
		yahoo.WithConcurrency(cfg.Provider.Concurrency),
	)

	// Create sync engine
	engineCfg, err := fetcher.ConfigFrom(cfg)
	if err != nil {
		return err
	}
	engine := fetcher.New(engineCfg, store.New(pool, logger), client, logger)

	if once {
		res, err := engine.Run(ctx)
		if err != nil {
			return err
		}
		logger.Info("sync finished", "processed", res.Processed, "inserted", res.Inserted)
		return nil
	}

	sched := scheduler.New(scheduler.Config{
		Spec:       cfg.Schedule.Spec,
		RunOnStart: cfg.Schedule.RunOnStart,
	}, engine, logger)

	// Lookup caches are optional
	var (
		docs   lookup.HistoryCache
		prices lookup.PriceCache
	)
	if cfg.Cache.Mongo.URI != "" {
		mc, err := cache.ConnectMongo(ctx, cfg.Cache.Mongo)
		if err != nil {
			return err
		}
		defer func() {
			dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			mc.Disconnect(dctx)
		}()
		docs = cache.NewMongoHistory(mc.Database(cfg.Cache.Mongo.Database).Collection(cfg.Cache.Mongo.Collection))
		logger.Info("history cache enabled", "collection", cfg.Cache.Mongo.Collection)
	}
	if cfg.Cache.Redis.Addr != "" {
		rc, err := cache.NewRedisClient(ctx, cfg.Cache.Redis)
		if err != nil {
			return err
		}
		defer rc.Close()
		prices = cache.NewRedisLatest(rc, cfg.Cache.Redis.TTL)
		logger.Info("latest price cache enabled", "addr", cfg.Cache.Redis.Addr)
	}
	lookups := lookup.New(lookup.Config{
		LifetimeDays: cfg.Cache.Mongo.LifetimeDays,
		Location:     engineCfg.Location,
	}, client, docs, prices, logger)

	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := sched.Stop(shutdownCtx); err != nil {
			logger.Warn("scheduler stop timed out", "error", err)
		}
	}()

	server := httpapi.NewServer(fmt.Sprintf(":%d", cfg.HTTP.Port), sched, lookups, logger)

	logger.Info("fetcher running",
		"schedule", cfg.Schedule.Spec,
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.HTTP.Port),
	)

	// Serve until shutdown
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("http server: %w", err)
	}

	logger.Info("shutting down...")
	return nil
}
