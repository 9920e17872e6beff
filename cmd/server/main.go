package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/puzzle-leaderboard/internal/config"
	"github.com/puzzle-leaderboard/internal/handler"
	"github.com/puzzle-leaderboard/internal/kafka"
	"github.com/puzzle-leaderboard/internal/metrics"
	"github.com/puzzle-leaderboard/internal/postgres"
	"github.com/puzzle-leaderboard/internal/redis"
	"github.com/puzzle-leaderboard/internal/service"
	"github.com/puzzle-leaderboard/internal/websocket"
	"github.com/puzzle-leaderboard/internal/worker"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, fromFile, err := config.LoadOrDefault(*configPath)
	if err != nil {
		slog.Error("invalid configuration", "path", *configPath, "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)
	if !fromFile {
		logger.Warn("config file not found, using defaults", "path", *configPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// Initialize Redis
	logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
	cache, err := redis.NewStandingsCache(ctx, &cfg.Redis, cfg.Leaderboard.CacheTTL, logger)
	if err != nil {
		return err
	}
	defer cache.Close()

	// Initialize PostgreSQL
	logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	repo, err := postgres.NewRepository(ctx, &cfg.Postgres, logger)
	if err != nil {
		return err
	}
	defer repo.Close()

	if err := repo.RunMigrations(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hub := websocket.NewHub(logger)
	go hub.Run(hubCtx)

	scores := service.NewScoreService(repo, cache, cfg.Scoring, &cfg.Leaderboard, logger,
		service.WithBroadcaster(hub),
		service.WithMetrics(metrics.New(registry)),
	)
	hub.SetSnapshotSource(scores.Standings)

	refresher := worker.NewRefreshWorker(scores, &cfg.Refresh, logger)
	if cfg.Refresh.Enabled {
		refresher.Start(ctx)
		defer refresher.Stop()
	} else {
		refresher.RunOnce(ctx)
	}

	// Kafka ingestion is optional; the HTTP API keeps working without it
	if cfg.Kafka.Enabled {
		consumer, err := kafka.NewConsumer(&cfg.Kafka, scores, logger)
		if err != nil {
			logger.Warn("failed to create Kafka consumer, continuing without Kafka", "error", err)
		} else if err := consumer.Start(); err != nil {
			logger.Warn("failed to start Kafka consumer, continuing without Kafka", "error", err)
		} else {
			defer func() {
				if err := consumer.Stop(); err != nil {
					logger.Error("failed to stop Kafka consumer", "error", err)
				}
			}()
		}
	}

	httpHandler := handler.NewHandler(scores, hub, handler.Options{
		RateLimit: cfg.RateLimit,
		Gatherer:  registry,
		Checks: []handler.ReadinessCheck{
			{Name: "postgres", Check: repo.Ping},
			{Name: "redis", Check: cache.Ping},
		},
	}, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port, "games", cfg.Scoring.Games)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stopHub()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
