/**
 * @description
 * This is the main entry point for the subscription service. It wires
 * together configuration, the PostgreSQL pool, the RabbitMQ producer, the
 * optional Redis sweep lock, the cron scheduler for the daily expiry sweep,
 * and the HTTP server, then runs until a termination signal.
 */
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/coursehub/subscription-service/internal/api"
	"github.com/coursehub/subscription-service/internal/app"
	"github.com/coursehub/subscription-service/internal/config"
	"github.com/coursehub/subscription-service/internal/store"
	"github.com/coursehub/subscription-service/pkg/rabbitmq"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// Load .env for local development; in deployment the variables come from
	// the environment directly.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Establish the PostgreSQL connection pool.
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Error("unable to parse database URL", "error", err)
		os.Exit(1)
	}
	poolCfg.MaxConns = 50
	poolCfg.MinConns = 5
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	// Simple protocol keeps the service compatible with transaction-pooling
	// proxies like PgBouncer.
	poolCfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		logger.Error("unable to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbpool.Close()
	logger.Info("database connection established")

	// Broker producer for lifecycle events.
	producer, err := rabbitmq.NewProducer(cfg.AMQPURL, cfg.EventsExchange)
	if err != nil {
		logger.Error("unable to connect to message broker", "error", err)
		os.Exit(1)
	}
	defer producer.Close()
	logger.Info("message broker connection established", "exchange", cfg.EventsExchange)

	// Redis is optional: without it the sweep lock degrades to a no-op and
	// row-level locking alone protects against lost updates.
	var redisClient redis.UniversalClient
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("unable to parse redis URL", "error", err)
			os.Exit(1)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
		logger.Info("redis connection configured")
	} else {
		logger.Warn("REDIS_URL not set, sweep lock disabled")
	}

	// Initialize application layers.
	repository := store.NewRepository(dbpool)
	service := app.NewService(repository)
	notifier := app.NewEventNotifier(producer)
	sweepLock := app.NewRedisSweepLock(redisClient, "coursehub:subscription:sweep_lock", time.Hour)
	jobs := app.NewJobs(ctx, repository, notifier, sweepLock, logger)
	scheduler := app.NewScheduler(jobs, logger, cfg.ExpirySweepSchedule)
	handler := api.NewHandler(service)
	router := api.NewRouter(handler, cfg.JWTSecret, cfg.InternalAPIKey)

	scheduler.Start()
	logger.Info("scheduler started")

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: router,
	}

	go func() {
		logger.Info("starting server", "port", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-sigCh
	logger.Info("shutdown signal received, gracefully shutting down")

	// Cancelling the base context stops a running sweep between rows.
	cancel()
	stopCtx := scheduler.Stop()
	<-stopCtx.Done()
	logger.Info("scheduler stopped")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}

	logger.Info("server stopped")
}
