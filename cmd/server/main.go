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

	"github.com/hitster-live/internal/clock"
	"github.com/hitster-live/internal/config"
	"github.com/hitster-live/internal/handler"
	"github.com/hitster-live/internal/kafka"
	"github.com/hitster-live/internal/postgres"
	"github.com/hitster-live/internal/redis"
	"github.com/hitster-live/internal/service"
	"github.com/hitster-live/internal/store"
	"github.com/hitster-live/internal/store/memory"
	"github.com/hitster-live/internal/websocket"
	"github.com/hitster-live/internal/worker"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}
	if cfg.Game.AdminPassword == "" {
		logger.Warn("admin password is not set, host actions are disabled")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize storage
	var st store.Store
	if cfg.Postgres.Enabled {
		logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
		postgresRepo, err := postgres.NewRepository(&cfg.Postgres, logger)
		if err != nil {
			logger.Error("failed to connect to PostgreSQL", "error", err)
			os.Exit(1)
		}
		defer postgresRepo.Close()
		logger.Info("connected to PostgreSQL")

		if err := postgresRepo.RunMigrations(ctx); err != nil {
			logger.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		st = postgresRepo
	} else {
		logger.Warn("PostgreSQL disabled, game data is kept in memory only")
		st = memory.New()
	}

	gameService := service.NewGameService(st, &cfg.Game, clock.RealClock{}, logger)

	// Standings cache is optional
	if cfg.Redis.Enabled {
		logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
		cache, err := redis.NewStandingsCache(&cfg.Redis, cfg.Redis.CacheTTL, logger)
		if err != nil {
			logger.Warn("failed to connect to Redis, continuing without standings cache", "error", err)
		} else {
			defer cache.Close()
			gameService.SetCache(cache)
			logger.Info("connected to Redis")
		}
	}

	// Initialize WebSocket hub
	wsHub := websocket.NewHub(logger)
	go wsHub.Run()
	gameService.SetNotifier(wsHub)
	logger.Info("WebSocket hub initialized")

	// Opens due auto rounds even when no client is polling
	var roundWorker *worker.AutoRoundWorker
	if cfg.Scheduler.Enabled {
		roundWorker = worker.NewAutoRoundWorker(gameService, &cfg.Scheduler, logger)
		if err := roundWorker.Start(ctx); err != nil {
			logger.Error("failed to start auto-round worker", "error", err)
			os.Exit(1)
		}
	}

	// Initialize Kafka consumer for guesses from buzzer bridges
	var kafkaConsumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		logger.Info("initializing Kafka consumer",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.Topic,
		)
		var err error
		kafkaConsumer, err = kafka.NewConsumer(&cfg.Kafka, gameService, logger)
		if err != nil {
			logger.Warn("failed to create Kafka consumer, continuing without Kafka", "error", err)
		} else {
			if err := kafkaConsumer.Start(); err != nil {
				logger.Warn("failed to start Kafka consumer, continuing without Kafka", "error", err)
				kafkaConsumer = nil
			} else {
				logger.Info("Kafka consumer started successfully")
			}
		}
	}

	httpHandler := handler.NewHandler(gameService, wsHub, &cfg.Game, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop taking requests before the background writers
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	if kafkaConsumer != nil {
		if err := kafkaConsumer.Stop(); err != nil {
			logger.Error("failed to stop Kafka consumer", "error", err)
		}
	}

	if roundWorker != nil {
		if err := roundWorker.Stop(); err != nil {
			logger.Error("failed to stop auto-round worker", "error", err)
		}
	}

	wsHub.Stop()

	logger.Info("server stopped")
}
