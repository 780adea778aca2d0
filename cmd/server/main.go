package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/koios/countdown-renderer/internal/amqp"
	"github.com/koios/countdown-renderer/internal/config"
	"github.com/koios/countdown-renderer/internal/countdown"
	"github.com/koios/countdown-renderer/internal/fonts"
	"github.com/koios/countdown-renderer/internal/handlers"
	"github.com/koios/countdown-renderer/internal/redis"
	"github.com/koios/countdown-renderer/internal/render"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Register fonts once for the whole process
	registry, err := fonts.Init(cfg.Fonts.Path, cfg.Fonts.FallbackFamily, logger)
	if err != nil {
		logger.Fatal("Failed to initialize fonts", zap.Error(err))
	}

	pool := render.NewWorkerPool(cfg.Render.Workers, registry, countdown.NewRenderer(logger), logger)
	pool.Start()

	// Optional Redis: request stream consumer plus the render index
	var redisClient *redis.Client
	var index *render.RenderIndex
	if cfg.Redis.Enabled {
		redisClient, err = redis.NewClient(cfg.Redis, logger)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		index = render.NewRenderIndexFromClient(redisClient.Redis(), time.Duration(cfg.Redis.IndexTTL)*time.Second)
	}

	processor, err := render.NewProcessor(&cfg.Render, pool, index, logger)
	if err != nil {
		logger.Fatal("Failed to create render processor", zap.Error(err))
	}

	eventHandler := handlers.NewEventHandler(processor, logger)

	var redisConsumer *redis.Consumer
	if redisClient != nil {
		redisConsumer = redis.NewConsumer(redisClient, eventHandler, logger)
		go func() {
			if err := redisConsumer.Start(); err != nil {
				logger.Error("Redis consumer failed", zap.Error(err))
			}
		}()
	}

	var amqpConn *amqp.Connection
	if cfg.AMQP.Enabled {
		amqpConn, err = amqp.NewConnection(cfg.AMQP, logger)
		if err != nil {
			logger.Fatal("Failed to connect to AMQP", zap.Error(err))
		}
		consumer := amqp.NewConsumer(amqpConn, eventHandler, logger)
		go func() {
			if err := consumer.Start(ctx, cfg.AMQP.QueueName); err != nil && err != context.Canceled {
				logger.Error("AMQP consumer failed", zap.Error(err))
			}
		}()
	}

	// Create HTTP server for the countdown API
	mux := http.NewServeMux()
	countdownHandler := handlers.NewCountdownHandler(eventHandler.GetProcessor(), registry, logger)
	countdownHandler.RegisterRoutes(mux)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Start HTTP server
	go func() {
		logger.Info("Starting HTTP server", zap.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", zap.Error(err))
			cancel()
		}
	}()

	logger.Info("Server started",
		zap.Int("port", cfg.Server.Port),
		zap.String("output_path", cfg.Render.OutputPath),
		zap.Int("workers", cfg.Render.Workers),
		zap.Bool("redis", cfg.Redis.Enabled),
		zap.Bool("amqp", cfg.AMQP.Enabled))

	// Wait for interrupt signal or a fatal server error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")

	// Give outstanding requests a deadline for completion
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
	}

	// Stop consumers before the pool so no new jobs arrive
	cancel()
	if redisConsumer != nil {
		redisConsumer.Stop()
	}

	pool.Stop()

	if amqpConn != nil {
		amqpConn.Close()
	}
	if err := processor.Close(); err != nil {
		logger.Warn("Failed to close render index", zap.Error(err))
	}

	logger.Info("Server shutdown complete")
}

func newLogger(level string) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", level, err)
	}
	zapCfg.Level = zap.NewAtomicLevelAt(lvl)
	return zapCfg.Build()
}
