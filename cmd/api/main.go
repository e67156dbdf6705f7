package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/openstreamhub/streamgate/internal/bandwidth"
	"github.com/openstreamhub/streamgate/internal/cache"
	"github.com/openstreamhub/streamgate/internal/config"
	"github.com/openstreamhub/streamgate/internal/database"
	"github.com/openstreamhub/streamgate/internal/logging"
	"github.com/openstreamhub/streamgate/internal/metrics"
	"github.com/openstreamhub/streamgate/internal/middleware"
	"github.com/openstreamhub/streamgate/internal/playback"
	"github.com/openstreamhub/streamgate/internal/progress"
	"github.com/openstreamhub/streamgate/internal/queue"
	"github.com/openstreamhub/streamgate/internal/storage"
	"github.com/openstreamhub/streamgate/internal/tracing"
)

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewDefaultLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	// Initialize JWT secret from config
	middleware.SetJWTSecret(cfg.Auth.JWTSecret)

	// Initialize tracing
	if cfg.Tracing.Enabled {
		_, closer, err := tracing.InitTracer("streamgate-api", cfg.Tracing.JaegerEndpoint)
		if err != nil {
			logger.Fatalf("failed to initialize tracer: %v", err)
		}
		defer closer.Close()
	}

	// Initialize database
	db, err := database.New(cfg.Database)
	if err != nil {
		logger.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	repo := database.NewRepository(db)

	// Initialize cache
	redisCache, err := cache.NewCache(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisCache.Close()

	// Initialize object storage
	stor, err := storage.New(cfg.Storage)
	if err != nil {
		logger.Fatalf("failed to initialize storage: %v", err)
	}

	// Initialize queue
	q, err := queue.New(cfg.Queue)
	if err != nil {
		logger.Fatalf("failed to connect to queue: %v", err)
	}
	defer q.Close()

	// Start metrics server
	metricsServer := metrics.NewServer(cfg.Metrics.Port)
	go func() {
		if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("metrics server stopped: %v", err)
		}
	}()

	estimator := bandwidth.NewEstimator(cfg.Bandwidth.DefaultBPS, cfg.Bandwidth.ProbeSizeBytes, cfg.Bandwidth.ResampleEvery)
	tracker := progress.NewTracker(repo, q, cfg.Progress, cfg.Playback, logger)
	sessions := playback.NewService(repo, redisCache, stor, q, tracker, estimator, cfg.Playback, logger)

	api := &API{
		repo:      repo,
		cache:     redisCache,
		queue:     q,
		sessions:  sessions,
		tracker:   tracker,
		estimator: estimator,
		cfg:       cfg,
		logger:    logger,
	}

	router := setupRouter(api)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Infof("starting api server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatalf("server forced to shutdown: %v", err)
	}
	if err := metricsServer.Shutdown(ctx); err != nil {
		logger.Errorf("metrics server shutdown: %v", err)
	}

	logger.Info("server stopped")
}
