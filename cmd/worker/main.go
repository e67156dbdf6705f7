package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openstreamhub/streamgate/internal/analytics"
	"github.com/openstreamhub/streamgate/internal/cache"
	"github.com/openstreamhub/streamgate/internal/config"
	"github.com/openstreamhub/streamgate/internal/database"
	"github.com/openstreamhub/streamgate/internal/logging"
	"github.com/openstreamhub/streamgate/internal/metrics"
	"github.com/openstreamhub/streamgate/internal/queue"
	"github.com/openstreamhub/streamgate/internal/scheduler"
	"github.com/openstreamhub/streamgate/internal/tracing"
	"github.com/openstreamhub/streamgate/pkg/models"
)

const rentalSweepInterval = 15 * time.Minute

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

	// Initialize tracing
	if cfg.Tracing.Enabled {
		_, closer, err := tracing.InitTracer("streamgate-worker", cfg.Tracing.JaegerEndpoint)
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

	// Initialize queue
	q, err := queue.New(cfg.Queue)
	if err != nil {
		logger.Fatalf("failed to connect to queue: %v", err)
	}
	defer q.Close()

	stats := analytics.NewService(redisCache, logger)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown gracefully
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("shutting down worker")
		cancel()
	}()

	// Periodic maintenance: expired rentals are deleted so the next gate
	// evaluation locks the title again.
	maint := scheduler.New(logger)
	maint.Register(scheduler.Task{
		Name:     "rental_sweep",
		Interval: rentalSweepInterval,
		Run: func(ctx context.Context) error {
			deleted, err := repo.DeleteExpiredRentals(ctx, time.Now())
			if err != nil {
				return err
			}
			if deleted > 0 {
				metrics.RentalsExpired.Add(float64(deleted))
				logger.Infof("swept %d expired rentals", deleted)
			}
			return nil
		},
	})
	maint.Register(scheduler.Task{
		Name:     "queue_depth",
		Interval: 30 * time.Second,
		Run: func(ctx context.Context) error {
			depth, err := q.QueueDepth()
			if err != nil {
				return err
			}
			metrics.QueueDepthGauge.Set(float64(depth))
			return nil
		},
	})
	maint.Start()
	defer maint.Stop()

	// Event handler
	eventHandler := func(event *models.PlaybackEvent) error {
		return stats.HandleEvent(ctx, event)
	}

	logger.Info("worker started, waiting for playback events")
	if err := q.ConsumeEvents(ctx, eventHandler); err != nil {
		logger.Fatalf("failed to consume events: %v", err)
	}

	// Wait for shutdown
	<-ctx.Done()
	logger.Info("worker stopped")
}
