package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/budajoliwia/PetMagic/internal/config"
	"github.com/budajoliwia/PetMagic/internal/database"
	"github.com/budajoliwia/PetMagic/internal/imaging"
	"github.com/budajoliwia/PetMagic/internal/logging"
	"github.com/budajoliwia/PetMagic/internal/metrics"
	"github.com/budajoliwia/PetMagic/internal/pipeline"
	"github.com/budajoliwia/PetMagic/internal/provider"
	"github.com/budajoliwia/PetMagic/internal/queue"
	"github.com/budajoliwia/PetMagic/internal/quota"
	"github.com/budajoliwia/PetMagic/internal/storage"
	"github.com/budajoliwia/PetMagic/pkg/models"
)

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	// Initialize database
	db, err := database.New(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.RunMigrations(cfg.Database); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}

	repo := database.NewRepository(db)
	ledger := quota.NewLedger(db.Pool, cfg.Pipeline.DefaultDailyLimit)

	// Initialize storage
	stor, err := storage.New(cfg.Storage)
	if err != nil {
		logger.Fatalf("Failed to initialize storage: %v", err)
	}

	// Initialize generation provider
	gen, err := provider.New(cfg.Provider)
	if err != nil {
		logger.Fatalf("Failed to initialize generation provider: %v", err)
	}

	// Initialize queue
	q, err := queue.New(cfg.Queue)
	if err != nil {
		logger.Fatalf("Failed to connect to queue: %v", err)
	}
	defer q.Close()

	orchestrator := pipeline.New(repo, ledger, stor, gen, imaging.Normalize, cfg.Pipeline.JobTimeout, logger)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Metrics endpoint
	metricsServer := metrics.NewServer(cfg.Metrics.Port)
	go func() {
		if err := metricsServer.Start(); err != nil {
			logger.ErrorWithErr("Metrics server failed", err)
		}
	}()

	// Report queue depth periodically
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if depth, err := q.Depth(); err == nil {
					metrics.JobsQueueDepth.Set(float64(depth))
				}
			}
		}
	}()

	// Handle shutdown gracefully
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutting down worker gracefully...")
		cancel()
	}()

	handler := func(ctx context.Context, event *models.JobCreatedEvent) error {
		return orchestrator.ProcessJob(ctx, event)
	}

	logger.Info("Worker started, waiting for jobs...")
	if err := q.ConsumeJobCreated(ctx, handler); err != nil {
		logger.Fatalf("Failed to consume jobs: %v", err)
	}

	// Wait for shutdown
	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = metricsServer.Shutdown(shutdownCtx)

	logger.Info("Worker stopped")
}
