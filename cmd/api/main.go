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

	"github.com/gin-gonic/gin"

	"github.com/budajoliwia/PetMagic/internal/cache"
	"github.com/budajoliwia/PetMagic/internal/config"
	"github.com/budajoliwia/PetMagic/internal/database"
	"github.com/budajoliwia/PetMagic/internal/logging"
	"github.com/budajoliwia/PetMagic/internal/middleware"
	"github.com/budajoliwia/PetMagic/internal/queue"
	"github.com/budajoliwia/PetMagic/internal/quota"
	"github.com/budajoliwia/PetMagic/internal/storage"
	"github.com/budajoliwia/PetMagic/pkg/models"
)

// Store is the persistence surface the API handlers use.
type Store interface {
	Health(ctx context.Context) error
	CreateUser(ctx context.Context, user *models.User, password string) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id string) (*models.Job, error)
	ListJobsByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Job, error)
	GetGeneration(ctx context.Context, id string) (*models.Generation, error)
	ListGenerationsByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Generation, error)
	SetGenerationFavorite(ctx context.Context, id, userID string, favorite bool) error
}

// Uploader is the storage surface the API handlers use.
type Uploader interface {
	UploadBytes(ctx context.Context, objectName string, data []byte, contentType string) error
	PresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error)
}

// Publisher publishes job notifications for the workers.
type Publisher interface {
	PublishJobCreated(ctx context.Context, event *models.JobCreatedEvent) error
}

// ReadCache caches hot job and generation reads. A nil cache disables
// caching.
type ReadCache interface {
	GetJob(ctx context.Context, jobID string) (*models.Job, error)
	SetJob(ctx context.Context, job *models.Job, ttl time.Duration) error
	GetGenerations(ctx context.Context, userID string) ([]*models.Generation, error)
	SetGenerations(ctx context.Context, userID string, gens []*models.Generation, ttl time.Duration) error
	InvalidateGenerations(ctx context.Context, userID string) error
}

// QuotaReader reports a user's remaining daily budget.
type QuotaReader interface {
	Status(ctx context.Context, userID string) (*quota.Status, error)
}

type API struct {
	repo              Store
	storage           Uploader
	queue             Publisher
	cache             ReadCache
	ledger            QuotaReader
	logger            *logging.Logger
	tokenTTL          time.Duration
	defaultDailyLimit int
}

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

	// Initialize JWT secret from config
	middleware.SetJWTSecret(cfg.Auth.JWTSecret)

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

	// Initialize queue
	q, err := queue.New(cfg.Queue)
	if err != nil {
		logger.Fatalf("Failed to connect to queue: %v", err)
	}
	defer q.Close()

	// Initialize cache
	redisCache, err := cache.NewCache(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisCache.Close()

	api := &API{
		repo:              repo,
		storage:           stor,
		queue:             q,
		cache:             redisCache,
		ledger:            ledger,
		logger:            logger,
		tokenTTL:          cfg.Auth.TokenTTL,
		defaultDailyLimit: cfg.Pipeline.DefaultDailyLimit,
	}

	router := setupRouter(api)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Infof("Starting API server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server stopped")
}

func setupRouter(api *API) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())

	// Health check
	router.GET("/health", api.healthCheck)

	// Public routes
	v1 := router.Group("/api/v1")
	{
		v1.POST("/auth/register", api.register)
		v1.POST("/auth/login", api.login)
	}

	// Authenticated routes
	rl := middleware.NewRateLimiter(10, 20)
	authorized := v1.Group("")
	authorized.Use(middleware.JWTAuth(), middleware.RateLimit(rl))
	{
		authorized.POST("/jobs", api.createJob)
		authorized.GET("/jobs/:id", api.getJob)
		authorized.GET("/jobs", api.listJobs)

		authorized.GET("/generations", api.listGenerations)
		authorized.GET("/generations/:id", api.getGeneration)
		authorized.POST("/generations/:id/favorite", api.setFavorite)

		authorized.GET("/me/quota", api.quotaStatus)
	}

	return router
}

// Health check endpoint
func (api *API) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := api.repo.Health(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
	})
}
