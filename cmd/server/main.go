package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/steemit/bulletin/internal/api"
	"github.com/steemit/bulletin/internal/auth"
	"github.com/steemit/bulletin/internal/cache"
	"github.com/steemit/bulletin/internal/db"
	"github.com/steemit/bulletin/internal/search"
	"github.com/steemit/bulletin/pkg/config"
	"github.com/steemit/bulletin/pkg/logging"
	"github.com/steemit/bulletin/pkg/telemetry"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err == nil {
		err = cfg.ValidateServer()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logging.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.GetLogger().Sync()

	logger := logging.GetLogger()
	logger.Info("Starting bulletin API server")

	// Initialize telemetry
	telemetryShutdown, err := telemetry.Init(&cfg.Telemetry)
	if err != nil {
		logger.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer telemetryShutdown()

	// Initialize database
	database, err := db.New(&cfg.Database, cfg.Logging.Level)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), time.Minute)
	err = database.Migrate(migrateCtx)
	cancelMigrate()
	if err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}

	repo := db.NewRepository(database.DB)
	posts := db.NewPostRepository(repo)

	deps := api.Deps{
		Users:        db.NewUserRepository(repo),
		Posts:        posts,
		Comments:     db.NewCommentRepository(repo),
		Tokens:       auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiresIn),
		HealthChecks: map[string]api.HealthCheck{"database": database.Health},
	}

	// Initialize Redis cache
	redisCache, err := cache.New(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	if redisCache != nil {
		defer redisCache.Close()
		deps.Cache = redisCache
		deps.HealthChecks["redis"] = redisCache.Health
	}

	// Initialize search
	elastic, err := search.New(&cfg.Search, posts)
	if err != nil {
		logger.Fatal("Failed to initialize search", zap.Error(err))
	}
	if elastic != nil {
		indexCtx, cancelIndex := context.WithTimeout(context.Background(), 30*time.Second)
		err = elastic.EnsureIndex(indexCtx)
		cancelIndex()
		if err != nil {
			logger.Fatal("Failed to prepare search index", zap.Error(err))
		}
		deps.Searcher = elastic
		deps.Index = elastic
	}

	// Create Gin router
	if strings.EqualFold(cfg.Logging.Level, "DEBUG") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	api.NewRouter(deps, &cfg.Server).SetupRoutes(engine)

	// Create HTTP server
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var metricsSrv *http.Server
	if cfg.Telemetry.Enabled && cfg.Telemetry.PrometheusEnabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", telemetry.MetricsHandler())
		metricsSrv = &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Telemetry.PrometheusPort),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("Metrics server starting", zap.String("address", metricsSrv.Addr))
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("Metrics server failed", zap.Error(err))
			}
		}()
	}

	// Start server in goroutine
	go func() {
		logger.Info("Server starting", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logger.Error("Metrics server forced to shutdown", zap.Error(err))
		}
	}
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
