package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/steemit/bulletin/internal/db"
	"github.com/steemit/bulletin/internal/indexer"
	"github.com/steemit/bulletin/internal/search"
	"github.com/steemit/bulletin/pkg/config"
	"github.com/steemit/bulletin/pkg/logging"
	"github.com/steemit/bulletin/pkg/telemetry"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
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
	logger.Info("Starting bulletin search indexer")

	if !cfg.Search.Enabled {
		logger.Fatal("elasticsearch_url is not set; nothing to index into")
	}

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

	posts := db.NewPostRepository(db.NewRepository(database.DB))

	elastic, err := search.New(&cfg.Search, posts)
	if err != nil {
		logger.Fatal("Failed to initialize search", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reindexer := indexer.NewSync(posts, elastic, cfg.Indexer.BatchSize)
	if cfg.Indexer.Interval > 0 {
		err = reindexer.Follow(ctx, cfg.Indexer.Interval)
	} else {
		_, err = reindexer.Run(ctx)
	}

	switch {
	case err == nil:
		logger.Info("Indexer exited")
	case errors.Is(err, context.Canceled):
		logger.Info("Indexer interrupted")
	default:
		logger.Error("Indexer failed", zap.Error(err))
		os.Exit(1)
	}
}
