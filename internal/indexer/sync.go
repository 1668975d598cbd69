package indexer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/steemit/bulletin/internal/models"
	"github.com/steemit/bulletin/pkg/logging"
	"github.com/steemit/bulletin/pkg/telemetry"
)

// PostSource pages through stored posts in id order
type PostSource interface {
	ListAfter(ctx context.Context, afterID int64, limit int) ([]models.Post, error)
}

// Sink receives batches of posts to index. IndexBatch stamps documents with
// the pass time and Prune drops documents stamped before it.
type Sink interface {
	EnsureIndex(ctx context.Context) error
	IndexBatch(ctx context.Context, posts []models.Post, indexedAt time.Time) error
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// Result summarizes one reindex pass
type Result struct {
	Posts   int
	Batches int
	LastID  int64
	Pruned  int64
	Elapsed time.Duration
}

// Sync copies every stored post into the search index and removes documents
// of posts that are gone
type Sync struct {
	source    PostSource
	sink      Sink
	batchSize int
	now       func() time.Time
	logger    *zap.Logger
}

// NewSync creates a new reindexer
func NewSync(source PostSource, sink Sink, batchSize int) *Sync {
	if batchSize <= 0 {
		batchSize = 200
	}
	return &Sync{
		source:    source,
		sink:      sink,
		batchSize: batchSize,
		now:       time.Now,
		logger:    logging.WithComponent("indexer"),
	}
}

// Run makes a single pass over all posts. Only a pass that reaches the end
// prunes; an interrupted pass leaves stale documents for the next one.
func (s *Sync) Run(ctx context.Context) (Result, error) {
	ctx, span := telemetry.StartSpan(ctx, "indexer.reindex")
	defer span.End()

	start := s.now().UTC()
	s.logger.Info("Starting reindex", zap.Int("batch_size", s.batchSize))

	if err := s.sink.EnsureIndex(ctx); err != nil {
		return Result{}, fmt.Errorf("failed to prepare index: %w", err)
	}

	var res Result
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		posts, err := s.source.ListAfter(ctx, res.LastID, s.batchSize)
		if err != nil {
			return res, fmt.Errorf("failed to load posts after %d: %w", res.LastID, err)
		}
		if len(posts) == 0 {
			break
		}

		if err := s.sink.IndexBatch(ctx, posts, start); err != nil {
			return res, fmt.Errorf("failed to index posts %d-%d: %w", posts[0].ID, posts[len(posts)-1].ID, err)
		}

		res.Posts += len(posts)
		res.Batches++
		res.LastID = posts[len(posts)-1].ID

		s.logger.Debug("Indexed post batch",
			zap.Int64("from", posts[0].ID),
			zap.Int64("to", res.LastID),
			zap.Int("count", len(posts)))

		if len(posts) < s.batchSize {
			break
		}
	}

	pruned, err := s.sink.Prune(ctx, start)
	if err != nil {
		return res, fmt.Errorf("failed to prune stale documents: %w", err)
	}
	res.Pruned = pruned

	res.Elapsed = s.now().Sub(start)
	s.logger.Info("Reindex complete",
		zap.Int("posts", res.Posts),
		zap.Int("batches", res.Batches),
		zap.Int64("pruned", res.Pruned),
		zap.Duration("elapsed", res.Elapsed))
	return res, nil
}

// Follow repeats Run every interval until ctx is cancelled. Failed passes are
// logged and retried on the next tick.
func (s *Sync) Follow(ctx context.Context, interval time.Duration) error {
	s.logger.Info("Following posts", zap.Duration("interval", interval))
	for {
		if _, err := s.Run(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Error("Reindex pass failed", zap.Error(err))
		}
		if !s.wait(ctx, interval) {
			return ctx.Err()
		}
	}
}

// wait waits for d or until ctx is cancelled, reporting whether d elapsed
func (s *Sync) wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
