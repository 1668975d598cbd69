package api

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/steemit/bulletin/internal/cache"
)

// listingCache keeps rendered post listings in the response cache. A nil
// cache or a cache failure behaves like a miss.
type listingCache struct {
	cache  ResponseCache
	logger *zap.Logger
}

func (l listingCache) load(ctx context.Context, key string, dest interface{}) bool {
	if l.cache == nil {
		return false
	}
	err := l.cache.GetJSON(ctx, key, dest)
	switch {
	case err == nil:
		return true
	case errors.Is(err, cache.ErrMiss), errors.Is(err, cache.ErrCacheDisabled):
	default:
		l.logger.Warn("Failed to read cached listing", zap.String("key", key), zap.Error(err))
	}
	return false
}

func (l listingCache) store(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if l.cache == nil {
		return
	}
	err := l.cache.SetJSON(ctx, key, value, ttl)
	if err != nil && !errors.Is(err, cache.ErrCacheDisabled) {
		l.logger.Warn("Failed to cache listing", zap.String("key", key), zap.Error(err))
	}
}

// invalidate drops every cached listing
func (l listingCache) invalidate(ctx context.Context) {
	if l.cache == nil {
		return
	}
	err := l.cache.DeletePrefix(ctx, cache.PostsPrefix)
	if err != nil && !errors.Is(err, cache.ErrCacheDisabled) {
		l.logger.Warn("Failed to invalidate cached listings", zap.Error(err))
	}
}
