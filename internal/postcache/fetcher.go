package postcache

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/steemit/bulletin/internal/models"
	"github.com/steemit/bulletin/pkg/logging"
	"github.com/steemit/bulletin/pkg/telemetry"
)

const (
	defaultPage  = 1
	defaultLimit = 10
)

// PostService is the remote API the Fetcher reads through
type PostService interface {
	ListPosts(ctx context.Context, page, limit int) (*models.PostList, error)
	GetPost(ctx context.Context, id int64) (*models.Post, error)
	SearchPosts(ctx context.Context, keyword string, page, limit int) (*models.SearchResult, error)
	CreatePost(ctx context.Context, input models.PostInput) (*models.PostEnvelope, error)
	UpdatePost(ctx context.Context, id int64, input models.PostInput) (*models.PostEnvelope, error)
	DeletePost(ctx context.Context, id int64) error
}

// Fetcher answers reads from its Store when it can and invalidates the Store
// on writes.
//
// Two concurrent misses for the same key both reach the service, and a slow
// read that finishes after a write stores what it read. Sequential callers
// always see each operation's cache effects before the next one starts.
type Fetcher struct {
	service PostService
	store   *Store
	logger  *zap.Logger

	hits          metric.Int64Counter
	misses        metric.Int64Counter
	invalidations metric.Int64Counter
}

// NewFetcher creates a fetcher over service. A nil store gets a fresh one.
func NewFetcher(service PostService, store *Store) *Fetcher {
	if store == nil {
		store = NewStore()
	}
	f := &Fetcher{
		service: service,
		store:   store,
		logger:  logging.WithComponent("postcache"),
	}
	f.hits = f.counter("postcache.hits", "Reads answered from the post cache")
	f.misses = f.counter("postcache.misses", "Reads that went to the API")
	f.invalidations = f.counter("postcache.invalidations", "Namespaces cleared by writes")
	return f
}

func (f *Fetcher) counter(name, description string) metric.Int64Counter {
	c, err := telemetry.Meter().Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		f.logger.Warn("Failed to create counter", zap.String("counter", name), zap.Error(err))
		return noop.Int64Counter{}
	}
	return c
}

// Store returns the fetcher's store
func (f *Fetcher) Store() *Store {
	return f.store
}

func (f *Fetcher) hit(ctx context.Context, ns NamespaceID, key string) {
	f.hits.Add(ctx, 1, metric.WithAttributes(attribute.String("namespace", string(ns))))
	f.logger.Debug("Cache hit", zap.String("namespace", string(ns)), zap.String("key", key))
}

func (f *Fetcher) miss(ctx context.Context, ns NamespaceID, key string, force bool) {
	f.misses.Add(ctx, 1, metric.WithAttributes(attribute.String("namespace", string(ns))))
	f.logger.Debug("Cache miss", zap.String("namespace", string(ns)), zap.String("key", key), zap.Bool("forced", force))
}

// invalidateListings clears the list and search namespaces
func (f *Fetcher) invalidateListings(ctx context.Context, reason string) {
	f.store.Clear(NamespaceLists)
	f.store.Clear(NamespaceSearches)
	f.invalidations.Add(ctx, 2)
	f.logger.Debug("Listing caches cleared", zap.String("reason", reason))
}

func normalize(page, limit int) (int, int) {
	if page < 1 {
		page = defaultPage
	}
	if limit < 1 {
		limit = defaultLimit
	}
	return page, limit
}

// warm stores every post of a listing under its own key
func (f *Fetcher) warm(posts []models.Post) {
	for _, p := range posts {
		f.store.Posts.Put(PostKey(p.ID), p)
	}
}

// FetchPosts returns one page of posts. The cache key is the page alone, so a
// cached page is returned whatever limit it was fetched with.
func (f *Fetcher) FetchPosts(ctx context.Context, page, limit int, force bool) (*models.PostList, error) {
	page, limit = normalize(page, limit)
	key := PageKey(page)

	if !force {
		if cached, ok := f.store.Lists.Get(key); ok {
			f.hit(ctx, NamespaceLists, key)
			return &cached, nil
		}
	}
	f.miss(ctx, NamespaceLists, key, force)

	resp, err := f.service.ListPosts(ctx, page, limit)
	if err != nil {
		return nil, err
	}

	f.store.Lists.Put(key, *resp)
	f.warm(resp.Posts)
	out := clonePostList(*resp)
	return &out, nil
}

// FetchPostByID returns one post. A fetch from the API counts as a view on
// the server.
func (f *Fetcher) FetchPostByID(ctx context.Context, id int64, force bool) (*models.Post, error) {
	key := PostKey(id)

	if !force {
		if cached, ok := f.store.Posts.Get(key); ok {
			f.hit(ctx, NamespacePosts, key)
			return &cached, nil
		}
	}
	f.miss(ctx, NamespacePosts, key, force)

	post, err := f.service.GetPost(ctx, id)
	if err != nil {
		return nil, err
	}

	f.store.Posts.Put(key, *post)
	out := clonePost(*post)
	return &out, nil
}

// SearchPosts returns one page of posts matching keyword
func (f *Fetcher) SearchPosts(ctx context.Context, keyword string, page, limit int, force bool) (*models.SearchResult, error) {
	page, limit = normalize(page, limit)
	key := SearchKey(keyword, page)

	if !force {
		if cached, ok := f.store.Searches.Get(key); ok {
			f.hit(ctx, NamespaceSearches, key)
			return &cached, nil
		}
	}
	f.miss(ctx, NamespaceSearches, key, force)

	resp, err := f.service.SearchPosts(ctx, keyword, page, limit)
	if err != nil {
		return nil, err
	}

	f.store.Searches.Put(key, *resp)
	f.warm(resp.Posts)
	out := cloneSearchResult(*resp)
	return &out, nil
}

// CreatePost publishes a post. On success every cached listing is dropped and
// the new post is cached under its id.
func (f *Fetcher) CreatePost(ctx context.Context, input models.PostInput) (*models.Post, error) {
	resp, err := f.service.CreatePost(ctx, input)
	if err != nil {
		return nil, err
	}

	f.invalidateListings(ctx, "post created")
	f.store.Posts.Put(PostKey(resp.Post.ID), resp.Post)
	out := clonePost(resp.Post)
	return &out, nil
}

// UpdatePost edits a post. On success the cached post is replaced and every
// cached listing is dropped.
func (f *Fetcher) UpdatePost(ctx context.Context, id int64, input models.PostInput) (*models.Post, error) {
	resp, err := f.service.UpdatePost(ctx, id, input)
	if err != nil {
		return nil, err
	}

	f.store.Posts.Put(PostKey(id), resp.Post)
	f.invalidateListings(ctx, "post updated")
	out := clonePost(resp.Post)
	return &out, nil
}

// DeletePost removes a post. On success the cached post and every cached
// listing are dropped.
func (f *Fetcher) DeletePost(ctx context.Context, id int64) error {
	if err := f.service.DeletePost(ctx, id); err != nil {
		return err
	}

	f.store.Posts.Delete(PostKey(id))
	f.invalidateListings(ctx, "post deleted")
	return nil
}

// IncrementViewCount bumps the cached post's view count without calling the
// API. Uncached posts are left alone.
func (f *Fetcher) IncrementViewCount(id int64) {
	f.store.Posts.Update(PostKey(id), func(p models.Post) models.Post {
		p.ViewCount++
		return p
	})
}

// AdjustCommentCount moves the cached post's comment count by delta, never
// below zero, without calling the API. Uncached posts are left alone.
func (f *Fetcher) AdjustCommentCount(id int64, delta int64) {
	f.store.Posts.Update(PostKey(id), func(p models.Post) models.Post {
		p.CommentCount += delta
		if p.CommentCount < 0 {
			p.CommentCount = 0
		}
		return p
	})
}

// GetPostByID returns the cached post, if any, without calling the API
func (f *Fetcher) GetPostByID(id int64) (*models.Post, bool) {
	p, ok := f.store.Posts.Get(PostKey(id))
	if !ok {
		return nil, false
	}
	return &p, true
}

// GetListByPage returns the cached list page, if any, without calling the API
func (f *Fetcher) GetListByPage(page int) (*models.PostList, bool) {
	l, ok := f.store.Lists.Get(PageKey(page))
	if !ok {
		return nil, false
	}
	return &l, true
}

// GetSearchResults returns the cached search page, if any, without calling the API
func (f *Fetcher) GetSearchResults(keyword string, page int) (*models.SearchResult, bool) {
	r, ok := f.store.Searches.Get(SearchKey(keyword, page))
	if !ok {
		return nil, false
	}
	return &r, true
}

// ClearAll empties the whole cache
func (f *Fetcher) ClearAll() {
	f.store.ClearAll()
	f.logger.Debug("All caches cleared")
}

// Stats returns the current entry counts
func (f *Fetcher) Stats() Stats {
	return f.store.Stats()
}
