package postcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steemit/bulletin/internal/apierr"
	"github.com/steemit/bulletin/internal/models"
)

// fakeService serves posts from memory and counts every call
type fakeService struct {
	mu     sync.Mutex
	posts  map[int64]models.Post
	nextID int64
	calls  map[string]int
	fail   error
}

func newFakeService(n int) *fakeService {
	s := &fakeService{posts: make(map[int64]models.Post), calls: make(map[string]int)}
	for i := 1; i <= n; i++ {
		s.nextID++
		s.posts[s.nextID] = models.Post{
			ID:       s.nextID,
			UserID:   1,
			Username: "alice",
			Title:    fmt.Sprintf("post %d", s.nextID),
		}
	}
	return s
}

func (s *fakeService) record(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[op]++
	return s.fail
}

func (s *fakeService) count(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

func (s *fakeService) setFail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

func (s *fakeService) page(match func(models.Post) bool, page, limit int) ([]models.Post, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []models.Post
	for _, p := range s.posts {
		if match(p) {
			p.Content = ""
			all = append(all, p)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	start := (page - 1) * limit
	if start > len(all) {
		start = len(all)
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], int64(len(all))
}

func (s *fakeService) ListPosts(_ context.Context, page, limit int) (*models.PostList, error) {
	if err := s.record("list"); err != nil {
		return nil, err
	}
	posts, total := s.page(func(models.Post) bool { return true }, page, limit)
	return &models.PostList{Posts: posts, Pagination: models.NewPagination(page, limit, total)}, nil
}

func (s *fakeService) GetPost(_ context.Context, id int64) (*models.Post, error) {
	if err := s.record("get"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return nil, apierr.NotFound("post not found")
	}
	p.ViewCount++
	s.posts[id] = p
	return &p, nil
}

func (s *fakeService) SearchPosts(_ context.Context, keyword string, page, limit int) (*models.SearchResult, error) {
	if err := s.record("search"); err != nil {
		return nil, err
	}
	posts, total := s.page(func(p models.Post) bool { return strings.Contains(p.Title, keyword) }, page, limit)
	return &models.SearchResult{Keyword: keyword, Posts: posts, Pagination: models.NewPagination(page, limit, total)}, nil
}

func (s *fakeService) CreatePost(_ context.Context, input models.PostInput) (*models.PostEnvelope, error) {
	if err := s.record("create"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	p := models.Post{ID: s.nextID, UserID: 1, Username: "alice", Title: input.Title, Content: input.Content}
	s.posts[p.ID] = p
	return &models.PostEnvelope{Message: "created", Post: p}, nil
}

func (s *fakeService) UpdatePost(_ context.Context, id int64, input models.PostInput) (*models.PostEnvelope, error) {
	if err := s.record("update"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return nil, apierr.NotFound("post not found")
	}
	p.Title, p.Content = input.Title, input.Content
	s.posts[id] = p
	return &models.PostEnvelope{Message: "updated", Post: p}, nil
}

func (s *fakeService) DeletePost(_ context.Context, id int64) error {
	if err := s.record("delete"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[id]; !ok {
		return apierr.NotFound("post not found")
	}
	delete(s.posts, id)
	return nil
}

func mustJSON(t *testing.T, v interface{}) string {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return string(raw)
}

func TestRepeatedReadsAreServedFromCache(t *testing.T) {
	svc := newFakeService(12)
	f := NewFetcher(svc, nil)
	ctx := context.Background()

	first, err := f.FetchPosts(ctx, 1, 10, false)
	require.NoError(t, err)
	firstSearch, err := f.SearchPosts(ctx, "post 1", 1, 10, false)
	require.NoError(t, err)
	firstPost, err := f.FetchPostByID(ctx, 12, false)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		again, err := f.FetchPosts(ctx, 1, 10, false)
		require.NoError(t, err)
		assert.Equal(t, mustJSON(t, first), mustJSON(t, again))

		search, err := f.SearchPosts(ctx, "post 1", 1, 10, false)
		require.NoError(t, err)
		assert.Equal(t, mustJSON(t, firstSearch), mustJSON(t, search))

		post, err := f.FetchPostByID(ctx, 12, false)
		require.NoError(t, err)
		assert.Equal(t, mustJSON(t, firstPost), mustJSON(t, post))
	}

	assert.Equal(t, 1, svc.count("list"))
	assert.Equal(t, 1, svc.count("search"))
	assert.Equal(t, 0, svc.count("get"), "post 12 was warmed by the list read")
}

func TestListReadWarmsSinglePostEntries(t *testing.T) {
	svc := newFakeService(5)
	f := NewFetcher(svc, nil)
	ctx := context.Background()

	list, err := f.FetchPosts(ctx, 1, 10, false)
	require.NoError(t, err)
	require.Len(t, list.Posts, 5)

	_, ok := f.GetListByPage(1)
	assert.True(t, ok)
	for id := int64(1); id <= 5; id++ {
		_, ok := f.GetPostByID(id)
		assert.True(t, ok, "post %d should be cached", id)
	}
	assert.Equal(t, Stats{PostsCount: 5, ListPagesCount: 1, TotalCachedItems: 6}, f.Stats())

	post, err := f.FetchPostByID(ctx, 3, false)
	require.NoError(t, err)
	assert.Equal(t, "post 3", post.Title)
	assert.Equal(t, 0, svc.count("get"))
}

func TestSearchReadWarmsSinglePostEntries(t *testing.T) {
	svc := newFakeService(3)
	f := NewFetcher(svc, nil)

	result, err := f.SearchPosts(context.Background(), "post 2", 0, 0, false)
	require.NoError(t, err)
	require.Len(t, result.Posts, 1)
	assert.Equal(t, 10, result.Pagination.Limit)

	_, ok := f.GetSearchResults("post 2", 1)
	assert.True(t, ok)
	_, ok = f.GetPostByID(2)
	assert.True(t, ok)
	_, ok = f.GetSearchResults("post 3", 1)
	assert.False(t, ok)
}

func TestCreateClearsListingsAndCachesNewPost(t *testing.T) {
	svc := newFakeService(3)
	f := NewFetcher(svc, nil)
	ctx := context.Background()

	before, err := f.FetchPosts(ctx, 1, 10, false)
	require.NoError(t, err)
	_, err = f.SearchPosts(ctx, "post", 1, 10, false)
	require.NoError(t, err)

	created, err := f.CreatePost(ctx, models.PostInput{Title: "T", Content: "C"})
	require.NoError(t, err)
	assert.Equal(t, "T", created.Title)

	_, ok := f.GetListByPage(1)
	assert.False(t, ok)
	_, ok = f.GetSearchResults("post", 1)
	assert.False(t, ok)

	cached, ok := f.GetPostByID(created.ID)
	require.True(t, ok)
	assert.Equal(t, "C", cached.Content)

	after, err := f.FetchPosts(ctx, 1, 10, false)
	require.NoError(t, err)
	assert.Equal(t, 2, svc.count("list"))
	assert.Equal(t, int64(3), before.Pagination.TotalPosts)
	assert.Equal(t, int64(4), after.Pagination.TotalPosts)
	assert.Equal(t, "T", after.Posts[0].Title)
}

func TestUpdateReplacesCachedPost(t *testing.T) {
	svc := newFakeService(3)
	f := NewFetcher(svc, nil)
	ctx := context.Background()

	_, err := f.FetchPostByID(ctx, 2, false)
	require.NoError(t, err)
	_, err = f.FetchPosts(ctx, 1, 10, false)
	require.NoError(t, err)

	_, err = f.UpdatePost(ctx, 2, models.PostInput{Title: "edited", Content: "new body"})
	require.NoError(t, err)

	post, err := f.FetchPostByID(ctx, 2, false)
	require.NoError(t, err)
	assert.Equal(t, "edited", post.Title)
	assert.Equal(t, "new body", post.Content)
	assert.Equal(t, 1, svc.count("get"))

	_, ok := f.GetListByPage(1)
	assert.False(t, ok)
}

func TestDeleteDropsCachedPost(t *testing.T) {
	svc := newFakeService(3)
	f := NewFetcher(svc, nil)
	ctx := context.Background()

	_, err := f.FetchPosts(ctx, 1, 10, false)
	require.NoError(t, err)
	require.NoError(t, f.DeletePost(ctx, 2))

	_, ok := f.GetPostByID(2)
	assert.False(t, ok)
	_, ok = f.GetListByPage(1)
	assert.False(t, ok)

	_, err = f.FetchPostByID(ctx, 2, false)
	require.Error(t, err)
	assert.True(t, apierr.IsNotFound(err))
	assert.Equal(t, 1, svc.count("get"))

	_, ok = f.GetPostByID(2)
	assert.False(t, ok, "a failed read caches nothing")
}

func TestIncrementViewCount(t *testing.T) {
	svc := newFakeService(2)
	f := NewFetcher(svc, nil)

	f.IncrementViewCount(1)
	_, ok := f.GetPostByID(1)
	assert.False(t, ok, "an uncached post gets no entry")
	assert.Equal(t, 0, f.Stats().TotalCachedItems)

	post, err := f.FetchPostByID(context.Background(), 1, false)
	require.NoError(t, err)
	require.Equal(t, int64(1), post.ViewCount)

	f.IncrementViewCount(1)
	f.IncrementViewCount(1)
	cached, ok := f.GetPostByID(1)
	require.True(t, ok)
	assert.Equal(t, int64(3), cached.ViewCount)
	assert.Equal(t, int64(1), post.ViewCount, "values handed out earlier are unaffected")
	assert.Equal(t, 1, svc.count("get"))
}

func TestAdjustCommentCount(t *testing.T) {
	svc := newFakeService(1)
	f := NewFetcher(svc, nil)

	f.AdjustCommentCount(1, 1)
	_, ok := f.GetPostByID(1)
	assert.False(t, ok)

	_, err := f.FetchPostByID(context.Background(), 1, false)
	require.NoError(t, err)

	f.AdjustCommentCount(1, 2)
	cached, _ := f.GetPostByID(1)
	assert.Equal(t, int64(2), cached.CommentCount)

	f.AdjustCommentCount(1, -5)
	cached, _ = f.GetPostByID(1)
	assert.Equal(t, int64(0), cached.CommentCount)
}

func TestForceRefreshBypassesCache(t *testing.T) {
	svc := newFakeService(2)
	f := NewFetcher(svc, nil)
	ctx := context.Background()

	_, err := f.FetchPostByID(ctx, 1, false)
	require.NoError(t, err)
	post, err := f.FetchPostByID(ctx, 1, true)
	require.NoError(t, err)
	assert.Equal(t, int64(2), post.ViewCount)
	assert.Equal(t, 2, svc.count("get"))

	cached, _ := f.GetPostByID(1)
	assert.Equal(t, int64(2), cached.ViewCount)

	_, err = f.FetchPosts(ctx, 1, 10, false)
	require.NoError(t, err)
	_, err = f.FetchPosts(ctx, 1, 10, true)
	require.NoError(t, err)
	assert.Equal(t, 2, svc.count("list"))
}

func TestLimitIsNotPartOfTheKey(t *testing.T) {
	svc := newFakeService(30)
	f := NewFetcher(svc, nil)
	ctx := context.Background()

	first, err := f.FetchPosts(ctx, 1, 10, false)
	require.NoError(t, err)
	second, err := f.FetchPosts(ctx, 1, 20, false)
	require.NoError(t, err)

	assert.Len(t, second.Posts, 10)
	assert.Equal(t, first.Pagination, second.Pagination)
	assert.Equal(t, 1, svc.count("list"))
}

func TestFailedWritesLeaveCacheUntouched(t *testing.T) {
	svc := newFakeService(3)
	f := NewFetcher(svc, nil)
	ctx := context.Background()

	_, err := f.FetchPosts(ctx, 1, 10, false)
	require.NoError(t, err)
	_, err = f.SearchPosts(ctx, "post", 1, 10, false)
	require.NoError(t, err)
	before := f.Stats()
	cachedBefore, _ := f.GetPostByID(2)

	boom := apierr.Forbidden("you can only modify your own posts")
	svc.setFail(boom)

	_, err = f.CreatePost(ctx, models.PostInput{Title: "T", Content: "C"})
	assert.ErrorIs(t, err, boom)
	_, err = f.UpdatePost(ctx, 2, models.PostInput{Title: "x", Content: "y"})
	assert.ErrorIs(t, err, boom)
	err = f.DeletePost(ctx, 2)
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, before, f.Stats())
	cachedAfter, ok := f.GetPostByID(2)
	require.True(t, ok)
	assert.Equal(t, cachedBefore, cachedAfter)
}

func TestFailedReadsCacheNothing(t *testing.T) {
	svc := newFakeService(3)
	f := NewFetcher(svc, nil)
	ctx := context.Background()

	transport := errors.New("connection refused")
	svc.setFail(transport)

	_, err := f.FetchPosts(ctx, 1, 10, false)
	assert.ErrorIs(t, err, transport)
	_, err = f.SearchPosts(ctx, "post", 1, 10, false)
	assert.ErrorIs(t, err, transport)
	_, err = f.FetchPostByID(ctx, 1, false)
	assert.ErrorIs(t, err, transport)

	assert.Equal(t, Stats{}, f.Stats())
}

func TestReturnedValuesAreCopies(t *testing.T) {
	svc := newFakeService(3)
	f := NewFetcher(svc, nil)
	ctx := context.Background()

	list, err := f.FetchPosts(ctx, 1, 10, false)
	require.NoError(t, err)
	list.Posts[0].Title = "scribbled"
	list.Posts = nil

	again, err := f.FetchPosts(ctx, 1, 10, false)
	require.NoError(t, err)
	require.Len(t, again.Posts, 3)
	assert.Equal(t, "post 3", again.Posts[0].Title)

	post, _ := f.GetPostByID(3)
	post.Title = "scribbled"
	cached, _ := f.GetPostByID(3)
	assert.Equal(t, "post 3", cached.Title)
}

func TestClearAll(t *testing.T) {
	svc := newFakeService(3)
	f := NewFetcher(svc, nil)
	ctx := context.Background()

	_, err := f.FetchPosts(ctx, 1, 10, false)
	require.NoError(t, err)
	_, err = f.SearchPosts(ctx, "post", 1, 10, false)
	require.NoError(t, err)
	require.NotZero(t, f.Stats().TotalCachedItems)

	f.ClearAll()
	assert.Equal(t, Stats{}, f.Stats())
}

func TestSeparateFetchersDoNotShareState(t *testing.T) {
	svc := newFakeService(3)
	a := NewFetcher(svc, nil)
	b := NewFetcher(svc, nil)

	_, err := a.FetchPosts(context.Background(), 1, 10, false)
	require.NoError(t, err)
	assert.Equal(t, 4, a.Stats().TotalCachedItems)
	assert.Equal(t, 0, b.Stats().TotalCachedItems)
}

func TestConcurrentReadsAreSafe(t *testing.T) {
	svc := newFakeService(20)
	f := NewFetcher(svc, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			page := i%2 + 1
			_, err := f.FetchPosts(ctx, page, 10, false)
			assert.NoError(t, err)
			f.IncrementViewCount(int64(i + 1))
		}(i)
	}
	wg.Wait()

	calls := svc.count("list")
	assert.GreaterOrEqual(t, calls, 2)
	assert.LessOrEqual(t, calls, 16)
	assert.Equal(t, 2, f.Stats().ListPagesCount)
	assert.Equal(t, 20, f.Stats().PostsCount)
}
