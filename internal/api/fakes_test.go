package api

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/steemit/bulletin/internal/cache"
	"github.com/steemit/bulletin/internal/models"
)

// memStore is an in-memory stand-in for the relational store
type memStore struct {
	mu       sync.Mutex
	nextID   int64
	clock    time.Time
	users    map[int64]models.User
	posts    map[int64]models.Post
	comments map[int64]models.Comment

	listCalls   int
	searchCalls int
}

func newMemStore() *memStore {
	return &memStore{
		clock:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		users:    make(map[int64]models.User),
		posts:    make(map[int64]models.Post),
		comments: make(map[int64]models.Comment),
	}
}

func (m *memStore) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

// decorate fills the computed columns of p
func (m *memStore) decorate(p models.Post) models.Post {
	p.Username = m.users[p.UserID].Username
	p.CommentCount = 0
	for _, c := range m.comments {
		if c.PostID == p.ID {
			p.CommentCount++
		}
	}
	return p
}

func (m *memStore) newestFirst(match func(models.Post) bool) []models.Post {
	var out []models.Post
	for _, p := range m.posts {
		if match(p) {
			out = append(out, m.decorate(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func paginate(posts []models.Post, page, limit int) []models.Post {
	start := (page - 1) * limit
	if start >= len(posts) {
		return []models.Post{}
	}
	end := start + limit
	if end > len(posts) {
		end = len(posts)
	}
	return posts[start:end]
}

type memUsers struct{ *memStore }

func (u memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, user := range u.users {
		if user.Email == email {
			found := user
			return &found, nil
		}
	}
	return nil, nil
}

func (u memUsers) Exists(_ context.Context, username, email string) (bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, user := range u.users {
		if user.Username == username || user.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (u memUsers) Create(_ context.Context, user *models.User) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	user.ID = u.id()
	user.CreatedAt = u.tick()
	u.users[user.ID] = *user
	return nil
}

type memPosts struct{ *memStore }

func (p memPosts) List(_ context.Context, page, limit int) ([]models.Post, int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listCalls++
	all := p.newestFirst(func(models.Post) bool { return true })
	return paginate(all, page, limit), int64(len(all)), nil
}

func (p memPosts) Search(_ context.Context, keyword string, page, limit int) ([]models.Post, int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.searchCalls++
	kw := strings.ToLower(keyword)
	all := p.newestFirst(func(post models.Post) bool {
		return strings.Contains(strings.ToLower(post.Title), kw) || strings.Contains(strings.ToLower(post.Content), kw)
	})
	return paginate(all, page, limit), int64(len(all)), nil
}

func (p memPosts) GetByID(_ context.Context, id int64) (*models.Post, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	post, ok := p.posts[id]
	if !ok {
		return nil, nil
	}
	post = p.decorate(post)
	return &post, nil
}

func (p memPosts) IncrementViews(_ context.Context, id int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if post, ok := p.posts[id]; ok {
		post.ViewCount++
		p.posts[id] = post
	}
	return nil
}

func (p memPosts) Create(_ context.Context, post *models.Post) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	post.ID = p.id()
	post.CreatedAt = p.tick()
	post.UpdatedAt = post.CreatedAt
	p.posts[post.ID] = *post
	return nil
}

func (p memPosts) Update(_ context.Context, id int64, title, content string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	post := p.posts[id]
	post.Title = title
	post.Content = content
	post.UpdatedAt = p.tick()
	p.posts[id] = post
	return nil
}

func (p memPosts) Delete(_ context.Context, id int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for cid, c := range p.comments {
		if c.PostID == id {
			delete(p.comments, cid)
		}
	}
	delete(p.posts, id)
	return nil
}

type memComments struct{ *memStore }

func (c memComments) ListByPost(_ context.Context, postID int64) ([]models.Comment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := []models.Comment{}
	for _, comment := range c.comments {
		if comment.PostID == postID {
			comment.Username = c.users[comment.UserID].Username
			out = append(out, comment)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (c memComments) GetByID(_ context.Context, id int64) (*models.Comment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	comment, ok := c.comments[id]
	if !ok {
		return nil, nil
	}
	return &comment, nil
}

func (c memComments) Create(_ context.Context, comment *models.Comment) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	comment.ID = c.id()
	comment.CreatedAt = c.tick()
	comment.UpdatedAt = comment.CreatedAt
	c.comments[comment.ID] = *comment
	return nil
}

func (c memComments) Update(_ context.Context, id int64, content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	comment := c.comments[id]
	comment.Content = content
	comment.UpdatedAt = c.tick()
	c.comments[id] = comment
	return nil
}

func (c memComments) Delete(_ context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.comments, id)
	return nil
}

// memIndex records search index writes
type memIndex struct {
	mu      sync.Mutex
	indexed []int64
	deleted []int64
}

func (i *memIndex) IndexPost(_ context.Context, post models.Post) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.indexed = append(i.indexed, post.ID)
	return nil
}

func (i *memIndex) DeletePost(_ context.Context, id int64) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.deleted = append(i.deleted, id)
	return nil
}

// memCache is a response cache without expiry
type memCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string][]byte)}
}

func (c *memCache) GetJSON(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.entries[key]
	if !ok {
		return cache.ErrMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *memCache) SetJSON(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = raw
	return nil
}

func (c *memCache) DeletePrefix(_ context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	return nil
}

func (c *memCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
