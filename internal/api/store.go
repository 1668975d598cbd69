package api

import (
	"context"
	"time"

	"github.com/steemit/bulletin/internal/auth"
	"github.com/steemit/bulletin/internal/models"
)

// UserStore persists accounts
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Exists(ctx context.Context, username, email string) (bool, error)
	Create(ctx context.Context, user *models.User) error
}

// PostStore persists posts. Lookups return nil, nil for missing posts.
type PostStore interface {
	List(ctx context.Context, page, limit int) ([]models.Post, int64, error)
	GetByID(ctx context.Context, id int64) (*models.Post, error)
	IncrementViews(ctx context.Context, id int64) error
	Create(ctx context.Context, post *models.Post) error
	Update(ctx context.Context, id int64, title, content string) error
	Delete(ctx context.Context, id int64) error
}

// CommentStore persists comments. Lookups return nil, nil for missing comments.
type CommentStore interface {
	ListByPost(ctx context.Context, postID int64) ([]models.Comment, error)
	GetByID(ctx context.Context, id int64) (*models.Comment, error)
	Create(ctx context.Context, comment *models.Comment) error
	Update(ctx context.Context, id int64, content string) error
	Delete(ctx context.Context, id int64) error
}

// Searcher answers keyword searches
type Searcher interface {
	Search(ctx context.Context, keyword string, page, limit int) ([]models.Post, int64, error)
}

// SearchIndex mirrors post writes into an external search index
type SearchIndex interface {
	IndexPost(ctx context.Context, post models.Post) error
	DeletePost(ctx context.Context, id int64) error
}

// ResponseCache stores rendered listing pages
type ResponseCache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// Tokens issues and verifies access tokens
type Tokens interface {
	Issue(user models.UserSummary) (string, error)
	Verify(token string) (*auth.Claims, error)
}

// HealthCheck probes one backing service
type HealthCheck func(ctx context.Context) error

// Deps are the collaborators the API is built from. Searcher defaults to
// Posts when it can search; Index, Cache and HealthChecks are optional.
type Deps struct {
	Users        UserStore
	Posts        PostStore
	Comments     CommentStore
	Searcher     Searcher
	Index        SearchIndex
	Cache        ResponseCache
	Tokens       Tokens
	HealthChecks map[string]HealthCheck
}
