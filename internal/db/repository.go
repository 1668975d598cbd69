package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/steemit/bulletin/internal/models"
	"github.com/steemit/bulletin/pkg/telemetry"
)

// summaryColumns is the projection used by listings; content is left out.
const summaryColumns = `posts.id, posts.user_id, posts.title, posts.view_count, posts.created_at, posts.updated_at,
	users.username,
	(SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id) AS comment_count`

const detailColumns = `posts.id, posts.user_id, posts.title, posts.content, posts.view_count, posts.created_at, posts.updated_at,
	users.username,
	(SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id) AS comment_count`

// Repository provides database access methods
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// UserRepository provides user-related database operations
type UserRepository struct {
	*Repository
}

// NewUserRepository creates a new user repository
func NewUserRepository(repo *Repository) *UserRepository {
	return &UserRepository{Repository: repo}
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// Exists reports whether the username or the email is already taken
func (r *UserRepository) Exists(ctx context.Context, username, email string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("username = ? OR email = ?", username, email).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// PostRepository provides post-related database operations
type PostRepository struct {
	*Repository
}

// NewPostRepository creates a new post repository
func NewPostRepository(repo *Repository) *PostRepository {
	return &PostRepository{Repository: repo}
}

func (r *PostRepository) summaries(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("posts").
		Select(summaryColumns).
		Joins("JOIN users ON users.id = posts.user_id")
}

// List returns one page of posts, newest first, together with the total post count
func (r *PostRepository) List(ctx context.Context, page, limit int) ([]models.Post, int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "db.posts.list")
	defer span.End()

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Post{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count posts: %w", err)
	}

	posts := []models.Post{}
	if err := r.summaries(ctx).
		Order("posts.created_at DESC").
		Limit(limit).
		Offset((page - 1) * limit).
		Scan(&posts).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list posts: %w", err)
	}
	return posts, total, nil
}

// Search returns one page of posts whose title or content contains keyword, case-insensitively
func (r *PostRepository) Search(ctx context.Context, keyword string, page, limit int) ([]models.Post, int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "db.posts.search")
	defer span.End()

	pattern := likePattern(keyword)
	cond := "posts.title ILIKE ? OR posts.content ILIKE ?"

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Post{}).
		Where(cond, pattern, pattern).
		Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count search results: %w", err)
	}

	posts := []models.Post{}
	if err := r.summaries(ctx).
		Where(cond, pattern, pattern).
		Order("posts.created_at DESC").
		Limit(limit).
		Offset((page - 1) * limit).
		Scan(&posts).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to search posts: %w", err)
	}
	return posts, total, nil
}

// GetByIDs returns post summaries in the order of ids, skipping ids that no longer exist
func (r *PostRepository) GetByIDs(ctx context.Context, ids []int64) ([]models.Post, error) {
	if len(ids) == 0 {
		return []models.Post{}, nil
	}

	var found []models.Post
	if err := r.summaries(ctx).Where("posts.id IN ?", ids).Scan(&found).Error; err != nil {
		return nil, fmt.Errorf("failed to load posts: %w", err)
	}

	byID := make(map[int64]models.Post, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	posts := make([]models.Post, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			posts = append(posts, p)
		}
	}
	return posts, nil
}

// GetByID retrieves a post with its content, author name and comment count
func (r *PostRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	ctx, span := telemetry.StartSpan(ctx, "db.posts.get")
	defer span.End()

	var posts []models.Post
	if err := r.db.WithContext(ctx).
		Table("posts").
		Select(detailColumns).
		Joins("JOIN users ON users.id = posts.user_id").
		Where("posts.id = ?", id).
		Limit(1).
		Scan(&posts).Error; err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, nil
	}
	return &posts[0], nil
}

// IncrementViews adds one to the post's view counter without touching updated_at
func (r *PostRepository) IncrementViews(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + ?", 1)).Error
}

// Create creates a new post
func (r *PostRepository) Create(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Omit("Author", "Comments").Create(post).Error
}

// Update replaces a post's title and content
func (r *PostRepository) Update(ctx context.Context, id int64, title, content string) error {
	return r.db.WithContext(ctx).
		Model(&models.Post{ID: id}).
		Updates(map[string]interface{}{"title": title, "content": content}).Error
}

// Delete removes a post and its comments
func (r *PostRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return fmt.Errorf("failed to delete comments: %w", err)
		}
		return tx.Delete(&models.Post{}, id).Error
	})
}

// ListAfter returns up to limit full posts with id > afterID in id order
func (r *PostRepository) ListAfter(ctx context.Context, afterID int64, limit int) ([]models.Post, error) {
	posts := []models.Post{}
	if err := r.db.WithContext(ctx).
		Table("posts").
		Select(detailColumns).
		Joins("JOIN users ON users.id = posts.user_id").
		Where("posts.id > ?", afterID).
		Order("posts.id ASC").
		Limit(limit).
		Scan(&posts).Error; err != nil {
		return nil, fmt.Errorf("failed to scan posts after %d: %w", afterID, err)
	}
	return posts, nil
}

// CommentRepository provides comment-related database operations
type CommentRepository struct {
	*Repository
}

// NewCommentRepository creates a new comment repository
func NewCommentRepository(repo *Repository) *CommentRepository {
	return &CommentRepository{Repository: repo}
}

// ListByPost returns a post's comments, oldest first
func (r *CommentRepository) ListByPost(ctx context.Context, postID int64) ([]models.Comment, error) {
	comments := []models.Comment{}
	if err := r.db.WithContext(ctx).
		Table("comments").
		Select("comments.id, comments.post_id, comments.user_id, comments.content, comments.created_at, comments.updated_at, users.username").
		Joins("JOIN users ON users.id = comments.user_id").
		Where("comments.post_id = ?", postID).
		Order("comments.created_at ASC").
		Scan(&comments).Error; err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	return comments, nil
}

// GetByID retrieves a comment by ID
func (r *CommentRepository) GetByID(ctx context.Context, id int64) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).First(&comment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &comment, nil
}

// Create creates a new comment
func (r *CommentRepository) Create(ctx context.Context, comment *models.Comment) error {
	return r.db.WithContext(ctx).Omit("Author").Create(comment).Error
}

// Update replaces a comment's content
func (r *CommentRepository) Update(ctx context.Context, id int64, content string) error {
	return r.db.WithContext(ctx).
		Model(&models.Comment{ID: id}).
		Update("content", content).Error
}

// Delete removes a comment
func (r *CommentRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&models.Comment{}, id).Error
}

// likePattern wraps keyword for ILIKE, escaping the pattern metacharacters
func likePattern(keyword string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(keyword)
	return "%" + escaped + "%"
}
