package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/steemit/bulletin/internal/apierr"
	"github.com/steemit/bulletin/internal/cache"
	"github.com/steemit/bulletin/internal/models"
	"github.com/steemit/bulletin/pkg/logging"
)

// PostAPI handles post listing, detail and writes
type PostAPI struct {
	posts    PostStore
	index    SearchIndex
	listings listingCache
	logger   *zap.Logger
}

// NewPostAPI creates a new post API. index and responses may be nil.
func NewPostAPI(posts PostStore, index SearchIndex, responses ResponseCache) *PostAPI {
	logger := logging.WithComponent("post-api")
	return &PostAPI{
		posts:    posts,
		index:    index,
		listings: listingCache{cache: responses, logger: logger},
		logger:   logger,
	}
}

// List handles GET /posts
func (p *PostAPI) List(c *gin.Context) {
	ctx := c.Request.Context()
	page := parsePage(c.Query("page"))
	limit := parseLimit(c.Query("limit"))

	key := cache.ListKey(page, limit)
	var resp models.PostList
	if p.listings.load(ctx, key, &resp) {
		c.JSON(http.StatusOK, resp)
		return
	}

	posts, total, err := p.posts.List(ctx, page, limit)
	if err != nil {
		respondError(c, p.logger, err)
		return
	}

	resp = models.PostList{
		Posts:      summaries(posts),
		Pagination: models.NewPagination(page, limit, total),
	}
	p.listings.store(ctx, key, resp, cache.ListTTL)
	c.JSON(http.StatusOK, resp)
}

// Get handles GET /posts/:id. Every successful read counts as a view.
func (p *PostAPI) Get(c *gin.Context) {
	id, err := parseID(c.Param("id"), "post")
	if err != nil {
		respondError(c, p.logger, err)
		return
	}

	ctx := c.Request.Context()
	if err := p.posts.IncrementViews(ctx, id); err != nil {
		respondError(c, p.logger, err)
		return
	}

	post, err := p.posts.GetByID(ctx, id)
	if err != nil {
		respondError(c, p.logger, err)
		return
	}
	if post == nil {
		respondError(c, p.logger, apierr.NotFound("post not found"))
		return
	}
	c.JSON(http.StatusOK, post)
}

// Create handles POST /posts
func (p *PostAPI) Create(c *gin.Context) {
	claims := currentUser(c)
	title, content, ok := p.bindPost(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	post := &models.Post{UserID: claims.UserID, Title: title, Content: content}
	if err := p.posts.Create(ctx, post); err != nil {
		respondError(c, p.logger, err)
		return
	}

	created, err := p.posts.GetByID(ctx, post.ID)
	if err != nil {
		respondError(c, p.logger, err)
		return
	}
	if created == nil {
		post.Username = claims.Username
		created = post
	}

	p.afterWrite(c, created)
	p.logger.Info("Post created", zap.Int64("post_id", created.ID), zap.Int64("user_id", claims.UserID))
	c.JSON(http.StatusCreated, models.PostEnvelope{Message: "Post created successfully", Post: *created})
}

// Update handles PUT /posts/:id. Only the author may update a post.
func (p *PostAPI) Update(c *gin.Context) {
	id, err := parseID(c.Param("id"), "post")
	if err != nil {
		respondError(c, p.logger, err)
		return
	}
	title, content, ok := p.bindPost(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if _, err := p.ownedPost(c, id); err != nil {
		respondError(c, p.logger, err)
		return
	}

	if err := p.posts.Update(ctx, id, title, content); err != nil {
		respondError(c, p.logger, err)
		return
	}

	updated, err := p.posts.GetByID(ctx, id)
	if err != nil {
		respondError(c, p.logger, err)
		return
	}
	if updated == nil {
		respondError(c, p.logger, apierr.NotFound("post not found"))
		return
	}

	p.afterWrite(c, updated)
	c.JSON(http.StatusOK, models.PostEnvelope{Message: "Post updated successfully", Post: *updated})
}

// Delete handles DELETE /posts/:id. The post's comments go with it.
func (p *PostAPI) Delete(c *gin.Context) {
	id, err := parseID(c.Param("id"), "post")
	if err != nil {
		respondError(c, p.logger, err)
		return
	}

	ctx := c.Request.Context()
	if _, err := p.ownedPost(c, id); err != nil {
		respondError(c, p.logger, err)
		return
	}

	if err := p.posts.Delete(ctx, id); err != nil {
		respondError(c, p.logger, err)
		return
	}

	if p.index != nil {
		if err := p.index.DeletePost(ctx, id); err != nil {
			p.logger.Warn("Failed to remove post from search index", zap.Int64("post_id", id), zap.Error(err))
		}
	}
	p.listings.invalidate(ctx)

	p.logger.Info("Post deleted", zap.Int64("post_id", id))
	c.JSON(http.StatusOK, gin.H{"message": "Post deleted successfully"})
}

func (p *PostAPI) bindPost(c *gin.Context) (string, string, bool) {
	var input models.PostInput
	if !bindJSON(c, p.logger, &input) {
		return "", "", false
	}
	title, titleErr := trimmedText("title", input.Title, 1, 200)
	content, contentErr := trimmedText("content", input.Content, 1, 0)
	if err := collect(titleErr, contentErr); err != nil {
		respondError(c, p.logger, err)
		return "", "", false
	}
	return title, content, true
}

// ownedPost loads post id and checks the caller wrote it
func (p *PostAPI) ownedPost(c *gin.Context, id int64) (*models.Post, error) {
	post, err := p.posts.GetByID(c.Request.Context(), id)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, apierr.NotFound("post not found")
	}
	if post.UserID != currentUser(c).UserID {
		return nil, apierr.Forbidden("you can only modify your own posts")
	}
	return post, nil
}

// afterWrite mirrors a written post into the search index and drops cached listings
func (p *PostAPI) afterWrite(c *gin.Context, post *models.Post) {
	ctx := c.Request.Context()
	if p.index != nil {
		if err := p.index.IndexPost(ctx, *post); err != nil {
			p.logger.Warn("Failed to index post", zap.Int64("post_id", post.ID), zap.Error(err))
		}
	}
	p.listings.invalidate(ctx)
}

// summaries strips post bodies from a listing
func summaries(posts []models.Post) []models.Post {
	out := make([]models.Post, len(posts))
	for i, post := range posts {
		post.Content = ""
		out[i] = post
	}
	return out
}
