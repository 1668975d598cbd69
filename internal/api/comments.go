package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/steemit/bulletin/internal/apierr"
	"github.com/steemit/bulletin/internal/models"
	"github.com/steemit/bulletin/pkg/logging"
)

// CommentAPI handles comments on posts
type CommentAPI struct {
	comments CommentStore
	posts    PostStore
	listings listingCache
	logger   *zap.Logger
}

// NewCommentAPI creates a new comment API. Comment writes change the
// comment counts shown in listings, so they invalidate cached listings too.
func NewCommentAPI(comments CommentStore, posts PostStore, responses ResponseCache) *CommentAPI {
	logger := logging.WithComponent("comment-api")
	return &CommentAPI{
		comments: comments,
		posts:    posts,
		listings: listingCache{cache: responses, logger: logger},
		logger:   logger,
	}
}

// ListByPost handles GET /comments/post/:postId
func (a *CommentAPI) ListByPost(c *gin.Context) {
	postID, err := parseID(c.Param("postId"), "post")
	if err != nil {
		respondError(c, a.logger, err)
		return
	}

	comments, err := a.comments.ListByPost(c.Request.Context(), postID)
	if err != nil {
		respondError(c, a.logger, err)
		return
	}
	if comments == nil {
		comments = []models.Comment{}
	}
	c.JSON(http.StatusOK, models.CommentList{Comments: comments})
}

// Create handles POST /comments
func (a *CommentAPI) Create(c *gin.Context) {
	claims := currentUser(c)

	var input models.CommentInput
	if !bindJSON(c, a.logger, &input) {
		return
	}
	content, contentErr := trimmedText("content", input.Content, 1, 1000)
	if err := collect(contentErr); err != nil {
		respondError(c, a.logger, err)
		return
	}

	ctx := c.Request.Context()
	post, err := a.posts.GetByID(ctx, input.PostID)
	if err != nil {
		respondError(c, a.logger, err)
		return
	}
	if post == nil {
		respondError(c, a.logger, apierr.NotFound("post not found"))
		return
	}

	comment := &models.Comment{PostID: input.PostID, UserID: claims.UserID, Content: content}
	if err := a.comments.Create(ctx, comment); err != nil {
		respondError(c, a.logger, err)
		return
	}
	comment.Username = claims.Username

	a.listings.invalidate(ctx)
	c.JSON(http.StatusCreated, models.CommentEnvelope{Message: "Comment created successfully", Comment: *comment})
}

// Update handles PUT /comments/:id. Only the author may edit a comment.
func (a *CommentAPI) Update(c *gin.Context) {
	id, err := parseID(c.Param("id"), "comment")
	if err != nil {
		respondError(c, a.logger, err)
		return
	}

	var input models.CommentUpdate
	if !bindJSON(c, a.logger, &input) {
		return
	}
	content, contentErr := trimmedText("content", input.Content, 1, 1000)
	if err := collect(contentErr); err != nil {
		respondError(c, a.logger, err)
		return
	}

	ctx := c.Request.Context()
	comment, err := a.ownedComment(c, id)
	if err != nil {
		respondError(c, a.logger, err)
		return
	}

	if err := a.comments.Update(ctx, id, content); err != nil {
		respondError(c, a.logger, err)
		return
	}

	updated, err := a.comments.GetByID(ctx, id)
	if err != nil {
		respondError(c, a.logger, err)
		return
	}
	if updated == nil {
		comment.Content = content
		updated = comment
	}
	updated.Username = currentUser(c).Username

	c.JSON(http.StatusOK, models.CommentEnvelope{Message: "Comment updated successfully", Comment: *updated})
}

// Delete handles DELETE /comments/:id
func (a *CommentAPI) Delete(c *gin.Context) {
	id, err := parseID(c.Param("id"), "comment")
	if err != nil {
		respondError(c, a.logger, err)
		return
	}

	ctx := c.Request.Context()
	if _, err := a.ownedComment(c, id); err != nil {
		respondError(c, a.logger, err)
		return
	}

	if err := a.comments.Delete(ctx, id); err != nil {
		respondError(c, a.logger, err)
		return
	}

	a.listings.invalidate(ctx)
	c.JSON(http.StatusOK, gin.H{"message": "Comment deleted successfully"})
}

func (a *CommentAPI) ownedComment(c *gin.Context, id int64) (*models.Comment, error) {
	comment, err := a.comments.GetByID(c.Request.Context(), id)
	if err != nil {
		return nil, err
	}
	if comment == nil {
		return nil, apierr.NotFound("comment not found")
	}
	if comment.UserID != currentUser(c).UserID {
		return nil, apierr.Forbidden("you can only modify your own comments")
	}
	return comment, nil
}
