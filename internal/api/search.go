package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/steemit/bulletin/internal/apierr"
	"github.com/steemit/bulletin/internal/cache"
	"github.com/steemit/bulletin/internal/models"
	"github.com/steemit/bulletin/pkg/logging"
)

// SearchAPI handles keyword search over posts
type SearchAPI struct {
	searcher Searcher
	listings listingCache
	logger   *zap.Logger
}

// NewSearchAPI creates a new search API
func NewSearchAPI(searcher Searcher, responses ResponseCache) *SearchAPI {
	logger := logging.WithComponent("search-api")
	return &SearchAPI{
		searcher: searcher,
		listings: listingCache{cache: responses, logger: logger},
		logger:   logger,
	}
}

// Search handles GET /search?q=
func (s *SearchAPI) Search(c *gin.Context) {
	keyword := c.Query("q")
	if strings.TrimSpace(keyword) == "" {
		respondError(c, s.logger, apierr.Validation("search keyword is required",
			apierr.FieldError{Field: "q", Message: "is required"}))
		return
	}

	ctx := c.Request.Context()
	page := parsePage(c.Query("page"))
	limit := parseLimit(c.Query("limit"))

	key := cache.SearchKey(keyword, page, limit)
	var resp models.SearchResult
	if s.listings.load(ctx, key, &resp) {
		c.JSON(http.StatusOK, resp)
		return
	}

	posts, total, err := s.searcher.Search(ctx, keyword, page, limit)
	if err != nil {
		respondError(c, s.logger, err)
		return
	}

	resp = models.SearchResult{
		Keyword:    keyword,
		Posts:      summaries(posts),
		Pagination: models.NewPagination(page, limit, total),
	}
	s.listings.store(ctx, key, resp, cache.SearchTTL)
	c.JSON(http.StatusOK, resp)
}
