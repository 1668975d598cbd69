package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/steemit/bulletin/pkg/config"
	"github.com/steemit/bulletin/pkg/logging"
)

// Router sets up API routes
type Router struct {
	auth     *AuthAPI
	posts    *PostAPI
	comments *CommentAPI
	search   *SearchAPI
	tokens   Tokens
	checks   map[string]HealthCheck
	limiter  *RateLimiter
	cfg      *config.ServerConfig
	logger   *zap.Logger
}

// NewRouter creates a new API router
func NewRouter(deps Deps, cfg *config.ServerConfig) *Router {
	useJSONFieldNames()

	logger := logging.WithComponent("api-router")

	searcher := deps.Searcher
	if searcher == nil {
		if s, ok := deps.Posts.(Searcher); ok {
			searcher = s
		}
	}

	return &Router{
		auth:     NewAuthAPI(deps.Users, deps.Tokens),
		posts:    NewPostAPI(deps.Posts, deps.Index, deps.Cache),
		comments: NewCommentAPI(deps.Comments, deps.Posts, deps.Cache),
		search:   NewSearchAPI(searcher, deps.Cache),
		tokens:   deps.Tokens,
		checks:   deps.HealthChecks,
		limiter:  NewRateLimiter(cfg.RateLimitPerMinute, logger),
		cfg:      cfg,
		logger:   logger,
	}
}

// SetupRoutes sets up all API routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	engine.Use(RequestLogger(r.logger))
	engine.Use(cors.New(r.corsConfig()))

	api := engine.Group("/api")
	api.GET("/health", r.healthHandler)

	requireAuth := RequireAuth(r.tokens, r.logger)

	authGroup := api.Group("/auth", r.limiter.Middleware())
	authGroup.POST("/register", r.auth.Register)
	authGroup.POST("/login", r.auth.Login)

	posts := api.Group("/posts")
	posts.GET("", r.posts.List)
	posts.GET("/:id", r.posts.Get)
	posts.POST("", requireAuth, r.posts.Create)
	posts.PUT("/:id", requireAuth, r.posts.Update)
	posts.DELETE("/:id", requireAuth, r.posts.Delete)

	comments := api.Group("/comments")
	comments.GET("/post/:postId", r.comments.ListByPost)
	comments.POST("", requireAuth, r.comments.Create)
	comments.PUT("/:id", requireAuth, r.comments.Update)
	comments.DELETE("/:id", requireAuth, r.comments.Delete)

	api.GET("/search", r.search.Search)
}

func (r *Router) corsConfig() cors.Config {
	cfg := cors.DefaultConfig()
	var origins []string
	for _, origin := range strings.Split(r.cfg.CORSOrigin, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization", requestIDHeader)
	cfg.ExposeHeaders = []string{requestIDHeader}
	return cfg
}

// healthHandler reports liveness and the state of backing services
func (r *Router) healthHandler(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if len(r.checks) > 0 {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		results := make(map[string]string, len(r.checks))
		for name, check := range r.checks {
			if err := check(ctx); err != nil {
				r.logger.Warn("Health check failed", zap.String("check", name), zap.Error(err))
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
				continue
			}
			results[name] = "ok"
		}
		body["checks"] = results
	}

	c.JSON(status, body)
}
