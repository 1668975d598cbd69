// Package client is a typed client for the bulletin REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/steemit/bulletin/internal/models"
	"github.com/steemit/bulletin/pkg/config"
	"github.com/steemit/bulletin/pkg/logging"
	"github.com/steemit/bulletin/pkg/telemetry"
)

const dialTimeout = 10 * time.Second

// Client calls the bulletin REST API. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger

	mu    sync.RWMutex
	token string
}

// authenticatedTransport adds the current bearer token to every request
type authenticatedTransport struct {
	client              *Client
	underlyingTransport http.RoundTripper
}

// RoundTrip executes a single HTTP transaction and adds the Authorization header
func (t *authenticatedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if token := t.client.Token(); token != "" {
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return t.underlyingTransport.RoundTrip(req)
}

// New creates a client from configuration
func New(cfg *config.ClientConfig) *Client {
	c := newClient(cfg.APIURL)
	c.http = &http.Client{
		Transport: &authenticatedTransport{
			client: c,
			underlyingTransport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: dialTimeout}).DialContext,
			},
		},
		Timeout: cfg.RequestTimeout,
	}
	c.SetToken(cfg.Token)
	return c
}

// NewWithTransport creates a client for baseURL sending requests through rt
func NewWithTransport(baseURL string, rt http.RoundTripper) *Client {
	c := newClient(baseURL)
	c.http = &http.Client{Transport: &authenticatedTransport{client: c, underlyingTransport: rt}}
	return c
}

func newClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logging.WithComponent("api-client"),
	}
}

// Token returns the bearer token sent with requests
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken replaces the bearer token sent with requests
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Register creates an account and keeps the returned token
func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	var resp models.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register", nil, req, &resp); err != nil {
		return nil, err
	}
	c.SetToken(resp.Token)
	return &resp, nil
}

// Login signs in and keeps the returned token
func (c *Client) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	var resp models.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, req, &resp); err != nil {
		return nil, err
	}
	c.SetToken(resp.Token)
	return &resp, nil
}

// ListPosts fetches one page of posts
func (c *Client) ListPosts(ctx context.Context, page, limit int) (*models.PostList, error) {
	var resp models.PostList
	if err := c.do(ctx, http.MethodGet, "/posts", pageQuery(page, limit), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetPost fetches one post. The server counts this as a view.
func (c *Client) GetPost(ctx context.Context, id int64) (*models.Post, error) {
	var resp models.Post
	if err := c.do(ctx, http.MethodGet, postPath(id), nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SearchPosts fetches one page of posts matching keyword
func (c *Client) SearchPosts(ctx context.Context, keyword string, page, limit int) (*models.SearchResult, error) {
	query := pageQuery(page, limit)
	query.Set("q", keyword)

	var resp models.SearchResult
	if err := c.do(ctx, http.MethodGet, "/search", query, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreatePost publishes a new post
func (c *Client) CreatePost(ctx context.Context, input models.PostInput) (*models.PostEnvelope, error) {
	var resp models.PostEnvelope
	if err := c.do(ctx, http.MethodPost, "/posts", nil, input, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdatePost replaces a post's title and content
func (c *Client) UpdatePost(ctx context.Context, id int64, input models.PostInput) (*models.PostEnvelope, error) {
	var resp models.PostEnvelope
	if err := c.do(ctx, http.MethodPut, postPath(id), nil, input, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeletePost removes a post and its comments
func (c *Client) DeletePost(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, postPath(id), nil, nil, nil)
}

// ListComments fetches a post's comments, oldest first
func (c *Client) ListComments(ctx context.Context, postID int64) ([]models.Comment, error) {
	var resp models.CommentList
	if err := c.do(ctx, http.MethodGet, "/comments/post/"+strconv.FormatInt(postID, 10), nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Comments, nil
}

// CreateComment adds a comment to a post
func (c *Client) CreateComment(ctx context.Context, input models.CommentInput) (*models.Comment, error) {
	var resp models.CommentEnvelope
	if err := c.do(ctx, http.MethodPost, "/comments", nil, input, &resp); err != nil {
		return nil, err
	}
	return &resp.Comment, nil
}

// UpdateComment replaces a comment's content
func (c *Client) UpdateComment(ctx context.Context, id int64, content string) (*models.Comment, error) {
	var resp models.CommentEnvelope
	if err := c.do(ctx, http.MethodPut, commentPath(id), nil, models.CommentUpdate{Content: content}, &resp); err != nil {
		return nil, err
	}
	return &resp.Comment, nil
}

// DeleteComment removes a comment
func (c *Client) DeleteComment(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, commentPath(id), nil, nil, nil)
}

// Health checks that the API is reachable
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil, nil)
}

func postPath(id int64) string {
	return "/posts/" + strconv.FormatInt(id, 10)
}

func commentPath(id int64) string {
	return "/comments/" + strconv.FormatInt(id, 10)
}

func pageQuery(page, limit int) url.Values {
	query := url.Values{}
	if page > 0 {
		query.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	return query
}

// do sends one request and decodes a successful response into dest
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, dest interface{}) error {
	ctx, span := telemetry.StartSpan(ctx, "client "+method+" "+path)
	defer span.End()

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	c.logger.Debug("API request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)))

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return HandleApiError(resp, raw)
	}

	if dest == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}
