package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"go.uber.org/zap"

	"github.com/steemit/bulletin/internal/models"
	"github.com/steemit/bulletin/pkg/config"
	"github.com/steemit/bulletin/pkg/logging"
	"github.com/steemit/bulletin/pkg/telemetry"
)

// The wildcard subfields serve substring matching; indexed_at stamps the
// reindex pass or live write that last wrote a document.
const fieldMapping = `{
	"properties": {
		"id": {"type": "long"},
		"user_id": {"type": "long"},
		"title": {"type": "text", "fields": {"sub": {"type": "wildcard"}}},
		"content": {"type": "text", "fields": {"sub": {"type": "wildcard"}}},
		"created_at": {"type": "date"},
		"indexed_at": {"type": "date"}
	}
}`

const indexMapping = `{"mappings": ` + fieldMapping + `}`

// PostLoader hydrates search hits into post summaries
type PostLoader interface {
	GetByIDs(ctx context.Context, ids []int64) ([]models.Post, error)
}

// Elastic answers keyword searches from an Elasticsearch index and keeps the index in step with writes
type Elastic struct {
	client *elasticsearch.Client
	index  string
	loader PostLoader
	logger *zap.Logger
}

// document is the indexed form of a post
type document struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	IndexedAt time.Time `json:"indexed_at"`
}

func toDocument(post models.Post, indexedAt time.Time) document {
	return document{
		ID:        post.ID,
		UserID:    post.UserID,
		Title:     post.Title,
		Content:   post.Content,
		CreatedAt: post.CreatedAt,
		IndexedAt: indexedAt.UTC(),
	}
}

// New creates the Elasticsearch backend. It returns nil when search is not configured.
func New(cfg *config.SearchConfig, loader PostLoader) (*Elastic, error) {
	if !cfg.Enabled {
		logging.GetLogger().Info("Elasticsearch disabled, searching the database")
		return nil, nil
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	return NewWithClient(client, cfg.Index, loader), nil
}

// NewWithClient wraps an existing client
func NewWithClient(client *elasticsearch.Client, index string, loader PostLoader) *Elastic {
	return &Elastic{
		client: client,
		index:  index,
		loader: loader,
		logger: logging.WithComponent("elasticsearch"),
	}
}

// EnsureIndex creates the posts index if it does not exist. An existing index
// gets any missing fields added to its mapping; documents written before that
// pick them up on the next reindex.
func (e *Elastic) EnsureIndex(ctx context.Context) error {
	req := esapi.IndicesCreateRequest{
		Index: e.index,
		Body:  strings.NewReader(indexMapping),
	}

	res, err := req.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer res.Body.Close()

	if !res.IsError() {
		return nil
	}
	if !strings.Contains(res.String(), "resource_already_exists_exception") {
		return fmt.Errorf("error creating index: %s", res.String())
	}

	mapping := esapi.IndicesPutMappingRequest{
		Index: []string{e.index},
		Body:  strings.NewReader(fieldMapping),
	}
	mres, err := mapping.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("failed to update index mapping: %w", err)
	}
	defer mres.Body.Close()

	if mres.IsError() {
		return fmt.Errorf("error updating index mapping: %s", mres.String())
	}
	return nil
}

// IndexPost adds or replaces the document for post
func (e *Elastic) IndexPost(ctx context.Context, post models.Post) error {
	ctx, span := telemetry.StartSpan(ctx, "search.index_post")
	defer span.End()

	body, err := json.Marshal(toDocument(post, time.Now()))
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      e.index,
		DocumentID: strconv.FormatInt(post.ID, 10),
		Body:       bytes.NewReader(body),
		Refresh:    "true",
	}

	res, err := req.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("failed to index post %d: %w", post.ID, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error indexing post %d: %s", post.ID, res.String())
	}
	return nil
}

// DeletePost removes the document for id; a missing document is not an error
func (e *Elastic) DeletePost(ctx context.Context, id int64) error {
	req := esapi.DeleteRequest{
		Index:      e.index,
		DocumentID: strconv.FormatInt(id, 10),
		Refresh:    "true",
	}

	res, err := req.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("failed to delete post %d from index: %w", id, err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("error deleting post %d from index: %s", id, res.String())
	}
	return nil
}

// IndexBatch bulk-indexes posts, stamping each document with indexedAt
func (e *Elastic) IndexBatch(ctx context.Context, posts []models.Post, indexedAt time.Time) error {
	if len(posts) == 0 {
		return nil
	}

	body, err := buildBulkBody(e.index, posts, indexedAt)
	if err != nil {
		return err
	}

	res, err := e.client.Bulk(bytes.NewReader(body),
		e.client.Bulk.WithContext(ctx),
		e.client.Bulk.WithRefresh("false"),
	)
	if err != nil {
		return fmt.Errorf("failed to bulk index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("bulk index error: %s", res.String())
	}

	var summary struct {
		Errors bool `json:"errors"`
	}
	if err := json.NewDecoder(res.Body).Decode(&summary); err != nil {
		return fmt.Errorf("failed to parse bulk response: %w", err)
	}
	if summary.Errors {
		return fmt.Errorf("bulk index reported item failures")
	}
	return nil
}

// Prune deletes every document last written before cutoff and reports how
// many went. After a complete reindex pass these are posts that no longer exist.
func (e *Elastic) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "search.prune")
	defer span.End()

	// Make the pass's bulk writes visible so they are not matched by the cutoff
	refresh := esapi.IndicesRefreshRequest{Index: []string{e.index}}
	rres, err := refresh.Do(ctx, e.client)
	if err != nil {
		return 0, fmt.Errorf("failed to refresh index: %w", err)
	}
	rres.Body.Close()
	if rres.IsError() {
		return 0, fmt.Errorf("error refreshing index: %s", rres.String())
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(buildPruneQuery(cutoff)); err != nil {
		return 0, fmt.Errorf("failed to encode prune query: %w", err)
	}

	refreshAfter := true
	req := esapi.DeleteByQueryRequest{
		Index:     []string{e.index},
		Body:      &buf,
		Conflicts: "proceed",
		Refresh:   &refreshAfter,
	}
	res, err := req.Do(ctx, e.client)
	if err != nil {
		return 0, fmt.Errorf("failed to prune index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, fmt.Errorf("prune error: %s", res.String())
	}

	var summary struct {
		Deleted int64 `json:"deleted"`
	}
	if err := json.NewDecoder(res.Body).Decode(&summary); err != nil {
		return 0, fmt.Errorf("failed to parse prune response: %w", err)
	}
	if summary.Deleted > 0 {
		e.logger.Info("Pruned stale documents", zap.Int64("deleted", summary.Deleted))
	}
	return summary.Deleted, nil
}

// Search returns one page of posts matching keyword, newest first
func (e *Elastic) Search(ctx context.Context, keyword string, page, limit int) ([]models.Post, int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "search.query")
	defer span.End()

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(buildSearchQuery(keyword, page, limit)); err != nil {
		return nil, 0, fmt.Errorf("failed to encode query: %w", err)
	}

	res, err := e.client.Search(
		e.client.Search.WithContext(ctx),
		e.client.Search.WithIndex(e.index),
		e.client.Search.WithBody(&buf),
		e.client.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, 0, fmt.Errorf("search error: %s", res.String())
	}

	ids, total, err := parseSearchResponse(res.Body)
	if err != nil {
		return nil, 0, err
	}

	posts, err := e.loader.GetByIDs(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	if len(posts) != len(ids) {
		e.logger.Warn("Index holds posts missing from the database",
			zap.Int("hits", len(ids)), zap.Int("loaded", len(posts)))
	}
	return posts, total, nil
}

// buildSearchQuery matches keyword anywhere in the title or content, ignoring
// case, the way the database search does with ILIKE.
func buildSearchQuery(keyword string, page, limit int) map[string]interface{} {
	pattern := "*" + wildcardEscaper.Replace(keyword) + "*"
	substring := func(field string) map[string]interface{} {
		return map[string]interface{}{
			"wildcard": map[string]interface{}{
				field: map[string]interface{}{
					"value":            pattern,
					"case_insensitive": true,
				},
			},
		}
	}

	return map[string]interface{}{
		"from":    (page - 1) * limit,
		"size":    limit,
		"_source": []string{"id"},
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"should":               []interface{}{substring("title.sub"), substring("content.sub")},
				"minimum_should_match": 1,
			},
		},
		"sort": []interface{}{
			map[string]interface{}{"created_at": map[string]string{"order": "desc"}},
		},
	}
}

var wildcardEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`)

func buildPruneQuery(cutoff time.Time) map[string]interface{} {
	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"should": []interface{}{
					map[string]interface{}{
						"range": map[string]interface{}{
							"indexed_at": map[string]string{"lt": cutoff.UTC().Format(time.RFC3339Nano)},
						},
					},
					map[string]interface{}{
						"bool": map[string]interface{}{
							"must_not": map[string]interface{}{"exists": map[string]string{"field": "indexed_at"}},
						},
					},
				},
				"minimum_should_match": 1,
			},
		},
	}
}

func parseSearchResponse(r io.Reader) ([]int64, int64, error) {
	var result struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source struct {
					ID int64 `json:"id"`
				} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(r).Decode(&result); err != nil {
		return nil, 0, fmt.Errorf("failed to parse response: %w", err)
	}

	ids := make([]int64, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		ids = append(ids, hit.Source.ID)
	}
	return ids, result.Hits.Total.Value, nil
}

func buildBulkBody(index string, posts []models.Post, indexedAt time.Time) ([]byte, error) {
	var buf bytes.Buffer
	for _, post := range posts {
		meta := map[string]interface{}{
			"index": map[string]string{"_index": index, "_id": strconv.FormatInt(post.ID, 10)},
		}
		if err := json.NewEncoder(&buf).Encode(meta); err != nil {
			return nil, fmt.Errorf("failed to encode bulk meta: %w", err)
		}
		if err := json.NewEncoder(&buf).Encode(toDocument(post, indexedAt)); err != nil {
			return nil, fmt.Errorf("failed to encode post %d: %w", post.ID, err)
		}
	}
	return buf.Bytes(), nil
}
