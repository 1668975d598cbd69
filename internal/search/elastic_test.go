package search

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steemit/bulletin/internal/models"
)

// wildcardClause returns the pattern and case flag of the should clause on field
func wildcardClause(t *testing.T, q map[string]interface{}, field string) (string, bool) {
	t.Helper()
	should := q["query"].(map[string]interface{})["bool"].(map[string]interface{})["should"].([]interface{})
	for _, clause := range should {
		w := clause.(map[string]interface{})["wildcard"].(map[string]interface{})
		if f, ok := w[field]; ok {
			opts := f.(map[string]interface{})
			return opts["value"].(string), opts["case_insensitive"].(bool)
		}
	}
	t.Fatalf("no wildcard clause on %s", field)
	return "", false
}

func TestBuildSearchQuery(t *testing.T) {
	q := buildSearchQuery("hel", 3, 20)

	assert.Equal(t, 40, q["from"])
	assert.Equal(t, 20, q["size"])

	for _, field := range []string{"title.sub", "content.sub"} {
		pattern, insensitive := wildcardClause(t, q, field)
		assert.Equal(t, "*hel*", pattern)
		assert.True(t, insensitive)
	}
	assert.Equal(t, 1, q["query"].(map[string]interface{})["bool"].(map[string]interface{})["minimum_should_match"])
}

func TestBuildSearchQueryEscapesWildcards(t *testing.T) {
	tests := []struct {
		keyword string
		want    string
	}{
		{"go lang", "*go lang*"},
		{"100%", "*100%*"},
		{"a*b", `*a\*b*`},
		{"why?", `*why\?*`},
		{`back\slash`, `*back\\slash*`},
	}
	for _, tt := range tests {
		pattern, _ := wildcardClause(t, buildSearchQuery(tt.keyword, 1, 10), "title.sub")
		if pattern != tt.want {
			t.Errorf("pattern for %q = %q, want %q", tt.keyword, pattern, tt.want)
		}
	}
}

func TestBuildPruneQuery(t *testing.T) {
	cutoff := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	raw, err := json.Marshal(buildPruneQuery(cutoff))
	require.NoError(t, err)

	assert.Contains(t, string(raw), `"indexed_at":{"lt":"2024-05-01T12:00:00Z"}`)
	assert.Contains(t, string(raw), `"exists":{"field":"indexed_at"}`)
}

func TestParseSearchResponse(t *testing.T) {
	body := `{
		"hits": {
			"total": {"value": 42, "relation": "eq"},
			"hits": [
				{"_id": "9", "_source": {"id": 9}},
				{"_id": "4", "_source": {"id": 4}}
			]
		}
	}`

	ids, total, err := parseSearchResponse(strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, []int64{9, 4}, ids)
	assert.Equal(t, int64(42), total)
}

func TestParseSearchResponseRejectsGarbage(t *testing.T) {
	_, _, err := parseSearchResponse(strings.NewReader("{"))
	assert.Error(t, err)
}

func TestBuildBulkBody(t *testing.T) {
	posts := []models.Post{
		{ID: 1, UserID: 2, Title: "first", Content: "hello", CreatedAt: time.Unix(0, 0).UTC()},
		{ID: 5, UserID: 2, Title: "second", Content: "world", CreatedAt: time.Unix(0, 0).UTC()},
	}

	stamp := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	body, err := buildBulkBody("posts", posts, stamp)
	require.NoError(t, err)

	var lines []map[string]interface{}
	scanner := bufio.NewScanner(bytes.NewReader(body))
	for scanner.Scan() {
		var line map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
		lines = append(lines, line)
	}
	require.Len(t, lines, 4)

	meta := lines[2]["index"].(map[string]interface{})
	assert.Equal(t, "posts", meta["_index"])
	assert.Equal(t, "5", meta["_id"])
	assert.Equal(t, "second", lines[3]["title"])
	assert.Equal(t, "2024-05-01T12:00:00Z", lines[3]["indexed_at"])
}
