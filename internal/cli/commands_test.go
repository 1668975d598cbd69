package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steemit/bulletin/internal/client"
	"github.com/steemit/bulletin/internal/models"
)

// runCommand runs cmd against handler and returns what it printed
func runCommand(t *testing.T, handler http.HandlerFunc, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	previous := apiClient
	apiClient = client.NewWithTransport(srv.URL+"/api", http.DefaultTransport)
	apiClient.SetToken("test-token")
	t.Cleanup(func() { apiClient = previous })

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetContext(context.Background())
	err := cmd.RunE(cmd, args)
	return out.String(), err
}

func TestEditCommentCommand(t *testing.T) {
	var gotMethod, gotPath, gotAuth string
	var gotBody models.CommentUpdate
	handler := func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath, gotAuth = r.Method, r.URL.Path, r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(models.CommentEnvelope{
			Message: "Comment updated successfully",
			Comment: models.Comment{ID: 12, PostID: 3, Username: "bob", Content: gotBody.Content},
		})
	}

	out, err := runCommand(t, handler, editCommentCmd, "12", "much", "better")
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/api/comments/12", gotPath)
	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.Equal(t, "much better", gotBody.Content)
	assert.Contains(t, out, "Comment #12 updated")
	assert.Contains(t, out, "much better")
}

func TestEditCommentCommandRejectsBadID(t *testing.T) {
	called := false
	_, err := runCommand(t, func(http.ResponseWriter, *http.Request) { called = true }, editCommentCmd, "abc", "text")
	assert.Error(t, err)
	assert.False(t, called)
}

func TestHealthCommand(t *testing.T) {
	out, err := runCommand(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/health", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}, healthCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "API is healthy")

	_, err = runCommand(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"degraded"}`))
	}, healthCmd)
	assert.Error(t, err)
}
