package postcache

import (
	"testing"

	"github.com/steemit/bulletin/internal/models"
)

func TestKeys(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{PostKey(42), "42"},
		{PageKey(3), "page:3"},
		{SearchKey("go lang", 2), "search:go lang:2"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("key = %q, want %q", tt.got, tt.want)
		}
	}
}

func TestNamespaceOperations(t *testing.T) {
	s := NewStore()

	if _, ok := s.Posts.Get("1"); ok {
		t.Fatal("empty namespace should miss")
	}

	s.Posts.Put("1", models.Post{ID: 1, Title: "a"})
	s.Posts.Put("1", models.Post{ID: 1, Title: "b"})
	if p, ok := s.Posts.Get("1"); !ok || p.Title != "b" {
		t.Errorf("Get after overwrite = %+v, %v", p, ok)
	}

	s.Posts.Delete("1")
	s.Posts.Delete("missing")
	if s.Posts.Has("1") {
		t.Error("deleted key should be absent")
	}

	if s.Posts.Update("1", func(p models.Post) models.Post { return p }) {
		t.Error("Update of an absent key should report false")
	}
}

func TestStoreClearIsPerNamespace(t *testing.T) {
	s := NewStore()
	s.Posts.Put(PostKey(1), models.Post{ID: 1})
	s.Lists.Put(PageKey(1), models.PostList{})
	s.Searches.Put(SearchKey("x", 1), models.SearchResult{})

	s.Clear(NamespaceLists)
	if got := s.Stats(); got != (Stats{PostsCount: 1, SearchResultsCount: 1, TotalCachedItems: 2}) {
		t.Errorf("Stats after clearing lists = %+v", got)
	}

	s.Clear(NamespaceSearches)
	s.Clear(NamespacePosts)
	if got := s.Stats(); got != (Stats{}) {
		t.Errorf("Stats after clearing everything = %+v", got)
	}
}

func TestPutStoresACopy(t *testing.T) {
	s := NewStore()
	list := models.PostList{Posts: []models.Post{{ID: 1, Title: "original"}}}
	s.Lists.Put("page:1", list)

	list.Posts[0].Title = "changed"
	got, _ := s.Lists.Get("page:1")
	if got.Posts[0].Title != "original" {
		t.Errorf("cached entry changed through the caller's slice: %q", got.Posts[0].Title)
	}
}
