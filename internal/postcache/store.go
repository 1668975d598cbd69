// Package postcache is a read-through cache for posts, post listings and
// search results fetched from the bulletin API.
//
// A Store holds three independent namespaces. Entries have no TTL and no size
// bound; they live until a write invalidates them or the Store is cleared.
// Values are copied on the way in and on the way out, so callers can never
// mutate a cached entry in place.
package postcache

import (
	"strconv"
	"sync"

	"github.com/steemit/bulletin/internal/models"
)

// NamespaceID names one of the Store's namespaces
type NamespaceID string

const (
	NamespacePosts    NamespaceID = "posts"
	NamespaceLists    NamespaceID = "lists"
	NamespaceSearches NamespaceID = "searches"
)

// PostKey is the single-post key for id
func PostKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

// PageKey is the list-page key for page
func PageKey(page int) string {
	return "page:" + strconv.Itoa(page)
}

// SearchKey is the search-page key for keyword and page
func SearchKey(keyword string, page int) string {
	return "search:" + keyword + ":" + strconv.Itoa(page)
}

// Namespace is one keyed map of cached values. The mutex only keeps the map
// memory-safe; it is never held while talking to the API.
type Namespace[V any] struct {
	mu      sync.Mutex
	entries map[string]V
	clone   func(V) V
}

func newNamespace[V any](clone func(V) V) *Namespace[V] {
	return &Namespace[V]{
		entries: make(map[string]V),
		clone:   clone,
	}
}

// Get returns a copy of the entry under key
func (n *Namespace[V]) Get(key string) (V, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	v, ok := n.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	return n.clone(v), true
}

// Has reports whether key is cached
func (n *Namespace[V]) Has(key string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, ok := n.entries[key]
	return ok
}

// Put stores a copy of v under key, replacing any previous entry
func (n *Namespace[V]) Put(key string, v V) {
	v = n.clone(v)
	n.mu.Lock()
	defer n.mu.Unlock()
	n.entries[key] = v
}

// Update replaces the entry under key with fn applied to a copy of it. It is
// a no-op when key is absent and reports whether an entry was replaced.
func (n *Namespace[V]) Update(key string, fn func(V) V) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	v, ok := n.entries[key]
	if !ok {
		return false
	}
	n.entries[key] = fn(n.clone(v))
	return true
}

// Delete removes the entry under key if present
func (n *Namespace[V]) Delete(key string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.entries, key)
}

// Clear removes every entry
func (n *Namespace[V]) Clear() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.entries = make(map[string]V)
}

// Len returns the number of entries
func (n *Namespace[V]) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.entries)
}

// Store is the cache of one browsing session
type Store struct {
	Posts    *Namespace[models.Post]
	Lists    *Namespace[models.PostList]
	Searches *Namespace[models.SearchResult]
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		Posts:    newNamespace(clonePost),
		Lists:    newNamespace(clonePostList),
		Searches: newNamespace(cloneSearchResult),
	}
}

// Clear empties one namespace
func (s *Store) Clear(ns NamespaceID) {
	switch ns {
	case NamespacePosts:
		s.Posts.Clear()
	case NamespaceLists:
		s.Lists.Clear()
	case NamespaceSearches:
		s.Searches.Clear()
	}
}

// ClearAll empties every namespace
func (s *Store) ClearAll() {
	s.Posts.Clear()
	s.Lists.Clear()
	s.Searches.Clear()
}

// Stats counts cached entries per namespace
type Stats struct {
	PostsCount         int `json:"postsCount"`
	ListPagesCount     int `json:"listPagesCount"`
	SearchResultsCount int `json:"searchResultsCount"`
	TotalCachedItems   int `json:"totalCachedItems"`
}

// Stats returns the current entry counts
func (s *Store) Stats() Stats {
	st := Stats{
		PostsCount:         s.Posts.Len(),
		ListPagesCount:     s.Lists.Len(),
		SearchResultsCount: s.Searches.Len(),
	}
	st.TotalCachedItems = st.PostsCount + st.ListPagesCount + st.SearchResultsCount
	return st
}

func clonePost(p models.Post) models.Post {
	if p.Author != nil {
		author := *p.Author
		p.Author = &author
	}
	if p.Comments != nil {
		p.Comments = append([]models.Comment(nil), p.Comments...)
	}
	return p
}

func clonePosts(posts []models.Post) []models.Post {
	if posts == nil {
		return nil
	}
	out := make([]models.Post, len(posts))
	for i, p := range posts {
		out[i] = clonePost(p)
	}
	return out
}

func clonePostList(l models.PostList) models.PostList {
	l.Posts = clonePosts(l.Posts)
	return l
}

func cloneSearchResult(r models.SearchResult) models.SearchResult {
	r.Posts = clonePosts(r.Posts)
	return r
}
