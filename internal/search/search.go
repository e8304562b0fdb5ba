// Package search provides full-text search over posts, with Meilisearch as
// the primary engine and PostgreSQL FTS as the fallback.
package search

// Result is a single search hit returned to the caller.
type Result struct {
	ID       string `json:"id"`
	AuthorID string `json:"authorId"`
	Snippet  string `json:"snippet"`
	GroupID  string `json:"groupId,omitempty"`
}

// AuthoredBy lets results flow through the visibility filter unchanged.
func (r Result) AuthoredBy() string { return r.AuthorID }

// Query describes a search request.
type Query struct {
	Text    string
	GroupID string
	Limit   int
	Offset  int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// PostRecord is the data indexed per post.
type PostRecord struct {
	ID       string `json:"id"`
	AuthorID string `json:"authorId"`
	Body     string `json:"body"`
	GroupID  string `json:"groupId"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}
