package storage

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"time"
)

// Response represents the outcome of a single fetch against a search engine.
type Response struct {
	ID           string
	URL          string
	FinalURL     string // URL after redirects; empty when no response arrived
	Method       string
	StatusCode   int
	Headers      map[string][]string
	Body         []byte
	Duration     time.Duration
	DetectedBot  bool
	DetectionSrc string // e.g. "Cloudflare", "SogouAntispider"
	CreatedAt    time.Time
	Error        string // non-empty if the fetch failed before an HTTP response
}

// Hit is one search result as persisted by a Backend.
type Hit struct {
	ID        string    `json:"id"`
	SearchID  string    `json:"search_id"`
	Engine    string    `json:"engine"`
	Query     string    `json:"query"`
	Page      int       `json:"page"`
	Rank      int       `json:"rank"`
	Title     string    `json:"title"`
	Href      string    `json:"href"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Domain returns the lowercased host of the hit's href, or "" if it does not parse.
func (h *Hit) Domain() string {
	u, err := url.Parse(h.Href)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// Filter allows querying for specific hits.
type Filter struct {
	Engine string
	Query  string
	Href   string
	Since  *time.Time
	Limit  int
	Offset int
}

// Match reports whether h satisfies the filter's field predicates.
// Limit and Offset are not considered.
func (f Filter) Match(h *Hit) bool {
	if f.Engine != "" && h.Engine != f.Engine {
		return false
	}
	if f.Query != "" && h.Query != f.Query {
		return false
	}
	if f.Href != "" && h.Href != f.Href {
		return false
	}
	if f.Since != nil && h.CreatedAt.Before(*f.Since) {
		return false
	}
	return true
}

// Backend defines the interface for storing and querying search hits.
type Backend interface {
	Save(ctx context.Context, hits ...*Hit) error
	Query(ctx context.Context, filter Filter) ([]*Hit, error)
	Close() error
}

// Arrange orders hits newest first (rank ascending within the same instant)
// and applies the filter's Offset and Limit. File-backed backends use it to
// mirror the ordering the SQL backends get from ORDER BY.
func Arrange(hits []*Hit, filter Filter) []*Hit {
	sort.SliceStable(hits, func(i, j int) bool {
		if !hits[i].CreatedAt.Equal(hits[j].CreatedAt) {
			return hits[i].CreatedAt.After(hits[j].CreatedAt)
		}
		return hits[i].Rank < hits[j].Rank
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(hits) {
			return []*Hit{}
		}
		hits = hits[filter.Offset:]
	}

	if filter.Limit > 0 && filter.Limit < len(hits) {
		hits = hits[:filter.Limit]
	}

	return hits
}
