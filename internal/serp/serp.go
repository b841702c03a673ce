// Package serp turns search engine result pages into structured results.
//
// An Engine knows one provider's request parameters and page markup. A
// Searcher pairs an Engine with a Fetcher to run a single query end to end.
package serp

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/FranksOps/burrow/internal/storage"
)

var (
	// ErrInvalidTimeLimit is returned for a time limit outside d, w, m, y.
	ErrInvalidTimeLimit = errors.New("serp: invalid time limit")
	// ErrFetch wraps transport failures: no HTTP response arrived.
	ErrFetch = errors.New("serp: fetch failed")
	// ErrStatus is returned when the engine answers with an HTTP error status.
	ErrStatus = errors.New("serp: unexpected status")
	// ErrBlocked is returned when the engine served a captcha or bot wall.
	ErrBlocked = errors.New("serp: blocked by bot protection")
	// ErrDisallowed is returned when robots.txt forbids the search URL.
	ErrDisallowed = errors.New("serp: disallowed by robots.txt")
	// ErrCircuitOpen is returned while a BreakerProvider rejects calls.
	ErrCircuitOpen = errors.New("serp: circuit open")
)

// Result is one organic search result.
type Result struct {
	Title string `json:"title"`
	Href  string `json:"href"`
	Body  string `json:"body"`
}

// Payload holds the request parameters for one results page.
type Payload map[string]string

// Values converts the payload to url.Values.
func (p Payload) Values() url.Values {
	v := make(url.Values, len(p))
	for k, val := range p {
		v.Set(k, val)
	}
	return v
}

// Encode returns the payload as a query string with keys sorted.
func (p Payload) Encode() string {
	return p.Values().Encode()
}

// TimeLimit restricts results by recency. The zero value applies no filter.
type TimeLimit string

const (
	TimeLimitNone  TimeLimit = ""
	TimeLimitDay   TimeLimit = "d"
	TimeLimitWeek  TimeLimit = "w"
	TimeLimitMonth TimeLimit = "m"
	TimeLimitYear  TimeLimit = "y"
)

// ParseTimeLimit accepts the one-letter codes and their long names.
func ParseTimeLimit(s string) (TimeLimit, error) {
	switch s {
	case "":
		return TimeLimitNone, nil
	case "d", "day":
		return TimeLimitDay, nil
	case "w", "week":
		return TimeLimitWeek, nil
	case "m", "month":
		return TimeLimitMonth, nil
	case "y", "year":
		return TimeLimitYear, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidTimeLimit, s)
}

// Query is a normalized search request for one results page.
type Query struct {
	Text       string
	Region     string
	SafeSearch string
	TimeLimit  TimeLimit
	// Page is 1-based; values below 1 mean the first page.
	Page int
}

// Engine describes one search provider. Implementations hold no mutable
// state and are safe for concurrent use.
type Engine interface {
	Name() string
	// Category is the kind of results the engine returns, e.g. "text".
	Category() string
	SearchURL() string
	BuildPayload(q Query) (Payload, error)
	// ExtractResults returns one Result per candidate block, complete or not.
	ExtractResults(htmlText string) []Result
	// PostExtractResults drops incomplete results and resolves links.
	PostExtractResults(results []Result) []Result
}

// Provider runs a search and returns finished results.
type Provider interface {
	Name() string
	Search(ctx context.Context, q Query) ([]Result, error)
}

// Fetcher performs the single HTTP GET for a results page.
type Fetcher interface {
	Fetch(ctx context.Context, targetURL string) (*storage.Response, error)
}

// RobotsChecker reports whether a URL may be requested.
type RobotsChecker interface {
	IsAllowed(ctx context.Context, targetURL, userAgent string) (bool, error)
}
