package serp

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
)

// SogouSearchURL is the Sogou web search endpoint.
const SogouSearchURL = "https://www.sogou.com/web"

var (
	sogouItems   = xpath.MustCompile(`//div[contains(@class, 'vrwrap') and not(contains(@class, 'hint'))]`)
	sogouTitle   = xpath.MustCompile(`.//h3//a//text()`)
	sogouHref    = xpath.MustCompile(`.//h3//a/@href`)
	sogouBody    = xpath.MustCompile(`.//div[contains(@class, 'space-txt')]//text()`)
	sogouDataURL = xpath.MustCompile(`.//*[@data-url]/@data-url`)
)

// Sogou recency filter values for the tsn parameter, in days.
var sogouTimeLimits = map[TimeLimit]string{
	TimeLimitDay:   "1",
	TimeLimitWeek:  "7",
	TimeLimitMonth: "30",
	TimeLimitYear:  "365",
}

// Sogou is the Sogou text search engine.
type Sogou struct {
	searchURL string
	base      *url.URL
}

var _ Engine = (*Sogou)(nil)

// NewSogou returns a Sogou engine. An empty searchURL selects
// SogouSearchURL; other values point the engine at a mirror or a test server.
func NewSogou(searchURL string) (*Sogou, error) {
	if searchURL == "" {
		searchURL = SogouSearchURL
	}
	base, err := url.Parse(searchURL)
	if err != nil {
		return nil, fmt.Errorf("serp: sogou search url: %w", err)
	}
	if !base.IsAbs() {
		return nil, fmt.Errorf("serp: sogou search url %q is not absolute", searchURL)
	}
	return &Sogou{searchURL: searchURL, base: base}, nil
}

func (s *Sogou) Name() string { return "sogou" }
func (s *Sogou) Category() string { return "text" }
func (s *Sogou) SearchURL() string { return s.searchURL }

// BuildPayload maps q to Sogou's query parameters. Region and SafeSearch
// have no Sogou equivalent and are ignored.
func (s *Sogou) BuildPayload(q Query) (Payload, error) {
	payload := Payload{
		"query": q.Text,
		"ie":    "utf8",
		"p":     "40040100",
		"dp":    "1",
	}
	if q.TimeLimit != TimeLimitNone {
		tsn, ok := sogouTimeLimits[q.TimeLimit]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidTimeLimit, q.TimeLimit)
		}
		payload["tsn"] = tsn
	}
	if q.Page > 1 {
		payload["page"] = strconv.Itoa(q.Page)
	}
	return payload, nil
}

// ExtractResults returns one Result per result block in htmlText. Wrapped
// /link?url= hrefs are swapped for the block's data-url when it holds an
// absolute URL, so no redirect ever has to be followed.
func (s *Sogou) ExtractResults(htmlText string) []Result {
	root := ExtractTree(PreProcessHTML(htmlText))
	if root == nil {
		return nil
	}

	items := htmlquery.QuerySelectorAll(root, sogouItems)
	results := make([]Result, 0, len(items))
	for _, item := range items {
		title := joinText(item, sogouTitle)
		href := firstText(item, sogouHref)
		body := joinText(item, sogouBody)

		if href != "" && isSogouWrapper(href) {
			if dataURL := firstText(item, sogouDataURL); isAbsoluteHTTP(dataURL) {
				href = dataURL
			}
		}

		results = append(results, Result{Title: title, Href: href, Body: body})
	}
	return results
}

// PostExtractResults keeps results with a title and a direct link, resolving
// relative hrefs against the search URL. Order is preserved.
func (s *Sogou) PostExtractResults(results []Result) []Result {
	out := make([]Result, 0, len(results))
	for _, r := range results {
		if r.Href == "" || r.Title == "" {
			continue
		}
		ref, err := url.Parse(r.Href)
		if err != nil {
			continue
		}
		href := s.base.ResolveReference(ref).String()
		if isSogouWrapper(href) {
			continue
		}
		out = append(out, Result{Title: r.Title, Href: href, Body: r.Body})
	}
	return out
}

// isSogouWrapper reports whether href goes through Sogou's redirect
// endpoint, either relative or as https://www.sogou.com/link?url=...
func isSogouWrapper(href string) bool {
	return strings.Contains(href, "/link?url=")
}

func isAbsoluteHTTP(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
