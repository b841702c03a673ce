package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/FranksOps/burrow/internal/analyzer"
	"github.com/FranksOps/burrow/internal/serp"
	"github.com/FranksOps/burrow/internal/storage"
)

const defaultConcurrency = 2

// Request describes one run: every query is searched for Pages pages.
type Request struct {
	Queries    []string
	Pages      int
	Region     string
	SafeSearch string
	TimeLimit  serp.TimeLimit
	// Terms, when set, are matched against every hit's title and snippet.
	Terms []string
}

// QueryOutcome holds the hits gathered for one query.
type QueryOutcome struct {
	Query    string         `json:"query"`
	SearchID string         `json:"search_id"`
	Pages    int            `json:"pages"` // pages that returned results
	Blocked  bool           `json:"blocked,omitempty"`
	Hits     []*storage.Hit `json:"hits"`
}

// Outcome is the result of a Run, in request order.
type Outcome struct {
	Queries []QueryOutcome       `json:"queries"`
	Matches []analyzer.TermMatch `json:"matches,omitempty"`
	Totals  []analyzer.TermTotal `json:"totals,omitempty"`
}

// Hits returns every hit of the run in query then rank order.
func (o *Outcome) Hits() []*storage.Hit {
	var all []*storage.Hit
	for _, q := range o.Queries {
		all = append(all, q.Hits...)
	}
	return all
}

// Pipeline searches a set of queries across several pages, de-duplicates
// the results per query, stores them and optionally runs term analysis.
type Pipeline struct {
	Provider serp.Provider
	// Backend is optional; without one hits are only returned.
	Backend     storage.Backend
	Logger      *slog.Logger
	Concurrency int
}

type pageResult struct {
	results []serp.Result
	blocked bool
}

// pageStop records the first page of a query the engine blocked.
type pageStop struct {
	mu   sync.Mutex
	page int
}

func (s *pageStop) stop(page int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.page == 0 || page < s.page {
		s.page = page
	}
}

// after reports whether page comes after a blocked page.
func (s *pageStop) after(page int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page != 0 && page > s.page
}

// Run executes the request. The first failing search cancels the rest and
// is returned, except a block on a later page, which ends that query's
// pagination: its remaining pages are not searched and errors from pages
// already in flight past the block are ignored.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Outcome, error) {
	if p.Provider == nil {
		return nil, errors.New("pipeline: provider is nil")
	}
	if len(req.Queries) == 0 {
		return nil, errors.New("pipeline: no queries")
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pages := max(req.Pages, 1)
	concurrency := p.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	grid := make([][]pageResult, len(req.Queries))
	for i := range grid {
		grid[i] = make([]pageResult, pages)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	stops := make([]pageStop, len(req.Queries))

	for qi, text := range req.Queries {
		for page := 1; page <= pages; page++ {
			g.Go(func() error {
				if stops[qi].after(page) {
					return nil
				}
				results, err := p.Provider.Search(gctx, serp.Query{
					Text:       text,
					Region:     req.Region,
					SafeSearch: req.SafeSearch,
					TimeLimit:  req.TimeLimit,
					Page:       page,
				})
				if err != nil {
					if page > 1 && serp.IsBlocked(err) {
						logger.Warn("search blocked, ending pagination",
							"query", text, "page", page, "err", err)
						grid[qi][page-1].blocked = true
						stops[qi].stop(page)
						return nil
					}
					// Pages past a block are part of it.
					if stops[qi].after(page) {
						logger.Debug("ignoring error past blocked page",
							"query", text, "page", page, "err", err)
						return nil
					}
					return fmt.Errorf("pipeline: search %q page %d: %w", text, page, err)
				}
				grid[qi][page-1].results = results
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &Outcome{Queries: make([]QueryOutcome, len(req.Queries))}
	now := time.Now().UTC()
	for qi, text := range req.Queries {
		out.Queries[qi] = p.collect(text, grid[qi], now)
	}

	hits := out.Hits()
	if p.Backend != nil && len(hits) > 0 {
		if err := p.Backend.Save(ctx, hits...); err != nil {
			return nil, fmt.Errorf("pipeline: save hits: %w", err)
		}
	}

	if len(req.Terms) > 0 {
		out.Matches = analyzer.AnalyzeHits(hits, req.Terms)
		out.Totals = analyzer.Tally(out.Matches, req.Terms)
	}

	logger.Info("pipeline complete",
		"engine", p.Provider.Name(),
		"queries", len(req.Queries),
		"hits", len(hits),
		"matches", len(out.Matches),
	)
	return out, nil
}

// collect turns one query's pages into ranked hits, keeping the first
// occurrence of every href and stopping at the first blocked page.
func (p *Pipeline) collect(text string, pages []pageResult, now time.Time) QueryOutcome {
	qo := QueryOutcome{
		Query:    text,
		SearchID: uuid.New().String(),
		Hits:     []*storage.Hit{},
	}
	seen := make(map[string]struct{})
	for i, pr := range pages {
		if pr.blocked {
			qo.Blocked = true
			break
		}
		if len(pr.results) > 0 {
			qo.Pages++
		}
		for _, r := range pr.results {
			if _, dup := seen[r.Href]; dup {
				continue
			}
			seen[r.Href] = struct{}{}
			qo.Hits = append(qo.Hits, &storage.Hit{
				ID:        uuid.New().String(),
				SearchID:  qo.SearchID,
				Engine:    p.Provider.Name(),
				Query:     text,
				Page:      i + 1,
				Rank:      len(qo.Hits) + 1,
				Title:     r.Title,
				Href:      r.Href,
				Body:      r.Body,
				CreatedAt: now,
			})
		}
	}
	return qo
}
