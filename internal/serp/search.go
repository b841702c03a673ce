package serp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/FranksOps/burrow/internal/metrics"
)

// SearcherConfig holds the optional parts of a Searcher.
type SearcherConfig struct {
	// Robots, when set, is consulted before every fetch.
	Robots RobotsChecker
	// RobotsAgent is the User-Agent matched against robots.txt groups.
	RobotsAgent string
}

// Searcher runs one Engine over a Fetcher: build the request, fetch the
// results page once, extract and post-process. It never follows result
// links.
type Searcher struct {
	engine  Engine
	fetcher Fetcher
	cfg     SearcherConfig
	logger  *slog.Logger
}

var _ Provider = (*Searcher)(nil)

// NewSearcher creates a Searcher. A nil logger uses slog.Default().
func NewSearcher(engine Engine, fetcher Fetcher, cfg SearcherConfig, logger *slog.Logger) *Searcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RobotsAgent == "" {
		cfg.RobotsAgent = "*"
	}
	return &Searcher{
		engine:  engine,
		fetcher: fetcher,
		cfg:     cfg,
		logger:  logger.With("engine", engine.Name(), "category", engine.Category()),
	}
}

func (s *Searcher) Name() string { return s.engine.Name() }

// Search fetches and parses one results page for q.
func (s *Searcher) Search(ctx context.Context, q Query) ([]Result, error) {
	name := s.engine.Name()

	payload, err := s.engine.BuildPayload(q)
	if err != nil {
		return nil, err
	}

	target, err := requestURL(s.engine.SearchURL(), payload)
	if err != nil {
		return nil, err
	}

	if s.cfg.Robots != nil {
		allowed, err := s.cfg.Robots.IsAllowed(ctx, target, s.cfg.RobotsAgent)
		if err != nil {
			return nil, fmt.Errorf("serp: robots check: %w", err)
		}
		if !allowed {
			metrics.RecordSearch(name, metrics.StatusError, 0, 0)
			return nil, fmt.Errorf("%w: %s", ErrDisallowed, target)
		}
	}

	start := time.Now()
	res, err := s.fetcher.Fetch(ctx, target)
	if err != nil {
		metrics.RecordSearch(name, metrics.StatusError, 0, 0)
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	if res.Error != "" {
		metrics.RecordSearch(name, metrics.StatusError, 0, 0)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %s", ErrFetch, res.Error)
	}
	if res.DetectedBot {
		metrics.RecordSearch(name, metrics.StatusBlocked, 0, 0)
		return nil, fmt.Errorf("%w: %s (status %d)", ErrBlocked, res.DetectionSrc, res.StatusCode)
	}
	if res.StatusCode >= http.StatusBadRequest {
		metrics.RecordSearch(name, metrics.StatusError, 0, 0)
		return nil, fmt.Errorf("%w: %d", ErrStatus, res.StatusCode)
	}

	extracted := s.engine.ExtractResults(string(res.Body))
	results := s.engine.PostExtractResults(extracted)
	metrics.RecordSearch(name, metrics.StatusOK, len(extracted), len(results))

	s.logger.Debug("search complete",
		"query", q.Text,
		"page", q.Page,
		"candidates", len(extracted),
		"results", len(results),
		"took", time.Since(start),
	)
	return results, nil
}

// IsBlocked reports whether err means the engine is refusing this client.
func IsBlocked(err error) bool {
	return errors.Is(err, ErrBlocked) || errors.Is(err, ErrCircuitOpen)
}

func requestURL(searchURL string, payload Payload) (string, error) {
	u, err := url.Parse(searchURL)
	if err != nil {
		return "", fmt.Errorf("serp: search url: %w", err)
	}
	q := u.Query()
	for k, v := range payload {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
