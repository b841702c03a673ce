package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
	"golang.org/x/sync/singleflight"

	"github.com/FranksOps/burrow/internal/storage"
)

// RobotsFetcher is the subset of Fetcher the auditor needs.
type RobotsFetcher interface {
	Fetch(ctx context.Context, targetURL string) (*storage.Response, error)
}

// RobotsTxtAuditor fetches and caches robots.txt per host and answers
// whether a URL may be requested.
type RobotsTxtAuditor struct {
	fetcher RobotsFetcher
	logger  *slog.Logger
	group   singleflight.Group

	mu    sync.RWMutex
	cache map[string]*robotstxt.RobotsData // nil entry: fetched, no usable rules
}

// NewRobotsTxtAuditor creates a new instance.
func NewRobotsTxtAuditor(fetcher RobotsFetcher, logger *slog.Logger) *RobotsTxtAuditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &RobotsTxtAuditor{
		fetcher: fetcher,
		logger:  logger,
		cache:   make(map[string]*robotstxt.RobotsData),
	}
}

// IsAllowed reports whether targetURL is allowed by its host's robots.txt
// for userAgent. An unreachable or missing robots.txt allows everything.
func (r *RobotsTxtAuditor) IsAllowed(ctx context.Context, targetURL, userAgent string) (bool, error) {
	u, err := url.Parse(targetURL)
	if err != nil {
		return false, fmt.Errorf("scraper: invalid url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return false, fmt.Errorf("scraper: url %q is not absolute", targetURL)
	}

	host := u.Scheme + "://" + u.Host

	data, err := r.rules(ctx, host)
	if err != nil {
		r.logger.Debug("robots.txt fetch failed, defaulting to allow", "host", host, "err", err)
		return true, nil
	}
	if data == nil {
		return true, nil
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return data.TestAgent(path, userAgent), nil
}

func (r *RobotsTxtAuditor) rules(ctx context.Context, host string) (*robotstxt.RobotsData, error) {
	r.mu.RLock()
	data, ok := r.cache[host]
	r.mu.RUnlock()
	if ok {
		return data, nil
	}

	v, err, _ := r.group.Do(host, func() (any, error) {
		r.mu.RLock()
		data, ok := r.cache[host]
		r.mu.RUnlock()
		if ok {
			return data, nil
		}

		data, err := r.fetch(ctx, host)
		if err != nil {
			// not cached; a later search retries
			return nil, err
		}
		r.mu.Lock()
		r.cache[host] = data
		r.mu.Unlock()
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*robotstxt.RobotsData), nil
}

func (r *RobotsTxtAuditor) fetch(ctx context.Context, host string) (*robotstxt.RobotsData, error) {
	res, err := r.fetcher.Fetch(ctx, host+"/robots.txt")
	if err != nil {
		return nil, fmt.Errorf("scraper: robots fetch: %w", err)
	}
	if res.Error != "" {
		return nil, fmt.Errorf("scraper: robots fetch: %s", res.Error)
	}

	// Any error status means no rules.
	if res.StatusCode >= http.StatusBadRequest {
		return nil, nil
	}

	parsed, err := robotstxt.FromStatusAndBytes(res.StatusCode, res.Body)
	if err != nil {
		return nil, fmt.Errorf("scraper: robots parse: %w", err)
	}
	return parsed, nil
}
