package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/FranksOps/burrow/internal/bypass"
	"github.com/FranksOps/burrow/internal/fingerprint"
	"github.com/FranksOps/burrow/internal/metrics"
	"github.com/FranksOps/burrow/internal/storage"
	"github.com/FranksOps/burrow/pkg/httpclient"
	"github.com/FranksOps/burrow/pkg/proxy"
	"github.com/FranksOps/burrow/pkg/ratelimit"
	"github.com/FranksOps/burrow/pkg/useragent"
	"github.com/google/uuid"
)

type contextKey string

const proxyKey contextKey = "proxy_url"

// maxBodySize caps how much of a result page is read. Sogou pages are
// well under 1MB.
const maxBodySize = 8 << 20

// DefaultHeader mirrors what a desktop browser sends to a Chinese-language
// search engine.
var DefaultHeader = http.Header{
	"Accept":          {"text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8"},
	"Accept-Language": {"zh-CN,zh;q=0.9,en;q=0.8"},
}

// FetchConfig configures the Fetcher.
type FetchConfig struct {
	Timeout      time.Duration
	MaxRedirects int
	UseCookieJar bool
	// Header overrides DefaultHeader when non-nil.
	Header      http.Header
	ProxyPool   *proxy.Pool
	UAPool      *useragent.Pool
	Fingerprint fingerprint.Profile
	// InsecureSkipVerify is passed through to the TLS layer; tests only.
	InsecureSkipVerify bool
	Limiter            *ratelimit.Limiter
	Logger             *slog.Logger
}

// Fetcher performs single GET requests with the configured fingerprint,
// proxy rotation, User-Agent rotation and pacing, and classifies every
// response with the bot detectors.
type Fetcher struct {
	config    FetchConfig
	client    *httpclient.Client
	detectors []bypass.Detector
	logger    *slog.Logger
}

// NewFetcher initializes a Fetcher. A single client is held across requests
// so connections and cookies (if enabled) persist for the Fetcher's lifetime.
func NewFetcher(cfg FetchConfig) (*Fetcher, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UAPool == nil {
		cfg.UAPool = useragent.NewPool(nil, useragent.Random)
	}
	if cfg.Fingerprint == "" {
		cfg.Fingerprint = fingerprint.ProfileChrome
	}
	if cfg.Header == nil {
		cfg.Header = DefaultHeader
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	// The proxy for a request travels in its context so the shared transport
	// can rotate per request.
	proxyFunc := func(req *http.Request) (*url.URL, error) {
		if u, ok := req.Context().Value(proxyKey).(*url.URL); ok {
			return u, nil
		}
		return http.ProxyFromEnvironment(req)
	}

	transport, err := fingerprint.Transport(cfg.Fingerprint, fingerprint.Options{
		Proxy:              proxyFunc,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	})
	if err != nil {
		return nil, fmt.Errorf("scraper: setup transport: %w", err)
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:      cfg.Timeout,
		MaxRedirects: cfg.MaxRedirects,
		UseCookieJar: cfg.UseCookieJar,
		Header:       cfg.Header,
		Transport:    transport,
	})
	if err != nil {
		return nil, fmt.Errorf("scraper: create client: %w", err)
	}

	return &Fetcher{
		config:    cfg,
		client:    client,
		detectors: bypass.DefaultDetectors(),
		logger:    cfg.Logger,
	}, nil
}

// Fetch executes a GET request to targetURL. Transport failures are recorded
// on Response.Error rather than returned, so callers always get a record of
// the attempt; the error return is reserved for a nil context.
func (f *Fetcher) Fetch(ctx context.Context, targetURL string) (*storage.Response, error) {
	if ctx == nil {
		return nil, httpclient.ErrNilContext
	}

	res := &storage.Response{
		ID:     uuid.New().String(),
		URL:    targetURL,
		Method: http.MethodGet,
	}
	domain := hostOf(targetURL)

	if err := f.config.Limiter.Wait(ctx); err != nil {
		res.CreatedAt = time.Now().UTC()
		res.Error = fmt.Sprintf("rate limiter: %v", err)
		return res, nil
	}

	start := time.Now()
	res.CreatedAt = start.UTC()
	defer func() {
		res.Duration = time.Since(start)
		metrics.RecordFetch(domain, res)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		res.Error = fmt.Sprintf("create request: %v", err)
		return res, nil
	}

	var activeProxy *url.URL
	if f.config.ProxyPool != nil {
		if activeProxy = f.config.ProxyPool.Next(); activeProxy != nil {
			req = req.WithContext(context.WithValue(req.Context(), proxyKey, activeProxy))
		}
	}

	req.Header.Set("User-Agent", f.config.UAPool.Next())

	resp, err := f.client.Do(req.Context(), req)
	if err != nil {
		if activeProxy != nil {
			_ = f.config.ProxyPool.MarkFailure(activeProxy)
			metrics.ProxyFailures.WithLabelValues(activeProxy.String()).Inc()
		}
		res.Error = fmt.Sprintf("request failed: %v", err)
		f.logger.Debug("fetch failed", "url", targetURL, "err", err)
		return res, nil
	}
	defer resp.Body.Close()

	if activeProxy != nil {
		_ = f.config.ProxyPool.MarkSuccess(activeProxy)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		res.Error = fmt.Sprintf("read body: %v", err)
	}

	res.StatusCode = resp.StatusCode
	res.Headers = resp.Header
	res.Body = body
	if resp.Request != nil && resp.Request.URL != nil {
		res.FinalURL = resp.Request.URL.String()
	}

	if bypass.Analyze(res, f.detectors) {
		f.logger.Warn("bot challenge detected", "url", targetURL, "source", res.DetectionSrc)
	}

	return res, nil
}

// Close releases idle connections held by the transport.
func (f *Fetcher) Close() {
	f.client.CloseIdleConnections()
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
