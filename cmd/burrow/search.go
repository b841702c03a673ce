package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/FranksOps/burrow/internal/config"
	"github.com/FranksOps/burrow/internal/fingerprint"
	"github.com/FranksOps/burrow/internal/metrics"
	"github.com/FranksOps/burrow/internal/pipeline"
	"github.com/FranksOps/burrow/internal/scraper"
	"github.com/FranksOps/burrow/internal/serp"
	"github.com/FranksOps/burrow/pkg/proxy"
	"github.com/FranksOps/burrow/pkg/ratelimit"
	"github.com/FranksOps/burrow/pkg/useragent"
)

var searchBindings = map[string]string{
	"engine.pages":          "pages",
	"engine.timelimit":      "timelimit",
	"engine.region":         "region",
	"engine.safesearch":     "safesearch",
	"engine.respect_robots": "respect-robots",
	"fetch.fingerprint":     "fingerprint",
	"fetch.proxy_file":      "proxy-file",
	"fetch.rps":             "rps",
	"pipeline.concurrency":  "concurrency",
	"metrics.enabled":       "metrics",
	"metrics.port":          "metrics-port",
}

func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search QUERY...",
		Short: "Search Sogou and store the results",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSearch,
	}

	f := cmd.Flags()
	f.Int("pages", 1, "result pages to fetch per query")
	f.String("timelimit", "", "restrict results by age: d, w, m or y")
	f.String("region", "", "region (accepted, ignored by sogou)")
	f.String("safesearch", "", "safe search level (accepted, ignored by sogou)")
	f.Bool("respect-robots", false, "check robots.txt before searching")
	f.String("fingerprint", string(fingerprint.ProfileChrome), "TLS fingerprint: chrome, firefox, safari, go, random")
	f.String("proxy-file", "", "file with one proxy URL per line")
	f.Float64("rps", 0.5, "requests per second, 0 for no limit")
	f.Int("concurrency", 2, "parallel searches")
	f.Bool("metrics", false, "serve prometheus metrics while running")
	f.Int("metrics-port", 9090, "metrics port")
	f.StringSlice("terms", nil, "terms to look for in titles and snippets")
	f.String("format", "text", "output format: text or json")
	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd, searchBindings)
	if err != nil {
		return err
	}
	defer e.close()
	cfg, log := e.cfg, e.logger
	ctx := cmd.Context()

	if cfg.Metrics.Enabled {
		srv := metrics.Start(cfg.Metrics.Port, log)
		defer srv.Stop(ctx)
	}

	provider, closeProvider, err := buildProvider(cfg, log)
	if err != nil {
		return err
	}
	defer closeProvider()

	backend, err := openBackend(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	if backend != nil {
		defer backend.Close()
	}

	timeLimit, err := serp.ParseTimeLimit(cfg.Engine.TimeLimit)
	if err != nil {
		return err
	}
	terms, _ := cmd.Flags().GetStringSlice("terms")

	p := pipeline.Pipeline{
		Provider:    provider,
		Backend:     backend,
		Logger:      log,
		Concurrency: cfg.Pipeline.Concurrency,
	}
	out, err := p.Run(ctx, pipeline.Request{
		Queries:    args,
		Pages:      cfg.Engine.Pages,
		Region:     cfg.Engine.Region,
		SafeSearch: cfg.Engine.SafeSearch,
		TimeLimit:  timeLimit,
		Terms:      terms,
	})
	if err != nil {
		return err
	}

	format, _ := cmd.Flags().GetString("format")
	return writeOutcome(cmd.OutOrStdout(), out, format)
}

// buildProvider assembles fetcher, engine, searcher and breaker from cfg.
func buildProvider(cfg *config.Config, log *slog.Logger) (serp.Provider, func(), error) {
	profile, err := fingerprint.ParseProfile(cfg.Fetch.Fingerprint)
	if err != nil {
		return nil, nil, err
	}
	rotation, err := useragent.ParseRotation(cfg.Fetch.UARotation)
	if err != nil {
		return nil, nil, err
	}

	var proxies *proxy.Pool
	if cfg.Fetch.ProxyFile != "" || len(cfg.Fetch.Proxies) > 0 {
		proxies = proxy.NewPool(proxy.Config{
			MaxFailures: cfg.Fetch.ProxyMaxFailures,
			Cooldown:    cfg.Fetch.ProxyCooldown,
		})
		if cfg.Fetch.ProxyFile != "" {
			if err := proxies.LoadFile(cfg.Fetch.ProxyFile); err != nil {
				return nil, nil, err
			}
		}
		if err := proxies.Add(cfg.Fetch.Proxies...); err != nil {
			return nil, nil, err
		}
		log.Info("proxy pool loaded", "proxies", proxies.Len())
	}

	fetcher, err := scraper.NewFetcher(scraper.FetchConfig{
		Timeout:            cfg.Fetch.Timeout,
		MaxRedirects:       cfg.Fetch.MaxRedirects,
		UseCookieJar:       cfg.Fetch.CookieJar,
		ProxyPool:          proxies,
		UAPool:             useragent.NewPool(cfg.Fetch.UserAgents, rotation),
		Fingerprint:        profile,
		InsecureSkipVerify: cfg.Fetch.Insecure,
		Limiter:            ratelimit.NewLimiter(cfg.Fetch.RPS, cfg.Fetch.Jitter),
		Logger:             log,
	})
	if err != nil {
		return nil, nil, err
	}

	engine, err := serp.NewSogou(cfg.Engine.SearchURL)
	if err != nil {
		fetcher.Close()
		return nil, nil, err
	}

	sc := serp.SearcherConfig{RobotsAgent: cfg.Engine.RobotsAgent}
	if cfg.Engine.RespectRobots {
		sc.Robots = scraper.NewRobotsTxtAuditor(fetcher, log)
	}

	var provider serp.Provider = serp.NewSearcher(engine, fetcher, sc, log)
	if cfg.Breaker.Enabled {
		provider = serp.NewBreakerProvider(provider, serp.BreakerConfig{
			MaxFailures: cfg.Breaker.MaxFailures,
			Timeout:     cfg.Breaker.Timeout,
			Interval:    cfg.Breaker.Interval,
		}, log)
	}
	return provider, fetcher.Close, nil
}

func writeOutcome(w io.Writer, out *pipeline.Outcome, format string) error {
	if strings.EqualFold(format, "json") {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(out)
	}

	for _, q := range out.Queries {
		status := ""
		if q.Blocked {
			status = ", blocked"
		}
		fmt.Fprintf(w, "%s (%d hits, %d pages%s)\n", q.Query, len(q.Hits), q.Pages, status)
		for _, h := range q.Hits {
			fmt.Fprintf(w, "%3d. %s\n     %s\n", h.Rank, h.Title, h.Href)
			if h.Body != "" {
				fmt.Fprintf(w, "     %s\n", h.Body)
			}
		}
		fmt.Fprintln(w)
	}
	for _, t := range out.Totals {
		fmt.Fprintf(w, "term %q: %d hits, %d occurrences, %d domains\n", t.Term, t.Hits, t.Occurrences, t.Domains)
	}
	return nil
}
