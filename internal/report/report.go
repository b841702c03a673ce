package report

import (
	"cmp"
	"encoding/json"
	"fmt"
	htmltemplate "html/template"
	"io"
	"slices"
	"text/template"
	"time"

	"github.com/FranksOps/burrow/internal/storage"
)

// TopDomainsLimit caps the domain table in a Summary.
const TopDomainsLimit = 10

// DomainCount is the number of hits pointing at one domain.
type DomainCount struct {
	Domain string `json:"domain"`
	Hits   int    `json:"hits"`
}

// Summary contains aggregated figures about stored search hits.
type Summary struct {
	TotalHits  int            `json:"total_hits"`
	Searches   int            `json:"searches"`
	Queries    int            `json:"queries"`
	ByEngine   map[string]int `json:"by_engine"`
	ByPage     map[int]int    `json:"by_page"`
	Domains    int            `json:"domains"`
	TopDomains []DomainCount  `json:"top_domains"`
	StartTime  time.Time      `json:"start_time"`
	EndTime    time.Time      `json:"end_time"`
	Duration   time.Duration  `json:"duration"`
}

// GenerateSummary aggregates hits into a Summary.
func GenerateSummary(hits []*storage.Hit) Summary {
	s := Summary{
		ByEngine:   make(map[string]int),
		ByPage:     make(map[int]int),
		TopDomains: []DomainCount{},
	}

	if len(hits) == 0 {
		return s
	}

	s.StartTime = hits[0].CreatedAt
	s.EndTime = hits[0].CreatedAt

	searches := make(map[string]struct{})
	queries := make(map[string]struct{})
	domains := make(map[string]int)

	for _, h := range hits {
		s.TotalHits++
		s.ByEngine[h.Engine]++
		s.ByPage[h.Page]++
		searches[h.SearchID] = struct{}{}
		queries[h.Query] = struct{}{}
		if d := h.Domain(); d != "" {
			domains[d]++
		}

		if h.CreatedAt.Before(s.StartTime) {
			s.StartTime = h.CreatedAt
		}
		if h.CreatedAt.After(s.EndTime) {
			s.EndTime = h.CreatedAt
		}
	}

	s.Searches = len(searches)
	s.Queries = len(queries)
	s.Domains = len(domains)
	for d, n := range domains {
		s.TopDomains = append(s.TopDomains, DomainCount{Domain: d, Hits: n})
	}
	slices.SortFunc(s.TopDomains, func(a, b DomainCount) int {
		if c := cmp.Compare(b.Hits, a.Hits); c != 0 {
			return c
		}
		return cmp.Compare(a.Domain, b.Domain)
	})
	if len(s.TopDomains) > TopDomainsLimit {
		s.TopDomains = s.TopDomains[:TopDomainsLimit]
	}

	s.Duration = s.EndTime.Sub(s.StartTime)
	return s
}

// WriteJSON writes the summary to the provided writer in JSON format.
func WriteJSON(w io.Writer, summary Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	return nil
}

const textTmpl = `Burrow Search Summary
---------------------
Time:          {{.StartTime.Format "2006-01-02 15:04:05"}} - {{.EndTime.Format "2006-01-02 15:04:05"}}
Duration:      {{.Duration}}
Total Hits:    {{.TotalHits}}
Searches:      {{.Searches}} ({{.Queries}} distinct queries)
Domains:       {{.Domains}}

Engines:
{{- range $engine, $count := .ByEngine}}
  {{$engine}}: {{$count}}
{{- else}}
  None
{{- end}}

Pages:
{{- range $page, $count := .ByPage}}
  page {{$page}}: {{$count}}
{{- else}}
  None
{{- end}}

Top Domains:
{{- range .TopDomains}}
  {{.Domain}}: {{.Hits}}
{{- else}}
  None
{{- end}}
`

var textReport = template.Must(template.New("textReport").Parse(textTmpl))

// WriteText writes a human-readable text summary to the provided writer.
func WriteText(w io.Writer, summary Summary) error {
	if err := textReport.Execute(w, summary); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	return nil
}

const htmlTmpl = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Burrow Search Report</title>
<style>
  body { font-family: sans-serif; margin: 40px; color: #333; }
  h1 { border-bottom: 2px solid #ccc; padding-bottom: 10px; }
  .stat-card { display: inline-block; padding: 20px; margin: 10px 10px 10px 0; background: #f4f4f4; border-radius: 5px; min-width: 150px; }
  .stat-val { font-size: 24px; font-weight: bold; }
  table { border-collapse: collapse; margin-top: 10px; }
  th, td { padding: 8px 12px; border: 1px solid #ccc; text-align: left; }
  th { background: #eaeaea; }
</style>
</head>
<body>
  <h1>Burrow Search Report</h1>
  <p><strong>Time:</strong> {{.StartTime.Format "2006-01-02 15:04:05"}} to {{.EndTime.Format "2006-01-02 15:04:05"}} ({{.Duration}})</p>

  <div class="stat-card">
    <div>Total Hits</div>
    <div class="stat-val">{{.TotalHits}}</div>
  </div>
  <div class="stat-card">
    <div>Searches</div>
    <div class="stat-val">{{.Searches}}</div>
  </div>
  <div class="stat-card">
    <div>Queries</div>
    <div class="stat-val">{{.Queries}}</div>
  </div>
  <div class="stat-card">
    <div>Domains</div>
    <div class="stat-val">{{.Domains}}</div>
  </div>

  <h3>Engines</h3>
  <table>
    <tr><th>Engine</th><th>Hits</th></tr>
    {{- range $engine, $count := .ByEngine}}
    <tr><td>{{$engine}}</td><td>{{$count}}</td></tr>
    {{- else}}
    <tr><td colspan="2">None</td></tr>
    {{- end}}
  </table>

  <h3>Top Domains</h3>
  <table>
    <tr><th>Domain</th><th>Hits</th></tr>
    {{- range .TopDomains}}
    <tr><td>{{.Domain}}</td><td>{{.Hits}}</td></tr>
    {{- else}}
    <tr><td colspan="2">None</td></tr>
    {{- end}}
  </table>
</body>
</html>
`

// Domains come from scraped hrefs, so the HTML report escapes them.
var htmlReport = htmltemplate.Must(htmltemplate.New("htmlReport").Parse(htmlTmpl))

// WriteHTML writes a basic HTML report to the provided writer.
func WriteHTML(w io.Writer, summary Summary) error {
	if err := htmlReport.Execute(w, summary); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	return nil
}
