package serp

import (
	"errors"
	"os"
	"reflect"
	"strings"
	"testing"
)

func newTestSogou(t *testing.T) *Sogou {
	t.Helper()
	s, err := NewSogou("")
	if err != nil {
		t.Fatalf("NewSogou: %v", err)
	}
	return s
}

func readFixture(t *testing.T, name string) string {
	t.Helper()
	b, err := os.ReadFile("testdata/" + name)
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return string(b)
}

func TestSogou_Metadata(t *testing.T) {
	s := newTestSogou(t)
	if s.Name() != "sogou" {
		t.Errorf("unexpected name %q", s.Name())
	}
	if s.Category() != "text" {
		t.Errorf("unexpected category %q", s.Category())
	}
	if s.SearchURL() != "https://www.sogou.com/web" {
		t.Errorf("unexpected search url %q", s.SearchURL())
	}
}

func TestNewSogou_RejectsRelativeURL(t *testing.T) {
	if _, err := NewSogou("/web"); err == nil {
		t.Fatal("expected error for relative search url")
	}
}

func TestSogou_BuildPayload(t *testing.T) {
	s := newTestSogou(t)

	tests := []struct {
		name string
		q    Query
		want Payload
	}{
		{
			name: "first page",
			q:    Query{Text: "cats"},
			want: Payload{"query": "cats", "ie": "utf8", "p": "40040100", "dp": "1"},
		},
		{
			name: "week",
			q:    Query{Text: "cats", TimeLimit: TimeLimitWeek},
			want: Payload{"query": "cats", "ie": "utf8", "p": "40040100", "dp": "1", "tsn": "7"},
		},
		{
			name: "day",
			q:    Query{Text: "cats", TimeLimit: TimeLimitDay},
			want: Payload{"query": "cats", "ie": "utf8", "p": "40040100", "dp": "1", "tsn": "1"},
		},
		{
			name: "month page 2",
			q:    Query{Text: "cats", TimeLimit: TimeLimitMonth, Page: 2},
			want: Payload{"query": "cats", "ie": "utf8", "p": "40040100", "dp": "1", "tsn": "30", "page": "2"},
		},
		{
			name: "year",
			q:    Query{Text: "cats", TimeLimit: TimeLimitYear},
			want: Payload{"query": "cats", "ie": "utf8", "p": "40040100", "dp": "1", "tsn": "365"},
		},
		{
			name: "page 3",
			q:    Query{Text: "cats", Page: 3},
			want: Payload{"query": "cats", "ie": "utf8", "p": "40040100", "dp": "1", "page": "3"},
		},
		{
			name: "region and safesearch ignored",
			q:    Query{Text: "cats", Region: "cn-zh", SafeSearch: "off", Page: 1},
			want: Payload{"query": "cats", "ie": "utf8", "p": "40040100", "dp": "1"},
		},
		{
			name: "page zero is first page",
			q:    Query{Text: "cats", Page: 0},
			want: Payload{"query": "cats", "ie": "utf8", "p": "40040100", "dp": "1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.BuildPayload(tt.q)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("BuildPayload() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSogou_BuildPayload_InvalidTimeLimit(t *testing.T) {
	s := newTestSogou(t)
	_, err := s.BuildPayload(Query{Text: "cats", TimeLimit: "fortnight"})
	if !errors.Is(err, ErrInvalidTimeLimit) {
		t.Fatalf("expected ErrInvalidTimeLimit, got %v", err)
	}
	if !strings.Contains(err.Error(), "fortnight") {
		t.Errorf("error should name the bad value: %v", err)
	}
}

func TestPayload_Encode(t *testing.T) {
	p := Payload{"query": "猫 cats", "ie": "utf8", "page": "2"}
	want := "ie=utf8&page=2&query=%E7%8C%AB+cats"
	if got := p.Encode(); got != want {
		t.Errorf("Encode() = %q, want %q", got, want)
	}
}

func TestSogou_WrapperWithAlternate(t *testing.T) {
	s := newTestSogou(t)
	page := `<html><body>
<div class="vrwrap">
  <h3><a href="/link?url=abc">Example title</a></h3>
  <div class="space-txt">Example body</div>
  <div data-url="https://example.com/target"></div>
</div>
</body></html>`

	got := s.PostExtractResults(s.ExtractResults(page))

	want := []Result{{Title: "Example title", Href: "https://example.com/target", Body: "Example body"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestSogou_WrapperWithoutAlternate(t *testing.T) {
	s := newTestSogou(t)
	page := `<html><body>
<div class="vrwrap">
  <h3><a href="/link?url=abc">Example title</a></h3>
  <div class="space-txt">Example body</div>
</div>
</body></html>`

	extracted := s.ExtractResults(page)
	if len(extracted) != 1 || extracted[0].Href != "/link?url=abc" {
		t.Fatalf("expected the raw wrapper link to be extracted, got %+v", extracted)
	}

	if got := s.PostExtractResults(extracted); len(got) != 0 {
		t.Errorf("expected no results, got %+v", got)
	}
}

func TestSogou_DataURLMustBeAbsolute(t *testing.T) {
	s := newTestSogou(t)
	page := `<div class="vrwrap">
  <h3><a href="/link?url=abc">Title</a></h3>
  <span data-url="   "></span>
  <span data-url="//example.com/schemeless"></span>
  <span data-url="https://example.com/second"></span>
</div>`

	// the first non-empty data-url wins even when it is unusable
	got := s.ExtractResults(page)
	if len(got) != 1 || got[0].Href != "/link?url=abc" {
		t.Fatalf("expected wrapper href to be kept, got %+v", got)
	}
}

func TestSogou_DataURLIgnoredForDirectLinks(t *testing.T) {
	s := newTestSogou(t)
	page := `<div class="vrwrap">
  <h3><a href="https://direct.example/page">Title</a></h3>
  <div data-url="https://other.example/"></div>
</div>`

	got := s.ExtractResults(page)
	if len(got) != 1 || got[0].Href != "https://direct.example/page" {
		t.Errorf("direct link should not be replaced, got %+v", got)
	}
}

func TestSogou_HintExcluded(t *testing.T) {
	s := newTestSogou(t)
	page := `<div class="vrwrap hint">
  <h3><a href="https://hint.example/">Related searches</a></h3>
  <div class="space-txt">should never appear</div>
</div>
<div class="vrwrap-hint-box">
  <h3><a href="https://hint2.example/">Also a hint</a></h3>
</div>`

	if got := s.ExtractResults(page); len(got) != 0 {
		t.Errorf("hint blocks must not be candidates, got %+v", got)
	}
}

func TestSogou_ExtractResults_Page(t *testing.T) {
	s := newTestSogou(t)
	page := readFixture(t, "sogou_results.html")

	extracted := s.ExtractResults(page)
	wantExtracted := []Result{
		{
			Title: "Go 语言官方网站",
			Href:  "https://go.dev/",
			Body:  "Go is an open source programming language that makes it simple to build secure, scalable systems.",
		},
		{
			Title: "Effective Go",
			Href:  "https://go.dev/doc/effective_go",
			Body:  "Tips for writing clear, idiomatic Go code.",
		},
		{
			Title: "A result with no alternate link",
			Href:  "/link?url=ZZnoAlternate",
			Body:  "dropped by post-processing",
		},
		{
			Title: "Standard library - Go Packages",
			Href:  "https://pkg.go.dev/std",
		},
		{
			Body: "A block with no title link",
		},
		{
			Title: "Go 在知乎",
			Href:  "/sogou?query=golang&insite=zhihu.com",
			Body:  "站内搜索",
		},
	}
	if !reflect.DeepEqual(extracted, wantExtracted) {
		t.Fatalf("ExtractResults mismatch\n got: %+v\nwant: %+v", extracted, wantExtracted)
	}

	got := s.PostExtractResults(extracted)
	want := []Result{
		wantExtracted[0],
		wantExtracted[1],
		wantExtracted[3],
		{
			Title: "Go 在知乎",
			Href:  "https://www.sogou.com/sogou?query=golang&insite=zhihu.com",
			Body:  "站内搜索",
		},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("PostExtractResults mismatch\n got: %+v\nwant: %+v", got, want)
	}
}

func TestSogou_PipelineInvariants(t *testing.T) {
	s := newTestSogou(t)
	pages := []string{
		readFixture(t, "sogou_results.html"),
		"",
		"not html at all",
		"<div class='vrwrap'>",
		"<div class='vrwrap'><h3><a href='https://sogou.com/link?url=x'>t</a></h3></div>",
		"<div class='vrwrap'><h3><a href='  '>t</a></h3></div>",
		"<div class='vrwrap'><h3><a>t</a></h3><div data-url='https://x.example/'></div></div>",
	}

	for i, page := range pages {
		first := s.PostExtractResults(s.ExtractResults(page))
		for _, r := range first {
			if r.Title == "" {
				t.Errorf("page %d: empty title in %+v", i, r)
			}
			if r.Href == "" || isSogouWrapper(r.Href) {
				t.Errorf("page %d: bad href in %+v", i, r)
			}
		}

		second := s.PostExtractResults(s.ExtractResults(page))
		if !reflect.DeepEqual(first, second) {
			t.Errorf("page %d: pipeline not idempotent: %+v vs %+v", i, first, second)
		}
	}
}

func TestSogou_PostExtractResults(t *testing.T) {
	s := newTestSogou(t)
	in := []Result{
		{Title: "", Href: "https://a.example/"},
		{Title: "no href", Href: ""},
		{Title: "relative", Href: "/sogou?insite=x", Body: "b"},
		{Title: "absolute", Href: "http://b.example/x"},
		{Title: "bad url", Href: "http://[::1"},
		{Title: "absolute wrapper", Href: "https://www.sogou.com/link?url=zz"},
		{Title: "parent relative", Href: "../about"},
	}

	got := s.PostExtractResults(in)
	want := []Result{
		{Title: "relative", Href: "https://www.sogou.com/sogou?insite=x", Body: "b"},
		{Title: "absolute", Href: "http://b.example/x"},
		{Title: "parent relative", Href: "https://www.sogou.com/about"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v\nwant %+v", got, want)
	}

	// inputs are never modified
	if in[2].Href != "/sogou?insite=x" {
		t.Errorf("input mutated: %+v", in[2])
	}
}

func TestSogou_CustomSearchURL(t *testing.T) {
	s, err := NewSogou("http://127.0.0.1:8080/web")
	if err != nil {
		t.Fatalf("NewSogou: %v", err)
	}
	got := s.PostExtractResults([]Result{{Title: "t", Href: "/x"}})
	if len(got) != 1 || got[0].Href != "http://127.0.0.1:8080/x" {
		t.Errorf("expected resolution against custom base, got %+v", got)
	}
}

func TestParseTimeLimit(t *testing.T) {
	tests := []struct {
		in      string
		want    TimeLimit
		wantErr bool
	}{
		{"", TimeLimitNone, false},
		{"d", TimeLimitDay, false},
		{"week", TimeLimitWeek, false},
		{"m", TimeLimitMonth, false},
		{"year", TimeLimitYear, false},
		{"h", "", true},
	}
	for _, tt := range tests {
		got, err := ParseTimeLimit(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseTimeLimit(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if tt.wantErr && !errors.Is(err, ErrInvalidTimeLimit) {
			t.Errorf("ParseTimeLimit(%q) should wrap ErrInvalidTimeLimit", tt.in)
		}
		if got != tt.want {
			t.Errorf("ParseTimeLimit(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
