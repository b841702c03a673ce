package serp

import (
	"strings"
	"testing"

	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
)

func TestPreProcessHTML(t *testing.T) {
	raw := `<html><head><style>.a{}</style><script>document.write("<div class='vrwrap'>")</script></head>
<body><!-- ad slot --><noscript>enable js</noscript><template><p>tpl</p></template><p>keep &amp; me</p></body></html>`

	got := PreProcessHTML(raw)

	for _, gone := range []string{"<script", "<style", "<noscript", "<template", "ad slot", "document.write"} {
		if strings.Contains(got, gone) {
			t.Errorf("expected %q to be stripped, got %s", gone, got)
		}
	}
	if !strings.Contains(got, "<p>keep &amp; me</p>") {
		t.Errorf("expected content to survive, got %s", got)
	}
}

func TestPreProcessHTML_KeepsWordsApart(t *testing.T) {
	s := newTestSogou(t)
	raw := `<div class="vrwrap"><h3><a href="https://x.example/">foo<script>x()</script>bar</a></h3>
<div class="space-txt">one<style>.b{}</style>two<template>t</template>three</div></div>`

	results := s.ExtractResults(raw)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Title != "foo bar" {
		t.Errorf("title = %q, want %q", results[0].Title, "foo bar")
	}
	if results[0].Body != "one two three" {
		t.Errorf("body = %q, want %q", results[0].Body, "one two three")
	}
}

func TestPreProcessHTML_Empty(t *testing.T) {
	got := PreProcessHTML("")
	root := ExtractTree(got)
	if root == nil {
		t.Fatal("expected a document for empty input")
	}
	if n := htmlquery.Find(root, "//div"); len(n) != 0 {
		t.Errorf("expected no elements, got %d", len(n))
	}
}

func TestJoinText(t *testing.T) {
	root := ExtractTree(`<div id="x"><h3><a>  first <b> </b>second<i>
third </i></a></h3></div>`)
	item := htmlquery.FindOne(root, `//div[@id="x"]`)

	got := joinText(item, xpath.MustCompile(`.//h3//a//text()`))
	if got != "first second third" {
		t.Errorf("joinText() = %q", got)
	}

	if got := joinText(item, xpath.MustCompile(`.//p//text()`)); got != "" {
		t.Errorf("expected empty join for no matches, got %q", got)
	}
}

func TestFirstText(t *testing.T) {
	root := ExtractTree(`<div id="x"><a href=" "></a><a href=" /second "></a><a href="/third"></a></div>`)
	item := htmlquery.FindOne(root, `//div[@id="x"]`)

	if got := firstText(item, xpath.MustCompile(`.//a/@href`)); got != "/second" {
		t.Errorf("firstText() = %q, want /second", got)
	}
	if got := firstText(item, xpath.MustCompile(`.//span/@title`)); got != "" {
		t.Errorf("expected empty first for no matches, got %q", got)
	}
}

func TestQueriesAreScopedToBlock(t *testing.T) {
	root := ExtractTree(`<div id="a"><h3><a href="/a">A</a></h3></div><div id="b"></div>`)
	b := htmlquery.FindOne(root, `//div[@id="b"]`)

	if got := firstText(b, xpath.MustCompile(`.//h3//a/@href`)); got != "" {
		t.Errorf("relative query escaped its block: %q", got)
	}
}
