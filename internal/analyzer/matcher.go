package analyzer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/FranksOps/burrow/internal/storage"
)

// TermMatch represents occurrences of a search term within one hit.
type TermMatch struct {
	Term      string   `json:"term"`
	Query     string   `json:"query"`
	Href      string   `json:"href"`
	Domain    string   `json:"domain"`
	Count     int      `json:"count"`
	Sentences []string `json:"sentences"`
}

// TermTotal aggregates the matches for one term across hits.
type TermTotal struct {
	Term        string `json:"term"`
	Hits        int    `json:"hits"`
	Occurrences int    `json:"occurrences"`
	Domains     int    `json:"domains"`
}

// AnalyzeHits scans each hit's title and snippet for the terms.
func AnalyzeHits(hits []*storage.Hit, terms []string) []TermMatch {
	if len(terms) == 0 {
		return nil
	}
	var out []TermMatch
	for _, h := range hits {
		content := h.Title + "\n" + h.Body
		for _, m := range FindTermMatches(content, h.Href, h.Domain(), terms) {
			m.Query = h.Query
			out = append(out, m)
		}
	}
	return out
}

// Tally sums matches per term, in the order terms were given. Terms with no
// matches are reported with zero counts.
func Tally(matches []TermMatch, terms []string) []TermTotal {
	totals := make([]TermTotal, len(terms))
	index := make(map[string]int, len(terms))
	domains := make([]map[string]struct{}, len(terms))
	for i, t := range terms {
		totals[i].Term = t
		index[t] = i
		domains[i] = make(map[string]struct{})
	}

	for _, m := range matches {
		i, ok := index[m.Term]
		if !ok {
			continue
		}
		totals[i].Hits++
		totals[i].Occurrences += m.Count
		if m.Domain != "" {
			domains[i][m.Domain] = struct{}{}
		}
	}
	for i := range totals {
		totals[i].Domains = len(domains[i])
	}
	return totals
}

// FindTermMatches scans content for each term (case-insensitive) and returns
// one TermMatch per term found, with every sentence containing it.
func FindTermMatches(content, href, domain string, terms []string) []TermMatch {
	if len(content) == 0 || len(terms) == 0 {
		return nil
	}

	lowerContent := strings.ToLower(content)
	sentences := splitIntoSentences(content)

	results := make([]TermMatch, 0, len(terms))
	for _, term := range terms {
		lowerTerm := strings.ToLower(term)
		if lowerTerm == "" {
			continue
		}
		count := strings.Count(lowerContent, lowerTerm)
		if count == 0 {
			continue
		}

		var matched []string
		for _, s := range sentences {
			if strings.Contains(s.lower, lowerTerm) {
				matched = append(matched, s.original)
			}
		}

		results = append(results, TermMatch{
			Term:      term,
			Href:      href,
			Domain:    domain,
			Count:     count,
			Sentences: matched,
		})
	}
	return results
}

type sentence struct {
	original string
	lower    string
}

// isTerminator reports sentence ends in Latin and CJK punctuation. Newlines
// also end a sentence so titles stay apart from snippets.
func isTerminator(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？', '\n':
		return true
	}
	return false
}

// splitIntoSentences splits text on terminators, keeping each terminator
// with its sentence and dropping empty pieces.
func splitIntoSentences(text string) []sentence {
	sentences := make([]sentence, 0, len(text)/50+1)
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		sentences = append(sentences, sentence{original: s, lower: strings.ToLower(s)})
	}

	start := 0
	for i, r := range text {
		if i < start || !isTerminator(r) {
			continue
		}
		end := i + utf8.RuneLen(r)
		for end < len(text) {
			next, size := utf8.DecodeRuneInString(text[end:])
			if !unicode.IsSpace(next) {
				break
			}
			end += size
		}
		add(text[start:end])
		start = end
	}
	if start < len(text) {
		add(text[start:])
	}
	return sentences
}
