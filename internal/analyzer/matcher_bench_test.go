package analyzer

import (
	"strings"
	"testing"
)

// benchmarkContent builds mixed Chinese and English snippet text.
func benchmarkContent(size int) string {
	sb := strings.Builder{}
	sb.Grow(size)

	snippets := []string{
		"Go is an open source programming language that makes it simple to build secure, scalable systems.",
		"Go 语言是谷歌开发的一种静态强类型、编译型语言。Go 语言的并发模型基于 goroutine 和 channel。",
		"Effective Go gives tips for writing clear, idiomatic Go code!",
		"搜狗搜索是中国领先的搜索引擎之一？它提供网页、图片和视频搜索。",
		"The standard library covers networking, encoding and cryptography.",
	}

	for sb.Len() < size {
		for _, s := range snippets {
			sb.WriteString(s)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func BenchmarkFindTermMatches_SmallContent(b *testing.B) {
	content := benchmarkContent(1024)
	terms := []string{"Go", "goroutine", "搜索", "library"}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		FindTermMatches(content, "https://go.dev/", "go.dev", terms)
	}
}

func BenchmarkFindTermMatches_LargeContent(b *testing.B) {
	content := benchmarkContent(100 * 1024)
	terms := []string{"Go", "goroutine", "搜索", "library", "并发", "channel"}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		FindTermMatches(content, "https://go.dev/", "go.dev", terms)
	}
}

func BenchmarkSplitIntoSentences(b *testing.B) {
	content := benchmarkContent(50 * 1024)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		splitIntoSentences(content)
	}
}
