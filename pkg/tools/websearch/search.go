// Package websearch provides the web_search and fetch_page capabilities.
package websearch

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultMaxResults is how many hits web_search reports.
	DefaultMaxResults = 4

	// maxSnippet bounds each hit's snippet, in characters.
	maxSnippet = 500

	userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Result is one search hit.
type Result struct {
	Title   string
	URL     string
	Snippet string
}

// Searcher runs a web query.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]Result, error)
}

// FormatResults renders hits as a numbered list, or "No results found.".
func FormatResults(results []Result) string {
	if len(results) == 0 {
		return "No results found."
	}

	blocks := make([]string, 0, len(results))
	for i, r := range results {
		title := r.Title
		if title == "" {
			title = r.URL
		}
		snippet := strings.ReplaceAll(r.Snippet, "\n", " ")
		snippet = strings.TrimSpace(truncateRunes(snippet, maxSnippet))
		blocks = append(blocks, fmt.Sprintf("%d. %s\n   %s\n   %s", i+1, title, r.URL, snippet))
	}
	return "Top results:\n\n" + strings.Join(blocks, "\n\n")
}

// truncateRunes cuts s to at most n characters.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// backoff waits before retrying a rate-limited request, doubling up to 30s.
type backoff struct {
	delay time.Duration
}

func (b *backoff) wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(b.delay):
	}
	if b.delay < 30*time.Second {
		b.delay *= 2
	}
	return nil
}
