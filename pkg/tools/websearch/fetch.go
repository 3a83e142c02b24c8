package websearch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultMaxPageText bounds the text fetch_page hands to the oracle.
	DefaultMaxPageText = 32 * 1024

	maxFetchBytes = 4 << 20
)

// Fetcher retrieves a page and returns its readable text.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}

// HTTPFetcher downloads pages with a plain GET.
type HTTPFetcher struct {
	client  *http.Client
	maxText int
}

// NewHTTPFetcher creates an HTTP fetcher with a modest timeout. A
// non-positive maxText uses DefaultMaxPageText.
func NewHTTPFetcher(client *http.Client, maxText int) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if maxText <= 0 {
		maxText = DefaultMaxPageText
	}
	return &HTTPFetcher{client: client, maxText: maxText}
}

// Fetch downloads url and extracts its text.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	trimmed := strings.TrimSpace(url)
	if trimmed == "" {
		return nil, errors.New("fetch url is empty")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, trimmed, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch http %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return nil, err
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		text := string(body)
		page := &Page{Text: truncateUTF8(strings.TrimSpace(text), f.maxText)}
		page.Truncated = len(page.Text) < len(strings.TrimSpace(text))
		return page, nil
	}
	return ExtractText(string(body), f.maxText)
}

// FormatPage renders a fetched page for the oracle.
func FormatPage(url string, page *Page) string {
	var b strings.Builder
	if page.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n", page.Title)
	}
	fmt.Fprintf(&b, "URL: %s\n", url)
	if page.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", page.Description)
	}
	b.WriteString("\n")
	if page.Text == "" {
		b.WriteString("(no readable text)")
	} else {
		b.WriteString(page.Text)
	}
	if page.Truncated {
		b.WriteString("\n[TRUNCATED]")
	}
	return b.String()
}
