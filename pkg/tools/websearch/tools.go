package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/entrhq/switchboard/pkg/agent/tools"
)

// SearchTool is the web_search capability.
type SearchTool struct {
	searcher   Searcher
	maxResults int
}

// NewSearchTool wraps searcher. A non-positive maxResults uses DefaultMaxResults.
func NewSearchTool(searcher Searcher, maxResults int) *SearchTool {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	return &SearchTool{searcher: searcher, maxResults: maxResults}
}

func (t *SearchTool) Name() string { return "web_search" }

func (t *SearchTool) Description() string {
	return "Search the public web. Returns the top results with title, URL and a short snippet."
}

func (t *SearchTool) Schema() map[string]interface{} {
	return tools.BaseToolSchema(map[string]interface{}{
		"query": tools.StringProperty("The search query"),
	}, []string{"query"})
}

func (t *SearchTool) Execute(ctx context.Context, arguments json.RawMessage) (string, error) {
	var input struct {
		Query string `json:"query"`
	}
	if err := tools.DecodeArguments(arguments, &input); err != nil {
		return "", err
	}
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return "", fmt.Errorf("query is required")
	}

	results, err := t.searcher.Search(ctx, query, t.maxResults)
	if err != nil {
		return "", fmt.Errorf("search failed: %w", err)
	}
	if len(results) > t.maxResults {
		results = results[:t.maxResults]
	}
	return FormatResults(results), nil
}

// FetchTool is the fetch_page capability.
type FetchTool struct {
	fetcher Fetcher
}

// NewFetchTool wraps fetcher.
func NewFetchTool(fetcher Fetcher) *FetchTool {
	return &FetchTool{fetcher: fetcher}
}

func (t *FetchTool) Name() string { return "fetch_page" }

func (t *FetchTool) Description() string {
	return "Download a web page and return its readable text."
}

func (t *FetchTool) Schema() map[string]interface{} {
	return tools.BaseToolSchema(map[string]interface{}{
		"url": tools.StringProperty("Absolute http(s) URL of the page"),
	}, []string{"url"})
}

func (t *FetchTool) Execute(ctx context.Context, arguments json.RawMessage) (string, error) {
	var input struct {
		URL string `json:"url"`
	}
	if err := tools.DecodeArguments(arguments, &input); err != nil {
		return "", err
	}
	url := strings.TrimSpace(input.URL)
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return "", fmt.Errorf("url must start with http:// or https://")
	}

	page, err := t.fetcher.Fetch(ctx, url)
	if err != nil {
		return "", fmt.Errorf("fetch failed: %w", err)
	}
	return FormatPage(url, page), nil
}
