package config

import (
	"fmt"
	"strings"
	"sync"
)

const (
	// SectionIDCapabilities is the identifier for the capabilities section
	SectionIDCapabilities = "capabilities"
)

// Search and fetch backends.
const (
	SearchBackendTavily     = "tavily"
	SearchBackendDuckDuckGo = "duckduckgo"

	FetchBackendHTTP    = "http"
	FetchBackendBrowser = "browser"
)

// DefaultDocPatterns selects the document types the retrieval index loads.
var DefaultDocPatterns = []string{"**.pdf", "**.docx", "**.md", "**.txt"}

// CapabilitiesSection configures the tools workers can call.
type CapabilitiesSection struct {
	SearchBackend    string
	TavilyAPIKey     string
	SearchMaxResults int
	FetchBackend     string
	DocsDir          string
	DocPatterns      []string
	WatchDocs        bool
	SQLDatabase      string
	SQLPreviewRows   int
	mu               sync.RWMutex
}

// NewCapabilitiesSection creates a capabilities section with defaults.
func NewCapabilitiesSection() *CapabilitiesSection {
	s := &CapabilitiesSection{}
	s.Reset()
	return s
}

func (s *CapabilitiesSection) ID() string    { return SectionIDCapabilities }
func (s *CapabilitiesSection) Title() string { return "Capabilities" }
func (s *CapabilitiesSection) Description() string {
	return "Web search, page fetch, document retrieval and SQL database settings."
}

func (s *CapabilitiesSection) Data() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	patterns := make([]interface{}, len(s.DocPatterns))
	for i, p := range s.DocPatterns {
		patterns[i] = p
	}
	return map[string]any{
		"search_backend":     s.SearchBackend,
		"tavily_api_key":     s.TavilyAPIKey,
		"search_max_results": s.SearchMaxResults,
		"fetch_backend":      s.FetchBackend,
		"docs_dir":           s.DocsDir,
		"docs_patterns":      patterns,
		"watch_docs":         s.WatchDocs,
		"sql_database":       s.SQLDatabase,
		"sql_preview_rows":   s.SQLPreviewRows,
	}
}

func (s *CapabilitiesSection) SetData(data map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := data["search_backend"].(string); ok && v != "" {
		s.SearchBackend = strings.ToLower(v)
	}
	if v, ok := data["tavily_api_key"].(string); ok {
		s.TavilyAPIKey = v
	}
	if v, ok := intValue(data["search_max_results"]); ok {
		s.SearchMaxResults = v
	}
	if v, ok := data["fetch_backend"].(string); ok && v != "" {
		s.FetchBackend = strings.ToLower(v)
	}
	if v, ok := data["docs_dir"].(string); ok {
		s.DocsDir = v
	}
	if v, ok := stringSliceValue(data["docs_patterns"]); ok && len(v) > 0 {
		s.DocPatterns = v
	}
	if v, ok := boolValue(data["watch_docs"]); ok {
		s.WatchDocs = v
	}
	if v, ok := data["sql_database"].(string); ok {
		s.SQLDatabase = v
	}
	if v, ok := intValue(data["sql_preview_rows"]); ok {
		s.SQLPreviewRows = v
	}
	return nil
}

func (s *CapabilitiesSection) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch s.SearchBackend {
	case SearchBackendTavily, SearchBackendDuckDuckGo:
	default:
		return fmt.Errorf("unknown search backend %q", s.SearchBackend)
	}
	switch s.FetchBackend {
	case FetchBackendHTTP, FetchBackendBrowser:
	default:
		return fmt.Errorf("unknown fetch backend %q", s.FetchBackend)
	}
	if s.SearchMaxResults <= 0 {
		return fmt.Errorf("search_max_results must be positive")
	}
	if s.SQLPreviewRows <= 0 {
		return fmt.Errorf("sql_preview_rows must be positive")
	}
	return nil
}

func (s *CapabilitiesSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SearchBackend = SearchBackendTavily
	s.TavilyAPIKey = ""
	s.SearchMaxResults = 4
	s.FetchBackend = FetchBackendHTTP
	s.DocsDir = "./docs"
	s.DocPatterns = append([]string(nil), DefaultDocPatterns...)
	s.WatchDocs = false
	s.SQLDatabase = ""
	s.SQLPreviewRows = 20
}

// Snapshot returns a copy safe to read without locking.
func (s *CapabilitiesSection) Snapshot() CapabilitiesSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return CapabilitiesSettings{
		SearchBackend:    s.SearchBackend,
		TavilyAPIKey:     s.TavilyAPIKey,
		SearchMaxResults: s.SearchMaxResults,
		FetchBackend:     s.FetchBackend,
		DocsDir:          s.DocsDir,
		DocPatterns:      append([]string(nil), s.DocPatterns...),
		WatchDocs:        s.WatchDocs,
		SQLDatabase:      s.SQLDatabase,
		SQLPreviewRows:   s.SQLPreviewRows,
	}
}

// CapabilitiesSettings is an immutable copy of CapabilitiesSection.
type CapabilitiesSettings struct {
	SearchBackend    string
	TavilyAPIKey     string
	SearchMaxResults int
	FetchBackend     string
	DocsDir          string
	DocPatterns      []string
	WatchDocs        bool
	SQLDatabase      string
	SQLPreviewRows   int
}
