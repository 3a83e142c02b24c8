// Package rag implements document_search: a local retrieval index over PDF,
// DOCX, Markdown and text files, queried with maximal marginal relevance
// and answered by the oracle from the retrieved context only.
package rag

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// Document is the text of one loaded file, or of one page for PDFs.
type Document struct {
	Source string
	// Page is the 1-based page number, or 0 when the format has no pages.
	Page int
	Text string
}

// Matcher selects files by slash-separated glob patterns relative to the
// docs directory. Matching is case-insensitive.
type Matcher struct {
	patterns []string
	globs    []glob.Glob
}

// NewMatcher compiles patterns such as "**.pdf" or "reports/*.docx".
func NewMatcher(patterns []string) (*Matcher, error) {
	m := &Matcher{}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		g, err := glob.Compile(strings.ToLower(p), '/')
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
		m.patterns = append(m.patterns, p)
		m.globs = append(m.globs, g)
	}
	if len(m.globs) == 0 {
		return nil, fmt.Errorf("no document patterns given")
	}
	return m, nil
}

// Match reports whether the relative path rel is selected.
func (m *Matcher) Match(rel string) bool {
	rel = strings.ToLower(filepath.ToSlash(rel))
	for _, g := range m.globs {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

// Patterns returns the source patterns.
func (m *Matcher) Patterns() []string {
	return append([]string(nil), m.patterns...)
}

// Discover walks dir and returns the matching files in lexical order.
// A missing directory yields no files.
func Discover(dir string, m *Matcher) ([]string, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	var files []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if m.Match(rel) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

// LoadFile reads path with the loader for its extension. Files with no
// readable text yield no documents.
func LoadFile(path string) ([]Document, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return loadPDF(path)
	case ".docx":
		return loadDOCX(path)
	default:
		return loadPlain(path)
	}
}

func loadPlain(path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(strings.ReplaceAll(string(data), "\r\n", "\n"))
	if text == "" {
		return nil, nil
	}
	return []Document{{Source: path, Text: text}}, nil
}
