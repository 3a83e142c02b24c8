package rag

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"github.com/entrhq/switchboard/pkg/logging"
)

// loadConcurrency bounds files parsed at once.
const loadConcurrency = 4

// Stats summarises a build.
type Stats struct {
	Files     int
	Documents int
	Chunks    int
	Duration  time.Duration
}

// Service owns the document index: it builds it from the docs directory,
// once in the background at startup and again when documents change.
type Service struct {
	dir      string
	matcher  *Matcher
	splitter *Splitter
	index    *Index
	logger   *logging.Logger
	debounce time.Duration

	buildMu sync.Mutex

	startOnce sync.Once
	started   chan struct{}
	firstDone chan struct{}

	mu       sync.RWMutex
	last     Stats
	lastErr  error
	building bool
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSplitter replaces the default splitter.
func WithSplitter(sp *Splitter) ServiceOption {
	return func(s *Service) {
		if sp != nil {
			s.splitter = sp
		}
	}
}

// WithDebounce sets how long the watcher waits for changes to settle.
func WithDebounce(d time.Duration) ServiceOption {
	return func(s *Service) { s.debounce = d }
}

// NewService creates a service indexing files under dir that match patterns.
func NewService(index *Index, dir string, patterns []string, opts ...ServiceOption) (*Service, error) {
	if index == nil {
		return nil, errors.New("index is required")
	}
	m, err := NewMatcher(patterns)
	if err != nil {
		return nil, err
	}
	s := &Service{
		dir:       dir,
		matcher:   m,
		splitter:  NewSplitter(DefaultChunkSize, DefaultChunkOverlap, nil),
		index:     index,
		logger:    logging.Nop(),
		debounce:  500 * time.Millisecond,
		started:   make(chan struct{}),
		firstDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start builds the index once in the background. Later calls do nothing.
func (s *Service) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		close(s.started)
		go func() {
			defer close(s.firstDone)
			if _, err := s.Build(ctx); err != nil {
				s.logger.Errorf("document index build failed: %v", err)
			}
		}()
	})
}

// Wait blocks until the background build started by Start has finished.
// It returns at once when Start was never called.
func (s *Service) Wait(ctx context.Context) error {
	select {
	case <-s.started:
	default:
		return nil
	}
	select {
	case <-s.firstDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ready reports whether the index holds any chunks.
func (s *Service) Ready() bool {
	return s.index.Len() > 0
}

// Building reports whether a build is in progress.
func (s *Service) Building() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.building
}

// LastBuild returns the stats and error of the most recent build.
func (s *Service) LastBuild() (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.lastErr
}

// Search queries the index.
func (s *Service) Search(ctx context.Context, query string, opts SearchOptions) ([]Hit, error) {
	return s.index.Search(ctx, query, opts)
}

// Build loads every matching file, splits it and replaces the index.
// Builds are serialised; files that fail to load are logged and skipped.
func (s *Service) Build(ctx context.Context) (Stats, error) {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	s.setBuilding(true)
	start := time.Now()
	stats, err := s.build(ctx)
	stats.Duration = time.Since(start)

	s.mu.Lock()
	s.building = false
	s.last, s.lastErr = stats, err
	s.mu.Unlock()

	if err == nil {
		s.logger.Infof("document index: %d files, %d documents, %d chunks in %s",
			stats.Files, stats.Documents, stats.Chunks, stats.Duration.Round(time.Millisecond))
	}
	return stats, err
}

func (s *Service) setBuilding(v bool) {
	s.mu.Lock()
	s.building = v
	s.mu.Unlock()
}

func (s *Service) build(ctx context.Context) (Stats, error) {
	files, err := Discover(s.dir, s.matcher)
	if err != nil {
		return Stats{}, err
	}

	loaded := make([][]Document, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(loadConcurrency)
	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			docs, err := LoadFile(path)
			if err != nil {
				s.logger.Warnf("skipping %s: %v", path, err)
				return nil
			}
			loaded[i] = docs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}

	var docs []Document
	for _, d := range loaded {
		docs = append(docs, d...)
	}
	chunks := s.splitter.Split(docs)
	if err := s.index.Replace(ctx, chunks); err != nil {
		return Stats{}, err
	}
	return Stats{Files: len(files), Documents: len(docs), Chunks: len(chunks)}, nil
}

// Watch rebuilds the index whenever a matching file under the docs
// directory is created, written, removed or renamed. It blocks until ctx
// is done.
func (s *Service) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create docs dir: %w", err)
	}
	if err := s.addDirs(watcher); err != nil {
		return err
	}

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !s.relevant(watcher, event) {
				continue
			}
			s.logger.Debugf("docs changed: %s %s", event.Op, event.Name)
			if timer == nil {
				timer = time.NewTimer(s.debounce)
			} else {
				timer.Reset(s.debounce)
			}
			fire = timer.C

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warnf("docs watcher error: %v", err)

		case <-fire:
			fire = nil
			if _, err := s.Build(ctx); err != nil && ctx.Err() == nil {
				s.logger.Errorf("document index rebuild failed: %v", err)
			}
		}
	}
}

// relevant filters events down to matching files, and starts watching
// newly created directories.
func (s *Service) relevant(watcher *fsnotify.Watcher, event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = watcher.Add(event.Name)
			return true
		}
	}
	rel, err := filepath.Rel(s.dir, event.Name)
	if err != nil {
		return false
	}
	return s.matcher.Match(rel)
}

func (s *Service) addDirs(watcher *fsnotify.Watcher) error {
	return filepath.WalkDir(s.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != s.dir && filepath.Base(path)[0] == '.' {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}
