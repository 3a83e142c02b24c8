package config

import (
	"fmt"
	"path/filepath"
	"sync"
)

const (
	// SectionIDStorage is the identifier for the storage section
	SectionIDStorage = "storage"

	// DefaultDataDir holds the SQLite files when nothing else is configured
	DefaultDataDir = "./data"
)

// File names inside the data directory.
const (
	ProfileDBFile    = "profile.sqlite3"
	CheckpointDBFile = "graph_state.sqlite3"
	IndexDBFile      = "rag_index.sqlite3"
)

// StorageSection configures where durable state lives.
type StorageSection struct {
	DataDir string
	LogDir  string // optional; defaults to ~/.switchboard/logs
	mu      sync.RWMutex
}

// NewStorageSection creates a storage section with defaults.
func NewStorageSection() *StorageSection {
	s := &StorageSection{}
	s.Reset()
	return s
}

func (s *StorageSection) ID() string          { return SectionIDStorage }
func (s *StorageSection) Title() string       { return "Storage" }
func (s *StorageSection) Description() string { return "Location of the profile, checkpoint and index databases." }

func (s *StorageSection) Data() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]any{
		"data_dir": s.DataDir,
		"log_dir":  s.LogDir,
	}
}

func (s *StorageSection) SetData(data map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := data["data_dir"].(string); ok && v != "" {
		s.DataDir = v
	}
	if v, ok := data["log_dir"].(string); ok {
		s.LogDir = v
	}
	return nil
}

func (s *StorageSection) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	return nil
}

func (s *StorageSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.DataDir = DefaultDataDir
	s.LogDir = ""
}

// GetDataDir returns the data directory.
func (s *StorageSection) GetDataDir() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.DataDir
}

// GetLogDir returns the configured log directory, possibly empty.
func (s *StorageSection) GetLogDir() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.LogDir
}

// Path joins name onto the data directory.
func (s *StorageSection) Path(name string) string {
	return filepath.Join(s.GetDataDir(), name)
}
