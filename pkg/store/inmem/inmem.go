// Package inmem provides map-backed stores for tests and ephemeral runs.
// Values pass through the same text encoding as the SQLite stores, so both
// behave alike on read.
package inmem

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/entrhq/switchboard/pkg/store"
	"github.com/entrhq/switchboard/pkg/types"
)

// ProfileStore keeps encoded profile values per user.
type ProfileStore struct {
	mu    sync.RWMutex
	users map[string]map[string]string
}

var _ store.ProfileStore = (*ProfileStore)(nil)

func NewProfileStore() *ProfileStore {
	return &ProfileStore{users: map[string]map[string]string{}}
}

func (s *ProfileStore) Get(_ context.Context, userID string) (map[string]interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]interface{}, len(s.users[userID]))
	for k, text := range s.users[userID] {
		out[k] = store.DecodeValue(text)
	}
	return out, nil
}

func (s *ProfileStore) Upsert(_ context.Context, userID string, values map[string]interface{}) error {
	encoded := make(map[string]string, len(values))
	for k, v := range values {
		text, err := store.EncodeValue(v)
		if err != nil {
			return fmt.Errorf("key %q: %w", k, err)
		}
		encoded[k] = text
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	profile, ok := s.users[userID]
	if !ok {
		profile = map[string]string{}
		s.users[userID] = profile
	}
	for k, text := range encoded {
		profile[k] = text
	}
	return nil
}

func (s *ProfileStore) Close() error { return nil }

// CheckpointStore keeps one cloned checkpoint per thread.
type CheckpointStore struct {
	mu      sync.RWMutex
	threads map[string]*types.Checkpoint
}

var _ store.CheckpointStore = (*CheckpointStore)(nil)

func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{threads: map[string]*types.Checkpoint{}}
}

func (s *CheckpointStore) Load(_ context.Context, threadID string) (*types.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cp, ok := s.threads[threadID]
	if !ok {
		return nil, fmt.Errorf("thread %q: %w", threadID, store.ErrNotFound)
	}
	return cp.Clone(), nil
}

func (s *CheckpointStore) Save(_ context.Context, cp *types.Checkpoint) error {
	if cp == nil || cp.ThreadID == "" {
		return fmt.Errorf("checkpoint requires a thread id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := cp.Clone()
	next.Version = 1
	if current, ok := s.threads[cp.ThreadID]; ok {
		next.Version = current.Version + 1
	}
	next.UpdatedAt = time.Now().UTC()
	s.threads[cp.ThreadID] = next

	cp.Version = next.Version
	cp.UpdatedAt = next.UpdatedAt
	return nil
}

// Threads returns the number of stored threads.
func (s *CheckpointStore) Threads() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.threads)
}

func (s *CheckpointStore) Close() error { return nil }
