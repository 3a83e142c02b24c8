package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/entrhq/switchboard/pkg/store"
	"github.com/entrhq/switchboard/pkg/types"
)

// CheckpointStore keeps the latest conversation of each thread as a JSON
// document in the checkpoints table.
type CheckpointStore struct {
	db     *sql.DB
	mu     sync.Mutex
	dbPath string
}

var _ store.CheckpointStore = (*CheckpointStore)(nil)

// NewCheckpointStore opens (or creates) the checkpoint database at path.
func NewCheckpointStore(path string) (*CheckpointStore, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}

	s := &CheckpointStore{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *CheckpointStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS checkpoints (
		thread_id TEXT PRIMARY KEY,
		state TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create checkpoints table: %w", err)
	}
	return nil
}

// Load returns the thread's checkpoint or store.ErrNotFound.
func (s *CheckpointStore) Load(ctx context.Context, threadID string) (*types.Checkpoint, error) {
	var (
		state   string
		version int64
		updated string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT state, version, updated_at FROM checkpoints WHERE thread_id = ?", threadID,
	).Scan(&state, &version, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("thread %q: %w", threadID, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}

	updatedAt, err := time.Parse(time.RFC3339Nano, updated)
	if err != nil {
		return nil, fmt.Errorf("decode checkpoint %q timestamp: %w", threadID, err)
	}

	var messages types.Conversation
	if err := json.Unmarshal([]byte(state), &messages); err != nil {
		return nil, fmt.Errorf("decode checkpoint %q: %w", threadID, err)
	}
	return &types.Checkpoint{
		ThreadID:  threadID,
		Messages:  messages,
		Version:   version,
		UpdatedAt: updatedAt,
	}, nil
}

// Save replaces the thread's checkpoint and bumps its version. cp.Version
// and cp.UpdatedAt are updated to the stored values.
func (s *CheckpointStore) Save(ctx context.Context, cp *types.Checkpoint) error {
	if cp == nil || cp.ThreadID == "" {
		return fmt.Errorf("checkpoint requires a thread id")
	}
	messages := cp.Messages
	if messages == nil {
		messages = types.Conversation{}
	}
	state, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("encode checkpoint %q: %w", cp.ThreadID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	var version int64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO checkpoints (thread_id, state, version, updated_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(thread_id) DO UPDATE SET
			state = excluded.state,
			version = checkpoints.version + 1,
			updated_at = excluded.updated_at
		RETURNING version`, cp.ThreadID, string(state), now.Format(time.RFC3339Nano)).Scan(&version)
	if err != nil {
		return fmt.Errorf("save checkpoint %q: %w", cp.ThreadID, err)
	}

	cp.Version = version
	cp.UpdatedAt = now
	return nil
}

// Path returns the database file location.
func (s *CheckpointStore) Path() string {
	return s.dbPath
}

// Close checkpoints the WAL and closes the database.
func (s *CheckpointStore) Close() error {
	return CloseDB(s.db)
}
