package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/entrhq/switchboard/pkg/store"
)

// ProfileStore keeps user facts in the user_profile table, one row per
// (user_id, key).
type ProfileStore struct {
	db     *sql.DB
	mu     sync.Mutex
	dbPath string
}

var _ store.ProfileStore = (*ProfileStore)(nil)

// NewProfileStore opens (or creates) the profile database at path.
func NewProfileStore(path string) (*ProfileStore, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}

	s := &ProfileStore{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *ProfileStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS user_profile (
		user_id TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (user_id, key)
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create user_profile table: %w", err)
	}
	return nil
}

// Get returns every fact stored for userID.
func (s *ProfileStore) Get(ctx context.Context, userID string) (map[string]interface{}, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT key, value FROM user_profile WHERE user_id = ?", userID)
	if err != nil {
		return nil, fmt.Errorf("query profile: %w", err)
	}
	defer rows.Close()

	out := make(map[string]interface{})
	for rows.Next() {
		var key string
		var value sql.NullString
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan profile row: %w", err)
		}
		if !value.Valid {
			out[key] = nil
			continue
		}
		out[key] = store.DecodeValue(value.String)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	return out, nil
}

// Upsert writes all values for userID in one transaction.
func (s *ProfileStore) Upsert(ctx context.Context, userID string, values map[string]interface{}) error {
	if len(values) == 0 {
		return nil
	}

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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin profile upsert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO user_profile (user_id, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("prepare profile upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for k, text := range encoded {
		if _, err := stmt.ExecContext(ctx, userID, k, text, now); err != nil {
			return fmt.Errorf("upsert %q: %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit profile upsert: %w", err)
	}
	return nil
}

// Path returns the database file location.
func (s *ProfileStore) Path() string {
	return s.dbPath
}

// Close checkpoints the WAL and closes the database.
func (s *ProfileStore) Close() error {
	return CloseDB(s.db)
}
