// Package sqlite implements the profile and checkpoint stores on SQLite
// through the pure-Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// pragmas applied to every connection: write-ahead logging so readers do
// not block the single writer, and a busy timeout so concurrent writers
// queue instead of failing.
const pragmas = "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

// Open opens the database file at path, creating its directory.
func Open(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", "file:"+path+pragmas)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// CloseDB folds the WAL back into the main file before closing.
func CloseDB(db *sql.DB) error {
	if db == nil {
		return nil
	}
	_, ckErr := db.ExecContext(context.Background(), "PRAGMA wal_checkpoint(TRUNCATE)")
	if err := db.Close(); err != nil {
		return err
	}
	if ckErr != nil {
		return fmt.Errorf("wal checkpoint: %w", ckErr)
	}
	return nil
}

// OpenReadOnly opens an existing database for queries only. Writes fail
// at the connection level.
func OpenReadOnly(path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("database %s: %w", path, err)
	}
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro&_pragma=query_only(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}
