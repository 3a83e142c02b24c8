// Package store defines the durable state behind the orchestrator: per-user
// profile facts and per-thread conversation checkpoints.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/entrhq/switchboard/pkg/types"
)

// ErrNotFound is returned when a checkpoint does not exist for a thread.
var ErrNotFound = errors.New("not found")

// ProfileStore persists user facts and preferences.
//
// Upsert is last-write-wins per key and atomic per call: concurrent
// writers for the same user never interleave within a single mapping.
type ProfileStore interface {
	// Get returns every stored fact for userID. An unknown user yields
	// an empty, non-nil map.
	Get(ctx context.Context, userID string) (map[string]interface{}, error)

	// Upsert inserts or replaces the given keys for userID.
	Upsert(ctx context.Context, userID string, values map[string]interface{}) error

	Close() error
}

// CheckpointStore persists the conversation of each thread.
type CheckpointStore interface {
	// Load returns the latest checkpoint or ErrNotFound.
	Load(ctx context.Context, threadID string) (*types.Checkpoint, error)

	// Save replaces the thread's checkpoint. The stored version is one
	// greater than the previous one.
	Save(ctx context.Context, cp *types.Checkpoint) error

	Close() error
}

// EncodeValue renders a profile value as stored text. Maps and slices are
// stored as canonical JSON; everything else as its plain text form.
func EncodeValue(v interface{}) (string, error) {
	if v == nil {
		return "null", nil
	}
	if s, ok := v.(string); ok {
		return s, nil
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		raw, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("encode profile value: %w", err)
		}
		return string(raw), nil
	default:
		return fmt.Sprint(v), nil
	}
}

// DecodeValue reverses EncodeValue. Text that parses as a JSON object or
// array is returned decoded (numbers as json.Number); anything else is
// returned as the raw text.
func DecodeValue(text string) interface{} {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || (trimmed[0] != '{' && trimmed[0] != '[') {
		return text
	}

	dec := json.NewDecoder(strings.NewReader(trimmed))
	dec.UseNumber()
	var out interface{}
	if err := dec.Decode(&out); err != nil || dec.More() {
		return text
	}
	return out
}
