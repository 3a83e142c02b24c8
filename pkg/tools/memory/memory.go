// Package memory provides the remember and recall capabilities over the
// profile store. Both act on the user scoped into the call's context.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	agentmemory "github.com/entrhq/switchboard/pkg/agent/memory"
	"github.com/entrhq/switchboard/pkg/agent/scope"
	"github.com/entrhq/switchboard/pkg/agent/tools"
	"github.com/entrhq/switchboard/pkg/store"
)

const notInitialized = "Memory store not initialized."

// RememberTool saves one fact for the current user.
type RememberTool struct {
	profiles store.ProfileStore
}

// NewRememberTool creates a RememberTool. A nil store is allowed; the tool
// then reports that memory is unavailable.
func NewRememberTool(profiles store.ProfileStore) *RememberTool {
	return &RememberTool{profiles: profiles}
}

// Name returns the tool name.
func (t *RememberTool) Name() string {
	return "remember"
}

// Description returns the tool description.
func (t *RememberTool) Description() string {
	return "Save or update a user-specific fact or preference in persistent memory."
}

// Schema returns the JSON schema for the tool's input parameters.
func (t *RememberTool) Schema() map[string]interface{} {
	return tools.BaseToolSchema(
		map[string]interface{}{
			"key": tools.StringProperty("Short snake_case name of the fact, e.g. tone or prefers_sources"),
			"value": map[string]interface{}{
				"description": "Value to store; any JSON value",
			},
		},
		[]string{"key", "value"},
	)
}

// Execute stores the value.
func (t *RememberTool) Execute(ctx context.Context, arguments json.RawMessage) (string, error) {
	var input struct {
		Key   string          `json:"key"`
		Value json.RawMessage `json:"value"`
	}
	if err := tools.DecodeArguments(arguments, &input); err != nil {
		return "", err
	}
	key := strings.TrimSpace(input.Key)
	if key == "" {
		return "", fmt.Errorf("key is required")
	}
	if t.profiles == nil {
		return notInitialized, nil
	}

	value, err := decodeValue(input.Value)
	if err != nil {
		return "", err
	}
	if err := t.profiles.Upsert(ctx, scope.UserID(ctx), map[string]interface{}{key: value}); err != nil {
		return "", fmt.Errorf("failed to save %s: %w", key, err)
	}
	return fmt.Sprintf("Saved: %s = %s", key, agentmemory.FormatValue(value)), nil
}

// decodeValue keeps strings, numbers and booleans as Go scalars and
// objects/arrays as decoded JSON.
func decodeValue(raw json.RawMessage) (interface{}, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("value is required")
	}
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("invalid value: %w", err)
	}
	return v, nil
}

// RecallTool reads one fact for the current user.
type RecallTool struct {
	profiles store.ProfileStore
}

// NewRecallTool creates a RecallTool.
func NewRecallTool(profiles store.ProfileStore) *RecallTool {
	return &RecallTool{profiles: profiles}
}

func (t *RecallTool) Name() string {
	return "recall"
}

func (t *RecallTool) Description() string {
	return "Fetch a previously saved user-specific fact or preference from persistent memory."
}

func (t *RecallTool) Schema() map[string]interface{} {
	return tools.BaseToolSchema(
		map[string]interface{}{
			"key": tools.StringProperty("Name of the fact to look up"),
		},
		[]string{"key"},
	)
}

func (t *RecallTool) Execute(ctx context.Context, arguments json.RawMessage) (string, error) {
	var input struct {
		Key string `json:"key"`
	}
	if err := tools.DecodeArguments(arguments, &input); err != nil {
		return "", err
	}
	if t.profiles == nil {
		return notInitialized, nil
	}

	profile, err := t.profiles.Get(ctx, scope.UserID(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to read memory: %w", err)
	}
	value, ok := profile[input.Key]
	if !ok || value == nil {
		return fmt.Sprintf("No value saved for '%s'.", input.Key), nil
	}
	return agentmemory.FormatValue(value), nil
}
