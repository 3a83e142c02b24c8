package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// Tool represents a capability that a worker can invoke during its loop.
// Tools are requested by the oracle through native function calls; the
// arguments arrive as the raw JSON object the oracle produced.
//
// Example call emitted by the oracle:
//
//	{"name": "remember", "arguments": {"key": "tone", "value": "concise"}}
type Tool interface {
	// Name returns the unique identifier for this tool (e.g., "remember")
	Name() string

	// Description returns a human-readable description of what this tool does.
	// It is shown to the oracle verbatim.
	Description() string

	// Schema returns the JSON schema for this tool's input parameters
	Schema() map[string]interface{}

	// Execute runs the tool with the given JSON arguments and returns the
	// text handed back to the oracle. An error is not fatal for the turn:
	// the worker reports it to the oracle as the call's result.
	Execute(ctx context.Context, arguments json.RawMessage) (string, error)
}

// BaseToolSchema creates a common JSON schema structure for a tool
// with the given properties and required fields
func BaseToolSchema(properties map[string]interface{}, required []string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// StringProperty is a schema property of type string.
func StringProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
	}
}

// DecodeArguments unmarshals the oracle's arguments into dst.
// An empty payload decodes as an empty object.
func DecodeArguments(arguments json.RawMessage, dst interface{}) error {
	if len(arguments) == 0 {
		arguments = json.RawMessage("{}")
	}
	if err := json.Unmarshal(arguments, dst); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}
