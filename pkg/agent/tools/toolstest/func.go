// Package toolstest provides tools.Tool implementations for tests.
package toolstest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/entrhq/switchboard/pkg/agent/tools"
)

// FuncTool adapts a function to tools.Tool and records its arguments.
type FuncTool struct {
	ToolName string
	Fn       func(ctx context.Context, arguments json.RawMessage) (string, error)

	mu    sync.Mutex
	calls []json.RawMessage
}

var _ tools.Tool = (*FuncTool)(nil)

// New returns a tool named name that runs fn.
func New(name string, fn func(ctx context.Context, arguments json.RawMessage) (string, error)) *FuncTool {
	return &FuncTool{ToolName: name, Fn: fn}
}

// Returning is a tool that always answers out.
func Returning(name, out string) *FuncTool {
	return New(name, func(context.Context, json.RawMessage) (string, error) { return out, nil })
}

func (f *FuncTool) Name() string        { return f.ToolName }
func (f *FuncTool) Description() string { return "test tool " + f.ToolName }

func (f *FuncTool) Schema() map[string]interface{} {
	return tools.BaseToolSchema(map[string]interface{}{}, nil)
}

func (f *FuncTool) Execute(ctx context.Context, arguments json.RawMessage) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append(json.RawMessage(nil), arguments...))
	f.mu.Unlock()
	return f.Fn(ctx, arguments)
}

// Calls returns the arguments of every call so far.
func (f *FuncTool) Calls() []json.RawMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]json.RawMessage(nil), f.calls...)
}
