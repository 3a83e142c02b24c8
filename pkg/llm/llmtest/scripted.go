// Package llmtest provides deterministic llm.Provider implementations for tests.
package llmtest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/entrhq/switchboard/pkg/llm"
	"github.com/entrhq/switchboard/pkg/types"
)

// Response configures one oracle reply in a scripted sequence.
// Message is used by Complete, Raw by CompleteStructured.
type Response struct {
	Message *types.Message
	Raw     []byte
	Err     error
}

// Text scripts a plain assistant reply.
func Text(content string) Response {
	return Response{Message: types.NewAssistantMessage(content)}
}

// Calls scripts an assistant reply requesting capability calls.
func Calls(calls ...types.ToolCall) Response {
	return Response{Message: types.NewToolCallMessage("", calls...)}
}

// Call builds a tool call whose arguments are args encoded as JSON.
func Call(id, name string, args map[string]interface{}) types.ToolCall {
	raw, err := json.Marshal(args)
	if err != nil {
		panic(err)
	}
	return types.ToolCall{ID: id, Name: name, Arguments: raw}
}

// Route scripts a router decision {"next": next}.
func Route(next string) Response {
	return Response{Raw: []byte(fmt.Sprintf(`{"next":%q}`, next))}
}

// Raw scripts a structured reply verbatim.
func Raw(doc string) Response {
	return Response{Raw: []byte(doc)}
}

// Failure scripts an oracle error.
func Failure(err error) Response {
	return Response{Err: err}
}

// Recorded is one observed oracle call.
type Recorded struct {
	Messages   []*types.Message
	Tools      []string
	Structured bool
}

// ScriptedProvider replays completions and structured replies from two
// independent queues and records every call it receives.
type ScriptedProvider struct {
	mu          sync.Mutex
	completions []Response
	structured  []Response
	ci, si      int
	calls       []Recorded
	model       string
}

var _ llm.Provider = (*ScriptedProvider)(nil)

// NewScriptedProvider creates a provider with the given completion script.
func NewScriptedProvider(completions ...Response) *ScriptedProvider {
	return &ScriptedProvider{
		completions: append([]Response(nil), completions...),
		model:       "scripted",
	}
}

// WithStructured appends structured replies and returns p for chaining.
func (p *ScriptedProvider) WithStructured(responses ...Response) *ScriptedProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.structured = append(p.structured, responses...)
	return p
}

func snapshot(messages []*types.Message) []*types.Message {
	out := make([]*types.Message, len(messages))
	for i, m := range messages {
		out[i] = m.Clone()
	}
	return out
}

// Complete returns the next scripted completion.
func (p *ScriptedProvider) Complete(_ context.Context, messages []*types.Message, tools []llm.ToolSpec) (*types.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Name
	}
	p.calls = append(p.calls, Recorded{Messages: snapshot(messages), Tools: names})

	if p.ci >= len(p.completions) {
		return nil, fmt.Errorf("completion script exhausted at step %d", p.ci+1)
	}
	current := p.completions[p.ci]
	p.ci++
	if current.Err != nil {
		return nil, current.Err
	}
	return current.Message.Clone(), nil
}

// CompleteStructured returns the next scripted structured reply.
func (p *ScriptedProvider) CompleteStructured(_ context.Context, messages []*types.Message, _ *llm.Schema) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, Recorded{Messages: snapshot(messages), Structured: true})

	if p.si >= len(p.structured) {
		return nil, fmt.Errorf("structured script exhausted at step %d", p.si+1)
	}
	current := p.structured[p.si]
	p.si++
	if current.Err != nil {
		return nil, current.Err
	}
	return append([]byte(nil), current.Raw...), nil
}

// Calls returns every recorded call in order.
func (p *ScriptedProvider) Calls() []Recorded {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Recorded(nil), p.calls...)
}

// CompletionCalls returns only the recorded Complete calls.
func (p *ScriptedProvider) CompletionCalls() []Recorded {
	var out []Recorded
	for _, c := range p.Calls() {
		if !c.Structured {
			out = append(out, c)
		}
	}
	return out
}

// StructuredCalls returns only the recorded CompleteStructured calls.
func (p *ScriptedProvider) StructuredCalls() []Recorded {
	var out []Recorded
	for _, c := range p.Calls() {
		if c.Structured {
			out = append(out, c)
		}
	}
	return out
}

// Remaining reports unconsumed completion and structured replies.
func (p *ScriptedProvider) Remaining() (completions, structured int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.completions) - p.ci, len(p.structured) - p.si
}

func (p *ScriptedProvider) GetModelInfo() *llm.ModelInfo {
	return &llm.ModelInfo{Provider: "llmtest", Name: p.model}
}

func (p *ScriptedProvider) GetModel() string   { return p.model }
func (p *ScriptedProvider) GetBaseURL() string { return "" }

// FuncProvider delegates to plain functions, for tests whose replies
// depend on the conversation (for example concurrent threads).
type FuncProvider struct {
	CompleteFunc   func(ctx context.Context, messages []*types.Message, tools []llm.ToolSpec) (*types.Message, error)
	StructuredFunc func(ctx context.Context, messages []*types.Message, schema *llm.Schema) ([]byte, error)
}

var _ llm.Provider = (*FuncProvider)(nil)

func (f *FuncProvider) Complete(ctx context.Context, messages []*types.Message, tools []llm.ToolSpec) (*types.Message, error) {
	if f.CompleteFunc == nil {
		return nil, fmt.Errorf("llmtest: CompleteFunc not set")
	}
	return f.CompleteFunc(ctx, messages, tools)
}

func (f *FuncProvider) CompleteStructured(ctx context.Context, messages []*types.Message, schema *llm.Schema) ([]byte, error) {
	if f.StructuredFunc == nil {
		return nil, fmt.Errorf("llmtest: StructuredFunc not set")
	}
	return f.StructuredFunc(ctx, messages, schema)
}

func (f *FuncProvider) GetModelInfo() *llm.ModelInfo {
	return &llm.ModelInfo{Provider: "llmtest", Name: "func"}
}

func (f *FuncProvider) GetModel() string   { return "func" }
func (f *FuncProvider) GetBaseURL() string { return "" }
