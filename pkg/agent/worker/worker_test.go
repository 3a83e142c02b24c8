package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/switchboard/pkg/agent/memory"
	"github.com/entrhq/switchboard/pkg/agent/observe"
	"github.com/entrhq/switchboard/pkg/agent/scope"
	"github.com/entrhq/switchboard/pkg/agent/tools"
	"github.com/entrhq/switchboard/pkg/agent/tools/toolstest"
	"github.com/entrhq/switchboard/pkg/llm/llmtest"
	"github.com/entrhq/switchboard/pkg/store/inmem"
	"github.com/entrhq/switchboard/pkg/types"
)

func registry(t *testing.T, ts ...tools.Tool) *tools.Registry {
	t.Helper()
	r, err := tools.NewRegistry(ts...)
	require.NoError(t, err)
	return r
}

func newWorker(t *testing.T, p *llmtest.ScriptedProvider, opts ...Option) *Worker {
	t.Helper()
	w, err := New("memory", p, opts...)
	require.NoError(t, err)
	return w
}

func TestNew_Validation(t *testing.T) {
	_, err := New("", llmtest.NewScriptedProvider())
	assert.Error(t, err)
	_, err = New("x", nil)
	assert.Error(t, err)
}

func TestRun_DirectAnswer(t *testing.T) {
	p := llmtest.NewScriptedProvider(llmtest.Text("hello back"))
	w := newWorker(t, p)

	history := []*types.Message{types.NewUserMessage("hello")}
	res, err := w.Run(context.Background(), history)
	require.NoError(t, err)

	assert.Len(t, history, 1, "input history must not grow")
	assert.Equal(t, 1, res.Iterations)
	require.Len(t, res.Messages, 2)
	assert.Equal(t, "hello back", res.Final.Content)
	assert.Equal(t, "memory", res.Final.Author)
	assert.Empty(t, res.Messages[1].Author, "final is a stamped copy")
	assert.False(t, res.Final.HasToolCalls())
}

func TestRun_ToolCallsInRequestOrder(t *testing.T) {
	var order []string
	first := toolstest.New("first", func(context.Context, json.RawMessage) (string, error) {
		order = append(order, "first")
		return "one", nil
	})
	second := toolstest.New("second", func(context.Context, json.RawMessage) (string, error) {
		order = append(order, "second")
		return "two", nil
	})

	p := llmtest.NewScriptedProvider(
		llmtest.Calls(
			llmtest.Call("c1", "second", map[string]interface{}{"q": 1}),
			llmtest.Call("c2", "first", nil),
		),
		llmtest.Text("done"),
	)
	w := newWorker(t, p, WithTools(registry(t, first, second)))

	res, err := w.Run(context.Background(), []*types.Message{types.NewUserMessage("go")})
	require.NoError(t, err)

	assert.Equal(t, []string{"second", "first"}, order)
	require.Len(t, res.Messages, 5)
	assert.Equal(t, types.RoleTool, res.Messages[2].Role)
	assert.Equal(t, "c1", res.Messages[2].ToolCallID)
	assert.Equal(t, "two", res.Messages[2].Content)
	assert.Equal(t, "c2", res.Messages[3].ToolCallID)
	assert.Equal(t, "one", res.Messages[3].Content)
	assert.Equal(t, 2, res.Iterations)
	assert.JSONEq(t, `{"q":1}`, string(second.Calls()[0]))

	calls := p.CompletionCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, []string{"first", "second"}, calls[0].Tools)
	last := calls[1].Messages[len(calls[1].Messages)-1]
	assert.Equal(t, "c2", last.ToolCallID, "second oracle call sees both results")
}

func TestRun_CapabilityErrorIsSoft(t *testing.T) {
	broken := toolstest.New("broken", func(context.Context, json.RawMessage) (string, error) {
		return "", errors.New("backend unavailable")
	})
	p := llmtest.NewScriptedProvider(
		llmtest.Calls(llmtest.Call("c1", "broken", nil)),
		llmtest.Text("sorry, the backend is down"),
	)
	rec := &observe.Recorder{}
	w := newWorker(t, p, WithTools(registry(t, broken)), WithObserver(rec))

	res, err := w.Run(context.Background(), []*types.Message{types.NewUserMessage("x")})
	require.NoError(t, err)

	assert.Equal(t, "Error: backend unavailable", res.Messages[2].Content)
	assert.Equal(t, "sorry, the backend is down", res.Final.Content)
	assert.Contains(t, rec.Types(), types.EventTypeToolResultError)
}

func TestRun_CapabilityPanicIsSoft(t *testing.T) {
	var nilProfile map[string]string
	crashing := toolstest.New("crashing", func(context.Context, json.RawMessage) (string, error) {
		nilProfile["tone"] = "formal"
		return "unreachable", nil
	})
	p := llmtest.NewScriptedProvider(
		llmtest.Calls(llmtest.Call("c1", "crashing", nil), llmtest.Call("c2", "echo", nil)),
		llmtest.Text("the capability crashed"),
	)
	rec := &observe.Recorder{}
	w := newWorker(t, p, WithTools(registry(t, crashing, toolstest.Returning("echo", "still here"))), WithObserver(rec))

	res, err := w.Run(context.Background(), []*types.Message{types.NewUserMessage("x")})
	require.NoError(t, err)

	require.Len(t, res.Messages, 5)
	assert.Contains(t, res.Messages[2].Content, "Error: crashing panicked: assignment to entry in nil map")
	assert.Equal(t, "still here", res.Messages[3].Content)
	assert.Equal(t, "the capability crashed", res.Final.Content)
	assert.Contains(t, rec.Types(), types.EventTypeToolResultError)
}

func TestRun_UnknownToolIsSoft(t *testing.T) {
	p := llmtest.NewScriptedProvider(
		llmtest.Calls(llmtest.Call("c1", "teleport", nil)),
		llmtest.Text("cannot do that"),
	)
	w := newWorker(t, p)

	res, err := w.Run(context.Background(), []*types.Message{types.NewUserMessage("x")})
	require.NoError(t, err)
	assert.Contains(t, res.Messages[2].Content, "Error: tool is not registered")
	assert.Contains(t, res.Messages[2].Content, "teleport")
}

func TestRun_CapabilityTimeout(t *testing.T) {
	slow := toolstest.New("slow", func(ctx context.Context, _ json.RawMessage) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	p := llmtest.NewScriptedProvider(
		llmtest.Calls(llmtest.Call("c1", "slow", nil)),
		llmtest.Text("gave up"),
	)
	w := newWorker(t, p, WithTools(registry(t, slow)), WithTimeouts(0, 20*time.Millisecond))

	res, err := w.Run(context.Background(), []*types.Message{types.NewUserMessage("x")})
	require.NoError(t, err)
	assert.Equal(t, "Error: slow timed out after 20ms", res.Messages[2].Content)
}

func TestRun_IterationLimit(t *testing.T) {
	loop := toolstest.Returning("loop", "again")
	var script []llmtest.Response
	for i := 0; i < 5; i++ {
		script = append(script, llmtest.Calls(llmtest.Call("c", "loop", nil)))
	}
	p := llmtest.NewScriptedProvider(script...)
	w := newWorker(t, p, WithTools(registry(t, loop)), WithMaxIterations(3))

	_, err := w.Run(context.Background(), []*types.Message{types.NewUserMessage("x")})
	require.ErrorIs(t, err, ErrIterationLimit)
	assert.Len(t, p.CompletionCalls(), 3)
	assert.Len(t, loop.Calls(), 3)
}

func TestRun_OracleFailureIsFatal(t *testing.T) {
	p := llmtest.NewScriptedProvider(llmtest.Failure(errors.New("503")))
	w := newWorker(t, p)

	_, err := w.Run(context.Background(), []*types.Message{types.NewUserMessage("x")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "worker memory")
	assert.Contains(t, err.Error(), "503")
}

func TestRun_MemoryInjectedBeforeEveryCall(t *testing.T) {
	profiles := inmem.NewProfileStore()
	ctx := scope.WithUser(context.Background(), "u1")
	require.NoError(t, profiles.Upsert(ctx, "u1", map[string]interface{}{"tone": "dry"}))

	save := toolstest.New("save", func(ctx context.Context, _ json.RawMessage) (string, error) {
		return "ok", profiles.Upsert(ctx, scope.UserID(ctx), map[string]interface{}{"tone": "warm"})
	})
	p := llmtest.NewScriptedProvider(
		llmtest.Calls(llmtest.Call("c1", "save", nil)),
		llmtest.Text("saved"),
	)
	w := newWorker(t, p,
		WithTools(registry(t, save)),
		WithInjector(memory.NewInjector(profiles, nil)),
		WithInstructions("Manage preferences."),
	)

	res, err := w.Run(ctx, []*types.Message{types.NewUserMessage("be warmer")})
	require.NoError(t, err)

	calls := p.CompletionCalls()
	require.Len(t, calls, 2)
	for i, want := range []string{"- tone: dry", "- tone: warm"} {
		msgs := calls[i].Messages
		require.GreaterOrEqual(t, len(msgs), 2)
		assert.Equal(t, types.RoleSystem, msgs[0].Role)
		assert.Contains(t, msgs[0].Content, "Manage preferences.")
		assert.Equal(t, memory.InjectedAuthor, msgs[1].Author)
		assert.Contains(t, msgs[1].Content, want)
	}

	for _, m := range res.Messages {
		assert.NotEqual(t, memory.InjectedAuthor, m.Author, "profile memory must not leak into the history")
	}
}

func TestRun_Events(t *testing.T) {
	p := llmtest.NewScriptedProvider(
		llmtest.Calls(llmtest.Call("c1", "echo", nil)),
		llmtest.Text("fin"),
	)
	rec := &observe.Recorder{}
	w := newWorker(t, p, WithTools(registry(t, toolstest.Returning("echo", "e"))), WithObserver(rec))

	ctx := scope.WithThread(context.Background(), "t-1")
	_, err := w.Run(ctx, []*types.Message{types.NewUserMessage("x")})
	require.NoError(t, err)

	assert.Equal(t, []types.AgentEventType{
		types.EventTypeWorkerStart,
		types.EventTypeAPICallStart, types.EventTypeAPICallEnd,
		types.EventTypeToolCall, types.EventTypeToolResult,
		types.EventTypeAPICallStart, types.EventTypeAPICallEnd,
		types.EventTypeWorkerEnd,
	}, rec.Types())
	for _, e := range rec.Events() {
		assert.Equal(t, "t-1", e.ThreadID)
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "await_model", AwaitModel.String())
	assert.Equal(t, "await_capabilities", AwaitCapabilities.String())
}
