package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/entrhq/switchboard/pkg/agent/memory"
	"github.com/entrhq/switchboard/pkg/agent/observe"
	"github.com/entrhq/switchboard/pkg/agent/prompts"
	"github.com/entrhq/switchboard/pkg/agent/scope"
	"github.com/entrhq/switchboard/pkg/agent/supervisor"
	"github.com/entrhq/switchboard/pkg/agent/tools"
	"github.com/entrhq/switchboard/pkg/agent/tools/toolstest"
	"github.com/entrhq/switchboard/pkg/agent/worker"
	"github.com/entrhq/switchboard/pkg/llm"
	"github.com/entrhq/switchboard/pkg/llm/llmtest"
	"github.com/entrhq/switchboard/pkg/store"
	"github.com/entrhq/switchboard/pkg/store/inmem"
	memorytools "github.com/entrhq/switchboard/pkg/tools/memory"
	"github.com/entrhq/switchboard/pkg/types"
)

type fixture struct {
	graph       *Graph
	profiles    *inmem.ProfileStore
	checkpoints store.CheckpointStore
	recorder    *observe.Recorder
}

// newFixture builds a two-worker graph (memory, web_researcher) over provider.
func newFixture(t *testing.T, provider llm.Provider, checkpoints store.CheckpointStore, opts ...Option) *fixture {
	t.Helper()
	if checkpoints == nil {
		checkpoints = inmem.NewCheckpointStore()
	}
	profiles := inmem.NewProfileStore()
	rec := &observe.Recorder{}
	injector := memory.NewInjector(profiles, nil)

	memTools, err := tools.NewRegistry(memorytools.NewRememberTool(profiles), memorytools.NewRecallTool(profiles))
	require.NoError(t, err)
	webTools, err := tools.NewRegistry(toolstest.Returning("web_search", "Top results:\n\n1. Go\n   https://go.dev\n   The Go language"))
	require.NoError(t, err)

	memWorker, err := worker.New("memory", provider, worker.WithTools(memTools), worker.WithInjector(injector), worker.WithObserver(rec))
	require.NoError(t, err)
	webWorker, err := worker.New("web_researcher", provider, worker.WithTools(webTools), worker.WithInjector(injector), worker.WithObserver(rec))
	require.NoError(t, err)

	router, err := supervisor.NewRouter(provider, []prompts.Route{
		{Name: "web_researcher", Description: "public web/news"},
		{Name: "memory", Description: "remember/recall/save/forget"},
	}, supervisor.WithObserver(rec))
	require.NoError(t, err)

	g, err := New(router, []*worker.Worker{memWorker, webWorker}, checkpoints, append([]Option{WithObserver(rec)}, opts...)...)
	require.NoError(t, err)

	return &fixture{graph: g, profiles: profiles, checkpoints: checkpoints, recorder: rec}
}

func TestNew_Validation(t *testing.T) {
	p := llmtest.NewScriptedProvider()
	router, err := supervisor.NewRouter(p, []prompts.Route{{Name: "memory"}})
	require.NoError(t, err)
	w, err := worker.New("memory", p)
	require.NoError(t, err)
	other, err := worker.New("rag", p)
	require.NoError(t, err)

	_, err = New(nil, []*worker.Worker{w}, inmem.NewCheckpointStore())
	assert.Error(t, err)
	_, err = New(router, []*worker.Worker{w}, nil)
	assert.Error(t, err)
	_, err = New(router, []*worker.Worker{other}, inmem.NewCheckpointStore())
	assert.Error(t, err)
	_, err = New(router, []*worker.Worker{w, other}, inmem.NewCheckpointStore())
	assert.Error(t, err)
	_, err = New(router, []*worker.Worker{w, w}, inmem.NewCheckpointStore())
	assert.Error(t, err)
	_, err = New(router, []*worker.Worker{w}, inmem.NewCheckpointStore())
	assert.NoError(t, err)
}

func TestSubmit_RememberThenRecall(t *testing.T) {
	p := llmtest.NewScriptedProvider(
		// turn 1: memory worker saves the preference, then confirms
		llmtest.Calls(llmtest.Call("c1", "remember", map[string]interface{}{"key": "prefers_sources", "value": true})),
		llmtest.Text("Saved: I'll put sources at the end from now on."),
		// turn 2: memory worker answers from injected profile
		llmtest.Text("You like sources placed at the end of answers."),
	).WithStructured(
		llmtest.Route("memory"),
		llmtest.Route("memory"),
	)
	f := newFixture(t, p, nil)
	ctx := context.Background()

	first, err := f.graph.Submit(ctx, Turn{ThreadID: "t1", Text: "remember that I like sources at the end"})
	require.NoError(t, err)

	assert.Equal(t, "Saved: I'll put sources at the end from now on.", first.Content)
	assert.Equal(t, "memory", first.Author)
	assert.Equal(t, 1, first.Dispatches)
	assert.Len(t, p.StructuredCalls(), 1, "termination after the worker needs no oracle call")

	profile, err := f.profiles.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "true", profile["prefers_sources"])

	cp, err := f.checkpoints.Load(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, cp.Messages, 2)
	assert.Equal(t, types.RoleUser, cp.Messages[0].Role)
	assert.Equal(t, "memory", cp.Messages[1].Author)

	second, err := f.graph.Submit(ctx, Turn{ThreadID: "t1", Text: "what do I like"})
	require.NoError(t, err)
	assert.Equal(t, "You like sources placed at the end of answers.", second.Content)
	assert.Equal(t, int64(2), second.Version)

	completions := p.CompletionCalls()
	require.Len(t, completions, 3)
	sent := completions[2].Messages
	var injected *types.Message
	for _, m := range sent {
		if m.Author == memory.InjectedAuthor {
			injected = m
		}
	}
	require.NotNil(t, injected, "profile must be injected before the oracle call")
	assert.Contains(t, injected.Content, "- prefers_sources: true")
	assert.Equal(t, "what do I like", sent[len(sent)-1].Content)

	cp, err = f.checkpoints.Load(ctx, "t1")
	require.NoError(t, err)
	assert.Len(t, cp.Messages, 4)
	for _, m := range cp.Messages {
		assert.NotEqual(t, memory.InjectedAuthor, m.Author)
		assert.NotEqual(t, types.RoleTool, m.Role, "only final worker messages are kept")
	}

	c1, s1 := p.Remaining()
	assert.Zero(t, c1)
	assert.Zero(t, s1)
}

func TestSubmit_FinishWithoutWorker(t *testing.T) {
	p := llmtest.NewScriptedProvider().WithStructured(llmtest.Route("FINISH"))
	f := newFixture(t, p, nil)

	answer, err := f.graph.Submit(context.Background(), Turn{ThreadID: "t1", Text: "bye"})
	require.NoError(t, err)
	assert.Equal(t, 0, answer.Dispatches)
	assert.Equal(t, "bye", answer.Content)
	assert.Empty(t, answer.Author)
}

func TestSubmit_UserIDScopesMemory(t *testing.T) {
	p := llmtest.NewScriptedProvider(
		llmtest.Calls(llmtest.Call("c1", "remember", map[string]interface{}{"key": "tone", "value": "dry"})),
		llmtest.Text("ok"),
	).WithStructured(llmtest.Route("memory"))
	f := newFixture(t, p, nil)

	_, err := f.graph.Submit(context.Background(), Turn{ThreadID: "t1", UserID: "alice", Text: "be dry"})
	require.NoError(t, err)

	alice, err := f.profiles.Get(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "dry", alice["tone"])
	thread, err := f.profiles.Get(context.Background(), "t1")
	require.NoError(t, err)
	assert.Empty(t, thread)
}

func TestSubmit_Validation(t *testing.T) {
	f := newFixture(t, llmtest.NewScriptedProvider(), nil)

	_, err := f.graph.Submit(context.Background(), Turn{Text: "hi"})
	assert.Error(t, err)
	_, err = f.graph.Submit(context.Background(), Turn{ThreadID: "t1", Text: "  "})
	assert.Error(t, err)
}

func TestSubmit_InvalidDecisionPersistsNothing(t *testing.T) {
	p := llmtest.NewScriptedProvider().WithStructured(llmtest.Raw(`{"next":"nl2sql"}`))
	f := newFixture(t, p, nil)

	_, err := f.graph.Submit(context.Background(), Turn{ThreadID: "t1", Text: "how many rows?"})
	require.ErrorIs(t, err, supervisor.ErrInvalidDecision)

	_, err = f.checkpoints.Load(context.Background(), "t1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Contains(t, f.recorder.Types(), types.EventTypeError)
}

func TestSubmit_WorkerFailurePersistsNothing(t *testing.T) {
	p := llmtest.NewScriptedProvider(llmtest.Failure(errors.New("upstream 500"))).
		WithStructured(llmtest.Route("web_researcher"))
	f := newFixture(t, p, nil)

	_, err := f.graph.Submit(context.Background(), Turn{ThreadID: "t1", Text: "news?"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream 500")

	_, err = f.checkpoints.Load(context.Background(), "t1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

type brokenCheckpoints struct {
	*inmem.CheckpointStore
	loadErr error
	saveErr error
}

func (b *brokenCheckpoints) Load(ctx context.Context, threadID string) (*types.Checkpoint, error) {
	if b.loadErr != nil {
		return nil, b.loadErr
	}
	return b.CheckpointStore.Load(ctx, threadID)
}

func (b *brokenCheckpoints) Save(ctx context.Context, cp *types.Checkpoint) error {
	if b.saveErr != nil {
		return b.saveErr
	}
	return b.CheckpointStore.Save(ctx, cp)
}

func TestSubmit_CheckpointFailuresAreFatal(t *testing.T) {
	t.Run("load", func(t *testing.T) {
		p := llmtest.NewScriptedProvider()
		cps := &brokenCheckpoints{CheckpointStore: inmem.NewCheckpointStore(), loadErr: errors.New("db locked")}
		f := newFixture(t, p, cps)

		_, err := f.graph.Submit(context.Background(), Turn{ThreadID: "t1", Text: "hi"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "load checkpoint")
		assert.Empty(t, p.Calls(), "no oracle call when the thread cannot be loaded")
	})

	t.Run("save", func(t *testing.T) {
		p := llmtest.NewScriptedProvider(llmtest.Text("answer")).WithStructured(llmtest.Route("web_researcher"))
		cps := &brokenCheckpoints{CheckpointStore: inmem.NewCheckpointStore(), saveErr: errors.New("disk full")}
		f := newFixture(t, p, cps)

		_, err := f.graph.Submit(context.Background(), Turn{ThreadID: "t1", Text: "hi"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "save checkpoint")
	})
}

func TestRun_DispatchLimit(t *testing.T) {
	p := llmtest.NewScriptedProvider().WithStructured(llmtest.Route("memory"))
	f := newFixture(t, p, nil)
	f.graph.maxDispatches = 0

	_, _, err := f.graph.Run(context.Background(), []*types.Message{types.NewUserMessage("hi")})
	assert.ErrorIs(t, err, ErrDispatchLimit)
	assert.Empty(t, p.CompletionCalls())
}

func TestRun_DoesNotMutateInput(t *testing.T) {
	p := llmtest.NewScriptedProvider(llmtest.Text("hi")).WithStructured(llmtest.Route("memory"))
	f := newFixture(t, p, nil)

	in := make([]*types.Message, 1, 8)
	in[0] = types.NewUserMessage("hello")
	out, n, err := f.graph.Run(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, out, 2)
	assert.Len(t, in, 1)
	assert.Nil(t, in[:2][1], "spare capacity of the input is untouched")
}

func TestSubmit_Events(t *testing.T) {
	p := llmtest.NewScriptedProvider(llmtest.Text("done")).WithStructured(llmtest.Route("web_researcher"))
	f := newFixture(t, p, nil)

	_, err := f.graph.Submit(context.Background(), Turn{ThreadID: "t9", Text: "news"})
	require.NoError(t, err)

	assert.Equal(t, []types.AgentEventType{
		types.EventTypeTurnStart,
		types.EventTypeSupervisorDecision,
		types.EventTypeWorkerStart,
		types.EventTypeAPICallStart,
		types.EventTypeAPICallEnd,
		types.EventTypeWorkerEnd,
		types.EventTypeSupervisorDecision,
		types.EventTypeTurnEnd,
	}, f.recorder.Types())
	for _, e := range f.recorder.Events() {
		assert.Equal(t, "t9", e.ThreadID, "event %s", e.Type)
	}
}

// echoProvider routes every fresh user message to web_researcher and
// answers with the text of the latest user message.
func echoProvider(inFlight *sync.Map, overlap *int32) *llmtest.FuncProvider {
	return &llmtest.FuncProvider{
		StructuredFunc: func(context.Context, []*types.Message, *llm.Schema) ([]byte, error) {
			return []byte(`{"next":"web_researcher"}`), nil
		},
		CompleteFunc: func(ctx context.Context, messages []*types.Message, _ []llm.ToolSpec) (*types.Message, error) {
			thread := scope.ThreadID(ctx)
			counter, _ := inFlight.LoadOrStore(thread, new(int32))
			if atomic.AddInt32(counter.(*int32), 1) > 1 {
				atomic.StoreInt32(overlap, 1)
			}
			defer atomic.AddInt32(counter.(*int32), -1)
			time.Sleep(2 * time.Millisecond)

			var last string
			for _, m := range messages {
				if m.Role == types.RoleUser {
					last = m.Content
				}
			}
			return types.NewAssistantMessage("echo: " + last), nil
		},
	}
}

func TestSubmit_ThreadIsolation(t *testing.T) {
	defer goleak.VerifyNone(t)

	var inFlight sync.Map
	var overlap int32
	f := newFixture(t, echoProvider(&inFlight, &overlap), nil)

	threads := []string{"alpha", "beta", "gamma", "delta"}
	var wg sync.WaitGroup
	for _, id := range threads {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for i := 0; i < 3; i++ {
				answer, err := f.graph.Submit(context.Background(), Turn{ThreadID: id, Text: fmt.Sprintf("%s-%d", id, i)})
				if assert.NoError(t, err) {
					assert.Equal(t, fmt.Sprintf("echo: %s-%d", id, i), answer.Content)
				}
			}
		}(id)
	}
	wg.Wait()

	for _, id := range threads {
		cp, err := f.checkpoints.Load(context.Background(), id)
		require.NoError(t, err)
		require.Len(t, cp.Messages, 6)
		for _, m := range cp.Messages {
			assert.True(t, strings.Contains(m.Content, id), "thread %s holds foreign message %q", id, m.Content)
		}
	}
	assert.Equal(t, 0, f.graph.locks.size())
}

func TestSubmit_SameThreadSerialised(t *testing.T) {
	defer goleak.VerifyNone(t)

	var inFlight sync.Map
	var overlap int32
	f := newFixture(t, echoProvider(&inFlight, &overlap), nil)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.graph.Submit(context.Background(), Turn{ThreadID: "shared", Text: fmt.Sprintf("msg-%d", i)})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Zero(t, atomic.LoadInt32(&overlap), "two turns of one thread overlapped")
	cp, err := f.checkpoints.Load(context.Background(), "shared")
	require.NoError(t, err)
	assert.Len(t, cp.Messages, 12)
	assert.Equal(t, int64(6), cp.Version)
}
