package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/switchboard/pkg/agent/graph"
	"github.com/entrhq/switchboard/pkg/config"
	"github.com/entrhq/switchboard/pkg/llm/llmtest"
	"github.com/entrhq/switchboard/pkg/llm/tokenizer"
	"github.com/entrhq/switchboard/pkg/logging"
	"github.com/entrhq/switchboard/pkg/tools/rag"
	"github.com/entrhq/switchboard/pkg/types"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "switchboard-logs")
	if err != nil {
		panic(err)
	}
	logging.SetLogDirectory(dir)
	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg, err := config.Load(filepath.Join(dir, "config.json"))
	require.NoError(t, err)

	require.NoError(t, cfg.Storage.SetData(map[string]any{"data_dir": filepath.Join(dir, "data")}))
	require.NoError(t, cfg.LLM.SetData(map[string]any{"embedding_provider": config.EmbeddingProviderNone}))
	require.NoError(t, cfg.Capabilities.SetData(map[string]any{
		"search_backend": config.SearchBackendDuckDuckGo,
		"docs_dir":       filepath.Join(dir, "docs"),
	}))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "docs"), 0o755))
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config, provider *llmtest.ScriptedProvider, opts ...Option) *App {
	t.Helper()
	opts = append([]Option{
		WithProvider(provider),
		WithTokenizer(tokenizer.Heuristic()),
		WithLogger(logging.Nop()),
	}, opts...)
	a, err := New(context.Background(), cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func TestApp_Submit(t *testing.T) {
	cfg := testConfig(t)
	provider := llmtest.NewScriptedProvider(
		llmtest.Calls(llmtest.Call("c1", config.CapabilityRemember, map[string]interface{}{"key": "tone", "value": "concise"})),
		llmtest.Text("Noted, I'll keep it short."),
	).WithStructured(llmtest.Route("memory"))

	a := newTestApp(t, cfg, provider, WithoutIndexing())
	assert.Equal(t, []string{"web_researcher", "rag", "nl2sql", "memory"}, a.Roster().Names())

	ctx := context.Background()
	answer, err := a.Submit(ctx, graph.Turn{ThreadID: "t1", UserID: "u1", Text: "remember that I like concise answers"})
	require.NoError(t, err)
	assert.Equal(t, "Noted, I'll keep it short.", answer.Content)
	assert.Equal(t, "memory", answer.Author)
	assert.Equal(t, 1, answer.Dispatches)

	calls := provider.CompletionCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, []string{config.CapabilityRemember, config.CapabilityRecall}, calls[0].Tools)
	assert.Len(t, provider.StructuredCalls(), 1)

	profile, err := a.Profiles().Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "concise", profile["tone"])

	cp, err := a.Checkpoints().Load(ctx, "t1")
	require.NoError(t, err)
	require.NotEmpty(t, cp.Messages)
	assert.Equal(t, types.RoleUser, cp.Messages[0].Role)
	assert.Equal(t, "Noted, I'll keep it short.", cp.Messages[len(cp.Messages)-1].Content)
}

func TestApp_SupervisorProvider(t *testing.T) {
	cfg := testConfig(t)
	workers := llmtest.NewScriptedProvider(llmtest.Text("42 rows."))
	router := llmtest.NewScriptedProvider().WithStructured(llmtest.Route("nl2sql"))

	a := newTestApp(t, cfg, workers, WithSupervisorProvider(router), WithoutIndexing())

	answer, err := a.Submit(context.Background(), graph.Turn{ThreadID: "t2", Text: "how many rows?"})
	require.NoError(t, err)
	assert.Equal(t, "nl2sql", answer.Author)
	assert.Len(t, router.StructuredCalls(), 1)
	assert.Empty(t, workers.StructuredCalls())
}

func TestApp_UnknownCapability(t *testing.T) {
	cfg := testConfig(t)
	rosterPath := filepath.Join(t.TempDir(), "roster.yaml")
	require.NoError(t, os.WriteFile(rosterPath, []byte(`
workers:
  - name: pilot
    description: flies things
    capabilities: [teleport]
`), 0o644))
	require.NoError(t, cfg.Orchestration.SetData(map[string]any{"roster_file": rosterPath}))

	_, err := New(context.Background(), cfg,
		WithProvider(llmtest.NewScriptedProvider()),
		WithTokenizer(tokenizer.Heuristic()),
		WithLogger(logging.Nop()),
	)
	assert.ErrorContains(t, err, `unknown capability "teleport"`)
}

func TestApp_CustomRosterBuildsOnlyNeededCapabilities(t *testing.T) {
	cfg := testConfig(t)
	rosterPath := filepath.Join(t.TempDir(), "roster.yaml")
	require.NoError(t, os.WriteFile(rosterPath, []byte(`
workers:
  - name: archivist
    description: remembers things
    capabilities: [remember, recall]
`), 0o644))
	require.NoError(t, cfg.Orchestration.SetData(map[string]any{"roster_file": rosterPath}))

	a := newTestApp(t, cfg, llmtest.NewScriptedProvider())
	assert.Nil(t, a.Documents())
	assert.Equal(t, []string{"archivist"}, a.Roster().Names())
}

func TestApp_BuildsDocumentIndexInBackground(t *testing.T) {
	cfg := testConfig(t)
	docs := cfg.Capabilities.Snapshot().DocsDir
	require.NoError(t, os.WriteFile(filepath.Join(docs, "handbook.md"),
		[]byte("Expense reports are due on the fifth working day of each month."), 0o644))

	a := newTestApp(t, cfg, llmtest.NewScriptedProvider())
	require.NotNil(t, a.Documents())
	require.NoError(t, a.Documents().Service.Wait(context.Background()))
	assert.True(t, a.Documents().Service.Ready())

	hits, err := a.Documents().Service.Search(context.Background(), "when are expense reports due", rag.SearchOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "handbook.md", filepath.Base(hits[0].Chunk.Source))
}

func TestNewEmbedder(t *testing.T) {
	cfg := testConfig(t)
	e, err := NewEmbedder(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "lexical", e.Name())

	require.NoError(t, cfg.LLM.SetData(map[string]any{"embedding_provider": config.EmbeddingProviderGenAI}))
	_, err = NewEmbedder(context.Background(), cfg)
	assert.Error(t, err)

	require.NoError(t, cfg.LLM.SetData(map[string]any{
		"embedding_provider": config.EmbeddingProviderOpenAI,
		"api_key":            "sk-test",
	}))
	e, err = NewEmbedder(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "openai:"+config.DefaultEmbeddingModel, e.Name())
}

func TestApp_CloseIsIdempotent(t *testing.T) {
	a := newTestApp(t, testConfig(t), llmtest.NewScriptedProvider(), WithoutIndexing())
	a.Close()
	a.Close()
}
