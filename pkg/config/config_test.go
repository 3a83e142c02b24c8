package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, DefaultModel, cfg.LLM.GetModel())
	assert.Equal(t, DefaultModel, cfg.LLM.GetSupervisorModel())
	assert.Equal(t, DefaultDataDir, cfg.Storage.GetDataDir())

	iterations, dispatches, model, capability := cfg.Orchestration.Limits()
	assert.Equal(t, 10, iterations)
	assert.Equal(t, 12, dispatches)
	assert.Equal(t, 120*time.Second, model)
	assert.Equal(t, 60*time.Second, capability)

	caps := cfg.Capabilities.Snapshot()
	assert.Equal(t, SearchBackendTavily, caps.SearchBackend)
	assert.Equal(t, 4, caps.SearchMaxResults)
	assert.Equal(t, 20, caps.SQLPreviewRows)
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg, err := Load(path)
	require.NoError(t, err)

	require.NoError(t, cfg.Orchestration.SetData(map[string]any{"model_timeout": "45s", "max_dispatches": 3}))
	require.NoError(t, cfg.Capabilities.SetData(map[string]any{"docs_patterns": []interface{}{"**.md"}}))
	require.NoError(t, cfg.Save())

	reloaded, err := Load(path)
	require.NoError(t, err)
	_, dispatches, model, _ := reloaded.Orchestration.Limits()
	assert.Equal(t, 3, dispatches)
	assert.Equal(t, 45*time.Second, model)
	assert.Equal(t, []string{"**.md"}, reloaded.Capabilities.Snapshot().DocPatterns)
}

func TestPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.LLM.SetData(map[string]any{"model": "openai:from-file", "api_key": "file-key"}))

	env := map[string]string{
		"SWITCHBOARD_MODEL": "openai:from-env",
		"OPENAI_API_KEY":    "env-key",
		"DATA_DIR":          "/env/data",
	}
	require.NoError(t, cfg.ApplyEnv(func(k string) string { return env[k] }))
	assert.Equal(t, "openai:from-env", cfg.LLM.GetModel())
	assert.Equal(t, "env-key", cfg.LLM.GetAPIKey())

	require.NoError(t, cfg.ApplyOverrides(Overrides{Model: "ollama:llama3.2:1b"}))
	assert.Equal(t, "ollama:llama3.2:1b", cfg.LLM.GetModel())
	assert.Equal(t, "env-key", cfg.LLM.GetAPIKey(), "empty override must not clear env value")
	assert.Equal(t, "/env/data", cfg.Storage.GetDataDir())
}

func TestSectionValidation(t *testing.T) {
	llm := NewLLMSection()
	require.NoError(t, llm.SetData(map[string]any{"embedding_provider": "qdrant"}))
	assert.Error(t, llm.Validate())

	caps := NewCapabilitiesSection()
	require.NoError(t, caps.SetData(map[string]any{"search_backend": "bing"}))
	assert.Error(t, caps.Validate())

	orch := NewOrchestrationSection()
	assert.Error(t, orch.SetData(map[string]any{"model_timeout": "soon"}))
	require.NoError(t, orch.SetData(map[string]any{"max_worker_iterations": 0}))
	assert.Error(t, orch.Validate())
}

func TestParseModelSpec(t *testing.T) {
	tests := []struct {
		spec     string
		provider string
		model    string
		wantErr  bool
	}{
		{spec: "openai:gpt-4o", provider: ProviderOpenAI, model: "gpt-4o"},
		{spec: "ollama:llama3.2:1b", provider: ProviderOllama, model: "llama3.2:1b"},
		{spec: "gpt-4o-mini", provider: ProviderOpenAI, model: "gpt-4o-mini"},
		{spec: "openai:", wantErr: true},
		{spec: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			provider, model, err := ParseModelSpec(tt.spec)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.provider, provider)
			assert.Equal(t, tt.model, model)
		})
	}
}

func TestBuildProvider(t *testing.T) {
	t.Run("ollama needs no key", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "")
		p, err := BuildProvider("ollama:llama3.2:1b", NewLLMSection())
		require.NoError(t, err)
		assert.Equal(t, "llama3.2:1b", p.GetModel())
		assert.Equal(t, OllamaBaseURL, p.GetBaseURL())
	})

	t.Run("openai requires a key", func(t *testing.T) {
		_, err := BuildProvider("openai:gpt-4o", NewLLMSection())
		assert.Error(t, err)
	})

	t.Run("openai uses configured base url", func(t *testing.T) {
		llm := NewLLMSection()
		require.NoError(t, llm.SetData(map[string]any{"api_key": "k", "base_url": "http://proxy.local/v1"}))
		p, err := BuildProvider("openai:gpt-4o-mini", llm)
		require.NoError(t, err)
		assert.Equal(t, "gpt-4o-mini", p.GetModel())
		assert.Equal(t, "http://proxy.local/v1", p.GetBaseURL())
	})
}
