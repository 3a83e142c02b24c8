package config

import (
	"fmt"
	"os"

	"github.com/entrhq/switchboard/pkg/llm/openai"
)

// OllamaBaseURL is the OpenAI compatible endpoint of a local Ollama server.
const OllamaBaseURL = "http://localhost:11434/v1"

// Overrides are values given on the command line. Empty fields are ignored.
type Overrides struct {
	Model           string
	SupervisorModel string
	BaseURL         string
	APIKey          string
	DataDir         string
	DocsDir         string
	SQLDatabase     string
	SearchBackend   string
	RosterFile      string
}

// envBindings maps environment variables onto section keys.
var envBindings = []struct {
	env     string
	section string
	key     string
}{
	{"OPENAI_API_KEY", SectionIDLLM, "api_key"},
	{"OPENAI_BASE_URL", SectionIDLLM, "base_url"},
	{"SWITCHBOARD_MODEL", SectionIDLLM, "model"},
	{"SUPERVISOR_MODEL", SectionIDLLM, "supervisor_model"},
	{"GEMINI_API_KEY", SectionIDLLM, "genai_api_key"},
	{"TAVILY_API_KEY", SectionIDCapabilities, "tavily_api_key"},
	{"DOCS_DIR", SectionIDCapabilities, "docs_dir"},
	{"SQL_DATABASE", SectionIDCapabilities, "sql_database"},
	{"DATA_DIR", SectionIDStorage, "data_dir"},
}

// ApplyEnv overlays environment variables on top of file values.
// getenv defaults to os.Getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if getenv == nil {
		getenv = os.Getenv
	}
	for _, b := range envBindings {
		v := getenv(b.env)
		if v == "" {
			continue
		}
		section, ok := c.manager.GetSection(b.section)
		if !ok {
			continue
		}
		if err := section.SetData(map[string]any{b.key: v}); err != nil {
			return fmt.Errorf("%s: %w", b.env, err)
		}
	}
	return nil
}

// ApplyOverrides overlays command line values, the highest precedence.
func (c *Config) ApplyOverrides(o Overrides) error {
	set := func(section Section, key, value string) error {
		if value == "" {
			return nil
		}
		return section.SetData(map[string]any{key: value})
	}
	for _, step := range []struct {
		section Section
		key     string
		value   string
	}{
		{c.LLM, "model", o.Model},
		{c.LLM, "supervisor_model", o.SupervisorModel},
		{c.LLM, "base_url", o.BaseURL},
		{c.LLM, "api_key", o.APIKey},
		{c.Storage, "data_dir", o.DataDir},
		{c.Capabilities, "docs_dir", o.DocsDir},
		{c.Capabilities, "sql_database", o.SQLDatabase},
		{c.Capabilities, "search_backend", o.SearchBackend},
		{c.Orchestration, "roster_file", o.RosterFile},
	} {
		if err := set(step.section, step.key, step.value); err != nil {
			return err
		}
	}
	return nil
}

// BuildProvider creates an oracle client for a "provider:model" spec using
// the credentials of the llm section. Ollama models talk to the local
// OpenAI compatible endpoint and need no API key.
func BuildProvider(spec string, section *LLMSection) (*openai.Provider, error) {
	provider, model, err := ParseModelSpec(spec)
	if err != nil {
		return nil, err
	}

	opts := []openai.ProviderOption{openai.WithModel(model)}
	apiKey := section.GetAPIKey()

	switch provider {
	case ProviderOllama:
		opts = append(opts, openai.WithBaseURL(OllamaBaseURL))
		if apiKey == "" {
			apiKey = "ollama"
		}
	default:
		if baseURL := section.GetBaseURL(); baseURL != "" {
			opts = append(opts, openai.WithBaseURL(baseURL))
		}
		if apiKey == "" {
			return nil, fmt.Errorf("API key is required. Set OPENAI_API_KEY, use --api-key, or configure llm.api_key in the config file")
		}
	}

	p, err := openai.NewProvider(apiKey, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM provider: %w", err)
	}
	return p, nil
}
