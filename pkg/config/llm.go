package config

import (
	"fmt"
	"strings"
	"sync"
)

const (
	// SectionIDLLM is the identifier for the LLM settings section
	SectionIDLLM = "llm"

	// DefaultModel is used by workers when nothing else is configured
	DefaultModel = "openai:gpt-4o"

	// DefaultEmbeddingModel is the OpenAI embedding model for document retrieval
	DefaultEmbeddingModel = "text-embedding-3-small"
)

// Embedding providers accepted by the llm section.
const (
	EmbeddingProviderOpenAI = "openai"
	EmbeddingProviderGenAI  = "genai"
	EmbeddingProviderNone   = "none"
)

// LLMSection manages reasoning oracle and embedding settings.
type LLMSection struct {
	Model             string
	SupervisorModel   string // optional; if empty, the supervisor uses Model
	BaseURL           string
	APIKey            string
	EmbeddingProvider string
	EmbeddingModel    string
	GenAIAPIKey       string
	mu                sync.RWMutex
}

// NewLLMSection creates a new LLM section with default settings.
func NewLLMSection() *LLMSection {
	s := &LLMSection{}
	s.Reset()
	return s
}

// ID returns the section identifier.
func (s *LLMSection) ID() string {
	return SectionIDLLM
}

// Title returns the section title.
func (s *LLMSection) Title() string {
	return "LLM Settings"
}

// Description returns the section description.
func (s *LLMSection) Description() string {
	return "Reasoning oracle and embedding settings. Models use a provider prefix, e.g. openai:gpt-4o or ollama:llama3.2:1b."
}

// Data returns the current configuration data.
func (s *LLMSection) Data() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]any{
		"model":              s.Model,
		"supervisor_model":   s.SupervisorModel,
		"base_url":           s.BaseURL,
		"api_key":            s.APIKey,
		"embedding_provider": s.EmbeddingProvider,
		"embedding_model":    s.EmbeddingModel,
		"genai_api_key":      s.GenAIAPIKey,
	}
}

// SetData updates the configuration from the provided data.
func (s *LLMSection) SetData(data map[string]any) error {
	if data == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := data["model"].(string); ok && v != "" {
		s.Model = v
	}
	if v, ok := data["supervisor_model"].(string); ok {
		s.SupervisorModel = v
	}
	if v, ok := data["base_url"].(string); ok {
		s.BaseURL = v
	}
	if v, ok := data["api_key"].(string); ok {
		s.APIKey = v
	}
	if v, ok := data["embedding_provider"].(string); ok && v != "" {
		s.EmbeddingProvider = strings.ToLower(v)
	}
	if v, ok := data["embedding_model"].(string); ok && v != "" {
		s.EmbeddingModel = v
	}
	if v, ok := data["genai_api_key"].(string); ok {
		s.GenAIAPIKey = v
	}
	return nil
}

// Validate checks model prefixes and the embedding provider.
func (s *LLMSection) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range []string{s.Model, s.SupervisorModel} {
		if m == "" {
			continue
		}
		if _, _, err := ParseModelSpec(m); err != nil {
			return err
		}
	}

	switch s.EmbeddingProvider {
	case EmbeddingProviderOpenAI, EmbeddingProviderGenAI, EmbeddingProviderNone:
	default:
		return fmt.Errorf("unknown embedding provider %q", s.EmbeddingProvider)
	}
	return nil
}

// Reset resets the section to default configuration.
func (s *LLMSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Model = DefaultModel
	s.SupervisorModel = ""
	s.BaseURL = ""
	s.APIKey = ""
	s.EmbeddingProvider = EmbeddingProviderOpenAI
	s.EmbeddingModel = DefaultEmbeddingModel
	s.GenAIAPIKey = ""
}

// GetModel returns the configured worker model.
func (s *LLMSection) GetModel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Model
}

// GetSupervisorModel returns the supervisor model, falling back to the worker model.
func (s *LLMSection) GetSupervisorModel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.SupervisorModel != "" {
		return s.SupervisorModel
	}
	return s.Model
}

// GetBaseURL returns the configured base URL.
func (s *LLMSection) GetBaseURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.BaseURL
}

// GetAPIKey returns the configured API key.
func (s *LLMSection) GetAPIKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.APIKey
}

// GetEmbedding returns the embedding provider and model.
func (s *LLMSection) GetEmbedding() (provider, model string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.EmbeddingProvider, s.EmbeddingModel
}

// GetGenAIAPIKey returns the Gemini API key used by the genai embedder.
func (s *LLMSection) GetGenAIAPIKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.GenAIAPIKey
}

// Model providers understood by ParseModelSpec.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// ParseModelSpec splits "provider:model". A spec without a known prefix
// is treated as an OpenAI model name.
func ParseModelSpec(spec string) (provider, model string, err error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return "", "", fmt.Errorf("model spec is empty")
	}
	if rest, ok := strings.CutPrefix(spec, ProviderOpenAI+":"); ok {
		provider, model = ProviderOpenAI, rest
	} else if rest, ok := strings.CutPrefix(spec, ProviderOllama+":"); ok {
		provider, model = ProviderOllama, rest
	} else {
		provider, model = ProviderOpenAI, spec
	}
	if model == "" {
		return "", "", fmt.Errorf("model spec %q has no model name", spec)
	}
	return provider, model, nil
}
