// Package llm provides abstractions for reasoning oracle integration.
//
// Example usage:
//
//	provider, err := openai.NewProvider(
//	    os.Getenv("OPENAI_API_KEY"),
//	    openai.WithModel("gpt-4o"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	reply, err := provider.Complete(ctx, []*types.Message{
//	    types.NewUserMessage("Hello!"),
//	}, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(reply.Content)
package llm

import (
	"context"

	"github.com/entrhq/switchboard/pkg/types"
)

// ModelCloner is an optional interface that LLM providers can implement to
// support lightweight per-call model overrides without constructing a full
// second provider. The returned provider shares credentials and transport with
// the original but directs calls to the given model.
type ModelCloner interface {
	CloneWithModel(model string) Provider
}

// ToolSpec describes a capability the oracle may request.
type ToolSpec struct {
	Name        string
	Description string
	// Parameters is a JSON Schema object for the call arguments.
	Parameters map[string]interface{}
}

// Schema constrains a structured reply.
type Schema struct {
	// Name identifies the schema to the provider.
	Name string
	// Definition is a JSON Schema object the reply must satisfy.
	Definition map[string]interface{}
}

// ModelInfo describes the model behind a provider.
type ModelInfo struct {
	Provider  string
	Name      string
	MaxTokens int
	Metadata  map[string]interface{}
}

// Provider defines the interface for reasoning oracle integrations.
//
// Providers handle API communication only. Conversation state, memory
// injection and capability execution belong to the agent layer, which keeps
// providers reusable and easy to replace with scripted fakes in tests.
type Provider interface {
	// Complete sends the conversation and returns the assistant reply.
	//
	// When tools is non-empty the reply may carry ToolCalls instead of (or
	// in addition to) content. The returned message is freshly allocated and
	// owned by the caller.
	Complete(ctx context.Context, messages []*types.Message, tools []ToolSpec) (*types.Message, error)

	// CompleteStructured sends the conversation and returns the raw JSON
	// document of a reply constrained to schema. Callers validate the
	// document themselves; providers make a best effort to enforce it.
	CompleteStructured(ctx context.Context, messages []*types.Message, schema *Schema) ([]byte, error)

	// GetModelInfo returns information about the LLM model being used.
	GetModelInfo() *ModelInfo

	// GetModel returns the model name being used.
	GetModel() string

	// GetBaseURL returns the base URL being used for API requests.
	GetBaseURL() string
}
