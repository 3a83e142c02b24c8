package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/entrhq/switchboard/pkg/agent/memory"
	"github.com/entrhq/switchboard/pkg/agent/prompts"
	"github.com/entrhq/switchboard/pkg/agent/scope"
	"github.com/entrhq/switchboard/pkg/agent/tools"
	"github.com/entrhq/switchboard/pkg/llm"
	"github.com/entrhq/switchboard/pkg/llm/tokenizer"
	"github.com/entrhq/switchboard/pkg/types"
)

// Replies that do not involve the oracle.
const (
	NotInitializedText = "RAG is not initialized yet (no documents indexed). " +
		"Add PDF/DOCX files to the docs folder and restart the server."
	NoInformationText = "I don't have enough information in the documents."
)

// DefaultContextTokens bounds the retrieved context handed to the oracle.
const DefaultContextTokens = 6000

// SearchTool is the document_search capability.
type SearchTool struct {
	service       *Service
	provider      llm.Provider
	injector      *memory.Injector
	tok           *tokenizer.Tokenizer
	opts          SearchOptions
	contextTokens int
}

// SearchToolOption configures a SearchTool.
type SearchToolOption func(*SearchTool)

// WithInjector adds the caller's profile to the answering prompt.
func WithInjector(in *memory.Injector) SearchToolOption {
	return func(t *SearchTool) { t.injector = in }
}

// WithSearchOptions overrides the retrieval parameters.
func WithSearchOptions(o SearchOptions) SearchToolOption {
	return func(t *SearchTool) { t.opts = o }
}

// WithContextBudget bounds the retrieved context in tokens counted by tok.
func WithContextBudget(tokens int, tok *tokenizer.Tokenizer) SearchToolOption {
	return func(t *SearchTool) {
		if tokens > 0 {
			t.contextTokens = tokens
		}
		if tok != nil {
			t.tok = tok
		}
	}
}

// NewSearchTool answers questions from service's index with provider.
func NewSearchTool(service *Service, provider llm.Provider, opts ...SearchToolOption) *SearchTool {
	t := &SearchTool{
		service:       service,
		provider:      provider,
		tok:           tokenizer.Heuristic(),
		contextTokens: DefaultContextTokens,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *SearchTool) Name() string { return "document_search" }

func (t *SearchTool) Description() string {
	return "Retrieve the most relevant chunks from the local document index and answer using ONLY that context, with sources appended."
}

func (t *SearchTool) Schema() map[string]interface{} {
	return tools.BaseToolSchema(map[string]interface{}{
		"question": tools.StringProperty("The question to answer from the documents"),
	}, []string{"question"})
}

func (t *SearchTool) Execute(ctx context.Context, arguments json.RawMessage) (string, error) {
	var input struct {
		Question string `json:"question"`
	}
	if err := tools.DecodeArguments(arguments, &input); err != nil {
		return "", err
	}
	question := strings.TrimSpace(input.Question)
	if question == "" {
		return "", fmt.Errorf("question is required")
	}

	if t.service == nil || !t.service.Ready() {
		return NotInitializedText, nil
	}

	hits, err := t.service.Search(ctx, question, t.opts)
	if err != nil {
		return "", fmt.Errorf("retrieval failed: %w", err)
	}
	if len(hits) == 0 {
		return NoInformationText, nil
	}
	hits = t.withinBudget(hits)

	texts := make([]string, len(hits))
	for i, h := range hits {
		texts[i] = h.Text
	}
	messages := []*types.Message{
		types.NewUserMessage(prompts.DocumentAnswer(question, strings.Join(texts, "\n\n"))),
	}
	if t.injector != nil {
		messages = t.injector.Inject(ctx, messages, scope.UserID(ctx))
	}

	reply, err := t.provider.Complete(ctx, messages, nil)
	if err != nil {
		return "", fmt.Errorf("answer generation failed: %w", err)
	}

	answer := strings.TrimSpace(reply.Content)
	if sources := Sources(hits); len(sources) > 0 {
		answer += "\n\nSources: " + strings.Join(sources, ", ")
	}
	return answer, nil
}

// withinBudget keeps the best hits whose tokens fit the context budget.
// The first hit is always kept.
func (t *SearchTool) withinBudget(hits []Hit) []Hit {
	used := 0
	for i, h := range hits {
		n := h.Tokens
		if n == 0 {
			n = t.tok.Count(h.Text)
		}
		if i > 0 && used+n > t.contextTokens {
			return hits[:i]
		}
		used += n
	}
	return hits
}

// Sources lists the distinct hit origins as "file#page=N" (or just the
// file name for formats without pages), sorted.
func Sources(hits []Hit) []string {
	seen := map[string]bool{}
	var out []string
	for _, h := range hits {
		if h.Source == "" {
			continue
		}
		s := filepath.Base(h.Source)
		if h.Page > 0 {
			s = fmt.Sprintf("%s#page=%d", s, h.Page)
		}
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
