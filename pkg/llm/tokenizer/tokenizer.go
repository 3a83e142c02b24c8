// Package tokenizer counts tokens for prompts and document chunks.
package tokenizer

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"github.com/entrhq/switchboard/pkg/types"
)

// fallbackEncoding is used for models tiktoken does not know (e.g. Ollama models).
const fallbackEncoding = "cl100k_base"

// perMessageOverhead approximates the role/separator tokens of chat formats.
const perMessageOverhead = 4

// Tokenizer counts tokens with a tiktoken encoding. When no encoding can be
// loaded (offline, unknown model) it estimates four characters per token.
type Tokenizer struct {
	enc *tiktoken.Tiktoken
}

var (
	cacheMu sync.Mutex
	cache   = map[string]*Tokenizer{}
)

// New returns a tokenizer for model. Results are cached per model name.
func New(model string) *Tokenizer {
	cacheMu.Lock()
	defer cacheMu.Unlock()

	if t, ok := cache[model]; ok {
		return t
	}

	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(fallbackEncoding)
	}
	t := &Tokenizer{}
	if err == nil {
		t.enc = enc
	}
	cache[model] = t
	return t
}

// Heuristic returns a tokenizer that never loads an encoding.
func Heuristic() *Tokenizer {
	return &Tokenizer{}
}

// Exact reports whether counts come from a real encoding.
func (t *Tokenizer) Exact() bool {
	return t.enc != nil
}

// Count returns the number of tokens in text.
func (t *Tokenizer) Count(text string) int {
	if text == "" {
		return 0
	}
	if t.enc != nil {
		return len(t.enc.Encode(text, nil, nil))
	}
	return (utf8.RuneCountInString(text) + 3) / 4
}

// CountMessages returns the approximate prompt size of a conversation.
func (t *Tokenizer) CountMessages(messages []*types.Message) int {
	total := 0
	for _, m := range messages {
		total += perMessageOverhead + t.Count(m.Content)
		for _, tc := range m.ToolCalls {
			total += t.Count(tc.Name) + t.Count(string(tc.Arguments))
		}
	}
	return total
}

// Truncate shortens text to at most max tokens.
func (t *Tokenizer) Truncate(text string, max int) string {
	if max <= 0 {
		return ""
	}
	if t.enc != nil {
		tokens := t.enc.Encode(text, nil, nil)
		if len(tokens) <= max {
			return text
		}
		return t.enc.Decode(tokens[:max])
	}
	runes := []rune(text)
	if len(runes) <= max*4 {
		return text
	}
	return string(runes[:max*4])
}
