package tokenizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/entrhq/switchboard/pkg/types"
)

func TestHeuristicCount(t *testing.T) {
	tok := Heuristic()
	assert.False(t, tok.Exact())
	assert.Equal(t, 0, tok.Count(""))
	assert.Equal(t, 1, tok.Count("abcd"))
	assert.Equal(t, 2, tok.Count("abcde"))
}

func TestHeuristicTruncate(t *testing.T) {
	tok := Heuristic()
	text := strings.Repeat("x", 100)
	assert.Equal(t, text, tok.Truncate(text, 25))
	assert.Len(t, tok.Truncate(text, 10), 40)
	assert.Equal(t, "", tok.Truncate(text, 0))
}

func TestCountMessages(t *testing.T) {
	tok := Heuristic()
	msgs := []*types.Message{
		types.NewUserMessage("abcd"),
		types.NewToolCallMessage("", types.ToolCall{ID: "1", Name: "abcd", Arguments: []byte(`{}`)}),
	}
	// 2 messages overhead + "abcd" + tool name + "{}"
	assert.Equal(t, 2*perMessageOverhead+1+1+1, tok.CountMessages(msgs))
}

func TestNewIsCachedAndBounded(t *testing.T) {
	a := New("llama3.2:1b")
	b := New("llama3.2:1b")
	assert.Same(t, a, b)

	text := strings.Repeat("hello world ", 200)
	truncated := a.Truncate(text, 20)
	assert.LessOrEqual(t, a.Count(truncated), 20)
	assert.Greater(t, a.Count(text), 20)
}
