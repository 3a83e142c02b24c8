package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MessageRole identifies who produced a message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"      // RoleUser marks a message typed by the human.
	RoleAssistant MessageRole = "assistant" // RoleAssistant marks a reply from the reasoning oracle.
	RoleSystem    MessageRole = "system"    // RoleSystem marks a directive or synthetic context message.
	RoleTool      MessageRole = "tool"      // RoleTool marks the result of a capability call.
)

// Message is one entry of a conversation.
//
// Messages are treated as immutable once appended to a conversation. Code
// that needs a variant (for example stamping an author) works on a Clone.
type Message struct {
	// ID is a unique identifier assigned at construction.
	ID string `json:"id"`

	// Role is the producer of the message.
	Role MessageRole `json:"role"`

	// Content is the text body. Assistant messages that only request
	// capability calls may have empty content.
	Content string `json:"content"`

	// Author names the worker that produced an assistant message, or tags
	// the origin of a synthetic system message. Empty otherwise.
	Author string `json:"author,omitempty"`

	// ToolCalls are the capability calls requested by an assistant message,
	// in the order they must be executed.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID links a tool message back to the request it answers.
	ToolCallID string `json:"tool_call_id,omitempty"`

	// Usage carries token accounting for oracle replies when available.
	Usage *TokenUsage `json:"usage,omitempty"`
}

// ToolCall is a single capability invocation requested by the oracle.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

func newID() string {
	return uuid.New().String()
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) *Message {
	return &Message{ID: newID(), Role: RoleUser, Content: content}
}

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) *Message {
	return &Message{ID: newID(), Role: RoleSystem, Content: content}
}

// NewAssistantMessage creates an assistant message without capability calls.
func NewAssistantMessage(content string) *Message {
	return &Message{ID: newID(), Role: RoleAssistant, Content: content}
}

// NewToolCallMessage creates an assistant message that requests capability calls.
func NewToolCallMessage(content string, calls ...ToolCall) *Message {
	return &Message{ID: newID(), Role: RoleAssistant, Content: content, ToolCalls: calls}
}

// NewToolMessage creates the result message for a capability call.
func NewToolMessage(toolCallID, content string) *Message {
	return &Message{ID: newID(), Role: RoleTool, Content: content, ToolCallID: toolCallID}
}

// HasToolCalls reports whether the message still requests capability calls.
func (m *Message) HasToolCalls() bool {
	return m != nil && len(m.ToolCalls) > 0
}

// Clone returns a deep copy of the message.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	c := *m
	if m.ToolCalls != nil {
		c.ToolCalls = make([]ToolCall, len(m.ToolCalls))
		for i, tc := range m.ToolCalls {
			c.ToolCalls[i] = tc
			if tc.Arguments != nil {
				c.ToolCalls[i].Arguments = append(json.RawMessage(nil), tc.Arguments...)
			}
		}
	}
	if m.Usage != nil {
		u := *m.Usage
		c.Usage = &u
	}
	return &c
}

// WithAuthor returns a copy of the message attributed to author.
func (m *Message) WithAuthor(author string) *Message {
	c := m.Clone()
	c.Author = author
	return c
}

// Conversation is an ordered message history.
type Conversation []*Message

// Clone returns a copy of the slice. Messages are shared since they are
// never mutated after being appended.
func (c Conversation) Clone() Conversation {
	if c == nil {
		return nil
	}
	out := make(Conversation, len(c))
	copy(out, c)
	return out
}

// Last returns the final message or nil for an empty conversation.
func (c Conversation) Last() *Message {
	if len(c) == 0 {
		return nil
	}
	return c[len(c)-1]
}

// Checkpoint is the persisted conversation of one thread.
type Checkpoint struct {
	ThreadID  string       `json:"thread_id"`
	Messages  Conversation `json:"messages"`
	Version   int64        `json:"version"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Clone returns a copy with its own message slice.
func (c *Checkpoint) Clone() *Checkpoint {
	if c == nil {
		return nil
	}
	out := *c
	out.Messages = make(Conversation, len(c.Messages))
	for i, m := range c.Messages {
		out.Messages[i] = m.Clone()
	}
	return &out
}
