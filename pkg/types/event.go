package types

// AgentEventType defines the type of event emitted while a turn is orchestrated.
type AgentEventType string

const (
	EventTypeTurnStart          AgentEventType = "turn_start"          // EventTypeTurnStart indicates a user turn was accepted for a thread.
	EventTypeTurnEnd            AgentEventType = "turn_end"            // EventTypeTurnEnd indicates the graph reached its terminal stage.
	EventTypeSupervisorDecision AgentEventType = "supervisor_decision" // EventTypeSupervisorDecision indicates the router picked the next stage.
	EventTypeWorkerStart        AgentEventType = "worker_start"        // EventTypeWorkerStart indicates a worker loop began.
	EventTypeWorkerEnd          AgentEventType = "worker_end"          // EventTypeWorkerEnd indicates a worker produced its final message.
	EventTypeAPICallStart       AgentEventType = "api_call_start"      // EventTypeAPICallStart indicates an oracle call is being made.
	EventTypeAPICallEnd         AgentEventType = "api_call_end"        // EventTypeAPICallEnd indicates an oracle call has completed.
	EventTypeToolCall           AgentEventType = "tool_call"           // EventTypeToolCall indicates a capability is being invoked.
	EventTypeToolResult         AgentEventType = "tool_result"         // EventTypeToolResult indicates a successful capability result.
	EventTypeToolResultError    AgentEventType = "tool_result_error"   // EventTypeToolResultError indicates a capability failed softly.
	EventTypeTokenUsage         AgentEventType = "token_usage"         // EventTypeTokenUsage indicates token usage from an oracle call.
	EventTypeError              AgentEventType = "error"               // EventTypeError indicates the turn failed.
)

// AgentEvent represents an event emitted during a turn.
type AgentEvent struct {
	// Metadata holds optional additional information about the event.
	Metadata map[string]interface{}

	// Error contains error information for error events.
	Error error

	// TokenUsage contains token usage information (for token usage events).
	TokenUsage *TokenUsage

	// ThreadID is the conversation thread the event belongs to.
	ThreadID string

	// Worker is the worker name for worker and capability events.
	Worker string

	// ToolName is the capability being called (for tool events).
	ToolName string

	// ToolInput is the raw JSON argument object (for tool call events).
	ToolInput string

	// Content holds the decision, final reply, or capability output text.
	Content string

	// Type indicates the kind of event.
	Type AgentEventType
}

// TokenUsage contains token usage statistics from an LLM API call.
type TokenUsage struct {
	// PromptTokens is the number of tokens in the input/prompt.
	PromptTokens int `json:"prompt_tokens"`

	// CompletionTokens is the number of tokens in the generated completion/response.
	CompletionTokens int `json:"completion_tokens"`

	// TotalTokens is the total number of tokens used (prompt + completion).
	TotalTokens int `json:"total_tokens"`
}

func newEvent(t AgentEventType) *AgentEvent {
	return &AgentEvent{Type: t, Metadata: make(map[string]interface{})}
}

// NewTurnStartEvent creates a turn start event.
func NewTurnStartEvent(threadID, text string) *AgentEvent {
	e := newEvent(EventTypeTurnStart)
	e.ThreadID = threadID
	e.Content = text
	return e
}

// NewTurnEndEvent creates a turn end event carrying the answer text.
func NewTurnEndEvent(threadID, answer string) *AgentEvent {
	e := newEvent(EventTypeTurnEnd)
	e.ThreadID = threadID
	e.Content = answer
	return e
}

// NewSupervisorDecisionEvent creates a routing decision event.
// ruleBased is true when the decision was reached without consulting the oracle.
func NewSupervisorDecisionEvent(next string, ruleBased bool) *AgentEvent {
	e := newEvent(EventTypeSupervisorDecision)
	e.Content = next
	e.Metadata["rule_based"] = ruleBased
	return e
}

// NewWorkerStartEvent creates a worker start event.
func NewWorkerStartEvent(worker string) *AgentEvent {
	e := newEvent(EventTypeWorkerStart)
	e.Worker = worker
	return e
}

// NewWorkerEndEvent creates a worker end event.
func NewWorkerEndEvent(worker, content string, iterations int) *AgentEvent {
	e := newEvent(EventTypeWorkerEnd)
	e.Worker = worker
	e.Content = content
	e.Metadata["iterations"] = iterations
	return e
}

// NewAPICallStartEvent creates an API call start event.
func NewAPICallStartEvent(apiName string, contextTokens int) *AgentEvent {
	e := newEvent(EventTypeAPICallStart)
	e.Metadata["api_name"] = apiName
	e.Metadata["context_tokens"] = contextTokens
	return e
}

// NewAPICallEndEvent creates an API call end event.
func NewAPICallEndEvent(apiName string) *AgentEvent {
	e := newEvent(EventTypeAPICallEnd)
	e.Metadata["api_name"] = apiName
	return e
}

// NewToolCallEvent creates a tool call event.
func NewToolCallEvent(worker, toolName, input string) *AgentEvent {
	e := newEvent(EventTypeToolCall)
	e.Worker = worker
	e.ToolName = toolName
	e.ToolInput = input
	return e
}

// NewToolResultEvent creates a tool result event.
func NewToolResultEvent(worker, toolName, output string) *AgentEvent {
	e := newEvent(EventTypeToolResult)
	e.Worker = worker
	e.ToolName = toolName
	e.Content = output
	return e
}

// NewToolResultErrorEvent creates a tool result error event.
func NewToolResultErrorEvent(worker, toolName string, err error) *AgentEvent {
	e := newEvent(EventTypeToolResultError)
	e.Worker = worker
	e.ToolName = toolName
	e.Error = err
	return e
}

// NewTokenUsageEvent creates a token usage event.
func NewTokenUsageEvent(promptTokens, completionTokens, totalTokens int) *AgentEvent {
	e := newEvent(EventTypeTokenUsage)
	e.TokenUsage = &TokenUsage{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      totalTokens,
	}
	return e
}

// NewErrorEvent creates an error event.
func NewErrorEvent(threadID string, err error) *AgentEvent {
	e := newEvent(EventTypeError)
	e.ThreadID = threadID
	e.Error = err
	return e
}

// WithMetadata adds metadata to the event and returns the event for chaining.
func (e *AgentEvent) WithMetadata(key string, value interface{}) *AgentEvent {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// WithThread stamps the thread id and returns the event for chaining.
func (e *AgentEvent) WithThread(threadID string) *AgentEvent {
	e.ThreadID = threadID
	return e
}

// IsToolEvent returns true if this is any tool-related event.
func (e *AgentEvent) IsToolEvent() bool {
	return e.Type == EventTypeToolCall ||
		e.Type == EventTypeToolResult ||
		e.Type == EventTypeToolResultError
}

// IsAPIEvent returns true if this is any API-related event.
func (e *AgentEvent) IsAPIEvent() bool {
	return e.Type == EventTypeAPICallStart ||
		e.Type == EventTypeAPICallEnd
}

// IsWorkerEvent returns true if this is a worker lifecycle event.
func (e *AgentEvent) IsWorkerEvent() bool {
	return e.Type == EventTypeWorkerStart ||
		e.Type == EventTypeWorkerEnd
}

// IsErrorEvent returns true if this is an error event.
func (e *AgentEvent) IsErrorEvent() bool {
	return e.Type == EventTypeError
}
