// Package worker runs one specialist agent: a bounded loop of oracle calls
// and capability invocations that ends with a reply carrying no tool calls.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/entrhq/switchboard/pkg/agent/memory"
	"github.com/entrhq/switchboard/pkg/agent/observe"
	"github.com/entrhq/switchboard/pkg/agent/prompts"
	"github.com/entrhq/switchboard/pkg/agent/scope"
	"github.com/entrhq/switchboard/pkg/agent/tools"
	"github.com/entrhq/switchboard/pkg/llm"
	"github.com/entrhq/switchboard/pkg/llm/tokenizer"
	"github.com/entrhq/switchboard/pkg/logging"
	"github.com/entrhq/switchboard/pkg/types"
)

const (
	// DefaultMaxIterations bounds the oracle calls of one run.
	DefaultMaxIterations = 10

	DefaultModelTimeout      = 120 * time.Second
	DefaultCapabilityTimeout = 60 * time.Second
)

// ErrIterationLimit is returned when the oracle keeps requesting tools past
// the iteration cap.
var ErrIterationLimit = errors.New("worker iteration limit exceeded")

// State is the worker loop's position.
type State int

const (
	// AwaitModel: the next step is an oracle call.
	AwaitModel State = iota
	// AwaitCapabilities: the last reply requested tool calls.
	AwaitCapabilities
)

func (s State) String() string {
	switch s {
	case AwaitModel:
		return "await_model"
	case AwaitCapabilities:
		return "await_capabilities"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Result is the outcome of a run.
type Result struct {
	// Messages is the input history plus every reply and tool result of the run.
	Messages []*types.Message

	// Final is the last reply, attributed to the worker.
	Final *types.Message

	// Iterations counts oracle calls.
	Iterations int
}

// Worker binds a name, an oracle and a set of capabilities.
type Worker struct {
	name              string
	instructions      string
	provider          llm.Provider
	tools             *tools.Registry
	injector          *memory.Injector
	observer          observe.Observer
	logger            *logging.Logger
	tokenizer         *tokenizer.Tokenizer
	maxIterations     int
	modelTimeout      time.Duration
	capabilityTimeout time.Duration
}

// Option configures a Worker.
type Option func(*Worker)

// WithInstructions sets the worker's role prompt.
func WithInstructions(instructions string) Option {
	return func(w *Worker) { w.instructions = instructions }
}

// WithTools sets the capabilities the worker may call.
func WithTools(registry *tools.Registry) Option {
	return func(w *Worker) { w.tools = registry }
}

// WithInjector sets the profile memory injector.
func WithInjector(injector *memory.Injector) Option {
	return func(w *Worker) { w.injector = injector }
}

// WithObserver sets the event observer.
func WithObserver(o observe.Observer) Option {
	return func(w *Worker) { w.observer = observe.OrNoop(o) }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(w *Worker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithTokenizer sets the tokenizer used to report prompt sizes.
func WithTokenizer(t *tokenizer.Tokenizer) Option {
	return func(w *Worker) {
		if t != nil {
			w.tokenizer = t
		}
	}
}

// WithMaxIterations overrides DefaultMaxIterations. Values below 1 are ignored.
func WithMaxIterations(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.maxIterations = n
		}
	}
}

// WithTimeouts sets per-call deadlines. Zero keeps the default.
func WithTimeouts(model, capability time.Duration) Option {
	return func(w *Worker) {
		if model > 0 {
			w.modelTimeout = model
		}
		if capability > 0 {
			w.capabilityTimeout = capability
		}
	}
}

// New creates a worker.
func New(name string, provider llm.Provider, opts ...Option) (*Worker, error) {
	if name == "" {
		return nil, fmt.Errorf("worker name is required")
	}
	if provider == nil {
		return nil, fmt.Errorf("worker %s: provider is required", name)
	}

	w := &Worker{
		name:              name,
		provider:          provider,
		observer:          observe.Noop(),
		logger:            logging.Nop(),
		tokenizer:         tokenizer.Heuristic(),
		maxIterations:     DefaultMaxIterations,
		modelTimeout:      DefaultModelTimeout,
		capabilityTimeout: DefaultCapabilityTimeout,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.tools == nil {
		w.tools, _ = tools.NewRegistry()
	}
	return w, nil
}

// Name returns the worker's name.
func (w *Worker) Name() string {
	return w.name
}

// Tools returns the names of the worker's capabilities.
func (w *Worker) Tools() []string {
	return w.tools.Names()
}

// Run executes the loop on a copy of history. The input is never modified.
func (w *Worker) Run(ctx context.Context, history []*types.Message) (*Result, error) {
	convo := make([]*types.Message, len(history), len(history)+8)
	copy(convo, history)

	w.emit(ctx, types.NewWorkerStartEvent(w.name))

	state := AwaitModel
	iterations := 0
	var reply *types.Message

	for {
		switch state {
		case AwaitModel:
			if iterations >= w.maxIterations {
				return nil, fmt.Errorf("%w: worker %s stopped after %d oracle calls", ErrIterationLimit, w.name, iterations)
			}
			iterations++

			var err error
			reply, err = w.callModel(ctx, convo)
			if err != nil {
				return nil, err
			}
			convo = append(convo, reply)

			if !reply.HasToolCalls() {
				final := reply.WithAuthor(w.name)
				w.emit(ctx, types.NewWorkerEndEvent(w.name, final.Content, iterations))
				return &Result{Messages: convo, Final: final, Iterations: iterations}, nil
			}
			state = AwaitCapabilities

		case AwaitCapabilities:
			for _, call := range reply.ToolCalls {
				convo = append(convo, w.invoke(ctx, call))
				if err := ctx.Err(); err != nil {
					return nil, fmt.Errorf("worker %s: %w", w.name, err)
				}
			}
			state = AwaitModel
		}
	}
}

// prepare builds the oracle input: role prompt, fresh profile memory, history.
func (w *Worker) prepare(ctx context.Context, convo []*types.Message) []*types.Message {
	injected := convo
	if w.injector != nil {
		injected = w.injector.Inject(ctx, convo, scope.UserID(ctx))
	}

	system := prompts.NewWorkerPromptBuilder(w.name).
		WithInstructions(w.instructions).
		WithTools(w.tools.Specs()).
		Build()
	if system == "" {
		return injected
	}

	out := make([]*types.Message, 0, len(injected)+1)
	out = append(out, types.NewSystemMessage(system))
	return append(out, injected...)
}

func (w *Worker) emit(ctx context.Context, event *types.AgentEvent) {
	w.observer.Observe(ctx, event.WithThread(scope.ThreadID(ctx)))
}

func (w *Worker) callModel(ctx context.Context, convo []*types.Message) (*types.Message, error) {
	messages := w.prepare(ctx, convo)

	promptTokens := w.tokenizer.CountMessages(messages)
	w.logger.Debugf("[%s] oracle call with %d messages (~%d tokens)", w.name, len(messages), promptTokens)
	w.emit(ctx, types.NewAPICallStartEvent(w.name, promptTokens))

	callCtx, cancel := context.WithTimeout(ctx, w.modelTimeout)
	defer cancel()

	reply, err := w.provider.Complete(callCtx, messages, w.tools.Specs())
	w.emit(ctx, types.NewAPICallEndEvent(w.name))
	if err != nil {
		return nil, fmt.Errorf("worker %s: oracle call failed: %w", w.name, err)
	}
	if reply == nil {
		return nil, fmt.Errorf("worker %s: oracle returned no message", w.name)
	}
	if reply.Usage != nil {
		w.emit(ctx, types.NewTokenUsageEvent(reply.Usage.PromptTokens, reply.Usage.CompletionTokens, reply.Usage.TotalTokens))
	}
	return reply, nil
}

// invoke runs one tool call and always returns a tool message. Failures are
// reported to the oracle as "Error: ..." text.
func (w *Worker) invoke(ctx context.Context, call types.ToolCall) *types.Message {
	w.emit(ctx, types.NewToolCallEvent(w.name, call.Name, string(call.Arguments)))

	out, err := w.execute(ctx, call)
	if err != nil {
		w.logger.Warnf("[%s] capability %s failed: %v", w.name, call.Name, err)
		w.emit(ctx, types.NewToolResultErrorEvent(w.name, call.Name, err))
		return types.NewToolMessage(call.ID, "Error: "+err.Error())
	}

	w.emit(ctx, types.NewToolResultEvent(w.name, call.Name, out))
	return types.NewToolMessage(call.ID, out)
}

// execute runs the capability under its timeout. A panic inside the
// capability is returned as an error.
func (w *Worker) execute(ctx context.Context, call types.ToolCall) (out string, err error) {
	tool, err := w.tools.Get(call.Name)
	if err != nil {
		return "", err
	}

	callCtx, cancel := context.WithTimeout(ctx, w.capabilityTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			w.logger.Errorf("[%s] capability %s panicked: %v\n%s", w.name, call.Name, r, debug.Stack())
			out, err = "", fmt.Errorf("%s panicked: %v", call.Name, r)
		}
	}()

	out, err = tool.Execute(callCtx, call.Arguments)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return "", fmt.Errorf("%s timed out after %s", call.Name, w.capabilityTimeout)
		}
		return "", err
	}
	return out, nil
}
