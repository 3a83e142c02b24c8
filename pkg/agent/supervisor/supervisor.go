// Package supervisor decides which worker acts next, or that the turn is
// over.
package supervisor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/entrhq/switchboard/pkg/agent/observe"
	"github.com/entrhq/switchboard/pkg/agent/prompts"
	"github.com/entrhq/switchboard/pkg/agent/scope"
	"github.com/entrhq/switchboard/pkg/llm"
	"github.com/entrhq/switchboard/pkg/logging"
	"github.com/entrhq/switchboard/pkg/types"
)

// Terminate is the decision that ends the turn. It is also the oracle's
// wire value for finishing.
const Terminate = prompts.FinishOption

// ErrInvalidDecision is returned when the oracle's routing reply is not a
// single known option.
var ErrInvalidDecision = errors.New("invalid routing decision")

// DefaultTimeout bounds one routing call.
const DefaultTimeout = 120 * time.Second

// Decision names the next worker, or Terminate.
type Decision struct {
	Next string `json:"next"`

	// RuleBased is set when the decision was reached without the oracle.
	RuleBased bool `json:"-"`
}

// IsTerminate reports whether the turn should end.
func (d Decision) IsTerminate() bool {
	return d.Next == Terminate
}

// Router routes between a fixed set of workers.
type Router struct {
	provider llm.Provider
	routes   []prompts.Route
	known    map[string]bool
	schema   *llm.Schema
	prompt   string
	timeout  time.Duration
	observer observe.Observer
	logger   *logging.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithTimeout bounds each routing call.
func WithTimeout(d time.Duration) Option {
	return func(r *Router) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithObserver sets the event observer.
func WithObserver(o observe.Observer) Option {
	return func(r *Router) { r.observer = observe.OrNoop(o) }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRouter creates a router over routes, in the order given.
func NewRouter(provider llm.Provider, routes []prompts.Route, opts ...Option) (*Router, error) {
	if provider == nil {
		return nil, fmt.Errorf("router provider is required")
	}
	if len(routes) == 0 {
		return nil, fmt.Errorf("router needs at least one worker")
	}

	known := make(map[string]bool, len(routes))
	for _, rt := range routes {
		if rt.Name == "" || rt.Name == Terminate {
			return nil, fmt.Errorf("invalid worker name %q", rt.Name)
		}
		if known[rt.Name] {
			return nil, fmt.Errorf("duplicate worker name %q", rt.Name)
		}
		known[rt.Name] = true
	}

	r := &Router{
		provider: provider,
		routes:   append([]prompts.Route(nil), routes...),
		known:    known,
		prompt:   prompts.SupervisorPrompt(routes),
		timeout:  DefaultTimeout,
		observer: observe.Noop(),
		logger:   logging.Nop(),
	}
	r.schema = decisionSchema(r.Workers())
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Workers returns the worker names in routing order.
func (r *Router) Workers() []string {
	names := make([]string, len(r.routes))
	for i, rt := range r.routes {
		names[i] = rt.Name
	}
	return names
}

// Schema returns the structured-output schema sent to the oracle.
func (r *Router) Schema() *llm.Schema {
	return r.schema
}

// Decide picks the next step for conversation.
func (r *Router) Decide(ctx context.Context, conversation []*types.Message) (Decision, error) {
	if r.ShouldFinish(conversation) {
		d := Decision{Next: Terminate, RuleBased: true}
		r.emit(ctx, d)
		return d, nil
	}

	messages := make([]*types.Message, 0, len(conversation)+1)
	messages = append(messages, types.NewSystemMessage(r.prompt))
	messages = append(messages, conversation...)

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	raw, err := r.provider.CompleteStructured(callCtx, messages, r.schema)
	if err != nil {
		return Decision{}, fmt.Errorf("routing call failed: %w", err)
	}

	d, err := r.parse(raw)
	if err != nil {
		r.logger.Warnf("rejected routing reply %q: %v", string(raw), err)
		return Decision{}, err
	}
	r.emit(ctx, d)
	return d, nil
}

// ShouldFinish reports whether the last message is a worker's final reply:
// an assistant message authored by a known worker with no pending tool calls.
func (r *Router) ShouldFinish(conversation []*types.Message) bool {
	if len(conversation) == 0 {
		return false
	}
	last := conversation[len(conversation)-1]
	return last != nil &&
		last.Role == types.RoleAssistant &&
		r.known[last.Author] &&
		!last.HasToolCalls()
}

func (r *Router) parse(raw []byte) (Decision, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var d Decision
	if err := dec.Decode(&d); err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrInvalidDecision, err)
	}
	if dec.More() {
		return Decision{}, fmt.Errorf("%w: trailing data", ErrInvalidDecision)
	}
	if d.Next != Terminate && !r.known[d.Next] {
		return Decision{}, fmt.Errorf("%w: unknown option %q", ErrInvalidDecision, d.Next)
	}
	return d, nil
}

func (r *Router) emit(ctx context.Context, d Decision) {
	r.observer.Observe(ctx, types.NewSupervisorDecisionEvent(d.Next, d.RuleBased).WithThread(scope.ThreadID(ctx)))
}

func decisionSchema(workers []string) *llm.Schema {
	options := make([]interface{}, 0, len(workers)+1)
	for _, w := range workers {
		options = append(options, w)
	}
	options = append(options, Terminate)

	return &llm.Schema{
		Name: "route",
		Definition: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"next": map[string]interface{}{
					"type":        "string",
					"enum":        options,
					"description": "The next worker to act, or FINISH when the task is complete.",
				},
			},
			"required":             []interface{}{"next"},
			"additionalProperties": false,
		},
	}
}
