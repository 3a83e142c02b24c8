// Package observe lets callers watch a turn as it is orchestrated.
//
// Observers are composed at construction time and receive every event
// synchronously on the goroutine running the turn, so implementations must
// return quickly. Observers cannot affect the turn.
package observe

import (
	"context"
	"sync"

	"github.com/entrhq/switchboard/pkg/logging"
	"github.com/entrhq/switchboard/pkg/types"
)

// Observer receives orchestration events.
type Observer interface {
	Observe(ctx context.Context, event *types.AgentEvent)
}

// Func adapts a function to Observer.
type Func func(ctx context.Context, event *types.AgentEvent)

func (f Func) Observe(ctx context.Context, event *types.AgentEvent) { f(ctx, event) }

type noop struct{}

func (noop) Observe(context.Context, *types.AgentEvent) {}

// Noop returns an observer that ignores everything.
func Noop() Observer { return noop{} }

// Multi fans events out to every non-nil observer in order.
func Multi(observers ...Observer) Observer {
	var live []Observer
	for _, o := range observers {
		if o != nil {
			live = append(live, o)
		}
	}
	switch len(live) {
	case 0:
		return Noop()
	case 1:
		return live[0]
	}
	return multi(live)
}

type multi []Observer

func (m multi) Observe(ctx context.Context, event *types.AgentEvent) {
	for _, o := range m {
		o.Observe(ctx, event)
	}
}

// OrNoop returns o, or Noop when o is nil.
func OrNoop(o Observer) Observer {
	if o == nil {
		return Noop()
	}
	return o
}

// LogObserver writes every event to a component logger.
type LogObserver struct {
	logger *logging.Logger
}

// NewLogObserver creates an observer logging to logger.
func NewLogObserver(logger *logging.Logger) *LogObserver {
	return &LogObserver{logger: logger}
}

func (l *LogObserver) Observe(_ context.Context, e *types.AgentEvent) {
	log := l.logger
	if e.ThreadID != "" {
		log = log.With("thread_id", e.ThreadID)
	}
	switch e.Type {
	case types.EventTypeError:
		log.Errorf("turn failed: %v", e.Error)
	case types.EventTypeToolResultError:
		log.Warnf("[%s] capability %s failed: %v", e.Worker, e.ToolName, e.Error)
	case types.EventTypeSupervisorDecision:
		log.Infof("supervisor -> %s (rule_based=%v)", e.Content, e.Metadata["rule_based"])
	case types.EventTypeToolCall:
		log.Debugf("[%s] calling %s %s", e.Worker, e.ToolName, e.ToolInput)
	case types.EventTypeTokenUsage:
		if e.TokenUsage != nil {
			log.Debugf("tokens prompt=%d completion=%d total=%d",
				e.TokenUsage.PromptTokens, e.TokenUsage.CompletionTokens, e.TokenUsage.TotalTokens)
		}
	default:
		log.Debugf("%s worker=%s tool=%s", e.Type, e.Worker, e.ToolName)
	}
}

// Recorder keeps every event in memory; used by tests and the CLI.
type Recorder struct {
	mu     sync.Mutex
	events []*types.AgentEvent
}

func (r *Recorder) Observe(_ context.Context, e *types.AgentEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []*types.AgentEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*types.AgentEvent(nil), r.events...)
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []types.AgentEventType {
	events := r.Events()
	out := make([]types.AgentEventType, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

// Channel forwards events to a buffered channel and drops them when the
// reader falls behind, so a slow consumer never stalls a turn.
type Channel struct {
	ch chan *types.AgentEvent
}

// NewChannel creates a channel observer with the given buffer size.
func NewChannel(buffer int) *Channel {
	return &Channel{ch: make(chan *types.AgentEvent, buffer)}
}

func (c *Channel) Observe(_ context.Context, e *types.AgentEvent) {
	select {
	case c.ch <- e:
	default:
	}
}

// Events returns the receive side.
func (c *Channel) Events() <-chan *types.AgentEvent {
	return c.ch
}
