// Package graph drives one conversation turn through the supervisor and
// its workers until the supervisor terminates, and persists the result per
// thread.
package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/entrhq/switchboard/pkg/agent/observe"
	"github.com/entrhq/switchboard/pkg/agent/scope"
	"github.com/entrhq/switchboard/pkg/agent/supervisor"
	"github.com/entrhq/switchboard/pkg/agent/worker"
	"github.com/entrhq/switchboard/pkg/logging"
	"github.com/entrhq/switchboard/pkg/store"
	"github.com/entrhq/switchboard/pkg/types"
)

// DefaultMaxDispatches bounds worker visits per turn.
const DefaultMaxDispatches = 12

// ErrDispatchLimit is returned when the supervisor keeps dispatching past
// the cap without terminating.
var ErrDispatchLimit = errors.New("dispatch limit exceeded")

// Turn is one user message submitted to a thread.
type Turn struct {
	ThreadID string
	// UserID scopes profile memory. Empty means ThreadID.
	UserID string
	Text   string
}

// Answer is the outcome of a turn.
type Answer struct {
	ThreadID string
	// Content is the last message of the conversation.
	Content string
	// Author is the worker that produced Content, empty if none did.
	Author string
	// Dispatches counts worker visits in this turn.
	Dispatches int
	// Version is the checkpoint version written by this turn.
	Version int64
}

// Graph wires a router, its workers and the checkpoint store.
type Graph struct {
	router        *supervisor.Router
	workers       map[string]*worker.Worker
	checkpoints   store.CheckpointStore
	observer      observe.Observer
	logger        *logging.Logger
	maxDispatches int
	locks         *threadLocks
}

// Option configures a Graph.
type Option func(*Graph)

// WithMaxDispatches overrides DefaultMaxDispatches. Values below 1 are ignored.
func WithMaxDispatches(n int) Option {
	return func(g *Graph) {
		if n > 0 {
			g.maxDispatches = n
		}
	}
}

// WithObserver sets the event observer.
func WithObserver(o observe.Observer) Option {
	return func(g *Graph) { g.observer = observe.OrNoop(o) }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(g *Graph) {
		if l != nil {
			g.logger = l
		}
	}
}

// New creates a graph. Every worker the router can choose must be given,
// and no others.
func New(router *supervisor.Router, workers []*worker.Worker, checkpoints store.CheckpointStore, opts ...Option) (*Graph, error) {
	if router == nil {
		return nil, fmt.Errorf("graph requires a router")
	}
	if checkpoints == nil {
		return nil, fmt.Errorf("graph requires a checkpoint store")
	}

	byName := make(map[string]*worker.Worker, len(workers))
	for _, w := range workers {
		if w == nil {
			return nil, fmt.Errorf("graph worker cannot be nil")
		}
		if _, dup := byName[w.Name()]; dup {
			return nil, fmt.Errorf("duplicate worker %q", w.Name())
		}
		byName[w.Name()] = w
	}
	routed := router.Workers()
	if len(routed) != len(byName) {
		return nil, fmt.Errorf("router knows %d workers, graph was given %d", len(routed), len(byName))
	}
	for _, name := range routed {
		if _, ok := byName[name]; !ok {
			return nil, fmt.Errorf("router worker %q has no implementation", name)
		}
	}

	g := &Graph{
		router:        router,
		workers:       byName,
		checkpoints:   checkpoints,
		observer:      observe.Noop(),
		logger:        logging.Nop(),
		maxDispatches: DefaultMaxDispatches,
		locks:         newThreadLocks(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Submit runs one turn. Turns on the same thread run one at a time;
// different threads run concurrently. On failure nothing is persisted.
func (g *Graph) Submit(ctx context.Context, turn Turn) (*Answer, error) {
	threadID := strings.TrimSpace(turn.ThreadID)
	if threadID == "" {
		return nil, fmt.Errorf("thread id is required")
	}
	if strings.TrimSpace(turn.Text) == "" {
		return nil, fmt.Errorf("message text is required")
	}
	userID := turn.UserID
	if userID == "" {
		userID = threadID
	}

	release, err := g.locks.acquire(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("thread %s busy: %w", threadID, err)
	}
	defer release()

	ctx = scope.WithThread(scope.WithUser(ctx, userID), threadID)
	g.observer.Observe(ctx, types.NewTurnStartEvent(threadID, turn.Text))

	answer, err := g.submit(ctx, threadID, turn.Text)
	if err != nil {
		g.logger.Errorf("thread %s: turn failed: %v", threadID, err)
		g.observer.Observe(ctx, types.NewErrorEvent(threadID, err))
		return nil, err
	}

	g.observer.Observe(ctx, types.NewTurnEndEvent(threadID, answer.Content))
	return answer, nil
}

func (g *Graph) submit(ctx context.Context, threadID, text string) (*Answer, error) {
	cp, err := g.checkpoints.Load(ctx, threadID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		cp = &types.Checkpoint{ThreadID: threadID}
	case err != nil:
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}

	convo := make([]*types.Message, 0, len(cp.Messages)+4)
	convo = append(convo, cp.Messages...)
	convo = append(convo, types.NewUserMessage(text))

	convo, dispatches, err := g.Run(ctx, convo)
	if err != nil {
		return nil, err
	}

	cp.Messages = convo
	if err := g.checkpoints.Save(ctx, cp); err != nil {
		return nil, fmt.Errorf("save checkpoint: %w", err)
	}

	last := types.Conversation(convo).Last()
	return &Answer{
		ThreadID:   threadID,
		Content:    last.Content,
		Author:     last.Author,
		Dispatches: dispatches,
		Version:    cp.Version,
	}, nil
}

// Run drives convo from the supervisor to the terminal stage and returns
// the extended conversation and the number of worker visits. The input
// slice is not modified.
func (g *Graph) Run(ctx context.Context, convo []*types.Message) ([]*types.Message, int, error) {
	convo = append([]*types.Message(nil), convo...)
	terminate := supervisor.Terminate
	current := state{stage: StageSupervisor}
	dispatches := 0

	for current.stage != StageTerminal {
		if err := ctx.Err(); err != nil {
			return nil, dispatches, err
		}

		var ev event
		switch current.stage {
		case StageSupervisor:
			decision, err := g.router.Decide(ctx, convo)
			if err != nil {
				return nil, dispatches, fmt.Errorf("supervisor: %w", err)
			}
			if !decision.IsTerminate() {
				if dispatches >= g.maxDispatches {
					return nil, dispatches, fmt.Errorf("%w: %d worker visits without finishing", ErrDispatchLimit, dispatches)
				}
				dispatches++
			}
			ev = event{kind: eventDecision, next: decision.Next}

		case StageWorker:
			w, ok := g.workers[current.worker]
			if !ok {
				return nil, dispatches, fmt.Errorf("no worker named %q", current.worker)
			}
			g.logger.Debugf("dispatching to %s", w.Name())
			res, err := w.Run(ctx, convo)
			if err != nil {
				return nil, dispatches, err
			}
			convo = append(convo, res.Final)
			ev = event{kind: eventWorkerDone}
		}

		next, err := transition(current, ev, terminate)
		if err != nil {
			return nil, dispatches, err
		}
		current = next
	}
	return convo, dispatches, nil
}
