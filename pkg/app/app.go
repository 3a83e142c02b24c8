// Package app assembles a running switchboard from a config.Config: the
// durable stores, the capabilities, the worker roster, the supervisor and
// the graph. It owns their lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/entrhq/switchboard/pkg/agent/graph"
	"github.com/entrhq/switchboard/pkg/agent/memory"
	"github.com/entrhq/switchboard/pkg/agent/observe"
	"github.com/entrhq/switchboard/pkg/agent/prompts"
	"github.com/entrhq/switchboard/pkg/agent/supervisor"
	"github.com/entrhq/switchboard/pkg/agent/worker"
	"github.com/entrhq/switchboard/pkg/config"
	"github.com/entrhq/switchboard/pkg/llm"
	"github.com/entrhq/switchboard/pkg/llm/tokenizer"
	"github.com/entrhq/switchboard/pkg/logging"
	"github.com/entrhq/switchboard/pkg/store"
	"github.com/entrhq/switchboard/pkg/store/sqlite"
	"github.com/entrhq/switchboard/pkg/tools/browser"
	"github.com/entrhq/switchboard/pkg/tools/rag"
	"github.com/entrhq/switchboard/pkg/tools/sqlquery"
)

// App is the assembled orchestration engine.
type App struct {
	cfg    *config.Config
	roster *config.Roster
	logger *logging.Logger

	profiles    *sqlite.ProfileStore
	checkpoints *sqlite.CheckpointStore
	docs        *Documents
	database    *sqlquery.Database
	browser     *browser.Fetcher
	graph       *graph.Graph

	cancel    context.CancelFunc
	bg        sync.WaitGroup
	closeOnce sync.Once
}

type options struct {
	provider   llm.Provider
	supervisor llm.Provider
	embedder   rag.Embedder
	tokenizer  *tokenizer.Tokenizer
	observer   observe.Observer
	logger     *logging.Logger
	indexing   bool
}

// Option configures New.
type Option func(*options)

// WithProvider sets the oracle used by workers and, unless
// WithSupervisorProvider is given, by the supervisor.
func WithProvider(p llm.Provider) Option {
	return func(o *options) { o.provider = p }
}

// WithSupervisorProvider sets the supervisor's oracle.
func WithSupervisorProvider(p llm.Provider) Option {
	return func(o *options) { o.supervisor = p }
}

// WithEmbedder overrides the configured document embedder.
func WithEmbedder(e rag.Embedder) Option {
	return func(o *options) { o.embedder = e }
}

// WithTokenizer overrides the tokenizer chosen for the worker model.
func WithTokenizer(t *tokenizer.Tokenizer) Option {
	return func(o *options) { o.tokenizer = t }
}

// WithObserver adds an event observer next to the log observer.
func WithObserver(obs observe.Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithoutIndexing skips the background document index build and watcher.
func WithoutIndexing() Option {
	return func(o *options) { o.indexing = false }
}

// New opens the stores, builds the capabilities named by the roster and
// wires workers, router and graph. The returned App must be closed.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	o := options{indexing: true}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.MustLogger("app")
	}

	roster, err := config.LoadRoster(cfg.Orchestration.GetRosterFile())
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, roster: roster, logger: o.logger}
	if err := a.build(ctx, &o); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, o *options) error {
	cfg := a.cfg
	if err := os.MkdirAll(cfg.Storage.GetDataDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	var err error
	if a.profiles, err = sqlite.NewProfileStore(cfg.Storage.Path(config.ProfileDBFile)); err != nil {
		return err
	}
	if a.checkpoints, err = sqlite.NewCheckpointStore(cfg.Storage.Path(config.CheckpointDBFile)); err != nil {
		return err
	}

	provider := o.provider
	if provider == nil {
		if provider, err = config.BuildProvider(cfg.LLM.GetModel(), cfg.LLM); err != nil {
			return err
		}
	}
	routerProvider := o.supervisor
	switch {
	case routerProvider != nil:
	case o.provider != nil || cfg.LLM.GetSupervisorModel() == cfg.LLM.GetModel():
		routerProvider = provider
	default:
		if routerProvider, err = config.BuildProvider(cfg.LLM.GetSupervisorModel(), cfg.LLM); err != nil {
			return err
		}
	}

	tok := o.tokenizer
	if tok == nil {
		tok = tokenizer.New(provider.GetModel())
	}

	observer := observe.Multi(observe.NewLogObserver(logging.MustLogger("events")), o.observer)
	injector := memory.NewInjector(a.profiles, logging.MustLogger("memory"))

	registry, err := a.capabilities(ctx, capabilityDeps{
		provider: provider,
		injector: injector,
		embedder: o.embedder,
		tok:      tok,
	})
	if err != nil {
		return err
	}

	iterations, dispatches, modelTimeout, capabilityTimeout := cfg.Orchestration.Limits()

	workers := make([]*worker.Worker, 0, len(a.roster.Workers))
	routes := make([]prompts.Route, 0, len(a.roster.Workers))
	for _, spec := range a.roster.Workers {
		caps, err := registry.Subset(spec.Capabilities...)
		if err != nil {
			return fmt.Errorf("worker %s: %w", spec.Name, err)
		}
		w, err := worker.New(spec.Name, provider,
			worker.WithInstructions(spec.Instructions),
			worker.WithTools(caps),
			worker.WithInjector(injector),
			worker.WithObserver(observer),
			worker.WithLogger(logging.MustLogger("worker").With("worker", spec.Name)),
			worker.WithTokenizer(tok),
			worker.WithMaxIterations(iterations),
			worker.WithTimeouts(modelTimeout, capabilityTimeout),
		)
		if err != nil {
			return err
		}
		workers = append(workers, w)
		routes = append(routes, prompts.Route{Name: spec.Name, Description: spec.Description})
	}

	router, err := supervisor.NewRouter(routerProvider, routes,
		supervisor.WithTimeout(modelTimeout),
		supervisor.WithObserver(observer),
		supervisor.WithLogger(logging.MustLogger("supervisor")),
	)
	if err != nil {
		return err
	}

	a.graph, err = graph.New(router, workers, a.checkpoints,
		graph.WithMaxDispatches(dispatches),
		graph.WithObserver(observer),
		graph.WithLogger(logging.MustLogger("graph")),
	)
	if err != nil {
		return err
	}

	if a.docs != nil && o.indexing {
		a.startIndexing(ctx)
	}
	a.logger.Infof("switchboard ready: %d workers, model %s", len(workers), provider.GetModel())
	return nil
}

// startIndexing builds the document index once in the background and,
// when configured, keeps it in sync with the docs directory.
func (a *App) startIndexing(ctx context.Context) {
	bgCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.cancel = cancel

	a.docs.Service.Start(bgCtx)
	if !a.cfg.Capabilities.Snapshot().WatchDocs {
		return
	}
	a.bg.Add(1)
	go func() {
		defer a.bg.Done()
		if err := a.docs.Service.Wait(bgCtx); err != nil {
			return
		}
		if err := a.docs.Service.Watch(bgCtx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Warnf("document watcher stopped: %v", err)
		}
	}()
}

// Submit runs one turn on the graph.
func (a *App) Submit(ctx context.Context, turn graph.Turn) (*graph.Answer, error) {
	return a.graph.Submit(ctx, turn)
}

// Graph returns the orchestration graph.
func (a *App) Graph() *graph.Graph { return a.graph }

// Profiles returns the profile store.
func (a *App) Profiles() store.ProfileStore { return a.profiles }

// Checkpoints returns the checkpoint store.
func (a *App) Checkpoints() store.CheckpointStore { return a.checkpoints }

// Roster returns the worker roster.
func (a *App) Roster() *config.Roster { return a.roster }

// Documents returns the document index, or nil when no worker uses it.
func (a *App) Documents() *Documents { return a.docs }

// Close stops background work and closes every resource. Errors are
// logged and swallowed so shutdown always completes.
func (a *App) Close() {
	a.closeOnce.Do(func() {
		if a.cancel != nil {
			a.cancel()
		}
		a.bg.Wait()
		if a.docs != nil {
			_ = a.docs.Service.Wait(context.Background())
		}

		type closer struct {
			name string
			fn   func() error
		}
		var closers []closer
		if a.browser != nil {
			closers = append(closers, closer{"browser", a.browser.Close})
		}
		if a.database != nil {
			closers = append(closers, closer{"sql database", a.database.Close})
		}
		if a.docs != nil {
			closers = append(closers, closer{"document index", a.docs.Close})
		}
		if a.checkpoints != nil {
			closers = append(closers, closer{"checkpoint store", a.checkpoints.Close})
		}
		if a.profiles != nil {
			closers = append(closers, closer{"profile store", a.profiles.Close})
		}
		for _, c := range closers {
			if err := c.fn(); err != nil {
				a.logger.Warnf("failed to close %s: %v", c.name, err)
			}
		}
		_ = a.logger.Sync()
	})
}
