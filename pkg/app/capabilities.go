package app

import (
	"context"
	"fmt"

	"github.com/entrhq/switchboard/pkg/agent/memory"
	"github.com/entrhq/switchboard/pkg/agent/tools"
	"github.com/entrhq/switchboard/pkg/config"
	"github.com/entrhq/switchboard/pkg/llm"
	"github.com/entrhq/switchboard/pkg/llm/tokenizer"
	"github.com/entrhq/switchboard/pkg/logging"
	"github.com/entrhq/switchboard/pkg/tools/browser"
	memorytools "github.com/entrhq/switchboard/pkg/tools/memory"
	"github.com/entrhq/switchboard/pkg/tools/rag"
	"github.com/entrhq/switchboard/pkg/tools/sqlquery"
	"github.com/entrhq/switchboard/pkg/tools/websearch"
)

type capabilityDeps struct {
	provider llm.Provider
	injector *memory.Injector
	embedder rag.Embedder
	tok      *tokenizer.Tokenizer
}

// capabilities builds one registry holding every capability the roster
// names. Capabilities no worker uses are not built.
func (a *App) capabilities(ctx context.Context, deps capabilityDeps) (*tools.Registry, error) {
	settings := a.cfg.Capabilities.Snapshot()

	needed := make(map[string]bool)
	var order []string
	for _, w := range a.roster.Workers {
		for _, name := range w.Capabilities {
			if !needed[name] {
				needed[name] = true
				order = append(order, name)
			}
		}
	}

	registry, err := tools.NewRegistry()
	if err != nil {
		return nil, err
	}

	for _, name := range order {
		var tool tools.Tool
		switch name {
		case config.CapabilityRemember:
			tool = memorytools.NewRememberTool(a.profiles)
		case config.CapabilityRecall:
			tool = memorytools.NewRecallTool(a.profiles)
		case config.CapabilityWebSearch:
			tool = websearch.NewSearchTool(a.searcher(settings), settings.SearchMaxResults)
		case config.CapabilityFetchPage:
			tool = websearch.NewFetchTool(a.fetcher(settings))
		case config.CapabilityDocumentSearch:
			embedder := deps.embedder
			if embedder == nil {
				if embedder, err = NewEmbedder(ctx, a.cfg); err != nil {
					return nil, err
				}
			}
			if a.docs, err = OpenDocuments(a.cfg, embedder, deps.tok, logging.MustLogger("rag")); err != nil {
				return nil, err
			}
			tool = rag.NewSearchTool(a.docs.Service, deps.provider,
				rag.WithInjector(deps.injector),
				rag.WithContextBudget(rag.DefaultContextTokens, deps.tok),
			)
		case config.CapabilitySQLQuery:
			tool = sqlquery.NewTool(a.openDatabase(settings), deps.provider, settings.SQLPreviewRows)
		default:
			return nil, fmt.Errorf("unknown capability %q", name)
		}
		if err := registry.Register(tool); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func (a *App) searcher(settings config.CapabilitiesSettings) websearch.Searcher {
	if settings.SearchBackend == config.SearchBackendDuckDuckGo {
		return websearch.NewDuckDuckGo()
	}
	if settings.TavilyAPIKey == "" {
		a.logger.Warnf("search backend is tavily but no API key is set; web_search calls will fail")
	}
	return websearch.NewTavily(settings.TavilyAPIKey)
}

func (a *App) fetcher(settings config.CapabilitiesSettings) websearch.Fetcher {
	if settings.FetchBackend == config.FetchBackendBrowser {
		a.browser = browser.NewFetcher(browser.Options{})
		return a.browser
	}
	return websearch.NewHTTPFetcher(nil, 0)
}

// openDatabase opens the configured SQL database. A missing or unreadable
// database leaves sql_query reporting the problem on each call.
func (a *App) openDatabase(settings config.CapabilitiesSettings) *sqlquery.Database {
	if settings.SQLDatabase == "" {
		a.logger.Warnf("no sql_database configured; sql_query is unavailable")
		return nil
	}
	db, err := sqlquery.Open(settings.SQLDatabase)
	if err != nil {
		a.logger.Warnf("failed to open sql database %s: %v", settings.SQLDatabase, err)
		return nil
	}
	a.database = db
	return db
}

// Documents is the retrieval index together with the service that fills it.
type Documents struct {
	Service *rag.Service
	Index   *rag.Index
}

// Close closes the index database.
func (d *Documents) Close() error {
	return d.Index.Close()
}

// OpenDocuments opens the index under the data directory and a service
// loading the configured docs directory into it.
func OpenDocuments(cfg *config.Config, embedder rag.Embedder, tok *tokenizer.Tokenizer, logger *logging.Logger) (*Documents, error) {
	settings := cfg.Capabilities.Snapshot()

	index, err := rag.OpenIndex(cfg.Storage.Path(config.IndexDBFile), embedder)
	if err != nil {
		return nil, fmt.Errorf("failed to open document index: %w", err)
	}
	service, err := rag.NewService(index, settings.DocsDir, settings.DocPatterns,
		rag.WithLogger(logger),
		rag.WithSplitter(rag.NewSplitter(rag.DefaultChunkSize, rag.DefaultChunkOverlap, tok)),
	)
	if err != nil {
		index.Close()
		return nil, err
	}
	return &Documents{Service: service, Index: index}, nil
}

// NewEmbedder returns the embedder selected by the llm section.
func NewEmbedder(ctx context.Context, cfg *config.Config) (rag.Embedder, error) {
	provider, model := cfg.LLM.GetEmbedding()
	switch provider {
	case config.EmbeddingProviderNone:
		return rag.LexicalEmbedder{}, nil
	case config.EmbeddingProviderGenAI:
		if model == config.DefaultEmbeddingModel {
			model = rag.DefaultGenAIEmbeddingModel
		}
		return rag.NewGenAIEmbedder(ctx, cfg.LLM.GetGenAIAPIKey(), model)
	default:
		p, err := config.BuildProvider(cfg.LLM.GetModel(), cfg.LLM)
		if err != nil {
			return nil, fmt.Errorf("embeddings: %w", err)
		}
		return p.Embedder(model), nil
	}
}
