// Command switchboard runs a supervisor that routes each user message to
// specialist workers (web research, documents, SQL, memory) and keeps the
// conversation per thread.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/entrhq/switchboard/pkg/app"
	"github.com/entrhq/switchboard/pkg/config"
	"github.com/entrhq/switchboard/pkg/llm/tokenizer"
	"github.com/entrhq/switchboard/pkg/logging"
)

const version = "0.1.0"

// cli holds the global flags and the configuration they resolve to.
type cli struct {
	configPath   string
	debug        bool
	overrides    config.Overrides
	getenv       func(string) string
	newTokenizer func(model string) *tokenizer.Tokenizer

	cfg    *config.Config
	logger *logging.Logger
}

func newCLI() *cli {
	return &cli{getenv: os.Getenv, newTokenizer: tokenizer.New}
}

func newRootCmd(c *cli) *cobra.Command {

	root := &cobra.Command{
		Use:   "switchboard",
		Short: "Route conversations between specialist workers",
		Long: `switchboard routes each message to one of several workers:
a web researcher, a document retriever, an SQL analyst and a memory keeper.
A supervisor picks the worker, workers call their capabilities, and the
conversation is checkpointed per thread.

Run "switchboard chat" to start an interactive session.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&c.configPath, "config", "c", "", "Config file (default ~/.switchboard/config.json)")
	flags.BoolVar(&c.debug, "debug", false, "Enable debug logging")
	flags.StringVar(&c.overrides.Model, "model", "", "Worker model, e.g. openai:gpt-4o or ollama:llama3.2:1b")
	flags.StringVar(&c.overrides.SupervisorModel, "supervisor-model", "", "Supervisor model (defaults to --model)")
	flags.StringVar(&c.overrides.BaseURL, "base-url", "", "OpenAI compatible API base URL")
	flags.StringVar(&c.overrides.APIKey, "api-key", "", "API key (or set OPENAI_API_KEY)")
	flags.StringVar(&c.overrides.DataDir, "data-dir", "", "Directory holding the SQLite databases")
	flags.StringVar(&c.overrides.DocsDir, "docs-dir", "", "Directory of documents to index")
	flags.StringVar(&c.overrides.SQLDatabase, "sql-database", "", "SQLite database queried by the nl2sql worker")
	flags.StringVar(&c.overrides.SearchBackend, "search-backend", "", "Web search backend: tavily or duckduckgo")
	flags.StringVar(&c.overrides.RosterFile, "roster", "", "YAML worker roster (default: built-in roster)")

	root.AddCommand(
		newChatCmd(c),
		newAskCmd(c),
		newMemoryCmd(c),
		newIndexCmd(c),
		newConfigCmd(c),
	)
	return root
}

// load resolves configuration: flags over environment over file over defaults.
func (c *cli) load() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if err := cfg.ApplyEnv(c.getenv); err != nil {
		return err
	}
	if err := cfg.ApplyOverrides(c.overrides); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logging.SetDebug(c.debug)
	logging.SetLogDirectory(cfg.Storage.GetLogDir())
	c.cfg = cfg
	c.logger = logging.MustLogger("cli")
	return nil
}

// modelTokenizer counts tokens for the configured worker model.
func (c *cli) modelTokenizer() *tokenizer.Tokenizer {
	if _, model, err := config.ParseModelSpec(c.cfg.LLM.GetModel()); err == nil {
		return c.newTokenizer(model)
	}
	return tokenizer.Heuristic()
}

// appOptions returns the app options shared by commands that run turns.
func (c *cli) appOptions(extra ...app.Option) []app.Option {
	opts := []app.Option{app.WithLogger(c.logger), app.WithTokenizer(c.modelTokenizer())}
	return append(opts, extra...)
}

func main() {
	if err := newRootCmd(newCLI()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
