// Package cmd implements the recall command-line interface.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/marrowlab/recall/internal/assistant"
	"github.com/marrowlab/recall/internal/config"
	"github.com/marrowlab/recall/internal/embedding"
	"github.com/marrowlab/recall/internal/entity"
	"github.com/marrowlab/recall/internal/llm"
	"github.com/marrowlab/recall/internal/search"
	"github.com/marrowlab/recall/internal/store"
)

var (
	configPath string
	verbose    bool
)

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recall",
		Short: "A personal assistant with persistent, searchable memory",
		Long: `recall is a chat assistant that remembers. Conversation turns and
ingested documents live in a local SQLite store, indexed for hybrid
semantic and keyword retrieval.

Examples:
  recall chat                       # interactive chat
  recall ingest notes.txt           # add a document to memory
  recall search "trip to Lisbon"    # query memory directly
  recall stats                      # show what is stored`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				slog.SetLogLoggerLevel(slog.LevelDebug)
			} else {
				slog.SetLogLoggerLevel(slog.LevelWarn)
			}
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.recall/config.yaml)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(chatCmd())
	cmd.AddCommand(ingestCmd())
	cmd.AddCommand(searchCmd())
	cmd.AddCommand(statsCmd())
	cmd.AddCommand(resetCmd())
	cmd.AddCommand(configCmd())

	return cmd
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultPath()
}

func loadConfig() *config.Config {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// runtime bundles the wired components behind each command.
type runtime struct {
	cfg       *config.Config
	store     *store.Store
	embedder  embedding.Provider
	extractor entity.Extractor
	engine    *search.Engine
	gen       llm.Generator
}

func buildRuntime() *runtime {
	cfg := loadConfig()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening memory store: %v\n", err)
		os.Exit(1)
	}

	var primary embedding.Provider
	if cfg.Embedding.Endpoint != "" {
		primary = embedding.NewClient(cfg.Embedding.Endpoint, cfg.Embedding.Model, cfg.Embedding.APIKey)
	}
	tiered := embedding.NewTiered(primary)
	embedder, err := embedding.NewCached(tiered, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building embedder: %v\n", err)
		os.Exit(1)
	}

	extractor := entity.HeuristicExtractor{}
	engine := search.NewEngine(st, embedder, extractor)
	gen := llm.NewClient(cfg.LLM.Endpoint, cfg.LLM.Model, cfg.LLM.APIKey, cfg.LLM.RequestsPerMinute)

	return &runtime{
		cfg:       cfg,
		store:     st,
		embedder:  embedder,
		extractor: extractor,
		engine:    engine,
		gen:       gen,
	}
}

func (r *runtime) assistant() *assistant.Assistant {
	return assistant.New(r.store, r.engine, r.embedder, r.extractor, r.gen, r.cfg)
}

func (r *runtime) close() {
	if err := r.store.Close(); err != nil {
		slog.Warn("closing store", "error", err)
	}
}
