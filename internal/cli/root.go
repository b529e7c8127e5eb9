// Package cli implements the eva-memory CLI commands.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roshantac/eva-memory/internal/config"
	"github.com/roshantac/eva-memory/internal/memory"
	"github.com/roshantac/eva-memory/internal/provider"
	"github.com/roshantac/eva-memory/internal/reconcile"
	"github.com/roshantac/eva-memory/internal/store"
	"github.com/roshantac/eva-memory/internal/vecindex"
)

var (
	configFlag  string
	verboseFlag bool
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "eva-memory",
	Short: "Long-term user memory for a personal assistant",
	Long: "Per-user long-term memory: SQLite-backed metadata with full-text search, " +
		"a per-user vector index for semantic retrieval, and LLM-assisted reconciliation.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Config file (default: <data dir>/config.yaml)")
	RootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Debug logging")
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verboseFlag {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// app bundles the opened stores and service for one command invocation.
type app struct {
	cfg      config.Config
	store    *store.Store
	vectors  *vecindex.Manager
	registry *provider.Registry
	svc      *memory.Service
	logger   *slog.Logger
}

func openApp() (*app, error) {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirs(); err != nil {
		return nil, err
	}
	logger := newLogger()

	st, err := store.NewStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	vectors, err := vecindex.NewManager(cfg.VectorDir, vecindex.Metric(cfg.VectorMetric), logger)
	if err != nil {
		st.Close()
		return nil, err
	}

	registry := buildRegistry(cfg, logger)
	embedder, err := registry.Embedder(cfg.Embedding.Provider)
	if err != nil {
		st.Close()
		return nil, err
	}

	opts := memory.Options{
		SemanticWeight: cfg.Hybrid.SemanticWeight,
		TextWeight:     cfg.Hybrid.TextWeight,
	}
	return &app{
		cfg:      cfg,
		store:    st,
		vectors:  vectors,
		registry: registry,
		svc:      memory.New(st, vectors, embedder, opts, logger),
		logger:   logger,
	}, nil
}

func (a *app) Close() {
	a.store.Close()
}

func (a *app) engine() (*reconcile.Engine, error) {
	chat, err := a.registry.Chat(a.cfg.Chat.Provider)
	if err != nil {
		return nil, err
	}
	return reconcile.NewEngine(a.svc, chat, a.logger), nil
}

func buildRegistry(cfg config.Config, logger *slog.Logger) *provider.Registry {
	r := provider.NewRegistry()

	r.RegisterEmbedder("ollama", provider.NewOllamaEmbedder(cfg.Embedding.BaseURL, cfg.Embedding.Model))
	r.RegisterEmbedder("mock", provider.NewMockEmbedder(cfg.Embedding.Dims))

	oa := provider.DefaultOpenAIConfig()
	oa.BaseURL = cfg.Chat.BaseURL
	oa.APIKey = cfg.Chat.APIKey
	if cfg.Chat.Model != "" {
		oa.ChatModel = cfg.Chat.Model
	}
	if cfg.Embedding.Provider == "openai" {
		oa.BaseURL = cfg.Embedding.BaseURL
		if cfg.Embedding.APIKey != "" {
			oa.APIKey = cfg.Embedding.APIKey
		}
		if cfg.Embedding.Model != "" {
			oa.EmbeddingModel = cfg.Embedding.Model
		}
		if cfg.Embedding.Dims > 0 {
			oa.EmbeddingDims = cfg.Embedding.Dims
		}
	}
	openai := provider.NewOpenAIProvider(oa, logger)
	r.RegisterEmbedder("openai", openai)
	r.RegisterChat("openai", openai)

	return r
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
