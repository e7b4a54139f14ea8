package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lexlanka/gavel/pkg/agent"
	"github.com/lexlanka/gavel/pkg/auth"
	"github.com/lexlanka/gavel/pkg/config"
	"github.com/lexlanka/gavel/pkg/embedders"
	"github.com/lexlanka/gavel/pkg/faults"
	"github.com/lexlanka/gavel/pkg/indexstore"
	"github.com/lexlanka/gavel/pkg/llms"
	"github.com/lexlanka/gavel/pkg/observability"
	"github.com/lexlanka/gavel/pkg/qa"
	"github.com/lexlanka/gavel/pkg/retrievers"
	"github.com/lexlanka/gavel/pkg/server"
	"github.com/lexlanka/gavel/pkg/sessions"
	"github.com/lexlanka/gavel/pkg/translators"
)

// ServeCmd starts the HTTP server.
type ServeCmd struct {
	DataDir string `help:"Data volume root (overrides config and DATA_DIR)." type:"path"`
	Port    int    `help:"Listen port (overrides config)."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutting down")
		cancel()
	}()

	cfg, err := loadConfig(cli.Config)
	if err != nil {
		return err
	}
	if c.DataDir != "" {
		cfg.Data.Dir = c.DataDir
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}

	obs := observability.NewManager(cfg.Observability)
	if err := obs.Initialize(ctx); err != nil {
		return fmt.Errorf("initializing observability: %w", err)
	}
	defer func() {
		if err := obs.Shutdown(context.Background()); err != nil {
			slog.Warn("observability shutdown failed", "error", err)
		}
	}()

	svc, cleanup, err := buildServices(ctx, cfg, obs)
	if err != nil {
		return err
	}
	defer cleanup()

	return server.New(cfg, svc).Start(ctx)
}

// buildServices wires the pipeline. Only a missing provider key stops
// startup; missing model files or indexes start the service degraded.
func buildServices(ctx context.Context, cfg *config.Config, obs *observability.Manager) (server.Services, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	embedder, err := embedders.NewFastEmbed(&cfg.Embedder, cfg.Data.ModelsDir())
	var provider embedders.Provider
	if err != nil {
		slog.Warn("embedder unavailable, dense retrieval disabled", "error", err)
	} else {
		provider = embedder
		closers = append(closers, func() { _ = embedder.Close() })
	}

	store := indexstore.New(cfg.Data.IndicesDir(), provider)
	if _, err := store.Initialize(ctx, false); err != nil {
		slog.Warn("index load failed, starting without collections", "error", err)
	}
	closers = append(closers, store.Clear)

	if cfg.Data.Watch {
		watcher, err := indexstore.Watch(ctx, store)
		if err != nil {
			slog.Warn("index watcher failed to start", "error", err)
		} else {
			closers = append(closers, func() { _ = watcher.Close() })
		}
	}

	llm, err := llms.NewProviderFromConfig(&cfg.LLM)
	if err != nil {
		cleanup()
		if faults.IsKind(err, faults.ConfigMissing) {
			return server.Services{}, nil, fmt.Errorf("llm provider credentials missing: %w", err)
		}
		return server.Services{}, nil, fmt.Errorf("initializing llm provider: %w", err)
	}
	closers = append(closers, func() { _ = llm.Close() })

	translator := translators.NewM2M(&cfg.Translator, cfg.Data.ModelsDir())

	archive, err := sessions.NewSQLArchive(&cfg.Sessions.Archive)
	if err != nil {
		slog.Warn("history archive unavailable", "error", err)
		archive = nil
	}
	if archive != nil {
		closers = append(closers, func() { _ = archive.Close() })
	}

	validator, err := auth.NewValidator(ctx, &cfg.Auth)
	if err != nil {
		cleanup()
		return server.Services{}, nil, fmt.Errorf("initializing auth: %w", err)
	}

	retriever := retrievers.New(store, provider, cfg.Retriever.TopK)
	graph := agent.NewGraph(translator, retriever, llm)
	runner := agent.NewRunner(graph, sessions.NewMemoryStore())

	return server.Services{
		QA:            qa.New(runner, archive, provider, ""),
		Summarizer:    agent.NewSummarizer(store, llm),
		Recommender:   agent.NewRecommender(retriever, llm, ""),
		Retriever:     retriever,
		Store:         store,
		Archive:       archive,
		Embedder:      provider,
		Validator:     validator,
		Observability: obs,
	}, cleanup, nil
}
