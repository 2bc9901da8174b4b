package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jonathan/resume-tailor/internal/ats"
	"github.com/jonathan/resume-tailor/internal/config"
	"github.com/jonathan/resume-tailor/internal/fetch"
	"github.com/jonathan/resume-tailor/internal/generation"
	"github.com/jonathan/resume-tailor/internal/guardrail"
	"github.com/jonathan/resume-tailor/internal/jobprofile"
	"github.com/jonathan/resume-tailor/internal/llm"
	"github.com/jonathan/resume-tailor/internal/observability"
	"github.com/jonathan/resume-tailor/internal/pipeline"
	"github.com/jonathan/resume-tailor/internal/session"
	"github.com/jonathan/resume-tailor/internal/snippets"
	"github.com/jonathan/resume-tailor/internal/store"
)

// app bundles everything a command needs once wiring is done.
type app struct {
	store     store.Store
	lifecycle *session.Lifecycle
	runner    *pipeline.Runner
	client    llm.Client
	logger    *zap.Logger
}

func (a *app) close() {
	if a.client != nil {
		_ = a.client.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

func modelConfig(cfg *config.Config) *llm.Config {
	mc := llm.DefaultConfig()
	if cfg.ModelLite != "" {
		mc = mc.WithModel(llm.TierLite, cfg.ModelLite)
	}
	if cfg.ModelStandard != "" {
		mc = mc.WithModel(llm.TierStandard, cfg.ModelStandard)
	}
	if cfg.ModelAdvanced != "" {
		mc = mc.WithModel(llm.TierAdvanced, cfg.ModelAdvanced)
	}
	return mc
}

// buildApp wires the full pipeline against the given store. The store is
// owned by the returned app and closed with it.
func buildApp(ctx context.Context, cfg *config.Config, st store.Store) (*app, error) {
	logger, err := observability.NewLogger(cfg.JSONLogs, cfg.Verbose)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required (--api-key flag or GEMINI_API_KEY env var)")
	}
	fetcher := fetch.New(nil, logger)
	client, err := llm.NewGeminiClient(ctx, modelConfig(cfg), cfg.APIKey, fetcher)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	lc := session.New(st, logger)
	lc.SetStuckAfter(cfg.StuckAfter())
	lc.SetPendingAfter(cfg.PendingAfter())

	orch := generation.New(client, logger)

	runner := pipeline.New(pipeline.Deps{
		Lifecycle: lc,
		Store:     st,
		Builder:   jobprofile.New(nil, fetcher, logger),
		Selector:  snippets.New(snippets.Config{}, nil, logger),
		Orch:      orch,
		Auditor:   guardrail.New(orch, logger),
		Scorer:    ats.New(nil),
		Logger:    logger,
	})

	return &app{
		store:     st,
		lifecycle: lc,
		runner:    runner,
		client:    client,
		logger:    logger,
	}, nil
}

// connectStore opens the PostgreSQL store named by the config.
func connectStore(ctx context.Context, cfg *config.Config) (*store.PG, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("database URL is required (--db-url flag or DATABASE_URL env var)")
	}
	pg, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return pg, nil
}
