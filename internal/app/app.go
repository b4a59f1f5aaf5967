// Package app assembles the engine's components from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/agenthands/contactsync/internal/config"
	"github.com/agenthands/contactsync/internal/core"
	"github.com/agenthands/contactsync/internal/core/adjudicate"
	"github.com/agenthands/contactsync/internal/core/lifecycle"
	"github.com/agenthands/contactsync/internal/crm"
	"github.com/agenthands/contactsync/internal/llm"
	"github.com/agenthands/contactsync/internal/metrics"
	"github.com/agenthands/contactsync/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

type App struct {
	Config     *config.Config
	Store      store.Store
	Writer     crm.Writer
	Registry   *prometheus.Registry
	Metrics    *metrics.Metrics
	Reconciler *core.Reconciler
	Logger     zerolog.Logger

	closers []io.Closer
}

// New opens the store and builds the reconciler. An unreachable reasoning
// service is not fatal: batches then run on rule-based confidence.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	st, err := store.Open(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Backend, err)
	}

	writer, err := crm.New(ctx, cfg.CRM, logger)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to create crm writer: %w", err)
	}

	registry := prometheus.NewRegistry()
	m, err := metrics.New(registry)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	a := &App{
		Config:   cfg,
		Store:    st,
		Writer:   writer,
		Registry: registry,
		Metrics:  m,
		Logger:   logger,
		closers:  []io.Closer{st},
	}

	var judge adjudicate.ReasoningService
	if cfg.Adjudication.Enabled {
		client, err := llm.NewClient(ctx, cfg.LLM)
		if err != nil {
			logger.Warn().Err(err).Str("provider", cfg.LLM.Provider).Msg("reasoning service unavailable, using rule-based confidence")
		} else {
			if c, ok := client.(io.Closer); ok {
				a.closers = append(a.closers, c)
			}
			judge = adjudicate.NewLLMJudge(client, cfg.Adjudication.Prompt)
		}
	}

	a.Reconciler = core.NewReconciler(cfg, st, writer, judge, m, logger)
	return a, nil
}

func (a *App) Lifecycle() *lifecycle.Manager {
	return a.Reconciler.Lifecycle
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
