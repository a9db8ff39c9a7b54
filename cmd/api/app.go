package main

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ewilliams-labs/overture/curator/internal/adapters/ollama"
	"github.com/ewilliams-labs/overture/curator/internal/adapters/spotify"
	"github.com/ewilliams-labs/overture/curator/internal/adapters/sqlite"
	"github.com/ewilliams-labs/overture/curator/internal/config"
	"github.com/ewilliams-labs/overture/curator/internal/core/ordering"
	"github.com/ewilliams-labs/overture/curator/internal/core/ports"
	"github.com/ewilliams-labs/overture/curator/internal/core/recommend"
	"github.com/ewilliams-labs/overture/curator/internal/core/services"
	"github.com/ewilliams-labs/overture/curator/internal/ratelimit"
	"github.com/ewilliams-labs/overture/curator/internal/worker"
)

// app holds the wired pipeline and everything that needs closing.
type app struct {
	curator *services.Curator
	journal ports.RunJournal
	pool    *worker.Pool
	closers []func() error
}

func newApp(cfg *config.Config, logger zerolog.Logger) (*app, error) {
	// 1. Driven adapters
	gate := ratelimit.NewGate(cfg.Spotify.TopTracksInterval)
	catalog := spotify.NewFromConfig(cfg.SpotifyClient(), gate, logger)

	var advisory ports.AdvisoryService
	if cfg.Advisory.Enabled {
		advisory = ollama.NewClient(cfg.AdvisoryClient(), logger)
		logger.Info().Str("model", cfg.Advisory.Model).Str("host", cfg.Advisory.BaseURL).Msg("advisory enabled")
	} else {
		logger.Info().Msg("advisory disabled, using rule-based fallbacks")
	}

	a := &app{}
	var recorder services.RunRecorder
	if cfg.Storage.Path != "" {
		journal, err := sqlite.NewAdapter(cfg.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize run journal: %w", err)
		}
		a.journal = journal
		a.closers = append(a.closers, journal.Close)

		a.pool = worker.NewPool(journal, cfg.Worker.QueueSize, logger)
		a.pool.Start(cfg.Worker.Workers)
		recorder = a.pool
	}

	// 2. Core
	engine := recommend.NewEngine(catalog, advisory, cfg.RecommendEngine(), logger)
	orchestrator := services.NewOrchestrator(engine, advisory, cfg.OrchestratorLoop(), logger)
	orderer := ordering.NewOrderer(advisory, cfg.Orderer(), logger)
	a.curator = services.NewCurator(orchestrator, orderer, recorder, logger)

	return a, nil
}

// Close drains the journal queue before closing the database.
func (a *app) Close() error {
	if a.pool != nil {
		a.pool.Stop()
	}
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
