// Package ordering arranges an accepted track set into a six-phase energy
// arc: per-track energy analysis, arc strategy selection, phase assignment
// and intra-phase sorting.
package ordering

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ewilliams-labs/overture/curator/internal/core/domain"
	"github.com/ewilliams-labs/overture/curator/internal/core/ports"
	"github.com/ewilliams-labs/overture/curator/internal/metrics"
)

// MinTracks is the smallest set the orderer will rearrange.
const MinTracks = 3

// Config tunes energy analysis fan-out.
type Config struct {
	BatchSize      int
	MaxConcurrency int
}

// DefaultConfig returns the production tuning.
func DefaultConfig() Config {
	return Config{BatchSize: 8, MaxConcurrency: 4}
}

// Options carries per-request context for advisory prompts.
type Options struct {
	Prompt string
	// Strategy forces an arc and skips strategy selection when set.
	Strategy domain.OrderingStrategy
}

// Result is the ordered set plus how it was produced.
type Result struct {
	Tracks     []domain.TrackRecommendation
	Strategy   domain.OrderingStrategy
	Assignment domain.PhaseAssignment
	Skipped    bool
	Degraded   bool
}

// Orderer is the PlaylistOrderer.
type Orderer struct {
	advisory ports.AdvisoryService
	cfg      Config
	logger   zerolog.Logger
}

// NewOrderer wires an orderer. advisory may be nil.
func NewOrderer(advisory ports.AdvisoryService, cfg Config, logger zerolog.Logger) *Orderer {
	d := DefaultConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = d.BatchSize
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = d.MaxConcurrency
	}
	return &Orderer{
		advisory: advisory,
		cfg:      cfg,
		logger:   logger.With().Str("component", "ordering").Logger(),
	}
}

// Order never fails: sets below MinTracks are returned as is, and any
// unrecoverable problem returns the original, unordered set.
func (o *Orderer) Order(ctx context.Context, tracks []domain.TrackRecommendation, opts Options) (res Result) {
	original := make([]domain.TrackRecommendation, len(tracks))
	copy(original, tracks)
	if len(tracks) < MinTracks {
		return Result{Tracks: original, Skipped: true}
	}

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error().Str("panic", fmt.Sprint(r)).Msg("ordering failed, returning original order")
			res = Result{Tracks: original, Degraded: true}
		}
	}()

	analyses := o.analyze(ctx, tracks, opts)

	strategy, advised := opts.Strategy, false
	if _, err := domain.ParseOrderingStrategy(string(strategy)); err != nil {
		strategy, advised = o.selectStrategy(ctx, analyses, opts)
	}
	metrics.RecordOrderingStrategy(string(strategy), advised)

	counts := PhaseCounts(strategy, len(tracks))
	slots := assignPhases(analyses, counts)

	out := make([]domain.TrackRecommendation, 0, len(tracks))
	assignment := make(domain.PhaseAssignment, len(domain.Phases))
	for _, phase := range domain.Phases {
		idx := slots[phase]
		sortPhase(phase, idx, analyses)
		ids := make([]string, 0, len(idx))
		for _, i := range idx {
			t := tracks[i]
			a := analyses[i]
			t.EnergyAnalysis = &a
			out = append(out, t)
			ids = append(ids, t.TrackID)
		}
		assignment[phase] = ids
	}
	if len(out) != len(tracks) {
		panic(fmt.Sprintf("ordering: assigned %d of %d tracks", len(out), len(tracks)))
	}

	o.logger.Debug().
		Str("strategy", string(strategy)).
		Bool("advised", advised).
		Int("tracks", len(out)).
		Msg("playlist ordered")
	return Result{Tracks: out, Strategy: strategy, Assignment: assignment}
}
