package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ewilliams-labs/overture/curator/internal/core/domain"
	"github.com/ewilliams-labs/overture/curator/internal/core/ordering"
)

// ErrEmptyMood rejects a request that gives generation nothing to work from.
var ErrEmptyMood = errors.New("service: mood has no features, keywords, prompt or mentions")

// Sequencer arranges an accepted set; *ordering.Orderer implements it.
type Sequencer interface {
	Order(ctx context.Context, tracks []domain.TrackRecommendation, opts ordering.Options) ordering.Result
}

var _ Sequencer = (*ordering.Orderer)(nil)

// RunRecorder accepts finished runs without blocking; *worker.Pool implements it.
type RunRecorder interface {
	Submit(rec domain.RunRecord) bool
}

// GenerateOptions are the per-request knobs beyond the mood itself.
type GenerateOptions struct {
	Seeds    []string
	Anchors  []domain.Track
	Count    int
	Strategy domain.OrderingStrategy
}

// Curator runs the full pipeline: orchestrate, order, record.
type Curator struct {
	orchestrator *Orchestrator
	orderer      Sequencer
	recorder     RunRecorder
	newID        func() string
	now          func() time.Time
	logger       zerolog.Logger
}

// NewCurator wires the pipeline. recorder may be nil to skip journaling.
func NewCurator(orchestrator *Orchestrator, orderer Sequencer, recorder RunRecorder, logger zerolog.Logger) *Curator {
	return &Curator{
		orchestrator: orchestrator,
		orderer:      orderer,
		recorder:     recorder,
		newID:        func() string { return uuid.New().String() },
		now:          time.Now,
		logger:       logger.With().Str("component", "curator").Logger(),
	}
}

// Curate turns a mood into an ordered playlist.
func (c *Curator) Curate(ctx context.Context, mood domain.MoodTarget, opts GenerateOptions) (*domain.CuratedPlaylist, error) {
	if len(mood.TargetFeatures.Features) == 0 && len(mood.SearchKeywords) == 0 && mood.PromptText == "" && !mood.HasMentions() && len(opts.Anchors) == 0 && len(opts.Seeds) == 0 {
		return nil, ErrEmptyMood
	}

	res, err := c.orchestrator.Run(ctx, OrchestrationRequest{
		Mood:        mood,
		Seeds:       opts.Seeds,
		Anchors:     opts.Anchors,
		TargetCount: opts.Count,
	})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("service: curate cancelled: %w", err)
	}

	ordered := c.orderer.Order(ctx, res.Tracks, ordering.Options{Prompt: mood.PromptText, Strategy: opts.Strategy})

	pl, err := domain.NewCuratedPlaylist(c.newID(), mood.PromptText)
	if err != nil {
		return nil, fmt.Errorf("service: build playlist: %w", err)
	}
	for _, t := range ordered.Tracks {
		if err := pl.AddTrack(t); err != nil {
			c.logger.Warn().Err(err).Str("track_id", t.TrackID).Msg("skipping track")
		}
	}
	pl.Evaluation = res.Evaluation
	pl.Strategy = ordered.Strategy
	pl.Status = res.Status
	pl.Iterations = res.State.IterationCount
	pl.History = res.State.QualityHistory
	pl.Actions = res.State.ImprovementActions

	if c.recorder != nil {
		c.recorder.Submit(pl.Record(c.now()))
	}
	c.logger.Info().
		Str("run_id", pl.RunID).
		Str("status", string(pl.Status)).
		Str("strategy", string(pl.Strategy)).
		Int("tracks", len(pl.Tracks)).
		Msg("playlist curated")
	return pl, nil
}
