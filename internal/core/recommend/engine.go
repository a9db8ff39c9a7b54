// Package recommend generates mood-matched track recommendations by running
// several catalog strategies concurrently and merging their output under
// source-ratio caps.
package recommend

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ewilliams-labs/overture/curator/internal/core/cohesion"
	"github.com/ewilliams-labs/overture/curator/internal/core/diversity"
	"github.com/ewilliams-labs/overture/curator/internal/core/domain"
	"github.com/ewilliams-labs/overture/curator/internal/core/ports"
	"github.com/ewilliams-labs/overture/curator/internal/metrics"
)

// Config tunes candidate gathering and the merge pipeline.
type Config struct {
	// MaxArtists bounds how many artists discovery expands into top tracks.
	MaxArtists int
	// TracksPerArtist is how many top tracks discovery keeps per artist.
	TracksPerArtist int
	// MentionedArtistTracks is how many top tracks a user-mentioned artist contributes.
	MentionedArtistTracks int
	// MaxUnmentionedAnchors caps anchors that were not named track by track.
	MaxUnmentionedAnchors int
	// ArtistCapRatio is the share of the remaining slots discovery may fill.
	ArtistCapRatio float64
	// MinConfidence drops ranked candidates below this confidence.
	MinConfidence float64
	// MinMoodMatch drops unprotected candidates whose feature match is lower.
	MinMoodMatch float64
	// DiversityPenalty is the per-repeat artist penalty.
	DiversityPenalty float64
}

// DefaultConfig returns the production tuning.
func DefaultConfig() Config {
	return Config{
		MaxArtists:            12,
		TracksPerArtist:       3,
		MentionedArtistTracks: 5,
		MaxUnmentionedAnchors: 5,
		ArtistCapRatio:        0.98,
		MinConfidence:         0.2,
		MinMoodMatch:          0.35,
		DiversityPenalty:      diversity.DefaultPenalty,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxArtists <= 0 {
		c.MaxArtists = d.MaxArtists
	}
	if c.TracksPerArtist <= 0 {
		c.TracksPerArtist = d.TracksPerArtist
	}
	if c.MentionedArtistTracks <= 0 {
		c.MentionedArtistTracks = d.MentionedArtistTracks
	}
	if c.MaxUnmentionedAnchors <= 0 {
		c.MaxUnmentionedAnchors = d.MaxUnmentionedAnchors
	}
	if c.ArtistCapRatio <= 0 || c.ArtistCapRatio > 1 {
		c.ArtistCapRatio = d.ArtistCapRatio
	}
	if c.MinConfidence <= 0 {
		c.MinConfidence = d.MinConfidence
	}
	if c.MinMoodMatch <= 0 {
		c.MinMoodMatch = d.MinMoodMatch
	}
	if c.DiversityPenalty <= 0 {
		c.DiversityPenalty = d.DiversityPenalty
	}
	return c
}

// Request describes one generation call.
type Request struct {
	Target       domain.TargetFeatures
	Seeds        []string       // seed track ids
	Anchors      []domain.Track // tracks the user named explicitly
	UserMentions []string       // artist names the user named explicitly
	TargetCount  int
	Keywords     []string
	Prompt       string
	// Exclude lists track ids that must not be returned (e.g. removed outliers).
	Exclude map[string]struct{}
}

// HasMentions reports whether the user named any track or artist.
func (r Request) HasMentions() bool {
	return len(r.Anchors) > 0 || len(r.UserMentions) > 0
}

func (r Request) hasExplicitInput() bool {
	return r.HasMentions() || len(r.Seeds) > 0
}

// Plan is the up-front slot budget per source.
type Plan struct {
	Anchor int
	Artist int
	Seed   int
}

// PlanShares splits count across sources: 40/55 with a seed overflow when the
// user mentioned something, otherwise 90 for discovery and the rest overflow.
func PlanShares(count int, hasMentions bool) Plan {
	if count <= 0 {
		return Plan{}
	}
	var p Plan
	if hasMentions {
		p.Anchor = int(math.Round(0.40 * float64(count)))
		p.Artist = int(math.Round(0.55 * float64(count)))
	} else {
		p.Artist = int(math.Round(0.90 * float64(count)))
	}
	p.Seed = count - p.Anchor - p.Artist
	if p.Seed < 1 {
		p.Seed = 1
	}
	return p
}

// Engine is the RecommendationEngine.
type Engine struct {
	catalog   ports.TrackCatalogClient
	advisory  ports.AdvisoryService
	scorer    *cohesion.Scorer
	diversity *diversity.Manager
	cfg       Config
	logger    zerolog.Logger
}

// NewEngine wires an engine. advisory may be nil.
func NewEngine(catalog ports.TrackCatalogClient, advisory ports.AdvisoryService, cfg Config, logger zerolog.Logger) *Engine {
	cfg = cfg.withDefaults()
	return &Engine{
		catalog:   catalog,
		advisory:  advisory,
		scorer:    cohesion.NewScorer(),
		diversity: diversity.NewManager(cfg.DiversityPenalty),
		cfg:       cfg,
		logger:    logger.With().Str("component", "recommend").Logger(),
	}
}

// strategyResult holds one strategy's output; err never aborts siblings.
type strategyResult struct {
	name   string
	tracks []domain.TrackRecommendation
	err    error
}

type strategyFunc func(ctx context.Context, req Request, plan Plan) ([]domain.TrackRecommendation, error)

// Generate runs the strategies and the merge pipeline. It returns an empty
// slice, not an error, when nothing could be found; only ctx cancellation is
// reported as an error.
func (e *Engine) Generate(ctx context.Context, req Request) ([]domain.TrackRecommendation, error) {
	if req.TargetCount <= 0 {
		return []domain.TrackRecommendation{}, nil
	}
	plan := PlanShares(req.TargetCount, req.HasMentions())

	results := e.runStrategies(ctx, req, plan, []namedStrategy{
		{name: string(domain.SourceUserAnchor), fn: e.anchorStrategy},
		{name: string(domain.SourceArtistDiscovery), fn: e.discoveryStrategy},
		{name: string(domain.SourceSeedBased), fn: e.seedStrategy},
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var candidates []domain.TrackRecommendation
	discovered := 0
	for _, r := range results {
		if r.err != nil {
			metrics.RecordStrategyFailure(r.name)
			e.logger.Warn().Err(r.err).Str("strategy", r.name).Msg("strategy failed, continuing without it")
		}
		if r.name == string(domain.SourceArtistDiscovery) {
			discovered = len(r.tracks)
		}
		candidates = append(candidates, r.tracks...)
	}

	if !req.hasExplicitInput() || discovered == 0 {
		fb, err := e.fallbackStrategy(ctx, req, plan)
		if err != nil {
			metrics.RecordStrategyFailure(string(domain.SourceFallback))
			e.logger.Warn().Err(err).Msg("fallback search failed")
		}
		candidates = append(candidates, fb...)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	merged := e.Merge(candidates, req)
	e.logger.Debug().
		Int("candidates", len(candidates)).
		Int("merged", len(merged)).
		Int("target", req.TargetCount).
		Msg("generation complete")
	return merged, nil
}

type namedStrategy struct {
	name string
	fn   strategyFunc
}

// runStrategies runs every strategy in its own goroutine and joins them with
// per-slot results, so one failure or panic never cancels the others.
func (e *Engine) runStrategies(ctx context.Context, req Request, plan Plan, strategies []namedStrategy) []strategyResult {
	results := make([]strategyResult, len(strategies))
	var wg sync.WaitGroup

	for i, s := range strategies {
		wg.Add(1)
		go func(idx int, s namedStrategy) {
			defer wg.Done()
			res := strategyResult{name: s.name}
			defer func() {
				if r := recover(); r != nil {
					res.tracks = nil
					res.err = panicError{value: r}
				}
				results[idx] = res
			}()
			res.tracks, res.err = s.fn(ctx, req, plan)
		}(i, s)
	}

	wg.Wait()
	return results
}

type panicError struct{ value any }

func (p panicError) Error() string {
	return fmt.Sprintf("recommend: strategy panicked: %v", p.value)
}

// match scores a feature map against the target at the current strictness.
func (e *Engine) match(f domain.AudioFeatures, target domain.TargetFeatures) cohesion.TrackResult {
	return e.scorer.TrackScore(f, target, target.Weight())
}
