package services

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/ewilliams-labs/overture/curator/internal/core/cohesion"
	"github.com/ewilliams-labs/overture/curator/internal/core/domain"
	"github.com/ewilliams-labs/overture/curator/internal/core/ports"
	"github.com/ewilliams-labs/overture/curator/internal/core/recommend"
	"github.com/ewilliams-labs/overture/curator/internal/metrics"
)

// Generator produces candidate sets; *recommend.Engine implements it.
type Generator interface {
	Generate(ctx context.Context, req recommend.Request) ([]domain.TrackRecommendation, error)
}

var _ Generator = (*recommend.Engine)(nil)

// OrchestratorConfig holds the quality thresholds and repair tuning.
type OrchestratorConfig struct {
	MaxIterations     int
	CohesionThreshold float64
	OverallThreshold  float64
	// ReseedFloor is the cohesion below which reseeding from the clean core is considered.
	ReseedFloor      float64
	ReseedKeep       int
	WeightStep       float64
	WeightCeiling    float64
	GenerateMoreMin  int
	MinCoverageRatio float64
	DefaultCount     int
	// AdvisoryBlend is the advisory share of the overall score.
	AdvisoryBlend float64
}

// DefaultOrchestratorConfig returns the production tuning.
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		MaxIterations:     3,
		CohesionThreshold: 0.75,
		OverallThreshold:  0.75,
		ReseedFloor:       0.5,
		ReseedKeep:        5,
		WeightStep:        0.3,
		WeightCeiling:     5.0,
		GenerateMoreMin:   5,
		MinCoverageRatio:  0.8,
		DefaultCount:      20,
		AdvisoryBlend:     0.3,
	}
}

func (c OrchestratorConfig) withDefaults() OrchestratorConfig {
	d := DefaultOrchestratorConfig()
	if c.MaxIterations <= 0 {
		c.MaxIterations = d.MaxIterations
	}
	if c.CohesionThreshold <= 0 {
		c.CohesionThreshold = d.CohesionThreshold
	}
	if c.OverallThreshold <= 0 {
		c.OverallThreshold = d.OverallThreshold
	}
	if c.ReseedFloor <= 0 {
		c.ReseedFloor = d.ReseedFloor
	}
	if c.ReseedKeep <= 0 {
		c.ReseedKeep = d.ReseedKeep
	}
	if c.WeightStep <= 0 {
		c.WeightStep = d.WeightStep
	}
	if c.WeightCeiling < domain.DefaultFeatureWeight {
		c.WeightCeiling = d.WeightCeiling
	}
	if c.GenerateMoreMin <= 0 {
		c.GenerateMoreMin = d.GenerateMoreMin
	}
	if c.MinCoverageRatio <= 0 || c.MinCoverageRatio > 1 {
		c.MinCoverageRatio = d.MinCoverageRatio
	}
	if c.DefaultCount <= 0 {
		c.DefaultCount = d.DefaultCount
	}
	if c.AdvisoryBlend < 0 || c.AdvisoryBlend > 1 {
		c.AdvisoryBlend = d.AdvisoryBlend
	}
	return c
}

// OrchestrationRequest is one playlist request entering the quality loop.
type OrchestrationRequest struct {
	Mood        domain.MoodTarget
	Seeds       []string
	Anchors     []domain.Track
	TargetCount int
	// Initial, when set, is evaluated first instead of generating a fresh set.
	Initial []domain.TrackRecommendation
}

// OrchestrationResult is the accepted set and how it was reached.
type OrchestrationResult struct {
	Tracks     []domain.TrackRecommendation
	Evaluation domain.QualityEvaluation
	Status     domain.Status
	State      domain.OrchestrationState
	Target     domain.TargetFeatures
}

// Orchestrator drives generation, scores the result and repairs it until the
// quality thresholds hold or the iteration budget runs out.
type Orchestrator struct {
	engine   Generator
	advisory ports.AdvisoryService
	scorer   *cohesion.Scorer
	cfg      OrchestratorConfig
	logger   zerolog.Logger
}

// NewOrchestrator constructs an Orchestrator. advisory may be nil.
func NewOrchestrator(engine Generator, advisory ports.AdvisoryService, cfg OrchestratorConfig, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		engine:   engine,
		advisory: advisory,
		scorer:   cohesion.NewScorer(),
		cfg:      cfg.withDefaults(),
		logger:   logger.With().Str("component", "orchestrator").Logger(),
	}
}

// run is the mutable state of one Run call.
type run struct {
	req     OrchestrationRequest
	count   int
	minimum int
	target  domain.TargetFeatures
	seeds   []string
	exclude map[string]struct{}
	tracks  []domain.TrackRecommendation
	state   domain.OrchestrationState
}

// Run executes the quality loop. It fails only when ctx ends (partial
// results are discarded) or when no recommendation survived at all.
func (o *Orchestrator) Run(ctx context.Context, req OrchestrationRequest) (OrchestrationResult, error) {
	count := req.TargetCount
	if count <= 0 {
		count = o.cfg.DefaultCount
	}
	r := &run{
		req:     req,
		count:   count,
		minimum: o.Minimum(count),
		target:  req.Mood.TargetFeatures.Clone(),
		seeds:   append([]string(nil), req.Seeds...),
		exclude: make(map[string]struct{}),
		tracks:  dedupByID(req.Initial),
	}
	if r.target.FeatureWeight < domain.DefaultFeatureWeight {
		r.target.FeatureWeight = domain.DefaultFeatureWeight
	}
	log := o.logger.With().Str("prompt", req.Mood.PromptText).Int("target_count", count).Logger()

	if len(r.tracks) == 0 {
		gen, err := o.generate(ctx, r, count, nil)
		if err != nil {
			return o.abort(err)
		}
		r.tracks = gen
	}

	status := domain.StatusExhausted
	for iter := 1; iter <= o.cfg.MaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return o.abort(err)
		}
		r.state.IterationCount = iter

		eval, scored := o.Evaluate(ctx, r.tracks, r.target, r.minimum, iter)
		r.state.QualityHistory = append(r.state.QualityHistory, eval)
		log.Info().
			Int("iteration", iter).
			Int("tracks", eval.TrackCount).
			Float64("overall", eval.OverallScore).
			Float64("cohesion", eval.CohesionScore).
			Int("outliers", len(eval.OutlierTrackIDs)).
			Bool("meets_threshold", eval.MeetsThreshold).
			Msg("evaluated candidate set")

		if eval.MeetsThreshold {
			status = domain.StatusAccepted
			break
		}
		if iter == o.cfg.MaxIterations {
			break
		}

		for _, s := range o.chooseRepairs(ctx, eval, len(r.tracks), r.minimum) {
			if err := o.applyRepair(ctx, r, s, eval, scored, iter); err != nil {
				return o.abort(err)
			}
		}
	}

	r.tracks = dedupByID(r.tracks)
	if len(r.tracks) == 0 {
		metrics.RecordOrchestration("failed", r.state.IterationCount)
		return OrchestrationResult{}, fmt.Errorf("service: orchestrate %q: %w", req.Mood.PromptText, domain.ErrNoRecommendations)
	}
	r.state.Accepted = r.tracks

	final, _ := r.state.Latest()
	if status == domain.StatusExhausted {
		log.Warn().
			Int("iterations", r.state.IterationCount).
			Float64("overall", final.OverallScore).
			Strs("issues", final.Issues).
			Msg("iteration budget exhausted, accepting best effort set")
	}
	metrics.RecordOrchestration(string(status), r.state.IterationCount)

	return OrchestrationResult{
		Tracks:     r.tracks,
		Evaluation: final,
		Status:     status,
		State:      r.state,
		Target:     r.target,
	}, nil
}

func (o *Orchestrator) abort(err error) (OrchestrationResult, error) {
	metrics.RecordOrchestration("cancelled", 0)
	return OrchestrationResult{}, fmt.Errorf("service: orchestration aborted: %w", err)
}

// Minimum is the smallest acceptable set for a target count.
func (o *Orchestrator) Minimum(count int) int {
	m := int(math.Ceil(float64(count) * o.cfg.MinCoverageRatio))
	if m < 1 {
		m = 1
	}
	return m
}

// generate asks the engine for count tracks that are neither excluded nor
// already in keep, so a repair always receives candidates it can add.
func (o *Orchestrator) generate(ctx context.Context, r *run, count int, keep []domain.TrackRecommendation) ([]domain.TrackRecommendation, error) {
	exclude := r.exclude
	if len(keep) > 0 {
		exclude = make(map[string]struct{}, len(r.exclude)+len(keep))
		for id := range r.exclude {
			exclude[id] = struct{}{}
		}
		for _, t := range keep {
			exclude[t.TrackID] = struct{}{}
		}
	}
	gen, err := o.engine.Generate(ctx, recommend.Request{
		Target:       r.target,
		Seeds:        r.seeds,
		Anchors:      r.req.Anchors,
		UserMentions: r.req.Mood.MentionedArtists,
		TargetCount:  count,
		Keywords:     r.req.Mood.SearchKeywords,
		Prompt:       r.req.Mood.PromptText,
		Exclude:      exclude,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		o.logger.Warn().Err(err).Msg("generation failed, continuing with current set")
		return nil, nil
	}
	return gen, nil
}

func dedupByID(tracks []domain.TrackRecommendation) []domain.TrackRecommendation {
	seen := make(map[string]struct{}, len(tracks))
	out := make([]domain.TrackRecommendation, 0, len(tracks))
	for _, t := range tracks {
		if _, dup := seen[t.TrackID]; dup {
			continue
		}
		seen[t.TrackID] = struct{}{}
		out = append(out, t)
	}
	return out
}

func sortByConfidence(tracks []domain.TrackRecommendation) {
	sort.SliceStable(tracks, func(i, j int) bool { return tracks[i].ConfidenceScore > tracks[j].ConfidenceScore })
}
