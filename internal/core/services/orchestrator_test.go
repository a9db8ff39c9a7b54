package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewilliams-labs/overture/curator/internal/core/domain"
	"github.com/ewilliams-labs/overture/curator/internal/core/recommend"
)

func midMood() domain.MoodTarget {
	return domain.MoodTarget{
		PromptText: "easy sunday afternoon",
		TargetFeatures: domain.TargetFeatures{Features: map[string]domain.FeatureTarget{
			domain.FeatureEnergy:  domain.Between(0.4, 0.6),
			domain.FeatureValence: domain.Between(0.4, 0.6),
		}},
		SearchKeywords: []string{"easy", "sunday"},
	}
}

func uniformTracks(prefix string, n int, f domain.AudioFeatures) []domain.TrackRecommendation {
	out := make([]domain.TrackRecommendation, n)
	for i := range out {
		id := fmt.Sprintf("%s-%d", prefix, i)
		out[i] = domain.TrackRecommendation{
			TrackID:         id,
			SpotifyURI:      "spotify:track:" + id,
			Name:            "Song " + id,
			Artists:         []string{"Artist " + id},
			ConfidenceScore: 0.8,
			AudioFeatures:   f.Clone(),
			Source:          domain.SourceArtistDiscovery,
		}
	}
	return out
}

func midFeatures() domain.AudioFeatures {
	return domain.AudioFeatures{domain.FeatureEnergy: 0.5, domain.FeatureValence: 0.5}
}

func badFeatures() domain.AudioFeatures {
	return domain.AudioFeatures{domain.FeatureEnergy: 0.98, domain.FeatureValence: 0.02}
}

func TestOrchestrator_UniformSetAcceptedFirstIteration(t *testing.T) {
	gen := &stubGenerator{}
	o := NewOrchestrator(gen, nil, OrchestratorConfig{}, zerolog.Nop())

	res, err := o.Run(context.Background(), OrchestrationRequest{
		Mood:        midMood(),
		TargetCount: 20,
		Initial:     uniformTracks("u", 20, midFeatures()),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAccepted, res.Status)
	assert.Equal(t, 1, res.State.IterationCount)
	assert.True(t, res.Evaluation.MeetsThreshold)
	assert.InDelta(t, 1.0, res.Evaluation.CohesionScore, 1e-9)
	assert.InDelta(t, 0.4+0.25+0.2*0.8+0.15, res.Evaluation.OverallScore, 1e-9)
	assert.Empty(t, res.State.ImprovementActions)
	assert.Len(t, res.Tracks, 20)
	assert.Equal(t, 0, gen.calls())
}

func TestOrchestrator_NoAdvisoryTerminatesWithBestEffort(t *testing.T) {
	gen := &stubGenerator{features: badFeatures(), size: 20}
	cfg := DefaultOrchestratorConfig()
	o := NewOrchestrator(gen, nil, cfg, zerolog.Nop())

	res, err := o.Run(context.Background(), OrchestrationRequest{Mood: midMood(), TargetCount: 20})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExhausted, res.Status)
	assert.LessOrEqual(t, res.State.IterationCount, cfg.MaxIterations)
	assert.Len(t, res.State.QualityHistory, cfg.MaxIterations)
	assert.NotEmpty(t, res.Tracks)
	assert.Nil(t, res.Evaluation.AdvisoryScore)
	assert.False(t, res.Evaluation.MeetsThreshold)
	assert.Equal(t, res.State.QualityHistory[len(res.State.QualityHistory)-1], res.Evaluation)

	seen := map[string]bool{}
	for _, tr := range res.Tracks {
		assert.False(t, seen[tr.TrackID], "duplicate %s", tr.TrackID)
		seen[tr.TrackID] = true
	}
}

func TestOrchestrator_NoRecommendations(t *testing.T) {
	gen := &stubGenerator{}
	o := NewOrchestrator(gen, nil, OrchestratorConfig{}, zerolog.Nop())

	_, err := o.Run(context.Background(), OrchestrationRequest{Mood: midMood(), TargetCount: 10})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNoRecommendations)
	assert.Greater(t, gen.calls(), 1, "generate_more should have retried")
}

func TestOrchestrator_Cancellation(t *testing.T) {
	t.Run("before first iteration", func(t *testing.T) {
		o := NewOrchestrator(&stubGenerator{}, nil, OrchestratorConfig{}, zerolog.Nop())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := o.Run(ctx, OrchestrationRequest{Mood: midMood(), Initial: uniformTracks("u", 5, midFeatures())})
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("during generation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		gen := &stubGenerator{features: badFeatures(), size: 20, onCall: func(n int) {
			if n == 2 {
				cancel()
			}
		}}
		o := NewOrchestrator(gen, nil, OrchestratorConfig{}, zerolog.Nop())
		res, err := o.Run(ctx, OrchestrationRequest{Mood: midMood(), TargetCount: 20})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, res.Tracks, "partial results are discarded")
	})
}

func TestOrchestrator_FilterAndReplace(t *testing.T) {
	initial := append(uniformTracks("good", 18, midFeatures()), uniformTracks("bad", 2, badFeatures())...)
	gen := &stubGenerator{features: midFeatures(), size: 2}
	o := NewOrchestrator(gen, nil, OrchestratorConfig{}, zerolog.Nop())

	res, err := o.Run(context.Background(), OrchestrationRequest{Mood: midMood(), TargetCount: 20, Initial: initial})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAccepted, res.Status)
	assert.Equal(t, 2, res.State.IterationCount)
	require.Len(t, res.State.ImprovementActions, 1)
	assert.Equal(t, domain.RepairFilterAndReplace, res.State.ImprovementActions[0].Strategy)
	assert.Len(t, res.Tracks, 20)

	req := gen.last()
	assert.Len(t, req.Seeds, 5)
	assert.Contains(t, req.Exclude, "bad-0")
	assert.Contains(t, req.Exclude, "bad-1")
	assert.Equal(t, 20, req.TargetCount)
	for _, tr := range res.Tracks {
		assert.NotContains(t, []string{"bad-0", "bad-1"}, tr.TrackID)
	}
}

func TestOrchestrator_AdjustFeatureWeights(t *testing.T) {
	mood := midMood()
	mood.TargetFeatures = domain.TargetFeatures{Features: map[string]domain.FeatureTarget{
		domain.FeatureDanceability: domain.Exact(0.5),
	}}
	initial := uniformTracks("d", 20, domain.AudioFeatures{domain.FeatureDanceability: 0.6})

	tests := []struct {
		name       string
		ceiling    float64
		wantWeight float64
	}{
		{name: "steps by 0.3", ceiling: 5, wantWeight: 1.6},
		{name: "capped at ceiling", ceiling: 1.4, wantWeight: 1.4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &stubGenerator{}
			o := NewOrchestrator(gen, nil, OrchestratorConfig{WeightCeiling: tt.ceiling}, zerolog.Nop())
			res, err := o.Run(context.Background(), OrchestrationRequest{Mood: mood, TargetCount: 20, Initial: initial})
			require.NoError(t, err)
			assert.Equal(t, domain.StatusExhausted, res.Status)
			assert.InDelta(t, tt.wantWeight, res.Target.FeatureWeight, 1e-9)
			require.Len(t, res.State.ImprovementActions, 2)
			for _, a := range res.State.ImprovementActions {
				assert.Equal(t, domain.RepairAdjustFeatureWeights, a.Strategy)
			}
			assert.Equal(t, 0, gen.calls())
			// the caller's mood is untouched
			assert.Zero(t, mood.TargetFeatures.FeatureWeight)
		})
	}
}

func TestOrchestrator_RepairRules(t *testing.T) {
	o := NewOrchestrator(&stubGenerator{}, nil, OrchestratorConfig{}, zerolog.Nop())

	tests := []struct {
		name    string
		eval    domain.QualityEvaluation
		count   int
		minimum int
		want    []domain.RepairStrategy
	}{
		{
			name:  "outliers on a large set",
			eval:  domain.QualityEvaluation{CohesionScore: 0.9, OutlierTrackIDs: []string{"x"}},
			count: 20, minimum: 16,
			want: []domain.RepairStrategy{domain.RepairFilterAndReplace},
		},
		{
			name:  "outliers on a small set are kept",
			eval:  domain.QualityEvaluation{CohesionScore: 0.9, OutlierTrackIDs: []string{"x"}},
			count: 5, minimum: 4,
			want: []domain.RepairStrategy{domain.RepairAdjustFeatureWeights, domain.RepairGenerateMore},
		},
		{
			name:  "low cohesion",
			eval:  domain.QualityEvaluation{CohesionScore: 0.6},
			count: 20, minimum: 16,
			want: []domain.RepairStrategy{domain.RepairAdjustFeatureWeights},
		},
		{
			name:  "very low cohesion and short",
			eval:  domain.QualityEvaluation{CohesionScore: 0.3},
			count: 8, minimum: 16,
			want: []domain.RepairStrategy{domain.RepairAdjustFeatureWeights, domain.RepairReseedFromClean, domain.RepairGenerateMore},
		},
		{
			name:  "nothing fires",
			eval:  domain.QualityEvaluation{CohesionScore: 0.9},
			count: 20, minimum: 16,
			want: []domain.RepairStrategy{domain.RepairAdjustFeatureWeights, domain.RepairGenerateMore},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, o.RepairRules(tt.eval, tt.count, tt.minimum))
		})
	}
}

func TestValidRepairs(t *testing.T) {
	got := ValidRepairs([]string{"bogus", "generate_more", "generate_more", "reseed_from_clean", "filter_and_replace", "adjust_feature_weights"})
	assert.Equal(t, []domain.RepairStrategy{domain.RepairGenerateMore, domain.RepairReseedFromClean, domain.RepairFilterAndReplace}, got)
	assert.Empty(t, ValidRepairs([]string{"shuffle"}))
}

func TestOrchestrator_AdvisoryBlendAndRepairs(t *testing.T) {
	tests := []struct {
		name        string
		quality     string
		wantOverall float64
		wantStatus  domain.Status
	}{
		{name: "favourable advice", quality: `{"score":0.5}`, wantOverall: 0.7*0.96 + 0.3*0.5, wantStatus: domain.StatusAccepted},
		{name: "percent scale", quality: `{"score":50}`, wantOverall: 0.7*0.96 + 0.3*0.5, wantStatus: domain.StatusAccepted},
		{name: "harsh advice", quality: `{"score":0}`, wantOverall: 0.7 * 0.96, wantStatus: domain.StatusExhausted},
		{name: "out of range ignored", quality: `{"score":-3}`, wantOverall: 0.96, wantStatus: domain.StatusAccepted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adv := &stubAdvisory{answers: map[domain.AdvisoryTask]string{
				domain.TaskQualityAssessment: tt.quality,
				domain.TaskRepairStrategy:    `{"strategies":["bogus","generate_more"]}`,
			}}
			gen := &stubGenerator{features: midFeatures(), size: 5}
			o := NewOrchestrator(gen, adv, OrchestratorConfig{}, zerolog.Nop())

			res, err := o.Run(context.Background(), OrchestrationRequest{
				Mood: midMood(), TargetCount: 20, Initial: uniformTracks("u", 20, midFeatures()),
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, res.Status)
			assert.InDelta(t, tt.wantOverall, res.State.QualityHistory[0].OverallScore, 1e-9)
			for _, a := range res.State.ImprovementActions {
				assert.Equal(t, domain.RepairGenerateMore, a.Strategy)
			}
			if tt.wantStatus == domain.StatusExhausted {
				assert.Len(t, res.State.ImprovementActions, 2)
				assert.Len(t, res.Tracks, 20)
			}
		})
	}
}

func TestOrchestrator_GenerateMoreSkipsAcceptedAnchors(t *testing.T) {
	mood := midMood()
	mood.MentionedArtists = []string{"Nick Drake"}

	anchors := make([]domain.Track, 8)
	for i := range anchors {
		anchors[i] = domain.Track{
			ID:       fmt.Sprintf("anchor-%d", i),
			Name:     fmt.Sprintf("Anchor %d", i),
			Artists:  []string{fmt.Sprintf("Anchor Artist %d", i)},
			Features: midFeatures(),
		}
	}
	nick := domain.Artist{ID: "nick", Name: "Nick Drake"}
	for i := 0; i < 5; i++ {
		nick.Tracks = append(nick.Tracks, domain.Track{
			ID: fmt.Sprintf("nick-%d", i), Name: fmt.Sprintf("Nick Song %d", i),
			Artists: []string{"Nick Drake"}, Features: midFeatures(),
		})
	}
	var moodArtists []domain.Artist
	for i := 0; i < 10; i++ {
		a := domain.Artist{ID: fmt.Sprintf("mood-%d", i), Name: fmt.Sprintf("Mood Artist %d", i)}
		for j := 0; j < 3; j++ {
			a.Tracks = append(a.Tracks, domain.Track{
				ID: fmt.Sprintf("mood-%d-%d", i, j), Name: fmt.Sprintf("Mood Song %d-%d", i, j),
				Artists: []string{a.Name}, Features: midFeatures(),
			})
		}
		moodArtists = append(moodArtists, a)
	}

	cat := &fakeCatalog{
		artists: func(string) []domain.Artist { return []domain.Artist{nick} },
		byMood: func(call int) ([]domain.Artist, error) {
			if call == 1 {
				return nil, errors.New("search unavailable")
			}
			return moodArtists, nil
		},
	}
	engine := recommend.NewEngine(cat, nil, recommend.Config{}, zerolog.Nop())
	o := NewOrchestrator(engine, nil, OrchestratorConfig{}, zerolog.Nop())

	res, err := o.Run(context.Background(), OrchestrationRequest{Mood: mood, Anchors: anchors, TargetCount: 20})
	require.NoError(t, err)

	require.NotEmpty(t, res.State.ImprovementActions)
	first := res.State.ImprovementActions[0]
	assert.Equal(t, domain.RepairGenerateMore, first.Strategy)
	assert.Equal(t, 13, first.Before)
	assert.Equal(t, 17, first.After)
	assert.Equal(t, "requested 5, added 4", first.Detail)

	assert.Equal(t, domain.StatusAccepted, res.Status)
	assert.GreaterOrEqual(t, len(res.Tracks), o.Minimum(20))
	ids := domain.TrackIDs(res.Tracks)
	for _, a := range anchors {
		assert.Contains(t, ids, a.ID)
	}
}

func TestOrchestrator_ReseedFromClean(t *testing.T) {
	mk := func(id string, conf float64, f domain.AudioFeatures) domain.TrackRecommendation {
		return domain.TrackRecommendation{
			TrackID: id, SpotifyURI: "spotify:track:" + id, Name: "Song " + id,
			Artists: []string{"Artist " + id}, ConfidenceScore: conf, AudioFeatures: f,
			Source: domain.SourceArtistDiscovery,
		}
	}
	// Confidence alone would pick the b tracks; the blend with cohesion
	// prefers the featureless c0 (neutral 0.7) and the fitting a tracks.
	initial := []domain.TrackRecommendation{mk("c0", 1.0, nil)}
	for i := 0; i < 5; i++ {
		initial = append(initial,
			mk(fmt.Sprintf("b%d", i), 0.9, domain.AudioFeatures{domain.FeatureEnergy: 0.75, domain.FeatureValence: 0.5}),
			mk(fmt.Sprintf("a%d", i), 0.6, midFeatures()),
		)
	}

	adv := &stubAdvisory{answers: map[domain.AdvisoryTask]string{
		domain.TaskRepairStrategy: `{"strategies":["reseed_from_clean"]}`,
	}}
	gen := &stubGenerator{features: midFeatures(), size: 20}
	o := NewOrchestrator(gen, adv, OrchestratorConfig{}, zerolog.Nop())

	res, err := o.Run(context.Background(), OrchestrationRequest{Mood: midMood(), TargetCount: 11, Initial: initial})
	require.NoError(t, err)

	require.Less(t, res.State.QualityHistory[0].CohesionScore, 0.75)
	assert.Equal(t, domain.StatusAccepted, res.Status)
	assert.Equal(t, 2, res.State.IterationCount)

	clean := []string{"c0", "a0", "a1", "a2", "a3"}
	require.Equal(t, 1, gen.calls())
	req := gen.last()
	assert.Equal(t, clean, req.Seeds)
	assert.Equal(t, 11, req.TargetCount)
	for _, id := range clean {
		assert.Contains(t, req.Exclude, id)
	}

	require.Len(t, res.State.ImprovementActions, 1)
	action := res.State.ImprovementActions[0]
	assert.Equal(t, domain.RepairReseedFromClean, action.Strategy)
	assert.Equal(t, 11, action.Before)
	assert.Equal(t, 11, action.After)
	assert.Equal(t, "reseeded from 5 clean tracks, added 6", action.Detail)

	ids := domain.TrackIDs(res.Tracks)
	require.Len(t, ids, 11)
	assert.Equal(t, clean, ids[:5])
	for _, dropped := range []string{"a4", "b0", "b1", "b2", "b3", "b4"} {
		assert.NotContains(t, ids, dropped)
	}
}

// --- Mocks ---

type stubGenerator struct {
	features domain.AudioFeatures
	size     int
	onCall   func(n int)

	mu   sync.Mutex
	n    int
	reqs []recommend.Request
}

func (g *stubGenerator) Generate(ctx context.Context, req recommend.Request) ([]domain.TrackRecommendation, error) {
	g.mu.Lock()
	g.n++
	n := g.n
	g.reqs = append(g.reqs, req)
	g.mu.Unlock()

	if g.onCall != nil {
		g.onCall(n)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	size := g.size
	if size > req.TargetCount {
		size = req.TargetCount
	}
	if g.features == nil || size == 0 {
		return nil, nil
	}
	return uniformTracks(fmt.Sprintf("gen%d", n), size, g.features), nil
}

func (g *stubGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.n
}

func (g *stubGenerator) last() recommend.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.reqs[len(g.reqs)-1]
}

type stubAdvisory struct {
	answers map[domain.AdvisoryTask]string
	err     error
}

func (a *stubAdvisory) Ask(ctx context.Context, p domain.AdvisoryPrompt) (json.RawMessage, error) {
	if a.err != nil {
		return nil, a.err
	}
	ans, ok := a.answers[p.Task]
	if !ok {
		return nil, errors.New("no answer for " + string(p.Task))
	}
	return json.RawMessage(ans), nil
}

type fakeCatalog struct {
	artists func(query string) []domain.Artist
	byMood  func(call int) ([]domain.Artist, error)

	mu        sync.Mutex
	moodCalls int
}

func (c *fakeCatalog) SearchArtists(ctx context.Context, query string, limit int) ([]domain.Artist, error) {
	if c.artists == nil {
		return nil, nil
	}
	return c.artists(query), nil
}

func (c *fakeCatalog) SearchTracksForArtists(ctx context.Context, query string, limit int) ([]domain.Artist, error) {
	return nil, nil
}

func (c *fakeCatalog) SearchArtistsByMood(ctx context.Context, keywords []string, limit int) ([]domain.Artist, error) {
	c.mu.Lock()
	c.moodCalls++
	call := c.moodCalls
	c.mu.Unlock()
	if c.byMood == nil {
		return nil, nil
	}
	return c.byMood(call)
}

func (c *fakeCatalog) GetArtistTopTracks(ctx context.Context, artistID string) ([]domain.Track, error) {
	return nil, nil
}

func (c *fakeCatalog) GetRecommendations(ctx context.Context, seeds []string, size int, hints map[string]float64) ([]domain.Track, error) {
	return nil, nil
}
