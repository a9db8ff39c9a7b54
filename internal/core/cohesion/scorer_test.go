package cohesion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewilliams-labs/overture/curator/internal/core/domain"
)

func rec(id string, f domain.AudioFeatures) domain.TrackRecommendation {
	return domain.TrackRecommendation{TrackID: id, Name: id, Artists: []string{"a-" + id}, ConfidenceScore: 0.8, AudioFeatures: f, Source: domain.SourceSeedBased}
}

func moodTarget() domain.TargetFeatures {
	return domain.TargetFeatures{Features: map[string]domain.FeatureTarget{
		domain.FeatureEnergy:           domain.Between(0.4, 0.6),
		domain.FeatureValence:          domain.Exact(0.5),
		domain.FeatureTempo:            domain.Between(100, 120),
		domain.FeatureSpeechiness:      domain.Exact(0.05),
		domain.FeatureInstrumentalness: domain.Exact(0.1),
	}}
}

func TestScorer_Score(t *testing.T) {
	s := NewScorer()

	tests := []struct {
		name         string
		tracks       []domain.TrackRecommendation
		target       domain.TargetFeatures
		wantScore    float64
		wantOutliers []string
	}{
		{
			name:         "empty input is neutral half",
			tracks:       nil,
			target:       domain.TargetFeatures{},
			wantScore:    0.5,
			wantOutliers: []string{},
		},
		{
			name: "exact match scores one",
			tracks: []domain.TrackRecommendation{
				rec("t1", domain.AudioFeatures{
					domain.FeatureEnergy: 0.5, domain.FeatureValence: 0.5, domain.FeatureTempo: 110,
					domain.FeatureSpeechiness: 0.05, domain.FeatureInstrumentalness: 0.1,
				}),
			},
			target:       moodTarget(),
			wantScore:    1.0,
			wantOutliers: []string{},
		},
		{
			name:         "tracks without features default to neutral",
			tracks:       []domain.TrackRecommendation{rec("t1", nil), rec("t2", domain.AudioFeatures{"unrelated": 3})},
			target:       moodTarget(),
			wantScore:    NeutralScore,
			wantOutliers: []string{},
		},
		{
			name: "two critical violations make an outlier excluded from the mean",
			tracks: []domain.TrackRecommendation{
				rec("good", domain.AudioFeatures{domain.FeatureEnergy: 0.5, domain.FeatureValence: 0.5}),
				rec("bad", domain.AudioFeatures{domain.FeatureEnergy: 0.95, domain.FeatureValence: 0.0}),
			},
			target:       moodTarget(),
			wantScore:    1.0,
			wantOutliers: []string{"bad"},
		},
		{
			name: "all outliers aggregate to zero",
			tracks: []domain.TrackRecommendation{
				rec("bad", domain.AudioFeatures{domain.FeatureSpeechiness: 0.9, domain.FeatureInstrumentalness: 0.9}),
			},
			target:       moodTarget(),
			wantScore:    0,
			wantOutliers: []string{"bad"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Score(tt.tracks, tt.target, nil)
			assert.InDelta(t, tt.wantScore, got.Score, 1e-9)
			assert.Equal(t, tt.wantOutliers, got.OutlierIDs)
		})
	}
}

func TestScorer_SingleCriticalViolationWithLowScore(t *testing.T) {
	s := NewScorer()
	target := domain.TargetFeatures{Features: map[string]domain.FeatureTarget{
		domain.FeatureEnergy: domain.Exact(0.5),
		domain.FeatureTempo:  domain.Exact(100),
	}}

	// energy violates (critical); tempo far off keeps the average low.
	low := rec("low", domain.AudioFeatures{domain.FeatureEnergy: 0.9, domain.FeatureTempo: 160})
	// energy violates but tempo matches, average stays >= 0.5.
	ok := rec("ok", domain.AudioFeatures{domain.FeatureEnergy: 0.8, domain.FeatureTempo: 100})

	got := s.Score([]domain.TrackRecommendation{low, ok}, target, nil)
	require.Equal(t, []string{"low"}, got.OutlierIDs)
	assert.False(t, got.PerTrack["ok"].Outlier)
	assert.Equal(t, 1, got.PerTrack["ok"].CriticalViolations)
}

func TestScorer_Weights(t *testing.T) {
	s := NewScorer()
	target := domain.TargetFeatures{Features: map[string]domain.FeatureTarget{
		domain.FeatureDanceability: domain.Exact(0.5),
		domain.FeatureAcousticness: domain.Exact(0.5),
	}}
	track := rec("t", domain.AudioFeatures{domain.FeatureDanceability: 0.5, domain.FeatureAcousticness: 0.65})

	unweighted := s.Score([]domain.TrackRecommendation{track}, target, nil)
	weighted := s.Score([]domain.TrackRecommendation{track}, target, map[string]float64{domain.FeatureAcousticness: 3})

	assert.InDelta(t, 0.75, unweighted.Score, 1e-9)
	assert.InDelta(t, (1+0.5*3)/4, weighted.Score, 1e-9)
}

func TestScorer_TrackScoreToleranceScale(t *testing.T) {
	s := NewScorer()
	target := domain.TargetFeatures{Features: map[string]domain.FeatureTarget{domain.FeatureDanceability: domain.Exact(0.5)}}
	f := domain.AudioFeatures{domain.FeatureDanceability: 0.6}

	loose := s.TrackScore(f, target, 1)
	strict := s.TrackScore(f, target, 2)

	assert.InDelta(t, 0.6, loose.Score, 1e-9)
	assert.InDelta(t, 0.2, strict.Score, 1e-9)
	assert.Empty(t, loose.Violations)
}
