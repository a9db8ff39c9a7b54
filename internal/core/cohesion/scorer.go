// Package cohesion scores how closely a set of tracks matches the mood's
// target audio features and flags tracks that deviate badly.
package cohesion

import (
	"math"
	"sort"

	"github.com/ewilliams-labs/overture/curator/internal/core/domain"
)

const (
	// NeutralScore is used for tracks without comparable features.
	NeutralScore = 0.7
	// EmptyScore is the aggregate reported for an empty input.
	EmptyScore = 0.5
	// outlierScoreFloor pairs with a single critical violation to mark an outlier.
	outlierScoreFloor = 0.5
	defaultTolerance  = 0.25
)

// Tolerances is the absolute per-dimension tolerance table.
var Tolerances = map[string]float64{
	domain.FeatureEnergy:           0.25,
	domain.FeatureValence:          0.25,
	domain.FeatureDanceability:     0.25,
	domain.FeatureTempo:            35,
	domain.FeatureLoudness:         5,
	domain.FeaturePopularity:       25,
	domain.FeatureSpeechiness:      0.20,
	domain.FeatureInstrumentalness: 0.20,
	domain.FeatureAcousticness:     0.30,
	domain.FeatureLiveness:         0.30,
}

// CriticalDimensions are the features whose violations can make a track an outlier.
var CriticalDimensions = map[string]struct{}{
	domain.FeatureSpeechiness:      {},
	domain.FeatureInstrumentalness: {},
	domain.FeatureEnergy:           {},
	domain.FeatureValence:          {},
}

// TrackResult is the per-track breakdown.
type TrackResult struct {
	TrackID            string
	Score              float64
	Compared           int
	Violations         []string
	CriticalViolations int
	Outlier            bool
}

// Result is the outcome of scoring a set.
type Result struct {
	Score      float64
	OutlierIDs []string
	PerTrack   map[string]TrackResult
}

// Scorer compares tracks against target features.
type Scorer struct {
	tolerances map[string]float64
}

// NewScorer returns a scorer using the default tolerance table.
func NewScorer() *Scorer {
	return &Scorer{tolerances: Tolerances}
}

// Tolerance returns the absolute tolerance for a dimension.
func (s *Scorer) Tolerance(name string) float64 {
	if tol, ok := s.tolerances[name]; ok {
		return tol
	}
	return defaultTolerance
}

// Score evaluates every track. weights optionally scale the contribution of a
// dimension to a track's average; missing weights count as 1.
func (s *Scorer) Score(tracks []domain.TrackRecommendation, target domain.TargetFeatures, weights map[string]float64) Result {
	res := Result{OutlierIDs: []string{}, PerTrack: make(map[string]TrackResult, len(tracks))}
	if len(tracks) == 0 {
		res.Score = EmptyScore
		return res
	}

	var sum float64
	var kept int
	for _, t := range tracks {
		tr := s.scoreTrack(t.AudioFeatures, target, weights, 1)
		tr.TrackID = t.TrackID
		tr.Outlier = isOutlier(tr)
		res.PerTrack[t.TrackID] = tr
		if tr.Outlier {
			res.OutlierIDs = append(res.OutlierIDs, t.TrackID)
			continue
		}
		sum += tr.Score
		kept++
	}
	if kept > 0 {
		res.Score = sum / float64(kept)
	}
	sort.Strings(res.OutlierIDs)
	return res
}

// TrackScore scores a single feature map. toleranceScale > 1 tightens every
// tolerance (the engine passes the mood's feature weight here).
func (s *Scorer) TrackScore(features domain.AudioFeatures, target domain.TargetFeatures, toleranceScale float64) TrackResult {
	tr := s.scoreTrack(features, target, nil, toleranceScale)
	tr.Outlier = isOutlier(tr)
	return tr
}

func (s *Scorer) scoreTrack(features domain.AudioFeatures, target domain.TargetFeatures, weights map[string]float64, toleranceScale float64) TrackResult {
	if toleranceScale <= 0 {
		toleranceScale = 1
	}
	var tr TrackResult
	var weighted, totalWeight float64
	for name, ft := range target.Features {
		actual, ok := features.Get(name)
		if !ok {
			continue
		}
		tol := s.Tolerance(name) / toleranceScale
		diff := math.Abs(actual - ft.Resolve())
		match := math.Max(0, 1-diff/tol)
		w := 1.0
		if weights != nil {
			if v, ok := weights[name]; ok && v > 0 {
				w = v
			}
		}
		weighted += match * w
		totalWeight += w
		tr.Compared++
		if diff > tol {
			tr.Violations = append(tr.Violations, name)
			if _, critical := CriticalDimensions[name]; critical {
				tr.CriticalViolations++
			}
		}
	}
	if tr.Compared == 0 || totalWeight == 0 {
		tr.Score = NeutralScore
		return tr
	}
	sort.Strings(tr.Violations)
	tr.Score = weighted / totalWeight
	return tr
}

func isOutlier(tr TrackResult) bool {
	return tr.CriticalViolations >= 2 || (tr.CriticalViolations >= 1 && tr.Score < outlierScoreFloor)
}
