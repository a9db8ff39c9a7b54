package services

import (
	"context"
	"math"

	"github.com/ewilliams-labs/overture/curator/internal/core/cohesion"
	"github.com/ewilliams-labs/overture/curator/internal/core/diversity"
	"github.com/ewilliams-labs/overture/curator/internal/core/domain"
	"github.com/ewilliams-labs/overture/curator/internal/core/ports"
	"github.com/ewilliams-labs/overture/curator/internal/metrics"
)

// Overall score weights.
const (
	weightCohesion   = 0.40
	weightCoverage   = 0.25
	weightConfidence = 0.20
	weightDiversity  = 0.15

	// diversityTarget is the unique-artist ratio that earns a full diversity score.
	diversityTarget = 0.6
)

const qualityInstructions = `Assess how well this playlist fits the mood. Respond with JSON {"score": <0..1>, "issues": ["..."]}.`

type qualityAnswer struct {
	Score  *float64 `json:"score"`
	Issues []string `json:"issues"`
}

type qualityContext struct {
	Prompt   string                       `json:"prompt"`
	Target   map[string]float64           `json:"target"`
	Averages domain.AudioFeatures         `json:"averages"`
	Tracks   []domain.TrackRecommendation `json:"tracks"`
	Metrics  domain.QualityEvaluation     `json:"metrics"`
}

// Evaluate scores a set. It returns the immutable evaluation plus the
// underlying cohesion result for repair decisions.
func (o *Orchestrator) Evaluate(ctx context.Context, tracks []domain.TrackRecommendation, target domain.TargetFeatures, minimum, iteration int) (domain.QualityEvaluation, cohesion.Result) {
	scored := o.scorer.Score(tracks, target, nil)
	n := len(tracks)

	eval := domain.QualityEvaluation{
		Iteration:       iteration,
		CohesionScore:   scored.Score,
		OutlierTrackIDs: scored.OutlierIDs,
		TrackCount:      n,
		Issues:          []string{},
	}
	if minimum > 0 {
		eval.CoverageScore = math.Min(float64(n)/float64(minimum), 1)
	}
	if n > 0 {
		var sum float64
		for _, t := range tracks {
			sum += t.ConfidenceScore
		}
		eval.ConfidenceScore = sum / float64(n)
		ratio := float64(diversity.UniqueArtists(tracks)) / float64(n)
		eval.DiversityScore = math.Min(ratio/diversityTarget, 1)
	}
	eval.OverallScore = weightCohesion*eval.CohesionScore +
		weightCoverage*eval.CoverageScore +
		weightConfidence*eval.ConfidenceScore +
		weightDiversity*eval.DiversityScore

	if n > 0 {
		if adv, ok := o.assessQuality(ctx, tracks, target, eval); ok {
			eval.AdvisoryScore = &adv
			eval.OverallScore = (1-o.cfg.AdvisoryBlend)*eval.OverallScore + o.cfg.AdvisoryBlend*adv
		}
	}

	if eval.CohesionScore < o.cfg.CohesionThreshold {
		eval.Issues = append(eval.Issues, domain.IssueLowCohesion)
	}
	if n < minimum {
		eval.Issues = append(eval.Issues, domain.IssueInsufficientCandidates)
	}
	if len(eval.OutlierTrackIDs) > 0 {
		eval.Issues = append(eval.Issues, domain.IssueOutliers)
	}
	if eval.OverallScore < o.cfg.OverallThreshold {
		eval.Issues = append(eval.Issues, domain.IssueLowOverall)
	}
	if n > 0 && eval.DiversityScore < 1 {
		eval.Issues = append(eval.Issues, domain.IssueLowDiversity)
	}

	eval.MeetsThreshold = n > 0 &&
		eval.CohesionScore >= o.cfg.CohesionThreshold &&
		eval.CoverageScore >= 1 &&
		len(eval.OutlierTrackIDs) == 0 &&
		eval.OverallScore >= o.cfg.OverallThreshold
	return eval, scored
}

// assessQuality returns the advisory judgment on a 0..1 scale. Answers on a
// 0..100 scale are rescaled; anything else is rejected.
func (o *Orchestrator) assessQuality(ctx context.Context, tracks []domain.TrackRecommendation, target domain.TargetFeatures, eval domain.QualityEvaluation) (float64, bool) {
	if o.advisory == nil {
		return 0, false
	}
	var ans qualityAnswer
	err := ports.Consult(ctx, o.advisory, domain.AdvisoryPrompt{
		Task:         domain.TaskQualityAssessment,
		Instructions: qualityInstructions,
		Context: qualityContext{
			Target:   target.Midpoints(),
			Averages: domain.AverageFeatures(tracks),
			Tracks:   tracks,
			Metrics:  eval,
		},
	}, &ans)
	if err != nil {
		metrics.RecordAdvisoryFallback(string(domain.TaskQualityAssessment))
		o.logger.Warn().Err(err).Msg("quality assessment unavailable, using algorithmic score")
		return 0, false
	}
	if ans.Score == nil || math.IsNaN(*ans.Score) || *ans.Score < 0 || *ans.Score > 100 {
		metrics.RecordAdvisoryFallback(string(domain.TaskQualityAssessment))
		o.logger.Warn().Msg("quality assessment out of range, using algorithmic score")
		return 0, false
	}
	score := *ans.Score
	if score > 1 {
		score /= 100
	}
	return score, true
}
