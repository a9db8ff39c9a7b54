package domain

import "fmt"

// Quality issue labels recorded on an evaluation.
const (
	IssueLowCohesion            = "low_cohesion"
	IssueInsufficientCandidates = "insufficient_candidates"
	IssueOutliers               = "outliers_present"
	IssueLowOverall             = "low_overall_score"
	IssueLowDiversity           = "low_artist_diversity"
)

// QualityEvaluation is an immutable per-iteration snapshot.
type QualityEvaluation struct {
	Iteration       int      `json:"iteration"`
	OverallScore    float64  `json:"overall_score"`
	CohesionScore   float64  `json:"cohesion_score"`
	CoverageScore   float64  `json:"coverage_score"`
	ConfidenceScore float64  `json:"confidence_score"`
	DiversityScore  float64  `json:"diversity_score"`
	AdvisoryScore   *float64 `json:"advisory_score,omitempty"`
	OutlierTrackIDs []string `json:"outlier_track_ids"`
	Issues          []string `json:"issues"`
	TrackCount      int      `json:"track_count"`
	MeetsThreshold  bool     `json:"meets_threshold"`
}

// RepairStrategy is one of the fixed improvement actions.
type RepairStrategy string

const (
	RepairFilterAndReplace     RepairStrategy = "filter_and_replace"
	RepairReseedFromClean      RepairStrategy = "reseed_from_clean"
	RepairAdjustFeatureWeights RepairStrategy = "adjust_feature_weights"
	RepairGenerateMore         RepairStrategy = "generate_more"
)

// RepairStrategies lists the vocabulary in canonical order.
var RepairStrategies = []RepairStrategy{
	RepairFilterAndReplace,
	RepairReseedFromClean,
	RepairAdjustFeatureWeights,
	RepairGenerateMore,
}

// ParseRepairStrategy maps a name to a strategy, rejecting anything outside the vocabulary.
func ParseRepairStrategy(name string) (RepairStrategy, error) {
	for _, s := range RepairStrategies {
		if string(s) == name {
			return s, nil
		}
	}
	return "", fmt.Errorf("domain: unknown repair strategy %q", name)
}

// Status is the terminal state of an orchestration run.
type Status string

const (
	StatusAccepted  Status = "accepted"
	StatusExhausted Status = "exhausted"
)

// ImprovementAction records one applied repair.
type ImprovementAction struct {
	Iteration int            `json:"iteration"`
	Strategy  RepairStrategy `json:"strategy"`
	Before    int            `json:"tracks_before"`
	After     int            `json:"tracks_after"`
	Detail    string         `json:"detail,omitempty"`
}

// OrchestrationState lives for one playlist request.
type OrchestrationState struct {
	IterationCount     int
	QualityHistory     []QualityEvaluation
	ImprovementActions []ImprovementAction
	Accepted           []TrackRecommendation
}

// Latest returns the most recent evaluation, if any.
func (s *OrchestrationState) Latest() (QualityEvaluation, bool) {
	if len(s.QualityHistory) == 0 {
		return QualityEvaluation{}, false
	}
	return s.QualityHistory[len(s.QualityHistory)-1], true
}
