package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/ewilliams-labs/overture/curator/internal/core/cohesion"
	"github.com/ewilliams-labs/overture/curator/internal/core/domain"
	"github.com/ewilliams-labs/overture/curator/internal/core/ports"
	"github.com/ewilliams-labs/overture/curator/internal/core/recommend"
	"github.com/ewilliams-labs/overture/curator/internal/metrics"
)

const maxRepairs = 3

const repairInstructions = `The playlist failed its quality check. Choose 1 to 3 repair strategies, in the order to apply them, from filter_and_replace, reseed_from_clean, adjust_feature_weights, generate_more. Respond with JSON {"strategies": ["..."]}.`

type repairAnswer struct {
	Strategies []string `json:"strategies"`
}

type repairContext struct {
	Evaluation domain.QualityEvaluation `json:"evaluation"`
	TrackCount int                      `json:"track_count"`
	Minimum    int                      `json:"minimum"`
}

// chooseRepairs asks the advisory service for an ordered repair list and
// falls back to RepairRules when it is unavailable or proposes nothing valid.
func (o *Orchestrator) chooseRepairs(ctx context.Context, eval domain.QualityEvaluation, count, minimum int) []domain.RepairStrategy {
	fallback := o.RepairRules(eval, count, minimum)
	if o.advisory == nil {
		metrics.RecordAdvisoryFallback(string(domain.TaskRepairStrategy))
		return fallback
	}

	var ans repairAnswer
	err := ports.Consult(ctx, o.advisory, domain.AdvisoryPrompt{
		Task:         domain.TaskRepairStrategy,
		Instructions: repairInstructions,
		Context:      repairContext{Evaluation: eval, TrackCount: count, Minimum: minimum},
	}, &ans)
	if err != nil {
		metrics.RecordAdvisoryFallback(string(domain.TaskRepairStrategy))
		o.logger.Warn().Err(err).Msg("repair advice unavailable, using rules")
		return fallback
	}

	chosen := ValidRepairs(ans.Strategies)
	if len(chosen) == 0 {
		metrics.RecordAdvisoryFallback(string(domain.TaskRepairStrategy))
		o.logger.Warn().Strs("proposed", ans.Strategies).Msg("no valid repair proposed, using rules")
		return fallback
	}
	return chosen
}

// ValidRepairs keeps known strategy names in order, without repeats, up to three.
func ValidRepairs(names []string) []domain.RepairStrategy {
	seen := make(map[domain.RepairStrategy]bool, len(names))
	out := make([]domain.RepairStrategy, 0, maxRepairs)
	for _, n := range names {
		s, err := domain.ParseRepairStrategy(n)
		if err != nil || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
		if len(out) == maxRepairs {
			break
		}
	}
	return out
}

// RepairRules is the deterministic repair policy.
func (o *Orchestrator) RepairRules(eval domain.QualityEvaluation, count, minimum int) []domain.RepairStrategy {
	var out []domain.RepairStrategy
	if len(eval.OutlierTrackIDs) > 0 && count > o.cfg.ReseedKeep {
		out = append(out, domain.RepairFilterAndReplace)
	}
	if eval.CohesionScore < o.cfg.CohesionThreshold {
		out = append(out, domain.RepairAdjustFeatureWeights)
	}
	if eval.CohesionScore < o.cfg.ReseedFloor && count >= o.cfg.ReseedKeep {
		out = append(out, domain.RepairReseedFromClean)
	}
	if count < minimum {
		out = append(out, domain.RepairGenerateMore)
	}
	if len(out) == 0 {
		out = []domain.RepairStrategy{domain.RepairAdjustFeatureWeights, domain.RepairGenerateMore}
	}
	return out
}

func (o *Orchestrator) applyRepair(ctx context.Context, r *run, s domain.RepairStrategy, eval domain.QualityEvaluation, scored cohesion.Result, iter int) error {
	before := len(r.tracks)
	var detail string

	switch s {
	case domain.RepairFilterAndReplace:
		outliers := make(map[string]struct{}, len(eval.OutlierTrackIDs))
		for _, id := range eval.OutlierTrackIDs {
			outliers[id] = struct{}{}
			r.exclude[id] = struct{}{}
		}
		survivors := make([]domain.TrackRecommendation, 0, len(r.tracks))
		for _, t := range r.tracks {
			if _, bad := outliers[t.TrackID]; !bad {
				survivors = append(survivors, t)
			}
		}
		ranked := append([]domain.TrackRecommendation(nil), survivors...)
		sortByConfidence(ranked)
		r.seeds = domain.TrackIDs(head(ranked, o.cfg.ReseedKeep))
		gen, err := o.generate(ctx, r, r.count, survivors)
		if err != nil {
			return err
		}
		r.tracks = head(recommend.Dedup(append(survivors, gen...)), r.count)
		detail = fmt.Sprintf("removed %d outliers, added %d", len(outliers), max(0, len(r.tracks)-len(survivors)))

	case domain.RepairReseedFromClean:
		ranked := append([]domain.TrackRecommendation(nil), r.tracks...)
		blend := func(t domain.TrackRecommendation) float64 {
			c := cohesion.NeutralScore
			if tr, ok := scored.PerTrack[t.TrackID]; ok {
				c = tr.Score
			}
			return (t.ConfidenceScore + c) / 2
		}
		sort.SliceStable(ranked, func(i, j int) bool { return blend(ranked[i]) > blend(ranked[j]) })
		clean := head(ranked, o.cfg.ReseedKeep)
		r.seeds = domain.TrackIDs(clean)
		gen, err := o.generate(ctx, r, r.count, clean)
		if err != nil {
			return err
		}
		r.tracks = head(recommend.Dedup(append(clean, gen...)), r.count)
		detail = fmt.Sprintf("reseeded from %d clean tracks, added %d", len(clean), max(0, len(r.tracks)-len(clean)))

	case domain.RepairAdjustFeatureWeights:
		old := r.target.Weight()
		next := old + o.cfg.WeightStep
		if next > o.cfg.WeightCeiling {
			next = o.cfg.WeightCeiling
		}
		r.target.FeatureWeight = next
		detail = fmt.Sprintf("feature weight %.1f -> %.1f", old, next)

	case domain.RepairGenerateMore:
		need := r.minimum - len(r.tracks)
		if need < o.cfg.GenerateMoreMin {
			need = o.cfg.GenerateMoreMin
		}
		gen, err := o.generate(ctx, r, need, r.tracks)
		if err != nil {
			return err
		}
		limit := r.count
		if limit < r.minimum {
			limit = r.minimum
		}
		r.tracks = head(recommend.Dedup(append(r.tracks, gen...)), limit)
		detail = fmt.Sprintf("requested %d, added %d", need, max(0, len(r.tracks)-before))

	default:
		return nil
	}

	metrics.RecordRepair(string(s))
	r.state.ImprovementActions = append(r.state.ImprovementActions, domain.ImprovementAction{
		Iteration: iter,
		Strategy:  s,
		Before:    before,
		After:     len(r.tracks),
		Detail:    detail,
	})
	o.logger.Debug().Str("strategy", string(s)).Int("before", before).Int("after", len(r.tracks)).Msg(detail)
	return nil
}

func head(s []domain.TrackRecommendation, n int) []domain.TrackRecommendation {
	if len(s) > n {
		return s[:n]
	}
	return s
}
