package ordering

import (
	"context"
	"math"

	"github.com/ewilliams-labs/overture/curator/internal/core/domain"
	"github.com/ewilliams-labs/overture/curator/internal/core/ports"
	"github.com/ewilliams-labs/overture/curator/internal/metrics"
)

const strategyInstructions = `Pick the energy arc for this playlist. Choose exactly one of classic_build, immediate_impact, chill_journey, emotional_rollercoaster, sustained_energy, ambient_flow. Respond with JSON {"strategy": "<name>", "reason": "<short>"}.`

// EnergyStats summarizes track energy levels (0-100).
type EnergyStats struct {
	Mean  float64 `json:"mean"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Range float64 `json:"range"`
	Count int     `json:"count"`
}

// Stats computes aggregate energy statistics.
func Stats(analyses []domain.EnergyAnalysis) EnergyStats {
	if len(analyses) == 0 {
		return EnergyStats{}
	}
	s := EnergyStats{Min: math.Inf(1), Max: math.Inf(-1), Count: len(analyses)}
	var sum float64
	for _, a := range analyses {
		sum += a.EnergyLevel
		s.Min = math.Min(s.Min, a.EnergyLevel)
		s.Max = math.Max(s.Max, a.EnergyLevel)
	}
	s.Mean = sum / float64(len(analyses))
	s.Range = s.Max - s.Min
	return s
}

// FallbackStrategy picks an arc from energy statistics alone.
func FallbackStrategy(s EnergyStats) domain.OrderingStrategy {
	switch {
	case s.Mean > 75:
		return domain.StrategySustainedEnergy
	case s.Mean < 35:
		return domain.StrategyAmbientFlow
	case s.Range > 50:
		return domain.StrategyEmotionalRollercoaster
	default:
		return domain.StrategyClassicBuild
	}
}

type strategyAnswer struct {
	Strategy string `json:"strategy"`
	Reason   string `json:"reason"`
}

// selectStrategy asks the advisory service; unknown names fall back.
func (o *Orderer) selectStrategy(ctx context.Context, analyses []domain.EnergyAnalysis, opts Options) (domain.OrderingStrategy, bool) {
	stats := Stats(analyses)
	fallback := FallbackStrategy(stats)
	if o.advisory == nil {
		metrics.RecordAdvisoryFallback(string(domain.TaskOrderingStrategy))
		return fallback, false
	}

	var ans strategyAnswer
	err := ports.Consult(ctx, o.advisory, domain.AdvisoryPrompt{
		Task:         domain.TaskOrderingStrategy,
		Instructions: strategyInstructions,
		Context:      map[string]any{"prompt": opts.Prompt, "energy": stats},
	}, &ans)
	if err != nil {
		metrics.RecordAdvisoryFallback(string(domain.TaskOrderingStrategy))
		o.logger.Warn().Err(err).Str("fallback", string(fallback)).Msg("strategy selection unavailable")
		return fallback, false
	}
	strategy, err := domain.ParseOrderingStrategy(ans.Strategy)
	if err != nil {
		metrics.RecordAdvisoryFallback(string(domain.TaskOrderingStrategy))
		o.logger.Warn().Err(err).Str("fallback", string(fallback)).Msg("advisory proposed unknown strategy")
		return fallback, false
	}
	return strategy, true
}
