package domain

import "fmt"

// Phase is one ordered segment of the playlist's energy arc.
type Phase string

const (
	PhaseOpening Phase = "opening"
	PhaseBuild   Phase = "build"
	PhaseMid     Phase = "mid"
	PhaseHigh    Phase = "high"
	PhaseDescent Phase = "descent"
	PhaseClosure Phase = "closure"
)

// Phases is the canonical playback order.
var Phases = []Phase{PhaseOpening, PhaseBuild, PhaseMid, PhaseHigh, PhaseDescent, PhaseClosure}

// ParsePhase validates a phase name.
func ParsePhase(name string) (Phase, bool) {
	for _, p := range Phases {
		if string(p) == name {
			return p, true
		}
	}
	return "", false
}

// OrderingStrategy names an energy-arc pattern.
type OrderingStrategy string

const (
	StrategyClassicBuild           OrderingStrategy = "classic_build"
	StrategyImmediateImpact        OrderingStrategy = "immediate_impact"
	StrategyChillJourney           OrderingStrategy = "chill_journey"
	StrategyEmotionalRollercoaster OrderingStrategy = "emotional_rollercoaster"
	StrategySustainedEnergy        OrderingStrategy = "sustained_energy"
	StrategyAmbientFlow            OrderingStrategy = "ambient_flow"
)

// OrderingStrategies lists all arcs.
var OrderingStrategies = []OrderingStrategy{
	StrategyClassicBuild,
	StrategyImmediateImpact,
	StrategyChillJourney,
	StrategyEmotionalRollercoaster,
	StrategySustainedEnergy,
	StrategyAmbientFlow,
}

// ParseOrderingStrategy validates a strategy name.
func ParseOrderingStrategy(name string) (OrderingStrategy, error) {
	for _, s := range OrderingStrategies {
		if string(s) == name {
			return s, nil
		}
	}
	return "", fmt.Errorf("domain: unknown ordering strategy %q", name)
}

// Distribution returns the target share of tracks per phase, in canonical phase order.
func (s OrderingStrategy) Distribution() map[Phase]float64 {
	switch s {
	case StrategyImmediateImpact:
		return map[Phase]float64{PhaseOpening: 0.05, PhaseBuild: 0.10, PhaseMid: 0.20, PhaseHigh: 0.35, PhaseDescent: 0.20, PhaseClosure: 0.10}
	case StrategyChillJourney:
		return map[Phase]float64{PhaseOpening: 0.15, PhaseBuild: 0.20, PhaseMid: 0.30, PhaseHigh: 0.10, PhaseDescent: 0.15, PhaseClosure: 0.10}
	case StrategyEmotionalRollercoaster:
		return map[Phase]float64{PhaseOpening: 0.10, PhaseBuild: 0.20, PhaseMid: 0.15, PhaseHigh: 0.25, PhaseDescent: 0.20, PhaseClosure: 0.10}
	case StrategySustainedEnergy:
		return map[Phase]float64{PhaseOpening: 0.05, PhaseBuild: 0.15, PhaseMid: 0.20, PhaseHigh: 0.40, PhaseDescent: 0.12, PhaseClosure: 0.08}
	case StrategyAmbientFlow:
		return map[Phase]float64{PhaseOpening: 0.20, PhaseBuild: 0.15, PhaseMid: 0.30, PhaseHigh: 0.05, PhaseDescent: 0.15, PhaseClosure: 0.15}
	default:
		return map[Phase]float64{PhaseOpening: 0.10, PhaseBuild: 0.25, PhaseMid: 0.20, PhaseHigh: 0.25, PhaseDescent: 0.12, PhaseClosure: 0.08}
	}
}

// EnergyAnalysis holds per-track arc characteristics on a 0-100 scale.
type EnergyAnalysis struct {
	EnergyLevel        float64 `json:"energy_level"`
	Momentum           float64 `json:"momentum"`
	EmotionalIntensity float64 `json:"emotional_intensity"`
	OpeningPotential   float64 `json:"opening_potential"`
	ClosingPotential   float64 `json:"closing_potential"`
	PeakPotential      float64 `json:"peak_potential"`
	SuggestedPhase     Phase   `json:"suggested_phase,omitempty"`
	Advised            bool    `json:"advised"`
}

// PhaseAssignment maps each phase to its ordered track ids.
type PhaseAssignment map[Phase][]string

// Total counts the assigned tracks across every phase.
func (a PhaseAssignment) Total() int {
	n := 0
	for _, ids := range a {
		n += len(ids)
	}
	return n
}
