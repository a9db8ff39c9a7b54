package ordering

import (
	"math"
	"sort"

	"github.com/ewilliams-labs/overture/curator/internal/core/domain"
)

// assignmentPriority is the order phases pick their tracks in.
var assignmentPriority = []domain.Phase{
	domain.PhaseOpening,
	domain.PhaseClosure,
	domain.PhaseHigh,
	domain.PhaseBuild,
	domain.PhaseDescent,
	domain.PhaseMid,
}

// PhaseCounts scales the strategy's distribution to n tracks. Every share is
// floored; the remainder goes to the phase with the largest share.
func PhaseCounts(s domain.OrderingStrategy, n int) map[domain.Phase]int {
	dist := s.Distribution()
	counts := make(map[domain.Phase]int, len(domain.Phases))
	total := 0
	largest := domain.Phases[0]
	for _, p := range domain.Phases {
		c := int(math.Floor(dist[p] * float64(n)))
		counts[p] = c
		total += c
		if dist[p] > dist[largest] {
			largest = p
		}
	}
	counts[largest] += n - total
	return counts
}

// Suitability scores how well a track fits a phase.
func Suitability(a domain.EnergyAnalysis, p domain.Phase) float64 {
	level := a.EnergyLevel
	hint := a.SuggestedPhase
	var score float64
	switch p {
	case domain.PhaseOpening:
		if hint == "" || hint == domain.PhaseOpening {
			score = a.OpeningPotential * 1.5
		} else {
			score = a.OpeningPotential * 0.5
		}
	case domain.PhaseBuild:
		score = (level + a.Momentum) / 2
		if level >= 40 && level <= 75 {
			score *= 1.2
		} else {
			score *= 0.6
		}
	case domain.PhaseMid:
		if level >= 40 && level <= 70 {
			score = a.EmotionalIntensity * 1.2
		} else {
			score = a.EmotionalIntensity * 0.7
		}
	case domain.PhaseHigh:
		if level > 60 {
			score = a.PeakPotential*1.5 + level*0.5
		} else {
			score = a.PeakPotential * 0.5
		}
	case domain.PhaseDescent:
		if level >= 30 && level <= 65 {
			score = (100-a.Momentum)*0.5 + a.ClosingPotential*0.8
		} else {
			score = a.ClosingPotential * 0.4
		}
	case domain.PhaseClosure:
		if hint == "" || hint == domain.PhaseClosure {
			score = a.ClosingPotential * 1.5
		} else {
			score = a.ClosingPotential * 0.5
		}
	}
	if hint != "" && hint == p {
		score *= 1.5
	}
	return score
}

// assignPhases greedily fills phases in priority order with the highest
// scoring unassigned track indexes. Ties keep input order.
func assignPhases(analyses []domain.EnergyAnalysis, counts map[domain.Phase]int) map[domain.Phase][]int {
	assigned := make([]bool, len(analyses))
	out := make(map[domain.Phase][]int, len(domain.Phases))
	for _, p := range assignmentPriority {
		type cand struct {
			idx   int
			score float64
		}
		var cands []cand
		for i, a := range analyses {
			if !assigned[i] {
				cands = append(cands, cand{idx: i, score: Suitability(a, p)})
			}
		}
		sort.SliceStable(cands, func(i, j int) bool { return cands[i].score > cands[j].score })

		want := counts[p]
		if want > len(cands) {
			want = len(cands)
		}
		picked := make([]int, 0, want)
		for _, c := range cands[:want] {
			assigned[c.idx] = true
			picked = append(picked, c.idx)
		}
		out[p] = picked
	}
	return out
}

// sortPhase orders idx in place by the phase's sort key; ties keep input order.
func sortPhase(p domain.Phase, idx []int, analyses []domain.EnergyAnalysis) {
	key := func(i int) float64 {
		a := analyses[i]
		switch p {
		case domain.PhaseOpening:
			return -a.OpeningPotential
		case domain.PhaseBuild:
			return a.EnergyLevel
		case domain.PhaseMid:
			return -a.EmotionalIntensity
		case domain.PhaseHigh:
			return -a.PeakPotential
		case domain.PhaseDescent:
			return -a.EnergyLevel
		default:
			return -a.ClosingPotential
		}
	}
	sort.SliceStable(idx, func(i, j int) bool {
		ki, kj := key(idx[i]), key(idx[j])
		if ki != kj {
			return ki < kj
		}
		return idx[i] < idx[j]
	})
}
