package ordering

import (
	"context"
	"math"
	"sync"

	"github.com/ewilliams-labs/overture/curator/internal/core/domain"
	"github.com/ewilliams-labs/overture/curator/internal/core/ports"
	"github.com/ewilliams-labs/overture/curator/internal/metrics"
)

const energyInstructions = `Rate each track's role in a playlist energy arc. For every entry in "tracks" return {"track_id", "energy_level", "momentum", "emotional_intensity", "opening_potential", "closing_potential", "peak_potential", "suggested_phase"} with numbers from 0 to 100 and suggested_phase one of opening, build, mid, high, descent, closure. Respond with JSON {"tracks": [...]}.`

type energyTrack struct {
	TrackID  string               `json:"track_id"`
	Name     string               `json:"name"`
	Artists  []string             `json:"artists"`
	Features domain.AudioFeatures `json:"features,omitempty"`
}

type energyAnswer struct {
	Tracks []struct {
		TrackID            string   `json:"track_id"`
		EnergyLevel        *float64 `json:"energy_level"`
		Momentum           *float64 `json:"momentum"`
		EmotionalIntensity *float64 `json:"emotional_intensity"`
		OpeningPotential   *float64 `json:"opening_potential"`
		ClosingPotential   *float64 `json:"closing_potential"`
		PeakPotential      *float64 `json:"peak_potential"`
		SuggestedPhase     string   `json:"suggested_phase"`
	} `json:"tracks"`
}

// analyze returns one analysis per track, index-aligned with tracks. Batches
// run concurrently; a failed batch falls back to the feature formula.
func (o *Orderer) analyze(ctx context.Context, tracks []domain.TrackRecommendation, opts Options) []domain.EnergyAnalysis {
	out := make([]domain.EnergyAnalysis, len(tracks))
	for i, t := range tracks {
		out[i] = FallbackAnalysis(t.AudioFeatures)
	}
	if o.advisory == nil {
		metrics.RecordAdvisoryFallback(string(domain.TaskEnergyAnalysis))
		return out
	}

	sem := make(chan struct{}, o.cfg.MaxConcurrency)
	var wg sync.WaitGroup
	for start := 0; start < len(tracks); start += o.cfg.BatchSize {
		end := start + o.cfg.BatchSize
		if end > len(tracks) {
			end = len(tracks)
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					o.logger.Warn().Interface("panic", r).Int("batch_start", lo).Msg("energy batch panicked, using feature formula")
				}
			}()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}
			o.analyzeBatch(ctx, tracks[lo:hi], out[lo:hi], opts)
		}(start, end)
	}
	wg.Wait()
	return out
}

// analyzeBatch overwrites dst entries the advisory answered validly. Each
// goroutine owns a disjoint dst window.
func (o *Orderer) analyzeBatch(ctx context.Context, batch []domain.TrackRecommendation, dst []domain.EnergyAnalysis, opts Options) {
	payload := make([]energyTrack, len(batch))
	pos := make(map[string]int, len(batch))
	for i, t := range batch {
		payload[i] = energyTrack{TrackID: t.TrackID, Name: t.Name, Artists: t.Artists, Features: t.AudioFeatures}
		pos[t.TrackID] = i
	}

	var ans energyAnswer
	err := ports.Consult(ctx, o.advisory, domain.AdvisoryPrompt{
		Task:         domain.TaskEnergyAnalysis,
		Instructions: energyInstructions,
		Context:      map[string]any{"prompt": opts.Prompt, "tracks": payload},
	}, &ans)
	if err != nil {
		metrics.RecordAdvisoryFallback(string(domain.TaskEnergyAnalysis))
		o.logger.Warn().Err(err).Int("batch", len(batch)).Msg("energy analysis unavailable, using feature formula")
		return
	}

	accepted := 0
	for _, a := range ans.Tracks {
		i, ok := pos[a.TrackID]
		if !ok {
			continue
		}
		vals := []*float64{a.EnergyLevel, a.Momentum, a.EmotionalIntensity, a.OpeningPotential, a.ClosingPotential, a.PeakPotential}
		if !allInRange(vals) {
			continue
		}
		phase, _ := domain.ParsePhase(a.SuggestedPhase)
		dst[i] = domain.EnergyAnalysis{
			EnergyLevel:        *a.EnergyLevel,
			Momentum:           *a.Momentum,
			EmotionalIntensity: *a.EmotionalIntensity,
			OpeningPotential:   *a.OpeningPotential,
			ClosingPotential:   *a.ClosingPotential,
			PeakPotential:      *a.PeakPotential,
			SuggestedPhase:     phase,
			Advised:            true,
		}
		accepted++
	}
	if accepted < len(batch) {
		o.logger.Debug().Int("accepted", accepted).Int("batch", len(batch)).Msg("partial energy analysis, remaining tracks use feature formula")
	}
}

func allInRange(vals []*float64) bool {
	for _, v := range vals {
		if v == nil || math.IsNaN(*v) || *v < 0 || *v > 100 {
			return false
		}
	}
	return true
}

// FallbackAnalysis derives arc characteristics from raw audio features on a
// 0-100 scale. Missing features count as mid-range (tempo 120 BPM).
func FallbackAnalysis(f domain.AudioFeatures) domain.EnergyAnalysis {
	level := unit(f, domain.FeatureEnergy)
	dance := unit(f, domain.FeatureDanceability)
	valence := unit(f, domain.FeatureValence)
	tempo, ok := f.Get(domain.FeatureTempo)
	if !ok || tempo <= 0 {
		tempo = 120
	}

	momentum := clamp100((tempo/200*100 + dance) / 2)
	emotional := clamp100((math.Abs(valence-50)*2 + level) / 2)

	var opening, closing, peak float64
	switch {
	case level >= 30 && level <= 65:
		opening = 80
	case level < 30:
		opening = 60
	default:
		opening = 40
	}
	if valence >= 60 {
		opening += 10
	}

	switch {
	case level < 40:
		closing = 80
	case level < 70:
		closing = 50
	default:
		closing = 20
	}
	if valence < 40 {
		closing += 10
	}

	switch {
	case level > 75:
		peak = 90
	case level > 55:
		peak = 60
	default:
		peak = 20
	}

	return domain.EnergyAnalysis{
		EnergyLevel:        level,
		Momentum:           momentum,
		EmotionalIntensity: emotional,
		OpeningPotential:   clamp100(opening),
		ClosingPotential:   clamp100(closing),
		PeakPotential:      peak,
	}
}

func unit(f domain.AudioFeatures, name string) float64 {
	v, ok := f.Get(name)
	if !ok {
		return 50
	}
	return clamp100(v * 100)
}

func clamp100(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
