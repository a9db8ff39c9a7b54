package domain

import (
	"errors"
	"time"
)

// ErrDuplicateTrack is returned when a playlist already holds the track id.
var ErrDuplicateTrack = errors.New("domain: duplicate track")

// CuratedPlaylist is the downstream output: ordered tracks plus quality and arc metadata.
type CuratedPlaylist struct {
	RunID      string                `json:"run_id"`
	Prompt     string                `json:"prompt"`
	Tracks     []TrackRecommendation `json:"tracks"`
	Evaluation QualityEvaluation     `json:"evaluation"`
	Strategy   OrderingStrategy      `json:"strategy,omitempty"`
	Status     Status                `json:"status"`
	Iterations int                   `json:"iterations"`
	History    []QualityEvaluation   `json:"history"`
	Actions    []ImprovementAction   `json:"actions"`
}

func NewCuratedPlaylist(runID, prompt string) (*CuratedPlaylist, error) {
	if runID == "" {
		return nil, errors.New("domain: invalid argument")
	}
	return &CuratedPlaylist{
		RunID:  runID,
		Prompt: prompt,
		Tracks: []TrackRecommendation{},
	}, nil
}

// AddTrack appends a recommendation while preventing duplicate track ids.
func (p *CuratedPlaylist) AddTrack(t TrackRecommendation) error {
	for _, ex := range p.Tracks {
		if ex.TrackID == t.TrackID {
			return ErrDuplicateTrack
		}
	}
	p.Tracks = append(p.Tracks, t)
	return nil
}

// Analyze averages every feature dimension across tracks that carry it.
func (p *CuratedPlaylist) Analyze() AudioFeatures {
	return AverageFeatures(p.Tracks)
}

// AverageFeatures averages every dimension over the tracks that carry it.
func AverageFeatures(tracks []TrackRecommendation) AudioFeatures {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, t := range tracks {
		for name, v := range t.AudioFeatures {
			sums[name] += v
			counts[name]++
		}
	}
	out := make(AudioFeatures, len(sums))
	for name, sum := range sums {
		out[name] = sum / float64(counts[name])
	}
	return out
}

// RunRecord is a journal entry describing one completed curation run.
type RunRecord struct {
	ID         string              `json:"id"`
	Prompt     string              `json:"prompt"`
	CreatedAt  time.Time           `json:"created_at"`
	Status     Status              `json:"status"`
	Strategy   OrderingStrategy    `json:"strategy,omitempty"`
	Iterations int                 `json:"iterations"`
	Final      QualityEvaluation   `json:"final"`
	History    []QualityEvaluation `json:"history"`
	TrackIDs   []string            `json:"track_ids"`
}

// Record converts the playlist into a journal entry.
func (p *CuratedPlaylist) Record(at time.Time) RunRecord {
	return RunRecord{
		ID:         p.RunID,
		Prompt:     p.Prompt,
		CreatedAt:  at,
		Status:     p.Status,
		Strategy:   p.Strategy,
		Iterations: p.Iterations,
		Final:      p.Evaluation,
		History:    p.History,
		TrackIDs:   TrackIDs(p.Tracks),
	}
}
