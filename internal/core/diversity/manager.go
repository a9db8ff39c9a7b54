// Package diversity bounds artist repetition in a candidate set.
package diversity

import (
	"sort"
	"strings"

	"github.com/ewilliams-labs/overture/curator/internal/core/domain"
)

// DefaultPenalty is subtracted per extra occurrence of an artist.
const DefaultPenalty = 0.1

// Manager penalizes repeated artists on unprotected tracks.
type Manager struct {
	penalty float64
	floor   float64
}

// NewManager returns a manager with the given per-repeat penalty.
// A non-positive penalty selects DefaultPenalty.
func NewManager(penalty float64) *Manager {
	if penalty <= 0 {
		penalty = DefaultPenalty
	}
	return &Manager{penalty: penalty, floor: domain.MinConfidence}
}

// Apply returns a penalized copy of tracks: protected tracks first, then the
// rest, each group ordered by confidence descending. The input is not modified.
func (m *Manager) Apply(tracks []domain.TrackRecommendation) []domain.TrackRecommendation {
	counts := ArtistCounts(tracks)

	protected := make([]domain.TrackRecommendation, 0, len(tracks))
	others := make([]domain.TrackRecommendation, 0, len(tracks))
	for _, t := range tracks {
		if t.IsProtected() {
			protected = append(protected, t)
			continue
		}
		var penalty float64
		for _, a := range t.Artists {
			if n := counts[artistKey(a)]; n > 1 {
				penalty += m.penalty * float64(n-1)
			}
		}
		if penalty > 0 {
			t.ConfidenceScore -= penalty
			if t.ConfidenceScore < m.floor {
				t.ConfidenceScore = m.floor
			}
		}
		others = append(others, t)
	}

	byConfidence := func(s []domain.TrackRecommendation) {
		sort.SliceStable(s, func(i, j int) bool { return s[i].ConfidenceScore > s[j].ConfidenceScore })
	}
	byConfidence(protected)
	byConfidence(others)
	return append(protected, others...)
}

// ArtistCounts counts artist occurrences across the set (case-insensitive).
func ArtistCounts(tracks []domain.TrackRecommendation) map[string]int {
	counts := make(map[string]int)
	for _, t := range tracks {
		for _, a := range t.Artists {
			if k := artistKey(a); k != "" {
				counts[k]++
			}
		}
	}
	return counts
}

// UniqueArtists returns the number of distinct primary artists in the set.
func UniqueArtists(tracks []domain.TrackRecommendation) int {
	seen := make(map[string]struct{}, len(tracks))
	for _, t := range tracks {
		if k := artistKey(t.PrimaryArtist()); k != "" {
			seen[k] = struct{}{}
		}
	}
	return len(seen)
}

func artistKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
