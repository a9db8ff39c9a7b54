package domain

import "fmt"

// Source identifies which generation strategy produced a recommendation.
type Source string

const (
	SourceUserAnchor      Source = "user_anchor"
	SourceArtistDiscovery Source = "artist_discovery"
	SourceSeedBased       Source = "seed_based"
	SourceFallback        Source = "fallback"
)

// Valid reports whether s is one of the known sources.
func (s Source) Valid() bool {
	switch s {
	case SourceUserAnchor, SourceArtistDiscovery, SourceSeedBased, SourceFallback:
		return true
	}
	return false
}

// MinConfidence is the floor any penalty may push a confidence score to.
const MinConfidence = 0.1

// TrackRecommendation is a scored candidate flowing between the engine,
// the orchestrator and the orderer.
type TrackRecommendation struct {
	TrackID             string          `json:"track_id"`
	SpotifyURI          string          `json:"spotify_uri,omitempty"`
	Name                string          `json:"name"`
	Artists             []string        `json:"artists"`
	ConfidenceScore     float64         `json:"confidence_score"`
	AudioFeatures       AudioFeatures   `json:"audio_features,omitempty"`
	Source              Source          `json:"source"`
	UserMentioned       bool            `json:"user_mentioned,omitempty"`
	UserMentionedArtist bool            `json:"user_mentioned_artist,omitempty"`
	Protected           bool            `json:"protected,omitempty"`
	EnergyAnalysis      *EnergyAnalysis `json:"energy_analysis,omitempty"`
}

// NewRecommendation builds a fully populated recommendation from a catalog track.
func NewRecommendation(t Track, source Source, confidence float64) (TrackRecommendation, error) {
	if t.ID == "" || t.Name == "" {
		return TrackRecommendation{}, fmt.Errorf("domain: recommendation requires id and name (id=%q)", t.ID)
	}
	if !source.Valid() {
		return TrackRecommendation{}, fmt.Errorf("domain: unknown source %q", source)
	}
	uri := t.URI
	if uri == "" {
		uri = "spotify:track:" + t.ID
	}
	artists := make([]string, len(t.Artists))
	copy(artists, t.Artists)
	return TrackRecommendation{
		TrackID:         t.ID,
		SpotifyURI:      uri,
		Name:            t.Name,
		Artists:         artists,
		ConfidenceScore: ClampConfidence(confidence),
		AudioFeatures:   t.Features.Clone(),
		Source:          source,
	}, nil
}

// IsProtected reports whether diversity penalties must leave this track alone.
func (r TrackRecommendation) IsProtected() bool {
	return r.UserMentioned || r.UserMentionedArtist || r.Protected
}

// PrimaryArtist returns the first credited artist or an empty string.
func (r TrackRecommendation) PrimaryArtist() string {
	if len(r.Artists) == 0 {
		return ""
	}
	return r.Artists[0]
}

// ClampConfidence bounds a confidence score to [MinConfidence, 1].
func ClampConfidence(v float64) float64 {
	if v < MinConfidence {
		return MinConfidence
	}
	if v > 1 {
		return 1
	}
	return v
}

// TrackIDs returns the ids of recs in order.
func TrackIDs(recs []TrackRecommendation) []string {
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.TrackID
	}
	return ids
}
