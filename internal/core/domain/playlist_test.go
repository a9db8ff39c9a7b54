package domain

import (
	"errors"
	"math"
	"reflect"
	"testing"
)

func TestCuratedPlaylist_AddTrack(t *testing.T) {
	tests := []struct {
		name          string
		initialTracks []TrackRecommendation
		toAdd         TrackRecommendation
		wantErr       error
		wantLen       int
	}{
		{
			name:          "adds new track successfully",
			initialTracks: []TrackRecommendation{},
			toAdd:         TrackRecommendation{TrackID: "t1", Name: "Song One", Artists: []string{"Artist A"}},
			wantErr:       nil,
			wantLen:       1,
		},
		{
			name: "fails when adding track with duplicate id",
			initialTracks: []TrackRecommendation{
				{TrackID: "t1", Name: "Existing", Artists: []string{"Artist A"}},
			},
			toAdd:   TrackRecommendation{TrackID: "t1", Name: "Song Two", Artists: []string{"Artist B"}},
			wantErr: ErrDuplicateTrack,
			wantLen: 1,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			p, err := NewCuratedPlaylist("run-1", "rainy sunday")
			if err != nil {
				t.Fatalf("failed to create playlist: %v", err)
			}
			p.Tracks = append(p.Tracks, tc.initialTracks...)

			err = p.AddTrack(tc.toAdd)
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("expected no error, got: %v", err)
				}
			} else if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected error %v, got %v", tc.wantErr, err)
			}

			if got := len(p.Tracks); got != tc.wantLen {
				t.Fatalf("expected %d tracks, got %d", tc.wantLen, got)
			}

			if tc.wantErr == nil {
				last := p.Tracks[len(p.Tracks)-1]
				if !reflect.DeepEqual(last, tc.toAdd) {
					t.Fatalf("last track mismatch: want %+v, got %+v", tc.toAdd, last)
				}
			}
		})
	}
}

func TestCuratedPlaylist_Analyze(t *testing.T) {
	tests := []struct {
		name     string
		tracks   []TrackRecommendation
		expected AudioFeatures
	}{
		{
			name:     "returns empty features for empty playlist",
			tracks:   []TrackRecommendation{},
			expected: AudioFeatures{},
		},
		{
			name: "averages features across tracks that carry them",
			tracks: []TrackRecommendation{
				{TrackID: "t1", AudioFeatures: AudioFeatures{FeatureEnergy: 0.6, FeatureTempo: 100}},
				{TrackID: "t2", AudioFeatures: AudioFeatures{FeatureEnergy: 0.8, FeatureTempo: 120, FeatureValence: 0.4}},
				{TrackID: "t3"},
			},
			expected: AudioFeatures{FeatureEnergy: 0.7, FeatureTempo: 110, FeatureValence: 0.4},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			p := CuratedPlaylist{RunID: "run-1", Tracks: tc.tracks}
			got := p.Analyze()
			if len(got) != len(tc.expected) {
				t.Fatalf("expected %d dimensions, got %+v", len(tc.expected), got)
			}
			for name, want := range tc.expected {
				if !floatEquals(got[name], want, 1e-9) {
					t.Fatalf("%s: expected %v, got %v", name, want, got[name])
				}
			}
		})
	}
}

func TestNewRecommendation(t *testing.T) {
	tests := []struct {
		name       string
		track      Track
		source     Source
		confidence float64
		wantErr    bool
		wantURI    string
		wantConf   float64
	}{
		{
			name:       "fills uri and clamps confidence",
			track:      Track{ID: "abc", Name: "Song", Artists: []string{"A"}},
			source:     SourceSeedBased,
			confidence: 1.4,
			wantURI:    "spotify:track:abc",
			wantConf:   1,
		},
		{
			name:       "floors low confidence",
			track:      Track{ID: "abc", URI: "spotify:track:xyz", Name: "Song"},
			source:     SourceFallback,
			confidence: 0.01,
			wantURI:    "spotify:track:xyz",
			wantConf:   MinConfidence,
		},
		{
			name:    "rejects missing name",
			track:   Track{ID: "abc"},
			source:  SourceFallback,
			wantErr: true,
		},
		{
			name:    "rejects unknown source",
			track:   Track{ID: "abc", Name: "Song"},
			source:  Source("radio"),
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec, err := NewRecommendation(tc.track, tc.source, tc.confidence)
			if (err != nil) != tc.wantErr {
				t.Fatalf("unexpected error state: %v", err)
			}
			if tc.wantErr {
				return
			}
			if rec.SpotifyURI != tc.wantURI {
				t.Fatalf("uri: got %q, want %q", rec.SpotifyURI, tc.wantURI)
			}
			if !floatEquals(rec.ConfidenceScore, tc.wantConf, 1e-9) {
				t.Fatalf("confidence: got %v, want %v", rec.ConfidenceScore, tc.wantConf)
			}
		})
	}
}

func TestFeatureTarget_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    float64
		isRange bool
		wantErr bool
	}{
		{name: "number", input: `0.4`, want: 0.4},
		{name: "pair", input: `[0.2, 0.6]`, want: 0.4, isRange: true},
		{name: "object range", input: `{"min": 100, "max": 140}`, want: 120, isRange: true},
		{name: "object target", input: `{"target": 0.3}`, want: 0.3},
		{name: "bad pair", input: `[0.1]`, wantErr: true},
		{name: "empty object", input: `{}`, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var ft FeatureTarget
			err := ft.UnmarshalJSON([]byte(tc.input))
			if (err != nil) != tc.wantErr {
				t.Fatalf("unexpected error state: %v", err)
			}
			if tc.wantErr {
				return
			}
			if ft.IsRange != tc.isRange {
				t.Fatalf("isRange: got %v, want %v", ft.IsRange, tc.isRange)
			}
			if !floatEquals(ft.Resolve(), tc.want, 1e-9) {
				t.Fatalf("resolve: got %v, want %v", ft.Resolve(), tc.want)
			}
		})
	}
}

func floatEquals(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}
