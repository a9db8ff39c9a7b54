package domain

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
)

// FeatureTarget is either a single target value or an inclusive [Min, Max] range.
type FeatureTarget struct {
	Value   float64
	Min     float64
	Max     float64
	IsRange bool
}

// Exact returns a single-valued target.
func Exact(v float64) FeatureTarget {
	return FeatureTarget{Value: v}
}

// Between returns a range target; the bounds are swapped when reversed.
func Between(lo, hi float64) FeatureTarget {
	if lo > hi {
		lo, hi = hi, lo
	}
	return FeatureTarget{Min: lo, Max: hi, IsRange: true}
}

// Resolve collapses the target to a single number (the midpoint of a range).
func (t FeatureTarget) Resolve() float64 {
	if t.IsRange {
		return (t.Min + t.Max) / 2
	}
	return t.Value
}

// UnmarshalJSON accepts 0.5, [0.4, 0.6] or {"min":0.4,"max":0.6} / {"target":0.5}.
func (t *FeatureTarget) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return fmt.Errorf("domain: empty feature target")
	}
	switch trimmed[0] {
	case '[':
		var pair []float64
		if err := json.Unmarshal(trimmed, &pair); err != nil {
			return fmt.Errorf("domain: decode feature range: %w", err)
		}
		if len(pair) != 2 {
			return fmt.Errorf("domain: feature range needs 2 values, got %d", len(pair))
		}
		*t = Between(pair[0], pair[1])
	case '{':
		var obj struct {
			Target *float64 `json:"target"`
			Min    *float64 `json:"min"`
			Max    *float64 `json:"max"`
		}
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return fmt.Errorf("domain: decode feature target: %w", err)
		}
		switch {
		case obj.Min != nil && obj.Max != nil:
			*t = Between(*obj.Min, *obj.Max)
		case obj.Target != nil:
			*t = Exact(*obj.Target)
		case obj.Min != nil:
			*t = Exact(*obj.Min)
		case obj.Max != nil:
			*t = Exact(*obj.Max)
		default:
			return fmt.Errorf("domain: feature target has no value")
		}
	default:
		var v float64
		if err := json.Unmarshal(trimmed, &v); err != nil {
			return fmt.Errorf("domain: decode feature value: %w", err)
		}
		*t = Exact(v)
	}
	return nil
}

// MarshalJSON writes ranges as [min,max] and single targets as numbers.
func (t FeatureTarget) MarshalJSON() ([]byte, error) {
	if t.IsRange {
		return json.Marshal([2]float64{t.Min, t.Max})
	}
	return json.Marshal(t.Value)
}

// DefaultFeatureWeight is the starting strictness of feature matching.
const DefaultFeatureWeight = 1.0

// TargetFeatures are the mood's target audio characteristics.
// FeatureWeight is the only field the orchestrator mutates.
type TargetFeatures struct {
	Features      map[string]FeatureTarget `json:"features"`
	FeatureWeight float64                  `json:"feature_weight,omitempty"`
}

// Weight returns the effective feature weight (never below the default).
func (tf TargetFeatures) Weight() float64 {
	if tf.FeatureWeight < DefaultFeatureWeight {
		return DefaultFeatureWeight
	}
	return tf.FeatureWeight
}

// Midpoints resolves every target to a single value, e.g. for catalog hints.
func (tf TargetFeatures) Midpoints() map[string]float64 {
	out := make(map[string]float64, len(tf.Features))
	for name, target := range tf.Features {
		out[name] = target.Resolve()
	}
	return out
}

// Clone copies the target so the caller may change the weight independently.
func (tf TargetFeatures) Clone() TargetFeatures {
	features := make(map[string]FeatureTarget, len(tf.Features))
	for k, v := range tf.Features {
		features[k] = v
	}
	return TargetFeatures{Features: features, FeatureWeight: tf.FeatureWeight}
}

// MoodTarget is the upstream interpreter's result for a free-text mood.
type MoodTarget struct {
	PromptText       string         `json:"prompt_text"`
	TargetFeatures   TargetFeatures `json:"target_features"`
	SearchKeywords   []string       `json:"search_keywords"`
	MentionedArtists []string       `json:"mentioned_artists,omitempty"`
	MentionedTracks  []string       `json:"mentioned_tracks,omitempty"`
}

// HasMentions reports whether the user named any artist or track explicitly.
func (m MoodTarget) HasMentions() bool {
	return len(m.MentionedArtists) > 0 || len(m.MentionedTracks) > 0
}
