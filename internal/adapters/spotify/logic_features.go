package spotify

import (
	"hash/fnv"
	"math/rand"

	"github.com/ewilliams-labs/overture/curator/internal/core/domain"
)

// generateDeterministicFeatures synthesizes a stable feature vector from the
// track id for tracks the catalog has no analysis for.
func generateDeterministicFeatures(trackID string) domain.AudioFeatures {
	hasher := fnv.New32a()
	_, _ = hasher.Write([]byte(trackID))
	seed := int64(hasher.Sum32())
	// #nosec G404 -- Deterministic RNG for reproducible audio features, not security-sensitive
	rng := rand.New(rand.NewSource(seed))

	between := func(min, max float64) float64 {
		return min + rng.Float64()*(max-min)
	}

	return domain.AudioFeatures{
		domain.FeatureEnergy:           between(0.1, 0.9),
		domain.FeatureValence:          between(0.1, 0.9),
		domain.FeatureDanceability:     between(0.1, 0.9),
		domain.FeatureAcousticness:     between(0.1, 0.9),
		domain.FeatureInstrumentalness: between(0.0, 0.5),
		domain.FeatureSpeechiness:      between(0.02, 0.3),
		domain.FeatureLiveness:         between(0.05, 0.4),
		domain.FeatureTempo:            between(60.0, 180.0),
		domain.FeatureLoudness:         between(-20.0, -4.0),
	}
}

func allFeaturesZero(features spotifyAudioFeatures) bool {
	return features.Danceability == 0 &&
		features.Energy == 0 &&
		features.Valence == 0 &&
		features.Tempo == 0 &&
		features.Instrumentalness == 0 &&
		features.Acousticness == 0
}
