package domain

// Audio feature dimension names shared by the catalog, scorer and orderer.
const (
	FeatureEnergy           = "energy"
	FeatureValence          = "valence"
	FeatureDanceability     = "danceability"
	FeatureTempo            = "tempo"
	FeatureLoudness         = "loudness"
	FeaturePopularity       = "popularity"
	FeatureSpeechiness      = "speechiness"
	FeatureInstrumentalness = "instrumentalness"
	FeatureAcousticness     = "acousticness"
	FeatureLiveness         = "liveness"
)

// AudioFeatures maps a feature dimension to its computed value.
// A nil or empty map means the features are unknown.
type AudioFeatures map[string]float64

// Get returns the value for a dimension and whether it is present.
func (f AudioFeatures) Get(name string) (float64, bool) {
	if f == nil {
		return 0, false
	}
	v, ok := f[name]
	return v, ok
}

// Clone returns an independent copy of the feature map.
func (f AudioFeatures) Clone() AudioFeatures {
	if f == nil {
		return nil
	}
	out := make(AudioFeatures, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Track represents an unscored catalog candidate.
type Track struct {
	ID         string
	URI        string
	Name       string
	Artists    []string
	ArtistIDs  []string
	Album      string
	Popularity int
	PreviewURL string
	Features   AudioFeatures
}

// Artist is a catalog artist, optionally carrying sample tracks.
type Artist struct {
	ID         string
	Name       string
	Genres     []string
	Popularity int
	Tracks     []Track
}
