package spotify

import "github.com/ewilliams-labs/overture/curator/internal/core/domain"

// mapTrackToDomain converts a raw Spotify track. features may be nil when the
// analysis is unknown; popularity is always folded into the feature map.
func mapTrackToDomain(st spotifyTrack, features domain.AudioFeatures) domain.Track {
	names := make([]string, 0, len(st.Artists))
	ids := make([]string, 0, len(st.Artists))
	for _, a := range st.Artists {
		names = append(names, a.Name)
		ids = append(ids, a.ID)
	}

	f := features.Clone()
	if f == nil {
		f = domain.AudioFeatures{}
	}
	f[domain.FeaturePopularity] = float64(st.Popularity)

	return domain.Track{
		ID:         st.ID,
		URI:        st.URI,
		Name:       st.Name,
		Artists:    names,
		ArtistIDs:  ids,
		Album:      st.Album.Name,
		Popularity: st.Popularity,
		PreviewURL: st.PreviewURL,
		Features:   f,
	}
}

func mapArtistToDomain(sa spotifyArtist) domain.Artist {
	return domain.Artist{
		ID:         sa.ID,
		Name:       sa.Name,
		Genres:     append([]string(nil), sa.Genres...),
		Popularity: sa.Popularity,
	}
}

func mapFeaturesToDomain(f spotifyAudioFeatures) domain.AudioFeatures {
	return domain.AudioFeatures{
		domain.FeatureDanceability:     f.Danceability,
		domain.FeatureEnergy:           f.Energy,
		domain.FeatureValence:          f.Valence,
		domain.FeatureTempo:            f.Tempo,
		domain.FeatureLoudness:         f.Loudness,
		domain.FeatureSpeechiness:      f.Speechiness,
		domain.FeatureInstrumentalness: f.Instrumentalness,
		domain.FeatureAcousticness:     f.Acousticness,
		domain.FeatureLiveness:         f.Liveness,
	}
}

// groupByPrimaryArtist folds tracks into artists keyed by their first
// credited artist, keeping first-seen order.
func groupByPrimaryArtist(tracks []domain.Track) []domain.Artist {
	index := make(map[string]int)
	var out []domain.Artist
	for _, t := range tracks {
		if len(t.Artists) == 0 {
			continue
		}
		key := t.Artists[0]
		id := ""
		if len(t.ArtistIDs) > 0 && t.ArtistIDs[0] != "" {
			id = t.ArtistIDs[0]
			key = id
		}
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, domain.Artist{ID: id, Name: t.Artists[0]})
		}
		out[i].Tracks = append(out[i].Tracks, t)
	}
	return out
}
