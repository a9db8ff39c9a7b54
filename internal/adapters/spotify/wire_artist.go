package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ewilliams-labs/overture/curator/internal/core/domain"
)

const audioFeaturesBatchSize = 100

// GetArtistTopTracks returns an artist's top tracks with audio features.
// Every attempt passes the shared rate gate.
func (c *Client) GetArtistTopTracks(ctx context.Context, artistID string) ([]domain.Track, error) {
	if artistID == "" {
		return nil, fmt.Errorf("spotify adapter: top tracks: empty artist id")
	}
	q := url.Values{}
	q.Set("market", c.market)
	endpoint := fmt.Sprintf("%s/artists/%s/top-tracks?%s", c.baseURL, url.PathEscape(artistID), q.Encode())

	var body topTracksResponse
	if err := c.getJSON(ctx, "top tracks", endpoint, c.gate, &body); err != nil {
		return nil, err
	}
	return c.withFeatures(ctx, body.Tracks), nil
}

// withFeatures maps tracks to the domain and attaches audio features. Tracks
// without a usable analysis get deterministic synthesized features.
func (c *Client) withFeatures(ctx context.Context, tracks []spotifyTrack) []domain.Track {
	if len(tracks) == 0 {
		return nil
	}
	ids := make([]string, 0, len(tracks))
	for _, t := range tracks {
		if t.ID != "" {
			ids = append(ids, t.ID)
		}
	}

	features, err := c.getAudioFeaturesBatch(ctx, ids)
	if err != nil {
		c.logger.Warn().Err(err).Int("tracks", len(ids)).Msg("audio features unavailable, synthesizing")
	}

	out := make([]domain.Track, 0, len(tracks))
	for _, t := range tracks {
		f, ok := features[t.ID]
		if !ok {
			f = generateDeterministicFeatures(t.ID)
		}
		out = append(out, mapTrackToDomain(t, f))
	}
	return out
}

// getAudioFeaturesBatch fetches features in batches of 100. A forbidden or
// missing endpoint is not an error; the caller synthesizes instead.
func (c *Client) getAudioFeaturesBatch(ctx context.Context, ids []string) (map[string]domain.AudioFeatures, error) {
	out := make(map[string]domain.AudioFeatures, len(ids))
	for start := 0; start < len(ids); start += audioFeaturesBatchSize {
		end := min(start+audioFeaturesBatchSize, len(ids))
		q := url.Values{}
		q.Set("ids", strings.Join(ids[start:end], ","))
		endpoint := fmt.Sprintf("%s/audio-features?%s", c.baseURL, q.Encode())

		var body audioFeaturesResponse
		err := c.getJSON(ctx, "audio features", endpoint, nil, &body)
		var statusErr *StatusError
		if errors.As(err, &statusErr) && (statusErr.Code == http.StatusForbidden || statusErr.Code == http.StatusNotFound) {
			c.logger.Debug().Int("status", statusErr.Code).Msg("audio features endpoint unavailable")
			return out, nil
		}
		if err != nil {
			return out, err
		}

		for _, f := range body.AudioFeatures {
			if f == nil || f.ID == "" || allFeaturesZero(*f) {
				continue
			}
			out[f.ID] = mapFeaturesToDomain(*f)
		}
	}
	return out, nil
}
