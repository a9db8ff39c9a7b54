package spotify

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/ewilliams-labs/overture/curator/internal/core/domain"
)

const (
	maxRecommendationSeeds = 5
	maxRecommendationLimit = 100
)

// tunableFeatures lists the hints the recommendations endpoint accepts as
// target_* parameters, with their valid ranges.
var tunableFeatures = map[string][2]float64{
	domain.FeatureEnergy:           {0, 1},
	domain.FeatureValence:          {0, 1},
	domain.FeatureDanceability:     {0, 1},
	domain.FeatureAcousticness:     {0, 1},
	domain.FeatureInstrumentalness: {0, 1},
	domain.FeatureSpeechiness:      {0, 1},
	domain.FeatureLiveness:         {0, 1},
	domain.FeatureTempo:            {0, 250},
	domain.FeatureLoudness:         {-60, 0},
	domain.FeaturePopularity:       {0, 100},
}

// GetRecommendations asks the catalog for tracks similar to the seed tracks,
// steered by target feature hints. Out-of-range or unknown hints are dropped.
func (c *Client) GetRecommendations(ctx context.Context, seeds []string, size int, featureHints map[string]float64) ([]domain.Track, error) {
	if len(seeds) == 0 || size <= 0 {
		return nil, nil
	}
	if len(seeds) > maxRecommendationSeeds {
		seeds = seeds[:maxRecommendationSeeds]
	}

	q := url.Values{}
	q.Set("seed_tracks", strings.Join(seeds, ","))
	q.Set("limit", strconv.Itoa(min(size, maxRecommendationLimit)))
	if c.market != "" {
		q.Set("market", c.market)
	}
	for name, v := range featureHints {
		bounds, ok := tunableFeatures[name]
		if !ok || v < bounds[0] || v > bounds[1] {
			continue
		}
		if name == domain.FeaturePopularity {
			q.Set("target_popularity", strconv.Itoa(int(v)))
			continue
		}
		q.Set("target_"+name, strconv.FormatFloat(v, 'f', -1, 64))
	}
	endpoint := fmt.Sprintf("%s/recommendations?%s", c.baseURL, q.Encode())
	c.logger.Debug().Int("seeds", len(seeds)).Strs("hints", hintNames(featureHints)).Msg("requesting recommendations")

	var body recommendationsResponse
	if err := c.getJSON(ctx, "recommendations", endpoint, nil, &body); err != nil {
		return nil, err
	}
	return c.withFeatures(ctx, body.Tracks), nil
}

// hintNames is used in logs.
func hintNames(h map[string]float64) []string {
	names := make([]string, 0, len(h))
	for k := range h {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
