package spotify

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/ewilliams-labs/overture/curator/internal/core/domain"
)

const maxSearchLimit = 50

func clampLimit(limit int) int {
	if limit <= 0 {
		return 1
	}
	return min(limit, maxSearchLimit)
}

func (c *Client) searchURL(query, kind string, limit int) string {
	q := url.Values{}
	q.Set("q", query)
	q.Set("type", kind)
	q.Set("limit", strconv.Itoa(clampLimit(limit)))
	if c.market != "" {
		q.Set("market", c.market)
	}
	return fmt.Sprintf("%s/search?%s", c.baseURL, q.Encode())
}

// SearchArtists finds artists by name, best name match first.
func (c *Client) SearchArtists(ctx context.Context, query string, limit int) ([]domain.Artist, error) {
	if query == "" {
		return nil, nil
	}
	items, err := c.searchArtistItems(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	ranked := rankArtistsByName(query, items)
	out := make([]domain.Artist, 0, len(ranked))
	for _, a := range ranked {
		out = append(out, mapArtistToDomain(a))
	}
	return out, nil
}

func (c *Client) searchArtistItems(ctx context.Context, query string, limit int) ([]spotifyArtist, error) {
	var body artistSearchResponse
	if err := c.getJSON(ctx, "artist search", c.searchURL(query, "artist", limit), nil, &body); err != nil {
		return nil, err
	}
	return body.Artists.Items, nil
}

// SearchTracksForArtists runs a free-text track search and groups the hits by
// primary artist. Each returned artist carries its matching tracks.
func (c *Client) SearchTracksForArtists(ctx context.Context, query string, limit int) ([]domain.Artist, error) {
	if query == "" {
		return nil, nil
	}
	var body trackSearchResponse
	if err := c.getJSON(ctx, "track search", c.searchURL(query, "track", limit), nil, &body); err != nil {
		return nil, err
	}

	tracks := c.withFeatures(ctx, body.Tracks.Items)
	return groupByPrimaryArtist(tracks), nil
}

// SearchArtistsByMood searches genre filters built from the keywords and
// merges the results by artist id. A failing query is skipped unless every
// query fails.
func (c *Client) SearchArtistsByMood(ctx context.Context, keywords []string, limit int) ([]domain.Artist, error) {
	queries := moodQueries(keywords)
	if len(queries) == 0 || limit <= 0 {
		return nil, nil
	}

	seen := make(map[string]struct{})
	var (
		out     []domain.Artist
		lastErr error
		failed  int
	)
	for _, q := range queries {
		if len(out) >= limit {
			break
		}
		items, err := c.searchArtistItems(ctx, q, limit)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			c.logger.Warn().Err(err).Str("query", q).Msg("mood artist search failed")
			lastErr = err
			failed++
			continue
		}
		for _, a := range items {
			if _, dup := seen[a.ID]; dup || a.ID == "" {
				continue
			}
			seen[a.ID] = struct{}{}
			out = append(out, mapArtistToDomain(a))
			if len(out) >= limit {
				break
			}
		}
	}

	if failed == len(queries) {
		return nil, lastErr
	}
	return out, nil
}
