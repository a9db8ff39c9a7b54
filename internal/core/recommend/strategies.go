package recommend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ewilliams-labs/overture/curator/internal/core/domain"
)

const (
	anchorConfidence    = 1.0
	maxSeeds            = 5
	minSeedRequest      = 5
	fallbackSearchLimit = 50
)

// anchorStrategy returns explicitly named tracks plus top tracks of explicitly
// named artists. Anchors are never filtered by mood.
func (e *Engine) anchorStrategy(ctx context.Context, req Request, _ Plan) ([]domain.TrackRecommendation, error) {
	out := make([]domain.TrackRecommendation, 0, len(req.Anchors))
	for _, t := range req.Anchors {
		rec, err := domain.NewRecommendation(t, domain.SourceUserAnchor, anchorConfidence)
		if err != nil {
			e.logger.Warn().Err(err).Msg("skipping malformed anchor")
			continue
		}
		rec.UserMentioned = true
		rec.Protected = true
		out = append(out, rec)
	}

	var errs []error
	for _, name := range req.UserMentions {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		tracks, err := e.mentionedArtistTracks(ctx, name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, t := range tracks {
			m := e.match(t.Features, req.Target)
			rec, err := domain.NewRecommendation(t, domain.SourceUserAnchor, 0.85+0.15*m.Score)
			if err != nil {
				continue
			}
			rec.UserMentionedArtist = true
			out = append(out, rec)
		}
	}
	if len(out) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

func (e *Engine) mentionedArtistTracks(ctx context.Context, name string) ([]domain.Track, error) {
	artists, err := e.catalog.SearchArtists(ctx, name, 1)
	if err != nil {
		return nil, fmt.Errorf("recommend: search mentioned artist %q: %w", name, err)
	}
	if len(artists) == 0 {
		return nil, nil
	}
	tracks, err := e.topTracks(ctx, artists[0])
	if err != nil {
		return nil, fmt.Errorf("recommend: top tracks for %q: %w", name, err)
	}
	if len(tracks) > e.cfg.MentionedArtistTracks {
		tracks = tracks[:e.cfg.MentionedArtistTracks]
	}
	return tracks, nil
}

// discoveryStrategy searches artists by mood (and around mentioned artists),
// lets the advisory service prune them, then takes each artist's best
// matching top tracks.
func (e *Engine) discoveryStrategy(ctx context.Context, req Request, plan Plan) ([]domain.TrackRecommendation, error) {
	if plan.Artist <= 0 {
		return nil, nil
	}
	artists, err := e.discoverArtists(ctx, req)
	if err != nil && len(artists) == 0 {
		return nil, err
	}
	artists = e.filterArtists(ctx, req, artists)

	needed := (plan.Artist+e.cfg.TracksPerArtist-1)/e.cfg.TracksPerArtist + 2
	if needed > e.cfg.MaxArtists {
		needed = e.cfg.MaxArtists
	}
	if len(artists) > needed {
		artists = artists[:needed]
	}

	var out []domain.TrackRecommendation
	var errs []error
	for _, a := range artists {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		tracks, err := e.topTracks(ctx, a)
		if err != nil {
			errs = append(errs, fmt.Errorf("recommend: top tracks for %q: %w", a.Name, err))
			continue
		}
		out = append(out, e.bestMatches(tracks, req, domain.SourceArtistDiscovery, e.cfg.TracksPerArtist, 0.3, 0.7)...)
	}
	if len(out) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

func (e *Engine) discoverArtists(ctx context.Context, req Request) ([]domain.Artist, error) {
	seen := make(map[string]struct{})
	mentioned := make(map[string]struct{}, len(req.UserMentions))
	for _, m := range req.UserMentions {
		mentioned[strings.ToLower(strings.TrimSpace(m))] = struct{}{}
	}
	var out []domain.Artist
	add := func(list []domain.Artist) {
		for _, a := range list {
			if a.ID == "" {
				continue
			}
			if _, dup := seen[a.ID]; dup {
				continue
			}
			if _, isMentioned := mentioned[strings.ToLower(a.Name)]; isMentioned {
				continue
			}
			seen[a.ID] = struct{}{}
			out = append(out, a)
		}
	}

	var errs []error
	if len(req.Keywords) > 0 {
		artists, err := e.catalog.SearchArtistsByMood(ctx, req.Keywords, e.cfg.MaxArtists*2)
		if err != nil {
			errs = append(errs, fmt.Errorf("recommend: mood artist search: %w", err))
		}
		add(artists)
	}
	for _, name := range req.UserMentions {
		artists, err := e.catalog.SearchArtists(ctx, name, 5)
		if err != nil {
			errs = append(errs, fmt.Errorf("recommend: related artist search %q: %w", name, err))
			continue
		}
		add(artists)
	}
	return out, errors.Join(errs...)
}

// seedStrategy asks the catalog for tracks similar to the seeds.
func (e *Engine) seedStrategy(ctx context.Context, req Request, plan Plan) ([]domain.TrackRecommendation, error) {
	if len(req.Seeds) == 0 {
		return nil, nil
	}
	seeds := req.Seeds
	if len(seeds) > maxSeeds {
		seeds = seeds[:maxSeeds]
	}
	size := plan.Seed * 2
	if size < minSeedRequest {
		size = minSeedRequest
	}
	tracks, err := e.catalog.GetRecommendations(ctx, seeds, size, req.Target.Midpoints())
	if err != nil {
		return nil, fmt.Errorf("recommend: seed recommendations: %w", err)
	}
	return e.bestMatches(tracks, req, domain.SourceSeedBased, len(tracks), 0.25, 0.65), nil
}

// fallbackStrategy searches tracks by mood keywords alone.
func (e *Engine) fallbackStrategy(ctx context.Context, req Request, _ Plan) ([]domain.TrackRecommendation, error) {
	query := strings.TrimSpace(strings.Join(req.Keywords, " "))
	if query == "" {
		query = strings.TrimSpace(req.Prompt)
	}
	if query == "" {
		return nil, nil
	}
	limit := req.TargetCount * 2
	if limit > fallbackSearchLimit {
		limit = fallbackSearchLimit
	}
	artists, err := e.catalog.SearchTracksForArtists(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("recommend: fallback search %q: %w", query, err)
	}
	var tracks []domain.Track
	for _, a := range artists {
		tracks = append(tracks, a.Tracks...)
	}
	return e.bestMatches(tracks, req, domain.SourceFallback, len(tracks), 0.2, 0.6), nil
}

func (e *Engine) topTracks(ctx context.Context, a domain.Artist) ([]domain.Track, error) {
	if len(a.Tracks) > 0 {
		return a.Tracks, nil
	}
	return e.catalog.GetArtistTopTracks(ctx, a.ID)
}

// bestMatches converts tracks to recommendations scored as base+span*match and
// keeps the best limit of them. Excluded ids never take a slot.
func (e *Engine) bestMatches(tracks []domain.Track, req Request, source domain.Source, limit int, base, span float64) []domain.TrackRecommendation {
	target := req.Target
	out := make([]domain.TrackRecommendation, 0, len(tracks))
	for _, t := range tracks {
		if _, excluded := req.Exclude[t.ID]; excluded {
			continue
		}
		m := e.match(t.Features, target)
		rec, err := domain.NewRecommendation(t, source, base+span*m.Score)
		if err != nil {
			continue
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ConfidenceScore > out[j].ConfidenceScore })
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
