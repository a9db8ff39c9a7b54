package recommend

import (
	"sort"
	"strings"

	"github.com/ewilliams-labs/overture/curator/internal/core/domain"
)

// Merge runs the post-generation pipeline: filter and rank, diversity
// adjustment, ratio enforcement, bucket concatenation and deduplication.
func (e *Engine) Merge(candidates []domain.TrackRecommendation, req Request) []domain.TrackRecommendation {
	ranked := e.filterAndRank(candidates, req)
	adjusted := e.diversity.Apply(ranked)
	buckets := e.enforceRatios(adjusted, req.TargetCount)
	return Dedup(buckets.concat())
}

// filterAndRank drops excluded and low-confidence candidates, then drops
// unprotected candidates that miss the mood. If the mood filter would leave
// nothing, the ranked list is kept.
func (e *Engine) filterAndRank(candidates []domain.TrackRecommendation, req Request) []domain.TrackRecommendation {
	ranked := make([]domain.TrackRecommendation, 0, len(candidates))
	for _, c := range candidates {
		if _, excluded := req.Exclude[c.TrackID]; excluded {
			continue
		}
		if !c.IsProtected() && c.Source != domain.SourceUserAnchor && c.ConfidenceScore < e.cfg.MinConfidence {
			continue
		}
		ranked = append(ranked, c)
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].ConfidenceScore > ranked[j].ConfidenceScore })

	if len(req.Target.Features) == 0 {
		return ranked
	}
	filtered := make([]domain.TrackRecommendation, 0, len(ranked))
	for _, c := range ranked {
		if c.IsProtected() || c.Source == domain.SourceUserAnchor {
			filtered = append(filtered, c)
			continue
		}
		m := e.match(c.AudioFeatures, req.Target)
		if m.Outlier || m.Score < e.cfg.MinMoodMatch {
			continue
		}
		filtered = append(filtered, c)
	}
	if len(filtered) == 0 {
		e.logger.Warn().Int("ranked", len(ranked)).Msg("mood filter removed every candidate, keeping ranked list")
		return ranked
	}
	return filtered
}

type buckets struct {
	anchor   []domain.TrackRecommendation
	artist   []domain.TrackRecommendation
	fallback []domain.TrackRecommendation
}

// enforceRatios admits every user-mentioned anchor, at most
// MaxUnmentionedAnchors other anchors, discovery tracks up to ArtistCapRatio of
// what remains and seed/fallback tracks up to the rest (at least one slot).
// Each bucket is then sorted by confidence on its own.
func (e *Engine) enforceRatios(tracks []domain.TrackRecommendation, n int) buckets {
	var mentioned, otherAnchors, artist, fallback []domain.TrackRecommendation
	for _, t := range tracks {
		switch t.Source {
		case domain.SourceUserAnchor:
			if t.UserMentioned {
				mentioned = append(mentioned, t)
			} else {
				otherAnchors = append(otherAnchors, t)
			}
		case domain.SourceArtistDiscovery:
			artist = append(artist, t)
		default:
			fallback = append(fallback, t)
		}
	}

	var b buckets
	b.anchor = take(mentioned, n)
	b.anchor = append(b.anchor, take(otherAnchors, min(e.cfg.MaxUnmentionedAnchors, n-len(b.anchor)))...)

	remaining := n - len(b.anchor)
	artistCap := int(e.cfg.ArtistCapRatio * float64(remaining))
	b.artist = take(artist, artistCap)

	fallbackCap := remaining - len(b.artist)
	if remaining > 0 && fallbackCap < 1 {
		fallbackCap = 1
	}
	b.fallback = take(fallback, fallbackCap)

	for _, s := range [][]domain.TrackRecommendation{b.anchor, b.artist, b.fallback} {
		sort.SliceStable(s, func(i, j int) bool { return s[i].ConfidenceScore > s[j].ConfidenceScore })
	}
	return b
}

// concat joins the buckets anchor, artist, fallback. The result is not re-sorted.
func (b buckets) concat() []domain.TrackRecommendation {
	out := make([]domain.TrackRecommendation, 0, len(b.anchor)+len(b.artist)+len(b.fallback))
	out = append(out, b.anchor...)
	out = append(out, b.artist...)
	return append(out, b.fallback...)
}

func take(s []domain.TrackRecommendation, n int) []domain.TrackRecommendation {
	if n <= 0 {
		return nil
	}
	if len(s) > n {
		s = s[:n]
	}
	out := make([]domain.TrackRecommendation, len(s))
	copy(out, s)
	return out
}

// Dedup keeps the first occurrence by track id, normalized name and URI.
func Dedup(tracks []domain.TrackRecommendation) []domain.TrackRecommendation {
	ids := make(map[string]struct{}, len(tracks))
	names := make(map[string]struct{}, len(tracks))
	uris := make(map[string]struct{}, len(tracks))
	out := make([]domain.TrackRecommendation, 0, len(tracks))
	for _, t := range tracks {
		if _, dup := ids[t.TrackID]; dup {
			continue
		}
		name := NormalizeTrackName(t.Name)
		if name != "" {
			if _, dup := names[name]; dup {
				continue
			}
		}
		if t.SpotifyURI != "" {
			if _, dup := uris[t.SpotifyURI]; dup {
				continue
			}
		}
		ids[t.TrackID] = struct{}{}
		if name != "" {
			names[name] = struct{}{}
		}
		if t.SpotifyURI != "" {
			uris[t.SpotifyURI] = struct{}{}
		}
		out = append(out, t)
	}
	return out
}

var variantMarkers = []string{"(", "[", " - ", " feat.", " feat ", " ft.", " ft ", " featuring "}

// NormalizeTrackName lower-cases a title and cuts it at the first variant
// marker, so "Song (Radio Edit)" and "Song - Remastered 2011" both become "song".
func NormalizeTrackName(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	cut := len(lower)
	for _, m := range variantMarkers {
		if i := strings.Index(lower, m); i > 0 && i < cut {
			cut = i
		}
	}
	return strings.Join(strings.Fields(lower[:cut]), " ")
}
