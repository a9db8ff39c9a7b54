package ports

import (
	"context"

	"github.com/ewilliams-labs/overture/curator/internal/core/domain"
)

// TrackCatalogClient is the search/lookup capability over the artist/track catalog.
// Every call may fail independently; callers treat failure as zero results.
type TrackCatalogClient interface {
	SearchArtists(ctx context.Context, query string, limit int) ([]domain.Artist, error)
	SearchTracksForArtists(ctx context.Context, query string, limit int) ([]domain.Artist, error)
	SearchArtistsByMood(ctx context.Context, keywords []string, limit int) ([]domain.Artist, error)
	GetArtistTopTracks(ctx context.Context, artistID string) ([]domain.Track, error)
	GetRecommendations(ctx context.Context, seeds []string, size int, featureHints map[string]float64) ([]domain.Track, error)
}
