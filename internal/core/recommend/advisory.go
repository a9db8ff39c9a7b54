package recommend

import (
	"context"
	"strings"

	"github.com/ewilliams-labs/overture/curator/internal/core/domain"
	"github.com/ewilliams-labs/overture/curator/internal/core/ports"
	"github.com/ewilliams-labs/overture/curator/internal/metrics"
)

const artistFilterInstructions = `You curate artists for a mood playlist. From "artists", return only those that fit the mood in "prompt". Respond with JSON {"keep": ["<artist name>", ...]} using names exactly as given.`

type artistFilterAnswer struct {
	Keep []string `json:"keep"`
}

type artistFilterContext struct {
	Prompt   string   `json:"prompt"`
	Keywords []string `json:"keywords"`
	Artists  []string `json:"artists"`
}

// filterArtists asks the advisory service which discovered artists fit the
// mood. Unknown names are ignored; an empty or failed answer keeps everyone.
func (e *Engine) filterArtists(ctx context.Context, req Request, artists []domain.Artist) []domain.Artist {
	if len(artists) < 2 || e.advisory == nil {
		return artists
	}
	names := make([]string, len(artists))
	for i, a := range artists {
		names[i] = a.Name
	}

	var ans artistFilterAnswer
	err := ports.Consult(ctx, e.advisory, domain.AdvisoryPrompt{
		Task:         domain.TaskArtistFilter,
		Instructions: artistFilterInstructions,
		Context:      artistFilterContext{Prompt: req.Prompt, Keywords: req.Keywords, Artists: names},
	}, &ans)
	if err != nil {
		metrics.RecordAdvisoryFallback(string(domain.TaskArtistFilter))
		e.logger.Warn().Err(err).Msg("artist filter unavailable, keeping all artists")
		return artists
	}

	keep := make(map[string]struct{}, len(ans.Keep))
	for _, n := range ans.Keep {
		keep[strings.ToLower(strings.TrimSpace(n))] = struct{}{}
	}
	out := make([]domain.Artist, 0, len(artists))
	for _, a := range artists {
		if _, ok := keep[strings.ToLower(a.Name)]; ok {
			out = append(out, a)
		}
	}
	if len(out) == 0 {
		metrics.RecordAdvisoryFallback(string(domain.TaskArtistFilter))
		e.logger.Warn().Int("answered", len(ans.Keep)).Msg("artist filter matched nothing, keeping all artists")
		return artists
	}
	return out
}
