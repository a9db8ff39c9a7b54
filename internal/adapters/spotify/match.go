package spotify

import (
	"sort"
	"strings"
)

// artistNameScore rates how well a catalog artist name answers a query.
// Exact normalized matches score 1; containment scores at least 0.8.
func artistNameScore(query, name string) float64 {
	q := normalizeSearchInput(query)
	n := normalizeSearchInput(name)
	if q == "" || n == "" {
		return 0
	}
	if q == n {
		return 1
	}
	score := similarity(q, n)
	if strings.Contains(n, q) || strings.Contains(q, n) {
		score = max(score, 0.8)
	}
	return score
}

// rankArtistsByName orders artists by descending name score; ties keep the
// catalog's relevance order.
func rankArtistsByName(query string, artists []spotifyArtist) []spotifyArtist {
	out := append([]spotifyArtist(nil), artists...)
	scores := make(map[string]float64, len(out))
	for _, a := range out {
		scores[a.ID] = artistNameScore(query, a.Name)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return scores[out[i].ID] > scores[out[j].ID]
	})
	return out
}

func similarity(a string, b string) float64 {
	if a == b {
		return 1.0
	}
	maxLen := max(len([]rune(a)), len([]rune(b)))
	if maxLen == 0 {
		return 1.0
	}

	distance := levenshteinDistance(a, b)
	return 1.0 - float64(distance)/float64(maxLen)
}

func levenshteinDistance(a string, b string) int {
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := 0; j <= len(rb); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 0
			if ra[i-1] != rb[j-1] {
				cost = 1
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		copy(prev, curr)
	}

	return prev[len(rb)]
}
