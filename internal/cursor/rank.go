package cursor

import (
	"sort"

	"github.com/hbollon/go-edlib"
)

// Scored is one candidate that passed MatchesTitleCase, along with a
// similarity score used only to order results.
type Scored struct {
	Name  string
	Score float64
}

// RankTitleCaseMatches filters candidates to those passing
// MatchesTitleCase(query, c), then orders survivors by Levenshtein
// similarity to query (closest first), breaking ties by original
// order. Grounded on the teacher's FuzzyMatcher.levenshteinSimilarity
// distance-to-similarity conversion; this never changes which
// candidates pass MatchesTitleCase, only how the survivors are sorted.
func RankTitleCaseMatches(query string, candidates []string) []Scored {
	var out []Scored
	for _, c := range candidates {
		if !MatchesTitleCase(query, c) {
			continue
		}
		out = append(out, Scored{Name: c, Score: similarity(query, c)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

// similarity returns the 0-1 Levenshtein similarity of a and b (1.0 for
// identical strings); edlib.StringsSimilarity already yields a
// similarity, not a distance, for edlib.Levenshtein. It only affects the
// order of candidates MatchesTitleCase already accepted, never which
// candidates match.
func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}
	sim, err := edlib.StringsSimilarity(a, b, edlib.Levenshtein)
	if err != nil {
		return 0.0
	}
	return float64(sim)
}
