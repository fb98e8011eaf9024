// internal/discovery/similarity.go
package discovery

import "strings"

// Confidence tiers used by the discovery strategies. These are heuristic
// constants tuned against real pages; changing them shifts the ranking of
// every alternative the system has ever suggested, so they stay put.
const (
	minTextScore       = 0.3
	attributeMatchConf = 0.9
	exactRoleConf      = 0.7
	implicitRoleConf   = 0.6
	tagMatchConf       = 0.5
)

// normalizeText lowercases and collapses all whitespace runs to single
// spaces so scoring ignores case and formatting differences.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// textSimilarity scores how well a candidate's composite text matches the
// target. Exact match (after normalization) is 1.0, candidate containing the
// target 0.8, target containing the candidate 0.6, anything else falls back
// to a Levenshtein ratio in [0,1].
func textSimilarity(target, candidate string) float64 {
	t := normalizeText(target)
	c := normalizeText(candidate)

	switch {
	case c == "":
		return 0
	case t == c:
		return 1.0
	case strings.Contains(c, t):
		return 0.8
	case strings.Contains(t, c):
		return 0.6
	}

	distance := levenshtein(t, c)
	longest := max(len([]rune(t)), len([]rune(c)))
	if longest == 0 {
		return 1.0
	}
	return 1.0 - float64(distance)/float64(longest)
}

// levenshtein computes the edit distance between two strings, rune-wise,
// using the classic two-row dynamic program.
func levenshtein(a, b string) int {
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
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, min(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
