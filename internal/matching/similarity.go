package matching

import "strings"

// Levenshtein computes the edit distance between two strings over runes,
// using single-row dynamic programming. Symmetric, zero for equal inputs,
// satisfies the triangle inequality. The ranking path reaches words through
// WordSimilarity instead, but the metric is kept as the reference primitive
// the cheaper heuristic is measured against.
func Levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	cur := make([]int, len(rb)+1)

	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			ins := cur[j-1] + 1
			del := prev[j] + 1
			sub := prev[j-1] + cost
			v := ins
			if del < v {
				v = del
			}
			if sub < v {
				v = sub
			}
			cur[j] = v
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

// WordSimilarity scores two words in [0,1] as the length of their longest
// common prefix divided by the longer length, case-insensitive. A crude
// stand-in for semantic similarity: shared stems score high, synonyms with
// different stems score 0. Two empty words score 0.
func WordSimilarity(w1, w2 string) float64 {
	a := []rune(strings.ToLower(w1))
	b := []rune(strings.ToLower(w2))

	longer := len(a)
	if len(b) > longer {
		longer = len(b)
	}
	if longer == 0 {
		return 0
	}

	prefix := 0
	for prefix < len(a) && prefix < len(b) && a[prefix] == b[prefix] {
		prefix++
	}
	return float64(prefix) / float64(longer)
}

// Jaccard computes intersection-over-union of two term sets in [0,1].
// Two empty sets score 0 rather than dividing by zero.
func Jaccard(a, b TermSet) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}

	inter := 0
	for t := range a {
		if b.Contains(t) {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
