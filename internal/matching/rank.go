package matching

import (
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"
)

// Ranking defaults, applied when the caller uses Rank instead of
// RankWithParams.
const (
	DefaultMinScore   = 0.3
	DefaultMaxResults = 50
)

// Catalogs below this size are scored sequentially; the goroutine fan-out
// only pays for itself on larger batches.
const parallelThreshold = 64

// Rank scores the whole catalog against the query with the default minimum
// score and result cap. Parameters are known-valid, so no error is possible.
func (m *Matcher) Rank(catalog []Descriptor, q Query) []MatchResult {
	results, _ := m.RankWithParams(catalog, q, DefaultMinScore, DefaultMaxResults)
	return results
}

// RankWithParams scores every descriptor independently, discards results
// below minScore, sorts the rest by composite score descending, and
// truncates to maxResults. The sort is stable: equal scores keep their
// original catalog order.
//
// A descriptor that fails to score is contained as a zero-score result (and
// therefore filtered out by any positive minScore) — a single bad catalog
// entry never fails the call. Invalid parameters, by contrast, are the
// caller's bug and are surfaced as ErrInvalidParams.
func (m *Matcher) RankWithParams(catalog []Descriptor, q Query, minScore float64, maxResults int) ([]MatchResult, error) {
	if math.IsNaN(minScore) || minScore < 0 || minScore > 1 {
		return nil, fmt.Errorf("%w: min score must be in [0,1], got %v", ErrInvalidParams, minScore)
	}
	if maxResults < 1 {
		return nil, fmt.Errorf("%w: max results must be positive, got %d", ErrInvalidParams, maxResults)
	}

	if len(catalog) == 0 {
		return []MatchResult{}, nil
	}

	scored := m.scoreAll(catalog, q)

	results := scored[:0]
	for _, r := range scored {
		if r.Score >= minScore {
			results = append(results, r)
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > maxResults {
		results = results[:maxResults]
	}
	return results, nil
}

// scoreAll scores each descriptor, fanning out over workers for large
// catalogs. Results land at their catalog index, so the output is identical
// whichever path runs.
func (m *Matcher) scoreAll(catalog []Descriptor, q Query) []MatchResult {
	results := make([]MatchResult, len(catalog))

	if len(catalog) < parallelThreshold {
		for i, d := range catalog {
			results[i] = m.ScoreOne(d, q)
		}
		return results
	}

	workers := runtime.GOMAXPROCS(0)
	if workers > len(catalog) {
		workers = len(catalog)
	}

	var wg sync.WaitGroup
	indices := make(chan int)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indices {
				results[i] = m.ScoreOne(catalog[i], q)
			}
		}()
	}
	for i := range catalog {
		indices <- i
	}
	close(indices)
	wg.Wait()

	return results
}
