package matching

import (
	"strings"
	"sync"
)

// Scoring constants. Every weight and threshold the engine uses lives here
// so the values stay auditable in one place.
const (
	// Field weights applied to the (possibly pre-discounted) field scores.
	// They sum to 1.0, but absent fields are skipped without renormalizing,
	// so a match with a single applicable field cannot reach 1.0 unless that
	// field's weight alone is 1. That under-normalization is intentional.
	weightName         = 0.4
	weightDescription  = 0.3
	weightSimiles      = 0.1
	weightCapabilities = 0.2

	// Discounts applied to the raw Jaccard similarity before weighting:
	// description and simile overlap count for less than name overlap.
	descriptionDiscount = 0.8
	simileDiscount      = 0.6

	// capabilityAcceptance is the cutoff a query tag's best word similarity
	// must strictly exceed to count as matched. Exactly 0.70 does not match.
	capabilityAcceptance = 0.7
)

// fieldWeight returns the composite weight for a field.
func fieldWeight(f Field) float64 {
	switch f {
	case FieldName:
		return weightName
	case FieldDescription:
		return weightDescription
	case FieldSimiles:
		return weightSimiles
	case FieldCapabilities:
		return weightCapabilities
	}
	return 0
}

// Matcher scores descriptors against queries. It is stateless apart from a
// read-mostly normalization cache keyed by exact input string, so a single
// Matcher is safe for concurrent use and calls stay deterministic.
type Matcher struct {
	terms sync.Map // string -> TermSet
}

// NewMatcher creates a Matcher with an empty normalization cache.
func NewMatcher() *Matcher {
	return &Matcher{}
}

// normalize is Normalize with per-input memoization. Catalogs repeat the
// same names and capability tags across ranking calls, so the hit rate is
// high in steady state.
func (m *Matcher) normalize(text string) TermSet {
	if cached, ok := m.terms.Load(text); ok {
		return cached.(TermSet)
	}
	set := Normalize(text)
	m.terms.Store(text, set)
	return set
}

// ScoreOne scores a single descriptor against a query. A descriptor that
// cannot be scored (missing required fields) yields Score 0 with an empty
// field-score map rather than an error, matching the batch containment
// policy. Intended for diagnostics and tests; Rank is the production path.
func (m *Matcher) ScoreOne(d Descriptor, q Query) MatchResult {
	res, err := m.score(d, q)
	if err != nil {
		return MatchResult{Descriptor: d, FieldScores: map[Field]float64{}}
	}
	return res
}

// score computes field scores and the weighted composite. The error return
// keeps the failure path type-visible; callers decide whether to surface or
// collapse it.
func (m *Matcher) score(d Descriptor, q Query) (MatchResult, error) {
	if err := d.Validate(); err != nil {
		return MatchResult{}, err
	}

	fields := make(map[Field]float64, 4)

	if len(q.Keywords) > 0 {
		queryTerms := m.normalize(strings.Join(q.Keywords, " "))

		fields[FieldName] = Jaccard(m.normalize(d.Name), queryTerms)
		fields[FieldDescription] = descriptionDiscount * Jaccard(m.normalize(d.Description), queryTerms)

		if len(d.Similes) > 0 {
			simileTerms := m.normalize(strings.Join(d.Similes, " "))
			fields[FieldSimiles] = simileDiscount * Jaccard(simileTerms, queryTerms)
		}
	}

	if len(q.Capabilities) > 0 {
		fields[FieldCapabilities] = capabilityScore(q.Capabilities, m.effectiveCapabilities(d))
	}

	var composite float64
	for f, s := range fields {
		composite += s * fieldWeight(f)
	}

	return MatchResult{Descriptor: d, FieldScores: fields, Score: composite}, nil
}

// effectiveCapabilities returns the descriptor's advertised capability tags,
// or terms derived from its name and description when none are advertised.
func (m *Matcher) effectiveCapabilities(d Descriptor) []string {
	if len(d.Capabilities) > 0 {
		return d.Capabilities
	}
	return m.normalize(d.Name + " " + d.Description).Terms()
}

// capabilityScore matches each query tag against its best-similar advertised
// tag and averages the best similarities over matched tags only. A tag is
// matched when its best similarity strictly exceeds capabilityAcceptance.
//
// Unmatched query tags are dropped from the denominator rather than
// penalized: a five-tag query with one tag matching at 0.9 scores 0.9, not
// 0.18. Known scoring bias, kept until intent is settled.
func capabilityScore(queryTags, advertised []string) float64 {
	var sum float64
	var matched int

	for _, qt := range queryTags {
		best := 0.0
		for _, tag := range advertised {
			if s := WordSimilarity(qt, tag); s > best {
				best = s
			}
		}
		if best > capabilityAcceptance {
			sum += best
			matched++
		}
	}

	if matched == 0 {
		return 0
	}
	return sum / float64(matched)
}
