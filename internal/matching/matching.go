// Package matching implements the capability matching and ranking engine.
// Given a structured query (keywords, required capability tags) and a catalog
// of action descriptors advertised by agents, it scores every descriptor
// against the query and returns a thresholded, sorted shortlist.
//
// The engine is a pure computation over in-memory inputs: no network, no
// storage, no contract I/O. Catalog acquisition and result persistence are
// the caller's concern (see internal/discovery).
//
// Word-level similarity is a deliberately cheap longest-common-prefix
// heuristic. It rewards shared stems ("trade" vs "trading") and nothing
// else; two synonyms with no common prefix score 0. That limitation defines
// current matching behavior and is kept as-is.
package matching

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the engine.
var (
	// ErrInvalidParams is returned when ranking parameters fail validation.
	ErrInvalidParams = errors.New("invalid ranking parameters")

	// ErrMalformedDescriptor marks a descriptor that cannot be scored.
	// Never escapes Rank: the offending item is collapsed to a zero-score
	// result so one bad catalog entry cannot fail the whole call.
	ErrMalformedDescriptor = errors.New("malformed descriptor")
)

// Query is the structured discovery request. All criteria are optional;
// field scorers simply omit fields whose criterion is absent.
type Query struct {
	Keywords     []string `json:"keywords,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
	// ContextTerms is accepted but not scored yet. Reserved so callers can
	// start sending context without a wire change when scoring learns to
	// use it.
	ContextTerms []string `json:"context_terms,omitempty"`
}

// Empty reports whether the query carries no scoring criteria at all.
func (q Query) Empty() bool {
	return len(q.Keywords) == 0 && len(q.Capabilities) == 0
}

// Descriptor is one advertised action's metadata. Descriptors are supplied
// by the caller per ranking call; the engine never mutates or retains them.
type Descriptor struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Similes     []string `json:"similes,omitempty"`
	// Capabilities are the advertised capability tags. When empty, an
	// effective set is derived from the normalized name and description.
	Capabilities []string `json:"capabilities,omitempty"`
}

// Validate checks the required text fields once at the boundary, so scoring
// code never re-checks them ad hoc.
func (d Descriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: name is required", ErrMalformedDescriptor)
	}
	if d.Description == "" {
		return fmt.Errorf("%w: description is required (action %q)", ErrMalformedDescriptor, d.Name)
	}
	return nil
}

// Field names a per-field score contributing to the composite.
type Field string

const (
	FieldName         Field = "name"
	FieldDescription  Field = "description"
	FieldSimiles      Field = "similes"
	FieldCapabilities Field = "capabilities"
)

// MatchResult pairs a descriptor with its per-field scores and the final
// weighted composite score in [0,1]. Ephemeral, produced per ranking call.
type MatchResult struct {
	Descriptor  Descriptor        `json:"descriptor"`
	FieldScores map[Field]float64 `json:"field_scores"`
	Score       float64           `json:"score"`
}
