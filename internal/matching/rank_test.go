package matching

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"testing"
)

func TestRankSingleMatch(t *testing.T) {
	m := NewMatcher()
	catalog := []Descriptor{{
		Name:         "Market Analyzer",
		Description:  "predicts stock trends",
		Capabilities: []string{"market_analysis"},
	}}
	q := Query{
		Keywords:     []string{"market", "trends"},
		Capabilities: []string{"market_analysis"},
	}

	results := m.Rank(catalog, q)
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}

	// name: |{market}| / |{market, analyzer, trends}| * 0.4
	// description: 0.8 * |{trends}| / |{predicts, stock, trends, market}| * 0.3
	// capabilities: exact tag match, similarity 1.0 * 0.2
	want := (1.0/3.0)*0.4 + 0.8*0.25*0.3 + 1.0*0.2
	if got := results[0].Score; math.Abs(got-want) > 1e-9 {
		t.Errorf("composite score = %v, want %v", got, want)
	}
	if results[0].Score < DefaultMinScore {
		t.Errorf("score %v below default threshold %v", results[0].Score, DefaultMinScore)
	}
}

func TestRankUnrelatedDescriptorFiltered(t *testing.T) {
	m := NewMatcher()
	catalog := []Descriptor{{
		Name:         "Weather Station",
		Description:  "reports local humidity readings",
		Capabilities: []string{"weather_reporting"},
	}}
	q := Query{
		Keywords:     []string{"token", "swap"},
		Capabilities: []string{"defi_trading"},
	}

	results := m.Rank(catalog, q)
	if len(results) != 0 {
		t.Errorf("got %d results, want none below the default threshold", len(results))
	}
}

func TestRankTruncationAndOrdering(t *testing.T) {
	m := NewMatcher()

	catalog := make([]Descriptor, 100)
	for i := range catalog {
		if i%2 == 0 {
			catalog[i] = Descriptor{
				Name:         fmt.Sprintf("Trade Executor %d", i),
				Description:  "executes trades on market signals",
				Capabilities: []string{"trade_execution"},
			}
		} else {
			catalog[i] = Descriptor{
				Name:        fmt.Sprintf("Log Archiver %d", i),
				Description: "archives rotated log files",
			}
		}
	}
	q := Query{
		Keywords:     []string{"trade", "market"},
		Capabilities: []string{"trade_execution"},
	}

	results, err := m.RankWithParams(catalog, q, DefaultMinScore, 10)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if len(results) != 10 {
		t.Fatalf("got %d results, want 10", len(results))
	}
	if !sort.SliceIsSorted(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	}) {
		t.Error("results are not sorted by score descending")
	}
}

func TestRankStableTieBreak(t *testing.T) {
	m := NewMatcher()
	// Identical descriptors apart from the name suffix digit, which falls
	// below the term length cutoff, so all score exactly the same.
	catalog := []Descriptor{
		{Name: "Swapper A1", Description: "swaps tokens"},
		{Name: "Swapper B2", Description: "swaps tokens"},
		{Name: "Swapper C3", Description: "swaps tokens"},
	}
	q := Query{Keywords: []string{"swapper", "swaps", "tokens"}}

	results, err := m.RankWithParams(catalog, q, 0, 10)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	for i, want := range []string{"Swapper A1", "Swapper B2", "Swapper C3"} {
		if results[i].Descriptor.Name != want {
			t.Errorf("result %d = %q, want %q (catalog order on ties)", i, results[i].Descriptor.Name, want)
		}
	}
}

func TestRankDeterministicUnderParallelScoring(t *testing.T) {
	m := NewMatcher()
	catalog := make([]Descriptor, 200) // well past the parallel threshold
	for i := range catalog {
		catalog[i] = Descriptor{
			Name:         fmt.Sprintf("Action %d variant", i),
			Description:  fmt.Sprintf("performs task number %d with market data", i),
			Capabilities: []string{fmt.Sprintf("cap_%d", i%7), "market_analysis"},
		}
	}
	q := Query{Keywords: []string{"market", "task"}, Capabilities: []string{"market_analysis"}}

	first := m.Rank(catalog, q)
	second := m.Rank(catalog, q)
	if !reflect.DeepEqual(first, second) {
		t.Error("two invocations of Rank produced different output")
	}
}

func TestRankContainsMalformedEntries(t *testing.T) {
	m := NewMatcher()
	catalog := []Descriptor{
		{Name: "Broken", Description: ""}, // malformed: scores zero, never aborts the batch
		{Name: "swap tokens", Description: "swap tokens"},
	}
	q := Query{Keywords: []string{"swap", "tokens"}}

	results, err := m.RankWithParams(catalog, q, 0.1, 10)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1 (malformed entry filtered)", len(results))
	}
	if results[0].Descriptor.Name != "swap tokens" {
		t.Errorf("unexpected survivor %q", results[0].Descriptor.Name)
	}
}

func TestRankParamValidation(t *testing.T) {
	m := NewMatcher()
	catalog := []Descriptor{{Name: "x", Description: "y"}}

	tests := []struct {
		name       string
		minScore   float64
		maxResults int
	}{
		{"negative max results", 0.3, -1},
		{"zero max results", 0.3, 0},
		{"min score above one", 1.5, 10},
		{"negative min score", -0.1, 10},
		{"NaN min score", math.NaN(), 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.RankWithParams(catalog, Query{}, tt.minScore, tt.maxResults)
			if !errors.Is(err, ErrInvalidParams) {
				t.Errorf("got err %v, want ErrInvalidParams", err)
			}
		})
	}
}

func TestRankEmptyInputs(t *testing.T) {
	m := NewMatcher()

	if results := m.Rank(nil, Query{Keywords: []string{"anything"}}); len(results) != 0 {
		t.Errorf("empty catalog returned %d results", len(results))
	}

	catalog := []Descriptor{{Name: "Swapper", Description: "swaps tokens"}}
	results, err := m.RankWithParams(catalog, Query{}, 0, 10)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	// An empty query yields no field scores; composite 0 passes a zero
	// threshold but carries no signal.
	if len(results) != 1 || results[0].Score != 0 {
		t.Errorf("empty query results = %+v, want single zero-score result", results)
	}
}
