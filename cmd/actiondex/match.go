package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jkaninda/actiondex/internal/matching"
	goutils "github.com/jkaninda/go-utils"
)

var (
	matchCatalogPath  string
	matchCapabilities string
	matchContext      string
	matchMinScore     float64
	matchMaxResults   int
)

var matchCmd = &cobra.Command{
	Use:   "match [keywords...]",
	Short: "Rank a catalog file against a query without starting a server",
	Long: `Match loads action descriptors from a YAML or JSON catalog file and ranks
them against the given keywords, printing the scored shortlist as JSON.
Useful for tuning descriptors and testing queries offline.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runMatch,
}

func init() {
	matchCmd.Flags().StringVar(&matchCatalogPath, "catalog", "", "path to catalog file (YAML or JSON list of descriptors)")
	matchCmd.Flags().StringVar(&matchCapabilities, "capabilities", "", "comma-separated capability tags to match")
	matchCmd.Flags().StringVar(&matchContext, "context", "", "comma-separated context terms")
	matchCmd.Flags().Float64Var(&matchMinScore, "min-score", matching.DefaultMinScore, "minimum composite score")
	matchCmd.Flags().IntVar(&matchMaxResults, "max-results", matching.DefaultMaxResults, "maximum number of results")
	_ = matchCmd.MarkFlagRequired("catalog")
}

func runMatch(_ *cobra.Command, args []string) error {
	path := goutils.Env("ACTIONDEX_CATALOG", matchCatalogPath)

	descriptors, err := loadCatalogFile(path)
	if err != nil {
		return err
	}

	q := matching.Query{
		Keywords:     args,
		Capabilities: splitCSV(matchCapabilities),
		ContextTerms: splitCSV(matchContext),
	}

	results, err := matching.NewMatcher().RankWithParams(descriptors, q, matchMinScore, matchMaxResults)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

// loadCatalogFile reads a list of action descriptors from a YAML or JSON file.
// The format is detected by file extension.
func loadCatalogFile(path string) ([]matching.Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog %s: %w", path, err)
	}

	var descriptors []matching.Descriptor
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yml", ".yaml":
		if err := yaml.Unmarshal(data, &descriptors); err != nil {
			return nil, fmt.Errorf("parsing YAML catalog %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, &descriptors); err != nil {
			return nil, fmt.Errorf("parsing JSON catalog %s: %w", path, err)
		}
	}

	if len(descriptors) == 0 {
		return nil, fmt.Errorf("catalog %s contains no descriptors", path)
	}
	return descriptors, nil
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
