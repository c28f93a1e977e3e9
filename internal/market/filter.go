package market

import (
	"slices"
	"strings"

	"golang.org/x/text/cases"

	"github.com/cryptotracker/marketview/internal/model"
)

// NormalizeQuery trims and case-folds a search query.
func NormalizeQuery(query string) string {
	return cases.Fold().String(strings.TrimSpace(query))
}

// Filter returns the records whose name or symbol contains query, ignoring
// case, in canonical order. An empty query returns a copy of canonical.
func Filter(canonical []model.Record, query string) []model.Record {
	q := NormalizeQuery(query)
	if q == "" {
		return slices.Clone(canonical)
	}

	fold := cases.Fold()
	out := make([]model.Record, 0, len(canonical))
	for _, r := range canonical {
		if strings.Contains(fold.String(r.Name), q) || strings.Contains(fold.String(r.Symbol), q) {
			out = append(out, r)
		}
	}
	return out
}
