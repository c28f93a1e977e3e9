package market

import (
	"slices"

	"github.com/cryptotracker/marketview/internal/model"
)

// Merge folds incoming into canonical and returns a new collection sorted by
// rank. Records in incoming replace canonical records with the same ID in
// place; unseen IDs are appended in incoming order before sorting. Records
// without a rank sort after every ranked record. Ties keep their relative
// order.
//
// An empty incoming batch returns canonical unchanged.
func Merge(canonical, incoming []model.Record) []model.Record {
	if len(incoming) == 0 {
		return canonical
	}

	merged := make([]model.Record, 0, len(canonical)+len(incoming))
	index := make(map[string]int, len(canonical)+len(incoming))

	for _, r := range canonical {
		if i, ok := index[r.ID]; ok {
			merged[i] = r
			continue
		}
		index[r.ID] = len(merged)
		merged = append(merged, r)
	}

	for _, r := range incoming {
		if i, ok := index[r.ID]; ok {
			merged[i] = r
			continue
		}
		index[r.ID] = len(merged)
		merged = append(merged, r)
	}

	slices.SortStableFunc(merged, compareRank)
	return merged
}

// compareRank orders ranked records ascending with unranked records last.
func compareRank(a, b model.Record) int {
	switch {
	case a.HasRank() && b.HasRank():
		return a.Rank - b.Rank
	case a.HasRank():
		return -1
	case b.HasRank():
		return 1
	default:
		return 0
	}
}
