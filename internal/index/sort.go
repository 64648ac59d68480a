package index

import (
	"slices"

	"github.com/wesm/mboxbrowser/internal/model"
)

// SortByDate orders entries newest first and renumbers Sequence to the new
// positions. Entries with equal dates keep their relative order, so sorting
// the same input twice yields the same result.
func SortByDate(entries []model.IndexEntry) {
	slices.SortStableFunc(entries, func(a, b model.IndexEntry) int {
		return b.Date.Compare(a.Date)
	})
	for i := range entries {
		entries[i].Sequence = i
	}
}
