package session

import (
	"slices"

	"github.com/wesm/mboxbrowser/internal/model"
)

// countLabels counts every label occurrence, duplicates within one entry
// included. The result is ordered by count descending; equal counts keep the
// order in which the labels first appear in entries.
func countLabels(entries []model.IndexEntry) []LabelCount {
	pos := make(map[string]int)
	var out []LabelCount
	for i := range entries {
		for _, l := range entries[i].Labels {
			if j, ok := pos[l]; ok {
				out[j].Count++
				continue
			}
			pos[l] = len(out)
			out = append(out, LabelCount{Label: l, Count: 1})
		}
	}
	slices.SortStableFunc(out, func(a, b LabelCount) int {
		return b.Count - a.Count
	})
	if out == nil {
		out = []LabelCount{}
	}
	return out
}
