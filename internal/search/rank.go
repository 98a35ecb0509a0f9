package search

import "sort"

// sortResultsDesc sorts results by score descending, breaking ties by
// id for a deterministic order.
func sortResultsDesc(results []Result) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
}
