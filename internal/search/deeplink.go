package search

import "fmt"

// attachDeepLinks fills OpenURL on every result: a
// page-bearing match links to its page, a row-bearing match links to
// its row, otherwise the bare resource link.
func attachDeepLinks(results []Result) {
	for i := range results {
		r := &results[i]
		switch {
		case r.pageNumber != nil:
			r.OpenURL = fmt.Sprintf("/resources/%s?page=%d", r.ID, *r.pageNumber)
		case r.rowIndex != nil:
			r.OpenURL = fmt.Sprintf("/resources/%s?row=%d", r.ID, *r.rowIndex)
		default:
			r.OpenURL = fmt.Sprintf("/resources/%s", r.ID)
		}
	}
}
