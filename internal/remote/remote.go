// Package remote holds the pagination.Fetcher implementations that load
// transaction pages from a backing service.
package remote

import (
	"sort"

	"lifedash/internal/core"
	"lifedash/internal/ledger"
)

// MaxPageSize caps what a caller may ask for in one page.
const MaxPageSize = 500

// ClampPageSize maps non-positive sizes to ledger-wide defaults and caps
// oversized requests.
func ClampPageSize(size, fallback int) int {
	if size <= 0 {
		size = fallback
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return size
}

// Offset returns the zero-based index of the first record on a 1-based page.
func Offset(page, size int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * size
}

// SortNewestFirst orders records by date descending, then id, which is the
// order every fetcher pages in.
func SortNewestFirst(records []core.Transaction) {
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].Date.Equal(records[j].Date) {
			return records[i].Date.After(records[j].Date)
		}
		return records[i].ID < records[j].ID
	})
}

// Constrained reports whether a Type or Category value restricts results.
func Constrained(v string) bool {
	return v != "" && v != ledger.All
}
