package memory

import (
	"context"
	"sync"

	"lifedash/internal/core"
	"lifedash/internal/ledger"
	"lifedash/internal/pagination"
	"lifedash/internal/remote"
)

var _ pagination.Fetcher = (*Fetcher)(nil)

// Fetcher serves pages from an in-process dataset. Filters are applied with
// the same predicates the local ledger uses.
type Fetcher struct {
	mu      sync.Mutex
	records map[string][]core.Transaction
	failure error
	calls   int
}

func New() *Fetcher {
	return &Fetcher{records: make(map[string][]core.Transaction)}
}

// Seed replaces the dataset for a user.
func (f *Fetcher) Seed(userID string, records []core.Transaction) {
	cp := make([]core.Transaction, len(records))
	for i, r := range records {
		cp[i] = r.Clone()
		cp[i].Synced = true
	}
	remote.SortNewestFirst(cp)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[userID] = cp
}

// FailNext makes the next Fetch return err.
func (f *Fetcher) FailNext(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failure = err
}

// Calls reports how many fetches were served, failures included.
func (f *Fetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *Fetcher) Fetch(ctx context.Context, req pagination.Request) (pagination.Page, error) {
	if err := ctx.Err(); err != nil {
		return pagination.Page{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.failure; err != nil {
		f.failure = nil
		return pagination.Page{}, err
	}

	matched := ledger.Apply(f.records[req.UserID], req.Filter)
	size := remote.ClampPageSize(req.PageSize, pagination.DefaultPageSize)
	start := remote.Offset(req.Page, size)
	if start >= len(matched) {
		return pagination.Page{Records: []core.Transaction{}}, nil
	}
	end := start + size
	if end > len(matched) {
		end = len(matched)
	}
	page := make([]core.Transaction, 0, end-start)
	for _, r := range matched[start:end] {
		page = append(page, r.Clone())
	}
	return pagination.Page{Records: page, HasMore: end < len(matched)}, nil
}
