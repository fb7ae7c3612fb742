package pagination

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"lifedash/internal/core"
	"lifedash/internal/ledger"
)

// gatedFetcher blocks every Fetch until release is signalled.
type gatedFetcher struct {
	mu       sync.Mutex
	calls    []Request
	started  chan struct{}
	release  chan struct{}
	response Page
	err      error
}

func newGatedFetcher(resp Page) *gatedFetcher {
	return &gatedFetcher{
		started:  make(chan struct{}, 8),
		release:  make(chan struct{}),
		response: resp,
	}
}

func (f *gatedFetcher) Fetch(ctx context.Context, req Request) (Page, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	f.started <- struct{}{}
	<-f.release
	return f.response, f.err
}

func (f *gatedFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type recordingSink struct {
	replaced [][]core.Transaction
	appended [][]core.Transaction
}

func (s *recordingSink) Replace(r []core.Transaction) { s.replaced = append(s.replaced, r) }
func (s *recordingSink) AppendPage(r []core.Transaction) int {
	s.appended = append(s.appended, r)
	return len(r)
}

func staticFetcher(p Page, err error) Fetcher {
	return FetcherFunc(func(context.Context, Request) (Page, error) { return p, err })
}

func waitStarted(t *testing.T, f *gatedFetcher) {
	t.Helper()
	select {
	case <-f.started:
	case <-time.After(2 * time.Second):
		t.Fatalf("fetch never started")
	}
}

func TestInitialState(t *testing.T) {
	c := NewController(nil, nil)
	st := c.State()
	if st.Page != 1 || !st.HasMore || st.IsLoading || st.Error != "" {
		t.Fatalf("unexpected initial state: %+v", st)
	}
	if st.Status() != StatusIdle {
		t.Fatalf("expected idle, got %s", st.Status())
	}
}

func TestLoadMoreWhileLoadingIsRejected(t *testing.T) {
	f := newGatedFetcher(Page{HasMore: true})
	c := NewController(f, &recordingSink{})
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		c.LoadMore(ctx, "u1", ledger.DefaultFilter())
		close(done)
	}()
	waitStarted(t, f)

	if st := c.State(); !st.IsLoading || st.Page != 2 {
		t.Fatalf("expected loading page 2, got %+v", st)
	}
	c.LoadMore(ctx, "u1", ledger.DefaultFilter())
	c.Refresh(ctx, "u1", ledger.DefaultFilter())

	close(f.release)
	<-done

	st := c.State()
	if st.Page != 2 {
		t.Fatalf("expected exactly one page increment, got page %d", st.Page)
	}
	if st.IsLoading {
		t.Fatalf("isLoading not reset")
	}
	if n := f.callCount(); n != 1 {
		t.Fatalf("expected 1 fetch, got %d", n)
	}
}

func TestLoadMoreWhenExhausted(t *testing.T) {
	sink := &recordingSink{}
	c := NewController(staticFetcher(Page{HasMore: false}, nil), sink)
	ctx := context.Background()

	c.LoadMore(ctx, "u1", ledger.DefaultFilter())
	st := c.State()
	if st.Page != 2 || st.HasMore {
		t.Fatalf("expected exhausted at page 2, got %+v", st)
	}
	if st.Status() != StatusExhausted {
		t.Fatalf("expected exhausted status, got %s", st.Status())
	}

	c.LoadMore(ctx, "u1", ledger.DefaultFilter())
	if c.State().Page != 2 {
		t.Fatalf("page changed while exhausted")
	}
	if len(sink.appended) != 1 {
		t.Fatalf("expected one appended page, got %d", len(sink.appended))
	}
}

func TestRefreshDeliversFirstPage(t *testing.T) {
	sink := &recordingSink{}
	records := []core.Transaction{{ID: "a"}, {ID: "b"}}
	var got Request
	f := FetcherFunc(func(_ context.Context, req Request) (Page, error) {
		got = req
		return Page{Records: records, HasMore: true}, nil
	})
	c := NewController(f, sink, WithPageSize(2))

	filter := ledger.Filter{Category: core.CategoryFood}
	c.Refresh(context.Background(), "u1", filter)

	if got.UserID != "u1" || got.Page != 1 || got.PageSize != 2 || got.Filter.Category != core.CategoryFood {
		t.Fatalf("unexpected request: %+v", got)
	}
	if len(sink.replaced) != 1 || len(sink.replaced[0]) != 2 {
		t.Fatalf("page 1 should replace the sink contents: %+v", sink.replaced)
	}
	if st := c.State(); st.Page != 1 || !st.HasMore || st.IsLoading {
		t.Fatalf("unexpected state: %+v", st)
	}
}

func TestFetchFailureBecomesState(t *testing.T) {
	sink := &recordingSink{}
	c := NewController(staticFetcher(Page{}, errors.New("connection refused")), sink)
	ctx := context.Background()

	c.LoadMore(ctx, "u1", ledger.DefaultFilter())
	st := c.State()
	if st.IsLoading {
		t.Fatalf("isLoading stuck after failure")
	}
	if !strings.Contains(st.Error, "connection refused") {
		t.Fatalf("error not captured: %q", st.Error)
	}
	if st.Page != 1 {
		t.Fatalf("failed load should roll back the page, got %d", st.Page)
	}
	if st.Status() != StatusError {
		t.Fatalf("expected error status, got %s", st.Status())
	}
	if len(sink.appended) != 0 {
		t.Fatalf("sink touched on failure")
	}

	c.Refresh(ctx, "u1", ledger.DefaultFilter())
	if st := c.State(); st.Error == "" || st.IsLoading {
		t.Fatalf("refresh failure not captured: %+v", st)
	}
}

func TestErrorClearedOnSuccess(t *testing.T) {
	fail := true
	f := FetcherFunc(func(context.Context, Request) (Page, error) {
		if fail {
			return Page{}, errors.New("boom")
		}
		return Page{HasMore: true}, nil
	})
	c := NewController(f, nil)
	c.Refresh(context.Background(), "u1", ledger.DefaultFilter())
	fail = false
	c.Refresh(context.Background(), "u1", ledger.DefaultFilter())
	if st := c.State(); st.Error != "" {
		t.Fatalf("error not cleared: %q", st.Error)
	}
}

func TestPanickingFetcherResetsLoading(t *testing.T) {
	f := FetcherFunc(func(context.Context, Request) (Page, error) { panic("nil map") })
	c := NewController(f, nil)
	c.Refresh(context.Background(), "u1", ledger.DefaultFilter())
	st := c.State()
	if st.IsLoading || !strings.Contains(st.Error, "nil map") {
		t.Fatalf("unexpected state after panic: %+v", st)
	}
}

func TestResetDiscardsInFlightResult(t *testing.T) {
	f := newGatedFetcher(Page{Records: []core.Transaction{{ID: "stale"}}, HasMore: false})
	sink := &recordingSink{}
	c := NewController(f, sink)

	done := make(chan struct{})
	go func() {
		c.LoadMore(context.Background(), "u1", ledger.DefaultFilter())
		close(done)
	}()
	waitStarted(t, f)

	c.Reset()
	if st := c.State(); st.IsLoading || st.Page != 1 {
		t.Fatalf("reset did not restore initial state: %+v", st)
	}

	close(f.release)
	<-done

	st := c.State()
	if st.Page != 1 || !st.HasMore {
		t.Fatalf("stale result leaked into state: %+v", st)
	}
	if len(sink.appended) != 0 {
		t.Fatalf("stale records delivered to sink")
	}
}

type countingObserver struct {
	pages []int
	errs  int
}

func (o *countingObserver) ObserveFetch(page int, _ time.Duration, err error) {
	o.pages = append(o.pages, page)
	if err != nil {
		o.errs++
	}
}

func TestObserver(t *testing.T) {
	obs := &countingObserver{}
	c := NewController(staticFetcher(Page{HasMore: true}, nil), nil, WithObserver(obs))
	c.Refresh(context.Background(), "u1", ledger.DefaultFilter())
	c.LoadMore(context.Background(), "u1", ledger.DefaultFilter())
	if len(obs.pages) != 2 || obs.pages[0] != 1 || obs.pages[1] != 2 || obs.errs != 0 {
		t.Fatalf("unexpected observations: %+v", obs)
	}
}

func TestNilFetcher(t *testing.T) {
	c := NewController(nil, nil)
	c.Refresh(context.Background(), "u1", ledger.DefaultFilter())
	if st := c.State(); !strings.Contains(st.Error, core.ErrUnimplemented.Error()) {
		t.Fatalf("expected unimplemented error, got %q", st.Error)
	}
}
