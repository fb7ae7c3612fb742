// Package pagination tracks incremental-load state for a remote-backed
// transaction list and coordinates with the fetch collaborator.
package pagination

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"lifedash/internal/core"
	"lifedash/internal/ledger"
)

// DefaultPageSize is used when a Controller is built with a non-positive size.
const DefaultPageSize = 50

type (
	// Request is what the controller asks the collaborator for.
	Request struct {
		UserID   string
		Page     int
		PageSize int
		Filter   ledger.Filter
	}

	// Page is the collaborator's answer. HasMore is taken at face value.
	Page struct {
		Records []core.Transaction
		HasMore bool
	}

	// Fetcher performs the remote I/O.
	Fetcher interface {
		Fetch(ctx context.Context, req Request) (Page, error)
	}

	// FetcherFunc adapts a function to Fetcher.
	FetcherFunc func(ctx context.Context, req Request) (Page, error)

	// Sink receives fetched records: page 1 replaces, later pages append.
	// *ledger.Store satisfies it.
	Sink interface {
		Replace(records []core.Transaction)
		AppendPage(records []core.Transaction) int
	}

	// Observer is notified after every completed fetch.
	Observer interface {
		ObserveFetch(page int, elapsed time.Duration, err error)
	}
)

func (f FetcherFunc) Fetch(ctx context.Context, req Request) (Page, error) {
	return f(ctx, req)
}

// Status is the coarse state derived from State.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusLoading   Status = "loading"
	StatusError     Status = "error"
	StatusExhausted Status = "exhausted"
)

// State is a snapshot of the controller.
type State struct {
	Page      int    `json:"page"`
	HasMore   bool   `json:"hasMore"`
	IsLoading bool   `json:"isLoading"`
	Error     string `json:"error,omitempty"`
}

// Status reports the state-machine position. Loading wins over Error, and
// Error wins over Exhausted.
func (s State) Status() Status {
	switch {
	case s.IsLoading:
		return StatusLoading
	case s.Error != "":
		return StatusError
	case !s.HasMore:
		return StatusExhausted
	default:
		return StatusIdle
	}
}

// InitialState is page 1 with more pages assumed.
func InitialState() State {
	return State{Page: 1, HasMore: true}
}

// Controller drives page/hasMore/isLoading/error around a Fetcher.
//
// The lock is released while the Fetcher runs; a second Refresh or LoadMore
// issued meanwhile is rejected by the isLoading guard.
type Controller struct {
	mu    sync.Mutex
	state State
	gen   uint64

	fetcher  Fetcher
	sink     Sink
	pageSize int
	observer Observer
}

// Option configures a Controller.
type Option func(*Controller)

// WithPageSize sets the page size sent to the Fetcher.
func WithPageSize(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithObserver installs a fetch observer, typically metrics.
func WithObserver(o Observer) Option {
	return func(c *Controller) { c.observer = o }
}

func NewController(fetcher Fetcher, sink Sink, opts ...Option) *Controller {
	c := &Controller{
		state:    InitialState(),
		fetcher:  fetcher,
		sink:     sink,
		pageSize: DefaultPageSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Refresh reloads page 1. It is a no-op while a fetch is in flight. Fetch
// failures are recorded in State.Error and never returned.
func (c *Controller) Refresh(ctx context.Context, userID string, filter ledger.Filter) {
	c.mu.Lock()
	if c.state.IsLoading {
		c.mu.Unlock()
		return
	}
	c.state.Page = 1
	c.state.HasMore = true
	c.state.IsLoading = true
	c.state.Error = ""
	gen := c.gen
	c.mu.Unlock()

	c.run(ctx, gen, Request{UserID: userID, Page: 1, PageSize: c.pageSize, Filter: filter}, 1)
}

// LoadMore fetches the next page. It is a no-op while a fetch is in flight
// or once the collaborator reported no further pages. On failure the page
// counter is rolled back so the same page is retried next time.
func (c *Controller) LoadMore(ctx context.Context, userID string, filter ledger.Filter) {
	c.mu.Lock()
	if c.state.IsLoading || !c.state.HasMore {
		c.mu.Unlock()
		return
	}
	prev := c.state.Page
	c.state.Page++
	c.state.IsLoading = true
	c.state.Error = ""
	gen := c.gen
	req := Request{UserID: userID, Page: c.state.Page, PageSize: c.pageSize, Filter: filter}
	c.mu.Unlock()

	c.run(ctx, gen, req, prev)
}

// Reset returns to the initial state. Results of a fetch still in flight are
// discarded when they arrive.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.state = InitialState()
}

func (c *Controller) run(ctx context.Context, gen uint64, req Request, pageOnError int) {
	start := time.Now()
	page, err := c.fetch(ctx, req)
	elapsed := time.Since(start)

	if c.observer != nil {
		c.observer.ObserveFetch(req.Page, elapsed, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		slog.DebugContext(ctx, "Discarding stale page", "page", req.Page, "user_id", req.UserID)
		return
	}
	c.state.IsLoading = false

	if err != nil {
		ferr := &core.FetchError{Page: req.Page, Err: err}
		slog.WarnContext(ctx, "Fetch failed", "page", req.Page, "user_id", req.UserID, "error", err)
		c.state.Error = ferr.Error()
		c.state.Page = pageOnError
		return
	}

	if c.sink != nil {
		if req.Page == 1 {
			c.sink.Replace(page.Records)
		} else {
			c.sink.AppendPage(page.Records)
		}
	}
	c.state.HasMore = page.HasMore
	slog.DebugContext(ctx, "Fetched page",
		"page", req.Page,
		"records", len(page.Records),
		"has_more", page.HasMore,
		"duration_ms", elapsed.Milliseconds())
}

// fetch turns a panicking collaborator into an error.
func (c *Controller) fetch(ctx context.Context, req Request) (page Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fetcher panic: %v", r)
		}
	}()
	if c.fetcher == nil {
		return Page{}, core.ErrUnimplemented
	}
	return c.fetcher.Fetch(ctx, req)
}
