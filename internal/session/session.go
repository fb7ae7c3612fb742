// Package session composes the record store, filter, aggregator and
// pagination controller for one user.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"lifedash/internal/cache"
	"lifedash/internal/calendar"
	"lifedash/internal/core"
	"lifedash/internal/ledger"
	"lifedash/internal/pagination"
)

// ChangePublisher forwards local mutations to the sync pipeline.
type ChangePublisher interface {
	PublishChange(ctx context.Context, change core.RecordChange) error
}

// Config carries the collaborators and knobs shared by every session.
type Config struct {
	Fetcher        pagination.Fetcher
	Publisher      ChangePublisher
	FetchObserver  pagination.Observer
	PageSize       int
	Strict         bool
	StatsCacheSize int
	StatsCacheTTL  time.Duration
	Clock          func() time.Time
}

// Session is the explicit replacement for a process-wide store: every piece
// of state for one user hangs off it.
type Session struct {
	userID string

	records *ledger.Store
	events  *calendar.Store
	pager   *pagination.Controller
	stats   *cache.LRUCache[ledger.Stats]

	publisher ChangePublisher
	now       func() time.Time

	mu       sync.Mutex
	filter   ledger.Filter
	onChange func(*Session)
}

func New(userID string, cfg Config) *Session {
	now := cfg.Clock
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	size := cfg.StatsCacheSize
	if size <= 0 {
		size = 16
	}

	records := ledger.NewStore(ledger.WithClock(now), ledger.WithStrictMode(cfg.Strict))
	opts := []pagination.Option{pagination.WithPageSize(cfg.PageSize)}
	if cfg.FetchObserver != nil {
		opts = append(opts, pagination.WithObserver(cfg.FetchObserver))
	}

	return &Session{
		userID:    userID,
		records:   records,
		events:    calendar.NewStore(calendar.WithStrictMode(cfg.Strict)),
		pager:     pagination.NewController(cfg.Fetcher, records, opts...),
		stats:     cache.NewLRUCache[ledger.Stats](size, cfg.StatsCacheTTL, cache.WithClock[ledger.Stats](now)),
		publisher: cfg.Publisher,
		now:       now,
		filter:    ledger.DefaultFilter(),
	}
}

func (s *Session) UserID() string { return s.userID }

// OnChange registers a hook invoked after every state change worth persisting.
func (s *Session) OnChange(fn func(*Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// Add creates a transaction and queues it for sync.
func (s *Session) Add(ctx context.Context, in core.TransactionInput) (core.Transaction, error) {
	tx, err := s.records.Add(in)
	if err != nil {
		return core.Transaction{}, err
	}
	slog.InfoContext(ctx, "Transaction added",
		"user_id", s.userID,
		"id", tx.ID,
		"type", tx.Type,
		"amount_cents", tx.Amount.Cents)
	s.publish(ctx, core.UpsertChange(s.userID, tx))
	s.changed()
	return tx, nil
}

// Update merges patch onto the transaction. A missing id is silent unless
// the session runs in strict mode.
func (s *Session) Update(ctx context.Context, id string, patch core.TransactionPatch) error {
	if err := s.records.Update(id, patch); err != nil {
		return err
	}
	tx, ok := s.records.Get(id)
	if !ok {
		return nil
	}
	slog.InfoContext(ctx, "Transaction updated", "user_id", s.userID, "id", id)
	s.publish(ctx, core.UpsertChange(s.userID, tx))
	s.changed()
	return nil
}

// Delete removes the transaction. A missing id is silent unless strict.
func (s *Session) Delete(ctx context.Context, id string) error {
	_, existed := s.records.Get(id)
	if err := s.records.Delete(id); err != nil {
		return err
	}
	if !existed {
		return nil
	}
	slog.InfoContext(ctx, "Transaction deleted", "user_id", s.userID, "id", id)
	s.publish(ctx, core.DeleteChange(s.userID, id, s.now()))
	s.changed()
	return nil
}

// MarkSynced flags a record as acknowledged by the remote store.
func (s *Session) MarkSynced(id string) error {
	if err := s.records.MarkSynced(id); err != nil {
		return err
	}
	s.changed()
	return nil
}

// ApplyAck marks the acknowledged revision as synced. Acks for deletes and
// for superseded revisions are ignored.
func (s *Session) ApplyAck(ack core.SyncAck) bool {
	if ack.Op == core.ChangeDelete {
		return false
	}
	if !s.records.MarkSyncedAt(ack.RecordID, ack.UpdatedAt) {
		return false
	}
	s.changed()
	return true
}

// Transactions returns the full collection, most recent first.
func (s *Session) Transactions() []core.Transaction {
	return s.records.List()
}

// Transaction returns one record by id.
func (s *Session) Transaction(id string) (core.Transaction, bool) {
	return s.records.Get(id)
}

// Unsynced returns the records still waiting for an ack.
func (s *Session) Unsynced() []core.Transaction {
	return s.records.Unsynced()
}

// Filter returns the active filter.
func (s *Session) Filter() ledger.Filter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

// SetFilter merges f onto the active filter and resets pagination.
func (s *Session) SetFilter(f ledger.Filter) ledger.Filter {
	s.mu.Lock()
	s.filter = s.filter.Merge(f)
	out := s.filter
	s.mu.Unlock()

	s.pager.Reset()
	return out
}

// ClearFilter restores the default filter and resets pagination.
func (s *Session) ClearFilter() {
	s.mu.Lock()
	s.filter = ledger.DefaultFilter()
	s.mu.Unlock()

	s.pager.Reset()
}

// FilteredTransactions applies the active filter to the collection.
func (s *Session) FilteredTransactions() []core.Transaction {
	return s.view(s.Filter())
}

// view returns the records selected by f. An unconstrained filter skips the
// predicate pass; List already returns a copy.
func (s *Session) view(f ledger.Filter) []core.Transaction {
	if f.IsZero() {
		return s.records.List()
	}
	return ledger.Apply(s.records.List(), f)
}

// Stats aggregates the filtered view. Results are memoised per store
// version and filter.
func (s *Session) Stats() ledger.Stats {
	f := s.Filter()
	key := fmt.Sprintf("%d|%s", s.records.Version(), f.Key())
	return s.stats.GetOrCompute(key, func() ledger.Stats {
		return ledger.Aggregate(s.view(f))
	})
}

// MonthlySummary rolls the filtered view up per month.
func (s *Session) MonthlySummary() []core.MonthSummary {
	return ledger.SummarizeByMonth(s.FilteredTransactions())
}

// Pagination returns the controller state.
func (s *Session) Pagination() pagination.State {
	return s.pager.State()
}

// Refresh reloads the first remote page with the active filter.
func (s *Session) Refresh(ctx context.Context) pagination.State {
	s.pager.Refresh(ctx, s.userID, s.Filter())
	s.changed()
	return s.pager.State()
}

// LoadMore fetches the next remote page with the active filter.
func (s *Session) LoadMore(ctx context.Context) pagination.State {
	s.pager.LoadMore(ctx, s.userID, s.Filter())
	s.changed()
	return s.pager.State()
}

func (s *Session) AddEvent(ctx context.Context, in core.EventInput) (core.CalendarEvent, error) {
	ev, err := s.events.Add(in)
	if err != nil {
		return core.CalendarEvent{}, err
	}
	slog.InfoContext(ctx, "Event added", "user_id", s.userID, "id", ev.ID)
	s.changed()
	return ev, nil
}

func (s *Session) UpdateEvent(ctx context.Context, id string, patch core.EventPatch) error {
	if err := s.events.Update(id, patch); err != nil {
		return err
	}
	s.changed()
	return nil
}

func (s *Session) DeleteEvent(ctx context.Context, id string) error {
	if err := s.events.Delete(id); err != nil {
		return err
	}
	s.changed()
	return nil
}

func (s *Session) Events() []core.CalendarEvent { return s.events.List() }

func (s *Session) EventsOn(day time.Time) []core.CalendarEvent { return s.events.On(day) }

func (s *Session) EventsBetween(from, to time.Time) []core.CalendarEvent {
	return s.events.Between(from, to)
}

// Resync republishes every unsynced record. It returns how many were sent.
func (s *Session) Resync(ctx context.Context) int {
	pending := s.records.Unsynced()
	for _, tx := range pending {
		s.publish(ctx, core.UpsertChange(s.userID, tx))
	}
	return len(pending)
}

// Snapshot captures the full in-memory state.
func (s *Session) Snapshot() State {
	return State{
		Transactions: s.records.List(),
		Events:       s.events.List(),
		Filter:       s.Filter(),
		Pagination:   s.pager.State(),
	}
}

// Restore loads persisted records and events. Filter and pagination keep
// their defaults.
func (s *Session) Restore(p Persisted) {
	s.records.Restore(p.Transactions)
	s.events.Restore(p.Events)
	s.stats.Purge()
}

func (s *Session) publish(ctx context.Context, change core.RecordChange) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishChange(ctx, change); err != nil {
		// The record stays unsynced and is picked up by the next resync.
		slog.ErrorContext(ctx, "Failed to publish change",
			"user_id", s.userID,
			"id", change.RecordID,
			"op", change.Op,
			"error", err)
	}
}

func (s *Session) changed() {
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}
