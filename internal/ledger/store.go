// Package ledger holds the in-memory transaction store together with the pure
// filter and aggregation functions that back the dashboards.
package ledger

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"lifedash/internal/core"
)

// Store owns the ordered transaction collection of one session.
// Records are kept most-recent-first: Add inserts at the head.
type Store struct {
	mu      sync.Mutex
	records []core.Transaction
	version uint64

	now    func() time.Time
	newID  func() string
	strict bool
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for createdAt/updatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides record id generation.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// WithStrictMode makes Update, Delete and MarkSynced return core.ErrNotFound
// for unknown ids instead of silently doing nothing.
func WithStrictMode(strict bool) Option {
	return func(s *Store) { s.strict = strict }
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		now:   func() time.Time { return time.Now().UTC() },
		newID: NewID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewID returns a time-ordered UUIDv7: a millisecond timestamp followed by
// random bits.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Add validates the input, assigns identity and stamps, and inserts the new
// record at the head of the collection.
func (s *Store) Add(in core.TransactionInput) (core.Transaction, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	tx := core.Transaction{
		ID:            s.newID(),
		Amount:        in.Amount,
		Currency:      in.Currency,
		Category:      in.Category,
		Description:   in.Description,
		Date:          in.Date,
		Type:          in.Type,
		PaymentMethod: in.PaymentMethod,
		Tags:          in.Tags,
		CreatedAt:     now,
		UpdatedAt:     now,
		Synced:        false,
	}

	s.records = append(s.records, core.Transaction{})
	copy(s.records[1:], s.records)
	s.records[0] = tx
	s.version++
	return tx.Clone(), nil
}

// Update merges patch onto the record with the given id, refreshes UpdatedAt
// and clears the sync flag. An unknown id is a no-op unless strict mode is on.
func (s *Store) Update(id string, patch core.TransactionPatch) error {
	if err := patch.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return s.missing(id)
	}
	rec := &s.records[i]
	patch.Apply(rec)
	rec.UpdatedAt = s.now()
	rec.Synced = false
	s.version++
	return nil
}

// Delete removes the record with the given id. There is no tombstone.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return s.missing(id)
	}
	s.records = append(s.records[:i], s.records[i+1:]...)
	s.version++
	return nil
}

// MarkSynced records that the remote store acknowledged the record. It does
// not refresh UpdatedAt.
func (s *Store) MarkSynced(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return s.missing(id)
	}
	if !s.records[i].Synced {
		s.records[i].Synced = true
		s.version++
	}
	return nil
}

// MarkSyncedAt acknowledges the record only if it has not been edited since
// the acknowledged revision. It reports whether the flag was set.
func (s *Store) MarkSyncedAt(id string, updatedAt time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 || !s.records[i].UpdatedAt.Equal(updatedAt) {
		return false
	}
	if !s.records[i].Synced {
		s.records[i].Synced = true
		s.version++
	}
	return true
}

// Get returns a copy of the record with the given id.
func (s *Store) Get(id string) (core.Transaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return core.Transaction{}, false
	}
	return s.records[i].Clone(), true
}

// List returns a copy of the full collection in store order.
func (s *Store) List() []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAll(s.records)
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Version increases on every change to the collection.
func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Unsynced returns copies of the records still waiting for a remote ack.
func (s *Store) Unsynced() []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.Transaction
	for _, r := range s.records {
		if !r.Synced {
			out = append(out, r.Clone())
		}
	}
	return out
}

// Replace swaps the whole collection, keeping local records that were never
// acknowledged by the remote so an offline add is not lost by a refresh.
func (s *Store) Replace(records []core.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()

	incoming := make(map[string]struct{}, len(records))
	for _, r := range records {
		incoming[r.ID] = struct{}{}
	}
	var pending []core.Transaction
	for _, r := range s.records {
		if _, ok := incoming[r.ID]; !ok && !r.Synced {
			pending = append(pending, r)
		}
	}
	s.records = append(pending, cloneAll(records)...)
	s.version++
}

// AppendPage adds records from a later remote page at the tail, skipping ids
// already present.
func (s *Store) AppendPage(records []core.Transaction) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, r := range records {
		if s.indexOf(r.ID) >= 0 {
			continue
		}
		s.records = append(s.records, r.Clone())
		added++
	}
	if added > 0 {
		s.version++
	}
	return added
}

// Restore loads a persisted collection verbatim.
func (s *Store) Restore(records []core.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = cloneAll(records)
	s.version++
}

func (s *Store) indexOf(id string) int {
	for i := range s.records {
		if s.records[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) missing(id string) error {
	if s.strict {
		return fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func cloneAll(in []core.Transaction) []core.Transaction {
	out := make([]core.Transaction, len(in))
	for i, r := range in {
		out[i] = r.Clone()
	}
	return out
}
