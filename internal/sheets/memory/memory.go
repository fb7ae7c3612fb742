package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"lifedash/internal/core"
	"lifedash/internal/sheets"
)

var (
	_ sheets.RecordExporter = (*Store)(nil)
	_ sheets.RecordLister   = (*Store)(nil)
)

type row struct {
	ref string
	tx  core.Transaction
}

// Store is an in-process exporter used in development and tests.
type Store struct {
	mu    sync.Mutex
	rows  map[string]map[string]row
	seq   int
	fails map[string]error
}

func New() *Store {
	return &Store{rows: make(map[string]map[string]row)}
}

// FailOn makes the next Upsert or Delete of id return err.
func (s *Store) FailOn(id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fails == nil {
		s.fails = make(map[string]error)
	}
	s.fails[id] = err
}

// Upsert stores the transaction and returns a synthetic row reference that
// stays stable across updates of the same record.
func (s *Store) Upsert(_ context.Context, userID string, t core.Transaction) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(t.ID); err != nil {
		return "", err
	}
	user := s.rows[userID]
	if user == nil {
		user = make(map[string]row)
		s.rows[userID] = user
	}
	r, ok := user[t.ID]
	if !ok {
		s.seq++
		r.ref = fmt.Sprintf("mem:%d", s.seq)
	}
	r.tx = t.Clone()
	r.tx.Synced = true
	user[t.ID] = r
	return r.ref, nil
}

// Delete removes the record; deleting an unknown record succeeds.
func (s *Store) Delete(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(id); err != nil {
		return err
	}
	delete(s.rows[userID], id)
	return nil
}

// ListRecords returns the user's rows, most recent date first.
func (s *Store) ListRecords(_ context.Context, userID string) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Transaction, 0, len(s.rows[userID]))
	for _, r := range s.rows[userID] {
		out = append(out, r.tx.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) takeFailure(id string) error {
	err, ok := s.fails[id]
	if ok {
		delete(s.fails, id)
	}
	return err
}
