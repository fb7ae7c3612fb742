// Package calendar keeps the calendar events of a session.
package calendar

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"lifedash/internal/core"
	"lifedash/internal/ledger"
)

type Store struct {
	mu     sync.Mutex
	events []core.CalendarEvent
	newID  func() string
	strict bool
}

type Option func(*Store)

func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// WithStrictMode makes Update and Delete report core.ErrNotFound.
func WithStrictMode(strict bool) Option {
	return func(s *Store) { s.strict = strict }
}

func NewStore(opts ...Option) *Store {
	s := &Store{newID: ledger.NewID}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Add(in core.EventInput) (core.CalendarEvent, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := in.Validate(); err != nil {
		return core.CalendarEvent{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ev := core.CalendarEvent{
		ID:          s.newID(),
		Title:       in.Title,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		IsAllDay:    in.IsAllDay,
		Description: in.Description,
		Location:    in.Location,
		Color:       in.Color,
	}
	s.events = append(s.events, ev)
	return ev, nil
}

func (s *Store) Update(id string, patch core.EventPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return s.missing(id)
	}
	ev, err := patch.Apply(s.events[i])
	if err != nil {
		return err
	}
	s.events[i] = ev
	return nil
}

func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return s.missing(id)
	}
	s.events = append(s.events[:i], s.events[i+1:]...)
	return nil
}

func (s *Store) Get(id string) (core.CalendarEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(id); i >= 0 {
		return s.events[i], true
	}
	return core.CalendarEvent{}, false
}

// List returns every event ordered by start time.
func (s *Store) List() []core.CalendarEvent {
	return s.selectSorted(func(core.CalendarEvent) bool { return true })
}

// On returns the events touching the calendar day that contains day.
func (s *Store) On(day time.Time) []core.CalendarEvent {
	return s.selectSorted(func(e core.CalendarEvent) bool { return e.OccursOn(day) })
}

// Between returns the events overlapping [from, to].
func (s *Store) Between(from, to time.Time) []core.CalendarEvent {
	return s.selectSorted(func(e core.CalendarEvent) bool { return e.Overlaps(from, to) })
}

// Restore loads a persisted event list verbatim.
func (s *Store) Restore(events []core.CalendarEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append([]core.CalendarEvent(nil), events...)
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func (s *Store) selectSorted(keep func(core.CalendarEvent) bool) []core.CalendarEvent {
	s.mu.Lock()
	out := make([]core.CalendarEvent, 0, len(s.events))
	for _, e := range s.events {
		if keep(e) {
			out = append(out, e)
		}
	}
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartDate.Before(out[j].StartDate)
	})
	return out
}

func (s *Store) indexOf(id string) int {
	for i := range s.events {
		if s.events[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) missing(id string) error {
	if s.strict {
		return fmt.Errorf("event %s: %w", id, core.ErrNotFound)
	}
	return nil
}
