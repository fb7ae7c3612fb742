package calendar

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"lifedash/internal/core"
)

func newTestStore(opts ...Option) *Store {
	n := 0
	gen := func() string {
		n++
		return fmt.Sprintf("ev-%d", n)
	}
	return NewStore(append([]Option{WithIDGenerator(gen)}, opts...)...)
}

func at(day, hour int) time.Time {
	return time.Date(2024, 5, day, hour, 0, 0, 0, time.UTC)
}

func TestStoreAddAndList(t *testing.T) {
	s := newTestStore()
	mustAdd(t, s, core.EventInput{Title: "Dentist", StartDate: at(10, 9), EndDate: at(10, 10)})
	mustAdd(t, s, core.EventInput{Title: " Standup ", StartDate: at(3, 9), EndDate: at(3, 9)})

	list := s.List()
	if len(list) != 2 {
		t.Fatalf("expected 2 events, got %d", len(list))
	}
	if list[0].Title != "Standup" || list[1].Title != "Dentist" {
		t.Fatalf("expected events sorted by start, got %q, %q", list[0].Title, list[1].Title)
	}
}

func TestStoreAddValidation(t *testing.T) {
	s := newTestStore()
	_, err := s.Add(core.EventInput{Title: "  ", StartDate: at(10, 9), EndDate: at(9, 9)})
	var ve *core.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(ve.Fields) != 2 || ve.Fields[0] != "title" || ve.Fields[1] != "endDate" {
		t.Fatalf("unexpected fields: %v", ve.Fields)
	}
}

func TestStoreUpdate(t *testing.T) {
	s := newTestStore()
	ev := mustAdd(t, s, core.EventInput{Title: "Dentist", StartDate: at(10, 9), EndDate: at(10, 10)})

	loc := "Via Roma 1"
	if err := s.Update(ev.ID, core.EventPatch{Location: &loc}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := s.Get(ev.ID)
	if got.Location != loc || got.Title != "Dentist" {
		t.Fatalf("unexpected event: %+v", got)
	}

	early := at(9, 0)
	if err := s.Update(ev.ID, core.EventPatch{EndDate: &early}); !core.IsValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if got, _ := s.Get(ev.ID); !got.EndDate.Equal(at(10, 10)) {
		t.Fatalf("invalid patch applied")
	}
}

func TestStoreMissingIDs(t *testing.T) {
	s := newTestStore()
	if err := s.Delete("nope"); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
	strict := newTestStore(WithStrictMode(true))
	if err := strict.Delete("nope"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	title := "x"
	if err := strict.Update("nope", core.EventPatch{Title: &title}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreOnAndBetween(t *testing.T) {
	s := newTestStore()
	mustAdd(t, s, core.EventInput{Title: "Trip", StartDate: at(10, 0), EndDate: at(12, 0), IsAllDay: true})
	mustAdd(t, s, core.EventInput{Title: "Late call", StartDate: at(11, 22), EndDate: at(12, 1)})
	mustAdd(t, s, core.EventInput{Title: "Lunch", StartDate: at(20, 12), EndDate: at(20, 13)})

	tests := []struct {
		day  time.Time
		want []string
	}{
		{at(10, 15), []string{"Trip"}},
		{at(11, 0), []string{"Trip", "Late call"}},
		{at(12, 23), []string{"Trip", "Late call"}},
		{at(13, 0), nil},
		{at(20, 0), []string{"Lunch"}},
	}
	for _, tt := range tests {
		got := titles(s.On(tt.day))
		if fmt.Sprint(got) != fmt.Sprint(tt.want) {
			t.Fatalf("On(%s): got %v, want %v", tt.day.Format("2006-01-02"), got, tt.want)
		}
	}

	between := titles(s.Between(at(12, 12), at(25, 0)))
	if fmt.Sprint(between) != fmt.Sprint([]string{"Trip", "Lunch"}) {
		t.Fatalf("Between: got %v", between)
	}
}

func TestStoreDeleteAndRestore(t *testing.T) {
	s := newTestStore()
	ev := mustAdd(t, s, core.EventInput{Title: "Dentist", StartDate: at(10, 9), EndDate: at(10, 10)})
	if err := s.Delete(ev.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("event not removed")
	}
	s.Restore([]core.CalendarEvent{ev})
	if got, ok := s.Get(ev.ID); !ok || got.Title != "Dentist" {
		t.Fatalf("restore failed: %+v", got)
	}
}

func mustAdd(t *testing.T, s *Store, in core.EventInput) core.CalendarEvent {
	t.Helper()
	ev, err := s.Add(in)
	if err != nil {
		t.Fatalf("add %q: %v", in.Title, err)
	}
	return ev
}

func titles(events []core.CalendarEvent) []string {
	var out []string
	for _, e := range events {
		out = append(out, e.Title)
	}
	return out
}
