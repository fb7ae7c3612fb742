package core

import (
	"strings"
	"time"
)

type (
	// CalendarEvent is a dated entry shown on the calendar dashboard.
	CalendarEvent struct {
		ID          string    `json:"id"`
		Title       string    `json:"title"`
		StartDate   time.Time `json:"startDate"`
		EndDate     time.Time `json:"endDate"`
		IsAllDay    bool      `json:"isAllDay"`
		Description string    `json:"description,omitempty"`
		Location    string    `json:"location,omitempty"`
		Color       string    `json:"color,omitempty"`
	}

	EventInput struct {
		Title       string    `json:"title"`
		StartDate   time.Time `json:"startDate"`
		EndDate     time.Time `json:"endDate"`
		IsAllDay    bool      `json:"isAllDay"`
		Description string    `json:"description,omitempty"`
		Location    string    `json:"location,omitempty"`
		Color       string    `json:"color,omitempty"`
	}

	EventPatch struct {
		Title       *string    `json:"title,omitempty"`
		StartDate   *time.Time `json:"startDate,omitempty"`
		EndDate     *time.Time `json:"endDate,omitempty"`
		IsAllDay    *bool      `json:"isAllDay,omitempty"`
		Description *string    `json:"description,omitempty"`
		Location    *string    `json:"location,omitempty"`
		Color       *string    `json:"color,omitempty"`
	}
)

func (in EventInput) Validate() error {
	ve := &ValidationError{}
	if strings.TrimSpace(in.Title) == "" {
		ve.Add("title")
	}
	if in.StartDate.IsZero() {
		ve.Add("startDate")
	}
	if in.EndDate.IsZero() || (!in.StartDate.IsZero() && in.EndDate.Before(in.StartDate)) {
		ve.Add("endDate")
	}
	return ve.OrNil()
}

// Apply merges the patch onto e and validates the result.
func (p EventPatch) Apply(e CalendarEvent) (CalendarEvent, error) {
	if p.Title != nil {
		e.Title = strings.TrimSpace(*p.Title)
	}
	if p.StartDate != nil {
		e.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		e.EndDate = *p.EndDate
	}
	if p.IsAllDay != nil {
		e.IsAllDay = *p.IsAllDay
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.Location != nil {
		e.Location = *p.Location
	}
	if p.Color != nil {
		e.Color = *p.Color
	}
	in := EventInput{Title: e.Title, StartDate: e.StartDate, EndDate: e.EndDate}
	if err := in.Validate(); err != nil {
		return CalendarEvent{}, err
	}
	return e, nil
}

// Overlaps reports whether the event intersects the closed interval [from, to].
func (e CalendarEvent) Overlaps(from, to time.Time) bool {
	start, end := e.span()
	return !end.Before(from) && !start.After(to)
}

// OccursOn reports whether the event touches the calendar day containing day,
// evaluated in day's location.
func (e CalendarEvent) OccursOn(day time.Time) bool {
	y, m, d := day.Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, day.Location())
	to := from.AddDate(0, 0, 1).Add(-time.Nanosecond)
	if e.IsAllDay {
		// All-day events are stored as dates; compare by calendar date only.
		sy, sm, sd := e.StartDate.Date()
		ey, em, ed := e.EndDate.Date()
		start := time.Date(sy, sm, sd, 0, 0, 0, 0, day.Location())
		end := time.Date(ey, em, ed, 0, 0, 0, 0, day.Location())
		return !from.Before(start) && !from.After(end)
	}
	return e.Overlaps(from, to)
}

func (e CalendarEvent) span() (time.Time, time.Time) {
	if e.IsAllDay {
		y, m, d := e.EndDate.Date()
		end := time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), e.EndDate.Location())
		sy, sm, sd := e.StartDate.Date()
		return time.Date(sy, sm, sd, 0, 0, 0, 0, e.StartDate.Location()), end
	}
	return e.StartDate, e.EndDate
}
