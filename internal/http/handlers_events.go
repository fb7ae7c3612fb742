package http

import (
	"net/http"

	"lifedash/internal/core"
	"lifedash/internal/session"
)

type eventList struct {
	Events []core.CalendarEvent `json:"events"`
	Count  int                  `json:"count"`
}

func listOf(events []core.CalendarEvent) eventList {
	if events == nil {
		events = []core.CalendarEvent{}
	}
	return eventList{Events: events, Count: len(events)}
}

// handleListEvents returns every event, or those overlapping ?from=&to=.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	from, to, ranged, err := parseRange(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if ranged {
		NewJSONResponse().Body(listOf(sess.EventsBetween(from, to))).Write(w)
		return
	}
	NewJSONResponse().Body(listOf(sess.Events())).Write(w)
}

func (s *Server) handleEventsOnDay(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	day, err := parseDay(r.URL.Query(), "date")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	NewJSONResponse().Body(listOf(sess.EventsOn(day))).Write(w)
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var in core.EventInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.decodeFailed(w, r, err)
		return
	}
	ev, err := sess.AddEvent(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(ev).Write(w)
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var patch core.EventPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		s.decodeFailed(w, r, err)
		return
	}
	id := r.PathValue("id")
	if err := sess.UpdateEvent(r.Context(), id, patch); err != nil {
		writeError(w, r, err)
		return
	}
	for _, ev := range sess.Events() {
		if ev.ID == id {
			NewJSONResponse().Body(ev).Write(w)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if err := sess.DeleteEvent(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
