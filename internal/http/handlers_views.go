package http

import (
	"net/http"

	"lifedash/internal/core"
	"lifedash/internal/ledger"
	"lifedash/internal/session"
)

type statsView struct {
	ledger.Stats
	Categories []core.CategoryAmount `json:"categories"`
	Filter     ledger.Filter         `json:"filter"`
}

type monthView struct {
	core.MonthSummary
	Net core.Money `json:"net"`
}

// handleStats aggregates the filtered view.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	st := sess.Stats()
	NewJSONResponse().Body(statsView{
		Stats:      st,
		Categories: st.Categories(),
		Filter:     sess.Filter(),
	}).Write(w)
}

func (s *Server) handleMonthlyStats(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	months := sess.MonthlySummary()
	out := make([]monthView, 0, len(months))
	for _, m := range months {
		out = append(out, monthView{MonthSummary: m, Net: m.Net()})
	}
	NewJSONResponse().Body(map[string]any{"months": out}).Write(w)
}

func (s *Server) handleGetFilter(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	NewJSONResponse().Body(sess.Filter()).Write(w)
}

// handleSetFilter merges the body onto the active filter and resets
// pagination.
func (s *Server) handleSetFilter(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var f ledger.Filter
	if err := decodeJSON(w, r, &f); err != nil {
		s.decodeFailed(w, r, err)
		return
	}
	NewJSONResponse().Body(sess.SetFilter(f)).Write(w)
}

func (s *Server) handleClearFilter(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	sess.ClearFilter()
	NewJSONResponse().Body(sess.Filter()).Write(w)
}

func (s *Server) handlePagination(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	NewJSONResponse().Body(viewOf(sess.Pagination())).Write(w)
}

// handleRefresh reloads page 1. Fetch failures are reported in the state,
// not as an HTTP error.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	NewJSONResponse().Body(viewOf(sess.Refresh(r.Context()))).Write(w)
}

func (s *Server) handleLoadMore(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	NewJSONResponse().Body(viewOf(sess.LoadMore(r.Context()))).Write(w)
}
