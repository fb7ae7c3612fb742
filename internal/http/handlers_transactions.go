package http

import (
	"errors"
	"net/http"

	"lifedash/internal/core"
	"lifedash/internal/ledger"
	applog "lifedash/internal/log"
	"lifedash/internal/pagination"
	"lifedash/internal/session"
)

type transactionList struct {
	Transactions []core.Transaction `json:"transactions"`
	Count        int                `json:"count"`
	Filter       ledger.Filter      `json:"filter"`
	Pagination   paginationView     `json:"pagination"`
}

type paginationView struct {
	pagination.State
	Status pagination.Status `json:"status"`
}

func viewOf(st pagination.State) paginationView {
	return paginationView{State: st, Status: st.Status()}
}

// handleListTransactions returns the view under the session filter, or under
// an ad-hoc filter when the query carries filter parameters.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	f, adHoc, err := queryFilter(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	var txs []core.Transaction
	if adHoc {
		txs = ledger.Apply(sess.Transactions(), f)
	} else {
		f = sess.Filter()
		txs = sess.FilteredTransactions()
	}

	NewJSONResponse().Body(transactionList{
		Transactions: txs,
		Count:        len(txs),
		Filter:       f,
		Pagination:   viewOf(sess.Pagination()),
	}).Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	tx, ok := sess.Transaction(r.PathValue("id"))
	if !ok {
		NotFoundError("transaction not found").Write(w)
		return
	}
	NewJSONResponse().Body(tx).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var in core.TransactionInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.decodeFailed(w, r, err)
		return
	}

	tx, err := sess.Add(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	logChange(r, applog.OpCreate, sess.UserID(), tx)

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/transactions/"+tx.ID).
		Body(tx).
		Write(w)
}

// handleUpdateTransaction responds 200 with the record, or 204 when the id is
// unknown outside strict mode.
func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var patch core.TransactionPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		s.decodeFailed(w, r, err)
		return
	}
	if patch.IsEmpty() {
		BadRequestError("patch sets no fields").Write(w)
		return
	}

	id := r.PathValue("id")
	if err := sess.Update(r.Context(), id, patch); err != nil {
		writeError(w, r, err)
		return
	}
	tx, ok := sess.Transaction(id)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	logChange(r, applog.OpUpdate, sess.UserID(), tx)
	NewJSONResponse().Body(tx).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	id := r.PathValue("id")
	tx, existed := sess.Transaction(id)
	if err := sess.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	if existed {
		logChange(r, applog.OpDelete, sess.UserID(), tx)
	}
	w.WriteHeader(http.StatusNoContent)
}

func logChange(r *http.Request, op, userID string, tx core.Transaction) {
	applog.FromContext(r.Context()).TransactionChanged(r.Context(), op, userID, tx.ID, string(tx.Type), string(tx.Category), tx.Amount.Cents)
}

// decodeFailed reports a body that could not be decoded. Malformed amounts
// are validation failures; anything else is a bad request.
func (s *Server) decodeFailed(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, core.ErrInvalidAmount):
		ValidationFailed([]string{"amount"}).Write(w)
	case errors.As(err, &tooLarge):
		ErrorResponse(http.StatusRequestEntityTooLarge, "request body too large").Write(w)
	default:
		BadRequestError("invalid request body: " + err.Error()).Write(w)
	}
}
