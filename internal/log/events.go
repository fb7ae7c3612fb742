package log

import (
	"context"
	"log/slog"
	"net/http"
)

// statusLevel maps a response status to the level its access line is
// logged at.
func statusLevel(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// HTTPCompleted writes the access line for a finished request.
func (l *Logger) HTTPCompleted(ctx context.Context, r *http.Request, requestID string, status int, durationMs int64, clientIP string) {
	f := NewFields().
		WithRequestID(requestID).
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.UserAgent()).
		WithHTTPResponse(status, durationMs).
		WithClientIP(clientIP)
	l.WithComponent(ComponentHTTP).Log(ctx, statusLevel(status), "HTTP request completed", f.ToSlice()...)
}

// TransactionChanged records a local ledger mutation; op is one of the Op
// constants.
func (l *Logger) TransactionChanged(ctx context.Context, op, userID, id, txType, category string, amountCents int64) {
	f := NewFields().
		WithUser(userID).
		WithTransaction(id, txType, category, amountCents).
		WithOperation(op)
	l.WithComponent(ComponentLedger).InfoContext(ctx, "Transaction "+op+"d", f.ToSlice()...)
}

// Failed logs err under component with the failing operation attached.
// extra may be nil.
func (l *Logger) Failed(ctx context.Context, msg string, err error, component, op string, extra LogFields) {
	if extra == nil {
		extra = NewFields()
	}
	l.WithComponent(component).ErrorContext(ctx, msg, extra.WithError(err).WithOperation(op).ToSlice()...)
}
