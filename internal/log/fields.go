package log

// Field names shared by every structured log line.
const (
	FieldComponent = "component"
	FieldError     = "error"
	FieldErrorType = "error_type"
	FieldOperation = "operation"

	// HTTP
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldUserAgent  = "user_agent"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldSuccess    = "success"

	// Records
	FieldUserID   = "user_id"
	FieldRecordID = "id"
	FieldTxType   = "type"
	FieldCategory = "category"
	FieldAmount   = "amount_cents"
)

// Component names passed to WithComponent.
const (
	ComponentApp      = "app"
	ComponentHTTP     = "http"
	ComponentAuth     = "auth"
	ComponentSecurity = "security"
	ComponentLedger   = "ledger"
	ComponentSession  = "session"
	ComponentWorker   = "worker"
	ComponentSheets   = "sheets"
)

// Record operations. TransactionChanged derives its message from them
// ("create" → "Transaction created").
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
	OpSync   = "sync"
)

const ErrorTypeInternal = "internal_error"

// LogFields accumulates key/value pairs for a single log call.
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithRequestID(requestID string) LogFields {
	if requestID != "" {
		f[FieldRequestID] = requestID
	}
	return f
}

func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError adds the error message; nil errors are skipped.
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

func (f LogFields) WithUser(userID string) LogFields {
	if userID != "" {
		f[FieldUserID] = userID
	}
	return f
}

// WithTransaction adds the identifying fields of a transaction.
func (f LogFields) WithTransaction(id, txType, category string, amountCents int64) LogFields {
	f[FieldRecordID] = id
	f[FieldTxType] = txType
	f[FieldCategory] = category
	f[FieldAmount] = amountCents
	return f
}

// WithHTTPRequest records the request line; empty query and agent are omitted.
func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	if query != "" {
		f[FieldQuery] = query
	}
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
	}
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = statusCode < 400
	return f
}

// ToSlice flattens the fields into slog's alternating key/value form.
func (f LogFields) ToSlice() []any {
	out := make([]any, 0, len(f)*2)
	for k, v := range f {
		out = append(out, k, v)
	}
	return out
}
