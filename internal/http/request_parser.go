// This file holds helpers for decoding request bodies and query parameters.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"lifedash/internal/ledger"
	"lifedash/internal/remote/rest"
)

const maxBodyBytes = 1 << 20

var filterKeys = []string{"type", "category", "startDate", "endDate", "q", "minAmount", "maxAmount", "tags"}

// decodeJSON reads a single JSON value into dst, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty request body")
		}
		return err
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON value")
	}
	return nil
}

// queryFilter returns the filter carried by the query string and whether
// any filter parameter was present.
func queryFilter(q url.Values) (ledger.Filter, bool, error) {
	present := false
	for _, k := range filterKeys {
		if q.Has(k) {
			present = true
			break
		}
	}
	if !present {
		return ledger.Filter{}, false, nil
	}
	f, err := rest.ParseFilter(q)
	return f, true, err
}

// parseDay reads a YYYY-MM-DD (or RFC3339) value from the query.
func parseDay(q url.Values, key string) (time.Time, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return time.Time{}, fmt.Errorf("missing %s", key)
	}
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid %s %q", key, v)
}

// parseRange reads an optional from/to pair. ok is false when neither is set.
// A bare date for "to" covers that whole day.
func parseRange(q url.Values) (from, to time.Time, ok bool, err error) {
	if !q.Has("from") && !q.Has("to") {
		return time.Time{}, time.Time{}, false, nil
	}
	if from, err = parseDay(q, "from"); err != nil {
		return from, to, false, err
	}
	if to, err = parseDay(q, "to"); err != nil {
		return from, to, false, err
	}
	if len(strings.TrimSpace(q.Get("to"))) == len("2006-01-02") {
		to = to.Add(24*time.Hour - time.Nanosecond)
	}
	if to.Before(from) {
		return from, to, false, errors.New("to must not be before from")
	}
	return from, to, true, nil
}
