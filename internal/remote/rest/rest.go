// Package rest fetches transaction pages from an HTTP JSON endpoint.
package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"lifedash/internal/core"
	"lifedash/internal/ledger"
	"lifedash/internal/pagination"
	"lifedash/internal/remote"
)

const dateLayout = "2006-01-02"

var _ pagination.Fetcher = (*Fetcher)(nil)

// Fetcher calls GET {base}/transactions with the request encoded as query
// parameters and expects {"records": [...], "hasMore": bool}.
type Fetcher struct {
	base   *url.URL
	token  string
	client *http.Client
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithToken sends a bearer token on every request.
func WithToken(token string) Option {
	return func(f *Fetcher) { f.token = token }
}

func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

func NewFetcher(baseURL string, opts ...Option) (*Fetcher, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse remote api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("remote api url must be http or https, got %q", baseURL)
	}
	f := &Fetcher{base: u, client: &http.Client{Timeout: 30 * time.Second}}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

type pageResponse struct {
	Records []core.Transaction `json:"records"`
	HasMore bool               `json:"hasMore"`
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote api returned %d: %s", e.Code, e.Body)
}

func (f *Fetcher) Fetch(ctx context.Context, req pagination.Request) (pagination.Page, error) {
	u := *f.base
	u.Path += "/transactions"
	u.RawQuery = Query(req).Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return pagination.Page{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if f.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+f.token)
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return pagination.Page{}, fmt.Errorf("call remote api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return pagination.Page{}, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var out pageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return pagination.Page{}, fmt.Errorf("decode page: %w", err)
	}
	if out.Records == nil {
		out.Records = []core.Transaction{}
	}
	for i := range out.Records {
		out.Records[i].Synced = true
		if out.Records[i].Tags == nil {
			out.Records[i].Tags = []string{}
		}
	}
	return pagination.Page{Records: out.Records, HasMore: out.HasMore}, nil
}

// Query encodes a page request as URL parameters. Absent filter fields are
// omitted.
func Query(req pagination.Request) url.Values {
	size := remote.ClampPageSize(req.PageSize, pagination.DefaultPageSize)
	page := req.Page
	if page < 1 {
		page = 1
	}
	q := url.Values{}
	q.Set("userId", req.UserID)
	q.Set("page", strconv.Itoa(page))
	q.Set("pageSize", strconv.Itoa(size))

	f := req.Filter
	if remote.Constrained(string(f.Type)) {
		q.Set("type", string(f.Type))
	}
	if remote.Constrained(string(f.Category)) {
		q.Set("category", string(f.Category))
	}
	if f.StartDate != nil {
		q.Set("startDate", f.StartDate.UTC().Format(time.RFC3339))
	}
	if f.EndDate != nil {
		q.Set("endDate", f.EndDate.UTC().Format(time.RFC3339))
	}
	if s := strings.TrimSpace(f.SearchQuery); s != "" {
		q.Set("q", s)
	}
	if f.MinAmount != nil {
		q.Set("minAmount", f.MinAmount.String())
	}
	if f.MaxAmount != nil {
		q.Set("maxAmount", f.MaxAmount.String())
	}
	if len(f.Tags) > 0 {
		q.Set("tags", strings.Join(f.Tags, ","))
	}
	return q
}

// ParseQuery is the inverse of Query. It accepts RFC 3339 timestamps or
// plain dates.
func ParseQuery(q url.Values) (pagination.Request, error) {
	req := pagination.Request{UserID: q.Get("userId"), Page: 1, Filter: ledger.DefaultFilter()}
	var err error
	if v := q.Get("page"); v != "" {
		if req.Page, err = strconv.Atoi(v); err != nil || req.Page < 1 {
			return req, fmt.Errorf("invalid page %q", v)
		}
	}
	if v := q.Get("pageSize"); v != "" {
		if req.PageSize, err = strconv.Atoi(v); err != nil || req.PageSize < 1 {
			return req, fmt.Errorf("invalid pageSize %q", v)
		}
	}
	f, err := ParseFilter(q)
	if err != nil {
		return req, err
	}
	req.Filter = f
	return req, nil
}

// ParseFilter reads filter fields from URL parameters.
func ParseFilter(q url.Values) (ledger.Filter, error) {
	f := ledger.DefaultFilter()
	if v := q.Get("type"); v != "" {
		f.Type = core.TransactionType(v)
	}
	if v := q.Get("category"); v != "" {
		f.Category = core.Category(v)
	}
	for _, p := range []struct {
		key string
		dst **time.Time
	}{{"startDate", &f.StartDate}, {"endDate", &f.EndDate}} {
		v := q.Get(p.key)
		if v == "" {
			continue
		}
		t, err := parseTime(v)
		if err != nil {
			return f, fmt.Errorf("invalid %s %q", p.key, v)
		}
		*p.dst = &t
	}
	f.SearchQuery = strings.TrimSpace(q.Get("q"))
	for _, p := range []struct {
		key string
		dst **core.Money
	}{{"minAmount", &f.MinAmount}, {"maxAmount", &f.MaxAmount}} {
		v := q.Get(p.key)
		if v == "" {
			continue
		}
		m, err := core.ParseMoney(v)
		if err != nil {
			return f, fmt.Errorf("invalid %s %q", p.key, v)
		}
		*p.dst = &m
	}
	if v := q.Get("tags"); v != "" {
		for _, tag := range strings.Split(v, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				f.Tags = append(f.Tags, tag)
			}
		}
	}
	return f, nil
}

func parseTime(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse(dateLayout, v)
}
