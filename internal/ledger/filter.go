package ledger

import (
	"encoding/json"
	"slices"
	"strings"
	"time"

	"lifedash/internal/core"
)

// All is the sentinel meaning "no constraint" for Type and Category.
const All = "all"

// Filter is a partial set of constraints; absent fields do not constrain.
// All present predicates are ANDed.
type Filter struct {
	Type        core.TransactionType `json:"type,omitempty"`
	Category    core.Category        `json:"category,omitempty"`
	StartDate   *time.Time           `json:"startDate,omitempty"`
	EndDate     *time.Time           `json:"endDate,omitempty"`
	SearchQuery string               `json:"searchQuery,omitempty"`
	MinAmount   *core.Money          `json:"minAmount,omitempty"`
	MaxAmount   *core.Money          `json:"maxAmount,omitempty"`
	Tags        []string             `json:"tags,omitempty"`
}

// DefaultFilter is the cleared filter.
func DefaultFilter() Filter {
	return Filter{Type: All, Category: All}
}

// Merge overlays the fields set in o onto f and returns the result.
func (f Filter) Merge(o Filter) Filter {
	if o.Type != "" {
		f.Type = o.Type
	}
	if o.Category != "" {
		f.Category = o.Category
	}
	if o.StartDate != nil {
		f.StartDate = o.StartDate
	}
	if o.EndDate != nil {
		f.EndDate = o.EndDate
	}
	if o.SearchQuery != "" {
		f.SearchQuery = o.SearchQuery
	}
	if o.MinAmount != nil {
		f.MinAmount = o.MinAmount
	}
	if o.MaxAmount != nil {
		f.MaxAmount = o.MaxAmount
	}
	if o.Tags != nil {
		f.Tags = append([]string(nil), o.Tags...)
	}
	return f
}

// IsZero reports whether the filter constrains nothing.
func (f Filter) IsZero() bool {
	return unconstrained(string(f.Type)) && unconstrained(string(f.Category)) &&
		f.StartDate == nil && f.EndDate == nil && strings.TrimSpace(f.SearchQuery) == "" &&
		f.MinAmount == nil && f.MaxAmount == nil && len(f.Tags) == 0
}

// Matches evaluates every present predicate against t.
func (f Filter) Matches(t core.Transaction) bool {
	if !unconstrained(string(f.Type)) && t.Type != f.Type {
		return false
	}
	if !unconstrained(string(f.Category)) && t.Category != f.Category {
		return false
	}
	if f.StartDate != nil && t.Date.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && t.Date.After(*f.EndDate) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.SearchQuery)); q != "" {
		if !strings.Contains(strings.ToLower(t.Description), q) &&
			!strings.Contains(strings.ToLower(string(t.Category)), q) {
			return false
		}
	}
	if f.MinAmount != nil && t.Amount.Cents < f.MinAmount.Cents {
		return false
	}
	if f.MaxAmount != nil && t.Amount.Cents > f.MaxAmount.Cents {
		return false
	}
	if len(f.Tags) > 0 && !intersects(t.Tags, f.Tags) {
		return false
	}
	return true
}

// Key is a stable textual form of the filter, usable as a cache key. It is
// the JSON encoding of the normalised filter, so values containing separator
// characters cannot make two filters share a key. Filters that select the
// same records by construction (absent vs "all", search case, tag order)
// share one key.
func (f Filter) Key() string {
	type keyForm struct {
		Type     string   `json:"t"`
		Category string   `json:"c"`
		Start    *string  `json:"s,omitempty"`
		End      *string  `json:"e,omitempty"`
		Search   string   `json:"q,omitempty"`
		Min      *int64   `json:"min,omitempty"`
		Max      *int64   `json:"max,omitempty"`
		Tags     []string `json:"tags,omitempty"`
	}
	k := keyForm{
		Type:     orAll(string(f.Type)),
		Category: orAll(string(f.Category)),
		Search:   strings.ToLower(strings.TrimSpace(f.SearchQuery)),
	}
	if f.StartDate != nil {
		v := f.StartDate.UTC().Format(time.RFC3339Nano)
		k.Start = &v
	}
	if f.EndDate != nil {
		v := f.EndDate.UTC().Format(time.RFC3339Nano)
		k.End = &v
	}
	if f.MinAmount != nil {
		k.Min = &f.MinAmount.Cents
	}
	if f.MaxAmount != nil {
		k.Max = &f.MaxAmount.Cents
	}
	if len(f.Tags) > 0 {
		k.Tags = slices.Clone(f.Tags)
		slices.Sort(k.Tags)
	}
	// Only strings and integers: encoding cannot fail.
	data, _ := json.Marshal(k)
	return string(data)
}

// Apply returns the records that satisfy f, in input order. The input slice
// is never modified.
func Apply(records []core.Transaction, f Filter) []core.Transaction {
	out := make([]core.Transaction, 0, len(records))
	for _, r := range records {
		if f.Matches(r) {
			out = append(out, r)
		}
	}
	return out
}

func unconstrained(v string) bool {
	return v == "" || v == All
}

func orAll(v string) string {
	if v == "" {
		return All
	}
	return v
}

func intersects(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}
