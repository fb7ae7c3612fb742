package ledger

import (
	"sort"

	"lifedash/internal/core"
)

// Stats are derived figures for a record collection. They are never persisted.
type Stats struct {
	TotalIncome        core.Money                   `json:"totalIncome"`
	TotalExpenses      core.Money                   `json:"totalExpenses"`
	NetBalance         core.Money                   `json:"netBalance"`
	SpendingByCategory map[core.Category]core.Money `json:"spendingByCategory"`
	TransactionCount   int                          `json:"transactionCount"`
}

// Aggregate reduces records into Stats in a single pass. Only expenses
// contribute to SpendingByCategory.
func Aggregate(records []core.Transaction) Stats {
	st := Stats{SpendingByCategory: make(map[core.Category]core.Money)}
	for _, r := range records {
		switch r.Type {
		case core.Income:
			st.TotalIncome = st.TotalIncome.Add(r.Amount)
		case core.Expense:
			st.TotalExpenses = st.TotalExpenses.Add(r.Amount)
			st.SpendingByCategory[r.Category] = st.SpendingByCategory[r.Category].Add(r.Amount)
		}
	}
	st.NetBalance = st.TotalIncome.Sub(st.TotalExpenses)
	st.TransactionCount = len(records)
	return st
}

// Categories returns the category breakdown sorted by amount, largest first;
// ties are ordered by category name.
func (s Stats) Categories() []core.CategoryAmount {
	out := make([]core.CategoryAmount, 0, len(s.SpendingByCategory))
	for c, m := range s.SpendingByCategory {
		out = append(out, core.CategoryAmount{Category: c, Amount: m})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount.Cents != out[j].Amount.Cents {
			return out[i].Amount.Cents > out[j].Amount.Cents
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// SummarizeByMonth rolls records up per calendar month (in UTC), most recent
// month first.
func SummarizeByMonth(records []core.Transaction) []core.MonthSummary {
	type key struct{ y, m int }
	idx := make(map[key]int)
	var out []core.MonthSummary
	for _, r := range records {
		d := r.Date.UTC()
		k := key{d.Year(), int(d.Month())}
		i, ok := idx[k]
		if !ok {
			i = len(out)
			idx[k] = i
			out = append(out, core.MonthSummary{Year: k.y, Month: k.m})
		}
		switch r.Type {
		case core.Income:
			out[i].Income = out[i].Income.Add(r.Amount)
		case core.Expense:
			out[i].Expenses = out[i].Expenses.Add(r.Amount)
		}
		out[i].Count++
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year > out[j].Year
		}
		return out[i].Month > out[j].Month
	})
	return out
}
