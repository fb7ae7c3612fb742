package core

// CategoryAmount represents an amount aggregated by category.
type CategoryAmount struct {
	Category Category `json:"category"`
	Amount   Money    `json:"amount"`
}

// MonthSummary is a compact income/expense rollup for a specific year+month.
type MonthSummary struct {
	Year     int   `json:"year"`
	Month    int   `json:"month"` // 1-12
	Income   Money `json:"income"`
	Expenses Money `json:"expenses"`
	Count    int   `json:"count"`
}

// Net returns income minus expenses for the month.
func (m MonthSummary) Net() Money {
	return m.Income.Sub(m.Expenses)
}
