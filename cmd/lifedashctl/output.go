package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"lifedash/internal/core"
	"lifedash/internal/ledger"
	"lifedash/internal/storage"
)

const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

// table is a header plus rows, written through a tabwriter.
type table struct {
	header []string
	rows   [][]string
}

// render writes v as JSON or YAML, or t for the table format. YAML goes
// through the JSON encoding so amounts stay decimal strings and keys keep
// their camelCase names.
func render(w io.Writer, format string, v any, t table) error {
	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case outputYAML:
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var generic any
		if err := json.Unmarshal(data, &generic); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return err
		}
		return enc.Close()
	default:
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, strings.Join(t.header, "\t"))
		for _, row := range t.rows {
			fmt.Fprintln(tw, strings.Join(row, "\t"))
		}
		return tw.Flush()
	}
}

func sessionsTable(infos []storage.SnapshotInfo) table {
	t := table{header: []string{"USER", "TRANSACTIONS", "UNSYNCED", "EVENTS", "UPDATED"}}
	for _, info := range infos {
		t.rows = append(t.rows, []string{
			info.UserID,
			fmt.Sprint(info.TransactionCount),
			fmt.Sprint(info.UnsyncedCount),
			fmt.Sprint(info.EventCount),
			info.UpdatedAt.Format(time.RFC3339),
		})
	}
	return t
}

func transactionsTable(txs []core.Transaction) table {
	t := table{header: []string{"ID", "DATE", "TYPE", "CATEGORY", "AMOUNT", "DESCRIPTION", "SYNCED"}}
	for _, tx := range txs {
		t.rows = append(t.rows, []string{
			tx.ID,
			tx.Date.Format("2006-01-02"),
			string(tx.Type),
			string(tx.Category),
			tx.Amount.String() + " " + tx.Currency,
			tx.Description,
			fmt.Sprint(tx.Synced),
		})
	}
	return t
}

func statsTable(st ledger.Stats) table {
	t := table{header: []string{"METRIC", "VALUE"}}
	t.rows = append(t.rows,
		[]string{"transactions", fmt.Sprint(st.TransactionCount)},
		[]string{"income", st.TotalIncome.String()},
		[]string{"expenses", st.TotalExpenses.String()},
		[]string{"net", st.NetBalance.String()},
	)
	cats := make([]string, 0, len(st.SpendingByCategory))
	for c := range st.SpendingByCategory {
		cats = append(cats, string(c))
	}
	sort.Strings(cats)
	for _, c := range cats {
		t.rows = append(t.rows, []string{"spent:" + c, st.SpendingByCategory[core.Category(c)].String()})
	}
	return t
}

func monthsTable(months []core.MonthSummary) table {
	t := table{header: []string{"MONTH", "INCOME", "EXPENSES", "NET", "COUNT"}}
	for _, m := range months {
		t.rows = append(t.rows, []string{
			fmt.Sprintf("%04d-%02d", m.Year, m.Month),
			m.Income.String(),
			m.Expenses.String(),
			m.Net().String(),
			fmt.Sprint(m.Count),
		})
	}
	return t
}

func eventsTable(events []core.CalendarEvent) table {
	t := table{header: []string{"ID", "START", "END", "ALL DAY", "TITLE"}}
	for _, e := range events {
		layout := time.RFC3339
		if e.IsAllDay {
			layout = "2006-01-02"
		}
		t.rows = append(t.rows, []string{
			e.ID,
			e.StartDate.Format(layout),
			e.EndDate.Format(layout),
			fmt.Sprint(e.IsAllDay),
			e.Title,
		})
	}
	return t
}
