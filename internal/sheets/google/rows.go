package google

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"lifedash/internal/core"
)

// Column layout: A id, B user, C date, D type, E category, F description,
// G amount, H currency, I payment method, J tags, K updated at.
const lastColumn = "K"

const dateLayout = "2006-01-02"

func headerRow() []any {
	return []any{"ID", "User", "Date", "Type", "Category", "Description",
		"Amount", "Currency", "Payment", "Tags", "Updated"}
}

func recordRow(userID string, t core.Transaction) []any {
	return []any{
		t.ID,
		userID,
		t.Date.UTC().Format(dateLayout),
		string(t.Type),
		string(t.Category),
		t.Description,
		t.Amount.String(),
		t.Currency,
		string(t.PaymentMethod),
		strings.Join(t.Tags, ","),
		t.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// findRow returns the 1-based sheet row holding the record, or 0.
func findRow(values [][]any, userID, id string) int {
	for i, row := range values {
		cols := toStrings(row)
		if len(cols) < 2 {
			continue
		}
		if cols[0] == id && cols[1] == userID {
			return i + 1
		}
	}
	return 0
}

func parseRows(values [][]any, userID string) []core.Transaction {
	out := make([]core.Transaction, 0, len(values))
	for i, row := range values {
		cols := toStrings(row)
		if len(cols) < 7 || cols[1] != userID {
			continue
		}
		t, err := parseRow(cols)
		if err != nil {
			slog.Debug("Skipping sheet row", "row", i+1, "error", err)
			continue
		}
		out = append(out, t)
	}
	return out
}

func parseRow(cols []string) (core.Transaction, error) {
	date, err := time.Parse(dateLayout, cols[2])
	if err != nil {
		return core.Transaction{}, fmt.Errorf("date %q: %w", cols[2], err)
	}
	amount, err := core.ParseMoney(cols[6])
	if err != nil {
		return core.Transaction{}, fmt.Errorf("amount %q: %w", cols[6], err)
	}
	t := core.Transaction{
		ID:            cols[0],
		Date:          date,
		Type:          core.TransactionType(cols[3]),
		Category:      core.Category(cols[4]),
		Description:   cols[5],
		Amount:        amount,
		Currency:      safeGet(cols, 7),
		PaymentMethod: core.PaymentMethod(safeGet(cols, 8)),
		Tags:          []string{},
		Synced:        true,
	}
	if !t.Type.Valid() {
		return core.Transaction{}, fmt.Errorf("type %q", cols[3])
	}
	if tags := safeGet(cols, 9); tags != "" {
		t.Tags = strings.Split(tags, ",")
	}
	if ts := safeGet(cols, 10); ts != "" {
		if u, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			t.UpdatedAt = u
			t.CreatedAt = u
		}
	}
	return t, nil
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
