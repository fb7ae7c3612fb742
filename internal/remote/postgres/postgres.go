// Package postgres fetches transaction pages from a Postgres table shaped
// like the hosted ledger schema.
package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lifedash/internal/core"
	"lifedash/internal/ledger"
	"lifedash/internal/pagination"
	"lifedash/internal/remote"
)

// Schema creates the table the fetcher reads from.
const Schema = `
CREATE TABLE IF NOT EXISTS transactions (
	id             TEXT PRIMARY KEY,
	user_id        TEXT NOT NULL,
	amount_cents   BIGINT NOT NULL CHECK (amount_cents >= 0),
	currency       TEXT NOT NULL DEFAULT 'EUR',
	category       TEXT NOT NULL,
	description    TEXT NOT NULL,
	date           TIMESTAMPTZ NOT NULL,
	type           TEXT NOT NULL CHECK (type IN ('income', 'expense')),
	payment_method TEXT NOT NULL DEFAULT '',
	tags           TEXT[] NOT NULL DEFAULT '{}',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS transactions_user_date_idx ON transactions (user_id, date DESC, id);
`

const columns = `id, amount_cents, currency, category, description, date, type, payment_method, tags, created_at, updated_at`

var _ pagination.Fetcher = (*Fetcher)(nil)

type Fetcher struct {
	Pool *pgxpool.Pool
}

func NewFetcher(pool *pgxpool.Pool) *Fetcher {
	return &Fetcher{Pool: pool}
}

// Connect opens a pool for dsn and verifies it.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates the transactions table when missing.
func (f *Fetcher) EnsureSchema(ctx context.Context) error {
	if _, err := f.Pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Fetch reads one page. One extra row is requested to learn whether another
// page exists.
func (f *Fetcher) Fetch(ctx context.Context, req pagination.Request) (pagination.Page, error) {
	size := remote.ClampPageSize(req.PageSize, pagination.DefaultPageSize)
	sql, args := buildQuery(req.UserID, req.Filter, size+1, remote.Offset(req.Page, size))

	rows, err := f.Pool.Query(ctx, sql, args...)
	if err != nil {
		return pagination.Page{}, fmt.Errorf("query transactions: %w", err)
	}
	records, err := pgx.CollectRows(rows, scanTransaction)
	if err != nil {
		return pagination.Page{}, fmt.Errorf("scan transactions: %w", err)
	}

	page := pagination.Page{Records: records, HasMore: len(records) > size}
	if page.HasMore {
		page.Records = records[:size]
	}
	if page.Records == nil {
		page.Records = []core.Transaction{}
	}
	return page, nil
}

func scanTransaction(row pgx.CollectableRow) (core.Transaction, error) {
	var (
		t     core.Transaction
		cents int64
		typ   string
		cat   string
		pm    string
	)
	err := row.Scan(&t.ID, &cents, &t.Currency, &cat, &t.Description, &t.Date, &typ, &pm, &t.Tags, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return core.Transaction{}, err
	}
	t.Amount = core.Cents(cents)
	t.Category = core.Category(cat)
	t.Type = core.TransactionType(typ)
	t.PaymentMethod = core.PaymentMethod(pm)
	if t.Tags == nil {
		t.Tags = []string{}
	}
	t.Synced = true
	return t, nil
}

// buildQuery renders the filter as a parameterised WHERE clause with the
// same semantics as ledger.Filter.Matches.
func buildQuery(userID string, f ledger.Filter, limit, offset int) (string, []any) {
	args := []any{userID}
	where := []string{"user_id = $1"}
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if remote.Constrained(string(f.Type)) {
		where = append(where, "type = "+arg(string(f.Type)))
	}
	if remote.Constrained(string(f.Category)) {
		where = append(where, "category = "+arg(string(f.Category)))
	}
	if f.StartDate != nil {
		where = append(where, "date >= "+arg(*f.StartDate))
	}
	if f.EndDate != nil {
		where = append(where, "date <= "+arg(*f.EndDate))
	}
	if q := strings.TrimSpace(f.SearchQuery); q != "" {
		p := arg("%" + escapeLike(q) + "%")
		where = append(where, fmt.Sprintf("(description ILIKE %s OR category ILIKE %s)", p, p))
	}
	if f.MinAmount != nil {
		where = append(where, "amount_cents >= "+arg(f.MinAmount.Cents))
	}
	if f.MaxAmount != nil {
		where = append(where, "amount_cents <= "+arg(f.MaxAmount.Cents))
	}
	if len(f.Tags) > 0 {
		where = append(where, "tags && "+arg(f.Tags)+"::text[]")
	}

	sql := "SELECT " + columns + " FROM transactions WHERE " + strings.Join(where, " AND ") +
		" ORDER BY date DESC, id LIMIT " + arg(limit) + " OFFSET " + arg(offset)
	return sql, args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
