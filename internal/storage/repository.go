// Package storage persists session snapshots in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"lifedash/internal/session"

	_ "modernc.org/sqlite"
)

// SnapshotInfo describes a stored snapshot without decoding its payload.
type SnapshotInfo struct {
	UserID           string    `json:"userId" yaml:"userId"`
	LayoutVersion    int       `json:"layoutVersion" yaml:"layoutVersion"`
	TransactionCount int       `json:"transactionCount" yaml:"transactionCount"`
	UnsyncedCount    int       `json:"unsyncedCount" yaml:"unsyncedCount"`
	EventCount       int       `json:"eventCount" yaml:"eventCount"`
	UpdatedAt        time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// SnapshotRepository implements session.SnapshotStore on SQLite.
type SnapshotRepository struct {
	db  *sql.DB
	now func() time.Time
}

var _ session.SnapshotStore = (*SnapshotRepository)(nil)

func NewSnapshotRepository(dbPath string) (*SnapshotRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// modernc sqlite serialises writers; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	slog.Debug("Snapshot store ready", "path", dbPath, "schema_version", version)
	return &SnapshotRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

func (r *SnapshotRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SnapshotRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SnapshotRepository) Load(ctx context.Context, userID string) (session.Persisted, bool, error) {
	var payload string
	err := r.db.QueryRowContext(ctx,
		`SELECT payload FROM session_snapshots WHERE user_id = ?`, userID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Persisted{}, false, nil
	}
	if err != nil {
		return session.Persisted{}, false, fmt.Errorf("query snapshot: %w", err)
	}
	p, err := session.DecodePersisted([]byte(payload))
	if err != nil {
		return session.Persisted{}, false, err
	}
	return p, true, nil
}

func (r *SnapshotRepository) Save(ctx context.Context, userID string, p session.Persisted) error {
	payload, err := p.Encode()
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	unsynced := 0
	for _, t := range p.Transactions {
		if !t.Synced {
			unsynced++
		}
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO session_snapshots
			(user_id, layout_version, payload, transaction_count, unsynced_count, event_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			layout_version = excluded.layout_version,
			payload = excluded.payload,
			transaction_count = excluded.transaction_count,
			unsynced_count = excluded.unsynced_count,
			event_count = excluded.event_count,
			updated_at = excluded.updated_at`,
		userID, p.Version, string(payload), len(p.Transactions), unsynced, len(p.Events), r.now())
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}

	slog.DebugContext(ctx, "Snapshot saved",
		"user_id", userID,
		"transactions", len(p.Transactions),
		"unsynced", unsynced,
		"bytes", len(payload))
	return nil
}

func (r *SnapshotRepository) Delete(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM session_snapshots WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

func (r *SnapshotRepository) Keys(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT user_id FROM session_snapshots ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan snapshot key: %w", err)
		}
		keys = append(keys, id)
	}
	return keys, rows.Err()
}

// List returns snapshot metadata ordered by most recent update.
func (r *SnapshotRepository) List(ctx context.Context) ([]SnapshotInfo, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, layout_version, transaction_count, unsynced_count, event_count, updated_at
		FROM session_snapshots
		ORDER BY updated_at DESC, user_id`)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []SnapshotInfo
	for rows.Next() {
		var info SnapshotInfo
		if err := rows.Scan(&info.UserID, &info.LayoutVersion, &info.TransactionCount,
			&info.UnsyncedCount, &info.EventCount, &info.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}
