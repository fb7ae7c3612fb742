package sheets

import (
	"context"

	"lifedash/internal/core"
)

// Ports for outbound adapters.
type (
	// RecordExporter persists synced transactions in an external store keyed
	// by user and record id. Upsert returns a reference to the written row.
	RecordExporter interface {
		Upsert(ctx context.Context, userID string, t core.Transaction) (rowRef string, err error)
		Delete(ctx context.Context, userID, id string) error
	}

	// RecordLister reads back what an exporter holds for a user.
	RecordLister interface {
		ListRecords(ctx context.Context, userID string) ([]core.Transaction, error)
	}
)
