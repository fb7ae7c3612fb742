package worker

import (
	"context"
	"fmt"
	"log/slog"

	"lifedash/internal/amqp"
	"lifedash/internal/core"
	"lifedash/internal/sheets"
)

// AckPublisher reports persisted changes back to the API server.
type AckPublisher interface {
	PublishAck(ctx context.Context, ack core.SyncAck) error
}

// ExportObserver is notified after every export attempt.
type ExportObserver interface {
	ObserveExport(op core.ChangeOp, err error)
}

// SyncWorker writes record changes to the export sink and acknowledges them.
type SyncWorker struct {
	exporter sheets.RecordExporter
	acks     AckPublisher
	observer ExportObserver
}

// Option configures a SyncWorker.
type Option func(*SyncWorker)

func WithObserver(o ExportObserver) Option {
	return func(w *SyncWorker) { w.observer = o }
}

func NewSyncWorker(exporter sheets.RecordExporter, acks AckPublisher, opts ...Option) *SyncWorker {
	w := &SyncWorker{exporter: exporter, acks: acks}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// HandleChange processes a single record change message from AMQP. An export
// failure is returned so the message is requeued; exports are idempotent per
// record id.
func (w *SyncWorker) HandleChange(ctx context.Context, msg *amqp.RecordChangeMessage) error {
	slog.InfoContext(ctx, "Processing change message",
		"user_id", msg.UserID,
		"id", msg.RecordID,
		"op", msg.Op)

	var (
		rowRef string
		err    error
	)
	switch msg.Op {
	case core.ChangeUpsert:
		rowRef, err = w.exporter.Upsert(ctx, msg.UserID, *msg.Record)
	case core.ChangeDelete:
		err = w.exporter.Delete(ctx, msg.UserID, msg.RecordID)
	default:
		err = fmt.Errorf("unknown op %q", msg.Op)
	}
	if w.observer != nil {
		w.observer.ObserveExport(msg.Op, err)
	}
	if err != nil {
		return fmt.Errorf("export %s %s: %w", msg.Op, msg.RecordID, err)
	}

	slog.InfoContext(ctx, "Successfully exported record",
		"user_id", msg.UserID,
		"id", msg.RecordID,
		"op", msg.Op,
		"row_ref", rowRef)

	if w.acks == nil {
		return nil
	}
	ack := core.SyncAck{
		UserID:    msg.UserID,
		RecordID:  msg.RecordID,
		Op:        msg.Op,
		UpdatedAt: msg.UpdatedAt,
		RowRef:    rowRef,
	}
	if err := w.acks.PublishAck(ctx, ack); err != nil {
		// The export worked; the server republishes the record on its next resync.
		slog.ErrorContext(ctx, "Failed to publish sync ack", "user_id", msg.UserID, "id", msg.RecordID, "error", err)
	}
	return nil
}
