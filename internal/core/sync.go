package core

import "time"

// ChangeOp is the kind of local mutation forwarded to the remote store.
type ChangeOp string

const (
	ChangeUpsert ChangeOp = "upsert"
	ChangeDelete ChangeOp = "delete"
)

// RecordChange describes one local mutation awaiting remote persistence.
// Record is set for upserts only.
type RecordChange struct {
	UserID    string       `json:"userId"`
	Op        ChangeOp     `json:"op"`
	RecordID  string       `json:"recordId"`
	Record    *Transaction `json:"record,omitempty"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// SyncAck is the remote store's acknowledgement of a RecordChange.
// UpdatedAt echoes the change so acks for superseded edits are ignored.
type SyncAck struct {
	UserID    string    `json:"userId"`
	RecordID  string    `json:"recordId"`
	Op        ChangeOp  `json:"op"`
	UpdatedAt time.Time `json:"updatedAt"`
	RowRef    string    `json:"rowRef,omitempty"`
}

// UpsertChange builds the change for a created or updated transaction.
func UpsertChange(userID string, t Transaction) RecordChange {
	rec := t.Clone()
	return RecordChange{
		UserID:    userID,
		Op:        ChangeUpsert,
		RecordID:  t.ID,
		Record:    &rec,
		UpdatedAt: t.UpdatedAt,
	}
}

// DeleteChange builds the change for a removed transaction.
func DeleteChange(userID, id string, at time.Time) RecordChange {
	return RecordChange{UserID: userID, Op: ChangeDelete, RecordID: id, UpdatedAt: at}
}
