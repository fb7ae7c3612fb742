package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"lifedash/internal/core"
)

// RecordChangeMessage carries one local mutation from the API server to the
// sync worker. Upserts embed the full record so the worker needs no lookup.
type RecordChangeMessage struct {
	core.RecordChange
	Timestamp time.Time `json:"timestamp"`
}

// SyncAckMessage reports that the worker persisted a change remotely.
type SyncAckMessage struct {
	core.SyncAck
	Timestamp time.Time `json:"timestamp"`
}

func NewRecordChangeMessage(change core.RecordChange) *RecordChangeMessage {
	return &RecordChangeMessage{RecordChange: change, Timestamp: time.Now()}
}

func NewSyncAckMessage(ack core.SyncAck) *SyncAckMessage {
	return &SyncAckMessage{SyncAck: ack, Timestamp: time.Now()}
}

func (m *RecordChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecordChangeMessageFromJSON decodes and sanity-checks a change message.
func RecordChangeMessageFromJSON(data []byte) (*RecordChangeMessage, error) {
	var msg RecordChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Op {
	case core.ChangeUpsert:
		if msg.Record == nil {
			return nil, fmt.Errorf("upsert %s without record", msg.RecordID)
		}
	case core.ChangeDelete:
	default:
		return nil, fmt.Errorf("unknown op %q", msg.Op)
	}
	if msg.UserID == "" || msg.RecordID == "" {
		return nil, fmt.Errorf("change message missing user or record id")
	}
	return &msg, nil
}

func (m *SyncAckMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func SyncAckMessageFromJSON(data []byte) (*SyncAckMessage, error) {
	var msg SyncAckMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.UserID == "" || msg.RecordID == "" {
		return nil, fmt.Errorf("ack message missing user or record id")
	}
	return &msg, nil
}
