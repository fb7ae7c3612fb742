package session

import (
	"encoding/json"
	"fmt"

	"lifedash/internal/core"
	"lifedash/internal/ledger"
	"lifedash/internal/pagination"
)

// PersistVersion is bumped whenever the Persisted layout changes.
const PersistVersion = 1

// State is everything a session holds in memory.
type State struct {
	Transactions []core.Transaction   `json:"transactions"`
	Events       []core.CalendarEvent `json:"events"`
	Filter       ledger.Filter        `json:"filter"`
	Pagination   pagination.State     `json:"pagination"`
}

// Persisted is the subset of State that survives a restart. Filter and
// pagination are view state and start fresh.
type Persisted struct {
	Version      int                  `json:"version"`
	Transactions []core.Transaction   `json:"transactions"`
	Events       []core.CalendarEvent `json:"events"`
}

// Partialize selects the persisted subset of st.
func Partialize(st State) Persisted {
	p := Persisted{
		Version:      PersistVersion,
		Transactions: st.Transactions,
		Events:       st.Events,
	}
	if p.Transactions == nil {
		p.Transactions = []core.Transaction{}
	}
	if p.Events == nil {
		p.Events = []core.CalendarEvent{}
	}
	return p
}

// Encode renders p as the JSON blob stored under the session key.
func (p Persisted) Encode() ([]byte, error) {
	return json.Marshal(p)
}

// DecodePersisted parses a stored blob. Blobs written by a newer layout are
// rejected.
func DecodePersisted(data []byte) (Persisted, error) {
	var p Persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return Persisted{}, fmt.Errorf("decode session snapshot: %w", err)
	}
	if p.Version > PersistVersion {
		return Persisted{}, fmt.Errorf("decode session snapshot: unsupported version %d", p.Version)
	}
	return p, nil
}
