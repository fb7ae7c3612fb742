package session

import (
	"context"
	"sort"
	"sync"
)

// MemorySnapshots is an in-process SnapshotStore. Blobs are kept encoded so
// saves go through the same JSON round trip as the SQLite store.
type MemorySnapshots struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func NewMemorySnapshots() *MemorySnapshots {
	return &MemorySnapshots{blobs: make(map[string][]byte)}
}

func (m *MemorySnapshots) Load(_ context.Context, userID string) (Persisted, bool, error) {
	m.mu.Lock()
	data, ok := m.blobs[userID]
	m.mu.Unlock()
	if !ok {
		return Persisted{}, false, nil
	}
	p, err := DecodePersisted(data)
	if err != nil {
		return Persisted{}, false, err
	}
	return p, true, nil
}

func (m *MemorySnapshots) Save(_ context.Context, userID string, p Persisted) error {
	data, err := p.Encode()
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[userID] = data
	return nil
}

func (m *MemorySnapshots) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, userID)
	return nil
}

func (m *MemorySnapshots) Keys(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.blobs))
	for k := range m.blobs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
