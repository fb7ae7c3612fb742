package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"lifedash/internal/cache"
	"lifedash/internal/core"
)

// SnapshotStore persists Persisted blobs keyed by user id.
type SnapshotStore interface {
	Load(ctx context.Context, userID string) (Persisted, bool, error)
	Save(ctx context.Context, userID string, p Persisted) error
	Delete(ctx context.Context, userID string) error
	Keys(ctx context.Context) ([]string, error)
}

// ManagerConfig sizes the resident session set.
type ManagerConfig struct {
	Session     Config
	MaxSessions int
	IdleTTL     time.Duration
}

// tracked is the manager's bookkeeping for one in-memory session. A session
// leaves memory only when it is not resident, not pinned and not dirty, so
// every caller of Acquire sees the same object.
type tracked struct {
	s        *Session
	pins     int
	saving   int
	resident bool
	dirty    bool
}

func (t *tracked) droppable() bool {
	return !t.resident && t.pins == 0 && t.saving == 0 && !t.dirty
}

// Manager owns one Session per user. Sessions are created lazily, restored
// from the snapshot store, and written back when dirty. The LRU decides which
// sessions stay resident; pinned or dirty sessions it pushes out are kept
// until they are released and saved.
type Manager struct {
	cfg       Config
	snapshots SnapshotStore
	sessions  *cache.LRUCache[*Session]

	createMu sync.Mutex

	mu   sync.Mutex
	live map[string]*tracked
}

func NewManager(cfg ManagerConfig, snapshots SnapshotStore) *Manager {
	limit := cfg.MaxSessions
	if limit <= 0 {
		limit = 1024
	}
	m := &Manager{
		cfg:       cfg.Session,
		snapshots: snapshots,
		live:      make(map[string]*tracked),
	}
	m.sessions = cache.NewLRUCache[*Session](limit, cfg.IdleTTL,
		cache.WithEvictCallback(m.evicted))
	return m
}

// Cache exposes the resident-session cache so it can join a cache.Manager sweep.
func (m *Manager) Cache() cache.Cleaner { return m.sessions }

// Acquire returns the session for userID, restoring it from the snapshot
// store on first use. The session stays in memory until release is called;
// release is idempotent.
func (m *Manager) Acquire(ctx context.Context, userID string) (*Session, func(), error) {
	s, release, _, err := m.acquire(ctx, userID, true)
	return s, release, err
}

// acquire pins the session for userID. With create unset, a user unknown to
// both memory and the snapshot store yields found=false and no session.
func (m *Manager) acquire(ctx context.Context, userID string, create bool) (*Session, func(), bool, error) {
	if userID == "" {
		return nil, func() {}, false, errors.New("empty user id")
	}
	if s, ok := m.pin(userID); ok {
		return s, m.releaser(userID, s), true, nil
	}

	m.createMu.Lock()
	defer m.createMu.Unlock()
	if s, ok := m.pin(userID); ok {
		return s, m.releaser(userID, s), true, nil
	}

	s := New(userID, m.cfg)
	found := false
	if m.snapshots != nil {
		p, ok, err := m.snapshots.Load(ctx, userID)
		if err != nil {
			return nil, func() {}, false, fmt.Errorf("load session %s: %w", userID, err)
		}
		if ok {
			s.Restore(p)
			found = true
			slog.InfoContext(ctx, "Session restored",
				"user_id", userID,
				"transactions", len(p.Transactions),
				"events", len(p.Events))
		}
	}
	if !found && !create {
		return nil, func() {}, false, nil
	}
	s.OnChange(m.markDirty)

	m.mu.Lock()
	m.live[userID] = &tracked{s: s, pins: 1, resident: true}
	m.mu.Unlock()
	m.sessions.Set(userID, s)
	return s, m.releaser(userID, s), true, nil
}

// pin takes a reference on a session already in memory and makes it the
// most recently used resident.
func (m *Manager) pin(userID string) (*Session, bool) {
	m.mu.Lock()
	t, ok := m.live[userID]
	if !ok {
		m.mu.Unlock()
		return nil, false
	}
	t.pins++
	t.resident = true
	m.mu.Unlock()

	m.sessions.Set(userID, t.s)
	return t.s, true
}

func (m *Manager) releaser(userID string, s *Session) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			t, ok := m.live[userID]
			if !ok || t.s != s {
				return
			}
			t.pins--
			if t.droppable() {
				delete(m.live, userID)
			}
		})
	}
}

// Resident lists the user ids currently held in the LRU.
func (m *Manager) Resident() []string {
	ids := m.sessions.Keys()
	sort.Strings(ids)
	return ids
}

// InMemory reports how many sessions are held, resident or retained after
// eviction.
func (m *Manager) InMemory() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}

// ApplyAck routes a sync acknowledgement to the owning session and reports
// whether it marked a record synced. Acks for users with no session in
// memory or in the snapshot store are dropped.
func (m *Manager) ApplyAck(ctx context.Context, ack core.SyncAck) (bool, error) {
	s, release, found, err := m.acquire(ctx, ack.UserID, false)
	if err != nil {
		return false, err
	}
	defer release()
	if !found {
		slog.DebugContext(ctx, "Ack for unknown user dropped", "user_id", ack.UserID, "id", ack.RecordID)
		return false, nil
	}
	applied := s.ApplyAck(ack)
	if applied {
		slog.DebugContext(ctx, "Record acknowledged", "user_id", ack.UserID, "id", ack.RecordID)
	}
	return applied, nil
}

// ResyncPending republishes the unsynced records of every known session,
// in memory or persisted.
func (m *Manager) ResyncPending(ctx context.Context) (int, error) {
	ids := map[string]struct{}{}
	m.mu.Lock()
	for id := range m.live {
		ids[id] = struct{}{}
	}
	m.mu.Unlock()
	if m.snapshots != nil {
		keys, err := m.snapshots.Keys(ctx)
		if err != nil {
			return 0, fmt.Errorf("list snapshots: %w", err)
		}
		for _, id := range keys {
			ids[id] = struct{}{}
		}
	}

	total := 0
	for id := range ids {
		s, release, err := m.Acquire(ctx, id)
		if err != nil {
			return total, err
		}
		total += s.Resync(ctx)
		release()
	}
	if total > 0 {
		slog.InfoContext(ctx, "Republished pending changes", "records", total, "sessions", len(ids))
	}
	return total, nil
}

// Flush writes every dirty session to the snapshot store and forgets
// evicted sessions that no longer need to stay in memory.
func (m *Manager) Flush(ctx context.Context) error {
	if m.snapshots == nil {
		return nil
	}
	m.mu.Lock()
	var pending []*tracked
	for _, t := range m.live {
		if t.dirty {
			t.dirty = false
			t.saving++
			pending = append(pending, t)
		}
	}
	m.mu.Unlock()

	var errs []error
	for _, t := range pending {
		err := m.save(ctx, t.s)
		m.mu.Lock()
		t.saving--
		if err != nil {
			t.dirty = true
		}
		m.mu.Unlock()
		if err != nil {
			errs = append(errs, err)
		}
	}

	m.mu.Lock()
	for id, t := range m.live {
		if t.droppable() {
			delete(m.live, id)
		}
	}
	m.mu.Unlock()
	return errors.Join(errs...)
}

// Run flushes dirty sessions every interval until ctx ends. The final flush
// is left to the caller so it can run after in-flight requests drain.
func (m *Manager) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := m.Flush(ctx); err != nil {
				slog.ErrorContext(ctx, "Snapshot flush failed", "error", err)
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// Purge drops a session from memory and from the snapshot store.
func (m *Manager) Purge(ctx context.Context, userID string) error {
	m.sessions.Delete(userID)
	m.mu.Lock()
	delete(m.live, userID)
	m.mu.Unlock()
	if m.snapshots == nil {
		return nil
	}
	if err := m.snapshots.Delete(ctx, userID); err != nil {
		return fmt.Errorf("purge session %s: %w", userID, err)
	}
	return nil
}

// Dirty reports how many sessions have unsaved changes.
func (m *Manager) Dirty() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.live {
		if t.dirty {
			n++
		}
	}
	return n
}

func (m *Manager) save(ctx context.Context, s *Session) error {
	p := Partialize(s.Snapshot())
	if err := m.snapshots.Save(ctx, s.UserID(), p); err != nil {
		return fmt.Errorf("save session %s: %w", s.UserID(), err)
	}
	return nil
}

// markDirty flags s for the next flush. Without a snapshot store there is
// nothing to flush to.
func (m *Manager) markDirty(s *Session) {
	if m.snapshots == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.live[s.UserID()]; ok && t.s == s {
		t.dirty = true
	}
}

// evicted runs when the LRU pushes a session out. Unsaved changes are written
// straight away; a session still pinned by a caller stays in memory.
func (m *Manager) evicted(userID string, s *Session) {
	m.mu.Lock()
	t, ok := m.live[userID]
	if !ok || t.s != s {
		m.mu.Unlock()
		return
	}
	t.resident = false
	save := t.dirty && m.snapshots != nil
	if save {
		t.dirty = false
		t.saving++
	}
	if t.droppable() {
		delete(m.live, userID)
	}
	m.mu.Unlock()

	if !save {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := m.save(ctx, s)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to persist evicted session", "user_id", userID, "error", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	t.saving--
	if err != nil {
		t.dirty = true
	}
	if cur, ok := m.live[userID]; ok && cur == t && t.droppable() {
		delete(m.live, userID)
	}
}
