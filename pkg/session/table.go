package session

import "sync"

// Table owns every live Session by an opaque handle. DC state, queries
// and connections hold only the handle, never the *Session itself, so a
// torn-down session is a failed lookup rather than a dangling pointer —
// the same shape pkg/dc uses for DC state.
type Table struct {
	mu      sync.RWMutex
	entries map[uint64]*Session
	nextID  uint64
}

// NewTable creates an empty session table.
func NewTable() *Table {
	return &Table{entries: make(map[uint64]*Session)}
}

// Create allocates a new handle, builds a Session with that handle as its
// ID, registers it, and returns it.
func (t *Table) Create(dc uint32, connHandle uint64, flushAcks func(ids []int64)) *Session {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextID++
	handle := t.nextID

	s := New(Config{ID: handle, DC: dc, ConnHandle: connHandle, FlushAcks: flushAcks})
	t.entries[handle] = s
	return s
}

// Get returns the session for handle, or nil if it has been removed.
func (t *Table) Get(handle uint64) *Session {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.entries[handle]
}

// Remove closes and removes a session, as on a bad-session notification
// or an explicit restart.
func (t *Table) Remove(handle uint64) {
	t.mu.Lock()
	s, ok := t.entries[handle]
	delete(t.entries, handle)
	t.mu.Unlock()

	if ok {
		s.Close()
	}
}

// Count returns the number of live sessions.
func (t *Table) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
