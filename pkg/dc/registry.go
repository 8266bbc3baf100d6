// Package dc is the DC registry: per-DC endpoints, permanent
// and temporary auth keys, server salt, the bound session handle, a
// pending-query queue, and the handshake-state/lifecycle-flag machine.
// The registry is a mutex-guarded map keyed by DC id; the caller already
// knows the id from the server's config or a migrate_to redirect, so
// GetOrCreate takes it rather than allocating one.
package dc

import "sync"

// Registry holds one State per known DC id.
type Registry struct {
	mu        sync.RWMutex
	states    map[uint32]*State
	workingDC uint32
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{states: make(map[uint32]*State)}
}

// GetOrCreate returns the State for id, creating it (with handshake state
// StateInit) if this is the first contact with that DC.
func (r *Registry) GetOrCreate(id uint32, endpoint Endpoint) *State {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.states[id]; ok {
		return s
	}
	s := &State{endpoint: endpoint, handshake: StateInit}
	r.states[id] = s
	return s
}

// Get returns the State for id, or nil and ErrNotFound if it has never
// been created.
func (r *Registry) Get(id uint32) (*State, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.states[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// SetAuthKey records a freshly established auth key together with its
// fingerprint (perm_auth_key_id == low64(sha1(perm_auth_key)[12:20])),
// which the caller computes; the registry stores it as given.
// temp selects the PFS temp-key slot instead of
// the permanent one.
func (r *Registry) SetAuthKey(id uint32, key [256]byte, temp bool, fingerprint uint64) error {
	s, err := r.Get(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if temp {
		s.tempAuthKey = key
		s.tempAuthKeyID = fingerprint
	} else {
		s.permAuthKey = key
		s.permAuthKeyID = fingerprint
		s.flags.Authorized = true
	}
	return nil
}

// SetSigned marks a DC logged-in, following a successful auth-key import
// or user sign-in.
func (r *Registry) SetSigned(id uint32) error {
	s, err := r.Get(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags.LoggedIn = true
	return nil
}

// SetWorking marks id as the registry's current primary DC — the one
// carrying ordinary (non-media, non-migration-target) traffic — and, on
// the DC itself, records that help.get_config has completed (the
// configured lifecycle flag).
func (r *Registry) SetWorking(id uint32) error {
	s, err := r.Get(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.flags.Configured = true
	s.mu.Unlock()

	r.mu.Lock()
	r.workingDC = id
	r.mu.Unlock()
	return nil
}

// WorkingDC returns the id of the current primary DC, or 0 if none has
// been designated yet.
func (r *Registry) WorkingDC() uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.workingDC
}

// SetBound marks a DC's PFS temp-key bind as complete.
func (r *Registry) SetBound(id uint32) error {
	s, err := r.Get(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags.Bound = true
	return nil
}

// AddPendingQuery parks a query's msg-id on a DC that does not yet have
// a usable session.
func (r *Registry) AddPendingQuery(id uint32, msgID int64) error {
	s, err := r.Get(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, msgID)
	return nil
}

// DrainPending removes and returns all pending msg-ids in FIFO order,
// for flushing onto the DC's current session once it becomes usable.
func (r *Registry) DrainPending(id uint32) ([]int64, error) {
	s, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	drained := s.pending
	s.pending = nil
	return drained, nil
}
