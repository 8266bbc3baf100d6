package dc

import "sync"

// Flags tracks the independent lifecycle milestones a DC passes through
//.
type Flags struct {
	Authorized bool // handshake completed, perm_auth_key established
	LoggedIn   bool // auth-key import or user sign-in succeeded
	Configured bool // help.get_config succeeded on this DC
	Bound      bool // PFS temp-key bind succeeded
}

// State is one DC's full session/key material. All
// access goes through Registry, which guards the map; State itself guards
// only its own fields so a caller holding a *State (returned by Get) can
// read a consistent snapshot without re-entering the registry.
type State struct {
	mu sync.Mutex

	endpoint Endpoint

	permAuthKey   [256]byte
	permAuthKeyID uint64
	tempAuthKey   [256]byte
	tempAuthKeyID uint64

	serverSalt      uint64
	serverTimeDelta float64

	handshake HandshakeState
	flags     Flags

	sessionHandle uint64 // 0 = none
	pending       []int64

	rsaKeyIdx int32
}

// Endpoint returns the DC's immutable endpoint.
func (s *State) Endpoint() Endpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endpoint
}

// Handshake returns the current handshake-state enum value.
func (s *State) Handshake() HandshakeState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handshake
}

// SetHandshake advances the handshake-state enum.
func (s *State) SetHandshake(hs HandshakeState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handshake = hs
}

// Flags returns a copy of the DC's lifecycle flags.
func (s *State) Flags() Flags {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flags
}

// PermAuthKey returns the permanent auth key and its fingerprint.
func (s *State) PermAuthKey() ([256]byte, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.permAuthKey, s.permAuthKeyID
}

// TempAuthKey returns the PFS temporary auth key and its fingerprint.
func (s *State) TempAuthKey() ([256]byte, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tempAuthKey, s.tempAuthKeyID
}

// ServerSalt returns the current server salt.
func (s *State) ServerSalt() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serverSalt
}

// SetServerSalt updates the server salt (set at handshake completion, and
// replaced whenever a bad_server_salt notification supplies a new one).
func (s *State) SetServerSalt(salt uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.serverSalt = salt
}

// ServerTimeDelta returns the estimated offset between server and local
// monotonic time, recorded during the handshake.
func (s *State) ServerTimeDelta() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serverTimeDelta
}

// SetServerTimeDelta records a new server-time estimate.
func (s *State) SetServerTimeDelta(delta float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.serverTimeDelta = delta
}

// SessionHandle returns the handle of the DC's current session, or 0 if
// none is bound yet.
func (s *State) SessionHandle() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionHandle
}

// SetSessionHandle binds the DC to a session handle.
func (s *State) SetSessionHandle(h uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionHandle = h
}

// RSAKeyIndex returns the index into the local trusted RSA key set chosen
// during the handshake.
func (s *State) RSAKeyIndex() int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rsaKeyIdx
}

// SetRSAKeyIndex records the chosen RSA key index.
func (s *State) SetRSAKeyIndex(idx int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rsaKeyIdx = idx
}
