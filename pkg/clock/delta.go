package clock

import (
	"sync"
	"time"
)

// ServerTime tracks one DC's estimated offset from local monotonic
// time, adjusted from the handshake and from the first decrypted
// envelope after each connect. The monotonic half is implicit here:
// Go's time.Time already carries a monotonic reading, so Estimate simply
// adds the stored wall-clock delta to time.Now(), which carries its own
// monotonic component forward.
type ServerTime struct {
	mu    sync.Mutex
	delta float64 // serverUnixSeconds - localUnixSeconds, at last observation
	set   bool
}

// Observe records a fresh server-time reading (from the handshake's
// server_DH_inner_data.server_time, or the first decrypted envelope after
// a (re)connect).
func (s *ServerTime) Observe(serverUnixSeconds float64, observedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delta = serverUnixSeconds - float64(observedAt.Unix())
	s.set = true
}

// Delta returns the current estimated server-minus-local offset in
// seconds, or 0 if never observed.
func (s *ServerTime) Delta() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delta
}

// Known reports whether Observe has ever been called.
func (s *ServerTime) Known() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set
}

// Estimate returns the current estimated server time as Unix seconds,
// the value fed to session.NextMsgID and the envelope's msg_id window
// check.
func (s *ServerTime) Estimate() float64 {
	s.mu.Lock()
	delta := s.delta
	s.mu.Unlock()
	return float64(time.Now().Unix()) + delta
}
