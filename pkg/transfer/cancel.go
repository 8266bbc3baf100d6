package transfer

import "sync"

// CancelToken is a mutex-guarded cancel flag shared between the caller
// and an in-progress Upload/Download. The flag is checked before each
// unit of work, so the next part-completion after Cancel short-circuits
// to cleanup.
type CancelToken struct {
	mu        sync.Mutex
	cancelled bool
}

// NewCancelToken creates a token in the not-cancelled state.
func NewCancelToken() *CancelToken {
	return &CancelToken{}
}

// Cancel marks the token cancelled. Idempotent.
func (t *CancelToken) Cancel() {
	t.mu.Lock()
	t.cancelled = true
	t.mu.Unlock()
}

// Cancelled reports whether Cancel has been called.
func (t *CancelToken) Cancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

// cancelledOrNil reports false for a nil token, so callers can pass an
// optional token without a separate nil check at every call site.
func cancelledOrNil(t *CancelToken) bool {
	return t != nil && t.Cancelled()
}
