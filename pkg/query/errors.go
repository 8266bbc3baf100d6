// Package query implements the per-outstanding-RPC query manager: one
// Query per in-flight msg-id, ack/result/error routing, retry
// on transient failure, DC migration, flood-wait back-off, and the
// error-classification table that turns an rpc_error into one of those
// actions.
package query

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	ErrNoSession    = errors.New("query: no live session for the target DC")
	ErrUnknownQuery = errors.New("query: msg_id not found in the pending table")
)

// Migrate is returned (via Result.Err) when the server redirected the
// query to a different DC (code 303).
type Migrate struct {
	DC uint32
}

func (m Migrate) Error() string { return fmt.Sprintf("query: migrate to DC %d", m.DC) }

// FloodWait is what Classify returns for 420 FLOOD_WAIT_<n>. Manager
// handles it by waiting and resending (see Manager.OnRPCError) and never
// delivers it in a Result; it is exported so logging code can recognize
// it via errors.As.
type FloodWait struct {
	Seconds int
}

func (f FloodWait) Error() string { return fmt.Sprintf("query: flood wait %ds", f.Seconds) }

// PasswordRequired is returned when the server demands 2FA (401
// SESSION_PASSWORD_NEEDED).
type PasswordRequired struct{}

func (PasswordRequired) Error() string { return "query: two-factor password required" }

// Terminal is a non-retryable RPC failure delivered to the caller (400/403/404
// and fatal 401/exhausted-retry cases).
type Terminal struct {
	Code    int32
	Message string
}

func (t Terminal) Error() string { return fmt.Sprintf("query: rpc_error %d %s", t.Code, t.Message) }

// Transient marks a 500-class error that is being retried; it is never
// delivered to the caller directly (it escalates to Terminal once
// MaxTransientRetries is exhausted), but is exported so logging/metrics
// code can recognize the retry path via errors.As.
type Transient struct {
	Code    int32
	Message string
}

func (t Transient) Error() string {
	return fmt.Sprintf("query: transient rpc_error %d %s (retrying)", t.Code, t.Message)
}
