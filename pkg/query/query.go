package query

import (
	"github.com/google/uuid"
	"github.com/telemtproto/mtproto/pkg/clock"
)

// State is a Query's position in its lifecycle: a query is
// pending-to-send only transiently inside Submit (no session means Submit
// itself fails with ErrNoSession, per this package's design note in
// manager.go), so there is no such state: a query in the table is
// InFlight or AckedAwaitingResult, and StateComplete marks it once done.
type State int

const (
	StateInFlight State = iota
	StateAckedAwaitingResult
	StateComplete
)

// Flags tracks a Query's independent lifecycle bits.
type Flags struct {
	AckReceived bool
	ForceSend   bool
	Login       bool
	Logout      bool
}

// Result is delivered to a Query's callback exactly once, on a terminal
// outcome: a parsed rpc_result body, or one of the typed errors in
// errors.go.
type Result struct {
	Body []byte
	Err  error
}

// Query is one outstanding request. At any moment
// at most one Query exists for a given (session, msg_id) pair, enforced by
// Manager's table being keyed on msg_id alone (msg-ids are unique
// per-session and sessions are 1:1 with their owning DC at any instant).
type Query struct {
	MsgID   int64
	DC      uint32
	Session uint64

	Payload         []byte
	SeqNo           uint32
	ContentRelated  bool
	ExpectedResult  string // informal type-tag for logging; the TL registry itself is out of scope
	Flags           Flags
	Callback        func(Result)
	CorrelationID   uuid.UUID // opaque debug-log correlation id, not on the wire

	state   State
	retries int
	timer   clock.Handle
}

// State returns the query's current lifecycle state.
func (q *Query) State() State { return q.state }

// Retries returns how many times this query has been resent due to
// timeout or a transient/flood-wait error.
func (q *Query) Retries() int { return q.retries }
