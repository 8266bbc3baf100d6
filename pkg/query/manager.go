package query

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/logging"
	"golang.org/x/time/rate"

	"github.com/telemtproto/mtproto/pkg/clock"
	"github.com/telemtproto/mtproto/pkg/dc"
	"github.com/telemtproto/mtproto/pkg/session"
)

// MaxTransientRetries bounds resends for 500-class "Transient" errors.
// Flood-wait retries are uncapped in count but rate-limited by
// Config.Limiter.
const MaxTransientRetries = 5

// transientBackoff is the base delay applied to a 500-class error
// before its resend, on top of the jitter.
const transientBackoff = 10 * time.Second

// defaultTimeout is the per-query timeout before a resend attempt.
const defaultTimeout = 30 * time.Second

// SendFunc dispatches a query's payload onto the wire: the caller (the
// client's transport/session/mtproto wiring) assigns nothing further,
// since msg_id/seq_no are already fixed by the time SendFunc is called.
type SendFunc func(dcHandle uint32, sessionHandle uint64, msgID int64, seqNo uint32, payload []byte) error

// MigrateFunc resolves a 303 redirect to a live session on targetDC:
// switch the working DC to n, reset the query's session, resend. Standing
// up targetDC — resolving its endpoint and running the handshake if it has
// never been contacted — needs the DC-endpoint discovery this package does
// not own, so the host supplies this narrow contract instead.
// If nil, a Migrate classification is delivered to the caller as a
// terminal Result rather than retried automatically.
type MigrateFunc func(targetDC uint32) (sessionHandle uint64, err error)

// AuthTransferFunc performs the cross-DC authorization transfer: the
// first Query targeted at a DC that is authorized but not logged_in
// triggers auth.exportAuthorization(target_dc) on the working DC, then
// auth.importAuthorization(id, bytes) on the target DC. Building those
// two RPC bodies needs the TL type registry, so the
// host supplies this function; on success it is expected to have called
// Registry.SetSigned(targetDC) itself.
type AuthTransferFunc func(targetDC uint32) error

// Config configures a Manager.
type Config struct {
	DCs      *dc.Registry
	Sessions *session.Table
	Send     SendFunc

	// Migrate resolves 303 redirects. Optional; see MigrateFunc.
	Migrate MigrateFunc

	// AuthTransfer performs cross-DC authorization transfer.
	// Optional; without it, Submit proceeds directly (matching prior
	// behavior) even against a not-yet-logged-in DC.
	AuthTransfer AuthTransferFunc

	// Clock is the timer source for per-query timeouts and backoff
	// delays. Defaults to clock.Real.
	Clock clock.Source

	// Timeout overrides the per-query resend timeout. Defaults to 30s.
	Timeout time.Duration

	// Limiter paces flood-wait and transient resends so a pathological
	// server cannot wedge the client into a tight resend loop. Defaults
	// to an unlimited limiter if nil.
	Limiter *rate.Limiter

	LoggerFactory logging.LoggerFactory
}

// Manager is the process-wide {msg_id -> Query} table and its
// retry/error-classification logic.
type Manager struct {
	dcs          *dc.Registry
	sessions     *session.Table
	send         SendFunc
	migrate      MigrateFunc
	authTransfer AuthTransferFunc
	clk          clock.Source
	timeout      time.Duration
	limiter      *rate.Limiter
	log          logging.LeveledLogger

	mu      sync.Mutex
	queries map[int64]*Query
}

// NewManager creates a Manager.
func NewManager(config Config) *Manager {
	clk := config.Clock
	if clk == nil {
		clk = clock.Real
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	limiter := config.Limiter
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}

	m := &Manager{
		dcs:          config.DCs,
		sessions:     config.Sessions,
		send:         config.Send,
		migrate:      config.Migrate,
		authTransfer: config.AuthTransfer,
		clk:          clk,
		timeout:      timeout,
		limiter:      limiter,
		queries:      make(map[int64]*Query),
	}
	if config.LoggerFactory != nil {
		m.log = config.LoggerFactory.NewLogger("query")
	}
	return m
}

// Submit assigns a msg-id/seq-no on the DC's current session and sends
// payload, registering a Query that tracks it to completion.
// It returns ErrNoSession if the DC has no live session; the caller is
// expected to park the payload itself (e.g. via the DC registry's pending
// queue) and resubmit once a session exists.
func (m *Manager) Submit(dcHandle uint32, sessionHandle uint64, payload []byte, contentRelated bool, callback func(Result)) (int64, error) {
	return m.SubmitPrepared(dcHandle, sessionHandle, func(int64) ([]byte, error) { return payload, nil }, contentRelated, callback)
}

// SubmitPrepared is Submit for payloads that must embed their own msg-id
// (auth.bindTempAuthKey's inner encrypted message carries the id of the
// query that delivers it): build runs after the session has assigned the
// msg-id and before the first send.
func (m *Manager) SubmitPrepared(dcHandle uint32, sessionHandle uint64, build func(msgID int64) ([]byte, error), contentRelated bool, callback func(Result)) (int64, error) {
	dcState, err := m.dcs.Get(dcHandle)
	if err != nil {
		return 0, err
	}

	if m.authTransfer != nil && dcHandle != m.dcs.WorkingDC() {
		flags := dcState.Flags()
		if flags.Authorized && !flags.LoggedIn {
			if err := m.authTransfer(dcHandle); err != nil {
				return 0, err
			}
		}
	}

	sess := m.sessions.Get(sessionHandle)
	if sess == nil {
		return 0, ErrNoSession
	}

	serverTime := float64(time.Now().Unix()) + dcState.ServerTimeDelta()
	msgID := sess.NextMsgID(serverTime)
	seqNo := sess.NextSeqNo(contentRelated)

	payload, err := build(msgID)
	if err != nil {
		return 0, err
	}

	q := &Query{
		MsgID:          msgID,
		DC:             dcHandle,
		Session:        sessionHandle,
		Payload:        payload,
		SeqNo:          seqNo,
		ContentRelated: contentRelated,
		Callback:       callback,
		CorrelationID:  uuid.New(),
		state:          StateInFlight,
	}

	m.mu.Lock()
	m.queries[msgID] = q
	m.mu.Unlock()

	q.timer = clock.CreateTimer(m.clk, func() { m.onTimeout(msgID) })
	q.timer.Start(m.timeout)

	if err := m.send(dcHandle, sessionHandle, msgID, seqNo, payload); err != nil {
		m.remove(msgID)
		return 0, err
	}
	if m.log != nil {
		m.log.Debugf("query %s: submitted msg_id=%d dc=%d", q.CorrelationID, msgID, dcHandle)
	}
	return msgID, nil
}

// OnAck marks every referenced query "ack received" and cancels its
// timeout.
func (m *Manager) OnAck(msgIDs []int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range msgIDs {
		q, ok := m.queries[id]
		if !ok {
			continue
		}
		q.Flags.AckReceived = true
		q.state = StateAckedAwaitingResult
		if q.timer != nil {
			q.timer.Cancel()
		}
	}
}

// OnResult delivers a successful rpc_result body to the query's callback
// and removes it from the table.
func (m *Manager) OnResult(msgID int64, body []byte) {
	q := m.remove(msgID)
	if q == nil {
		return
	}
	if q.Callback != nil {
		q.Callback(Result{Body: body})
	}
}

// OnRPCError classifies an rpc_error and applies the error policy table:
// flood-wait is resent after the server-named delay without delivering a
// Result; transient errors are resent after a backoff until
// MaxTransientRetries is exhausted, then delivered as Terminal; migrate is
// retargeted through the Migrate hook and resent when one is configured,
// otherwise delivered as a typed Migrate Result; password-required and
// terminal errors are delivered immediately.
func (m *Manager) OnRPCError(msgID int64, code int32, message string) {
	m.mu.Lock()
	q, ok := m.queries[msgID]
	m.mu.Unlock()
	if !ok {
		return
	}

	switch err := Classify(code, message).(type) {
	case FloodWait:
		m.scheduleResend(q, time.Duration(err.Seconds)*time.Second)
	case Transient:
		if q.retries >= MaxTransientRetries {
			m.deliverTerminal(msgID, Terminal{Code: err.Code, Message: err.Message})
			return
		}
		m.scheduleResend(q, transientBackoff+jitter())
	case Migrate:
		m.onMigrate(q, err)
	case PasswordRequired:
		m.deliverTerminal(msgID, err)
	case Terminal:
		m.deliverTerminal(msgID, err)
	}
}

// OnBadServerSalt updates the DC's server salt and requeues the query
// immediately.
func (m *Manager) OnBadServerSalt(msgID int64, newSalt uint64) {
	m.mu.Lock()
	q, ok := m.queries[msgID]
	m.mu.Unlock()
	if !ok {
		return
	}
	if dcState, err := m.dcs.Get(q.DC); err == nil {
		dcState.SetServerSalt(newSalt)
	}
	m.scheduleResend(q, 0)
}

// OnBadMsgNotification regenerates and resends the query for the
// recoverable codes (16, 17, 64); other codes are ignored
// here (no documented client-side recovery).
func (m *Manager) OnBadMsgNotification(msgID int64, code int32) {
	switch code {
	case 16, 17, 64:
	default:
		return
	}
	m.mu.Lock()
	q, ok := m.queries[msgID]
	m.mu.Unlock()
	if !ok {
		return
	}
	m.scheduleResend(q, 0)
}

// onMigrate implements 303 handling: switch the working DC to n, reset
// the query's session, resend. Without a MigrateFunc the redirect is
// surfaced to the caller instead, matching this manager's behavior before
// cross-DC retargeting was wired in.
func (m *Manager) onMigrate(q *Query, mig Migrate) {
	if m.migrate == nil {
		m.deliverTerminal(q.MsgID, mig)
		return
	}
	sessHandle, err := m.migrate(mig.DC)
	if err != nil {
		m.deliverTerminal(q.MsgID, mig)
		return
	}

	m.mu.Lock()
	q.DC = mig.DC
	q.Session = sessHandle
	m.mu.Unlock()

	if err := m.dcs.SetWorking(mig.DC); err != nil && m.log != nil {
		m.log.Warnf("query %d: SetWorking(%d) after migrate: %v", q.MsgID, mig.DC, err)
	}
	m.resend(q)
}

// onTimeout implements resend-on-timeout: if the DC still has
// a session, the query is resent under its prior msg_id (see resend);
// otherwise it is parked on the DC's pending queue.
func (m *Manager) onTimeout(msgID int64) {
	m.mu.Lock()
	q, ok := m.queries[msgID]
	m.mu.Unlock()
	if !ok {
		return
	}

	if m.sessions.Get(q.Session) == nil {
		if err := m.dcs.AddPendingQuery(q.DC, msgID); err != nil && m.log != nil {
			m.log.Warnf("query %d: failed to park on DC %d: %v", msgID, q.DC, err)
		}
		return
	}
	m.resend(q)
}

// scheduleResend arms (or immediately fires, for delay<=0) a resend after
// delay, additionally paced by the shared rate limiter so concurrent
// flood-waits/transient retries cannot exceed the configured resend rate.
func (m *Manager) scheduleResend(q *Query, delay time.Duration) {
	extra := m.limiter.Reserve().Delay()
	total := delay + extra

	if total <= 0 {
		m.resend(q)
		return
	}
	if q.timer == nil {
		q.timer = clock.CreateTimer(m.clk, func() { m.resend(q) })
	}
	q.timer.Start(total)
}

// resend re-submits q's payload under its existing msg_id and seq_no.
// Manager does not wrap the payload in a msg_container itself; it only
// increments the retry counter and re-invokes Send with the tracked
// msg_id/seq_no/session, and any wrapping is up to the SendFunc.
func (m *Manager) resend(q *Query) {
	m.mu.Lock()
	q.retries++
	m.mu.Unlock()

	if err := m.send(q.DC, q.Session, q.MsgID, q.SeqNo, q.Payload); err != nil {
		if m.log != nil {
			m.log.Warnf("query %d: resend failed: %v", q.MsgID, err)
		}
		return
	}
	if q.timer != nil {
		q.timer.Start(m.timeout)
	}
}

// deliverTerminal removes the query and delivers a terminal Result.
func (m *Manager) deliverTerminal(msgID int64, err error) {
	q := m.remove(msgID)
	if q == nil {
		return
	}
	if q.Callback != nil {
		q.Callback(Result{Err: err})
	}
}

// remove pops msgID from the table, stopping its timer, and returns it
// (nil if absent).
func (m *Manager) remove(msgID int64) *Query {
	m.mu.Lock()
	q, ok := m.queries[msgID]
	if ok {
		delete(m.queries, msgID)
		q.state = StateComplete
	}
	m.mu.Unlock()
	if ok && q.timer != nil {
		q.timer.Cancel()
	}
	if !ok {
		return nil
	}
	return q
}

// Get returns the query for msgID, or nil if none is pending.
func (m *Manager) Get(msgID int64) *Query {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queries[msgID]
}

// Count returns the number of pending queries.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queries)
}

func jitter() time.Duration {
	return time.Duration(rand.Int63n(int64(2 * time.Second)))
}
