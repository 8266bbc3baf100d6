// Package session implements one logical MTProto message stream over a
// connection: session-id, the monotonic msg-id generator, the
// seq-no generator, and the pending-acknowledgement set with its 1-second
// flush timer.
//
// Acks are batched: MTProto acknowledges every outstanding message in
// one msgs_ack rather than per request, so the session buffers ids and
// flushes them on a single timer.
package session

import (
	"sync"
	"time"

	"github.com/pion/logging"
)

const ackFlushDelay = 1 * time.Second

// Config configures a Session.
type Config struct {
	ID         uint64
	DC         uint32
	ConnHandle uint64

	// FlushAcks is invoked with the buffered msg-ids when the ack timer
	// fires. The caller serializes and sends a single msgs_ack.
	FlushAcks func(ids []int64)

	// AckDelay overrides the ack-flush timer's duration. Defaults to 1s
	//.
	AckDelay time.Duration

	LoggerFactory logging.LoggerFactory
}

// Session is one logical message stream over a connection.
type Session struct {
	id         uint64
	dc         uint32
	connHandle uint64
	flushAcks  func(ids []int64)
	ackDelay   time.Duration
	log        logging.LeveledLogger

	mu            sync.Mutex
	lastMsgID     int64
	seqNo         uint32
	pendingAcks   []int64
	ackTimer      *time.Timer
	receivedCount uint64
	closed        bool
}

// New creates a Session.
func New(config Config) *Session {
	delay := config.AckDelay
	if delay <= 0 {
		delay = ackFlushDelay
	}

	s := &Session{
		id:         config.ID,
		dc:         config.DC,
		connHandle: config.ConnHandle,
		flushAcks:  config.FlushAcks,
		ackDelay:   delay,
	}
	if config.LoggerFactory != nil {
		s.log = config.LoggerFactory.NewLogger("session")
	}
	return s
}

// ID returns the session id.
func (s *Session) ID() uint64 { return s.id }

// DC returns the handle of the DC this session belongs to.
func (s *Session) DC() uint32 { return s.dc }

// ConnHandle returns the handle of the connection this session is bound to.
func (s *Session) ConnHandle() uint64 { return s.connHandle }

// NextMsgID produces the next strictly increasing client msg-id:
// `max(prior+4, floor(server_time * 2^32) & ~3)`. serverTime is
// the caller's current server-time estimate (local monotonic time plus
// the DC's server_time_delta).
func (s *Session) NextMsgID(serverTime float64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	candidate := int64(serverTime*4294967296.0) &^ 3
	next := s.lastMsgID + 4
	if candidate > next {
		next = candidate
	}
	s.lastMsgID = next
	return next
}

// NextSeqNo returns `seq*2 + (contentRelated?1:0)` and increments the
// internal seq counter.
func (s *Session) NextSeqNo(contentRelated bool) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.seqNo * 2
	if contentRelated {
		v++
	}
	s.seqNo++
	return v
}

// ReceivedCount returns how many inbound messages this session has
// processed.
func (s *Session) ReceivedCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.receivedCount
}

// OnMessageReceived records an inbound message. If msgID's low bit is
// set, it requires acknowledgement: the id is buffered and the 1-second
// ack-flush timer is armed if not already running.
func (s *Session) OnMessageReceived(msgID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.receivedCount++
	if s.closed {
		return
	}
	if msgID&1 == 0 {
		return
	}

	s.pendingAcks = append(s.pendingAcks, msgID)
	if s.ackTimer == nil {
		s.ackTimer = time.AfterFunc(s.ackDelay, s.flush)
	}
}

// flush sends the buffered ack ids as a single msgs_ack and clears the set.
func (s *Session) flush() {
	s.mu.Lock()
	ids := s.pendingAcks
	s.pendingAcks = nil
	s.ackTimer = nil
	closed := s.closed
	s.mu.Unlock()

	if closed || len(ids) == 0 {
		return
	}
	if s.flushAcks != nil {
		s.flushAcks(ids)
	}
}

// Close stops the ack-flush timer. Any buffered acks are discarded: the
// session is being torn down, not merely idle.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.ackTimer != nil {
		s.ackTimer.Stop()
		s.ackTimer = nil
	}
	s.pendingAcks = nil
}
