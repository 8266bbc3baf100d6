// Package transport owns one TCP link to one DC endpoint and frames its
// byte stream with MTProto's abridged length prefix. There is no
// listener half: an MTProto client only ever dials one remote DC per
// Conn, so a Conn is a dial loop, a read loop, and write framing.
package transport

import (
	"bufio"
	"errors"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/pion/logging"
)

// Handler is invoked for each deframed inbound payload.
type Handler func(frame []byte)

// Config configures a Conn.
type Config struct {
	// Host is the DC endpoint's hostname or IP, without port.
	Host string

	// MessageHandler receives every deframed inbound payload. Required.
	MessageHandler Handler

	// OnReady is invoked once the TCP link is dialed and the abridged
	// marker byte has been sent.
	OnReady func()

	// OnFailed is invoked exactly once per failed attempt, carrying the
	// error that caused the failure. Upper layers are notified exactly
	// once per fail.
	OnFailed func(err error)

	// PingInterval is the base PING_INTERVAL used to derive the idle-ping
	// and forced-failure thresholds (ping due at 3x of silence, forced
	// failure at 6x). Defaults to 15s.
	PingInterval time.Duration

	// OnPingDue is invoked when 3*PingInterval has elapsed with no
	// inbound frame. The caller (the encrypted-transport layer, which
	// owns the actual ping RPC shape) is expected to call Write with a
	// serialized ping message in response.
	OnPingDue func()

	// DialTimeout bounds each connection attempt. Defaults to 10s.
	DialTimeout time.Duration

	// LoggerFactory creates the connection's logger. If nil, logging is
	// disabled.
	LoggerFactory logging.LoggerFactory

	// Ports overrides the port rotation cycle used on successive connect
	// attempts. Defaults to {443, 80, 25}. A single-element
	// override is used by pkg/dcdiscovery to pin a locally discovered
	// development DC's port, and by tests dialing a loopback listener.
	Ports []int
}

const (
	defaultPingInterval = 15 * time.Second
	defaultDialTimeout  = 10 * time.Second
	maxReconnectDelay   = 10 * time.Second
)

// Conn is one framed TCP link to a single DC endpoint, with reconnect and
// idle-ping liveness logic.
type Conn struct {
	host         string
	handler      Handler
	onReady      func()
	onFailed     func(err error)
	onPingDue    func()
	pingInterval time.Duration
	dialTimeout  time.Duration
	ports        []int
	log          logging.LeveledLogger

	mu       sync.Mutex
	writeMu  sync.Mutex
	state    State
	conn     net.Conn
	bw       *bufio.Writer
	portIdx  int
	attempt  int
	lastSeen time.Time

	closeCh chan struct{}
	wg      sync.WaitGroup
}

// NewConn creates a Conn. Open must be called to start dialing.
func NewConn(config Config) (*Conn, error) {
	if config.MessageHandler == nil {
		return nil, ErrNoHandler
	}

	c := &Conn{
		host:         config.Host,
		handler:      config.MessageHandler,
		onReady:      config.OnReady,
		onFailed:     config.OnFailed,
		onPingDue:    config.OnPingDue,
		pingInterval: config.PingInterval,
		dialTimeout:  config.DialTimeout,
		ports:        config.Ports,
		closeCh:      make(chan struct{}),
	}
	if c.pingInterval <= 0 {
		c.pingInterval = defaultPingInterval
	}
	if c.dialTimeout <= 0 {
		c.dialTimeout = defaultDialTimeout
	}
	if len(c.ports) == 0 {
		c.ports = portCycle[:]
	}
	if config.LoggerFactory != nil {
		c.log = config.LoggerFactory.NewLogger("transport-conn")
	}
	return c, nil
}

// State returns the connection's current lifecycle state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Open starts the connect loop. It returns immediately; readiness is
// reported through OnReady/OnFailed.
func (c *Conn) Open() error {
	c.mu.Lock()
	if c.state != StateNone {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.state = StateConnecting
	c.mu.Unlock()

	c.wg.Add(1)
	go c.connectLoop()
	return nil
}

// Close tears down the connection permanently; it will not reconnect.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return nil
	}
	c.state = StateClosed
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	select {
	case <-c.closeCh:
	default:
		close(c.closeCh)
	}
	if conn != nil {
		conn.Close()
	}
	c.wg.Wait()
	return nil
}

// Write encodes payload with the abridged length prefix and sends it.
// Returns ErrNotReady outside the ready state.
func (c *Conn) Write(payload []byte) error {
	c.mu.Lock()
	if c.state != StateReady {
		c.mu.Unlock()
		return ErrNotReady
	}
	bw := c.bw
	c.mu.Unlock()

	frame, err := EncodeFrame(payload)
	if err != nil {
		return err
	}

	// Serialize whole frames: Write is reachable from both the query path
	// and the ack-flush timer, and interleaved partial frames would
	// corrupt the stream.
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := bw.Write(frame); err != nil {
		c.fail(err)
		return err
	}
	return bw.Flush()
}

// connectLoop dials, handshakes the abridged marker, and on success
// launches the read and ping-watchdog loops; on failure it schedules a
// damped retry: exponential backoff capped at 10s, rotating through the
// port cycle.
func (c *Conn) connectLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.closeCh:
			return
		default:
		}

		c.mu.Lock()
		port := c.ports[c.portIdx%len(c.ports)]
		attempt := c.attempt
		c.mu.Unlock()

		addr := net.JoinHostPort(c.host, strconv.Itoa(port))
		conn, err := net.DialTimeout("tcp", addr, c.dialTimeout)
		if err != nil {
			c.scheduleRetry(err, attempt)
			select {
			case <-c.closeCh:
				return
			case <-time.After(backoffDelay(attempt)):
				continue
			}
		}

		if _, err := conn.Write([]byte{AbridgedMarker}); err != nil {
			conn.Close()
			c.scheduleRetry(err, attempt)
			select {
			case <-c.closeCh:
				return
			case <-time.After(backoffDelay(attempt)):
				continue
			}
		}

		c.mu.Lock()
		c.conn = conn
		c.bw = bufio.NewWriter(conn)
		c.state = StateReady
		c.attempt = 0
		c.lastSeen = time.Now()
		c.mu.Unlock()

		if c.log != nil {
			c.log.Infof("connected to %s", addr)
		}
		if c.onReady != nil {
			c.onReady()
		}

		c.wg.Add(1)
		go c.pingWatchdog()

		c.readLoop(conn)

		// readLoop returned: the link died. Loop around to reconnect
		// unless Close already fired.
		select {
		case <-c.closeCh:
			return
		default:
		}
		c.mu.Lock()
		c.portIdx++
		c.attempt++
		c.mu.Unlock()
	}
}

func (c *Conn) scheduleRetry(err error, attempt int) {
	c.mu.Lock()
	c.state = StateFailed
	c.portIdx++
	c.attempt = attempt + 1
	c.mu.Unlock()

	if c.log != nil {
		c.log.Warnf("connect failed: %v", err)
	}
	if c.onFailed != nil {
		c.onFailed(err)
	}
}

func backoffDelay(attempt int) time.Duration {
	d := time.Duration(1<<uint(minInt(attempt, 6))) * 250 * time.Millisecond
	if d > maxReconnectDelay {
		d = maxReconnectDelay
	}
	return d
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// readLoop reads frames until the connection errors or is closed.
func (c *Conn) readLoop(conn net.Conn) {
	r := bufio.NewReader(conn)
	for {
		frame, err := ReadFrame(r)
		if err != nil {
			select {
			case <-c.closeCh:
				return
			default:
			}
			c.fail(err)
			return
		}

		c.mu.Lock()
		c.lastSeen = time.Now()
		c.mu.Unlock()

		c.handler(frame)
	}
}

// pingWatchdog implements the liveness rule: ping due at 3*PingInterval
// of silence, forced failure at 6*PingInterval.
func (c *Conn) pingWatchdog() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	pinged := false
	for {
		select {
		case <-c.closeCh:
			return
		case <-ticker.C:
			c.mu.Lock()
			if c.state != StateReady {
				c.mu.Unlock()
				return
			}
			silence := time.Since(c.lastSeen)
			c.mu.Unlock()

			switch {
			case silence >= 6*c.pingInterval:
				c.fail(errConnectionIdle)
				return
			case silence >= 3*c.pingInterval:
				if !pinged && c.onPingDue != nil {
					c.onPingDue()
				}
				pinged = true
			default:
				pinged = false
			}
		}
	}
}

var errConnectionIdle = errors.New("transport: no frame received within forced-failure window")

// fail transitions to failed, drops the link, and notifies the caller
// exactly once.
func (c *Conn) fail(err error) {
	c.mu.Lock()
	if c.state == StateClosed || c.state == StateFailed {
		c.mu.Unlock()
		return
	}
	c.state = StateFailed
	conn := c.conn
	c.conn = nil
	c.bw = nil
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	if c.log != nil {
		c.log.Warnf("connection failed: %v", err)
	}
	if c.onFailed != nil {
		c.onFailed(err)
	}
}
