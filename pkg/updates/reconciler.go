// Package updates implements the update-stream reconciler:
// process-wide (pts, qts, seq, date) counters plus per-channel pts, gap
// detection against each incoming envelope, and the get_difference/
// get_channel_difference resync sequence gated by a global difference lock.
//
// Per-channel pts is never persisted across restarts by this package;
// the host owns durable counters. Reconciler always starts every
// channel's pts at zero and relies on a get_channel_difference call to
// resync, the same as the process-wide counters start at whatever the
// host last persisted (or zero on first run).
package updates

import (
	"strconv"
	"sync"

	"github.com/pion/logging"
	"golang.org/x/sync/singleflight"
)

// State is the process-wide reconciliation counters.
type State struct {
	Pts  int32
	Qts  int32
	Seq  int32
	Date int32
}

// Transition is Apply's outcome for one incoming envelope.
type Transition int

const (
	// TransitionApplied means every counter in the envelope matched its
	// expected next value and has been adopted.
	TransitionApplied Transition = iota
	// TransitionDuplicate means a counter was behind the expected value:
	// the envelope was already processed, drop it.
	TransitionDuplicate
	// TransitionGapPending means a counter was ahead of the expected
	// value: a get_difference or get_channel_difference fetch has been
	// scheduled (or is already in flight) and the envelope itself was
	// discarded, since the difference response is authoritative.
	TransitionGapPending
	// TransitionDeferred means the envelope arrived while the difference
	// lock was held and was dropped outright: the difference response is
	// authoritative for anything received during the fetch.
	TransitionDeferred
)

// Envelope is one incoming update's reconciliation-relevant fields.
// Pts/Qts/Seq are nil when the underlying update carries no such
// counter. ChannelID is non-zero for channel-scoped updates
// (update_new_channel_message); TooLong marks update_channel_too_long.
type Envelope struct {
	Pts      *int32
	PtsCount int32
	Qts      *int32
	Seq      *int32

	ChannelID int64
	TooLong   bool
}

// DifferenceResult is the reconciler-relevant projection of an
// updates.getDifference response: differenceEmpty sets Empty;
// difference/differenceSlice set the new counters, with More indicating a
// differenceSlice (another getDifference call is needed to drain it).
type DifferenceResult struct {
	Empty bool
	State State
	More  bool
}

// ChannelDifferenceResult is the analogous projection of
// updates.getChannelDifference.
type ChannelDifferenceResult struct {
	Final bool
	Pts   int32
	More  bool
}

// GetDifferenceFunc fetches updates.getDifference(pts, date, qts).
type GetDifferenceFunc func(pts, date, qts int32) (DifferenceResult, error)

// GetChannelDifferenceFunc fetches updates.getChannelDifference(channelID, pts).
type GetChannelDifferenceFunc func(channelID int64, pts int32) (ChannelDifferenceResult, error)

// Config configures a Reconciler.
type Config struct {
	Initial State

	GetDifference        GetDifferenceFunc
	GetChannelDifference GetChannelDifferenceFunc

	LoggerFactory logging.LoggerFactory
}

// Reconciler tracks the process-wide and per-channel update counters and
// drives the difference-fetch resync sequence.
type Reconciler struct {
	mu       sync.Mutex
	state    State
	channels map[int64]int32
	locked   bool
	chanLock map[int64]bool

	getDifference        GetDifferenceFunc
	getChannelDifference GetChannelDifferenceFunc

	sf singleflight.Group
	log logging.LeveledLogger
}

// New creates a Reconciler seeded with the host-persisted counters.
func New(config Config) *Reconciler {
	r := &Reconciler{
		state:                config.Initial,
		channels:             make(map[int64]int32),
		chanLock:             make(map[int64]bool),
		getDifference:        config.GetDifference,
		getChannelDifference: config.GetChannelDifference,
	}
	if config.LoggerFactory != nil {
		r.log = config.LoggerFactory.NewLogger("updates")
	}
	return r
}

// State returns a copy of the current process-wide counters.
func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// ChannelPts returns the tracked pts for a channel (0 if never seen).
func (r *Reconciler) ChannelPts(channelID int64) int32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.channels[channelID]
}

// Locked reports whether the difference lock is currently held (a get_difference
// fetch is in flight).
func (r *Reconciler) Locked() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.locked
}

// Apply processes one incoming envelope against the current counters
// and returns the outcome.
func (r *Reconciler) Apply(e Envelope) Transition {
	r.mu.Lock()
	if r.locked {
		r.mu.Unlock()
		return TransitionDeferred
	}

	if e.ChannelID != 0 {
		return r.applyChannelLocked(e)
	}
	return r.applyGlobalLocked(e)
}

// applyGlobalLocked assumes r.mu is held; it unlocks before returning.
func (r *Reconciler) applyGlobalLocked(e Envelope) Transition {
	if e.Pts != nil {
		want := r.state.Pts + e.PtsCount
		switch {
		case *e.Pts < want:
			r.mu.Unlock()
			return TransitionDuplicate
		case *e.Pts > want:
			r.mu.Unlock()
			r.scheduleDifference()
			return TransitionGapPending
		default:
			r.state.Pts = *e.Pts
		}
	}

	if e.Qts != nil {
		want := r.state.Qts + 1
		switch {
		case *e.Qts < want:
			r.mu.Unlock()
			return TransitionDuplicate
		case *e.Qts > want:
			r.mu.Unlock()
			r.scheduleDifference()
			return TransitionGapPending
		default:
			r.state.Qts = *e.Qts
		}
	}

	if e.Seq != nil && *e.Seq != 0 {
		want := r.state.Seq + 1
		if *e.Seq != want {
			r.mu.Unlock()
			r.scheduleDifference()
			return TransitionGapPending
		}
		r.state.Seq = *e.Seq
	}

	r.mu.Unlock()
	return TransitionApplied
}

// applyChannelLocked assumes r.mu is held; it unlocks before returning.
func (r *Reconciler) applyChannelLocked(e Envelope) Transition {
	local := r.channels[e.ChannelID]
	r.mu.Unlock()

	if e.TooLong {
		r.scheduleChannelDifference(e.ChannelID, local)
		return TransitionGapPending
	}
	if e.Pts == nil {
		return TransitionApplied
	}

	want := local + e.PtsCount
	switch {
	case *e.Pts < want:
		return TransitionDuplicate
	case *e.Pts > want:
		r.scheduleChannelDifference(e.ChannelID, local)
		return TransitionGapPending
	default:
		r.mu.Lock()
		r.channels[e.ChannelID] = *e.Pts
		r.mu.Unlock()
		return TransitionApplied
	}
}

// scheduleDifference arms a get_difference fetch under the difference lock,
// collapsing concurrent callers onto one in-flight request via
// singleflight (the difference lock, generalized to also dedupe
// simultaneous triggers rather than just blocking ingestion).
func (r *Reconciler) scheduleDifference() {
	r.mu.Lock()
	if r.locked || r.getDifference == nil {
		r.mu.Unlock()
		return
	}
	r.locked = true
	pts, qts, date := r.state.Pts, r.state.Qts, r.state.Date
	r.mu.Unlock()

	go func() {
		r.sf.Do("global", func() (interface{}, error) {
			r.runDifference(pts, date, qts)
			return nil, nil
		})
		r.mu.Lock()
		r.locked = false
		r.mu.Unlock()
	}()
}

func (r *Reconciler) runDifference(pts, date, qts int32) {
	result, err := r.getDifference(pts, date, qts)
	if err != nil {
		if r.log != nil {
			r.log.Warnf("updates: get_difference failed: %v", err)
		}
		return
	}

	r.mu.Lock()
	if !result.Empty {
		r.state = result.State
	}
	more := result.More
	nextPts, nextQts, nextDate := r.state.Pts, r.state.Qts, r.state.Date
	r.mu.Unlock()

	if more {
		r.runDifference(nextPts, nextDate, nextQts)
	}
}

func (r *Reconciler) scheduleChannelDifference(channelID int64, pts int32) {
	r.mu.Lock()
	if r.chanLock[channelID] || r.getChannelDifference == nil {
		r.mu.Unlock()
		return
	}
	r.chanLock[channelID] = true
	r.mu.Unlock()

	key := channelDifferenceKey(channelID)
	go func() {
		r.sf.Do(key, func() (interface{}, error) {
			r.runChannelDifference(channelID, pts)
			return nil, nil
		})
		r.mu.Lock()
		delete(r.chanLock, channelID)
		r.mu.Unlock()
	}()
}

func (r *Reconciler) runChannelDifference(channelID int64, pts int32) {
	result, err := r.getChannelDifference(channelID, pts)
	if err != nil {
		if r.log != nil {
			r.log.Warnf("updates: get_channel_difference(%d) failed: %v", channelID, err)
		}
		return
	}

	r.mu.Lock()
	r.channels[channelID] = result.Pts
	r.mu.Unlock()

	if result.More {
		r.runChannelDifference(channelID, result.Pts)
	}
}

func channelDifferenceKey(channelID int64) string {
	return "channel:" + strconv.FormatInt(channelID, 10)
}
