package mtproto

import (
	"bytes"
	"compress/gzip"
	"io"

	"github.com/telemtproto/mtproto/pkg/tl"
)

// ContainerChild is one message carried inside a msg_container.
type ContainerChild struct {
	MsgID int64
	SeqNo int32
	Body  []byte
}

// Handlers receives the dispatch table's callbacks. Every
// field is optional; a nil handler means that tag is silently dropped,
// matching the "Unknown: log and skip" default for any tag this caller
// chooses not to wire up.
type Handlers struct {
	// OnContentMessage is invoked for every dispatched message whose
	// msg-id has the content-related (odd) low bit set, so the caller can
	// buffer it for the session's ack-flush timer: a container child
	// with an odd id joins the pending-ack set.
	OnContentMessage func(msgID int64)

	OnNewSessionCreated func(body []byte)
	OnMsgsAck            func(ackedMsgIDs []int64)
	OnRPCResult          func(reqMsgID int64, body []byte)
	OnRPCError           func(reqMsgID int64, code int32, message string)
	OnBadServerSalt      func(reqMsgID int64, newSalt uint64)
	OnBadMsgNotification func(reqMsgID int64, code int32)
	OnPong               func()
	OnDetailedInfo       func()

	// IsUpdate reports whether tag identifies an `updates*` constructor.
	// The full TL type registry is out of scope for this module; the
	// host supplies this predicate from its generated registry.
	IsUpdate func(tag uint32) bool
	OnUpdate func(tag uint32, body []byte)

	OnUnknown func(tag uint32, body []byte)
}

// Dispatch decodes payload's leading constructor tag and routes it
// through h, recursing into msg_container children and unwrapping exactly
// one level of gzip_packed. The "gzip must not nest" rule is carried by
// an allowGzip flag through dispatch, not by a separate entrypoint: the
// inflated body of a gzip_packed is dispatched with the flag off, so a
// gzip_packed directly inside it fails with ErrGzipNested; msg_container
// children are always dispatched with the flag on.
func Dispatch(payload []byte, h Handlers) error {
	return dispatch(payload, h, true)
}

func dispatch(payload []byte, h Handlers, allowGzip bool) error {
	r := tl.NewReader(payload)
	tag, err := r.PeekUint32()
	if err != nil {
		return err
	}

	switch {
	case tag == msgContainerConstructor:
		return dispatchContainer(r, h)
	case tag == gzipPackedConstructor:
		if !allowGzip {
			return ErrGzipNested
		}
		return dispatchGzip(r, h)
	case tag == newSessionCreatedConstructor:
		r.Seek(r.Pos() + 4)
		if h.OnNewSessionCreated != nil {
			h.OnNewSessionCreated(r.Rest())
		}
		return nil
	case tag == msgsAckConstructor:
		return dispatchMsgsAck(r, h)
	case tag == rpcResultConstructor:
		return dispatchRPCResult(r, h)
	case tag == badServerSaltConstructor:
		return dispatchBadServerSalt(r, h)
	case tag == badMsgNotificationConstructor:
		return dispatchBadMsgNotification(r, h)
	case tag == pongConstructor:
		if h.OnPong != nil {
			h.OnPong()
		}
		return nil
	case tag == msgDetailedInfoConstructor, tag == msgNewDetailedInfoConstructor:
		if h.OnDetailedInfo != nil {
			h.OnDetailedInfo()
		}
		return nil
	case h.IsUpdate != nil && h.IsUpdate(tag):
		if h.OnUpdate != nil {
			h.OnUpdate(tag, payload)
		}
		return nil
	default:
		if h.OnUnknown != nil {
			h.OnUnknown(tag, payload)
		}
		return nil
	}
}

func dispatchContainer(r *tl.Reader, h Handlers) error {
	if _, err := r.ExpectConstructor(msgContainerConstructor); err != nil {
		return err
	}
	count, err := r.GetInt32()
	if err != nil {
		return err
	}
	for i := int32(0); i < count; i++ {
		msgID, err := r.GetInt64()
		if err != nil {
			return err
		}
		if _, err := r.GetInt32(); err != nil { // seqno, unused by the dispatcher itself
			return err
		}
		bodyLen, err := r.GetInt32()
		if err != nil {
			return err
		}
		body, err := r.GetRaw(int(bodyLen))
		if err != nil {
			return err
		}

		if msgID&1 != 0 && h.OnContentMessage != nil {
			h.OnContentMessage(msgID)
		}
		if err := dispatch(body, h, true); err != nil {
			return err
		}
	}
	return nil
}

func dispatchGzip(r *tl.Reader, h Handlers) error {
	if _, err := r.ExpectConstructor(gzipPackedConstructor); err != nil {
		return err
	}
	packed, err := r.GetBytes()
	if err != nil {
		return err
	}

	zr, err := gzip.NewReader(bytes.NewReader(packed))
	if err != nil {
		return err
	}
	defer zr.Close()

	limited := io.LimitReader(zr, maxGzipInflated+1)
	inflated, err := io.ReadAll(limited)
	if err != nil {
		return err
	}
	if len(inflated) > maxGzipInflated {
		return ErrGzipTooLarge
	}
	return dispatch(inflated, h, false)
}

func dispatchMsgsAck(r *tl.Reader, h Handlers) error {
	if _, err := r.ExpectConstructor(msgsAckConstructor); err != nil {
		return err
	}
	count, err := r.GetVectorHeader()
	if err != nil {
		return err
	}
	ids := make([]int64, count)
	for i := range ids {
		id, err := r.GetInt64()
		if err != nil {
			return err
		}
		ids[i] = id
	}
	if h.OnMsgsAck != nil {
		h.OnMsgsAck(ids)
	}
	return nil
}

func dispatchRPCResult(r *tl.Reader, h Handlers) error {
	if _, err := r.ExpectConstructor(rpcResultConstructor); err != nil {
		return err
	}
	reqMsgID, err := r.GetInt64()
	if err != nil {
		return err
	}

	bodyTag, err := r.PeekUint32()
	if err != nil {
		return err
	}
	if bodyTag == rpcErrorConstructor {
		r.Seek(r.Pos() + 4)
		code, err := r.GetInt32()
		if err != nil {
			return err
		}
		msg, err := r.GetString()
		if err != nil {
			return err
		}
		if h.OnRPCError != nil {
			h.OnRPCError(reqMsgID, code, msg)
		}
		return nil
	}

	if h.OnRPCResult != nil {
		h.OnRPCResult(reqMsgID, r.Rest())
	}
	return nil
}

func dispatchBadServerSalt(r *tl.Reader, h Handlers) error {
	if _, err := r.ExpectConstructor(badServerSaltConstructor); err != nil {
		return err
	}
	reqMsgID, err := r.GetInt64()
	if err != nil {
		return err
	}
	if _, err := r.GetInt32(); err != nil { // bad_msg_seqno, unused
		return err
	}
	if _, err := r.GetInt32(); err != nil { // error_code, unused (always 48)
		return err
	}
	newSalt, err := r.GetUint64()
	if err != nil {
		return err
	}
	if h.OnBadServerSalt != nil {
		h.OnBadServerSalt(reqMsgID, newSalt)
	}
	return nil
}

func dispatchBadMsgNotification(r *tl.Reader, h Handlers) error {
	if _, err := r.ExpectConstructor(badMsgNotificationConstructor); err != nil {
		return err
	}
	reqMsgID, err := r.GetInt64()
	if err != nil {
		return err
	}
	if _, err := r.GetInt32(); err != nil { // bad_msg_seqno, unused
		return err
	}
	code, err := r.GetInt32()
	if err != nil {
		return err
	}
	if h.OnBadMsgNotification != nil {
		h.OnBadMsgNotification(reqMsgID, code)
	}
	return nil
}

// BadMsgNotification codes this module expects the query manager to act
// on: 16 = msg-id too low, 17 = msg-id too high, 64 = bad
// container.
const (
	BadMsgIDTooLow   int32 = 16
	BadMsgIDTooHigh  int32 = 17
	BadMsgContainer  int32 = 64
)
