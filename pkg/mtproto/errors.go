package mtproto

import "errors"

// Encrypted-transport errors. All of these are either bad-connection or
// bad-session kinds; the caller decides which recovery applies per call
// site
// (handshake-adjacent framing errors are BadConnection, session/msg-id
// window violations are BadSession).
var (
	ErrAuthKeyIDMismatch  = errors.New("mtproto: auth_key_id does not match the owning DC")
	ErrMsgKeyMismatch     = errors.New("mtproto: recomputed msg_key does not match transmitted msg_key")
	ErrEnvelopeTooShort   = errors.New("mtproto: envelope shorter than the minimum header")
	ErrBadMsgLen          = errors.New("mtproto: msg_len violates the length/padding constraints")
	ErrSessionIDMismatch  = errors.New("mtproto: session_id does not match the owning Session")
	ErrMsgIDOutOfWindow   = errors.New("mtproto: msg_id outside the accepted time window")
	ErrGzipNested         = errors.New("mtproto: gzip_packed must not nest")
	ErrGzipTooLarge       = errors.New("mtproto: decompressed gzip_packed payload exceeds 16 MiB")
	ErrUnexpectedConstructor = errors.New("mtproto: constructor tag not valid in this position")
)
