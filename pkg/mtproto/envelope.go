// Package mtproto implements the encrypted-transport layer:
// the outbound/inbound AES-IGE envelope around a Session's plaintext
// messages, and the dispatch of decrypted payloads by constructor tag
// (containers, acks, rpc_result/error, updates, gzip_packed, bad_server_salt,
// bad_msg_notification, pong/detailed-info, unknown).
//
// Encode and decode share a two-phase shape: build the plaintext, derive
// the key/IV from the msg_key, transform, splice the result. MTProto has
// no AEAD; integrity rides on the detached SHA-1-derived msg_key.
package mtproto

import (
	"encoding/binary"

	"github.com/telemtproto/mtproto/pkg/crypto"
)

// innerHeaderLen is the size, in bytes, of the encrypted-but-unboxed
// prefix fields that precede payload inside the envelope: server_salt(8)
// + session_id(8) + msg_id(8) + seq_no(4) + msg_len(4).
const innerHeaderLen = 32

// maxPad bounds the trailing random padding an inbound envelope may
// carry beyond its declared msg_len.
const maxPad = 12

// PlaintextMessage is the content of one encrypted-transport envelope,
// independent of the unencrypted auth_key_id/msg_key prefix.
type PlaintextMessage struct {
	ServerSalt uint64
	SessionID  uint64
	MsgID      int64
	SeqNo      uint32
	Payload    []byte
}

// Encrypt builds a full wire envelope: the unencrypted auth_key_id and
// msg_key prefix, followed by the AES-IGE-encrypted, padded message body
//.
func Encrypt(authKey [256]byte, authKeyID uint64, msg PlaintextMessage, randomPad func(int) ([]byte, error)) ([]byte, error) {
	if len(msg.Payload)%4 != 0 {
		panic("mtproto: Encrypt requires a 4-byte-aligned payload")
	}

	inner := make([]byte, innerHeaderLen+len(msg.Payload))
	binary.LittleEndian.PutUint64(inner[0:8], msg.ServerSalt)
	binary.LittleEndian.PutUint64(inner[8:16], msg.SessionID)
	binary.LittleEndian.PutUint64(inner[16:24], uint64(msg.MsgID))
	binary.LittleEndian.PutUint32(inner[24:28], msg.SeqNo)
	binary.LittleEndian.PutUint32(inner[28:32], uint32(len(msg.Payload)))
	copy(inner[innerHeaderLen:], msg.Payload)

	msgKeyFull := crypto.SHA1(inner)
	var msgKey [16]byte
	copy(msgKey[:], msgKeyFull[4:20])

	padded := inner
	if padLen := (-len(inner)) & (crypto.AESBlockSize - 1); padLen > 0 {
		pad, err := randomPad(padLen)
		if err != nil {
			return nil, err
		}
		padded = append(append([]byte{}, inner...), pad...)
	}

	key, iv := crypto.DeriveMessageKeyIV(authKey, msgKey)
	ciphertext, err := crypto.AESIGEEncrypt(key[:], iv[:], padded)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 8+16+len(ciphertext))
	binary.LittleEndian.PutUint64(out[0:8], authKeyID)
	copy(out[8:24], msgKey[:])
	copy(out[24:], ciphertext)
	return out, nil
}

// Decrypt parses and decrypts a wire envelope, validating auth_key_id,
// the recomputed msg_key, and the msg_len/padding bounds.
// session_id-against-owning-session and msg_id-time-window checks are the
// caller's responsibility (ValidateWindow below) since they need context
// this function does not have.
func Decrypt(authKey [256]byte, expectedAuthKeyID uint64, data []byte) (PlaintextMessage, error) {
	if len(data) < 8+16+crypto.AESBlockSize {
		return PlaintextMessage{}, ErrEnvelopeTooShort
	}

	authKeyID := binary.LittleEndian.Uint64(data[0:8])
	if authKeyID != expectedAuthKeyID {
		return PlaintextMessage{}, ErrAuthKeyIDMismatch
	}

	var msgKey [16]byte
	copy(msgKey[:], data[8:24])
	ciphertext := data[24:]

	key, iv := crypto.DeriveMessageKeyIV(authKey, msgKey)
	inner, err := crypto.AESIGEDecrypt(key[:], iv[:], ciphertext)
	if err != nil {
		return PlaintextMessage{}, err
	}
	if len(inner) < innerHeaderLen {
		return PlaintextMessage{}, ErrBadMsgLen
	}

	msgLen := int(binary.LittleEndian.Uint32(inner[28:32]))
	if msgLen <= 0 || msgLen > len(inner)-innerHeaderLen {
		return PlaintextMessage{}, ErrBadMsgLen
	}
	if pad := len(inner) - innerHeaderLen - msgLen; pad > maxPad {
		return PlaintextMessage{}, ErrBadMsgLen
	}

	recomputed := crypto.SHA1(inner[:innerHeaderLen+msgLen])
	if !bytesEqual(recomputed[4:20], msgKey[:]) {
		return PlaintextMessage{}, ErrMsgKeyMismatch
	}

	payload := make([]byte, msgLen)
	copy(payload, inner[innerHeaderLen:innerHeaderLen+msgLen])

	return PlaintextMessage{
		ServerSalt: binary.LittleEndian.Uint64(inner[0:8]),
		SessionID:  binary.LittleEndian.Uint64(inner[8:16]),
		MsgID:      int64(binary.LittleEndian.Uint64(inner[16:24])),
		SeqNo:      binary.LittleEndian.Uint32(inner[24:28]),
		Payload:    payload,
	}, nil
}

// ValidateWindow enforces the remaining inbound checks: the
// envelope's session_id must match the owning Session, and its msg_id
// must fall within [serverTime-300s, serverTime+30s]. A window violation
// is a BadSession error: the caller should clear and recreate
// the session, not tear down the connection.
func ValidateWindow(msg PlaintextMessage, expectedSessionID uint64, serverTimeUnix float64) error {
	if msg.SessionID != expectedSessionID {
		return ErrSessionIDMismatch
	}
	msgTime := float64(msg.MsgID >> 32)
	if msgTime < serverTimeUnix-300 || msgTime > serverTimeUnix+30 {
		return ErrMsgIDOutOfWindow
	}
	return nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
