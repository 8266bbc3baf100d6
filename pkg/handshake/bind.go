package handshake

import (
	"bytes"
	"encoding/binary"

	"github.com/telemtproto/mtproto/pkg/crypto"
	"github.com/telemtproto/mtproto/pkg/mtproto"
	"github.com/telemtproto/mtproto/pkg/tl"
)

// Constructor tags for the PFS temp-key bind step.
const (
	bindAuthKeyInnerConstructor    uint32 = 0x75a3f765
	authBindTempAuthKeyConstructor uint32 = 0xcdd42a05
)

// BindRequest is a built auth.bindTempAuthKey query, ready to submit on
// the temp-key session under exactly the msg-id it was built for.
type BindRequest struct {
	// Nonce is the random value tying the outer query to the inner
	// perm-key-encrypted message; the server rejects the bind if they
	// disagree.
	Nonce int64

	// Payload is the auth.bindTempAuthKey body. It must be sent with
	// MsgID as its message id: the encrypted inner message embeds that
	// id, and the server cross-checks it against the carrying envelope.
	Payload []byte

	MsgID     int64
	ExpiresAt int32
}

// BuildBindRequest constructs the bind_auth_key_inner message that ties a
// freshly negotiated temp auth key to the DC's permanent key, encrypts it
// with the permanent key (under a throwaway salt and session id, as the
// bind step requires), and wraps it in the auth.bindTempAuthKey query
// body. The caller submits Payload on the temp-key session under
// bindMsgID and marks the DC bound once the server answers true.
func BuildBindRequest(permKey [256]byte, permKeyID, tempKeyID, tempSessionID uint64, bindMsgID int64, expiresAt int32) (BindRequest, error) {
	nonceBytes, err := crypto.RandomBytes(8)
	if err != nil {
		return BindRequest{}, err
	}
	nonce := int64(binary.LittleEndian.Uint64(nonceBytes))

	var inner bytes.Buffer
	iw := tl.NewWriter(&inner)
	_ = iw.PutUint32(bindAuthKeyInnerConstructor)
	_ = iw.PutInt64(nonce)
	_ = iw.PutInt64(int64(tempKeyID))
	_ = iw.PutInt64(int64(permKeyID))
	_ = iw.PutInt64(int64(tempSessionID))
	if err := iw.PutInt32(expiresAt); err != nil {
		return BindRequest{}, err
	}

	saltBytes, err := crypto.RandomBytes(16)
	if err != nil {
		return BindRequest{}, err
	}
	encrypted, err := mtproto.Encrypt(permKey, permKeyID, mtproto.PlaintextMessage{
		ServerSalt: binary.LittleEndian.Uint64(saltBytes[0:8]),
		SessionID:  binary.LittleEndian.Uint64(saltBytes[8:16]),
		MsgID:      bindMsgID,
		SeqNo:      0,
		Payload:    inner.Bytes(),
	}, crypto.RandomBytes)
	if err != nil {
		return BindRequest{}, err
	}

	var out bytes.Buffer
	w := tl.NewWriter(&out)
	_ = w.PutUint32(authBindTempAuthKeyConstructor)
	_ = w.PutInt64(int64(permKeyID))
	_ = w.PutInt64(nonce)
	_ = w.PutInt32(expiresAt)
	if err := w.PutBytes(encrypted); err != nil {
		return BindRequest{}, err
	}

	return BindRequest{
		Nonce:     nonce,
		Payload:   out.Bytes(),
		MsgID:     bindMsgID,
		ExpiresAt: expiresAt,
	}, nil
}
