package secretchat

import (
	"bytes"
	"encoding/binary"

	"github.com/telemtproto/mtproto/pkg/crypto"
	"github.com/telemtproto/mtproto/pkg/tl"
)

// minPad is the historical MTProto secret-chat minimum padding; the final
// plaintext (length-prefix + body) is padded with random bytes out to a
// 16-byte boundary, at least minPad bytes.
const minPad = 12

// EncryptMessage builds one outbound decrypted_message_layer envelope:
// `layer ‖ in_seq_no ‖ out_seq_no ‖ inner`,
// length-prefixed and padded to a 16-byte boundary, AES-IGE encrypted
// under a key/IV derived from the chat's shared key and the plaintext's
// own msg_key, and wrapped with the key fingerprint for
// messages.sendEncrypted{,File,Service}. inner is the already-serialized
// decrypted_message body (the TL type registry for its constructors is
// out of scope for this package).
func (c *Chat) EncryptMessage(layer int32, inner []byte, randomPad func(int) ([]byte, error)) ([]byte, error) {
	c.mu.Lock()
	if c.state != StateOK {
		c.mu.Unlock()
		return nil, ErrInvalidState
	}
	inSeqWire := 2*c.inSeqNo + boolToInt32(c.adminID != c.selfID)
	outSeqWire := 2*c.outSeqNo + boolToInt32(c.adminID == c.selfID)
	key := c.key
	c.mu.Unlock()

	var body bytes.Buffer
	w := tl.NewWriter(&body)
	if err := w.PutInt32(layer); err != nil {
		return nil, err
	}
	if err := w.PutInt32(inSeqWire); err != nil {
		return nil, err
	}
	if err := w.PutInt32(outSeqWire); err != nil {
		return nil, err
	}
	if err := w.WriteRaw(inner); err != nil {
		return nil, err
	}

	plaintext := make([]byte, 4+body.Len())
	binary.LittleEndian.PutUint32(plaintext[0:4], uint32(body.Len()))
	copy(plaintext[4:], body.Bytes())

	padLen := minPad + ((-(len(plaintext) + minPad)) & (crypto.AESBlockSize - 1))
	pad, err := randomPad(padLen)
	if err != nil {
		return nil, err
	}
	padded := append(plaintext, pad...)

	msgKeyFull := crypto.SHA1(padded)
	var msgKey [16]byte
	copy(msgKey[:], msgKeyFull[4:20])

	aesKey, iv := crypto.DeriveMessageKeyIV(key, msgKey)
	ciphertext, err := crypto.AESIGEEncrypt(aesKey[:], iv[:], padded)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	fingerprint := c.keyFingerprint
	c.outSeqNo++
	c.mu.Unlock()

	out := make([]byte, 8+16+len(ciphertext))
	binary.LittleEndian.PutUint64(out[0:8], uint64(fingerprint))
	copy(out[8:24], msgKey[:])
	copy(out[24:], ciphertext)
	return out, nil
}

// DecryptMessage validates and decrypts an inbound secret-chat message,
// returning the inner decrypted_message
// body. If a sequence gap is detected it returns a Gap error instead (the
// caller should request a resend); a duplicate returns ErrDuplicateMessage
// and a parity violation returns ErrParityMismatch — both mean "drop,
// don't advance state".
func (c *Chat) DecryptMessage(wire []byte) ([]byte, error) {
	if len(wire) < 8+16+crypto.AESBlockSize {
		return nil, ErrInvalidState
	}

	fingerprint := int64(binary.LittleEndian.Uint64(wire[0:8]))
	var msgKey [16]byte
	copy(msgKey[:], wire[8:24])
	ciphertext := wire[24:]

	c.mu.Lock()
	if c.state != StateOK {
		c.mu.Unlock()
		return nil, ErrInvalidState
	}
	if fingerprint != c.keyFingerprint {
		c.mu.Unlock()
		return nil, ErrFingerprintUnknown
	}
	key := c.key
	c.mu.Unlock()

	aesKey, iv := crypto.DeriveMessageKeyIV(key, msgKey)
	padded, err := crypto.AESIGEDecrypt(aesKey[:], iv[:], ciphertext)
	if err != nil {
		return nil, err
	}
	recomputed := crypto.SHA1(padded)
	if !bytesEqual(recomputed[4:20], msgKey[:]) {
		return nil, ErrFingerprintUnknown
	}
	if len(padded) < 4 {
		return nil, ErrInvalidState
	}

	bodyLen := int(binary.LittleEndian.Uint32(padded[0:4]))
	if bodyLen < 12 || 4+bodyLen > len(padded) {
		return nil, ErrInvalidState
	}
	body := padded[4 : 4+bodyLen]

	r := tl.NewReader(body)
	if _, err := r.GetInt32(); err != nil { // layer
		return nil, err
	}
	peerInSeqWire, err := r.GetInt32()
	if err != nil {
		return nil, err
	}
	peerOutSeqWire, err := r.GetInt32()
	if err != nil {
		return nil, err
	}
	_ = peerInSeqWire
	inner := r.Rest()

	c.mu.Lock()
	defer c.mu.Unlock()

	expectedParity := int32(1)
	if c.adminID == c.selfID {
		expectedParity = 0
	}
	if peerOutSeqWire&1 != expectedParity {
		return nil, ErrParityMismatch
	}

	// inSeqNo counts messages received so far, so it is also the out-seq
	// counter value the peer's next in-order message must carry.
	peerOutSeq := peerOutSeqWire / 2
	switch {
	case peerOutSeq < c.inSeqNo:
		return nil, ErrDuplicateMessage
	case peerOutSeq > c.inSeqNo:
		return nil, Gap{Start: c.inSeqNo, End: peerOutSeq - 1}
	}

	c.inSeqNo = peerOutSeq + 1
	c.lastInSeqNo = peerOutSeq
	return inner, nil
}

func boolToInt32(b bool) int32 {
	if b {
		return 1
	}
	return 0
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
