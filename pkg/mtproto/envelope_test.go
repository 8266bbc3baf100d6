package mtproto

import (
	"bytes"
	"testing"

	"github.com/telemtproto/mtproto/pkg/crypto"
	"github.com/telemtproto/mtproto/pkg/tl"
)

func testAuthKey() [256]byte {
	var k [256]byte
	for i := range k {
		k[i] = byte(i)
	}
	return k
}

func TestEnvelopeRoundTrip(t *testing.T) {
	authKey := testAuthKey()
	authKeyID := crypto.AuthKeyID(authKey)

	msg := PlaintextMessage{
		ServerSalt: 0x1122334455667788,
		SessionID:  0xaabbccddeeff0011,
		MsgID:      4,
		SeqNo:      1,
		Payload:    []byte("ping pong payload"),
	}
	// Payload must be 4-byte aligned per Encrypt's contract.
	for len(msg.Payload)%4 != 0 {
		msg.Payload = append(msg.Payload, 0)
	}

	wire, err := Encrypt(authKey, authKeyID, msg, crypto.RandomBytes)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	got, err := Decrypt(authKey, authKeyID, wire)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}

	if got.ServerSalt != msg.ServerSalt || got.SessionID != msg.SessionID ||
		got.MsgID != msg.MsgID || got.SeqNo != msg.SeqNo || !bytes.Equal(got.Payload, msg.Payload) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, msg)
	}
}

func TestEnvelopeRejectsWrongAuthKeyID(t *testing.T) {
	authKey := testAuthKey()
	authKeyID := crypto.AuthKeyID(authKey)

	msg := PlaintextMessage{Payload: []byte("abcd")}
	wire, err := Encrypt(authKey, authKeyID, msg, crypto.RandomBytes)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	if _, err := Decrypt(authKey, authKeyID+1, wire); err != ErrAuthKeyIDMismatch {
		t.Fatalf("Decrypt with wrong auth_key_id = %v, want ErrAuthKeyIDMismatch", err)
	}
}

func TestEnvelopeRejectsTamperedCiphertext(t *testing.T) {
	authKey := testAuthKey()
	authKeyID := crypto.AuthKeyID(authKey)

	msg := PlaintextMessage{Payload: []byte("abcd")}
	wire, err := Encrypt(authKey, authKeyID, msg, crypto.RandomBytes)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	wire[len(wire)-1] ^= 0xff

	if _, err := Decrypt(authKey, authKeyID, wire); err != ErrMsgKeyMismatch && err != ErrBadMsgLen {
		t.Fatalf("Decrypt with tampered ciphertext = %v, want msg_key or msg_len error", err)
	}
}

func TestValidateWindow(t *testing.T) {
	now := float64(1700000000)
	msg := PlaintextMessage{SessionID: 42, MsgID: int64(uint64(1700000000) << 32)}

	if err := ValidateWindow(msg, 42, now); err != nil {
		t.Fatalf("in-window message rejected: %v", err)
	}
	if err := ValidateWindow(msg, 7, now); err != ErrSessionIDMismatch {
		t.Fatalf("session mismatch = %v, want ErrSessionIDMismatch", err)
	}

	stale := PlaintextMessage{SessionID: 42, MsgID: int64(uint64(1699999000) << 32)}
	if err := ValidateWindow(stale, 42, now); err != ErrMsgIDOutOfWindow {
		t.Fatalf("stale message = %v, want ErrMsgIDOutOfWindow", err)
	}
}

func TestDispatchContainerAndAck(t *testing.T) {
	var acked []int64
	var contentMsgIDs []int64

	inner, err := BuildContainer([]ContainerItem{
		{MsgID: 101, SeqNo: 1, Body: mustMsgsAck(t, []int64{55, 56})},
	})
	if err != nil {
		t.Fatalf("BuildContainer: %v", err)
	}

	err = Dispatch(inner, Handlers{
		OnContentMessage: func(id int64) { contentMsgIDs = append(contentMsgIDs, id) },
		OnMsgsAck:        func(ids []int64) { acked = ids },
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if len(contentMsgIDs) != 1 || contentMsgIDs[0] != 101 {
		t.Fatalf("contentMsgIDs = %v, want [101]", contentMsgIDs)
	}
	if len(acked) != 2 || acked[0] != 55 || acked[1] != 56 {
		t.Fatalf("acked = %v, want [55 56]", acked)
	}
}

func mustMsgsAck(t *testing.T, ids []int64) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := tl.NewWriter(&buf)
	if err := w.PutUint32(msgsAckConstructor); err != nil {
		t.Fatalf("PutUint32: %v", err)
	}
	if err := w.PutVectorHeader(len(ids)); err != nil {
		t.Fatalf("PutVectorHeader: %v", err)
	}
	for _, id := range ids {
		if err := w.PutInt64(id); err != nil {
			t.Fatalf("PutInt64: %v", err)
		}
	}
	return buf.Bytes()
}
