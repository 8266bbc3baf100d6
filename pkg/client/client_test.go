package client

import (
	"bufio"
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/binary"
	"math/big"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/telemtproto/mtproto/pkg/crypto"
	"github.com/telemtproto/mtproto/pkg/dc"
	"github.com/telemtproto/mtproto/pkg/handshake"
	"github.com/telemtproto/mtproto/pkg/mtproto"
	"github.com/telemtproto/mtproto/pkg/query"
	"github.com/telemtproto/mtproto/pkg/tl"
	"github.com/telemtproto/mtproto/pkg/transport"
)

// Wire tags the stub DC needs. Fixed by the protocol, so safe to restate
// here rather than reach into other packages' unexported constants.
const (
	stubReqPQ            uint32 = 0x60469778
	stubResPQ            uint32 = 0x05162463
	stubReqDHParams      uint32 = 0xd712e4be
	stubPQInner          uint32 = 0x83c95aec
	stubPQInnerTemp      uint32 = 0x3c6a84d4
	stubServerDHParamsOK uint32 = 0xd0e8075c
	stubServerDHInner    uint32 = 0xb5890dba
	stubSetClientDH      uint32 = 0xf5045f1f
	stubClientDHInner    uint32 = 0x6643b654
	stubDHGenOK          uint32 = 0x3bcbf734
	stubBindTempAuthKey  uint32 = 0xcdd42a05
	stubMsgsAck          uint32 = 0x62d6b459
	stubRPCResult        uint32 = 0xf35c6d01
	stubBoolTrue         uint32 = 0x997275b5
)

// Same 2048-bit safe prime the rest of the module's DH tests use.
const stubPrimeHex = "c71caeb9c6b1c9048e6c522f70f13f73980d40238e3e21c14934d037563d930f48198a0aa7c14058229493d22530f4dbfa336f6e0ac925139543aed44cce7c3720fd51f69458705ac68cd4fe6b6b13abdc9746512969328454f18faf8c595f642477fe96bb2a941d5bcd1d4ac8cc49880708fa9b378e3c4f3a9060bee67cf9a4a4a695811051907e162753b56b0f6b410dba74d8a84b2a14b3144e0ef1284754fd17ed950d5965b4b9dd46582db1178d169c6bc465b0d6ff9ca3928fef5b9ae4e418fc15e83ebea0f87fa9ff5eed70050ded2849f47bf959d956850ce929851f0d8115f635b105ee2e4e15d04b2454bf6f4fadf034b10403119cd8e3b92fcc5b"

const stubPQ uint64 = 0x17ED48941A08F981

var (
	stubRSAOnce sync.Once
	stubRSAKey  *rsa.PrivateKey
)

func stubTestRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	stubRSAOnce.Do(func() {
		var err error
		stubRSAKey, err = rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			t.Fatalf("rsa.GenerateKey: %v", err)
		}
	})
	if stubRSAKey == nil {
		t.Fatal("RSA test key generation failed in an earlier test")
	}
	return stubRSAKey
}

// stubDC is a cooperative loopback DC: it speaks the abridged framing,
// answers both handshake variants (including client restarts with fresh
// nonces), validates auth.bindTempAuthKey, and replies to every other
// encrypted query with rpc_result(boolTrue).
type stubDC struct {
	t    *testing.T
	priv *rsa.PrivateKey
	fp   uint64

	prime *big.Int
	g     int64

	ln net.Listener

	mu          sync.Mutex
	nonce       [16]byte
	serverNonce [16]byte
	newNonce    [32]byte
	exponent    *big.Int
	permKey     [256]byte
	permKeyID   uint64
	curKey      [256]byte
	curKeyID    uint64
	handshakes  int
	bindOK      bool
}

func newStubDC(t *testing.T) *stubDC {
	t.Helper()
	prime, ok := new(big.Int).SetString(stubPrimeHex, 16)
	if !ok {
		t.Fatal("bad test prime constant")
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	s := &stubDC{
		t:     t,
		priv:  stubTestRSAKey(t),
		fp:    0x1f2e3d4c5b6a7988,
		prime: prime,
		g:     3,
		ln:    ln,
	}
	t.Cleanup(func() { ln.Close() })
	go s.serve()
	return s
}

func (s *stubDC) port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

func (s *stubDC) trustedKeys() []handshake.TrustedKey {
	return []handshake.TrustedKey{{
		Key:         crypto.RSAPublicKey{N: s.priv.N, E: big.NewInt(int64(s.priv.E))},
		Fingerprint: s.fp,
	}}
}

func (s *stubDC) bindSeen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bindOK
}

func (s *stubDC) handshakeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handshakes
}

func (s *stubDC) serve() {
	conn, err := s.ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	br := bufio.NewReader(conn)
	marker, err := br.ReadByte()
	if err != nil || marker != transport.AbridgedMarker {
		return
	}

	for {
		frame, err := transport.ReadFrame(br)
		if err != nil {
			return
		}
		reply := s.handleFrame(frame)
		if reply == nil {
			continue
		}
		out, err := transport.EncodeFrame(reply)
		if err != nil {
			return
		}
		if _, err := conn.Write(out); err != nil {
			return
		}
	}
}

// handleFrame distinguishes plain handshake messages (which begin with a
// known constructor tag) from encrypted envelopes (which begin with the
// negotiated auth-key id) and returns the reply payload, or nil.
func (s *stubDC) handleFrame(frame []byte) []byte {
	if len(frame) >= 4 {
		switch binary.LittleEndian.Uint32(frame[:4]) {
		case stubReqPQ:
			return s.handleReqPQ(frame)
		case stubReqDHParams:
			return s.handleReqDHParams(frame)
		case stubSetClientDH:
			return s.handleSetClientDH(frame)
		}
	}
	return s.handleEncrypted(frame)
}

func (s *stubDC) handleReqPQ(frame []byte) []byte {
	r := tl.NewReader(frame)
	_, _ = r.ExpectConstructor(stubReqPQ)
	nonce, err := r.GetInt128()
	if err != nil {
		s.t.Errorf("stub: req_pq nonce: %v", err)
		return nil
	}

	s.mu.Lock()
	s.nonce = nonce
	if _, err := rand.Read(s.serverNonce[:]); err != nil {
		s.mu.Unlock()
		s.t.Errorf("stub: server nonce: %v", err)
		return nil
	}
	serverNonce := s.serverNonce
	s.mu.Unlock()

	var buf bytes.Buffer
	w := tl.NewWriter(&buf)
	_ = w.PutUint32(stubResPQ)
	_ = w.PutInt128(nonce)
	_ = w.PutInt128(serverNonce)
	_ = w.PutBigInt(new(big.Int).SetUint64(stubPQ))
	_ = w.PutVectorHeader(1)
	_ = w.PutInt64(int64(s.fp))
	return buf.Bytes()
}

func (s *stubDC) handleReqDHParams(frame []byte) []byte {
	r := tl.NewReader(frame)
	_, _ = r.ExpectConstructor(stubReqDHParams)
	_, _ = r.GetInt128() // nonce
	_, _ = r.GetInt128() // server_nonce
	_, _ = r.GetBigInt() // p
	_, _ = r.GetBigInt() // q
	_, _ = r.GetInt64()  // fingerprint
	encrypted, err := r.GetBytes()
	if err != nil {
		s.t.Errorf("stub: encrypted_data: %v", err)
		return nil
	}

	c := new(big.Int).SetBytes(encrypted)
	m := new(big.Int).Exp(c, s.priv.D, s.priv.N)
	padded := m.FillBytes(make([]byte, 256))
	prefix, body := padded[:20], padded[20:]

	ir := tl.NewReader(body)
	if _, err := ir.ExpectConstructor(stubPQInner, stubPQInnerTemp); err != nil {
		s.t.Errorf("stub: p_q_inner_data tag: %v", err)
		return nil
	}
	tag, _ := tl.NewReader(body).PeekUint32()
	_, _ = ir.GetBigInt() // pq
	_, _ = ir.GetBigInt() // p
	_, _ = ir.GetBigInt() // q
	_, _ = ir.GetInt128() // nonce
	_, _ = ir.GetInt128() // server_nonce
	newNonce, err := ir.GetInt256()
	if err != nil {
		s.t.Errorf("stub: new_nonce: %v", err)
		return nil
	}
	if tag == stubPQInnerTemp {
		if _, err := ir.GetInt32(); err != nil { // expires_in
			s.t.Errorf("stub: expires_in: %v", err)
			return nil
		}
	}
	if !bytes.Equal(crypto.SHA1Slice(body[:ir.Pos()]), prefix) {
		s.t.Error("stub: p_q_inner_data SHA-1 prefix mismatch")
		return nil
	}

	group := crypto.NewDHGroup(s.prime, s.g)
	exponent, err := group.GeneratePrivate()
	if err != nil {
		s.t.Errorf("stub: GeneratePrivate: %v", err)
		return nil
	}
	gA := group.ComputePublic(exponent)

	s.mu.Lock()
	s.newNonce = newNonce
	s.exponent = exponent
	nonce, serverNonce := s.nonce, s.serverNonce
	s.mu.Unlock()

	var inner bytes.Buffer
	iw := tl.NewWriter(&inner)
	_ = iw.PutUint32(stubServerDHInner)
	_ = iw.PutInt128(nonce)
	_ = iw.PutInt128(serverNonce)
	_ = iw.PutInt32(int32(s.g))
	_ = iw.PutBigInt(s.prime)
	_ = iw.PutBigInt(gA)
	_ = iw.PutInt32(int32(time.Now().Unix()))

	answer := append(crypto.SHA1Slice(inner.Bytes()), inner.Bytes()...)
	if pad := (-len(answer)) & (crypto.AESBlockSize - 1); pad > 0 {
		answer = append(answer, make([]byte, pad)...)
	}
	key, iv := crypto.DeriveHandshakeKeyIV(serverNonce, newNonce)
	encryptedAnswer, err := crypto.AESIGEEncrypt(key[:], iv[:], answer)
	if err != nil {
		s.t.Errorf("stub: AESIGEEncrypt: %v", err)
		return nil
	}

	var out bytes.Buffer
	w := tl.NewWriter(&out)
	_ = w.PutUint32(stubServerDHParamsOK)
	_ = w.PutInt128(nonce)
	_ = w.PutInt128(serverNonce)
	_ = w.PutBytes(encryptedAnswer)
	return out.Bytes()
}

func (s *stubDC) handleSetClientDH(frame []byte) []byte {
	r := tl.NewReader(frame)
	_, _ = r.ExpectConstructor(stubSetClientDH)
	_, _ = r.GetInt128()
	_, _ = r.GetInt128()
	encrypted, err := r.GetBytes()
	if err != nil {
		s.t.Errorf("stub: set_client_DH_params: %v", err)
		return nil
	}

	s.mu.Lock()
	serverNonce, newNonce, exponent := s.serverNonce, s.newNonce, s.exponent
	nonce := s.nonce
	s.mu.Unlock()

	key, iv := crypto.DeriveHandshakeKeyIV(serverNonce, newNonce)
	decrypted, err := crypto.AESIGEDecrypt(key[:], iv[:], encrypted)
	if err != nil {
		s.t.Errorf("stub: AESIGEDecrypt: %v", err)
		return nil
	}
	ir := tl.NewReader(decrypted[20:])
	if _, err := ir.ExpectConstructor(stubClientDHInner); err != nil {
		s.t.Errorf("stub: client_DH_inner_data tag: %v", err)
		return nil
	}
	_, _ = ir.GetInt128()
	_, _ = ir.GetInt128()
	_, _ = ir.GetInt64() // retry_id
	gB, err := ir.GetBigInt()
	if err != nil {
		s.t.Errorf("stub: g_b: %v", err)
		return nil
	}

	group := crypto.NewDHGroup(s.prime, s.g)
	shared := group.ComputeShared(exponent, gB)

	var authKey [256]byte
	copy(authKey[:], crypto.FixedBytes(shared, 256))
	authKeyID := crypto.AuthKeyID(authKey)

	s.mu.Lock()
	if s.handshakes == 0 {
		s.permKey = authKey
		s.permKeyID = authKeyID
	}
	s.curKey = authKey
	s.curKeyID = authKeyID
	s.handshakes++
	s.mu.Unlock()

	var idBytes [8]byte
	binary.LittleEndian.PutUint64(idBytes[:], authKeyID)
	sum := crypto.SHA1Slice(append(append(append([]byte{}, newNonce[:]...), 1), idBytes[:]...))
	var hash [16]byte
	copy(hash[:], sum[4:20])

	var out bytes.Buffer
	w := tl.NewWriter(&out)
	_ = w.PutUint32(stubDHGenOK)
	_ = w.PutInt128(nonce)
	_ = w.PutInt128(serverNonce)
	_ = w.PutInt128(hash)
	return out.Bytes()
}

func (s *stubDC) handleEncrypted(frame []byte) []byte {
	s.mu.Lock()
	curKey, curKeyID := s.curKey, s.curKeyID
	permKey, permKeyID := s.permKey, s.permKeyID
	s.mu.Unlock()

	msg, err := mtproto.Decrypt(curKey, curKeyID, frame)
	if err != nil {
		s.t.Errorf("stub: Decrypt: %v", err)
		return nil
	}

	r := tl.NewReader(msg.Payload)
	tag, err := r.PeekUint32()
	if err != nil {
		return nil
	}
	switch tag {
	case stubMsgsAck:
		return nil
	case stubBindTempAuthKey:
		if s.validateBind(r, msg, permKey, permKeyID, curKeyID) {
			s.mu.Lock()
			s.bindOK = true
			s.mu.Unlock()
		}
	}

	var body bytes.Buffer
	w := tl.NewWriter(&body)
	_ = w.PutUint32(stubRPCResult)
	_ = w.PutInt64(msg.MsgID)
	_ = w.PutUint32(stubBoolTrue)

	reply, err := mtproto.Encrypt(curKey, curKeyID, mtproto.PlaintextMessage{
		ServerSalt: msg.ServerSalt,
		SessionID:  msg.SessionID,
		MsgID:      msg.MsgID | 1,
		SeqNo:      msg.SeqNo | 1,
		Payload:    body.Bytes(),
	}, crypto.RandomBytes)
	if err != nil {
		s.t.Errorf("stub: Encrypt reply: %v", err)
		return nil
	}
	return reply
}

// validateBind checks the bind query the way the server would: the inner
// message decrypts under the permanent key and names the carrying query's
// msg-id, session, and both key ids.
func (s *stubDC) validateBind(r *tl.Reader, outer mtproto.PlaintextMessage, permKey [256]byte, permKeyID, tempKeyID uint64) bool {
	_, _ = r.ExpectConstructor(stubBindTempAuthKey)
	outerPermID, _ := r.GetInt64()
	outerNonce, _ := r.GetInt64()
	_, _ = r.GetInt32() // expires_at
	encrypted, err := r.GetBytes()
	if err != nil {
		s.t.Errorf("stub: bind encrypted_message: %v", err)
		return false
	}
	if uint64(outerPermID) != permKeyID {
		s.t.Errorf("stub: bind perm_auth_key_id = %x, want %x", outerPermID, permKeyID)
		return false
	}

	inner, err := mtproto.Decrypt(permKey, permKeyID, encrypted)
	if err != nil {
		s.t.Errorf("stub: bind inner Decrypt: %v", err)
		return false
	}
	if inner.MsgID != outer.MsgID {
		s.t.Errorf("stub: bind inner msg_id = %d, outer %d", inner.MsgID, outer.MsgID)
		return false
	}

	ir := tl.NewReader(inner.Payload)
	if _, err := ir.ExpectConstructor(0x75a3f765); err != nil {
		s.t.Errorf("stub: bind_auth_key_inner tag: %v", err)
		return false
	}
	innerNonce, _ := ir.GetInt64()
	innerTempID, _ := ir.GetInt64()
	innerPermID, _ := ir.GetInt64()
	innerSessID, _ := ir.GetInt64()
	if innerNonce != outerNonce {
		s.t.Error("stub: bind nonce mismatch between query and inner message")
		return false
	}
	if uint64(innerTempID) != tempKeyID || uint64(innerPermID) != permKeyID {
		s.t.Errorf("stub: bind key ids = %x/%x, want %x/%x", innerTempID, innerPermID, tempKeyID, permKeyID)
		return false
	}
	if uint64(innerSessID) != outer.SessionID {
		s.t.Errorf("stub: bind temp_session_id = %x, want %x", innerSessID, outer.SessionID)
		return false
	}
	return true
}

func startTestClient(t *testing.T, stub *stubDC, pfs bool) *Client {
	t.Helper()
	c, err := New(Config{
		DCID:        2,
		Host:        "127.0.0.1",
		Port:        stub.port(),
		TrustedKeys: stub.trustedKeys(),
		PFS:         pfs,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		_ = c.Run(ctx)
		close(runDone)
	}()
	t.Cleanup(func() {
		cancel()
		<-runDone
	})
	return c
}

func TestClientColdStartSubmit(t *testing.T) {
	stub := newStubDC(t)
	c := startTestClient(t, stub, false)

	var payload bytes.Buffer
	w := tl.NewWriter(&payload)
	_ = w.PutUint32(0x11223344)
	_ = w.PutInt32(7)

	resultCh := make(chan query.Result, 1)
	if _, err := c.Submit(2, payload.Bytes(), true, func(r query.Result) { resultCh <- r }); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	select {
	case r := <-resultCh:
		if r.Err != nil {
			t.Fatalf("query error: %v", r.Err)
		}
		br := tl.NewReader(r.Body)
		if _, err := br.ExpectConstructor(stubBoolTrue); err != nil {
			t.Fatalf("result body: %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("query result never arrived")
	}

	state, err := c.DCs().Get(2)
	if err != nil {
		t.Fatalf("registry Get(2): %v", err)
	}
	flags := state.Flags()
	if !flags.Authorized {
		t.Fatal("DC 2 must be authorized after the handshake")
	}
	if state.Handshake() != dc.StateAuthorized {
		t.Fatalf("handshake state = %v, want authorized", state.Handshake())
	}
	if got := c.DCs().WorkingDC(); got != 2 {
		t.Fatalf("WorkingDC = %d, want 2", got)
	}
}

func TestClientPFSBindsTempKey(t *testing.T) {
	stub := newStubDC(t)
	c := startTestClient(t, stub, true)

	select {
	case <-c.Ready():
	case <-time.After(15 * time.Second):
		t.Fatal("PFS client never became ready")
	}

	if !stub.bindSeen() {
		t.Fatal("server never saw a valid auth.bindTempAuthKey")
	}
	if got := stub.handshakeCount(); got < 2 {
		t.Fatalf("handshake count = %d, want perm + temp", got)
	}

	state, err := c.DCs().Get(2)
	if err != nil {
		t.Fatalf("registry Get(2): %v", err)
	}
	flags := state.Flags()
	if !flags.Authorized || !flags.Bound {
		t.Fatalf("flags = %+v, want authorized and bound", flags)
	}
	_, permID := state.PermAuthKey()
	_, tempID := state.TempAuthKey()
	if permID == 0 || tempID == 0 || permID == tempID {
		t.Fatalf("perm/temp key ids = %x/%x, want two distinct negotiated keys", permID, tempID)
	}

	// Traffic after the bind runs under the temp key.
	var payload bytes.Buffer
	w := tl.NewWriter(&payload)
	_ = w.PutUint32(0x55667788)

	resultCh := make(chan query.Result, 1)
	if _, err := c.Submit(2, payload.Bytes(), true, func(r query.Result) { resultCh <- r }); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	select {
	case r := <-resultCh:
		if r.Err != nil {
			t.Fatalf("query error under temp key: %v", r.Err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("query under temp key never completed")
	}
}
