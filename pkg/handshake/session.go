// Package handshake implements the unauthenticated Diffie-Hellman key
// exchange that establishes an MTProto auth key: req_pq ->
// resPQ -> req_DH_params -> server_DH_params_ok/fail ->
// set_client_DH_params -> dh_gen_ok/retry/fail.
//
// Session exposes one explicitly named method per wire step rather than
// a single HandleMessage dispatcher: a linear state machine whose method
// names mirror the protocol's own message names.
package handshake

import (
	"bytes"
	"encoding/binary"
	"math/big"
	"time"

	"github.com/telemtproto/mtproto/pkg/crypto"
	"github.com/telemtproto/mtproto/pkg/dc"
	"github.com/telemtproto/mtproto/pkg/tl"
)

// TrustedKey pairs an RSA public key with its precomputed fingerprint,
// the value resPQ's fingerprints[] is matched against.
type TrustedKey struct {
	Key         crypto.RSAPublicKey
	Fingerprint uint64
}

// Config configures a Session.
type Config struct {
	// Temp selects the PFS temporary-key variant (carries ExpiresIn).
	Temp bool

	// ExpiresIn is the temp key's validity window in seconds. Only used
	// when Temp is true.
	ExpiresIn int32

	// TrustedKeys is the local set of RSA public keys the client accepts,
	// keyed by fingerprint.
	TrustedKeys []TrustedKey
}

// Session drives one handshake attempt. A new Session must be created for
// each restart, so every attempt runs from req_pq with fresh nonces.
type Session struct {
	temp        bool
	expiresIn   int32
	trustedKeys []TrustedKey

	state dc.HandshakeState

	nonce       [16]byte
	serverNonce [16]byte
	newNonce    [32]byte

	p, q uint64

	chosenKey TrustedKey

	group      *crypto.DHGroup
	b          *big.Int
	gA         *big.Int
	authKeyRaw [256]byte

	serverTimeDelta float64
}

// New creates a Session ready to build req_pq.
func New(config Config) *Session {
	initState := dc.StateInit
	return &Session{
		temp:        config.Temp,
		expiresIn:   config.ExpiresIn,
		trustedKeys: config.TrustedKeys,
		state:       initState,
	}
}

// State returns the current handshake-state enum value.
func (s *Session) State() dc.HandshakeState { return s.state }

// Start builds req_pq and arms the session's nonce.
func (s *Session) Start() ([]byte, error) {
	nonce, err := crypto.RandomNonce128()
	if err != nil {
		return nil, err
	}
	s.nonce = nonce

	var buf bytes.Buffer
	w := tl.NewWriter(&buf)
	if err := w.PutUint32(reqPQConstructor); err != nil {
		return nil, err
	}
	if err := w.PutInt128(s.nonce); err != nil {
		return nil, err
	}

	if s.temp {
		s.state = dc.StateReqPQSentTemp
	} else {
		s.state = dc.StateReqPQSent
	}
	return buf.Bytes(), nil
}

// HandleResPQ parses resPQ, factors pq, selects a trusted RSA key, and
// builds req_DH_params.
func (s *Session) HandleResPQ(data []byte) ([]byte, error) {
	r := tl.NewReader(data)
	if _, err := r.ExpectConstructor(resPQConstructor); err != nil {
		return nil, err
	}
	nonce, err := r.GetInt128()
	if err != nil {
		return nil, err
	}
	if nonce != s.nonce {
		return nil, ErrNonceMismatch
	}
	serverNonce, err := r.GetInt128()
	if err != nil {
		return nil, err
	}
	s.serverNonce = serverNonce

	pqBytes, err := r.GetBytes()
	if err != nil {
		return nil, err
	}
	pq := new(big.Int).SetBytes(pqBytes).Uint64()

	count, err := r.GetVectorHeader()
	if err != nil {
		return nil, err
	}
	fingerprints := make([]uint64, count)
	for i := range fingerprints {
		v, err := r.GetInt64()
		if err != nil {
			return nil, err
		}
		fingerprints[i] = uint64(v)
	}

	var chosen TrustedKey
	found := false
	for _, fp := range fingerprints {
		for _, tk := range s.trustedKeys {
			if tk.Fingerprint == fp {
				chosen = tk
				found = true
				break
			}
		}
		if found {
			break
		}
	}
	if !found {
		return nil, ErrNoMatchingKey
	}
	s.chosenKey = chosen

	p, q, err := crypto.FactorPQ(pq)
	if err != nil {
		return nil, err
	}
	s.p, s.q = p, q

	newNonce, err := crypto.RandomNonce256()
	if err != nil {
		return nil, err
	}
	s.newNonce = newNonce

	var inner bytes.Buffer
	iw := tl.NewWriter(&inner)
	if s.temp {
		_ = iw.PutUint32(pQInnerDataTempConstructor)
	} else {
		_ = iw.PutUint32(pQInnerDataConstructor)
	}
	_ = iw.PutBigInt(new(big.Int).SetUint64(pq))
	_ = iw.PutBigInt(new(big.Int).SetUint64(p))
	_ = iw.PutBigInt(new(big.Int).SetUint64(q))
	_ = iw.PutInt128(s.nonce)
	_ = iw.PutInt128(s.serverNonce)
	_ = iw.PutInt256(s.newNonce)
	if s.temp {
		if err := iw.PutInt32(s.expiresIn); err != nil {
			return nil, err
		}
	}

	body := inner.Bytes()
	prefix := crypto.SHA1Slice(body)
	plaintext := append(append([]byte{}, prefix...), body...)

	encrypted, err := crypto.PadAndEncryptRSA(s.chosenKey.Key, plaintext, crypto.RandomBytes)
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	w := tl.NewWriter(&out)
	_ = w.PutUint32(reqDHParamsConstructor)
	_ = w.PutInt128(s.nonce)
	_ = w.PutInt128(s.serverNonce)
	_ = w.PutBigInt(new(big.Int).SetUint64(p))
	_ = w.PutBigInt(new(big.Int).SetUint64(q))
	if err := w.PutInt64(int64(s.chosenKey.Fingerprint)); err != nil {
		return nil, err
	}
	if err := w.PutBytes(encrypted); err != nil {
		return nil, err
	}

	if s.temp {
		s.state = dc.StateReqDHSentTemp
	} else {
		s.state = dc.StateReqDHSent
	}
	return out.Bytes(), nil
}

// HandleServerDHParams parses server_DH_params_ok/_fail, validates the
// server's DH parameters, generates the client's private exponent, and
// builds set_client_DH_params.
func (s *Session) HandleServerDHParams(data []byte) ([]byte, error) {
	r := tl.NewReader(data)
	tag, err := r.ExpectConstructor(serverDHParamsOKConstructor, serverDHParamsFailConstructor)
	if err != nil {
		return nil, err
	}
	nonce, err := r.GetInt128()
	if err != nil {
		return nil, err
	}
	if nonce != s.nonce {
		return nil, ErrNonceMismatch
	}
	serverNonce, err := r.GetInt128()
	if err != nil {
		return nil, err
	}
	if serverNonce != s.serverNonce {
		return nil, ErrNonceMismatch
	}

	if tag == serverDHParamsFailConstructor {
		return nil, ErrServerDHParamsBad
	}

	encryptedAnswer, err := r.GetBytes()
	if err != nil {
		return nil, err
	}

	key, iv := crypto.DeriveHandshakeKeyIV(s.serverNonce, s.newNonce)
	decrypted, err := crypto.AESIGEDecrypt(key[:], iv[:], encryptedAnswer)
	if err != nil {
		return nil, err
	}
	if len(decrypted) < 20 {
		return nil, ErrHashMismatch
	}
	prefix, rest := decrypted[:20], decrypted[20:]

	ir := tl.NewReader(rest)
	if _, err := ir.ExpectConstructor(serverDHInnerDataConstructor); err != nil {
		return nil, err
	}
	innerNonce, err := ir.GetInt128()
	if err != nil {
		return nil, err
	}
	if innerNonce != s.nonce {
		return nil, ErrNonceMismatch
	}
	innerServerNonce, err := ir.GetInt128()
	if err != nil {
		return nil, err
	}
	if innerServerNonce != s.serverNonce {
		return nil, ErrNonceMismatch
	}
	g, err := ir.GetInt32()
	if err != nil {
		return nil, err
	}
	dhPrime, err := ir.GetBigInt()
	if err != nil {
		return nil, err
	}
	gA, err := ir.GetBigInt()
	if err != nil {
		return nil, err
	}
	serverTime, err := ir.GetInt32()
	if err != nil {
		return nil, err
	}

	consumed := ir.Pos()
	if !bytes.Equal(crypto.SHA1Slice(rest[:consumed]), prefix) {
		return nil, ErrHashMismatch
	}

	if !crypto.IsSafePrime(dhPrime, 64) {
		return nil, ErrWeakDHPrime
	}
	group := crypto.NewDHGroup(dhPrime, int64(g))
	if err := group.ValidatePublicValue(gA); err != nil {
		return nil, ErrPublicValueRange
	}
	s.group = group
	s.gA = gA
	s.serverTimeDelta = float64(serverTime) - float64(time.Now().Unix())

	b, err := group.GeneratePrivate()
	if err != nil {
		return nil, err
	}
	s.b = b
	gB := group.ComputePublic(b)

	authKeyBig := group.ComputeShared(b, gA)
	copy(s.authKeyRaw[:], crypto.FixedBytes(authKeyBig, 256))

	var inner bytes.Buffer
	iw := tl.NewWriter(&inner)
	_ = iw.PutUint32(clientDHInnerDataConstructor)
	_ = iw.PutInt128(s.nonce)
	_ = iw.PutInt128(s.serverNonce)
	_ = iw.PutInt64(0) // retry_id: first attempt
	_ = iw.PutBigInt(gB)

	body := inner.Bytes()
	bodyPrefix := crypto.SHA1Slice(body)
	plaintext := append(append([]byte{}, bodyPrefix...), body...)
	if pad := (-len(plaintext)) & (crypto.AESBlockSize - 1); pad > 0 {
		padBytes, err := crypto.RandomBytes(pad)
		if err != nil {
			return nil, err
		}
		plaintext = append(plaintext, padBytes...)
	}

	encryptedData, err := crypto.AESIGEEncrypt(key[:], iv[:], plaintext)
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	w := tl.NewWriter(&out)
	_ = w.PutUint32(setClientDHParamsConstructor)
	_ = w.PutInt128(s.nonce)
	_ = w.PutInt128(s.serverNonce)
	if err := w.PutBytes(encryptedData); err != nil {
		return nil, err
	}

	if s.temp {
		s.state = dc.StateClientDHSentTemp
	} else {
		s.state = dc.StateClientDHSent
	}
	return out.Bytes(), nil
}

// Result carries the outcome of a successful HandleDHGenResult call.
type Result struct {
	AuthKey    [256]byte
	AuthKeyID  uint64
	ServerSalt uint64
	TimeDelta  float64
}

// HandleDHGenResult parses dh_gen_ok/_retry/_fail, verifies the
// new_nonce_hash1 confirmation, and derives the server salt.
// dh_gen_retry and dh_gen_fail are both treated as
// bad_connection: the caller should drop the connection and
// restart the handshake with a fresh Session rather than resend with an
// incremented retry_id, keeping this package's state machine strictly
// linear, with no branching retry.
func (s *Session) HandleDHGenResult(data []byte) (Result, error) {
	r := tl.NewReader(data)
	tag, err := r.ExpectConstructor(dhGenOKConstructor, dhGenRetryConstructor, dhGenFailConstructor)
	if err != nil {
		return Result{}, err
	}
	nonce, err := r.GetInt128()
	if err != nil {
		return Result{}, err
	}
	if nonce != s.nonce {
		return Result{}, ErrNonceMismatch
	}
	serverNonce, err := r.GetInt128()
	if err != nil {
		return Result{}, err
	}
	if serverNonce != s.serverNonce {
		return Result{}, ErrNonceMismatch
	}
	hashField, err := r.GetInt128()
	if err != nil {
		return Result{}, err
	}

	switch tag {
	case dhGenRetryConstructor:
		return Result{}, ErrDHGenRetry
	case dhGenFailConstructor:
		return Result{}, ErrDHGenFail
	}

	authKeyID := crypto.AuthKeyID(s.authKeyRaw)
	var authKeyIDBytes [8]byte
	for i := 0; i < 8; i++ {
		authKeyIDBytes[i] = byte(authKeyID >> (8 * uint(i)))
	}

	check := crypto.SHA1Slice(concat(s.newNonce[:], []byte{1}, authKeyIDBytes[:]))
	wantHash := check[4:20]
	if !bytes.Equal(hashField[:], wantHash) {
		return Result{}, ErrHashMismatch
	}

	// Nonces are raw little-endian wire blobs, so "low 64 bits" is simply
	// their first 8 bytes read little-endian (unlike a SHA-1 digest's
	// low64, which crypto.LowUint64 reads from the tail of a big-endian
	// byte string).
	serverSalt := binary.LittleEndian.Uint64(s.serverNonce[:8]) ^ binary.LittleEndian.Uint64(s.newNonce[:8])

	s.state = dc.StateAuthorized
	return Result{
		AuthKey:    s.authKeyRaw,
		AuthKeyID:  authKeyID,
		ServerSalt: serverSalt,
		TimeDelta:  s.serverTimeDelta,
	}, nil
}

func concat(parts ...[]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
