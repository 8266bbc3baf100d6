// Package secretchat implements the end-to-end-encrypted two-party
// conversation engine: DH key agreement over a server-supplied
// prime, per-chat key and fingerprint, in/out seq-no parity, IGE-AES
// message framing, and gap/duplicate detection.
//
// A Chat is a mutex-guarded state machine stepped by explicit
// RequestEncryption/HandleRequested/ConfirmEncryption calls, each
// returning the next wire value. There is no PKI: the two accounts
// authenticate by comparing key fingerprints, not certificates.
package secretchat

import (
	"math/big"
	"sync"

	"github.com/telemtproto/mtproto/pkg/crypto"
)

// Chat is one secret chat's full key-agreement and sequencing state.
type Chat struct {
	mu sync.Mutex

	id         int32
	accessHash int64
	userID     int32
	adminID    int32
	selfID     int32

	role  Role
	state State

	group   *crypto.DHGroup
	private *big.Int // own DH exponent (a for initiator, b for acceptor)

	key            [256]byte
	keyFingerprint int64
	encrPrime      [256]byte
	encrRoot       uint32
	gKey           [256]byte // peer's public DH value, as confirmed

	ttl   int32
	layer int32

	inSeqNo     int32
	outSeqNo    int32
	lastInSeqNo int32
}

// NewInitiator creates a Chat for the side that calls
// messages.requestEncryption. adminID equals selfID: the initiator is the
// chat's admin.
func NewInitiator(id int32, accessHash int64, userID, selfID int32) *Chat {
	return &Chat{
		id:         id,
		accessHash: accessHash,
		userID:     userID,
		adminID:    selfID,
		selfID:     selfID,
		role:       RoleInitiator,
		state:      StateNone,
	}
}

// NewAcceptor creates a Chat for the side that answers an
// encryptedChatRequested update. adminID is the peer's id (the chat's
// originator).
func NewAcceptor(id int32, accessHash int64, userID, adminID, selfID int32) *Chat {
	return &Chat{
		id:         id,
		accessHash: accessHash,
		userID:     userID,
		adminID:    adminID,
		selfID:     selfID,
		role:       RoleAcceptor,
		state:      StateNone,
	}
}

// RequestEncryption computes g_a = g^a mod p from a server-supplied
// (p, g) pair and local randomness XORed with the server's random_256,
// and transitions StateNone -> StateWaiting. It
// returns g_a as a fixed 256-byte big-endian value, ready for
// messages.requestEncryption.
func (c *Chat) RequestEncryption(group *crypto.DHGroup, serverRandom256 [32]byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.role != RoleInitiator {
		return nil, ErrInvalidState
	}
	if c.state != StateNone {
		return nil, ErrInvalidState
	}

	localRandom, err := crypto.RandomNonce256()
	if err != nil {
		return nil, err
	}
	var mixed [32]byte
	for i := range mixed {
		mixed[i] = localRandom[i] ^ serverRandom256[i]
	}

	c.group = group
	c.private = new(big.Int).SetBytes(mixed[:])
	gA := group.ComputePublic(c.private)

	c.state = StateWaiting
	return crypto.FixedBytes(gA, 256), nil
}

// HandleRequested validates the peer's g_a, generates b, derives the
// shared key and its fingerprint, and
// transitions StateNone -> StateOK. It returns g_b and the fingerprint
// for messages.acceptEncryption.
func (c *Chat) HandleRequested(group *crypto.DHGroup, gABytes []byte) (gB []byte, fingerprint int64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.role != RoleAcceptor {
		return nil, 0, ErrInvalidState
	}
	if c.state != StateNone {
		return nil, 0, ErrInvalidState
	}

	gA := new(big.Int).SetBytes(gABytes)
	if verr := group.ValidatePublicValue(gA); verr != nil {
		return nil, 0, ErrBadGA
	}

	b, err := group.GeneratePrivate()
	if err != nil {
		return nil, 0, err
	}
	shared := group.ComputeShared(b, gA)

	c.group = group
	c.private = b
	copy(c.key[:], crypto.FixedBytes(shared, 256))
	copy(c.gKey[:], gABytes)
	c.keyFingerprint = computeFingerprint(c.key)

	c.state = StateOK

	gBValue := group.ComputePublic(b)
	return crypto.FixedBytes(gBValue, 256), c.keyFingerprint, nil
}

// ConfirmEncryption computes the shared key from the peer's g_b using the
// exponent a stashed by RequestEncryption, verifies the server-reported
// fingerprint matches, and transitions StateWaiting -> StateOK.
func (c *Chat) ConfirmEncryption(gBBytes []byte, peerFingerprint int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.role != RoleInitiator {
		return ErrInvalidState
	}
	if c.state != StateWaiting {
		return ErrInvalidState
	}

	gB := new(big.Int).SetBytes(gBBytes)
	if verr := c.group.ValidatePublicValue(gB); verr != nil {
		return ErrBadGA
	}
	shared := c.group.ComputeShared(c.private, gB)
	copy(c.key[:], crypto.FixedBytes(shared, 256))
	copy(c.gKey[:], gBBytes)
	c.keyFingerprint = computeFingerprint(c.key)

	if c.keyFingerprint != peerFingerprint {
		c.state = StateDeleted
		return ErrFingerprintMismatch
	}

	c.state = StateOK
	return nil
}

// Rekey implements PFS ("exchange") rekeying. Unsupported; callers get
// ErrRekeyUnsupported rather than a crash.
func (c *Chat) Rekey() error {
	return ErrRekeyUnsupported
}

// computeFingerprint is low64(sha1(key)[12:20]), rendered as the signed
// int64 the wire carries.
func computeFingerprint(key [256]byte) int64 {
	h := crypto.SHA1(key[:])
	return int64(crypto.LowUint64(h[12:20]))
}

// ID returns the chat id.
func (c *Chat) ID() int32 { return c.id }

// State returns the chat's current lifecycle state.
func (c *Chat) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// KeyFingerprint returns the chat's confirmed key fingerprint.
func (c *Chat) KeyFingerprint() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.keyFingerprint
}

// Key returns a copy of the shared 256-byte key.
func (c *Chat) Key() [256]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.key
}

// IsAdmin reports whether selfID originated this chat; the seq-no
// parity rules are keyed on admin_id == self_id.
func (c *Chat) IsAdmin() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.adminID == c.selfID
}
