package crypto

import (
	"errors"
	"math/big"
)

// Errors for DH parameter validation.
var (
	ErrWeakPrime      = errors.New("crypto: dh_prime failed safe-prime validation")
	ErrOutOfRange     = errors.New("crypto: DH public value out of the required range")
	ErrInvalidKeySize = errors.New("crypto: key must be exactly 256 bytes")
)

// DHGroup is a Diffie-Hellman group over a server-supplied prime p and
// generator g, used identically by the handshake and the
// secret-chat key agreement: classic multiplicative-group-mod-p
// arithmetic on math/big.Int, since MTProto's DH is defined over a
// prime field, not a curve.
type DHGroup struct {
	P *big.Int
	G *big.Int
}

// NewDHGroup builds a group from a prime and a small integer generator.
func NewDHGroup(p *big.Int, g int64) *DHGroup {
	return &DHGroup{P: p, G: big.NewInt(g)}
}

// GeneratePrivate returns a random 2048-bit exponent suitable as a DH
// private value (handshake's b, secret-chat's a/b).
func (d *DHGroup) GeneratePrivate() (*big.Int, error) {
	buf, err := RandomBytes(256)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(buf), nil
}

// ComputePublic computes g^private mod p.
func (d *DHGroup) ComputePublic(private *big.Int) *big.Int {
	return new(big.Int).Exp(d.G, private, d.P)
}

// ComputeShared computes peerPublic^private mod p, the shared secret.
func (d *DHGroup) ComputeShared(private, peerPublic *big.Int) *big.Int {
	return new(big.Int).Exp(peerPublic, private, d.P)
}

// ValidatePublicValue checks 1 < value < p-1, the range check required
// for both g_a and g_b before any exponentiation against them is
// trusted.
func (d *DHGroup) ValidatePublicValue(value *big.Int) error {
	one := big.NewInt(1)
	pMinusOne := new(big.Int).Sub(d.P, one)
	if value.Cmp(one) <= 0 || value.Cmp(pMinusOne) >= 0 {
		return ErrOutOfRange
	}
	return nil
}

// IsSafePrime reports whether p is exactly 2048 bits long, prime, and
// (p-1)/2 is also prime, the
// validation the handshake requires of the server-supplied dh_prime
// before any exponentiation against it is trusted.
// probability controls the Miller-Rabin iteration count (big.Int.ProbablyPrime's n).
func IsSafePrime(p *big.Int, probability int) bool {
	if p.BitLen() != 2048 {
		return false
	}
	if !p.ProbablyPrime(probability) {
		return false
	}
	q := new(big.Int).Sub(p, big.NewInt(1))
	q.Rsh(q, 1)
	return q.ProbablyPrime(probability)
}

// FixedBytes renders v as a big-endian byte slice left-padded (or
// truncated from the left, which never happens for valid DH values) to
// exactly size bytes, the representation auth_key and DH public values
// take on the wire.
func FixedBytes(v *big.Int, size int) []byte {
	raw := v.Bytes()
	if len(raw) >= size {
		return raw[len(raw)-size:]
	}
	out := make([]byte, size)
	copy(out[size-len(raw):], raw)
	return out
}

// LowUint64 returns the last 8 bytes of b as a big-endian uint64
// (shorter input is left-padded with zeros), used to build auth-key ids
// and key fingerprints from a SHA-1 tail.
func LowUint64(b []byte) uint64 {
	if len(b) < 8 {
		buf := make([]byte, 8)
		copy(buf[8-len(b):], b)
		b = buf
	}
	b = b[len(b)-8:]
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}
