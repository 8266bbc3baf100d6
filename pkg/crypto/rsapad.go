package crypto

import (
	"errors"
	"math/big"
)

// ErrRSADataTooLong is returned when the inner data block does not fit the
// padding scheme's capacity for a given RSA modulus size.
var ErrRSADataTooLong = errors.New("crypto: RSA padding input too long")

// RSAPublicKey is a minimal RSA public key: modulus and public exponent.
// MTProto's trusted RSA keys are small, hardcoded, and never rotated via a
// CA chain, so a full x509/rsa.PublicKey is unnecessary ceremony; a bare
// (N, E) pair keyed by fingerprint is what req_pq/resPQ actually exchange.
type RSAPublicKey struct {
	N *big.Int
	E *big.Int
}

// Fingerprint returns the low 64 bits of SHA-1(serialized TL object
// representing this key), the value resPQ's fingerprints[] carries and
// the client matches against its trusted key set.
func (k RSAPublicKey) Fingerprint(tlEncoded []byte) uint64 {
	h := SHA1(tlEncoded)
	return uint64(h[19]) | uint64(h[18])<<8 | uint64(h[17])<<16 | uint64(h[16])<<24 |
		uint64(h[15])<<32 | uint64(h[14])<<40 | uint64(h[13])<<48 | uint64(h[12])<<56
}

// PadAndEncryptRSA implements MTProto's handshake padding-then-RSA-encrypt
// step: the 255-byte inner data block (20-byte SHA-1
// prefix ‖ serialized p_q_inner_data{_temp}) is padded with random bytes to
// the 256-byte RSA modulus size and encrypted as a single big-endian
// integer raised to the public exponent. This is MTProto's own fixed
// padding convention, not PKCS#1 OAEP — no stdlib/ecosystem RSA padding
// scheme matches it, so it is implemented directly on math/big modular
// exponentiation exactly as the protocol defines, the same way the
// handshake's other bespoke framing is hand-rolled rather than borrowed
// from a general-purpose crypto library.
func PadAndEncryptRSA(key RSAPublicKey, data []byte, randomPad func(n int) ([]byte, error)) ([]byte, error) {
	const modulusSize = 256
	if len(data) > modulusSize {
		return nil, ErrRSADataTooLong
	}

	padded := make([]byte, modulusSize)
	copy(padded, data)
	if len(data) < modulusSize {
		pad, err := randomPad(modulusSize - len(data))
		if err != nil {
			return nil, err
		}
		copy(padded[len(data):], pad)
	}

	m := new(big.Int).SetBytes(padded)
	if m.Cmp(key.N) >= 0 {
		// The high bytes come from data (SHA-1 prefix first), so a fresh
		// pad cannot bring m below N; the caller restarts the handshake
		// with fresh nonces rather than reduce mod N.
		return nil, ErrRSADataTooLong
	}

	c := new(big.Int).Exp(m, key.E, key.N)
	out := c.Bytes()
	if len(out) < modulusSize {
		buf := make([]byte, modulusSize)
		copy(buf[modulusSize-len(out):], out)
		out = buf
	}
	return out, nil
}
