package crypto

import (
	"crypto/rand"
	"io"
	"math/big"
)

// RandomBytes returns n cryptographically random bytes.
func RandomBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// RandomBigInt returns a uniform random value in [0, max).
func RandomBigInt(max *big.Int) (*big.Int, error) {
	return rand.Int(rand.Reader, max)
}

// RandomNonce128 returns a 128-bit (16-byte) random nonce, used for the
// handshake's client/server nonce fields.
func RandomNonce128() ([16]byte, error) {
	var out [16]byte
	if _, err := io.ReadFull(rand.Reader, out[:]); err != nil {
		return out, err
	}
	return out, nil
}

// RandomNonce256 returns a 256-bit (32-byte) random value, used for the
// handshake's new_nonce and for DH private exponents.
func RandomNonce256() ([32]byte, error) {
	var out [32]byte
	if _, err := io.ReadFull(rand.Reader, out[:]); err != nil {
		return out, err
	}
	return out, nil
}
