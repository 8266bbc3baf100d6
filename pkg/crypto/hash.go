// Package crypto provides the cryptographic primitives the MTProto client
// needs: SHA-1/SHA-256/MD5 digests, RSA-OAEP-style padding for the
// handshake's req_DH_params step, AES-IGE record encryption, a big-number
// modular-exponentiation Diffie-Hellman group, and a CSPRNG. Every function
// here is a thin named wrapper over stdlib crypto/*.
package crypto

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"hash"
)

// Digest sizes.
const (
	SHA1LenBytes   = sha1.Size
	SHA256LenBytes = sha256.Size
	MD5LenBytes    = md5.Size
)

// SHA1 computes the SHA-1 digest of data.
func SHA1(data []byte) [SHA1LenBytes]byte {
	return sha1.Sum(data)
}

// SHA1Slice computes the SHA-1 digest and returns it as a slice.
func SHA1Slice(data []byte) []byte {
	h := sha1.Sum(data)
	return h[:]
}

// NewSHA1 returns a new hash.Hash for incremental SHA-1 digests.
func NewSHA1() hash.Hash {
	return sha1.New()
}

// SHA256 computes the SHA-256 digest of data.
func SHA256(data []byte) [SHA256LenBytes]byte {
	return sha256.Sum256(data)
}

// SHA256Slice computes the SHA-256 digest and returns it as a slice.
func SHA256Slice(data []byte) []byte {
	h := sha256.Sum256(data)
	return h[:]
}

// MD5 computes the MD5 digest of data. Used only for the secret-chat file
// fingerprint (low32(md5(key‖iv))[0..4] XOR [4..8]), never for integrity.
func MD5(data []byte) [MD5LenBytes]byte {
	return md5.Sum(data)
}

// MD5Slice computes the MD5 digest and returns it as a slice.
func MD5Slice(data []byte) []byte {
	h := md5.Sum(data)
	return h[:]
}
