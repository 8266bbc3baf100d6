package handshake

import "errors"

// Handshake errors. All of these classify as bad_connection: the
// connection is torn down and the handshake is restarted from step 1
// with fresh nonces, the DC itself is not touched.
var (
	ErrNoMatchingKey     = errors.New("handshake: no trusted RSA key matches server fingerprints")
	ErrNonceMismatch     = errors.New("handshake: nonce mismatch")
	ErrWeakDHPrime       = errors.New("handshake: dh_prime failed safe-prime validation")
	ErrPublicValueRange  = errors.New("handshake: DH public value out of range")
	ErrHashMismatch      = errors.New("handshake: SHA-1 prefix or nonce-hash mismatch")
	ErrServerDHParamsBad = errors.New("handshake: server_DH_params_fail")
	ErrDHGenRetry        = errors.New("handshake: dh_gen_retry")
	ErrDHGenFail         = errors.New("handshake: dh_gen_fail")
	ErrUnexpectedState   = errors.New("handshake: message received in an unexpected state")
)
