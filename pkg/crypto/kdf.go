package crypto

// DeriveMessageKeyIV implements the AES key/IV derivation schedule used by
// the encrypted transport envelope: four SHA-1 runs mixing the
// 256-byte auth key with the 16-byte msg_key.
//
//	sha1_a = SHA1(msg_key ‖ auth_key[0:32])
//	sha1_b = SHA1(auth_key[32:48] ‖ msg_key ‖ auth_key[48:64])
//	sha1_c = SHA1(auth_key[64:96] ‖ msg_key)
//	sha1_d = SHA1(msg_key ‖ auth_key[96:128])
//	aes_key = sha1_a[0:8] ‖ sha1_b[8:20] ‖ sha1_c[4:16]
//	aes_iv  = sha1_a[8:20] ‖ sha1_b[0:8] ‖ sha1_c[16:20] ‖ sha1_d[0:8]
func DeriveMessageKeyIV(authKey [256]byte, msgKey [16]byte) (key [32]byte, iv [32]byte) {
	a := SHA1(concat(msgKey[:], authKey[0:32]))
	b := SHA1(concat(authKey[32:48], msgKey[:], authKey[48:64]))
	c := SHA1(concat(authKey[64:96], msgKey[:]))
	d := SHA1(concat(msgKey[:], authKey[96:128]))

	copy(key[0:8], a[0:8])
	copy(key[8:20], b[8:20])
	copy(key[20:32], c[4:16])

	copy(iv[0:12], a[8:20])
	copy(iv[12:20], b[0:8])
	copy(iv[20:24], c[16:20])
	copy(iv[24:32], d[0:8])

	return key, iv
}

// DeriveHandshakeKeyIV implements the deterministic nonce-mixing schedule
// used during the unauthenticated handshake to derive
// the AES-IGE key/IV that wraps server_DH_params_ok's encrypted_answer and
// set_client_DH_params's encrypted_data.
//
//	tmp_aes_key = SHA1(new_nonce ‖ server_nonce) ‖ SHA1(server_nonce ‖ new_nonce)[0:12]
//	tmp_aes_iv  = SHA1(server_nonce ‖ new_nonce)[12:20] ‖ SHA1(new_nonce ‖ new_nonce) ‖ new_nonce[0:4]
func DeriveHandshakeKeyIV(serverNonce [16]byte, newNonce [32]byte) (key [32]byte, iv [32]byte) {
	h1 := SHA1(concat(newNonce[:], serverNonce[:]))
	h2 := SHA1(concat(serverNonce[:], newNonce[:]))
	h3 := SHA1(concat(newNonce[:], newNonce[:]))

	copy(key[0:20], h1[:])
	copy(key[20:32], h2[0:12])

	copy(iv[0:8], h2[12:20])
	copy(iv[8:28], h3[:])
	copy(iv[28:32], newNonce[0:4])

	return key, iv
}

// AuthKeyID computes an auth key's fingerprint: the low 64 bits of
// SHA1(authKey)[12:20], the same low64(sha1(...)) shape the handshake's
// new_nonce_hash1 confirmation uses.
func AuthKeyID(authKey [256]byte) uint64 {
	h := SHA1(authKey[:])
	return LowUint64(h[12:20])
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
