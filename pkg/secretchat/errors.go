package secretchat

import "errors"

var (
	// ErrInvalidState is returned when a method is called out of turn for
	// the chat's current State/Role.
	ErrInvalidState = errors.New("secretchat: invalid state for this operation")

	// ErrBadGA is tglmp_check_g_a's failure: the peer's public DH value is
	// out of the required range.
	ErrBadGA = errors.New("secretchat: peer's g_a failed range validation")

	// ErrFingerprintMismatch means a confirmed key_fingerprint does not
	// match the one recomputed from the locally-derived shared key.
	ErrFingerprintMismatch = errors.New("secretchat: key fingerprint mismatch")

	// ErrRekeyUnsupported is returned by any PFS-rekey ("exchange")
	// entrypoint; rekeying is not supported.
	ErrRekeyUnsupported = errors.New("secretchat: PFS rekeying is not supported")

	// ErrDuplicateMessage marks an inbound message whose out_seq_no/2 is
	// behind the local in_seq_no: already seen, drop silently.
	ErrDuplicateMessage = errors.New("secretchat: duplicate inbound message")

	// ErrParityMismatch marks an inbound message whose seq-no parity does
	// not match the admin/non-admin rule.
	ErrParityMismatch = errors.New("secretchat: seq-no parity mismatch")

	// ErrFingerprintUnknown is returned when an inbound encrypted message
	// carries a key_fingerprint that doesn't match the chat's own key.
	ErrFingerprintUnknown = errors.New("secretchat: unknown key fingerprint")
)

// Gap is returned by DecryptMessage when the inbound out_seq_no/2 is
// ahead of the local in_seq_no; the caller should emit a
// decrypted_message_action_resend. Start/End are the range the peer
// should resend.
type Gap struct {
	Start int32
	End   int32
}

func (g Gap) Error() string { return "secretchat: message gap detected, resend requested" }
