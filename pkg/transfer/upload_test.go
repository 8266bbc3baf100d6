package transfer

import (
	"bytes"
	"testing"

	"github.com/telemtproto/mtproto/pkg/crypto"
)

func TestUploadPlain(t *testing.T) {
	data := bytes.Repeat([]byte{0xab}, 50000)
	var parts [][]byte
	result, err := Upload(UploadConfig{
		Source: bytes.NewReader(data),
		Size:   int64(len(data)),
		FileID: 1,
		SavePart: func(fileID int64, partNum, totalParts int32, big bool, chunk []byte) error {
			parts = append(parts, append([]byte{}, chunk...))
			return nil
		},
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if result.PartCount != int32(len(parts)) {
		t.Fatalf("PartCount = %d, want %d", result.PartCount, len(parts))
	}

	var got []byte
	for _, p := range parts {
		got = append(got, p...)
	}
	if !bytes.Equal(got, data) {
		t.Fatal("reassembled parts do not match source data")
	}
}

func TestUploadSecretRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte{0x42}, 5000)
	secret, err := NewSecretFileKey()
	if err != nil {
		t.Fatalf("NewSecretFileKey: %v", err)
	}

	var parts [][]byte
	result, err := Upload(UploadConfig{
		Source:   bytes.NewReader(data),
		Size:     int64(len(data)),
		FileID:   2,
		Secret:   &secret,
		SavePart: func(fileID int64, partNum, totalParts int32, big bool, chunk []byte) error {
			parts = append(parts, append([]byte{}, chunk...))
			return nil
		},
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if result.Fingerprint != secret.Fingerprint() {
		t.Fatal("result fingerprint does not match the secret key's")
	}

	iv := secret.IV
	var got []byte
	for _, p := range parts {
		plain, err := crypto.AESIGEDecryptCarry(secret.Key[:], &iv, p)
		if err != nil {
			t.Fatalf("AESIGEDecryptCarry: %v", err)
		}
		got = append(got, plain...)
	}
	if !bytes.Equal(got[:len(data)], data) {
		t.Fatal("decrypted parts do not match source data")
	}
}

func TestUploadCancelled(t *testing.T) {
	data := bytes.Repeat([]byte{0x01}, 50000)
	token := NewCancelToken()
	token.Cancel()

	_, err := Upload(UploadConfig{
		Source: bytes.NewReader(data),
		Size:   int64(len(data)),
		FileID: 3,
		SavePart: func(int64, int32, int32, bool, []byte) error {
			t.Fatal("SavePart must not be called once cancelled")
			return nil
		},
		Cancel: token,
	})
	if err != ErrCancelled {
		t.Fatalf("Upload with pre-cancelled token = %v, want ErrCancelled", err)
	}
}

func TestUploadThumbnail(t *testing.T) {
	var thumbFileID int64
	var thumbCalls int
	_, err := Upload(UploadConfig{
		Source:          bytes.NewReader([]byte("x")),
		Size:            1,
		FileID:          10,
		Thumbnail:       []byte("thumb-bytes"),
		ThumbnailFileID: 20,
		SavePart: func(fileID int64, partNum, totalParts int32, big bool, chunk []byte) error {
			if partNum == 0 && fileID == 20 {
				thumbFileID = fileID
				thumbCalls++
			}
			return nil
		},
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if thumbFileID != 20 || thumbCalls != 1 {
		t.Fatalf("thumbnail not uploaded as a single part before the main file")
	}
}
