package transfer

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/telemtproto/mtproto/pkg/crypto"
)

func TestDownloadPlain(t *testing.T) {
	data := bytes.Repeat([]byte{0x55}, int(DownloadPartLimit)+100)
	dest := filepath.Join(t.TempDir(), "download_1")

	offset := int64(0)
	err := Download(DownloadConfig{
		DestPath: dest,
		Size:     int64(len(data)),
		GetFile: func(off int64, limit int32) ([]byte, bool, error) {
			if off != offset {
				t.Fatalf("GetFile offset = %d, want %d", off, offset)
			}
			end := off + int64(limit)
			last := false
			if end >= int64(len(data)) {
				end = int64(len(data))
				last = true
			}
			chunk := data[off:end]
			offset = end
			return chunk, last, nil
		},
	})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatal("downloaded file does not match source data")
	}
}

func TestDownloadResume(t *testing.T) {
	data := bytes.Repeat([]byte{0x77}, 1000)
	dest := filepath.Join(t.TempDir(), "download_2")
	if err := os.WriteFile(dest, data[:400], 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	var gotOffsets []int64
	err := Download(DownloadConfig{
		DestPath: dest,
		Size:     int64(len(data)),
		GetFile: func(off int64, limit int32) ([]byte, bool, error) {
			gotOffsets = append(gotOffsets, off)
			return data[off:], true, nil
		},
	})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if len(gotOffsets) != 1 || gotOffsets[0] != 400 {
		t.Fatalf("GetFile offsets = %v, want [400]", gotOffsets)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatal("resumed download does not match source data")
	}
}

func TestDownloadAlreadyComplete(t *testing.T) {
	data := []byte("complete file")
	dest := filepath.Join(t.TempDir(), "download_3")
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	called := false
	err := Download(DownloadConfig{
		DestPath: dest,
		Size:     int64(len(data)),
		GetFile: func(off int64, limit int32) ([]byte, bool, error) {
			called = true
			return nil, true, nil
		},
	})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if called {
		t.Fatal("GetFile must not be called when offset >= size")
	}
}

func TestDownloadSecretTruncatesFinalBlock(t *testing.T) {
	plain := []byte("not a multiple of the AES block size!!")
	secret, err := NewSecretFileKey()
	if err != nil {
		t.Fatalf("NewSecretFileKey: %v", err)
	}

	iv := secret.IV
	padded := padToBlock(plain)
	ciphertext, err := crypto.AESIGEEncryptCarry(secret.Key[:], &iv, padded)
	if err != nil {
		t.Fatalf("AESIGEEncryptCarry: %v", err)
	}

	dest := filepath.Join(t.TempDir(), "download_4")
	served := false
	err = Download(DownloadConfig{
		DestPath: dest,
		Size:     int64(len(plain)),
		Secret:   &secret,
		GetFile: func(off int64, limit int32) ([]byte, bool, error) {
			if served {
				t.Fatal("GetFile called more than once")
			}
			served = true
			return ciphertext, true, nil
		},
	})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Fatalf("decrypted+truncated download = %q, want %q", got, plain)
	}
}

func TestDownloadCancelRemovesPartialFile(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "download_5")
	token := NewCancelToken()
	token.Cancel()

	err := Download(DownloadConfig{
		DestPath: dest,
		Size:     1000,
		GetFile: func(off int64, limit int32) ([]byte, bool, error) {
			t.Fatal("GetFile must not be called once cancelled")
			return nil, false, nil
		},
		Cancel: token,
	})
	if err != ErrCancelled {
		t.Fatalf("Download with pre-cancelled token = %v, want ErrCancelled", err)
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Fatal("partial file was not removed on cancellation")
	}
}

func TestDownloadShortDeliveryReportsSizeMismatch(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "download_6")
	err := Download(DownloadConfig{
		DestPath: dest,
		Size:     1000,
		GetFile: func(off int64, limit int32) ([]byte, bool, error) {
			return bytes.Repeat([]byte{0x11}, 100), true, nil
		},
	})
	if err != ErrSizeMismatch {
		t.Fatalf("Download short delivery = %v, want ErrSizeMismatch", err)
	}
}
