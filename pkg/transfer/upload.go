package transfer

import (
	"io"

	"github.com/telemtproto/mtproto/pkg/crypto"
)

// SecretFileKey is the per-file random key/IV a secret-chat upload is
// encrypted under.
type SecretFileKey struct {
	Key [32]byte
	IV  [32]byte
}

// NewSecretFileKey generates a fresh random key/IV pair.
func NewSecretFileKey() (SecretFileKey, error) {
	key, err := crypto.RandomNonce256()
	if err != nil {
		return SecretFileKey{}, err
	}
	iv, err := crypto.RandomNonce256()
	if err != nil {
		return SecretFileKey{}, err
	}
	return SecretFileKey{Key: key, IV: iv}, nil
}

// Fingerprint computes the file descriptor fingerprint the secret-chat
// message carries: low32(md5(key‖iv))[0:4] XOR [4:8].
func (k SecretFileKey) Fingerprint() int32 {
	digest := crypto.MD5(append(append([]byte{}, k.Key[:]...), k.IV[:]...))
	var fp [4]byte
	for i := range fp {
		fp[i] = digest[i] ^ digest[i+4]
	}
	return int32(uint32(fp[0]) | uint32(fp[1])<<8 | uint32(fp[2])<<16 | uint32(fp[3])<<24)
}

// SavePartFunc dispatches one uploaded part to upload.saveFilePart or
// upload.saveBigFilePart (the big flag selects which).
type SavePartFunc func(fileID int64, partNum, totalParts int32, big bool, data []byte) error

// ProgressFunc reports upload/download progress as bytes transferred out
// of the declared total.
type ProgressFunc func(offset, size int64)

// UploadConfig describes a single file upload.
type UploadConfig struct {
	// Source is read sequentially in PartSize(Size)-sized chunks.
	Source io.Reader
	Size   int64
	FileID int64

	SavePart SavePartFunc

	// Secret, if non-nil, is the per-file key/IV a secret-chat upload is
	// encrypted under. Left nil for ordinary cloud-chat uploads.
	Secret *SecretFileKey

	// Thumbnail, if non-empty, is uploaded as one part under
	// ThumbnailFileID before Source.
	Thumbnail       []byte
	ThumbnailFileID int64

	Progress ProgressFunc
	Cancel   *CancelToken
}

// UploadResult is what the caller needs to build the messages.sendMedia
// (or secret variant) that references the uploaded file.
type UploadResult struct {
	FileID          int64
	PartCount       int32
	ThumbnailFileID int64
	ThumbnailSent   bool
	Fingerprint     int32
}

// Upload chunks config.Source into parts, dispatching each through
// config.SavePart, and returns what's needed to build the higher-level
// send-media call. Secret-chat encryption, thumbnail
// side-channel upload, progress reporting, and cancellation are all
// handled here; the TL construction of messages.sendMedia itself is the
// caller's concern, same division of labor as pkg/query.Manager leaving
// payload construction to its caller.
func Upload(config UploadConfig) (UploadResult, error) {
	if config.Size <= 0 {
		return UploadResult{}, ErrNoParts
	}

	result := UploadResult{FileID: config.FileID}

	// iv carries the IGE chaining state across parts; it starts from a copy
	// so config.Secret keeps the file's original IV.
	var iv [32]byte
	if config.Secret != nil {
		iv = config.Secret.IV
	}

	if len(config.Thumbnail) > 0 {
		thumb := config.Thumbnail
		if config.Secret != nil {
			padded := padToBlock(thumb)
			enc, err := crypto.AESIGEEncryptCarry(config.Secret.Key[:], &iv, padded)
			if err != nil {
				return UploadResult{}, err
			}
			thumb = enc
		}
		if err := config.SavePart(config.ThumbnailFileID, 0, 1, false, thumb); err != nil {
			return UploadResult{}, err
		}
		result.ThumbnailFileID = config.ThumbnailFileID
		result.ThumbnailSent = true
	}

	partSize := PartSize(config.Size)
	total := PartCount(config.Size, partSize)
	big := IsBigFile(config.Size)

	buf := make([]byte, partSize)
	var sent int64
	for partNum := int32(0); partNum < total; partNum++ {
		if cancelledOrNil(config.Cancel) {
			return UploadResult{}, ErrCancelled
		}

		n, err := io.ReadFull(config.Source, buf)
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			// last, short part
		} else if err != nil {
			return UploadResult{}, err
		}
		chunk := buf[:n]

		if config.Secret != nil {
			isLast := partNum == total-1
			plain := chunk
			if isLast {
				plain = padToBlock(chunk)
			}
			enc, err := crypto.AESIGEEncryptCarry(config.Secret.Key[:], &iv, plain)
			if err != nil {
				return UploadResult{}, err
			}
			chunk = enc
		}

		if err := config.SavePart(config.FileID, partNum, total, big, chunk); err != nil {
			return UploadResult{}, err
		}

		sent += int64(n)
		if config.Progress != nil {
			config.Progress(sent, config.Size)
		}
	}

	result.PartCount = total
	if config.Secret != nil {
		result.Fingerprint = config.Secret.Fingerprint()
	}
	return result, nil
}

// padToBlock right-pads data with random bytes to a 16-byte boundary, the
// minimum needed for the AES-IGE block alignment a secret-chat upload's
// final partial part requires.
func padToBlock(data []byte) []byte {
	rem := len(data) % crypto.AESBlockSize
	if rem == 0 {
		return data
	}
	pad, err := crypto.RandomBytes(crypto.AESBlockSize - rem)
	if err != nil {
		// Zero-padding is an acceptable fallback: block alignment is the
		// only hard requirement, not the pad byte values.
		pad = make([]byte, crypto.AESBlockSize-rem)
	}
	return append(append([]byte{}, data...), pad...)
}
