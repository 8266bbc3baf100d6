package transfer

import (
	"io"
	"os"

	"github.com/telemtproto/mtproto/pkg/crypto"
)

// DownloadPartLimit is the per-request limit passed to upload.getFile
//.
const DownloadPartLimit = 512 * 1024

// GetFileFunc fetches one upload.getFile(location, offset, limit) part.
// isLast reports whether the server has no more bytes beyond this part.
type GetFileFunc func(offset int64, limit int32) (data []byte, isLast bool, err error)

// DownloadConfig describes a single file download.
type DownloadConfig struct {
	GetFile  GetFileFunc
	DestPath string

	// Size is the file's declared size, used to detect an
	// already-complete resume and to truncate the final decrypted block.
	// Zero means unknown; the transfer runs until GetFile reports isLast.
	Size int64

	// Secret, if non-nil, decrypts each part with AES-IGE under the
	// document's key/IV, with the IV updated in place across parts.
	Secret *SecretFileKey

	Progress ProgressFunc
	Cancel   *CancelToken
}

// Download resumes (or starts) a sequential download to config.DestPath:
// offset initialized from any existing partial file,
// skipping straight to success if it already covers the declared size,
// decrypting encrypted documents part by part, and removing the partial
// file on cancellation.
func Download(config DownloadConfig) error {
	offset := int64(0)
	if fi, err := os.Stat(config.DestPath); err == nil {
		offset = fi.Size()
	}
	if config.Size > 0 && offset >= config.Size {
		return nil
	}

	f, err := os.OpenFile(config.DestPath, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return err
	}

	for {
		if cancelledOrNil(config.Cancel) {
			f.Close()
			os.Remove(config.DestPath)
			return ErrCancelled
		}

		data, isLast, err := config.GetFile(offset, DownloadPartLimit)
		if err != nil {
			return err
		}

		plain := data
		if config.Secret != nil && len(data) > 0 {
			plain, err = crypto.AESIGEDecryptCarry(config.Secret.Key[:], &config.Secret.IV, data)
			if err != nil {
				return err
			}
			if isLast && config.Size > 0 {
				if want := config.Size - offset; want >= 0 && want < int64(len(plain)) {
					plain = plain[:want]
				}
			}
		}

		if _, err := f.Write(plain); err != nil {
			return err
		}

		offset += int64(len(data))
		if config.Progress != nil {
			config.Progress(offset, config.Size)
		}

		if isLast {
			if config.Size > 0 && offset < config.Size {
				return ErrSizeMismatch
			}
			break
		}
	}
	return nil
}
