// Package transfer implements the chunked upload/download pipeline:
// part-size computation, the small/big-file split, secret-chat per-part
// AES-IGE encryption, thumbnail side-channel upload, and resumable
// sequential download with in-place IV carry.
package transfer

// Part-size bounds: the smallest power of two covering
// ceil(size/3000), clamped to this range.
const (
	minPartSize     = 16 * 1024
	maxPartSize     = 512 * 1024
	bigFileThreshold = 10 * 1024 * 1024
)

// PartSize computes the upload part size for a file of the given size:
// the smallest power of two >= ceil(size/3000), clamped to
// [16 KiB, 512 KiB].
func PartSize(size int64) int32 {
	if size <= 0 {
		return minPartSize
	}
	target := (size + 2999) / 3000
	n := int64(minPartSize)
	for n < target {
		n <<= 1
	}
	if n < minPartSize {
		n = minPartSize
	}
	if n > maxPartSize {
		n = maxPartSize
	}
	return int32(n)
}

// IsBigFile reports whether size requires upload.saveBigFilePart instead
// of upload.saveFilePart.
func IsBigFile(size int64) bool {
	return size > bigFileThreshold
}

// PartCount returns the number of parts size splits into at partSize.
func PartCount(size int64, partSize int32) int32 {
	if partSize <= 0 {
		return 0
	}
	n := size / int64(partSize)
	if size%int64(partSize) != 0 {
		n++
	}
	return int32(n)
}
