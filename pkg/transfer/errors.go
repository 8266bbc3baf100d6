package transfer

import "errors"

// ErrCancelled is returned by Upload/Download when the caller's cancel
// token fires before the transfer completes.
var ErrCancelled = errors.New("transfer: cancelled")

// ErrNoParts is returned when an upload is attempted for a zero-length
// or otherwise empty source.
var ErrNoParts = errors.New("transfer: nothing to transfer")

// ErrSizeMismatch is returned when a download's declared size disagrees
// with what the server actually delivered by the time getFile reports
// the last part.
var ErrSizeMismatch = errors.New("transfer: downloaded size does not match declared size")
