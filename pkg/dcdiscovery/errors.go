package dcdiscovery

import "errors"

// ErrServiceNotFound is returned when no development DC answers the
// mDNS lookup.
var ErrServiceNotFound = errors.New("dcdiscovery: service not found")

// ErrTimeout is returned when the lookup's deadline passes with no
// response.
var ErrTimeout = errors.New("dcdiscovery: operation timed out")
