// Package errs holds the error kinds that cross component boundaries.
// Components wrap their own errors with one of these before handing them
// to a sibling, and callers classify with errors.Is.
package errs

import "errors"

var (
	// ErrFieldUnavailable marks a single host metric that could not be read.
	// The sampler substitutes a sentinel and keeps going.
	ErrFieldUnavailable = errors.New("metric field unavailable")

	// ErrDecode marks a malformed or unexpected inbound message. The message
	// is dropped, the session continues.
	ErrDecode = errors.New("decode failed")

	// ErrTransport marks connection level failures. It terminates only the
	// affected session or stream.
	ErrTransport = errors.New("transport failure")

	// ErrStartup marks failures that abort a process before it serves.
	ErrStartup = errors.New("startup failure")
)

// Unknown is substituted for string fields the host cannot resolve.
const Unknown = "unknown"
