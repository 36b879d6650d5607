package rtccore

import "errors"

// Errors returned by the factory, pacer, and source APIs. All failures are
// reported as return values; nothing in this package panics across an
// exported boundary. Match with errors.Is.
var (
	// ErrInvalidParameter indicates a bad argument: an unknown or expired
	// request id, an out-of-range framerate, or a nil payload.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrInitializationFailed indicates the factory could not create the
	// shared engine. The factory stays uninitialized and may be retried.
	ErrInitializationFailed = errors.New("initialization failed")

	// ErrInvalidReference indicates an operation on a handle whose factory
	// was force-shut-down, a handle released twice, or a pacer used after
	// Shutdown.
	ErrInvalidReference = errors.New("invalid reference")
)
