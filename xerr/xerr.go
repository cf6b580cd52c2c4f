// Package xerr defines the error taxonomy shared by every device, guiding,
// task, and persistence package.  It holds sentinels, not types; callers
// wrap a sentinel with fmt.Errorf("...: %w", xerr.NotFound) and downstream
// code checks with errors.Is.
package xerr

import "errors"

var (
	// NotFound indicates a device, module, record, or file is absent.
	NotFound = errors.New("not found")

	// BadState indicates an operation illegal in the current device state
	// machine, e.g. select while MOVING or startExposure while EXPOSING.
	BadState = errors.New("bad state")

	// BadDatabase indicates a persistence precondition was violated.
	BadDatabase = errors.New("bad database")

	// Timeout indicates a bounded wait exceeded its deadline.
	Timeout = errors.New("timeout")

	// DeviceFailure indicates a vendor SDK call failed; the wrapping error's
	// message carries the SDK's own text.
	DeviceFailure = errors.New("device failure")

	// CannotStream indicates a capability was requested of a device that
	// does not support it.
	CannotStream = errors.New("device cannot stream")

	// Degenerate indicates a calibration failed because its matrix was
	// singular (or nearly so).
	Degenerate = errors.New("degenerate calibration")

	// Cancelled indicates an operation was terminated on request.
	Cancelled = errors.New("cancelled")

	// ModuleNotFound indicates a driver module could not be located.
	ModuleNotFound = errors.New("module not found")

	// Unsupported indicates a request is well-formed but this
	// implementation has no code path for it (e.g. a pixel format a codec
	// cannot represent).
	Unsupported = errors.New("unsupported")
)
