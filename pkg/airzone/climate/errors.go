package climate

import "errors"

var (
	// ErrConfiguration is returned for bad or missing connection parameters.
	ErrConfiguration = errors.New("airzone: configuration error")
	// ErrTransport wraps network and protocol failures.
	ErrTransport = errors.New("airzone: transport error")
	// ErrParse is returned when a status payload is malformed or incomplete.
	ErrParse = errors.New("airzone: parse error")
	// ErrRange is returned when a command value is outside the supported bounds.
	ErrRange = errors.New("airzone: value out of range")
	// ErrUnsupportedOperation is returned when an operation is not valid for a
	// backend, adapter level or preset combination.
	ErrUnsupportedOperation = errors.New("airzone: unsupported operation")
	// ErrUnknownMode is returned when a backend reports a native mode with no
	// canonical equivalent.
	ErrUnknownMode = errors.New("airzone: unknown mode")
)
