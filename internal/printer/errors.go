package printer

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument is returned for empty or missing print payloads.
// Requests failing with it never reach the transport.
var ErrInvalidArgument = errors.New("invalid argument")

// DeviceError is a failure reported by the transport. Diagnostic is
// surfaced to the caller verbatim.
type DeviceError struct {
	Diagnostic string
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device error: %s", e.Diagnostic)
}

// Diagnostic extracts the caller-facing message from a print error
func Diagnostic(err error) string {
	var devErr *DeviceError
	if errors.As(err, &devErr) {
		return devErr.Diagnostic
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
