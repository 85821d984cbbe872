package netmount

import "fmt"

// DosErrorCode is one of the DOS extended-error-code values a handler can
// surface in a reply's AX field.
type DosErrorCode uint16

const (
	ErrNoError        DosErrorCode = 0
	ErrFileNotFound   DosErrorCode = 2
	ErrPathNotFound   DosErrorCode = 3
	ErrAccessDenied   DosErrorCode = 5
	ErrInvalidHandle  DosErrorCode = 6
	ErrWriteFault     DosErrorCode = 29
	ErrGeneralFailure DosErrorCode = 31
	ErrNoMoreFiles    DosErrorCode = 18
)

// DosError wraps an underlying failure with the DOS error code it maps to
// on the wire. Drive methods return a *DosError instead of throwing;
// handleDeleteFile copies its Code into the reply's AX, while the other
// handlers map any error to a fixed code of their own.
type DosError struct {
	Code DosErrorCode
	Err  error
}

// Error implements the error interface for DosError
func (e *DosError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dos error %d: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("dos error %d", e.Code)
}

func (e *DosError) Unwrap() error { return e.Err }

func dosErr(code DosErrorCode, err error) *DosError {
	return &DosError{Code: code, Err: err}
}

// InvalidHandleError represents an error when a drive handle is out of
// range or references a free slot.
type InvalidHandleError struct {
	Handle uint16
	Reason string
}

// Error implements the error interface for InvalidHandleError
func (e *InvalidHandleError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid handle %d: %s", e.Handle, e.Reason)
	}
	return fmt.Sprintf("invalid handle %d", e.Handle)
}

// NotSupportedError represents an error when an attribute backend does not
// support the requested probe on the current platform.
type NotSupportedError struct {
	Operation string
	Reason    string
}

// Error implements the error interface for NotSupportedError
func (e *NotSupportedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("operation '%s' not supported: %s", e.Operation, e.Reason)
	}
	return fmt.Sprintf("operation '%s' not supported", e.Operation)
}
