// Package audioerr defines the error taxonomy shared by the clock, DAI and card layers.
package audioerr

import (
	"errors"
	"fmt"
)

// ErrorCode identifies the class of an audio path failure.
type ErrorCode string

// Clock, format and configuration error codes.
const (
	ErrClockUnsupported     ErrorCode = "CLOCK_UNSUPPORTED"
	ErrClockBusy            ErrorCode = "CLOCK_BUSY"
	ErrClockHardware        ErrorCode = "CLOCK_HARDWARE_FAILURE"
	ErrFormatHardware       ErrorCode = "FORMAT_HARDWARE_FAILURE"
	ErrMissingPlatformData  ErrorCode = "MISSING_PLATFORM_DATA"
	ErrUnknownLink          ErrorCode = "UNKNOWN_LINK"
	ErrInvalidState         ErrorCode = "INVALID_STATE"
	ErrRegistrationFailed   ErrorCode = "REGISTRATION_FAILED"
	ErrPowerTransitionError ErrorCode = "POWER_TRANSITION_FAILED"
)

// Error represents a failure on the audio data path.
type Error struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Context map[string]any `json:"context,omitempty"`
	Cause   error          `json:"cause,omitempty"`
}

// New creates a new audio error.
func New(code ErrorCode, message string, context map[string]any) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: context,
	}
}

// Wrap creates a new audio error with a cause.
func Wrap(code ErrorCode, message string, cause error, context map[string]any) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: context,
		Cause:   cause,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// HasCode checks if the error matches a specific code.
func (e *Error) HasCode(code ErrorCode) bool {
	return e.Code == code
}

// CodeOf returns the code of the outermost *Error in err's chain, or "" if there is none.
func CodeOf(err error) ErrorCode {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// Is reports whether any *Error in err's chain carries code.
func Is(err error, code ErrorCode) bool {
	for err != nil {
		var ae *Error
		if !errors.As(err, &ae) {
			return false
		}
		if ae.Code == code {
			return true
		}
		err = ae.Cause
	}
	return false
}
