package updater

import (
	"errors"
)

// Code classifies an updater failure. The API maps it to a status code.
type Code string

const (
	CodeInvalidState   Code = "INVALID_STATE"
	CodeCheckFailed    Code = "CHECK_FAILED"
	CodeNotFound       Code = "NOT_FOUND"
	CodeNoUpdate       Code = "NO_UPDATE"
	CodeApplyFailed    Code = "APPLY_FAILED"
	CodeBackupFailed   Code = "BACKUP_FAILED"
	CodeRollbackFailed Code = "ROLLBACK_FAILED"
	CodeNoBackup       Code = "NO_BACKUP"
	CodeDisabled       Code = "DISABLED"
)

// Error is returned by every Service operation that fails.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	s := string(e.Code) + ": " + e.Message
	if e.Cause != nil {
		s += ": " + e.Cause.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Cause }

func newError(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf returns the Code carried by err, or "" for foreign errors.
func CodeOf(err error) Code {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Code
}
