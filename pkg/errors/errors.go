package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code for stable testing
type ErrorCode string

// Error codes for different error categories
const (
	// General errors
	ErrUnknown      ErrorCode = "UNKNOWN"
	ErrInternal     ErrorCode = "INTERNAL"
	ErrInvalidInput ErrorCode = "INVALID_INPUT"
	ErrLockTimeout  ErrorCode = "LOCK_TIMEOUT"

	// Configuration errors
	ErrConfigLoad  ErrorCode = "CONFIG_LOAD"
	ErrConfigValid ErrorCode = "CONFIG_INVALID"

	// Profile errors
	ErrProfileNotFound ErrorCode = "PROFILE_NOT_FOUND"
	ErrProfileExists   ErrorCode = "PROFILE_EXISTS"
	ErrTargetNotFound  ErrorCode = "TARGET_NOT_FOUND"

	// Reconciliation errors
	ErrConflict         ErrorCode = "CONFLICT"
	ErrAlreadyInstalled ErrorCode = "ALREADY_INSTALLED"
	ErrNotInstalled     ErrorCode = "NOT_INSTALLED"
	ErrCorruptManifest  ErrorCode = "CORRUPT_MANIFEST"

	// Store and snapshot errors
	ErrBlobNotFound     ErrorCode = "BLOB_NOT_FOUND"
	ErrHashMismatch     ErrorCode = "HASH_MISMATCH"
	ErrSnapshotNotFound ErrorCode = "SNAPSHOT_NOT_FOUND"
	ErrIndex            ErrorCode = "INDEX"

	// History errors
	ErrOperationNotFound ErrorCode = "OPERATION_NOT_FOUND"
	ErrNotUndoable       ErrorCode = "NOT_UNDOABLE"

	// FileSystem errors
	ErrFileNotFound    ErrorCode = "FILE_NOT_FOUND"
	ErrFileAccess      ErrorCode = "FILE_ACCESS"
	ErrFileWrite       ErrorCode = "FILE_WRITE"
	ErrSymlinkRejected ErrorCode = "SYMLINK_REJECTED"
	ErrDirCreate       ErrorCode = "DIR_CREATE"
)

// Error represents a structured error with code and details
type Error struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Wrapped error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *Error) Unwrap() error {
	return e.Wrapped
}

// Is implements errors.Is interface
func (e *Error) Is(target error) bool {
	var targetErr *Error
	if errors.As(target, &targetErr) {
		return e.Code == targetErr.Code
	}
	return false
}

// New creates a new Error with the given code and message
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// Newf creates a new Error with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
	}
}

// Wrap wraps an existing error with an Error
func Wrap(err error, code ErrorCode, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// Wrapf wraps an existing error with a formatted message
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// WithDetail adds a detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// IsErrorCode checks if an error has a specific error code
func IsErrorCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetErrorCode returns the error code from an error, or ErrUnknown if not an Error
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrUnknown
}

// Message returns the error text without code prefixes, for output that
// shows the code separately. Wrapped causes are appended after a colon.
func Message(err error) string {
	if err == nil {
		return ""
	}
	e, ok := err.(*Error)
	if !ok {
		return err.Error()
	}
	if e.Wrapped != nil {
		return e.Message + ": " + Message(e.Wrapped)
	}
	return e.Message
}

// GetErrorDetails returns the details from an error, or nil if not an Error
func GetErrorDetails(err error) map[string]interface{} {
	var e *Error
	if errors.As(err, &e) {
		return e.Details
	}
	return nil
}

// exitCodes maps error codes to process exit statuses. Codes not listed
// exit with 1.
var exitCodes = map[ErrorCode]int{
	ErrProfileNotFound:   2,
	ErrTargetNotFound:    3,
	ErrConflict:          4,
	ErrInvalidInput:      5,
	ErrAlreadyInstalled:  6,
	ErrNotInstalled:      7,
	ErrCorruptManifest:   8,
	ErrSnapshotNotFound:  12,
	ErrConfigLoad:        13,
	ErrConfigValid:       14,
	ErrOperationNotFound: 15,
	ErrNotUndoable:       16,
	ErrHashMismatch:      20,
	ErrLockTimeout:       21,
}

// ExitCode returns the process exit status for err. A nil error exits 0.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if code, ok := exitCodes[GetErrorCode(err)]; ok {
		return code
	}
	return 1
}
