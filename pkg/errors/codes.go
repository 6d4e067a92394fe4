package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a unique identifier for specific error conditions in apswitch.
type ErrorCode int

const (
	ErrCodeUnknown        ErrorCode = 1000
	ErrCodeInvalidProfile ErrorCode = 1001
	ErrCodeLockHeld       ErrorCode = 1002

	// Pre-flight
	ErrCodeMissingDependency ErrorCode = 2001
	ErrCodeInstallFailed     ErrorCode = 2002

	// Prepare
	ErrCodePrepareTimeout ErrorCode = 3001

	// Activate
	ErrCodeNotPrepared      ErrorCode = 4001
	ErrCodeActivationFailed ErrorCode = 4002

	// Service control
	ErrCodeStartFailed ErrorCode = 5001
	ErrCodeTimeout     ErrorCode = 5002
	ErrCodeStopFailed  ErrorCode = 5003
)

// exitCodes maps each error code to the process exit status so calling
// scripts can branch on the failure kind.
var exitCodes = map[ErrorCode]int{
	ErrCodeUnknown:           1,
	ErrCodeInvalidProfile:    2,
	ErrCodeMissingDependency: 3,
	ErrCodePrepareTimeout:    4,
	ErrCodeNotPrepared:       5,
	ErrCodeActivationFailed:  6,
	ErrCodeStartFailed:       7,
	ErrCodeTimeout:           8,
	ErrCodeStopFailed:        9,
	ErrCodeLockHeld:          10,
	ErrCodeInstallFailed:     11,
}

// Error is a custom error type that provides structured error information,
// including an error code, the operation being performed, and the underlying cause.
type Error struct {
	// Code is the specific error code.
	Code ErrorCode
	// Msg is a human-readable description of the error.
	Msg string
	// Operation describes the action being performed when the error occurred.
	Operation string
	// Daemon is the service the error concerns, if any.
	Daemon string
	// Err is the underlying error that caused this error, if any.
	Err error
}

// Error returns a formatted string representation of the error.
func (e *Error) Error() string {
	op := e.Operation
	if e.Daemon != "" {
		op = fmt.Sprintf("%s(%s)", e.Operation, e.Daemon)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %s (cause: %v)", e.Code, op, e.Msg, e.Err)
	}
	return fmt.Sprintf("[%d] %s: %s", e.Code, op, e.Msg)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new Error with the specified code, operation, message, and underlying error.
func New(code ErrorCode, op, msg string, err error) error {
	return &Error{
		Code:      code,
		Msg:       msg,
		Operation: op,
		Err:       err,
	}
}

// ForDaemon is New with the daemon field set.
func ForDaemon(code ErrorCode, op, daemon, msg string, err error) error {
	return &Error{
		Code:      code,
		Msg:       msg,
		Operation: op,
		Daemon:    daemon,
		Err:       err,
	}
}

// CodeOf returns the code of the outermost *Error in err's chain, or
// ErrCodeUnknown when there is none.
func CodeOf(err error) ErrorCode {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return ErrCodeUnknown
}

// HasCode reports whether any *Error in err's chain carries code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Code == code {
			return true
		}
		if joined, ok := err.(interface{ Unwrap() []error }); ok {
			for _, inner := range joined.Unwrap() {
				if HasCode(inner, code) {
					return true
				}
			}
			return false
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// ExitCode maps err to a process exit status. nil maps to 0.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if c, ok := exitCodes[CodeOf(err)]; ok {
		return c
	}
	return 1
}

// Personal.AI order the ending
