// Package identity talks to the hosted identity provider.
//
// Server side it verifies ID tokens (JWTs) and looks up user records. Client side it keeps
// the current sign-in session and hands out freshly refreshed ID tokens.
package identity

import (
	"errors"
	"fmt"
)

// Provider error codes. They are surfaced only by the dedicated token-check endpoint.
const (
	CodeArgumentError     = "auth/argument-error"
	CodeTokenExpired      = "auth/id-token-expired"
	CodeInvalidToken      = "auth/invalid-id-token"
	CodeUserNotFound      = "auth/user-not-found"
	CodeUserDisabled      = "auth/user-disabled"
	CodeInvalidCredential = "auth/invalid-credential"
	CodeNoSession         = "auth/no-current-user"
	CodeUnknown           = "unknown"
)

// Error is a classified identity provider failure.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// ErrorCode extracts the provider code from err, or CodeUnknown.
func ErrorCode(err error) string {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Code
	}
	return CodeUnknown
}

// IsCode reports whether err carries the given provider code.
func IsCode(err error, code string) bool {
	return err != nil && ErrorCode(err) == code
}
