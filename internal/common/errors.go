package common

import "errors"

// AppError carries a machine-readable code and the HTTP status a handler
// should respond with. Service code wraps domain failures in one of these so
// the HTTP layer never has to switch on sentinel errors itself.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap exposes the wrapped cause to errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError builds an AppError around an optional cause.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// IsAppError reports whether err is, or wraps, an AppError.
func IsAppError(err error) bool {
	var target *AppError
	return errors.As(err, &target)
}
