package service

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrPaymentRequired    = errors.New("payment required")
	ErrInvalidInput       = errors.New("invalid input")
	ErrConflict           = errors.New("conflict")
	ErrVerificationFailed = errors.New("payment verification failed")
	ErrUpstream           = errors.New("upstream failure")
)

// Error carries a readable message for the client while unwrapping to one of the
// kinds above, so callers branch with errors.Is.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.Error()
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func newError(kind error, format string, args ...interface{}) error {
	message := strings.TrimSpace(fmt.Sprintf(format, args...))
	return &Error{Kind: kind, Message: message}
}

func wrapError(kind error, err error, format string, args ...interface{}) error {
	message := strings.TrimSpace(fmt.Sprintf(format, args...))
	return &Error{Kind: kind, Message: message, Err: err}
}

// Message returns the client-facing text of err, or fallback when err is not a
// service error.
func Message(err error, fallback string) string {
	var serviceErr *Error
	if errors.As(err, &serviceErr) && serviceErr.Message != "" {
		return serviceErr.Message
	}
	return fallback
}

// notFoundOr translates gorm's missing-record error into ErrNotFound and passes every
// other error through unchanged.
func notFoundOr(err error, format string, args ...interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return newError(ErrNotFound, format, args...)
	}
	return err
}
