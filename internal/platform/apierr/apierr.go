package apierr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
	ErrConflict   = errors.New("conflict")
	// ErrBusy means the assistant is still working on an earlier turn in the thread.
	ErrBusy = errors.New("assistant is busy")
	// ErrRunActive is the upstream refusal to start a run while another one is active.
	ErrRunActive = errors.New("thread already has an active run")
)

// Error is an HTTP-facing error with a stable code.
type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	return fmt.Sprintf("api error (%d)", e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func Validation(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, strings.TrimSpace(msg))
}

func NotFound(msg string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, strings.TrimSpace(msg))
}

func Conflict(msg string) error {
	return fmt.Errorf("%w: %s", ErrConflict, strings.TrimSpace(msg))
}

func Forbidden(msg string) error {
	return fmt.Errorf("%w: %s", ErrForbidden, strings.TrimSpace(msg))
}
