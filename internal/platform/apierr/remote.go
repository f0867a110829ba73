package apierr

import (
	"fmt"
	"strings"
	"time"
)

// RemoteServiceError is any non-success answer from the assistant service or the database.
type RemoteServiceError struct {
	Service string
	Status  int
	Code    string
	Message string
	// Err classifies the failure (e.g. ErrRunActive) or carries the transport error.
	Err error
}

func (e *RemoteServiceError) Error() string {
	var b strings.Builder
	b.WriteString(e.Service)
	if e.Status != 0 {
		fmt.Fprintf(&b, " http %d", e.Status)
	}
	if e.Code != "" {
		b.WriteString(" ")
		b.WriteString(e.Code)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	} else if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *RemoteServiceError) Unwrap() error { return e.Err }

// RunFailedError is a run that ended failed or cancelled.
type RunFailedError struct {
	RunID   string
	Status  string
	Code    string
	Message string
}

func (e *RunFailedError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Code
	}
	if msg == "" {
		return fmt.Sprintf("run %s ended %s", e.RunID, e.Status)
	}
	return fmt.Sprintf("run %s ended %s: %s", e.RunID, e.Status, msg)
}

// RunTimeoutError is a run that was still non-terminal when the poll budget ran out.
type RunTimeoutError struct {
	RunID      string
	Attempts   int
	Elapsed    time.Duration
	LastStatus string
}

func (e *RunTimeoutError) Error() string {
	return fmt.Sprintf("run %s still %s after %d polls (%s)", e.RunID, e.LastStatus, e.Attempts, e.Elapsed.Round(time.Millisecond))
}

// EmptyReplyError is a completed run with no extractable text.
type EmptyReplyError struct {
	RunID string
}

func (e *EmptyReplyError) Error() string {
	return fmt.Sprintf("run %s completed without a text reply", e.RunID)
}
