// Package errors defines the error kinds surfaced by ponder and maps them
// to process exit codes.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound is returned when a conversation id has no persisted payload.
	ErrNotFound = stderrors.New("conversation not found")
	// ErrCorruptData is returned when a persisted payload cannot be decoded.
	ErrCorruptData = stderrors.New("corrupt conversation data")
	// ErrIO wraps filesystem failures while reading or writing conversations
	// and auxiliary files.
	ErrIO = stderrors.New("i/o failure")
)

// ValidationError reports bad user input. It is raised before any remote
// call is made.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

// Validation builds a ValidationError with a formatted message.
func Validation(field, format string, args ...any) error {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// RemoteError is a non-success response from a remote operation other than
// a completion.
type RemoteError struct {
	Op     string
	Status int
	Reason string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s failed: %d %s", e.Op, e.Status, e.Reason)
}

// CompletionError is a failed completion request. Body holds the raw
// response for diagnosis and may be empty.
type CompletionError struct {
	Status int
	Reason string
	Body   string
}

func (e *CompletionError) Error() string {
	msg := fmt.Sprintf("completion failed: %d %s", e.Status, e.Reason)
	if e.Body != "" {
		msg += "\n" + e.Body
	}
	return msg
}

// StatusReason returns reason when set, otherwise the HTTP status text.
func StatusReason(status int, reason string) string {
	if reason != "" {
		return reason
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return "unknown status"
}

// IO wraps err as an ErrIO failure for the given operation and path.
func IO(op, path string, err error) error {
	return fmt.Errorf("%s %s: %w: %w", op, path, ErrIO, err)
}

// Exit codes returned by ExitCode.
const (
	ExitOK         = 0
	ExitFailure    = 1
	ExitValidation = 2
)

// ExitCode maps an error to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var ve *ValidationError
	if stderrors.As(err, &ve) {
		return ExitValidation
	}
	return ExitFailure
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return stderrors.As(err, &ve)
}
