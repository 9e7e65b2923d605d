package npp

import (
	"errors"
	"fmt"
)

// Error classes shared by the codec, hashing and submission code.
var (
	// ErrFormat marks malformed binary or text input.
	ErrFormat = errors.New("malformed input")
	// ErrIntegrity marks hash mismatches and failed gold checks.
	ErrIntegrity = errors.New("integrity check failed")
	// ErrNotFound marks unknown mappacks, highscoreables or players.
	ErrNotFound = errors.New("not found")
	// ErrState marks missing or out-of-order intermediate state.
	ErrState = errors.New("unexpected state")
	// ErrTransient marks failures of external collaborators that may succeed on retry.
	ErrTransient = errors.New("transient failure")
)

// OpError attaches the failing operation to one of the error classes.
type OpError struct {
	Op   string
	Kind error
	Err  error
}

func (e *OpError) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Kind.Error()
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *OpError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Errorf builds an OpError with a formatted cause.
func Errorf(op string, kind error, format string, args ...any) error {
	return &OpError{Op: op, Kind: kind, Err: fmt.Errorf(format, args...)}
}
