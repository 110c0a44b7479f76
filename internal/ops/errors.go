package ops

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the Executor wraps exactly one of these.
var (
	ErrInvalidPath   = errors.New("invalid path")
	ErrAlreadyExists = errors.New("already exists")
	ErrIO            = errors.New("i/o error")
)

// OpError records a failed operation, the path it was applied to and the
// kind of failure.
type OpError struct {
	Op   string
	Path string
	Kind error
	Err  error
}

func (e *OpError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Kind)
	}
	return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Path, e.Kind, e.Err)
}

// Unwrap lets errors.Is match both the kind sentinel and the cause.
func (e *OpError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func opErr(op, path string, kind, err error) error {
	return &OpError{Op: op, Path: path, Kind: kind, Err: err}
}
