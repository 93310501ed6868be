package sfs

import (
	"errors"
	"fmt"
)

// DriverError is the error type every operation in this module returns.
// It mirrors the teacher's two-layer design (a root DriverError wrapper plus
// a small set of named sentinel errors): callers can compare against the
// sentinels below with errors.Is, and call sites can attach context with
// WithMessage or wrap an underlying cause with Wrap without losing that
// comparability.
type DriverError interface {
	error
	WithMessage(message string) DriverError
	Wrap(err error) DriverError
}

// sentinelError is a bare named error, the leaves callers compare against.
type sentinelError string

func (e sentinelError) Error() string {
	return string(e)
}

func (e sentinelError) WithMessage(message string) DriverError {
	return &wrappedError{message: fmt.Sprintf("%s: %s", string(e), message), cause: e}
}

func (e sentinelError) Wrap(err error) DriverError {
	return &wrappedError{message: fmt.Sprintf("%s: %s", string(e), err.Error()), cause: err, kind: e}
}

// wrappedError carries a custom message while remembering the error it
// originated from, so errors.Is still finds the original sentinel.
type wrappedError struct {
	message string
	cause   error
	kind    error // the DriverError Wrap was called on, if any
}

func (e *wrappedError) Error() string {
	return e.message
}

func (e *wrappedError) WithMessage(message string) DriverError {
	return &wrappedError{message: fmt.Sprintf("%s: %s", e.message, message), cause: e}
}

func (e *wrappedError) Wrap(err error) DriverError {
	return &wrappedError{message: fmt.Sprintf("%s: %s", e.message, err.Error()), cause: err, kind: e}
}

func (e *wrappedError) Unwrap() error {
	return e.cause
}

// Is lets errors.Is match the DriverError a wrapped cause was attached to.
func (e *wrappedError) Is(target error) bool {
	return e.kind != nil && errors.Is(e.kind, target)
}

// Sentinel errors returned by the FS operation layer (spec.md §7).
const (
	// ErrNotFound means a path does not resolve to any inode.
	ErrNotFound = sentinelError("no such file or directory")
	// ErrNameTooLong means a path exceeded PATH_MAX.
	ErrNameTooLong = sentinelError("file name too long")
	// ErrNoSpace means no free inode or no free data block was available.
	ErrNoSpace = sentinelError("no space left on device")
	// ErrIsDirectory means an operation that requires a regular file was
	// given a directory.
	ErrIsDirectory = sentinelError("is a directory")
	// ErrNotDirectory means an operation that requires a directory was given
	// a regular file.
	ErrNotDirectory = sentinelError("not a directory")
	// ErrAccessDenied means a required permission bit was clear, or the
	// operation targeted the root inode in a way that's always refused.
	ErrAccessDenied = sentinelError("permission denied")
	// ErrIO means a block read or write returned a non-positive byte count.
	ErrIO = sentinelError("input/output error")
)
