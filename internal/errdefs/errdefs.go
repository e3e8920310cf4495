// Package errdefs defines the error kinds returned by filepack operations.
//
// Callers match kinds with errors.Is:
//
//	if errors.Is(err, errdefs.ErrNotFound) { ... }
package errdefs

import (
	"errors"
	"fmt"
	"io/fs"
)

var (
	// ErrNotFound means the referenced file or archive does not exist.
	ErrNotFound = errors.New("not found")
	// ErrIO means a storage operation failed for a reason other than nonexistence.
	ErrIO = errors.New("i/o failure")
	// ErrCorruptArchive means the archive exists but cannot be parsed or extracted safely.
	ErrCorruptArchive = errors.New("corrupt archive")
	// ErrMismatch means an archive does not match its source file.
	ErrMismatch = errors.New("archive mismatch")
	// ErrUnknownEncoding means a text encoding name could not be resolved.
	ErrUnknownEncoding = errors.New("unknown encoding")
)

// Error records a failed operation on a path.
type Error struct {
	Op   string // "load", "save", "pack", "unpack", ...
	Path string
	Kind error // one of the Err* sentinels
	Err  error // underlying cause, may be nil
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Kind)
	}
	return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Path, e.Kind, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the error's kind.
func (e *Error) Is(target error) bool { return e.Kind == target }

// New returns an *Error of the given kind.
func New(op, path string, kind, cause error) *Error {
	return &Error{Op: op, Path: path, Kind: kind, Err: cause}
}

// FromOS classifies an error from the os or io/fs packages.
// Nonexistence maps to ErrNotFound; anything else to ErrIO.
func FromOS(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	if errors.Is(err, fs.ErrNotExist) {
		return New(op, path, ErrNotFound, err)
	}
	return New(op, path, ErrIO, err)
}

// IsNotFound reports whether err is of kind ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
