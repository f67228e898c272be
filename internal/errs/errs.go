// Package errs defines the closed error taxonomy for gsd commands.
//
// Every failure a command surfaces to the user is classified with one of the
// tags below. The tag, not ad hoc string matching, decides the process exit
// code and the remediation suggestion printed alongside the message.
package errs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"syscall"

	"github.com/gsdhq/gsd/pkg/exitcode"
)

// Tag classifies a command failure.
type Tag int

const (
	TagUnknown Tag = iota
	TagPermissionDenied
	TagNotFound
	TagDiskFull
	TagPathTraversal
	TagCorruptedState
	TagNetworkError
	TagVersionNotFound
	TagInterrupted
)

// String returns the tag name used in logs and JSON output.
func (t Tag) String() string {
	switch t {
	case TagPermissionDenied:
		return "permission_denied"
	case TagNotFound:
		return "not_found"
	case TagDiskFull:
		return "disk_full"
	case TagPathTraversal:
		return "path_traversal"
	case TagCorruptedState:
		return "corrupted_state"
	case TagNetworkError:
		return "network_error"
	case TagVersionNotFound:
		return "version_not_found"
	case TagInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// remedy holds the exit code and suggestion for one tag. The table is the
// single place the taxonomy maps to process behavior.
type remedy struct {
	exitCode   int
	suggestion string
}

var remedies = map[Tag]remedy{
	TagPermissionDenied: {exitcode.PermissionError, "try a --local install, or adjust permissions on the target directory"},
	TagNotFound:         {exitcode.GeneralError, ""},
	TagDiskFull:         {exitcode.GeneralError, "free up disk space and retry"},
	TagPathTraversal:    {exitcode.PathTraversal, "the resolved path escapes the allowed base directory; check --config-dir"},
	TagCorruptedState:   {exitcode.GeneralError, "run 'gsd repair' to restore a consistent installation"},
	TagNetworkError:     {exitcode.GeneralError, "check your network connection and retry"},
	TagVersionNotFound:  {exitcode.GeneralError, "run 'gsd update' without --version to get the latest release"},
	TagInterrupted:      {exitcode.Interrupted, ""},
	TagUnknown:          {exitcode.GeneralError, ""},
}

// Error is a tagged command error.
type Error struct {
	Tag Tag
	Op  string // short operation description, e.g. "install", "read manifest"
	Err error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a tagged error.
func New(tag Tag, op string, err error) *Error {
	return &Error{Tag: tag, Op: op, Err: err}
}

// Newf builds a tagged error from a format string.
func Newf(tag Tag, op, format string, args ...interface{}) *Error {
	return &Error{Tag: tag, Op: op, Err: fmt.Errorf(format, args...)}
}

// TagOf extracts the tag from err, walking the wrap chain. Untagged errors
// report TagUnknown.
func TagOf(err error) Tag {
	var te *Error
	if errors.As(err, &te) {
		return te.Tag
	}
	return TagUnknown
}

// ExitCode returns the process exit code for err.
func ExitCode(err error) int {
	if err == nil {
		return exitcode.Success
	}
	return remedies[TagOf(err)].exitCode
}

// Suggestion returns the remediation hint for err, empty when there is none.
func Suggestion(err error) string {
	return remedies[TagOf(err)].suggestion
}

// Classify wraps a raw filesystem or I/O error with the matching tag so exit
// codes stay faithful even when the failure originates deep in the stdlib.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var te *Error
	if errors.As(err, &te) {
		return err
	}
	switch {
	case errors.Is(err, fs.ErrPermission) || errors.Is(err, os.ErrPermission):
		return New(TagPermissionDenied, op, err)
	case errors.Is(err, fs.ErrNotExist) || errors.Is(err, os.ErrNotExist):
		return New(TagNotFound, op, err)
	case errors.Is(err, syscall.ENOSPC):
		return New(TagDiskFull, op, err)
	default:
		return New(TagUnknown, op, err)
	}
}
