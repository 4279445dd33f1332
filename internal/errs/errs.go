// Package errs tags errors returned at the boundary of external collaborators
// (archive loaders, the imager index, the coordinate services) with a Kind so
// callers can branch on the failure class instead of matching message text.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	KindUnknown Kind = iota
	// KindMissing: no archive or frame file exists for the request.
	KindMissing
	// KindMalformed: the file exists but could not be parsed.
	KindMalformed
	// KindUnavailable: an external service failed to answer.
	KindUnavailable
	// KindFatal: bad input or configuration; retrying will not help.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindMissing:
		return "missing"
	case KindMalformed:
		return "malformed"
	case KindUnavailable:
		return "unavailable"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error carries a Kind, the failing operation and, when relevant, a path or URL.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// E builds an *Error.
func E(kind Kind, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// Missingf reports an absent file or record.
func Missingf(op, path, format string, args ...interface{}) *Error {
	return E(KindMissing, op, path, fmt.Errorf(format, args...))
}

// Malformed wraps a parse failure.
func Malformed(op, path string, err error) *Error {
	return E(KindMalformed, op, path, err)
}

// Unavailable wraps an external service failure.
func Unavailable(op, path string, err error) *Error {
	return E(KindUnavailable, op, path, err)
}

// Fatalf reports an unrecoverable input or configuration problem.
func Fatalf(op, format string, args ...interface{}) *Error {
	return E(KindFatal, op, "", fmt.Errorf(format, args...))
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Skippable reports whether a unit that failed with err can be skipped
// without stopping the batch.
func Skippable(err error) bool {
	switch KindOf(err) {
	case KindMissing, KindMalformed:
		return true
	default:
		return false
	}
}
