// Package mboxerr defines the error kinds shared by the index builder, the
// message store, the search engine and the mailbox session.
//
// Every error returned across a package boundary is an *Error whose Kind is
// one of the sentinels below, so callers can branch with errors.Is without
// knowing which component produced it.
package mboxerr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound reports a path, message part or attachment that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation reports an operation called in a state or with arguments
	// that violate its preconditions.
	ErrValidation = errors.New("validation")
	// ErrIO reports an underlying file I/O failure.
	ErrIO = errors.New("io")
	// ErrMboxFormat reports content that could not be parsed as MBOX or MIME.
	ErrMboxFormat = errors.New("mbox format")
	// ErrQuerySyntax reports a search query that could not be parsed.
	ErrQuerySyntax = errors.New("query syntax")
)

// Error is a classified error. Msg is the human readable detail and Err the
// optional underlying cause.
type Error struct {
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}
	return prefix(e.Kind) + msg
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func prefix(kind error) string {
	switch kind {
	case ErrNotFound:
		return "Not found: "
	case ErrValidation:
		return "Validation error: "
	case ErrIO:
		return "IO error: "
	case ErrMboxFormat:
		return "MBOX error: "
	case ErrQuerySyntax:
		return "Query syntax error: "
	default:
		return ""
	}
}

// NotFound returns an ErrNotFound error.
func NotFound(format string, args ...any) error {
	return &Error{Kind: ErrNotFound, Msg: fmt.Sprintf(format, args...)}
}

// Validation returns an ErrValidation error.
func Validation(format string, args ...any) error {
	return &Error{Kind: ErrValidation, Msg: fmt.Sprintf(format, args...)}
}

// QuerySyntax returns an ErrQuerySyntax error.
func QuerySyntax(format string, args ...any) error {
	return &Error{Kind: ErrQuerySyntax, Msg: fmt.Sprintf(format, args...)}
}

// MboxFormat returns an ErrMboxFormat error wrapping err (which may be nil).
func MboxFormat(err error, format string, args ...any) error {
	return &Error{Kind: ErrMboxFormat, Msg: fmt.Sprintf(format, args...), Err: err}
}

// IO returns an ErrIO error wrapping err.
func IO(err error, format string, args ...any) error {
	return &Error{Kind: ErrIO, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Kind reports which sentinel err carries, or nil when err is unclassified.
func Kind(err error) error {
	for _, k := range []error{ErrNotFound, ErrValidation, ErrIO, ErrMboxFormat, ErrQuerySyntax} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
