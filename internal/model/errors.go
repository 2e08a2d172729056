package model

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// ErrorKind classifies pipeline failures.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindNetwork is a transport failure or an unexpected HTTP status.
	KindNetwork
	// KindNotFound is an HTTP 404 for the requested resource.
	KindNotFound
	// KindParse means the page did not contain the expected structure.
	KindParse
	// KindFilesystem covers directory creation, stat and rename failures.
	KindFilesystem
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network error"
	case KindNotFound:
		return "not found"
	case KindParse:
		return "parse error"
	case KindFilesystem:
		return "filesystem error"
	default:
		return "error"
	}
}

// Error is a classified failure from one pipeline step.
type Error struct {
	Kind ErrorKind
	Op   string
	URL  string
	Err  error

	// Detail is diagnostic context, such as the page body that failed to
	// parse. It is not part of the error message.
	Detail string
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.URL != "" {
		msg += fmt.Sprintf(" (%s)", e.URL)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err with a kind and operation name. A nil err stays nil.
func NewError(kind ErrorKind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
// Unclassified file system errors report KindFilesystem.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var pe *fs.PathError
	var le *os.LinkError
	if errors.As(err, &pe) || errors.As(err, &le) {
		return KindFilesystem
	}
	return KindUnknown
}
