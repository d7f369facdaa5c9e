package gcp

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so callers can report them distinctly.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindAuth
	KindIO
	KindParse
	KindAPI
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuth:
		return "AuthError"
	case KindIO:
		return "IOError"
	case KindParse:
		return "ParseError"
	case KindAPI:
		return "ApiError"
	default:
		return "Error"
	}
}

// Error is returned by the credential loading, schema reading and API calls
// of this package. Op names the step that failed.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
