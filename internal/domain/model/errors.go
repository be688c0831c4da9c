package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures of the telemetry client.
type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindAuth
	KindTimeout
	KindNetwork
	KindParse
	KindAPI
	KindAborted
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindTimeout:
		return "timeout"
	case KindNetwork:
		return "network"
	case KindParse:
		return "parse"
	case KindAPI:
		return "api"
	case KindAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Error is the single error type crossing the client boundary.
type Error struct {
	Kind ErrorKind
	Op   string
	// Status is the HTTP status for API and auth errors, zero otherwise.
	Status  int
	Message string
	Err     error
}

// Sentinels for errors.Is; they match any *Error of the same kind.
var (
	ErrValidation = &Error{Kind: KindValidation}
	ErrAuth       = &Error{Kind: KindAuth}
	ErrTimeout    = &Error{Kind: KindTimeout}
	ErrNetwork    = &Error{Kind: KindNetwork}
	ErrParse      = &Error{Kind: KindParse}
	ErrAPI        = &Error{Kind: KindAPI}
	ErrAborted    = &Error{Kind: KindAborted}
)

func (e *Error) Error() string {
	msg := e.Kind.String() + " error"
	if e.Op != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.Op)
	}
	if e.Status != 0 {
		msg = fmt.Sprintf("%s status=%d", msg, e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on kind so callers can test against the sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf extracts the kind of err, or zero if err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// Fallbackable reports whether the dispatcher may answer err with synthetic data.
func Fallbackable(err error) bool {
	switch KindOf(err) {
	case KindNetwork, KindTimeout, KindAPI:
		return true
	default:
		return false
	}
}
