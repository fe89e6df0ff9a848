// Package rpcerr defines the error taxonomy shared by every layer of hello-rpc.
//
// Every failed call surfaces exactly one kind:
//
//	ErrConnection        cannot establish the connection (refused, unreachable)
//	ErrWrite             I/O failure while writing the request frame
//	ErrRead              I/O failure or early close while reading the response frame
//	ErrMalformedMessage  bytes that do not decode to the expected message
//	ErrTimeout           connect, write or read exceeded its bound
//	ErrRemote            the peer answered with an explicit error response
//
// Callers test kinds with errors.Is. An *OpError also unwraps to its cause, so
// errors.Is(err, context.DeadlineExceeded) keeps working.
package rpcerr

import (
	"errors"
	"fmt"
)

var (
	ErrConnection       = errors.New("connection error")
	ErrWrite            = errors.New("write error")
	ErrRead             = errors.New("read error")
	ErrMalformedMessage = errors.New("malformed message")
	ErrTimeout          = errors.New("timeout")
	ErrRemote           = errors.New("remote error")
)

// OpError describes a failure of one step of an RPC exchange.
type OpError struct {
	Op   string // "dial", "write", "read", "decode", "call"
	Addr string // Peer address, empty when unknown
	Kind error  // One of the sentinels above
	Err  error  // Underlying cause, may be nil
}

func (e *OpError) Error() string {
	s := e.Op
	if e.Addr != "" {
		s += " " + e.Addr
	}
	s += ": " + e.Kind.Error()
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *OpError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Malformed wraps a decode failure into ErrMalformedMessage.
func Malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedMessage, fmt.Sprintf(format, args...))
}

// RemoteError is returned when the peer answered with an error response.
type RemoteError struct {
	Method  string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error calling %s: %s", e.Method, e.Message)
}

func (e *RemoteError) Is(target error) bool {
	return target == ErrRemote
}
