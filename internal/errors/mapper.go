// internal/errors/mapper.go
package errors

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Error kinds. Every error produced by the client wraps exactly one of these,
// so callers branch with errors.Is instead of string matching.
var (
	// ErrAuthMissing: no credential at open time; no connection is attempted.
	ErrAuthMissing = errors.New("no credential available")
	// ErrAuthRejected: the server refused the credential. Terminal for the handle.
	ErrAuthRejected = errors.New("credential rejected")
	// ErrTransport: network-level failure of the live connection. Recovered by reconnect.
	ErrTransport = errors.New("transport failure")
	// ErrProtocolParse: an inbound frame could not be decoded. Dropped and logged.
	ErrProtocolParse = errors.New("malformed frame")
	// ErrFetch: a REST read failed.
	ErrFetch = errors.New("fetch failed")
	// ErrSend: a REST write or a publish failed.
	ErrSend = errors.New("send failed")

	ErrNotConnected = errors.New("not connected")
	ErrClosed       = errors.New("handle closed")
	ErrNotFound     = errors.New("not found")
)

// OpError ties an error kind to the operation that produced it.
type OpError struct {
	Op   string
	Kind error
	Err  error
}

func (e *OpError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *OpError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Wrap tags err with kind for operation op. A nil err stays nil.
func Wrap(kind error, op string, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Kind: kind, Err: err}
}

// Fetch tags a failed REST read.
func Fetch(op string, err error) error { return Wrap(ErrFetch, op, err) }

// Send tags a failed REST write or publish.
func Send(op string, err error) error { return Wrap(ErrSend, op, err) }

// Transport tags a live-connection failure.
func Transport(op string, err error) error { return Wrap(ErrTransport, op, err) }

// Parse tags an undecodable inbound payload.
func Parse(op string, err error) error { return Wrap(ErrProtocolParse, op, err) }

// Rejected builds a terminal authentication error carrying the server's reason.
func Rejected(reason string) error {
	return &OpError{Op: "connect", Kind: ErrAuthRejected, Err: errors.New(reason)}
}

// Map converts client errors into gRPC-friendly status errors.
// Keeps the status server clean by centralizing error mapping.
func Map(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return status.Error(codes.NotFound, err.Error())

	case errors.Is(err, ErrAuthMissing), errors.Is(err, ErrAuthRejected):
		return status.Error(codes.Unauthenticated, err.Error())

	case errors.Is(err, ErrTransport), errors.Is(err, ErrNotConnected), errors.Is(err, ErrClosed):
		return status.Error(codes.Unavailable, err.Error())

	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "request timed out")

	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request was canceled")

	default:
		// fallback → bubble up error message for debugging
		return status.Error(codes.Internal, err.Error())
	}
}

// InvalidArgument creates a gRPC InvalidArgument error.
func InvalidArgument(msg string) error {
	return status.Error(codes.InvalidArgument, msg)
}
