// Package dispatcherr defines the error kinds dispatchers raise and
// propagate: TransportError and PeerError are fatal to the connection,
// ServiceError flows through the normal response path, CapacityError
// signals temporary back-off, and ProtocolError is a connection-fatal
// framing violation.
package dispatcherr

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
)

// TransportError wraps an error the underlying I/O or codec produced.
// It is fatal to the connection.
type TransportError struct {
	Cause error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("dispatcherr: transport: %s", e.Cause)
}

// Unwrap supports errors.Is/errors.As against the wrapped cause.
func (e *TransportError) Unwrap() error { return e.Cause }

// WrapTransport wraps cause as a *TransportError. Returns nil if cause
// is nil.
func WrapTransport(cause error) error {
	if cause == nil {
		return nil
	}
	return &TransportError{Cause: cause}
}

// PeerError records a Frame::Error observed from the peer. It is fatal
// to the connection, treated as a broken-pipe condition.
type PeerError struct {
	Cause error
}

func (e *PeerError) Error() string {
	if e.Cause == nil {
		return "dispatcherr: peer reported an error"
	}
	return fmt.Sprintf("dispatcherr: peer reported an error: %s", e.Cause)
}

// Unwrap supports errors.Is/errors.As against the wrapped cause.
func (e *PeerError) Unwrap() error { return e.Cause }

// WrapPeer wraps cause as a *PeerError. Returns nil if cause is nil.
func WrapPeer(cause error) error {
	if cause == nil {
		return nil
	}
	return &PeerError{Cause: cause}
}

// ServiceError wraps a failure a Service's future resolved to. It is not
// fatal to the connection: it is surfaced to the peer as a response
// frame (pipeline) or to the caller as a failed slot (multiplex), not as
// a dispatcher-ending condition.
//
// Code carries a conventional RPC status code, letting application code
// project a domain failure onto the vocabulary google.golang.org/grpc
// already defines, without this module depending on gRPC transport
// itself.
type ServiceError struct {
	Code  codes.Code
	Cause error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("dispatcherr: service: %s: %s", e.Code, e.Cause)
}

// Unwrap supports errors.Is/errors.As against the wrapped cause.
func (e *ServiceError) Unwrap() error { return e.Cause }

// NewServiceError builds a ServiceError with an explicit status code.
// If cause is nil, nil is returned.
func NewServiceError(code codes.Code, cause error) error {
	if cause == nil {
		return nil
	}
	return &ServiceError{Code: code, Cause: cause}
}

// WrapService wraps cause as a ServiceError with codes.Unknown, for
// callers that have no more specific code to report. Returns nil if
// cause is nil.
func WrapService(cause error) error {
	return NewServiceError(codes.Unknown, cause)
}

// CapacityError is returned when the in-flight queue rejects a push
// because it is at capacity. Dispatchers treat it as a signal to pause
// reading, not as an error frame to send to the peer.
type CapacityError struct {
	Capacity int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("dispatcherr: in-flight queue at capacity (%d)", e.Capacity)
}

// ProtocolError records a framing-level violation observed locally, such
// as a multiplex response carrying an unknown RequestId. It is
// connection-fatal, surfaced identically to TransportError.
type ProtocolError struct {
	Cause error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("dispatcherr: protocol: %s", e.Cause)
}

// Unwrap supports errors.Is/errors.As against the wrapped cause.
func (e *ProtocolError) Unwrap() error { return e.Cause }

// WrapProtocol wraps cause as a *ProtocolError. Returns nil if cause is
// nil.
func WrapProtocol(cause error) error {
	if cause == nil {
		return nil
	}
	return &ProtocolError{Cause: cause}
}

// ErrConnectionClosed is delivered to any outstanding caller-visible
// future/slot when a dispatcher shuts down (normally or on a fatal
// error) with work still pending.
var ErrConnectionClosed = errors.New("dispatcherr: connection closed")

// IsFatal reports whether err should end the dispatcher (TransportError,
// PeerError, ProtocolError) rather than flow through the normal
// response path (ServiceError, CapacityError).
func IsFatal(err error) bool {
	var (
		transportErr *TransportError
		peerErr      *PeerError
		protocolErr  *ProtocolError
	)
	return errors.As(err, &transportErr) ||
		errors.As(err, &peerErr) ||
		errors.As(err, &protocolErr)
}
