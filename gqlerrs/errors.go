// Package gqlerrs defines the error kinds shared by every transport and
// protocol dialect in this module. Each kind wraps an underlying cause where
// one exists, so callers can use errors.As/errors.Is against the exported
// types below instead of matching on strings.
package gqlerrs

import "fmt"

// ConnectFailedError is returned when the initial WebSocket handshake or TLS
// negotiation fails. It never reaches an open connection.
type ConnectFailedError struct {
	Cause error
}

func (e *ConnectFailedError) Error() string {
	return fmt.Sprintf("connect failed: %v", e.Cause)
}

func (e *ConnectFailedError) Unwrap() error { return e.Cause }

// ConnectionFailedError means a previously open connection is no longer
// usable: remote close, I/O error, or frame decode failure at the adapter
// level.
type ConnectionFailedError struct {
	Cause error
}

func (e *ConnectionFailedError) Error() string {
	if e.Cause == nil {
		return "connection failed"
	}
	return fmt.Sprintf("connection failed: %v", e.Cause)
}

func (e *ConnectionFailedError) Unwrap() error { return e.Cause }

// ErrAlreadyConnected is returned by Connect when the transport state is not
// Disconnected.
type ErrAlreadyConnectedType struct{}

func (e *ErrAlreadyConnectedType) Error() string { return "transport already connected" }

var ErrAlreadyConnected = &ErrAlreadyConnectedType{}

// ErrClosedType is returned when a caller uses a transport after Close.
type ErrClosedType struct{}

func (e *ErrClosedType) Error() string { return "transport is closed" }

var ErrClosed = &ErrClosedType{}

// ProtocolError is a wire-level violation committed by the peer: an
// unrecognized message type, a missing id on an id-bearing message, a
// malformed payload, a binary frame where text was required, or invalid
// JSON.
type ProtocolError struct {
	Reason string
	Cause  error
}

func (e *ProtocolError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("protocol error: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("protocol error: %s", e.Reason)
}

func (e *ProtocolError) Unwrap() error { return e.Cause }

// ServerError is a connection-scope error: the server sent a
// connection_error (or, in AppSync, an id-less error), or our own transport
// declared the connection fatally broken (e.g. a keep-alive timeout).
type ServerError struct {
	Reason  string
	Payload []byte
}

func (e *ServerError) Error() string {
	if len(e.Payload) > 0 {
		return fmt.Sprintf("server error: %s: %s", e.Reason, e.Payload)
	}
	return fmt.Sprintf("server error: %s", e.Reason)
}

// GraphQLErrorEntry mirrors a single element of a GraphQL response's
// "errors" array.
type GraphQLErrorEntry struct {
	Message   string         `json:"message"`
	Locations []ErrorLoc     `json:"locations,omitempty"`
	Path      []interface{}  `json:"path,omitempty"`
	Extension map[string]any `json:"extensions,omitempty"`
}

// ErrorLoc is a line/column pair inside a GraphQL source document.
type ErrorLoc struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// QueryError is the per-operation error the server returns for one query
// id. It is scoped to that operation; the transport continues serving
// others.
type QueryError struct {
	QueryID int64
	Errors  []GraphQLErrorEntry
	Data    []byte // partial data, if any accompanied the error
}

func (e *QueryError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("query %d: error", e.QueryID)
	}
	return fmt.Sprintf("query %d: %s", e.QueryID, e.Errors[0].Message)
}
