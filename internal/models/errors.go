package models

import (
	"fmt"
)

// ValidationError rejects malformed input before any network activity.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports an id that does not exist in a store.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// NoActiveConnectionError is returned when an operation names a connection
// that is not the live session. Requests against a stale id fail fast here,
// without touching the network.
type NoActiveConnectionError struct {
	Requested string
	Active    string
}

func (e *NoActiveConnectionError) Error() string {
	if e.Active == "" {
		return fmt.Sprintf("no active connection (requested %q)", e.Requested)
	}
	return fmt.Sprintf("connection %q is not active (active: %q)", e.Requested, e.Active)
}

// ConnFailureKind classifies why a dial failed so the UI can phrase it.
type ConnFailureKind string

const (
	ConnFailureAuth        ConnFailureKind = "auth"
	ConnFailureUnreachable ConnFailureKind = "unreachable"
	ConnFailureTLS         ConnFailureKind = "tls"
	ConnFailureTimeout     ConnFailureKind = "timeout"
	ConnFailureDatabase    ConnFailureKind = "database"
	ConnFailureUnknown     ConnFailureKind = "unknown"
)

// ConnectionError wraps a failed connection attempt with its classification.
type ConnectionError struct {
	Kind ConnFailureKind
	Host string
	Port int
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect %s:%d: %s: %v", e.Host, e.Port, e.Kind, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// QueryError carries a failed statement's server diagnostics verbatim. The
// message is never rephrased; Position is the 1-based offset into the SQL
// when the server reported one.
type QueryError struct {
	Severity  string `json:"severity,omitempty"`
	Code      string `json:"code,omitempty"`
	Message   string `json:"message"`
	Detail    string `json:"detail,omitempty"`
	Hint      string `json:"hint,omitempty"`
	Position  int    `json:"position,omitempty"`
	ElapsedMS int64  `json:"elapsedMs"`
}

func (e *QueryError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (SQLSTATE %s)", e.Message, e.Code)
	}
	return e.Message
}

// ExportError reports a failed export. The partial output file is left in
// place; Rows and Bytes say how far it got.
type ExportError struct {
	Path  string
	Rows  int64
	Bytes int64
	Err   error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export to %s incomplete after %d rows (%d bytes): %v", e.Path, e.Rows, e.Bytes, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }
