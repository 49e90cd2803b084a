// Package cmn provides the error-kind taxonomy shared by every muscore
// package (spec.md §7). Each kind gets its own type and an Is* predicate, the same
// shape as cmn/cos/err.go's ErrNotFound/IsErrNotFound.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package cmn

import (
	"fmt"

	"github.com/pkg/errors"
)

type (
	// ConfigurationError: bad model document, bad port declaration, bad
	// CLI flag. Fatal at startup.
	ConfigurationError struct{ msg string }

	// ProtocolError: wrong message type on a control port, unexpected
	// ClosePort, receive-twice on the same port/slot without an
	// intervening reuse_instance, send on an unknown port. Fatal.
	ProtocolError struct{ msg string }

	// NotConnectedError: receive on an unconnected port with no default.
	// Fatal unless the caller supplied a default.
	NotConnectedError struct{ port string }

	// ParallelUniverseError: inconsistent configuration overlays
	// received within one cycle. Fatal.
	ParallelUniverseError struct{ msg string }

	// PendingError: transient; the manager client retries RequestPeers
	// with backoff.
	PendingError struct{ name string }

	// TransportError: connection drop, serialization failure. Fatal to
	// the instance; wraps the underlying cause so that it is never
	// discarded (spec.md §7 propagation).
	TransportError struct {
		msg   string
		cause error
	}

	// TypeMismatchError: a parameter's stored type does not match the
	// caller's requested type. Surfaced to caller, not fatal.
	TypeMismatchError struct {
		name     string
		got      string
		expected string
	}

	// NoSuchParameterError: get_parameter found no matching key in
	// overlay or base settings (spec.md §4.4, §7).
	NoSuchParameterError struct{ name string }
)

func NewConfigurationError(format string, a ...any) *ConfigurationError {
	return &ConfigurationError{fmt.Sprintf(format, a...)}
}
func (e *ConfigurationError) Error() string { return "configuration error: " + e.msg }

func NewProtocolError(format string, a ...any) *ProtocolError {
	return &ProtocolError{fmt.Sprintf(format, a...)}
}
func (e *ProtocolError) Error() string { return "protocol error: " + e.msg }

func NewNotConnectedError(port string) *NotConnectedError {
	return &NotConnectedError{port: port}
}
func (e *NotConnectedError) Error() string { return fmt.Sprintf("port %q is not connected", e.port) }

func NewParallelUniverseError(format string, a ...any) *ParallelUniverseError {
	return &ParallelUniverseError{fmt.Sprintf(format, a...)}
}
func (e *ParallelUniverseError) Error() string { return "parallel universe error: " + e.msg }

func NewPendingError(name string) *PendingError { return &PendingError{name: name} }
func (e *PendingError) Error() string           { return fmt.Sprintf("%s: peers not yet registered", e.name) }

func NewTransportError(cause error, format string, a ...any) *TransportError {
	return &TransportError{msg: fmt.Sprintf(format, a...), cause: cause}
}
func (e *TransportError) Error() string {
	if e.cause == nil {
		return "transport error: " + e.msg
	}
	return fmt.Sprintf("transport error: %s: %v", e.msg, e.cause)
}
func (e *TransportError) Unwrap() error { return e.cause }

// WrapTransportError attaches format/a as context to cause without
// discarding it, using pkg/errors so the original call stack survives in
// %+v formatting for postmortem logs.
func WrapTransportError(cause error, format string, a ...any) *TransportError {
	return &TransportError{msg: fmt.Sprintf(format, a...), cause: errors.WithStack(cause)}
}

func NewTypeMismatchError(name, got, expected string) *TypeMismatchError {
	return &TypeMismatchError{name: name, got: got, expected: expected}
}
func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("parameter %q: cannot coerce %s to %s", e.name, e.got, e.expected)
}

func NewNoSuchParameterError(name string) *NoSuchParameterError {
	return &NoSuchParameterError{name: name}
}
func (e *NoSuchParameterError) Error() string { return fmt.Sprintf("no such parameter: %q", e.name) }
func IsNoSuchParameterError(err error) bool   { _, ok := err.(*NoSuchParameterError); return ok }

func IsConfigurationError(err error) bool    { _, ok := err.(*ConfigurationError); return ok }
func IsProtocolError(err error) bool         { _, ok := err.(*ProtocolError); return ok }
func IsNotConnectedError(err error) bool     { _, ok := err.(*NotConnectedError); return ok }
func IsParallelUniverseError(err error) bool { _, ok := err.(*ParallelUniverseError); return ok }
func IsPendingError(err error) bool          { _, ok := err.(*PendingError); return ok }
func IsTransportError(err error) bool        { _, ok := err.(*TransportError); return ok }
func IsTypeMismatchError(err error) bool     { _, ok := err.(*TypeMismatchError); return ok }
