// Package errs defines the stable error-kind taxonomy used across the
// session core, so callers can classify failures with errors.As instead
// of string matching.
package errs

import (
	"errors"
	"fmt"
)

// kindMarker is implemented by every typed error below so IsKind-style
// helpers can classify an error chain without listing every concrete type.
type kindMarker interface {
	error
	kind() string
}

// TransportError indicates the device transport (push, spawn, tunnel)
// failed before or during a session.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return format("transport error", e.Op, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }
func (e *TransportError) kind() string  { return "transport" }

// HandshakeError indicates the video/audio/control handshake failed:
// unexpected dummy byte, short metadata, unknown codec id, or a server
// version mismatch.
type HandshakeError struct {
	Op  string
	Err error
}

func (e *HandshakeError) Error() string { return format("handshake error", e.Op, e.Err) }
func (e *HandshakeError) Unwrap() error { return e.Err }
func (e *HandshakeError) kind() string  { return "handshake" }

// MalformedFrame indicates a wire value was structurally invalid: a
// payload length over the safety cap, a negative derived value, or an
// unknown message type.
type MalformedFrame struct {
	Op  string
	Err error
}

func (e *MalformedFrame) Error() string { return format("malformed frame", e.Op, e.Err) }
func (e *MalformedFrame) Unwrap() error { return e.Err }
func (e *MalformedFrame) kind() string  { return "malformed_frame" }

// TruncatedFrame indicates EOF was observed in the middle of a frame.
type TruncatedFrame struct {
	Op  string
	Err error
}

func (e *TruncatedFrame) Error() string { return format("truncated frame", e.Op, e.Err) }
func (e *TruncatedFrame) Unwrap() error { return e.Err }
func (e *TruncatedFrame) kind() string  { return "truncated_frame" }

// ConfigError indicates a session.Config failed validation: an
// out-of-range scid, an unrecognized codec or log level name, or a
// missing required field.
type ConfigError struct {
	Op  string
	Err error
}

func (e *ConfigError) Error() string { return format("invalid config", e.Op, e.Err) }
func (e *ConfigError) Unwrap() error { return e.Err }
func (e *ConfigError) kind() string  { return "config" }

// ChannelBroken indicates the control channel's inbound reader hit a
// parse error; every pending waiter completes with this error.
type ChannelBroken struct {
	Op  string
	Err error
}

func (e *ChannelBroken) Error() string { return format("control channel broken", e.Op, e.Err) }
func (e *ChannelBroken) Unwrap() error { return e.Err }
func (e *ChannelBroken) kind() string  { return "channel_broken" }

// SessionClosing indicates an operation was attempted while the
// coordinator is tearing down.
type SessionClosing struct{ Op string }

func (e *SessionClosing) Error() string { return format("session closing", e.Op, nil) }
func (e *SessionClosing) kind() string  { return "session_closing" }

// SessionClosed indicates an operation was attempted after the
// coordinator reached its terminal state.
type SessionClosed struct{ Op string }

func (e *SessionClosed) Error() string { return format("session closed", e.Op, nil) }
func (e *SessionClosed) kind() string  { return "session_closed" }

// TimeoutError indicates a bounded operation (handshake, shutdown grace)
// exceeded its deadline.
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string { return format("timeout", e.Op, e.Err) }
func (e *TimeoutError) Unwrap() error { return e.Err }
func (e *TimeoutError) kind() string  { return "timeout" }

func format(label, op string, cause error) string {
	if cause == nil {
		return fmt.Sprintf("%s: %s", label, op)
	}
	return fmt.Sprintf("%s: %s: %v", label, op, cause)
}

// Constructors. Callers are expected to further wrap the cause with
// context (e.g. via github.com/pkg/errors.Wrap) before it reaches here.

func NewTransportError(op string, cause error) error  { return &TransportError{Op: op, Err: cause} }
func NewHandshakeError(op string, cause error) error  { return &HandshakeError{Op: op, Err: cause} }
func NewMalformedFrame(op string, cause error) error  { return &MalformedFrame{Op: op, Err: cause} }
func NewTruncatedFrame(op string, cause error) error  { return &TruncatedFrame{Op: op, Err: cause} }
func NewConfigError(op string, cause error) error     { return &ConfigError{Op: op, Err: cause} }
func NewChannelBroken(op string, cause error) error   { return &ChannelBroken{Op: op, Err: cause} }
func NewSessionClosing(op string) error               { return &SessionClosing{Op: op} }
func NewSessionClosed(op string) error                { return &SessionClosed{Op: op} }
func NewTimeoutError(op string, cause error) error    { return &TimeoutError{Op: op, Err: cause} }

// Is* helpers classify an error chain by kind.

func IsTransport(err error) bool {
	var e *TransportError
	return errors.As(err, &e)
}

func IsHandshake(err error) bool {
	var e *HandshakeError
	return errors.As(err, &e)
}

func IsMalformedFrame(err error) bool {
	var e *MalformedFrame
	return errors.As(err, &e)
}

func IsTruncatedFrame(err error) bool {
	var e *TruncatedFrame
	return errors.As(err, &e)
}

func IsChannelBroken(err error) bool {
	var e *ChannelBroken
	return errors.As(err, &e)
}

func IsConfig(err error) bool {
	var e *ConfigError
	return errors.As(err, &e)
}

func IsSessionClosing(err error) bool {
	var e *SessionClosing
	return errors.As(err, &e)
}

func IsSessionClosed(err error) bool {
	var e *SessionClosed
	return errors.As(err, &e)
}

func IsTimeout(err error) bool {
	var e *TimeoutError
	return errors.As(err, &e)
}

// Kind returns the stable kind tag for any error produced by this
// package, or "" if err does not carry one. This backs the coordinator's
// single "terminated-because" value.
func Kind(err error) string {
	var km kindMarker
	if errors.As(err, &km) {
		return km.kind()
	}
	return ""
}
