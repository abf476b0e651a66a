package ssh

import (
	"errors"
	"strings"
)

// ConnectErrorKind classifies a connection failure so callers can decide
// whether retrying makes sense and what hint to surface. golang.org/x/crypto/ssh
// does not expose a typed distinction for these cases any more precisely than
// string-matching the underlying transport error, the same technique the
// teacher's isConnectionError used for reconnect detection.
type ConnectErrorKind int

const (
	// KindGeneric covers anything not otherwise classified.
	KindGeneric ConnectErrorKind = iota
	// KindAuthDenied means the remote rejected the offered credentials.
	KindAuthDenied
	// KindTransportDisconnect means the SSH transport reported a clean
	// disconnect (e.g. server closed the connection during handshake).
	KindTransportDisconnect
	// KindConnectionLost means the underlying TCP connection died.
	KindConnectionLost
)

// ConnectError wraps a dial/auth failure with its classification and,
// for jump-host auth failures, a dedicated hint.
type ConnectError struct {
	Kind Kind
	Hint string
	Err  error
}

// Kind is an alias kept for readability at call sites (ssh.ConnectError.Kind).
type Kind = ConnectErrorKind

func (e *ConnectError) Error() string {
	if e.Hint != "" {
		return e.Err.Error() + " (" + e.Hint + ")"
	}
	return e.Err.Error()
}

func (e *ConnectError) Unwrap() error { return e.Err }

// classifyConnectError inspects a raw dial/handshake error and produces a
// ConnectError with the best-guess classification.
func classifyConnectError(err error, jumpHint bool) *ConnectError {
	if err == nil {
		return nil
	}
	ce := &ConnectError{Kind: KindGeneric, Err: err}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "unable to authenticate"), strings.Contains(msg, "auth"):
		ce.Kind = KindAuthDenied
		if jumpHint {
			ce.Hint = "configure key authentication for the jump host"
		}
	case strings.Contains(msg, "disconnect"):
		ce.Kind = KindTransportDisconnect
	case isConnectionLostMessage(msg):
		ce.Kind = KindConnectionLost
	}
	return ce
}

// IsConnectionLost reports whether err indicates the underlying transport
// died — the same classification classifyConnectError applies to dial
// failures, exposed so callers outside this package (the Command Runner's
// mid-stream retry check) can classify an error from an already-established
// session the same way.
func IsConnectionLost(err error) bool {
	if err == nil {
		return false
	}
	return isConnectionLostMessage(strings.ToLower(err.Error()))
}

func isConnectionLostMessage(msg string) bool {
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "eof") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "use of closed network connection")
}

var errNotConnected = errors.New("ssh: not connected")
