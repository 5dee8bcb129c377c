package stream

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"
)

// ErrorKind separates expected stream endings from failures worth logging.
type ErrorKind int

const (
	ClientDisconnect ErrorKind = iota
	ProviderFailure
	InternalFailure
)

type Error struct {
	Kind      ErrorKind
	Message   string
	Cause     error
	RequestID string
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsExpected reports whether err is a client disconnect.
func IsExpected(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == ClientDisconnect
}

func newDisconnectError(requestID string) *Error {
	return &Error{Kind: ClientDisconnect, Message: "client disconnected", RequestID: requestID}
}

func newProviderError(requestID string, cause error) *Error {
	return &Error{Kind: ProviderFailure, Message: "provider stream failed", Cause: cause, RequestID: requestID}
}

func newInternalError(requestID, message string, cause error) *Error {
	return &Error{Kind: InternalFailure, Message: message, Cause: cause, RequestID: requestID}
}

// isConnectionClosed matches the write errors of a peer that went away.
func isConnectionClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "broken pipe") || strings.Contains(msg, "connection reset")
}
