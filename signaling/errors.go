package signaling

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectionFailed wraps a dial failure to the rendezvous server.
	ErrConnectionFailed = errors.New("signaling: connection failed")
	// ErrNotConnected is returned by commands issued before a connection
	// exists or after one has dropped.
	ErrNotConnected = errors.New("signaling: not connected")
	// ErrSendFailed is returned by the non-blocking send variants when the
	// bounded outbound queue is full.
	ErrSendFailed = errors.New("signaling: send failed, outbound queue full")
	// ErrRegistrationFailed wraps a registration handshake failure
	// (timeout or a server error frame).
	ErrRegistrationFailed = errors.New("signaling: registration failed")
)

// ServerError wraps an error{code,message} frame from the rendezvous
// server.
type ServerError struct {
	Code    int32
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("signaling: server error %d: %s", e.Code, e.Message)
}
