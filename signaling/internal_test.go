package signaling

import (
	"testing"

	"github.com/zerodha/logf"

	"github.com/questxen/pulse/identity"
)

// The non-blocking send variant never blocks the caller; it returns
// ErrSendFailed once the bounded outbound queue is full.
func TestTrySendFailsWhenQueueFull(t *testing.T) {
	kp, err := identity.GenerateEphemeral()
	if err != nil {
		t.Fatalf("GenerateEphemeral: %v", err)
	}

	c := NewClient("wss://example.invalid/ws", kp, logf.New(logf.Opts{}))
	c.state = StateRegistered
	c.outbound = make(chan []byte, 2)

	if err := c.trySend([]byte("one")); err != nil {
		t.Fatalf("trySend 1: %v", err)
	}
	if err := c.trySend([]byte("two")); err != nil {
		t.Fatalf("trySend 2: %v", err)
	}

	if err := c.trySend([]byte("three")); err != ErrSendFailed {
		t.Fatalf("trySend on full queue = %v, want ErrSendFailed", err)
	}
}

func TestTrySendFailsWhenNotConnected(t *testing.T) {
	kp, err := identity.GenerateEphemeral()
	if err != nil {
		t.Fatalf("GenerateEphemeral: %v", err)
	}
	c := NewClient("wss://example.invalid/ws", kp, logf.New(logf.Opts{}))

	if err := c.trySend([]byte("x")); err != ErrNotConnected {
		t.Fatalf("trySend before connect = %v, want ErrNotConnected", err)
	}
}
