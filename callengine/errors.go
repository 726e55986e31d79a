package callengine

import (
	"errors"
	"fmt"
)

var (
	// ErrNoActiveCall is returned by operations that require an existing
	// peer connection when none is active.
	ErrNoActiveCall = errors.New("callengine: no active call")
	// ErrAlreadyInCall is returned by start_call/accept_call-style
	// operations attempted while the state is not Idle (or, for accept,
	// not Idle/Ringing).
	ErrAlreadyInCall = errors.New("callengine: already in call")
)

// WebRTCError wraps a failure from the underlying RTC stack.
type WebRTCError struct{ Detail string }

func (e *WebRTCError) Error() string { return fmt.Sprintf("callengine: webrtc: %s", e.Detail) }

// AudioError wraps a failure from the audio subsystem surfaced during
// call setup.
type AudioError struct{ Detail string }

func (e *AudioError) Error() string { return fmt.Sprintf("callengine: audio: %s", e.Detail) }

// InvalidSdpError wraps an SDP parse/set failure.
type InvalidSdpError struct{ Detail string }

func (e *InvalidSdpError) Error() string { return fmt.Sprintf("callengine: invalid sdp: %s", e.Detail) }
