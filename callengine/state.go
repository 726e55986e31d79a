package callengine

import "fmt"

// Phase identifies which CallState variant is active.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseCalling
	PhaseRinging
	PhaseConnecting
	PhaseConnected
	PhaseEnded
)

func (p Phase) String() string {
	switch p {
	case PhaseCalling:
		return "calling"
	case PhaseRinging:
		return "ringing"
	case PhaseConnecting:
		return "connecting"
	case PhaseConnected:
		return "connected"
	case PhaseEnded:
		return "ended"
	default:
		return "idle"
	}
}

// CallState is a tagged union: at most one non-Idle, non-Ended state
// exists at a time per engine. PeerID and Username are populated only by
// the variants that carry them.
type CallState struct {
	Phase    Phase
	PeerID   string
	Username string
}

func (s CallState) String() string {
	switch s.Phase {
	case PhaseCalling, PhaseConnecting:
		return fmt.Sprintf("%s{%s}", s.Phase, s.PeerID)
	case PhaseRinging:
		return fmt.Sprintf("%s{%s,%s}", s.Phase, s.PeerID, s.Username)
	case PhaseConnected:
		return fmt.Sprintf("%s{%s}", s.Phase, s.PeerID)
	default:
		return s.Phase.String()
	}
}

func idleState() CallState { return CallState{Phase: PhaseIdle} }

func endedState() CallState { return CallState{Phase: PhaseEnded} }
