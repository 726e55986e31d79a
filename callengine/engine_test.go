package callengine

import (
	"strings"
	"testing"
	"time"

	"github.com/zerodha/logf"

	"github.com/questxen/pulse/audio"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(audio.NewReferenceDevice("test"), logf.New(logf.Opts{}))
}

// From Idle, StartCall returns a non-empty SDP offer starting with
// "v=0", transitions to Calling{peerID}, and emits a StateChanged event.
func TestStartCallFromIdleProducesOffer(t *testing.T) {
	e := newTestEngine(t)
	events, unsubscribe := e.Events()
	defer unsubscribe()

	offer, err := e.StartCall("p-2")
	if err != nil {
		t.Fatalf("StartCall: %v", err)
	}
	if offer == "" || !strings.HasPrefix(offer, "v=0") {
		t.Fatalf("offer = %q, want it to start with v=0", offer)
	}

	state := e.State()
	if state.Phase != PhaseCalling || state.PeerID != "p-2" {
		t.Fatalf("state = %+v, want Calling{p-2}", state)
	}

	select {
	case ev := <-events:
		sc, ok := ev.(StateChangedEvent)
		if !ok {
			t.Fatalf("event = %T, want StateChangedEvent", ev)
		}
		if sc.State.Phase != PhaseCalling {
			t.Fatalf("StateChangedEvent.State.Phase = %v, want Calling", sc.State.Phase)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for StateChangedEvent")
	}
}

// A second StartCall while non-Idle fails with ErrAlreadyInCall.
func TestStartCallWhileNonIdleFails(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.StartCall("p-2"); err != nil {
		t.Fatalf("first StartCall: %v", err)
	}
	if _, err := e.StartCall("p-3"); err != ErrAlreadyInCall {
		t.Fatalf("second StartCall = %v, want ErrAlreadyInCall", err)
	}
}

// From Ringing, AcceptCall with a valid offer returns a non-empty answer
// and transitions to Connecting{peerID}.
func TestAcceptCallFromRingingProducesAnswer(t *testing.T) {
	caller := newTestEngine(t)
	offer, err := caller.StartCall("p-callee")
	if err != nil {
		t.Fatalf("caller StartCall: %v", err)
	}

	callee := newTestEngine(t)
	if err := callee.RegisterIncomingCall("p-caller", "alice"); err != nil {
		t.Fatalf("RegisterIncomingCall: %v", err)
	}
	if callee.State().Phase != PhaseRinging {
		t.Fatalf("callee state = %+v, want Ringing", callee.State())
	}

	answer, err := callee.AcceptCall("p-caller", offer)
	if err != nil {
		t.Fatalf("AcceptCall: %v", err)
	}
	if answer == "" || !strings.HasPrefix(answer, "v=0") {
		t.Fatalf("answer = %q, want it to start with v=0", answer)
	}
	if callee.State().Phase != PhaseConnecting {
		t.Fatalf("callee state = %+v, want Connecting", callee.State())
	}
}

// EndCall transitions to Ended immediately and to Idle within 600ms.
func TestEndCallTransitionsThroughEnded(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.StartCall("p-2"); err != nil {
		t.Fatalf("StartCall: %v", err)
	}

	events, unsubscribe := e.Events()
	defer unsubscribe()

	e.EndCall()
	if e.State().Phase != PhaseEnded {
		t.Fatalf("state immediately after EndCall = %+v, want Ended", e.State())
	}

	deadline := time.After(600 * time.Millisecond)
	sawEnded, sawIdle := false, false
	for !sawIdle {
		select {
		case ev := <-events:
			sc, ok := ev.(StateChangedEvent)
			if !ok {
				continue
			}
			switch sc.State.Phase {
			case PhaseEnded:
				sawEnded = true
			case PhaseIdle:
				sawIdle = true
			}
		case <-deadline:
			t.Fatal("did not reach Idle within 600ms of EndCall")
		}
	}
	if !sawEnded {
		t.Fatal("never observed an Ended StateChangedEvent before Idle")
	}
}

func TestAddIceCandidateWithoutActiveCallFails(t *testing.T) {
	e := newTestEngine(t)
	if err := e.AddIceCandidate(`{"candidate":"...","sdpMid":"0","sdpMLineIndex":0}`); err != ErrNoActiveCall {
		t.Fatalf("AddIceCandidate = %v, want ErrNoActiveCall", err)
	}
}

func TestHandleAnswerWithoutActiveCallFails(t *testing.T) {
	e := newTestEngine(t)
	if err := e.HandleAnswer("v=0..."); err != ErrNoActiveCall {
		t.Fatalf("HandleAnswer = %v, want ErrNoActiveCall", err)
	}
}
