// Package orchestrator is the sole integrator between the signaling
// client and the call engine: it runs two subscription loops that apply
// each component's events to the other and re-emits everything relevant
// on a UI-facing bus. Neither the signaling nor the call-engine package
// imports the other; this package is where that cycle is broken.
package orchestrator

import (
	"context"

	"github.com/zerodha/logf"

	"github.com/questxen/pulse/callengine"
	"github.com/questxen/pulse/contactstore"
	"github.com/questxen/pulse/signaling"
)

// UIEvent is broadcast to the front-end bridge: every signaling and
// call-engine event the UI might care about, normalized into one union.
type UIEvent interface{ isUIEvent() }

type SignalingEvent struct{ Event signaling.Event }
type CallEvent struct{ Event callengine.Event }

func (SignalingEvent) isUIEvent() {}
func (CallEvent) isUIEvent()      {}

const uiBusCapacity = 100

// Orchestrator wires a Client and an Engine together plus an optional
// contact store kept in sync with ContactOnline/ContactOffline events.
type Orchestrator struct {
	signaling *signaling.Client
	engine    *callengine.Engine
	contacts  contactstore.Store
	log       logf.Logger

	uiCh chan UIEvent
}

// New creates an Orchestrator over an already-constructed signaling
// client and call engine. contacts may be nil if no persistence is
// wired (e.g. in tests).
func New(sig *signaling.Client, engine *callengine.Engine, contacts contactstore.Store, log logf.Logger) *Orchestrator {
	return &Orchestrator{
		signaling: sig,
		engine:    engine,
		contacts:  contacts,
		log:       log,
		uiCh:      make(chan UIEvent, uiBusCapacity),
	}
}

// UIEvents returns the channel the front-end bridge should drain.
func (o *Orchestrator) UIEvents() <-chan UIEvent {
	return o.uiCh
}

// Run starts both subscription loops and blocks until ctx is cancelled.
// The call-engine loop runs on its own goroutine; the signaling loop runs
// on the caller's.
func (o *Orchestrator) Run(ctx context.Context) {
	sigEvents, unsubSig := o.signaling.Events()
	defer unsubSig()
	callEvents, unsubCall := o.engine.Events()
	defer unsubCall()

	done := ctx.Done()
	go func() {
		for {
			select {
			case <-done:
				return
			case ev, ok := <-callEvents:
				if !ok {
					return
				}
				o.handleCallEvent(ev)
			}
		}
	}()
	for {
		select {
		case <-done:
			return
		case ev := <-sigEvents:
			o.handleSignalingEvent(ev)
		}
	}
}

func (o *Orchestrator) publishUI(ev UIEvent) {
	select {
	case o.uiCh <- ev:
	default:
		select {
		case <-o.uiCh:
		default:
		}
		select {
		case o.uiCh <- ev:
		default:
		}
	}
}

// handleSignalingEvent applies an incoming signaling event to the call
// engine and contact store, then re-emits the event on the UI bus
// unconditionally.
func (o *Orchestrator) handleSignalingEvent(ev signaling.Event) {
	switch e := ev.(type) {
	case signaling.IncomingCallEvent:
		if err := o.engine.RegisterIncomingCall(e.FromPeerID, e.FromUsername); err != nil {
			o.log.Warn("register incoming call failed", "error", err, "peer_id", e.FromPeerID)
		}
	case signaling.AnswerReceivedEvent:
		if err := o.engine.HandleAnswer(e.SDP); err != nil {
			o.log.Warn("handle answer failed", "error", err, "peer_id", e.FromPeerID)
		}
	case signaling.IceCandidateReceivedEvent:
		if err := o.engine.AddIceCandidate(e.Candidate); err != nil {
			o.log.Warn("add ice candidate failed", "error", err, "peer_id", e.FromPeerID)
		}
	case signaling.CallRejectedEvent:
		o.engine.EndCall()
	case signaling.CallEndedEvent:
		o.engine.EndCall()
	case signaling.ContactOnlineEvent:
		o.syncContactOnline(e.PeerID, e.Username, true)
	case signaling.ContactOfflineEvent:
		o.syncContactOnline(e.PeerID, "", false)
	}

	o.publishUI(SignalingEvent{Event: ev})
}

// handleCallEvent forwards a call engine event (ICE candidates go back
// out over signaling), then re-emits the event on the UI bus
// unconditionally.
func (o *Orchestrator) handleCallEvent(ev callengine.Event) {
	if ice, ok := ev.(callengine.IceCandidateEvent); ok {
		peerID := o.engine.State().PeerID
		if peerID != "" {
			if err := o.signaling.SendIceCandidateSync(o.signaling.PeerID(), peerID, ice.CandidateJSON); err != nil {
				o.log.Warn("send ice candidate failed", "error", err, "peer_id", peerID)
			}
		}
	}

	o.publishUI(CallEvent{Event: ev})
}

func (o *Orchestrator) syncContactOnline(peerID, username string, online bool) {
	if o.contacts == nil {
		return
	}
	if err := o.contacts.SetOnline(peerID, username, online); err != nil {
		o.log.Warn("contact store update failed", "error", err, "peer_id", peerID)
	}
}
