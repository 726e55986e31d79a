// Package callengine owns the single RTC peer connection for the
// process's one active call, bridging it to the local audio handler and
// publishing call-lifecycle events on a broadcast bus.
package callengine

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/zerodha/logf"

	"github.com/questxen/pulse/audio"
	"github.com/questxen/pulse/pkg/opuscodec"
)

// endedToIdleDelay is how long the Ended state is observable before the
// engine auto-transitions back to Idle.
const endedToIdleDelay = 500 * time.Millisecond

// Engine owns at most one RTC peer connection at a time plus the audio
// handler that feeds and drains it.
type Engine struct {
	device audio.Device
	log    logf.Logger
	turn   []TURNConfig

	mu    sync.Mutex // guards pc, audioHandler, localTrack, state
	pc    *webrtc.PeerConnection
	audioHandler *audio.Handler
	localTrack   *webrtc.TrackLocalStaticRTP
	state        CallState

	bus *eventBus
}

// NewEngine creates a call engine that opens device for each call's
// audio I/O.
func NewEngine(device audio.Device, log logf.Logger) *Engine {
	return &Engine{
		device: device,
		log:    log,
		state:  idleState(),
		bus:    newEventBus(),
	}
}

// SetTURNServers replaces the TURN relays appended to the default STUN
// list on every subsequently created peer connection.
func (e *Engine) SetTURNServers(turn []TURNConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.turn = turn
}

// Events returns a channel of broadcast call events and an unsubscribe
// func.
func (e *Engine) Events() (<-chan Event, func()) {
	return e.bus.Subscribe()
}

// State returns the current CallState.
func (e *Engine) State() CallState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) setState(s CallState) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
	e.bus.Publish(StateChangedEvent{State: s})
}

// StartCall requires Idle, transitions to Calling{peerID}, and returns a
// freshly created SDP offer after initializing the peer connection,
// local Opus track, and audio I/O.
func (e *Engine) StartCall(peerID string) (string, error) {
	e.mu.Lock()
	if e.state.Phase != PhaseIdle {
		e.mu.Unlock()
		return "", ErrAlreadyInCall
	}
	e.mu.Unlock()

	e.setState(CallState{Phase: PhaseCalling, PeerID: peerID})

	pc, track, err := e.buildPeerConnection()
	if err != nil {
		e.failCall(err)
		return "", err
	}

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		e.failCall(&WebRTCError{Detail: err.Error()})
		return "", &WebRTCError{Detail: err.Error()}
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		e.failCall(&WebRTCError{Detail: err.Error()})
		return "", &WebRTCError{Detail: err.Error()}
	}

	if err := e.initAudio(track); err != nil {
		e.failCall(err)
		return "", err
	}

	e.mu.Lock()
	e.pc = pc
	e.localTrack = track
	e.mu.Unlock()

	return offer.SDP, nil
}

// AcceptCall requires Idle or Ringing, transitions to Connecting{peerID},
// applies offerSDP as the remote description, and returns a freshly
// created SDP answer after initializing the local track and audio I/O.
func (e *Engine) AcceptCall(peerID, offerSDP string) (string, error) {
	e.mu.Lock()
	if e.state.Phase != PhaseIdle && e.state.Phase != PhaseRinging {
		e.mu.Unlock()
		return "", ErrAlreadyInCall
	}
	e.mu.Unlock()

	e.setState(CallState{Phase: PhaseConnecting, PeerID: peerID})

	pc, track, err := e.buildPeerConnection()
	if err != nil {
		e.failCall(err)
		return "", err
	}

	if err := pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  offerSDP,
	}); err != nil {
		invalid := &InvalidSdpError{Detail: err.Error()}
		e.failCall(invalid)
		return "", invalid
	}

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		e.failCall(&WebRTCError{Detail: err.Error()})
		return "", &WebRTCError{Detail: err.Error()}
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		e.failCall(&WebRTCError{Detail: err.Error()})
		return "", &WebRTCError{Detail: err.Error()}
	}

	if err := e.initAudio(track); err != nil {
		e.failCall(err)
		return "", err
	}

	e.mu.Lock()
	e.pc = pc
	e.localTrack = track
	e.mu.Unlock()

	return answer.SDP, nil
}

// HandleAnswer applies a remote answer SDP to the existing peer
// connection.
func (e *Engine) HandleAnswer(sdp string) error {
	e.mu.Lock()
	pc := e.pc
	e.mu.Unlock()

	if pc == nil {
		return ErrNoActiveCall
	}
	if err := pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  sdp,
	}); err != nil {
		invalid := &InvalidSdpError{Detail: err.Error()}
		e.failCall(invalid)
		return invalid
	}
	return nil
}

// iceCandidateJSON mirrors the wire protocol's candidate payload.
type iceCandidateJSON struct {
	Candidate     string `json:"candidate"`
	SDPMid        string `json:"sdpMid"`
	SDPMLineIndex int    `json:"sdpMLineIndex"`
}

// AddIceCandidate applies a trickled remote ICE candidate parsed from
// candidateJSON.
func (e *Engine) AddIceCandidate(candidateJSON string) error {
	e.mu.Lock()
	pc := e.pc
	e.mu.Unlock()

	if pc == nil {
		return ErrNoActiveCall
	}

	var c iceCandidateJSON
	if err := json.Unmarshal([]byte(candidateJSON), &c); err != nil {
		return &InvalidSdpError{Detail: fmt.Sprintf("ice candidate: %v", err)}
	}

	mLineIndex := uint16(c.SDPMLineIndex)
	if err := pc.AddICECandidate(webrtc.ICECandidateInit{
		Candidate:     c.Candidate,
		SDPMid:        &c.SDPMid,
		SDPMLineIndex: &mLineIndex,
	}); err != nil {
		return &WebRTCError{Detail: err.Error()}
	}
	return nil
}

// RegisterIncomingCall transitions Idle → Ringing{peerID, username},
// called by the orchestrator when an IncomingCall signaling event
// arrives.
func (e *Engine) RegisterIncomingCall(peerID, username string) error {
	e.mu.Lock()
	if e.state.Phase != PhaseIdle {
		e.mu.Unlock()
		return ErrAlreadyInCall
	}
	e.mu.Unlock()
	e.setState(CallState{Phase: PhaseRinging, PeerID: peerID, Username: username})
	return nil
}

// RejectCall tears down without having built a peer connection (call was
// never accepted) and returns to Idle via Ended.
func (e *Engine) RejectCall() {
	e.endCall()
}

// EndCall stops audio, closes the peer connection asynchronously, and
// transitions Ended → Idle after endedToIdleDelay.
func (e *Engine) EndCall() {
	e.endCall()
}

func (e *Engine) endCall() {
	e.mu.Lock()
	pc := e.pc
	handler := e.audioHandler
	e.pc = nil
	e.audioHandler = nil
	e.localTrack = nil
	e.mu.Unlock()

	if handler != nil {
		handler.Close()
	}
	if pc != nil {
		if err := pc.Close(); err != nil {
			e.log.Warn("peer connection close failed", "error", err)
		}
	}

	e.setState(endedState())
	go func() {
		time.Sleep(endedToIdleDelay)
		e.setState(idleState())
	}()
}

func (e *Engine) failCall(err error) {
	e.log.Error("call failed", "error", err)
	e.bus.Publish(ErrorEvent{Err: err})
	e.endCall()
}

// SetMuted proxies to the active call's audio handler; a no-op absent an
// active call.
func (e *Engine) SetMuted(muted bool) {
	e.mu.Lock()
	h := e.audioHandler
	e.mu.Unlock()
	if h != nil {
		h.SetMuted(muted)
	}
}

// IsMuted proxies to the active call's audio handler, false absent one.
func (e *Engine) IsMuted() bool {
	e.mu.Lock()
	h := e.audioHandler
	e.mu.Unlock()
	if h == nil {
		return false
	}
	return h.IsMuted()
}

// AudioLevels proxies to the active call's audio handler, (0,0) absent
// one.
func (e *Engine) AudioLevels() (input, output float32) {
	e.mu.Lock()
	h := e.audioHandler
	e.mu.Unlock()
	if h == nil {
		return 0, 0
	}
	return h.Levels()
}

// buildPeerConnection creates an RTC peer connection with the default
// codec/interceptor/filter configuration, wires connection-state
// transitions into the call state machine, wires local ICE candidates
// into the event bus, and adds a static Opus RTP track.
func (e *Engine) buildPeerConnection() (*webrtc.PeerConnection, *webrtc.TrackLocalStaticRTP, error) {
	api, err := newAPI()
	if err != nil {
		return nil, nil, &WebRTCError{Detail: err.Error()}
	}

	e.mu.Lock()
	turn := e.turn
	e.mu.Unlock()

	pc, err := api.NewPeerConnection(webrtc.Configuration{ICEServers: buildICEServers(turn)})
	if err != nil {
		return nil, nil, &WebRTCError{Detail: err.Error()}
	}

	track, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 1},
		"audio", "pulse-voice",
	)
	if err != nil {
		pc.Close()
		return nil, nil, &WebRTCError{Detail: err.Error()}
	}
	if _, err := pc.AddTrack(track); err != nil {
		pc.Close()
		return nil, nil, &WebRTCError{Detail: err.Error()}
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		init := c.ToJSON()
		payload, err := json.Marshal(iceCandidateJSON{
			Candidate:     init.Candidate,
			SDPMid:        derefString(init.SDPMid),
			SDPMLineIndex: int(derefUint16(init.SDPMLineIndex)),
		})
		if err != nil {
			return
		}
		e.bus.Publish(IceCandidateEvent{CandidateJSON: string(payload)})
	})

	pc.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		e.consumeRemoteTrack(remote)
	})

	pc.OnConnectionStateChange(func(cs webrtc.PeerConnectionState) {
		e.onConnectionStateChange(cs)
	})

	return pc, track, nil
}

// onConnectionStateChange maps pion's connection-state callback onto
// CallState transitions.
func (e *Engine) onConnectionStateChange(cs webrtc.PeerConnectionState) {
	e.log.Info("peer connection state changed", "state", cs.String())

	switch cs {
	case webrtc.PeerConnectionStateConnected:
		e.mu.Lock()
		phase := e.state.Phase
		peerID := e.state.PeerID
		e.mu.Unlock()
		if phase == PhaseCalling || phase == PhaseConnecting {
			e.setState(CallState{Phase: PhaseConnected, PeerID: peerID})
		}
	case webrtc.PeerConnectionStateDisconnected, webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
		e.endCall()
	}
}

// initAudio starts capture/playback against the engine's device and
// wires samples between the ring buffers and the RTC track.
func (e *Engine) initAudio(track *webrtc.TrackLocalStaticRTP) error {
	handler := audio.NewHandler(e.device)
	if err := handler.StartCapture(); err != nil {
		return &AudioError{Detail: err.Error()}
	}
	if err := handler.StartPlayback(); err != nil {
		return &AudioError{Detail: err.Error()}
	}

	encoder, err := opuscodec.NewEncoder()
	if err != nil {
		return &AudioError{Detail: err.Error()}
	}

	e.mu.Lock()
	e.audioHandler = handler
	e.mu.Unlock()

	go e.captureLoop(handler, encoder, track)

	return nil
}

// captureLoop pulls 20ms frames from the capture ring, encodes them to
// Opus, and writes RTP packets to the local track until the handler is
// torn down: each tick checks that e.audioHandler is still handler and
// returns once endCall has swapped it to nil.
// The sequence number and timestamp advance exactly as the reference
// client's manual WriteOpus does; SSRC is assigned by pion once the
// track is bound to a sender. Each tick also publishes the handler's
// current input/output RMS levels, since this is the only steady
// heartbeat already running for the life of a call.
func (e *Engine) captureLoop(handler *audio.Handler, encoder *opuscodec.Encoder, track *webrtc.TrackLocalStaticRTP) {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	var seqNum uint16
	var timestamp uint32

	for range ticker.C {
		e.mu.Lock()
		active := e.audioHandler == handler
		e.mu.Unlock()
		if !active {
			return
		}

		input, output := handler.Levels()
		e.bus.Publish(AudioLevelEvent{Input: input, Output: output})

		frame, ok := handler.ReadFrame()
		if !ok {
			continue
		}
		payload, err := encoder.Encode(frame)
		if err != nil {
			e.log.Warn("opus encode failed", "error", err)
			continue
		}

		pkt := &rtp.Packet{
			Header: rtp.Header{
				Version:        2,
				PayloadType:    111,
				SequenceNumber: seqNum,
				Timestamp:      timestamp,
			},
			Payload: payload,
		}
		seqNum++
		timestamp += opuscodec.FrameSamples

		if err := track.WriteRTP(pkt); err != nil {
			e.log.Warn("write rtp failed", "error", err)
		}
	}
}

// consumeRemoteTrack decodes incoming Opus RTP packets and feeds the PCM
// into the active call's playback ring.
func (e *Engine) consumeRemoteTrack(remote *webrtc.TrackRemote) {
	decoder, err := opuscodec.NewDecoder()
	if err != nil {
		e.log.Error("opus decoder init failed", "error", err)
		return
	}

	for {
		pkt, _, err := remote.ReadRTP()
		if err != nil {
			return
		}
		e.mu.Lock()
		handler := e.audioHandler
		e.mu.Unlock()
		if handler == nil {
			continue
		}
		pcm, err := decoder.Decode(pkt.Payload)
		if err != nil {
			e.log.Warn("opus decode failed", "error", err)
			continue
		}
		handler.WriteSamples(pcm)
	}
}

func derefString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func derefUint16(p *uint16) uint16 {
	if p == nil {
		return 0
	}
	return *p
}
