// Package signaling maintains the single WebSocket connection to a
// rendezvous service, framing every outbound message with a canonical
// Ed25519 signature and demultiplexing inbound frames onto a broadcast
// event bus.
package signaling

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/zerodha/logf"

	"github.com/questxen/pulse/identity"
)

// State is the SignalingConnection's lifecycle state.
type State int

const (
	Disconnected State = iota
	StateConnected
	StateRegistered
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateRegistered:
		return "registered"
	default:
		return "disconnected"
	}
}

const (
	registerTimeout  = 10 * time.Second
	heartbeatPeriod  = 25 * time.Second
	outboundCapacity = 100
)

// Client is the process's single signaling connection.
type Client struct {
	serverURL string
	identity  *identity.KeyPair
	log       logf.Logger

	mu       sync.RWMutex
	state    State
	peerID   string
	username string
	conn     *websocket.Conn
	outbound chan []byte
	done     chan struct{}

	bus *eventBus

	pendingMu  sync.Mutex
	pendingReg chan registerResult
}

type registerResult struct {
	peerID   string
	username string
	err      error
}

// NewClient creates a signaling client bound to serverURL, unconnected.
func NewClient(serverURL string, id *identity.KeyPair, log logf.Logger) *Client {
	return &Client{
		serverURL: serverURL,
		identity:  id,
		log:       log.With("component", "signaling"),
		bus:       newEventBus(),
	}
}

// Events returns a channel of broadcast events and an unsubscribe func.
func (c *Client) Events() (<-chan Event, func()) {
	return c.bus.Subscribe()
}

// State reports the current connection state.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// PeerID returns the peer_id assigned at registration, or "" before that.
func (c *Client) PeerID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.peerID
}

// ConnectAndRegister dials the rendezvous server, performs the register
// handshake, and starts the read/write/heartbeat loops. It returns
// ErrRegistrationFailed wrapping "Timeout" if no registered/error frame
// arrives within 10 seconds.
func (c *Client) ConnectAndRegister(ctx context.Context, username string) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.serverURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.state = StateConnected
	c.outbound = make(chan []byte, outboundCapacity)
	c.done = make(chan struct{})
	c.username = username
	c.mu.Unlock()

	c.bus.Publish(ConnectedEvent{})

	pending := make(chan registerResult, 1)
	c.pendingMu.Lock()
	c.pendingReg = pending
	c.pendingMu.Unlock()

	go c.writeLoop()
	go c.readLoop()

	frame, err := buildEnvelope(c.identity, TypeRegister, map[string]any{
		"username":  username,
		"publicKey": c.identity.PublicKeyBase64(),
	})
	if err != nil {
		c.Disconnect()
		return fmt.Errorf("%w: %v", ErrRegistrationFailed, err)
	}
	if err := c.send(ctx, frame); err != nil {
		c.Disconnect()
		return fmt.Errorf("%w: %v", ErrRegistrationFailed, err)
	}

	select {
	case res := <-pending:
		if res.err != nil {
			c.Disconnect()
			return fmt.Errorf("%w: %v", ErrRegistrationFailed, res.err)
		}
		c.mu.Lock()
		c.state = StateRegistered
		c.peerID = res.peerID
		c.username = res.username
		c.mu.Unlock()
		c.bus.Publish(RegisteredEvent{PeerID: res.peerID, Username: res.username})
		go c.heartbeatLoop()
		return nil
	case <-time.After(registerTimeout):
		c.Disconnect()
		return fmt.Errorf("%w: Timeout", ErrRegistrationFailed)
	case <-ctx.Done():
		c.Disconnect()
		return fmt.Errorf("%w: %v", ErrRegistrationFailed, ctx.Err())
	}
}

func (c *Client) writeLoop() {
	c.mu.RLock()
	conn, outbound, done := c.conn, c.outbound, c.done
	c.mu.RUnlock()

	for {
		select {
		case <-done:
			return
		case frame := <-outbound:
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.Error("write failed", "error", err)
				c.Disconnect()
				return
			}
		}
	}
}

func (c *Client) readLoop() {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.log.Info("read loop ended", "error", err)
			c.Disconnect()
			return
		}
		c.dispatch(data)
	}
}

// dispatch parses one inbound text frame and either resolves the pending
// registration handshake or publishes the matching Event. Unknown or
// malformed frames are logged and dropped, never failing the connection.
func (c *Client) dispatch(data []byte) {
	var env inboundEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.log.Warn("dropping malformed frame", "error", err)
		return
	}

	switch env.Type {
	case TypeRegistered:
		var p registeredPayload
		if err := json.Unmarshal(data, &p); err != nil {
			c.log.Warn("dropping malformed registered frame", "error", err)
			return
		}
		c.completeRegister(registerResult{peerID: p.PeerID, username: p.Username})

	case TypeErrorMsg:
		var p errorPayload
		if err := json.Unmarshal(data, &p); err != nil {
			c.log.Warn("dropping malformed error frame", "error", err)
			return
		}
		serverErr := &ServerError{Code: p.Code, Message: p.Message}
		c.completeRegister(registerResult{err: serverErr})
		c.bus.Publish(ErrorEvent{Err: serverErr})

	case TypeUserFound:
		var p userFoundPayload
		if json.Unmarshal(data, &p) == nil {
			c.bus.Publish(UserFoundEvent{PeerID: p.PeerID, Username: p.Username})
		}

	case TypeUserNotFound:
		var p userNotFoundPayload
		if json.Unmarshal(data, &p) == nil {
			c.bus.Publish(UserNotFoundEvent{Username: p.Username})
		}

	case TypeIncomingOffer:
		var p incomingOfferPayload
		if json.Unmarshal(data, &p) == nil {
			c.bus.Publish(IncomingCallEvent{FromPeerID: p.FromPeerID, FromUsername: p.FromUsername, SDP: p.SDP})
		}

	case TypeIncomingAnswer:
		var p incomingAnswerPayload
		if json.Unmarshal(data, &p) == nil {
			c.bus.Publish(AnswerReceivedEvent{FromPeerID: p.FromPeerID, SDP: p.SDP})
		}

	case TypeIncomingIceCandidate:
		var p incomingIceCandidatePayload
		if json.Unmarshal(data, &p) == nil {
			c.bus.Publish(IceCandidateReceivedEvent{FromPeerID: p.FromPeerID, Candidate: p.Candidate})
		}

	case TypeCallRejected:
		var p callRejectedPayload
		if json.Unmarshal(data, &p) == nil {
			c.bus.Publish(CallRejectedEvent{FromPeerID: p.FromPeerID, Reason: p.Reason})
		}

	case TypeCallEnded:
		var p callEndedPayload
		if json.Unmarshal(data, &p) == nil {
			c.bus.Publish(CallEndedEvent{FromPeerID: p.FromPeerID})
		}

	case TypeUserOnline:
		var p userOnlinePayload
		if json.Unmarshal(data, &p) == nil {
			c.bus.Publish(ContactOnlineEvent{PeerID: p.PeerID, Username: p.Username})
		}

	case TypeUserOffline:
		var p userOfflinePayload
		if json.Unmarshal(data, &p) == nil {
			c.bus.Publish(ContactOfflineEvent{PeerID: p.PeerID})
		}

	case TypePong:
		// Consumed silently; missed pongs are not a disconnect trigger.

	default:
		c.log.Warn("dropping unknown message type", "type", env.Type)
	}
}

func (c *Client) completeRegister(res registerResult) {
	c.pendingMu.Lock()
	pending := c.pendingReg
	c.pendingReg = nil
	c.pendingMu.Unlock()

	if pending != nil {
		select {
		case pending <- res:
		default:
		}
	}
}

func (c *Client) heartbeatLoop() {
	ticker := time.NewTicker(heartbeatPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.RLock()
			state, peerID := c.state, c.peerID
			c.mu.RUnlock()
			if state != StateRegistered {
				return
			}
			if err := c.SendHeartbeatSync(peerID); err != nil {
				c.log.Warn("heartbeat send failed", "error", err)
			}
		}
	}
}

// send enqueues frame, awaiting backpressure until there is room or ctx
// ends.
func (c *Client) send(ctx context.Context, frame []byte) error {
	c.mu.RLock()
	outbound, state := c.outbound, c.state
	c.mu.RUnlock()

	if state == Disconnected {
		return ErrNotConnected
	}
	select {
	case outbound <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// trySend enqueues frame without blocking. Callers from audio/callback
// contexts MUST use this form (via the *Sync command methods below).
func (c *Client) trySend(frame []byte) error {
	c.mu.RLock()
	outbound, state := c.outbound, c.state
	c.mu.RUnlock()

	if state == Disconnected {
		return ErrNotConnected
	}
	select {
	case outbound <- frame:
		return nil
	default:
		return ErrSendFailed
	}
}

// Disconnect closes the connection and transitions to Disconnected,
// broadcasting the event exactly once per connection generation.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if c.state == Disconnected {
		c.mu.Unlock()
		return
	}
	conn, done := c.conn, c.done
	c.state = Disconnected
	c.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		default:
			close(done)
		}
	}
	if conn != nil {
		conn.Close()
	}
	c.bus.Publish(DisconnectedEvent{})
}

// FindUser asks the rendezvous server to resolve targetUsername to a
// peer_id, awaiting backpressure.
func (c *Client) FindUser(ctx context.Context, peerID, targetUsername string) error {
	frame, err := buildEnvelope(c.identity, TypeFindUser, map[string]any{
		"peerId":         peerID,
		"targetUsername": targetUsername,
	})
	if err != nil {
		return err
	}
	return c.send(ctx, frame)
}

// FindUserSync is the non-blocking variant of FindUser.
func (c *Client) FindUserSync(peerID, targetUsername string) error {
	frame, err := buildEnvelope(c.identity, TypeFindUser, map[string]any{
		"peerId":         peerID,
		"targetUsername": targetUsername,
	})
	if err != nil {
		return err
	}
	return c.trySend(frame)
}

// SendOffer delivers an SDP offer to toPeerId, awaiting backpressure.
func (c *Client) SendOffer(ctx context.Context, fromPeerID, toPeerID, sdp string) error {
	frame, err := buildEnvelope(c.identity, TypeOffer, map[string]any{
		"fromPeerId": fromPeerID,
		"toPeerId":   toPeerID,
		"sdp":        sdp,
	})
	if err != nil {
		return err
	}
	return c.send(ctx, frame)
}

// SendOfferSync is the non-blocking variant of SendOffer.
func (c *Client) SendOfferSync(fromPeerID, toPeerID, sdp string) error {
	frame, err := buildEnvelope(c.identity, TypeOffer, map[string]any{
		"fromPeerId": fromPeerID,
		"toPeerId":   toPeerID,
		"sdp":        sdp,
	})
	if err != nil {
		return err
	}
	return c.trySend(frame)
}

// SendAnswer delivers an SDP answer to toPeerId, awaiting backpressure.
func (c *Client) SendAnswer(ctx context.Context, fromPeerID, toPeerID, sdp string) error {
	frame, err := buildEnvelope(c.identity, TypeAnswer, map[string]any{
		"fromPeerId": fromPeerID,
		"toPeerId":   toPeerID,
		"sdp":        sdp,
	})
	if err != nil {
		return err
	}
	return c.send(ctx, frame)
}

// SendAnswerSync is the non-blocking variant of SendAnswer.
func (c *Client) SendAnswerSync(fromPeerID, toPeerID, sdp string) error {
	frame, err := buildEnvelope(c.identity, TypeAnswer, map[string]any{
		"fromPeerId": fromPeerID,
		"toPeerId":   toPeerID,
		"sdp":        sdp,
	})
	if err != nil {
		return err
	}
	return c.trySend(frame)
}

// SendIceCandidate trickles an ICE candidate to toPeerId, awaiting
// backpressure.
func (c *Client) SendIceCandidate(ctx context.Context, fromPeerID, toPeerID, candidateJSON string) error {
	frame, err := buildEnvelope(c.identity, TypeIceCandidate, map[string]any{
		"fromPeerId": fromPeerID,
		"toPeerId":   toPeerID,
		"candidate":  candidateJSON,
	})
	if err != nil {
		return err
	}
	return c.send(ctx, frame)
}

// SendIceCandidateSync is the non-blocking variant of SendIceCandidate.
// The call-engine loop, which may run close to audio-adjacent paths,
// MUST use this form.
func (c *Client) SendIceCandidateSync(fromPeerID, toPeerID, candidateJSON string) error {
	frame, err := buildEnvelope(c.identity, TypeIceCandidate, map[string]any{
		"fromPeerId": fromPeerID,
		"toPeerId":   toPeerID,
		"candidate":  candidateJSON,
	})
	if err != nil {
		return err
	}
	return c.trySend(frame)
}

// RejectCall notifies toPeerId that the call was rejected, awaiting
// backpressure.
func (c *Client) RejectCall(ctx context.Context, fromPeerID, toPeerID, reason string) error {
	frame, err := buildEnvelope(c.identity, TypeRejectCall, map[string]any{
		"fromPeerId": fromPeerID,
		"toPeerId":   toPeerID,
		"reason":     reason,
	})
	if err != nil {
		return err
	}
	return c.send(ctx, frame)
}

// RejectCallSync is the non-blocking variant of RejectCall.
func (c *Client) RejectCallSync(fromPeerID, toPeerID, reason string) error {
	frame, err := buildEnvelope(c.identity, TypeRejectCall, map[string]any{
		"fromPeerId": fromPeerID,
		"toPeerId":   toPeerID,
		"reason":     reason,
	})
	if err != nil {
		return err
	}
	return c.trySend(frame)
}

// Hangup notifies toPeerId that the call ended, awaiting backpressure.
func (c *Client) Hangup(ctx context.Context, fromPeerID, toPeerID string) error {
	frame, err := buildEnvelope(c.identity, TypeHangup, map[string]any{
		"fromPeerId": fromPeerID,
		"toPeerId":   toPeerID,
	})
	if err != nil {
		return err
	}
	return c.send(ctx, frame)
}

// HangupSync is the non-blocking variant of Hangup.
func (c *Client) HangupSync(fromPeerID, toPeerID string) error {
	frame, err := buildEnvelope(c.identity, TypeHangup, map[string]any{
		"fromPeerId": fromPeerID,
		"toPeerId":   toPeerID,
	})
	if err != nil {
		return err
	}
	return c.trySend(frame)
}

// SendHeartbeatSync emits a signed heartbeat without blocking; used
// internally by the heartbeat loop.
func (c *Client) SendHeartbeatSync(peerID string) error {
	frame, err := buildEnvelope(c.identity, TypeHeartbeat, map[string]any{
		"peerId": peerID,
	})
	if err != nil {
		return err
	}
	return c.trySend(frame)
}
