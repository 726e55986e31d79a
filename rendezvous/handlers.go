package rendezvous

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/questxen/pulse/identity"
)

func (s *Server) handle(p *connectedPeer, raw []byte) {
	var env clientEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.log.Warn("dropping malformed frame", "error", err)
		return
	}

	switch env.Type {
	case "register":
		s.handleRegister(p, raw)
	case "find_user":
		s.handleFindUser(p, raw)
	case "offer":
		s.handleOffer(p, raw)
	case "answer":
		s.handleAnswer(p, raw)
	case "ice_candidate":
		s.handleIceCandidate(p, raw)
	case "reject_call":
		s.handleRejectCall(p, raw)
	case "hangup":
		s.handleHangup(p, raw)
	case "heartbeat":
		s.handleHeartbeat(p, raw)
	default:
		s.log.Warn("dropping unknown message type", "type", env.Type)
	}
}

func (s *Server) handleRegister(p *connectedPeer, raw []byte) {
	var m registerMsg
	if err := json.Unmarshal(raw, &m); err != nil {
		s.sendError(p, 400, "malformed register")
		return
	}

	var env clientEnvelope
	if err := json.Unmarshal(raw, &env); err != nil || !verifySignature(raw, env, m.PublicKey) {
		s.sendError(p, 401, "signature verification failed")
		return
	}

	peerID := uuid.NewString()
	p.peerID = peerID
	s.registry.add(&registeredPeer{peerID: peerID, username: m.Username, publicKey: m.PublicKey, conn: p})

	s.sendSigned(p, "registered", map[string]any{
		"peerId":   peerID,
		"username": m.Username,
	})
}

func (s *Server) handleFindUser(p *connectedPeer, raw []byte) {
	var m findUserMsg
	if err := json.Unmarshal(raw, &m); err != nil {
		return
	}
	if !s.verifyFromRegistered(p, raw, m.PeerID) {
		s.sendError(p, 401, "signature verification failed")
		return
	}

	target, ok := s.registry.byUsernameLookup(m.TargetUsername)
	if !ok {
		s.sendSigned(p, "user_not_found", map[string]any{"username": m.TargetUsername})
		return
	}
	s.sendSigned(p, "user_found", map[string]any{
		"peerId":   target.peerID,
		"username": target.username,
	})
}

func (s *Server) handleOffer(p *connectedPeer, raw []byte) {
	var m offerMsg
	if err := json.Unmarshal(raw, &m); err != nil {
		return
	}
	if !s.verifyFromRegistered(p, raw, m.FromPeerID) {
		s.sendError(p, 401, "signature verification failed")
		return
	}
	target, ok := s.registry.byID(m.ToPeerID)
	if !ok {
		return
	}
	fromPeer, _ := s.registry.byID(m.FromPeerID)
	s.sendSigned(target.conn, "incoming_offer", map[string]any{
		"fromPeerId":   m.FromPeerID,
		"fromUsername": fromPeer.username,
		"sdp":          m.SDP,
	})
}

func (s *Server) handleAnswer(p *connectedPeer, raw []byte) {
	var m answerMsg
	if err := json.Unmarshal(raw, &m); err != nil {
		return
	}
	if !s.verifyFromRegistered(p, raw, m.FromPeerID) {
		s.sendError(p, 401, "signature verification failed")
		return
	}
	target, ok := s.registry.byID(m.ToPeerID)
	if !ok {
		return
	}
	s.sendSigned(target.conn, "incoming_answer", map[string]any{
		"fromPeerId": m.FromPeerID,
		"sdp":        m.SDP,
	})
}

func (s *Server) handleIceCandidate(p *connectedPeer, raw []byte) {
	var m iceCandidateMsg
	if err := json.Unmarshal(raw, &m); err != nil {
		return
	}
	if !s.verifyFromRegistered(p, raw, m.FromPeerID) {
		s.sendError(p, 401, "signature verification failed")
		return
	}
	target, ok := s.registry.byID(m.ToPeerID)
	if !ok {
		return
	}
	s.sendSigned(target.conn, "incoming_ice_candidate", map[string]any{
		"fromPeerId": m.FromPeerID,
		"candidate":  m.Candidate,
	})
}

func (s *Server) handleRejectCall(p *connectedPeer, raw []byte) {
	var m rejectCallMsg
	if err := json.Unmarshal(raw, &m); err != nil {
		return
	}
	if !s.verifyFromRegistered(p, raw, m.FromPeerID) {
		s.sendError(p, 401, "signature verification failed")
		return
	}
	target, ok := s.registry.byID(m.ToPeerID)
	if !ok {
		return
	}
	s.sendSigned(target.conn, "call_rejected", map[string]any{
		"fromPeerId": m.FromPeerID,
		"reason":     m.Reason,
	})
}

func (s *Server) handleHangup(p *connectedPeer, raw []byte) {
	var m hangupMsg
	if err := json.Unmarshal(raw, &m); err != nil {
		return
	}
	if !s.verifyFromRegistered(p, raw, m.FromPeerID) {
		s.sendError(p, 401, "signature verification failed")
		return
	}
	target, ok := s.registry.byID(m.ToPeerID)
	if !ok {
		return
	}
	s.sendSigned(target.conn, "call_ended", map[string]any{
		"fromPeerId": m.FromPeerID,
	})
}

func (s *Server) handleHeartbeat(p *connectedPeer, raw []byte) {
	var m heartbeatMsg
	if err := json.Unmarshal(raw, &m); err != nil {
		return
	}
	if !s.verifyFromRegistered(p, raw, m.PeerID) {
		return
	}
	s.sendSigned(p, "pong", map[string]any{})
}

// verifyFromRegistered checks that p has already registered as
// claimedPeerID and that raw's signature verifies against that peer's
// stored public key.
func (s *Server) verifyFromRegistered(p *connectedPeer, raw []byte, claimedPeerID string) bool {
	if p.peerID == "" || p.peerID != claimedPeerID {
		return false
	}
	peer, ok := s.registry.byID(claimedPeerID)
	if !ok {
		return false
	}
	var env clientEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return false
	}
	return verifySignature(raw, env, peer.publicKey)
}

// verifySignature re-derives the canonical form of raw and checks it
// against env's signature for the claimed public key.
func verifySignature(raw []byte, env clientEnvelope, publicKeyB64 string) bool {
	canonical, err := identity.CanonicalizeJSON(raw)
	if err != nil {
		return false
	}
	pubKey, err := base64.StdEncoding.DecodeString(publicKeyB64)
	if err != nil {
		return false
	}
	sig, err := base64.StdEncoding.DecodeString(env.Signature)
	if err != nil {
		return false
	}
	return identity.Verify(pubKey, canonical, sig)
}

func (s *Server) sendSigned(p *connectedPeer, msgType string, fields map[string]any) {
	envelope := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		envelope[k] = v
	}
	envelope["type"] = msgType
	envelope["timestamp"] = time.Now().UnixMilli()

	sig, err := s.identity.SignCanonical(envelope)
	if err != nil {
		s.log.Error("sign outbound message failed", "error", err, "type", msgType)
		return
	}
	envelope["signature"] = sig

	if err := p.writeJSON(envelope); err != nil {
		s.log.Warn("write to peer failed", "error", err, "type", msgType, "peer_id", p.peerID)
	}
}

func (s *Server) sendError(p *connectedPeer, code int32, message string) {
	s.sendSigned(p, "error", map[string]any{
		"code":    code,
		"message": message,
	})
}
