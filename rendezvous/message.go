package rendezvous

// clientEnvelope is decoded first from every inbound frame to read the
// type tag, timestamp, and signature before decoding type-specific
// fields.
type clientEnvelope struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
	Signature string `json:"signature"`
}

type registerMsg struct {
	Username  string `json:"username"`
	PublicKey string `json:"publicKey"`
}

type findUserMsg struct {
	PeerID         string `json:"peerId"`
	TargetUsername string `json:"targetUsername"`
}

type offerMsg struct {
	FromPeerID string `json:"fromPeerId"`
	ToPeerID   string `json:"toPeerId"`
	SDP        string `json:"sdp"`
}

type answerMsg struct {
	FromPeerID string `json:"fromPeerId"`
	ToPeerID   string `json:"toPeerId"`
	SDP        string `json:"sdp"`
}

type iceCandidateMsg struct {
	FromPeerID string `json:"fromPeerId"`
	ToPeerID   string `json:"toPeerId"`
	Candidate  string `json:"candidate"`
}

type rejectCallMsg struct {
	FromPeerID string `json:"fromPeerId"`
	ToPeerID   string `json:"toPeerId"`
	Reason     string `json:"reason"`
}

type hangupMsg struct {
	FromPeerID string `json:"fromPeerId"`
	ToPeerID   string `json:"toPeerId"`
}

type heartbeatMsg struct {
	PeerID string `json:"peerId"`
}
