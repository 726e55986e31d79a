package signaling

// Client-to-server message type tags. Payload field names are camelCase
// per the wire protocol; every client frame additionally carries
// timestamp/signature once canonically signed (see envelope.go).
const (
	TypeRegister     = "register"
	TypeFindUser     = "find_user"
	TypeOffer        = "offer"
	TypeAnswer       = "answer"
	TypeIceCandidate = "ice_candidate"
	TypeRejectCall   = "reject_call"
	TypeHangup       = "hangup"
	TypeHeartbeat    = "heartbeat"
)

// Server-to-client message type tags (snake_case).
const (
	TypeRegistered           = "registered"
	TypeUserFound            = "user_found"
	TypeUserNotFound         = "user_not_found"
	TypeIncomingOffer        = "incoming_offer"
	TypeIncomingAnswer       = "incoming_answer"
	TypeIncomingIceCandidate = "incoming_ice_candidate"
	TypeCallRejected         = "call_rejected"
	TypeCallEnded            = "call_ended"
	TypeUserOnline           = "user_online"
	TypeUserOffline          = "user_offline"
	TypeErrorMsg             = "error"
	TypePong                 = "pong"
)

// inboundEnvelope is decoded first from every server frame; Type selects
// which concrete payload to decode next. Unknown fields are ignored by
// encoding/json by default, matching the wire protocol's forward
// compatibility rule.
type inboundEnvelope struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

type registeredPayload struct {
	PeerID   string `json:"peerId"`
	Username string `json:"username"`
}

type userFoundPayload struct {
	PeerID   string `json:"peerId"`
	Username string `json:"username"`
}

type userNotFoundPayload struct {
	Username string `json:"username"`
}

type incomingOfferPayload struct {
	FromPeerID   string `json:"fromPeerId"`
	FromUsername string `json:"fromUsername"`
	SDP          string `json:"sdp"`
}

type incomingAnswerPayload struct {
	FromPeerID string `json:"fromPeerId"`
	SDP        string `json:"sdp"`
}

type incomingIceCandidatePayload struct {
	FromPeerID string `json:"fromPeerId"`
	Candidate  string `json:"candidate"`
}

type callRejectedPayload struct {
	FromPeerID string `json:"fromPeerId"`
	Reason     string `json:"reason"`
}

type callEndedPayload struct {
	FromPeerID string `json:"fromPeerId"`
}

type userOnlinePayload struct {
	PeerID   string `json:"peerId"`
	Username string `json:"username"`
}

type userOfflinePayload struct {
	PeerID string `json:"peerId"`
}

type errorPayload struct {
	Code    int32  `json:"code"`
	Message string `json:"message"`
}

// IceCandidatePayload is the JSON shape carried as a string inside the
// ice_candidate/incoming_ice_candidate "candidate" field.
type IceCandidatePayload struct {
	Candidate     string `json:"candidate"`
	SDPMid        string `json:"sdpMid"`
	SDPMLineIndex int    `json:"sdpMLineIndex"`
}
