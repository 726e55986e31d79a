// Package rendezvous is an in-memory mock of the external rendezvous
// service's wire protocol: registration, username lookup, and signaling
// message routing between two connected clients, with real Ed25519
// envelope verification. It exists to drive the signaling client's
// integration tests against a live WebSocket round trip without a real
// cloud service; it is not a production server.
package rendezvous

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/zerodha/logf"

	"github.com/questxen/pulse/identity"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server is a mock rendezvous service: one registry of connected peers,
// shared across every WebSocket connection it accepts.
type Server struct {
	identity *identity.KeyPair
	registry *registry
	log      logf.Logger
}

// NewServer creates a mock server that signs its outbound envelopes with
// serverKey and logs diagnostics through log.
func NewServer(serverKey *identity.KeyPair, log logf.Logger) *Server {
	return &Server{
		identity: serverKey,
		registry: newRegistry(),
		log:      log,
	}
}

// Handler returns the http.Handler to mount at the WebSocket endpoint,
// suitable for httptest.NewServer.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.serveWS)
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	p := newConnectedPeer(conn)
	defer s.disconnect(p)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		s.handle(p, data)
	}
}

func (s *Server) disconnect(p *connectedPeer) {
	if p.peerID == "" {
		return
	}
	s.registry.remove(p.peerID)
	for _, other := range s.registry.others(p.peerID) {
		s.sendSigned(other.conn, "user_offline", map[string]any{"peerId": p.peerID})
	}
}
