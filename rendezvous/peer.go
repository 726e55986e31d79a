package rendezvous

import (
	"sync"

	"github.com/gorilla/websocket"
)

// connectedPeer wraps one live WebSocket connection. peerID is set once
// the connection completes registration; before that it identifies no
// one and cannot originate routed messages.
type connectedPeer struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	peerID string
}

func newConnectedPeer(conn *websocket.Conn) *connectedPeer {
	return &connectedPeer{conn: conn}
}

func (p *connectedPeer) writeJSON(v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn.WriteJSON(v)
}

// registeredPeer is a connectedPeer that has completed the register
// handshake, indexed by both peerID and username.
type registeredPeer struct {
	peerID    string
	username  string
	publicKey string
	conn      *connectedPeer
}

// registry tracks every currently registered peer.
type registry struct {
	mu         sync.RWMutex
	byPeerID   map[string]*registeredPeer
	byUsername map[string]*registeredPeer
}

func newRegistry() *registry {
	return &registry{
		byPeerID:   make(map[string]*registeredPeer),
		byUsername: make(map[string]*registeredPeer),
	}
}

func (r *registry) add(p *registeredPeer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byPeerID[p.peerID] = p
	r.byUsername[p.username] = p
}

func (r *registry) remove(peerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.byPeerID[peerID]; ok {
		delete(r.byPeerID, peerID)
		delete(r.byUsername, p.username)
	}
}

func (r *registry) byID(peerID string) (*registeredPeer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byPeerID[peerID]
	return p, ok
}

func (r *registry) byUsernameLookup(username string) (*registeredPeer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byUsername[username]
	return p, ok
}

func (r *registry) others(exceptPeerID string) []*registeredPeer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*registeredPeer, 0, len(r.byPeerID))
	for id, p := range r.byPeerID {
		if id != exceptPeerID {
			out = append(out, p)
		}
	}
	return out
}
