package signaling_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zerodha/logf"

	"github.com/questxen/pulse/identity"
	"github.com/questxen/pulse/rendezvous"
	"github.com/questxen/pulse/signaling"
)

// newSilentUpgradeHandler upgrades every connection but never writes a
// reply, used to exercise the registration-timeout path.
func newSilentUpgradeHandler(t *testing.T) http.Handler {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
}

func newMockServer(t *testing.T) (wsURL string, teardown func()) {
	t.Helper()
	serverKey, err := identity.GenerateEphemeral()
	if err != nil {
		t.Fatalf("GenerateEphemeral: %v", err)
	}
	srv := rendezvous.NewServer(serverKey, logf.New(logf.Opts{}))
	ts := httptest.NewServer(srv.Handler())
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws", ts.Close
}

func newTestClient(t *testing.T, url string) *signaling.Client {
	t.Helper()
	kp, err := identity.GenerateEphemeral()
	if err != nil {
		t.Fatalf("GenerateEphemeral: %v", err)
	}
	return signaling.NewClient(url, kp, logf.New(logf.Opts{}))
}

// Registering as "alice" assigns a non-empty peer ID and broadcasts a
// matching RegisteredEvent.
func TestRegisterAndObserveRegistered(t *testing.T) {
	url, teardown := newMockServer(t)
	defer teardown()

	alice := newTestClient(t, url)
	events, unsubscribe := alice.Events()
	defer unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := alice.ConnectAndRegister(ctx, "alice"); err != nil {
		t.Fatalf("ConnectAndRegister: %v", err)
	}
	defer alice.Disconnect()

	if alice.PeerID() == "" {
		t.Fatal("PeerID() is empty after registration")
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-events:
			if reg, ok := ev.(signaling.RegisteredEvent); ok {
				if reg.Username != "alice" {
					t.Fatalf("RegisteredEvent.Username = %q, want alice", reg.Username)
				}
				if reg.PeerID != alice.PeerID() {
					t.Fatalf("RegisteredEvent.PeerID = %q, want %q", reg.PeerID, alice.PeerID())
				}
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for RegisteredEvent")
		}
	}
}

// Once both peers are registered, an offer sent to alice's peer ID is
// delivered as an IncomingCallEvent.
func TestIncomingOfferDeliversIncomingCallEvent(t *testing.T) {
	url, teardown := newMockServer(t)
	defer teardown()

	alice := newTestClient(t, url)
	bob := newTestClient(t, url)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := alice.ConnectAndRegister(ctx, "alice"); err != nil {
		t.Fatalf("alice ConnectAndRegister: %v", err)
	}
	defer alice.Disconnect()
	if err := bob.ConnectAndRegister(ctx, "bob"); err != nil {
		t.Fatalf("bob ConnectAndRegister: %v", err)
	}
	defer bob.Disconnect()

	events, unsubscribe := alice.Events()
	defer unsubscribe()

	const sdp = "v=0\r\no=- 0 0 IN IP4 127.0.0.1\r\n"
	if err := bob.SendOffer(ctx, bob.PeerID(), alice.PeerID(), sdp); err != nil {
		t.Fatalf("SendOffer: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-events:
			if call, ok := ev.(signaling.IncomingCallEvent); ok {
				if call.FromPeerID != bob.PeerID() {
					t.Fatalf("IncomingCallEvent.FromPeerID = %q, want %q", call.FromPeerID, bob.PeerID())
				}
				if call.FromUsername != "bob" {
					t.Fatalf("IncomingCallEvent.FromUsername = %q, want bob", call.FromUsername)
				}
				if call.SDP != sdp {
					t.Fatalf("IncomingCallEvent.SDP = %q, want %q", call.SDP, sdp)
				}
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for IncomingCallEvent")
		}
	}
}

// A server that never answers register within 10 seconds yields
// ErrRegistrationFailed wrapping "Timeout".
func TestRegisterTimesOutWithoutResponse(t *testing.T) {
	silentSrv := httptest.NewServer(newSilentUpgradeHandler(t))
	defer silentSrv.Close()
	url := "ws" + strings.TrimPrefix(silentSrv.URL, "http") + "/ws"

	client := newTestClient(t, url)
	ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
	defer cancel()

	err := client.ConnectAndRegister(ctx, "alice")
	if err == nil {
		t.Fatal("expected registration timeout error")
	}
	if !strings.Contains(err.Error(), "Timeout") {
		t.Fatalf("error = %v, want it to mention Timeout", err)
	}
}
