// Command pulse-core is a minimal CLI host demonstrating AppState
// wiring: register with the rendezvous server, optionally place one call
// to a peer ID given on the command line, and log every UI event.
// Incoming calls are logged, not accepted.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/questxen/pulse/audio"
	"github.com/questxen/pulse/pulseapp"
)

func main() {
	username := flag.String("username", "", "username to register with the rendezvous server")
	dial := flag.String("dial", "", "peer_id to call immediately after registering")
	flag.Parse()

	if *username == "" {
		fmt.Fprintln(os.Stderr, "usage: pulse-core -username <name> [-dial <peer_id>]")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := pulseapp.New(audio.NewReferenceDevice("pulse-core"))
	if err != nil {
		log.Fatalf("pulse-core: init: %v", err)
	}

	if err := app.Connect(ctx, *username); err != nil {
		log.Fatalf("pulse-core: connect: %v", err)
	}
	log.Printf("pulse-core: registered as %q (peer_id=%s)", *username, app.Signaling.PeerID())

	if *dial != "" {
		offer, err := app.CallEngine.StartCall(*dial)
		if err != nil {
			log.Fatalf("pulse-core: start call: %v", err)
		}
		if err := app.Signaling.SendOffer(ctx, app.Signaling.PeerID(), *dial, offer); err != nil {
			log.Fatalf("pulse-core: send offer: %v", err)
		}
		log.Printf("pulse-core: calling %s", *dial)
	}

	events := app.Orchestrator.UIEvents()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			log.Printf("pulse-core: %+v", ev)
		}
	}
}
