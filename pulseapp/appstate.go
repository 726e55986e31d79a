// Package pulseapp assembles the process-wide AppState aggregate:
// Identity, the signaling client, the call engine, the orchestrator, and
// the contact store are each constructed once here and passed explicitly
// through command invocations rather than reached via package-level
// globals.
package pulseapp

import (
	"context"
	"path/filepath"

	"github.com/zerodha/logf"

	"github.com/questxen/pulse/audio"
	"github.com/questxen/pulse/callengine"
	"github.com/questxen/pulse/contactstore"
	"github.com/questxen/pulse/identity"
	"github.com/questxen/pulse/orchestrator"
	"github.com/questxen/pulse/pulseconfig"
	"github.com/questxen/pulse/signaling"
)

// AppState is the single aggregate root for the running process.
type AppState struct {
	Config       *pulseconfig.Config
	Identity     *identity.KeyPair
	Signaling    *signaling.Client
	CallEngine   *callengine.Engine
	Contacts     contactstore.Store
	Orchestrator *orchestrator.Orchestrator

	log logf.Logger
}

// New wires every component together against device for audio I/O. It
// does not connect to the rendezvous server or start the orchestrator's
// loops; callers decide when to do that (see Connect).
func New(device audio.Device) (*AppState, error) {
	log := logf.New(logf.Opts{})

	cfg, err := pulseconfig.Load()
	if err != nil {
		return nil, err
	}

	id, err := identity.LoadOrCreate()
	if err != nil {
		return nil, err
	}

	dataDir, err := identity.KeyFilePath()
	if err != nil {
		return nil, err
	}
	contacts, err := contactstore.Open(filepath.Join(filepath.Dir(filepath.Dir(dataDir)), "contacts.db"))
	if err != nil {
		return nil, err
	}

	sig := signaling.NewClient(cfg.SignalingURL, id, log)
	engine := callengine.NewEngine(device, log)
	orch := orchestrator.New(sig, engine, contacts, log)

	return &AppState{
		Config:       cfg,
		Identity:     id,
		Signaling:    sig,
		CallEngine:   engine,
		Contacts:     contacts,
		Orchestrator: orch,
		log:          log,
	}, nil
}

// Connect dials the rendezvous server, registers as username, and starts
// the orchestrator's subscription loops in the background. ctx governs
// the orchestrator's lifetime; cancel it to tear the whole call core
// down.
func (a *AppState) Connect(ctx context.Context, username string) error {
	if err := a.Signaling.ConnectAndRegister(ctx, username); err != nil {
		return err
	}
	go a.Orchestrator.Run(ctx)
	return nil
}
