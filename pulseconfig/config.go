// Package pulseconfig loads the core's one external configuration
// knob — SIGNALING_URL — via koanf's environment provider. Config
// carries nothing else; the ICE server list and the signaling timeouts
// are constants in the callengine and signaling packages.
package pulseconfig

import (
	"strings"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// DefaultSignalingURL is used when SIGNALING_URL is unset.
const DefaultSignalingURL = "wss://rendezvous.pulse.chat/ws"

// Config is the core's resolved runtime configuration.
type Config struct {
	SignalingURL string
}

// Load reads environment variables into a Config, falling back to
// DefaultSignalingURL when SIGNALING_URL is unset or empty.
func Load() (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToUpper(s)
	}), nil); err != nil {
		return nil, err
	}

	url := k.String("SIGNALING_URL")
	if url == "" {
		url = DefaultSignalingURL
	}

	return &Config{SignalingURL: url}, nil
}
