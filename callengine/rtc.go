package callengine

import (
	"net"
	"strings"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"
)

// defaultICEServers are the public STUN servers the engine tries absent
// any TURN configuration.
var defaultICEServers = []webrtc.ICEServer{
	{URLs: []string{"stun:stun.nextcloud.com:443"}},
	{URLs: []string{"stun:stun.freeswitch.org:3478"}},
	{URLs: []string{"stun:stun.stunprotocol.org:3478"}},
	{URLs: []string{"stun:stun.l.google.com:19302"}},
	{URLs: []string{"stun:stun1.l.google.com:19302"}},
	{URLs: []string{"stun:stun2.l.google.com:19302"}},
}

// excludedInterfaceSubstrings matches virtual/tunnel/loopback adapters
// that should never be offered as ICE candidates, case-insensitively.
var excludedInterfaceSubstrings = []string{
	"hyper-v", "vmware", "virtualbox", "docker", "vethernet",
	"bluetooth", "loopback", "teredo", "isatap", "6to4",
}

// TURNConfig describes one configured TURN relay, appended to
// defaultICEServers when present.
type TURNConfig struct {
	URLs       []string
	Username   string
	Credential string
}

// buildICEServers returns the default STUN list plus any configured TURN
// servers appended.
func buildICEServers(turn []TURNConfig) []webrtc.ICEServer {
	servers := make([]webrtc.ICEServer, len(defaultICEServers))
	copy(servers, defaultICEServers)
	for _, t := range turn {
		servers = append(servers, webrtc.ICEServer{
			URLs:       t.URLs,
			Username:   t.Username,
			Credential: t.Credential,
		})
	}
	return servers
}

// newAPI builds a pion API with Opus registered, default RTCP
// interceptors (including NACK), and interface/IP filters that exclude
// virtual adapters by name and loopback/link-local addresses by IP.
func newAPI() (*webrtc.API, error) {
	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType:  webrtc.MimeTypeOpus,
			ClockRate: 48000,
			Channels:  1,
		},
		PayloadType: 111,
	}, webrtc.RTPCodecTypeAudio); err != nil {
		return nil, err
	}

	interceptorRegistry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, interceptorRegistry); err != nil {
		return nil, err
	}

	settingEngine := webrtc.SettingEngine{}
	settingEngine.SetInterfaceFilter(allowInterface)
	settingEngine.SetIPFilter(allowIP)

	return webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithInterceptorRegistry(interceptorRegistry),
		webrtc.WithSettingEngine(settingEngine),
	), nil
}

// allowInterface reports whether ifName may be used for ICE gathering:
// anything matching one of excludedInterfaceSubstrings is rejected.
func allowInterface(ifName string) bool {
	lower := strings.ToLower(ifName)
	for _, excl := range excludedInterfaceSubstrings {
		if strings.Contains(lower, excl) {
			return false
		}
	}
	return true
}

// allowIP reports whether ip may be advertised as an ICE candidate:
// loopback and link-local addresses are rejected, since they are never
// reachable by a remote peer.
func allowIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() {
		return false
	}
	return true
}
