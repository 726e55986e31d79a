package signaling

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/questxen/pulse/identity"
)

// buildEnvelope assembles a client-to-server frame: fields plus the type
// tag and a millisecond timestamp, canonically signed, ready to write to
// the socket as a single text frame.
func buildEnvelope(kp *identity.KeyPair, msgType string, fields map[string]any) ([]byte, error) {
	envelope := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		envelope[k] = v
	}
	envelope["type"] = msgType
	envelope["timestamp"] = time.Now().UnixMilli()

	sig, err := kp.SignCanonical(envelope)
	if err != nil {
		return nil, fmt.Errorf("signaling: sign envelope: %w", err)
	}
	envelope["signature"] = sig

	out, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("signaling: marshal envelope: %w", err)
	}
	return out, nil
}
