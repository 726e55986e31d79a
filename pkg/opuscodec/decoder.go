package opuscodec

import (
	"fmt"

	"gopkg.in/hraban/opus.v2"
)

// Decoder decodes Opus frames back to mono float32 PCM.
type Decoder struct {
	dec *opus.Decoder
}

// NewDecoder creates an Opus decoder matching the Encoder's rate/channels.
func NewDecoder() (*Decoder, error) {
	dec, err := opus.NewDecoder(SampleRate, Channels)
	if err != nil {
		return nil, fmt.Errorf("opuscodec: new decoder: %w", err)
	}
	return &Decoder{dec: dec}, nil
}

// Decode decodes one Opus packet to mono float32 PCM. A packet may carry
// up to 120ms of audio (frames of 2.5-60ms each); the buffer holds
// 6*FrameSamples, the 120ms worst case.
func (d *Decoder) Decode(opusPayload []byte) ([]float32, error) {
	pcm := make([]float32, 6*FrameSamples)
	n, err := d.dec.DecodeFloat32(opusPayload, pcm)
	if err != nil {
		return nil, fmt.Errorf("opuscodec: decode: %w", err)
	}
	return pcm[:n], nil
}
