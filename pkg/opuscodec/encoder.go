// Package opuscodec wraps Opus encode/decode for the call engine's single
// mono audio track, plus the sample-rate conversion helper shared with
// audio's own resampling.
package opuscodec

import (
	"fmt"

	"github.com/questxen/pulse/audio"
	"gopkg.in/hraban/opus.v2"
)

// SampleRate and FrameSamples are fixed by the call engine: mono audio,
// 20ms frames at 48kHz (960 samples/frame), matching the AudioFrame shape
// the audio package produces.
const (
	SampleRate   = 48000
	Channels     = 1
	FrameSamples = 960
)

// Encoder encodes mono float32 PCM frames to Opus.
type Encoder struct {
	enc *opus.Encoder
}

// NewEncoder creates an Opus encoder tuned for voice at SampleRate/Channels.
func NewEncoder() (*Encoder, error) {
	enc, err := opus.NewEncoder(SampleRate, Channels, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("opuscodec: new encoder: %w", err)
	}
	enc.SetBitrate(32000)
	return &Encoder{enc: enc}, nil
}

// Encode encodes exactly FrameSamples of mono float32 PCM to an Opus frame.
func (e *Encoder) Encode(pcm []float32) ([]byte, error) {
	if len(pcm) != FrameSamples {
		return nil, fmt.Errorf("opuscodec: encode expects %d samples, got %d", FrameSamples, len(pcm))
	}
	data := make([]byte, 1024)
	n, err := e.enc.EncodeFloat32(pcm, data)
	if err != nil {
		return nil, fmt.Errorf("opuscodec: encode: %w", err)
	}
	return data[:n], nil
}

// ResampleLinear resamples mono float32 samples between rates, reusing the
// audio package's implementation so device-rate and RTP-pipeline resampling
// stay bit-for-bit consistent.
func ResampleLinear(input []float32, inputRate, outputRate int) []float32 {
	return audio.ResampleLinear(input, inputRate, outputRate)
}
