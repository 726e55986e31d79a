package audio

import (
	"math"
	"sync"
	"sync/atomic"
)

// SampleRate is the engine's internal sample rate; all ring buffers and
// AudioFrames are at this rate regardless of device rate.
const SampleRate = 48000

type streamState int

const (
	streamClosed streamState = iota
	streamRunning
)

// Handler owns the capture and playback ring buffers, the device
// streams, mute flag, and level meters for one call's audio I/O. The
// zero value is not usable; construct with NewHandler.
type Handler struct {
	device Device

	captureRing  *RingBuffer
	playbackRing *RingBuffer

	captureStream  Stream
	playbackStream Stream

	captureState     streamState
	playbackState    streamState
	playbackChannels int
	mu               sync.Mutex // guards the two stream handles and their state

	muted atomicBool

	inputLevel  atomicFloat
	outputLevel atomicFloat
}

// NewHandler creates an audio Handler bound to device.
func NewHandler(device Device) *Handler {
	return &Handler{
		device:       device,
		captureRing:  NewRingBuffer(RingCapacitySamples),
		playbackRing: NewRingBuffer(RingCapacitySamples),
	}
}

// StartCapture opens the default input device, negotiating f32 samples
// at a supported rate, and begins feeding the capture ring buffer at
// SampleRate (resampling via linear interpolation if the device rate
// differs).
func (h *Handler) StartCapture() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.captureState == streamRunning {
		return nil
	}

	caps, err := h.device.InputCapabilities()
	if err != nil {
		return ErrNoInputDevice
	}
	deviceRate, err := pickBestConfig(caps, SampleRate)
	if err != nil {
		return err
	}

	stream, err := h.device.OpenInputStream(deviceRate, func(block []float32) {
		h.onCaptureBlock(block, deviceRate)
	})
	if err != nil {
		return ErrStreamBuild
	}

	h.captureStream = stream
	h.captureState = streamRunning
	return nil
}

func (h *Handler) onCaptureBlock(block []float32, deviceRate int) {
	if h.muted.Load() {
		for i := range block {
			block[i] = 0
		}
	}
	h.inputLevel.Store(rms(block))

	resampled := block
	if deviceRate != SampleRate {
		resampled = ResampleLinear(block, deviceRate, SampleRate)
	}
	h.captureRing.Push(resampled)
}

// StartPlayback opens the default output device, negotiating f32
// samples, and begins pulling from the playback ring buffer, resampling
// from SampleRate to the device rate and duplicating each mono sample
// across the device's reported OutputChannels before handing the
// interleaved block to the device callback.
func (h *Handler) StartPlayback() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.playbackState == streamRunning {
		return nil
	}

	caps, err := h.device.OutputCapabilities()
	if err != nil {
		return ErrNoOutputDevice
	}
	deviceRate, err := pickBestConfig(caps, SampleRate)
	if err != nil {
		return err
	}

	channels := h.device.OutputChannels()
	if channels < 1 {
		channels = 1
	}
	h.playbackChannels = channels

	stream, err := h.device.OpenOutputStream(deviceRate, func(n int) []float32 {
		return h.onPlaybackPull(n, deviceRate)
	})
	if err != nil {
		return ErrStreamPlay
	}

	h.playbackStream = stream
	h.playbackState = streamRunning
	return nil
}

// onPlaybackPull returns n interleaved samples at deviceRate across
// h.playbackChannels channels. It pulls n/channels mono samples at
// SampleRate, resamples to deviceRate, and duplicates each resulting
// sample across every channel slot (mono-to-N-channel fanout by sample
// duplication).
func (h *Handler) onPlaybackPull(n int, deviceRate int) []float32 {
	channels := h.playbackChannels
	if channels < 1 {
		channels = 1
	}
	monoN := n / channels
	if monoN <= 0 {
		monoN = 1
	}

	wantAtEngineRate := monoN
	if deviceRate != SampleRate {
		wantAtEngineRate = monoN * SampleRate / deviceRate
		if wantAtEngineRate <= 0 {
			wantAtEngineRate = 1
		}
	}

	samples := h.playbackRing.PopPadded(wantAtEngineRate)
	mono := samples
	if deviceRate != SampleRate {
		mono = ResampleLinear(samples, SampleRate, deviceRate)
	}

	h.outputLevel.Store(rms(mono))

	if len(mono) < monoN {
		padded := make([]float32, monoN)
		copy(padded, mono)
		mono = padded
	} else if len(mono) > monoN {
		mono = mono[:monoN]
	}

	out := make([]float32, monoN*channels)
	for i, s := range mono {
		for c := 0; c < channels; c++ {
			out[i*channels+c] = s
		}
	}

	if len(out) < n {
		padded := make([]float32, n)
		copy(padded, out)
		out = padded
	} else if len(out) > n {
		out = out[:n]
	}
	return out
}

// ReadFrame returns the next 960-sample AudioFrame if the capture ring
// holds at least that many samples, otherwise (nil, false). Never
// blocks.
func (h *Handler) ReadFrame() ([]float32, bool) {
	return h.captureRing.PopExact(FrameSamples)
}

// WriteSamples appends samples to the playback ring; overflow silently
// discards the newest samples.
func (h *Handler) WriteSamples(samples []float32) {
	h.playbackRing.Push(samples)
}

// SetMuted mutes or unmutes capture. Muting zeros captured samples
// before they reach the ring buffer; the input level meter still
// updates (on zeros, so it reads 0).
func (h *Handler) SetMuted(muted bool) {
	h.muted.Store(muted)
}

// IsMuted reports the current mute state.
func (h *Handler) IsMuted() bool {
	return h.muted.Load()
}

// Levels returns the most recent (input, output) RMS pair, each clamped
// to [0, 1].
func (h *Handler) Levels() (input, output float32) {
	return h.inputLevel.Load(), h.outputLevel.Load()
}

// Close stops both streams if running. Dropping the stream handle must
// stop the device callback before returning.
func (h *Handler) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var firstErr error
	if h.captureStream != nil {
		if err := h.captureStream.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
		h.captureStream = nil
		h.captureState = streamClosed
	}
	if h.playbackStream != nil {
		if err := h.playbackStream.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
		h.playbackStream = nil
		h.playbackState = streamClosed
	}
	return firstErr
}

// rms computes the root-mean-square amplitude of a block, clamped to
// [0, 1].
func rms(block []float32) float32 {
	if len(block) == 0 {
		return 0
	}
	var sumSq float64
	for _, s := range block {
		sumSq += float64(s) * float64(s)
	}
	v := math.Sqrt(sumSq / float64(len(block)))
	if v > 1 {
		v = 1
	}
	return float32(v)
}

// ResampleLinear resamples mono float32 samples from inRate to outRate
// using linear interpolation. A polyphase resampler would be a compatible
// drop-in for higher fidelity but is not required here. Shared with
// pkg/opuscodec so device-rate and RTP-pipeline resampling stay
// bit-for-bit consistent.
func ResampleLinear(input []float32, inRate, outRate int) []float32 {
	if inRate == outRate || len(input) == 0 {
		out := make([]float32, len(input))
		copy(out, input)
		return out
	}

	ratio := float64(outRate) / float64(inRate)
	outN := int(float64(len(input)) * ratio)
	out := make([]float32, outN)

	for i := 0; i < outN; i++ {
		srcPos := float64(i) / ratio
		idx := int(srcPos)
		frac := srcPos - float64(idx)

		idx1, idx2 := idx, idx+1
		if idx1 >= len(input) {
			idx1 = len(input) - 1
		}
		if idx2 >= len(input) {
			idx2 = len(input) - 1
		}
		out[i] = float32(float64(input[idx1])*(1-frac) + float64(input[idx2])*frac)
	}
	return out
}

// atomicBool and atomicFloat give the mute flag and level meters
// single-word-atomic semantics: readers may observe the last write with
// no stronger memory-ordering contract.
type atomicBool struct {
	v atomic.Bool
}

func (a *atomicBool) Store(b bool) { a.v.Store(b) }
func (a *atomicBool) Load() bool   { return a.v.Load() }

type atomicFloat struct {
	bits atomic.Uint32
}

func (a *atomicFloat) Store(f float32) { a.bits.Store(math.Float32bits(f)) }
func (a *atomicFloat) Load() float32   { return math.Float32frombits(a.bits.Load()) }
