package audio

import (
	"sync"
	"time"
)

// Capability describes one configuration range a device reports
// supporting, mirroring a cpal SupportedStreamConfigRange: a sample
// format plus the inclusive sample-rate range it can run at.
type Capability struct {
	Format  string // "f32" is the only format this engine negotiates
	MinRate int
	MaxRate int
}

// supports reports whether rate falls within the capability's range.
func (c Capability) supports(rate int) bool {
	return rate >= c.MinRate && rate <= c.MaxRate
}

// Stream is a running capture or playback stream. Dropping the handle
// (calling Stop) must stop the device callback before returning — Stop
// is the only transition back to Closed from Running.
type Stream interface {
	Stop() error
}

// Device is the capture/playback surface the audio engine drives. No
// cross-platform audio device library appears anywhere in the dependency
// pack (no cpal analogue), so production hosts implement this interface
// against whatever platform API they embed; Device itself, and the
// reference implementation below, carry no platform code.
type Device interface {
	Name() string
	InputCapabilities() ([]Capability, error)
	OutputCapabilities() ([]Capability, error)
	// OutputChannels reports how many interleaved channels
	// OpenOutputStream's pull callback expects per sample frame (2 for
	// stereo, 1 for mono). The engine's own audio is mono throughout;
	// the Handler duplicates each mono sample across this many channel
	// slots before handing a block to the device.
	OutputChannels() int
	// OpenInputStream starts calling onBlock with interleaved mono f32
	// samples at rate until the returned Stream is stopped.
	OpenInputStream(rate int, onBlock func(samples []float32)) (Stream, error)
	// OpenOutputStream starts calling pull to fetch the next block of
	// interleaved samples to play at rate until the returned Stream is
	// stopped. pull's n is a total sample count across all
	// OutputChannels, not a per-channel count.
	OpenOutputStream(rate int, pull func(n int) []float32) (Stream, error)
}

// pickBestConfig prefers exact 48kHz f32 support, else any f32 config
// with the request clamped into its supported range. No f32 capability
// at all is fatal.
func pickBestConfig(caps []Capability, wantRate int) (int, error) {
	var f32 []Capability
	for _, c := range caps {
		if c.Format == "f32" {
			f32 = append(f32, c)
		}
	}
	if len(f32) == 0 {
		return 0, ErrUnsupportedConfig
	}

	for _, c := range f32 {
		if c.supports(wantRate) {
			return wantRate, nil
		}
	}

	best := f32[0]
	rate := wantRate
	if rate < best.MinRate {
		rate = best.MinRate
	}
	if rate > best.MaxRate {
		rate = best.MaxRate
	}
	return rate, nil
}

// refDevice is a pure-Go reference Device: it generates silence on
// capture and discards playback output, driven by a ticker at the
// negotiated block rate. It exists so the engine above it (ring buffers,
// resampling, muting, level metering) is fully testable without real
// hardware, and so a platform-specific Device can be dropped in later
// without touching anything in this package.
type refDevice struct {
	name     string
	caps     []Capability
	channels int
}

// NewReferenceDevice returns a Device reporting support for f32 at 8kHz
// through 192kHz, with a default stream offering exact 48kHz and a
// stereo output (2 channels), so the mono-to-N-channel fanout path is
// exercised even without real hardware.
func NewReferenceDevice(name string) Device {
	return &refDevice{
		name:     name,
		caps:     []Capability{{Format: "f32", MinRate: 8000, MaxRate: 192000}},
		channels: 2,
	}
}

func (d *refDevice) Name() string { return d.name }

func (d *refDevice) InputCapabilities() ([]Capability, error) {
	return d.caps, nil
}

func (d *refDevice) OutputCapabilities() ([]Capability, error) {
	return d.caps, nil
}

func (d *refDevice) OutputChannels() int { return d.channels }

const refBlockDuration = 10 * time.Millisecond

func (d *refDevice) OpenInputStream(rate int, onBlock func(samples []float32)) (Stream, error) {
	blockSize := rate * int(refBlockDuration/time.Millisecond) / 1000
	if blockSize <= 0 {
		blockSize = 1
	}
	return newTickerStream(refBlockDuration, func() {
		onBlock(make([]float32, blockSize))
	}), nil
}

func (d *refDevice) OpenOutputStream(rate int, pull func(n int) []float32) (Stream, error) {
	monoBlockSize := rate * int(refBlockDuration/time.Millisecond) / 1000
	if monoBlockSize <= 0 {
		monoBlockSize = 1
	}
	n := monoBlockSize * d.channels
	return newTickerStream(refBlockDuration, func() {
		_ = pull(n)
	}), nil
}

// tickerStream drives a callback on its own goroutine at a fixed period
// until stopped, standing in for a real device's hardware-clocked
// callback thread: audio callbacks run on dedicated OS threads, never
// suspend, and never hold a lock across an await.
type tickerStream struct {
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func newTickerStream(period time.Duration, fn func()) *tickerStream {
	s := &tickerStream{stop: make(chan struct{}), done: make(chan struct{})}
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
	return s
}

func (s *tickerStream) Stop() error {
	s.once.Do(func() { close(s.stop) })
	<-s.done
	return nil
}
