package audio

import "sync"

// FrameSamples is the size of one AudioFrame: 20ms of mono audio at 48kHz.
const FrameSamples = 960

// RingCapacitySamples is the capacity of each ring buffer: 10 frames,
// 9,600 samples.
const RingCapacitySamples = 10 * FrameSamples

// RingBuffer is a bounded single-producer/single-consumer FIFO of mono
// float32 samples. Push on a full buffer silently drops the newest
// samples; pop on an empty (or underfull) buffer never blocks — callers
// get either "not enough data yet" (PopExact) or zero-padded silence
// (PopPadded).
type RingBuffer struct {
	mu   sync.Mutex
	buf  []float32
	head int // next sample to read
	size int // number of valid samples currently buffered
}

// NewRingBuffer creates a ring buffer with the given sample capacity.
func NewRingBuffer(capacity int) *RingBuffer {
	return &RingBuffer{buf: make([]float32, capacity)}
}

// Push appends samples to the buffer. Once the buffer is full, any
// further incoming samples are dropped (the newest data is lost, not the
// oldest); samples already buffered are never overwritten.
func (r *RingBuffer) Push(samples []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cap := len(r.buf)
	free := cap - r.size
	if free <= 0 {
		return
	}
	if len(samples) > free {
		samples = samples[:free]
	}

	tail := (r.head + r.size) % cap
	for _, s := range samples {
		r.buf[tail] = s
		tail = (tail + 1) % cap
	}
	r.size += len(samples)
}

// PopExact returns exactly n samples and true if at least n are
// buffered, otherwise it returns nil, false without consuming anything.
// Never blocks.
func (r *RingBuffer) PopExact(n int) ([]float32, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size < n {
		return nil, false
	}

	out := make([]float32, n)
	cap := len(r.buf)
	for i := 0; i < n; i++ {
		out[i] = r.buf[(r.head+i)%cap]
	}
	r.head = (r.head + n) % cap
	r.size -= n

	return out, true
}

// PopPadded returns up to n buffered samples followed by zero-valued
// silence for whatever is missing. Used by the playback device callback,
// which must always produce exactly n samples.
func (r *RingBuffer) PopPadded(n int) []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]float32, n)
	avail := r.size
	if avail > n {
		avail = n
	}

	cap := len(r.buf)
	for i := 0; i < avail; i++ {
		out[i] = r.buf[(r.head+i)%cap]
	}
	r.head = (r.head + avail) % cap
	r.size -= avail

	return out
}

// Len returns the number of samples currently buffered.
func (r *RingBuffer) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}
