package audio

import "testing"

// Pushing 2000 samples into the capture ring yields two full 960-sample
// frames and then nothing, matching FrameSamples = 960.
func TestHandlerReadFrameYieldsFullFramesOnly(t *testing.T) {
	dev := NewReferenceDevice("test")
	h := NewHandler(dev)

	h.captureRing.Push(make([]float32, 2000))

	if _, ok := h.ReadFrame(); !ok {
		t.Fatal("first ReadFrame: expected a full frame")
	}
	if _, ok := h.ReadFrame(); !ok {
		t.Fatal("second ReadFrame: expected a full frame")
	}
	if _, ok := h.ReadFrame(); ok {
		t.Fatal("third ReadFrame: expected false with only 80 samples remaining")
	}
}

func TestHandlerMuteZerosCapturedSamples(t *testing.T) {
	dev := NewReferenceDevice("test")
	h := NewHandler(dev)
	h.SetMuted(true)

	block := []float32{0.5, 0.5, 0.5}
	h.onCaptureBlock(block, SampleRate)

	if !h.IsMuted() {
		t.Fatal("IsMuted() = false, want true")
	}
	in, _ := h.Levels()
	if in != 0 {
		t.Fatalf("input level after mute = %v, want 0", in)
	}
}

func TestResampleLinearIdentity(t *testing.T) {
	input := []float32{0.1, 0.2, 0.3, 0.4}
	out := ResampleLinear(input, 48000, 48000)
	if len(out) != len(input) {
		t.Fatalf("len(out) = %d, want %d", len(out), len(input))
	}
	for i := range input {
		if out[i] != input[i] {
			t.Fatalf("out[%d] = %v, want %v", i, out[i], input[i])
		}
	}
}

func TestResampleLinearUpsampleDoublesLength(t *testing.T) {
	input := make([]float32, 480)
	for i := range input {
		input[i] = float32(i)
	}
	out := ResampleLinear(input, 24000, 48000)
	if len(out) != 960 {
		t.Fatalf("len(out) = %d, want 960", len(out))
	}
}

// onPlaybackPull duplicates each mono sample across every output
// channel rather than handing raw mono samples to a multi-channel
// device.
func TestOnPlaybackPullDuplicatesMonoAcrossChannels(t *testing.T) {
	dev := NewReferenceDevice("test")
	h := NewHandler(dev)
	h.playbackChannels = 2

	h.playbackRing.Push([]float32{0.1, 0.2, 0.3, 0.4})

	out := h.onPlaybackPull(8, SampleRate)
	want := []float32{0.1, 0.1, 0.2, 0.2, 0.3, 0.3, 0.4, 0.4}
	if len(out) != len(want) {
		t.Fatalf("len(out) = %d, want %d", len(out), len(want))
	}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("out[%d] = %v, want %v", i, out[i], want[i])
		}
	}
}

func TestHandlerCloseIsIdempotent(t *testing.T) {
	dev := NewReferenceDevice("test")
	h := NewHandler(dev)
	if err := h.StartCapture(); err != nil {
		t.Fatalf("StartCapture: %v", err)
	}
	if err := h.StartPlayback(); err != nil {
		t.Fatalf("StartPlayback: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
