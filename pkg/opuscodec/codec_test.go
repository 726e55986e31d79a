package opuscodec

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	enc, err := NewEncoder()
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	dec, err := NewDecoder()
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}

	pcm := make([]float32, FrameSamples)
	for i := range pcm {
		pcm[i] = 0.1
	}

	payload, err := enc.Encode(pcm)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(payload) == 0 {
		t.Fatal("Encode returned an empty payload")
	}

	out, err := dec.Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(out) != FrameSamples {
		t.Fatalf("Decode returned %d samples, want %d", len(out), FrameSamples)
	}
}

func TestEncodeRejectsWrongFrameSize(t *testing.T) {
	enc, err := NewEncoder()
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	if _, err := enc.Encode(make([]float32, FrameSamples-1)); err == nil {
		t.Fatal("Encode with a short frame did not error")
	}
}
