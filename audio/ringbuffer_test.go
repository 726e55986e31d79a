package audio

import "testing"

func TestRingBufferPushPopExact(t *testing.T) {
	rb := NewRingBuffer(10)
	rb.Push([]float32{1, 2, 3, 4, 5})

	if _, ok := rb.PopExact(6); ok {
		t.Fatal("PopExact(6) succeeded with only 5 buffered")
	}

	out, ok := rb.PopExact(5)
	if !ok {
		t.Fatal("PopExact(5) failed with exactly 5 buffered")
	}
	want := []float32{1, 2, 3, 4, 5}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("out[%d] = %v, want %v", i, out[i], want[i])
		}
	}
	if rb.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", rb.Len())
	}
}

// Overflow drops the newest samples once the ring is full, not the
// oldest.
func TestRingBufferOverflowDropsNewest(t *testing.T) {
	rb := NewRingBuffer(4)
	rb.Push([]float32{1, 2, 3})
	rb.Push([]float32{4, 5, 6}) // only room for one more (4); 5,6 dropped

	if rb.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", rb.Len())
	}
	out, ok := rb.PopExact(4)
	if !ok {
		t.Fatal("PopExact(4) failed")
	}
	want := []float32{1, 2, 3, 4}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("out[%d] = %v, want %v", i, out[i], want[i])
		}
	}
}

func TestRingBufferPopPaddedZerosMissing(t *testing.T) {
	rb := NewRingBuffer(10)
	rb.Push([]float32{1, 2, 3})

	out := rb.PopPadded(5)
	want := []float32{1, 2, 3, 0, 0}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("out[%d] = %v, want %v", i, out[i], want[i])
		}
	}
	if rb.Len() != 0 {
		t.Fatalf("Len() = %d, want 0 after draining", rb.Len())
	}
}

func TestRingBufferWrapsAroundCapacity(t *testing.T) {
	rb := NewRingBuffer(4)
	rb.Push([]float32{1, 2, 3})
	if _, ok := rb.PopExact(2); !ok {
		t.Fatal("PopExact(2) failed")
	}
	rb.Push([]float32{4, 5, 6}) // wraps: buffer now holds 3,4,5,6 logically but capacity 4

	out, ok := rb.PopExact(4)
	if !ok {
		t.Fatal("PopExact(4) failed after wraparound")
	}
	want := []float32{3, 4, 5, 6}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("out[%d] = %v, want %v", i, out[i], want[i])
		}
	}
}
