package bitvector

import (
	"bytes"
	"testing"
)

func TestBitVectorRoundTrip(t *testing.T) {
	v := New(8)
	bits := []bool{true, false, false, true, true, true, false, false, true}
	for _, b := range bits {
		v.Append(b)
	}

	var buf bytes.Buffer
	if _, err := v.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}

	got := &BitVector{}
	if _, err := got.ReadFrom(&buf); err != nil {
		t.Fatal(err)
	}
	if got.Len() != v.Len() {
		t.Fatalf("length mismatch: want %d got %d", v.Len(), got.Len())
	}
	for i, want := range bits {
		if got.Get(uint64(i)) != want {
			t.Fatalf("bit %d: want %v got %v", i, want, got.Get(uint64(i)))
		}
	}
}

func TestBitVectorReset(t *testing.T) {
	v := New(4)
	v.Append(true)
	v.Append(true)
	v.Reset()
	if v.Len() != 0 {
		t.Fatalf("want length 0 after reset, got %d", v.Len())
	}
	v.Append(false)
	if v.Get(0) {
		t.Fatal("expected bit to read back false after reset and re-append")
	}
}

func TestPackedIntsWidthFor(t *testing.T) {
	cases := map[uint32]uint{0: 1, 1: 1, 2: 2, 3: 2, 4: 3, 7: 3, 8: 4}
	for maxVal, want := range cases {
		if got := WidthFor(maxVal); got != want {
			t.Fatalf("WidthFor(%d): want %d got %d", maxVal, want, got)
		}
	}
}

func TestPackedIntsRoundTrip(t *testing.T) {
	p := NewPackedInts(WidthFor(6), 8)
	vals := []uint32{0, 6, 3, 1, 5, 2}
	for _, v := range vals {
		p.Append(v)
	}

	var buf bytes.Buffer
	if _, err := p.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	got := &PackedInts{}
	if _, err := got.ReadFrom(&buf); err != nil {
		t.Fatal(err)
	}
	if got.Len() != uint64(len(vals)) {
		t.Fatalf("length mismatch: want %d got %d", len(vals), got.Len())
	}
	for i, want := range vals {
		if v := got.Get(uint64(i)); v != want {
			t.Fatalf("value %d: want %d got %d", i, want, v)
		}
	}
}
