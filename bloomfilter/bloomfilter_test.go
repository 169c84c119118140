package bloomfilter

import (
	"bytes"
	"testing"
)

func TestAddAndTest(t *testing.T) {
	f := New(100)
	present := [][]byte{[]byte("a"), []byte("b"), []byte("c")}
	for _, v := range present {
		f.Add(v)
	}
	for _, v := range present {
		if !f.Test(v) {
			t.Fatalf("expected %q to test present", v)
		}
	}
}

func TestWriteToReadFromRoundTrip(t *testing.T) {
	f := New(50)
	f.Add([]byte("hello"))
	f.Add([]byte("world"))

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}

	got := &Filter{}
	if _, err := got.ReadFrom(&buf); err != nil {
		t.Fatal(err)
	}
	if !got.Test([]byte("hello")) || !got.Test([]byte("world")) {
		t.Fatal("deserialized filter lost membership")
	}
}

func TestReset(t *testing.T) {
	f := New(10)
	f.Add([]byte("x"))
	f.Reset()
	// A reset filter may still false-positive, but a freshly constructed
	// filter of the same size tests the same value for reference; this
	// only asserts Reset doesn't panic and the filter stays usable.
	f.Add([]byte("y"))
	if !f.Test([]byte("y")) {
		t.Fatal("filter unusable after reset")
	}
}
