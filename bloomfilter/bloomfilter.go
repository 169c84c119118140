// Package bloomfilter provides the optional, feature-flagged Bloom
// filter predicate accelerator spec.md §4.4/§4.5 describes: implementations
// may stub it, but when config.Config.UseBloom is set, a CABWriter builds
// one per CAB and a CABReader can test candidacy against it before
// touching value-summary min/max.
//
// Grounded directly on the teacher's own use of the same library in
// sst/writer.go: NewWithEstimates, Add, K(), Cap(), WriteTo.
package bloomfilter

import (
	"fmt"
	"io"

	"github.com/bits-and-blooms/bloom/v3"
)

// defaultFalsePositiveRate matches the teacher's sst/writer.go constant.
const defaultFalsePositiveRate = 0.01

// Filter wraps a bloom.BloomFilter sized for one CAB's worth of values.
type Filter struct {
	bf *bloom.BloomFilter
}

// New creates a Filter sized to hold capacity values at the default
// false-positive rate.
func New(capacity uint64) *Filter {
	n := capacity
	if n == 0 {
		n = 1
	}
	return &Filter{bf: bloom.NewWithEstimates(uint(n), defaultFalsePositiveRate)}
}

// Add records a value's membership.
func (f *Filter) Add(value []byte) {
	f.bf.Add(value)
}

// Test reports whether value may be present (false means definitely
// absent; true may be a false positive).
func (f *Filter) Test(value []byte) bool {
	return f.bf.Test(value)
}

// Reset clears the filter for reuse by the next CAB (mirrors the
// original's resetBloom, called after each flush).
func (f *Filter) Reset() {
	f.bf.ClearAll()
}

// K reports the number of hash functions in use.
func (f *Filter) K() uint32 { return uint32(f.bf.K()) }

// MemLen reports the filter's in-memory size in bytes.
func (f *Filter) MemLen() uint64 { return uint64(f.bf.Cap() / 8) }

// WriteTo serializes the filter's hash count, bit array size, and bit
// array, same order the teacher's sst.writeBloomFilter uses.
func (f *Filter) WriteTo(w io.Writer) (int64, error) {
	n, err := f.bf.WriteTo(w)
	if err != nil {
		return n, fmt.Errorf("bloomfilter: write: %w", err)
	}
	return n, nil
}

// ReadFrom deserializes a filter previously written by WriteTo.
func (f *Filter) ReadFrom(r io.Reader) (int64, error) {
	if f.bf == nil {
		f.bf = &bloom.BloomFilter{}
	}
	n, err := f.bf.ReadFrom(r)
	if err != nil {
		return n, fmt.Errorf("bloomfilter: read: %w", err)
	}
	return n, nil
}
