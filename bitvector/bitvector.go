// Package bitvector is the external "bit vector" collaborator spec.md
// names in §1: a packed container for repetition bits, definition
// levels, and null bitmaps. It wraps the teacher's own (indirect, via
// bloom/v3) dependency on github.com/bits-and-blooms/bitset, promoted
// here to a direct, first-class use.
package bitvector

import (
	"fmt"
	"io"

	"github.com/bits-and-blooms/bitset"
)

// BitVector is a growable, packed sequence of single bits — used for
// per-item null flags and, when a column's repetition kind is Single,
// per-item repetition bits.
type BitVector struct {
	bits *bitset.BitSet
	len  uint
}

// New returns an empty BitVector with room pre-allocated for capacity
// bits.
func New(capacity uint64) *BitVector {
	return &BitVector{bits: bitset.New(uint(capacity))}
}

// Len reports how many bits have been appended.
func (v *BitVector) Len() uint64 { return uint64(v.len) }

// Append adds one bit to the end of the vector.
func (v *BitVector) Append(bit bool) {
	if bit {
		v.bits.Set(v.len)
	} else {
		v.bits.Clear(v.len)
	}
	v.len++
}

// Get reads the bit at idx. idx must be < Len().
func (v *BitVector) Get(idx uint64) bool {
	return v.bits.Test(uint(idx))
}

// Set overwrites the bit at idx. idx must be < Len().
func (v *BitVector) Set(idx uint64, bit bool) {
	if bit {
		v.bits.Set(uint(idx))
	} else {
		v.bits.Clear(uint(idx))
	}
}

// Reset clears the vector back to zero length, retaining its backing
// storage for reuse (mirrors CAB block reuse across flush cycles).
func (v *BitVector) Reset() {
	v.bits.ClearAll()
	v.len = 0
}

// WriteTo serializes the vector's packed words plus its logical bit
// count to w.
func (v *BitVector) WriteTo(w io.Writer) (int64, error) {
	var total int64
	n, err := writeUint64(w, uint64(v.len))
	total += int64(n)
	if err != nil {
		return total, fmt.Errorf("bitvector: write length: %w", err)
	}
	bn, err := v.bits.WriteTo(w)
	total += bn
	if err != nil {
		return total, fmt.Errorf("bitvector: write bits: %w", err)
	}
	return total, nil
}

// ReadFrom deserializes a vector previously written by WriteTo.
func (v *BitVector) ReadFrom(r io.Reader) (int64, error) {
	var total int64
	length, n, err := readUint64(r)
	total += int64(n)
	if err != nil {
		return total, fmt.Errorf("bitvector: read length: %w", err)
	}
	v.bits = bitset.New(0)
	bn, err := v.bits.ReadFrom(r)
	total += bn
	if err != nil {
		return total, fmt.Errorf("bitvector: read bits: %w", err)
	}
	v.len = uint(length)
	return total, nil
}
