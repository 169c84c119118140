package bitvector

import (
	"fmt"
	"io"
	"math/bits"
)

// PackedInts is a sequence of fixed-width unsigned integers packed into
// a BitVector, used for definition levels: spec §6 packs them to
// ceil(log2(max_def+1)) bits per item.
type PackedInts struct {
	raw   *BitVector
	width uint
	len   uint64
}

// WidthFor returns the number of bits needed to represent every value in
// [0, maxValue].
func WidthFor(maxValue uint32) uint {
	if maxValue == 0 {
		return 1
	}
	return uint(bits.Len32(maxValue))
}

// NewPackedInts returns an empty PackedInts with the given per-item bit
// width and capacity hint.
func NewPackedInts(width uint, capacity uint64) *PackedInts {
	if width == 0 {
		width = 1
	}
	return &PackedInts{raw: New(capacity * uint64(width)), width: width}
}

// Width reports the fixed per-item bit width.
func (p *PackedInts) Width() uint { return p.width }

// Len reports how many items have been appended.
func (p *PackedInts) Len() uint64 { return p.len }

// Append adds one value. value must fit in Width() bits.
func (p *PackedInts) Append(value uint32) {
	for b := uint(0); b < p.width; b++ {
		bit := (value>>b)&1 != 0
		p.raw.Append(bit)
	}
	p.len++
}

// Get reads the value at idx. idx must be < Len().
func (p *PackedInts) Get(idx uint64) uint32 {
	var v uint32
	base := idx * uint64(p.width)
	for b := uint(0); b < p.width; b++ {
		if p.raw.Get(base + uint64(b)) {
			v |= 1 << b
		}
	}
	return v
}

// Reset clears the sequence back to zero length.
func (p *PackedInts) Reset() {
	p.raw.Reset()
	p.len = 0
}

// WriteTo serializes width, length, and packed bits.
func (p *PackedInts) WriteTo(w io.Writer) (int64, error) {
	var total int64
	n, err := writeUint64(w, uint64(p.width))
	total += int64(n)
	if err != nil {
		return total, fmt.Errorf("packedints: write width: %w", err)
	}
	n, err = writeUint64(w, p.len)
	total += int64(n)
	if err != nil {
		return total, fmt.Errorf("packedints: write length: %w", err)
	}
	bn, err := p.raw.WriteTo(w)
	total += bn
	if err != nil {
		return total, fmt.Errorf("packedints: write bits: %w", err)
	}
	return total, nil
}

// ReadFrom deserializes a PackedInts previously written by WriteTo.
func (p *PackedInts) ReadFrom(r io.Reader) (int64, error) {
	var total int64
	width, n, err := readUint64(r)
	total += int64(n)
	if err != nil {
		return total, fmt.Errorf("packedints: read width: %w", err)
	}
	length, n, err := readUint64(r)
	total += int64(n)
	if err != nil {
		return total, fmt.Errorf("packedints: read length: %w", err)
	}
	p.raw = &BitVector{}
	bn, err := p.raw.ReadFrom(r)
	total += bn
	if err != nil {
		return total, fmt.Errorf("packedints: read bits: %w", err)
	}
	p.width = uint(width)
	p.len = length
	return total, nil
}
