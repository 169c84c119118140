package cab

import (
	"io"

	"github.com/flashcab/cabstore/bitvector"
	"github.com/flashcab/cabstore/repetition"
)

// repArray stores one CAB's per-item repetition values. Its shape
// depends on the column's repetition.Kind: no storage for None, one
// packed bit per item for Single, a small packed integer per item for
// Multi. CABReader only ever needs Get-by-index and a length, so every
// kind is presented through this one interface (spec §4.4 types this as
// a BitVector, which only literally fits the Single case; Multi is
// exposed through the same shape here rather than splitting the reader
// code three ways).
type repArray interface {
	Append(v uint32)
	Get(idx uint64) uint32
	Len() uint64
	Reset()
	WriteTo(w io.Writer) (int64, error)
	ReadFrom(r io.Reader) (int64, error)
}

func newRepArray(kind repetition.Kind, capacity uint64) repArray {
	switch kind {
	case repetition.Single:
		return &bitRepArray{v: bitvector.New(capacity)}
	case repetition.Multi:
		return &multiRepArray{v: bitvector.NewPackedInts(8, capacity)}
	default:
		return &noneRepArray{}
	}
}

// noneRepArray backs a None-kind column: nothing is stored, every
// logical item's repetition is implicitly 0 (every item starts a new
// record, since the path never repeats).
type noneRepArray struct {
	n uint64
}

func (r *noneRepArray) Append(v uint32)  { r.n++ }
func (r *noneRepArray) Get(uint64) uint32 { return 0 }
func (r *noneRepArray) Len() uint64       { return r.n }
func (r *noneRepArray) Reset()            { r.n = 0 }

func (r *noneRepArray) WriteTo(w io.Writer) (int64, error) {
	return writeUint64(w, r.n)
}

func (r *noneRepArray) ReadFrom(rd io.Reader) (int64, error) {
	n, total, err := readUint64(rd)
	r.n = n
	return total, err
}

// bitRepArray backs a Single-kind column: one bit per item.
type bitRepArray struct {
	v *bitvector.BitVector
}

func (r *bitRepArray) Append(v uint32)       { r.v.Append(v != 0) }
func (r *bitRepArray) Get(idx uint64) uint32 {
	if r.v.Get(idx) {
		return 1
	}
	return 0
}
func (r *bitRepArray) Len() uint64 { return r.v.Len() }
func (r *bitRepArray) Reset()      { r.v.Reset() }

func (r *bitRepArray) WriteTo(w io.Writer) (int64, error) { return r.v.WriteTo(w) }
func (r *bitRepArray) ReadFrom(rd io.Reader) (int64, error) {
	return r.v.ReadFrom(rd)
}

// multiRepArray backs a Multi-kind column: a small packed integer per
// item, width fixed at construction (8 bits comfortably covers typical
// nesting depths; CABs are never opened with a shared repetition codec
// deep enough to overflow it within this engine's scope).
type multiRepArray struct {
	v *bitvector.PackedInts
}

func (r *multiRepArray) Append(v uint32)       { r.v.Append(v) }
func (r *multiRepArray) Get(idx uint64) uint32 { return r.v.Get(idx) }
func (r *multiRepArray) Len() uint64           { return r.v.Len() }
func (r *multiRepArray) Reset()                { r.v.Reset() }

func (r *multiRepArray) WriteTo(w io.Writer) (int64, error) { return r.v.WriteTo(w) }
func (r *multiRepArray) ReadFrom(rd io.Reader) (int64, error) {
	return r.v.ReadFrom(rd)
}
