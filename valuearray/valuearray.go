// Package valuearray provides the external "value array" and
// "BinaryValueArray" collaborators spec.md §1/§3 name: typed containers
// for decoded values, and the raw-bytes container that holds a CAB's
// values while the block is resident.
package valuearray

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/flashcab/cabstore/datatype"
)

// BinaryValueArray holds the non-null values written to one CAB, in
// item order, as raw encoded bytes. Fixed-size types are addressed by
// index*width; variable-size types keep an explicit offset table.
//
// A BinaryValueArray owns its value bytes: Append copies into its own
// slice and ReadFrom allocates a fresh one. It does not alias a
// buffer.Buffer's memory region.
type BinaryValueArray struct {
	dt      datatype.DataType
	data    []byte
	offsets []uint32 // end-offset of each value; only populated for variable-size dt
}

// New returns an empty BinaryValueArray for the given data type.
func New(dt datatype.DataType) *BinaryValueArray {
	return &BinaryValueArray{dt: dt}
}

// DataType reports the value array's element type.
func (a *BinaryValueArray) DataType() datatype.DataType { return a.dt }

// Len reports how many values have been appended.
func (a *BinaryValueArray) Len() int {
	if a.dt.DefSize() > 0 {
		return len(a.data) / a.dt.DefSize()
	}
	return len(a.offsets)
}

// Append adds one already-encoded value.
func (a *BinaryValueArray) Append(value []byte) {
	a.data = append(a.data, value...)
	if a.dt.DefSize() == 0 {
		a.offsets = append(a.offsets, uint32(len(a.data)))
	}
}

// Get returns the idx-th value's encoded bytes. idx must be < Len().
func (a *BinaryValueArray) Get(idx int) []byte {
	if w := a.dt.DefSize(); w > 0 {
		return a.data[idx*w : (idx+1)*w]
	}
	start := 0
	if idx > 0 {
		start = int(a.offsets[idx-1])
	}
	end := int(a.offsets[idx])
	return a.data[start:end]
}

// Reset clears the array back to empty, retaining backing capacity.
func (a *BinaryValueArray) Reset() {
	a.data = a.data[:0]
	a.offsets = a.offsets[:0]
}

// WriteTo serializes the array: a value count, an offset table for
// variable-size types, then the concatenated value bytes.
func (a *BinaryValueArray) WriteTo(w io.Writer) (int64, error) {
	var total int64
	n, err := writeUint32(w, uint32(a.Len()))
	total += int64(n)
	if err != nil {
		return total, fmt.Errorf("valuearray: write count: %w", err)
	}
	if a.dt.DefSize() == 0 {
		for _, off := range a.offsets {
			n, err := writeUint32(w, off)
			total += int64(n)
			if err != nil {
				return total, fmt.Errorf("valuearray: write offset: %w", err)
			}
		}
	}
	n, err = writeUint32(w, uint32(len(a.data)))
	total += int64(n)
	if err != nil {
		return total, fmt.Errorf("valuearray: write data length: %w", err)
	}
	bn, err := w.Write(a.data)
	total += int64(bn)
	if err != nil {
		return total, fmt.Errorf("valuearray: write data: %w", err)
	}
	return total, nil
}

// ReadFrom deserializes an array previously written by WriteTo.
func (a *BinaryValueArray) ReadFrom(r io.Reader) (int64, error) {
	var total int64
	count, n, err := readUint32(r)
	total += int64(n)
	if err != nil {
		return total, fmt.Errorf("valuearray: read count: %w", err)
	}
	if a.dt.DefSize() == 0 {
		a.offsets = make([]uint32, count)
		for i := range a.offsets {
			off, n, err := readUint32(r)
			total += int64(n)
			if err != nil {
				return total, fmt.Errorf("valuearray: read offset: %w", err)
			}
			a.offsets[i] = off
		}
	}
	dataLen, n, err := readUint32(r)
	total += int64(n)
	if err != nil {
		return total, fmt.Errorf("valuearray: read data length: %w", err)
	}
	a.data = make([]byte, dataLen)
	bn, err := io.ReadFull(r, a.data)
	total += int64(bn)
	if err != nil {
		return total, fmt.Errorf("valuearray: read data: %w", err)
	}
	return total, nil
}

func writeUint32(w io.Writer, v uint32) (int, error) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return w.Write(buf[:])
}

func readUint32(r io.Reader) (uint32, int, error) {
	var buf [4]byte
	n, err := io.ReadFull(r, buf[:])
	if err != nil {
		return 0, n, err
	}
	return binary.LittleEndian.Uint32(buf[:]), n, nil
}

// ValueArray is a typed decoded view over a BinaryValueArray, used where
// callers want text rendering (e.g. debugging) rather than raw bytes.
type ValueArray struct {
	bin *BinaryValueArray
}

// NewTyped wraps bin for decoded access.
func NewTyped(bin *BinaryValueArray) *ValueArray { return &ValueArray{bin: bin} }

// Text renders the idx-th value as text via its DataType.
func (v *ValueArray) Text(idx int) (string, error) {
	return v.bin.dt.DecodeToText(v.bin.Get(idx))
}

// Len reports how many values are present.
func (v *ValueArray) Len() int { return v.bin.Len() }
