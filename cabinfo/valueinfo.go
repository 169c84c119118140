package cabinfo

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/flashcab/cabstore/datatype"
)

// ColumnValueInfo is the per-block or per-column value summary spec.md
// §3 names: has_min/has_max flags plus fixed-size min/max bytes. Per
// SPEC_FULL.md's Open Question resolution, variable-size data types
// never populate a summary — HasMin/HasMax stay false for their whole
// lifetime.
type ColumnValueInfo struct {
	HasMin bool
	HasMax bool
	Min    []byte
	Max    []byte
}

// InitNull resets the summary to "no values observed yet", allocating
// Min/Max buffers sized to dt's fixed width and filling them with dt's
// null sentinel (mirrors CABWriter::initValueInfo). A no-op for
// variable-size types.
func (v *ColumnValueInfo) InitNull(dt datatype.DataType) {
	v.HasMin = false
	v.HasMax = false
	if dt.DefSize() == 0 {
		v.Min = nil
		v.Max = nil
		return
	}
	v.Min = make([]byte, dt.DefSize())
	v.Max = make([]byte, dt.DefSize())
	dt.FillNull(v.Min)
	dt.FillNull(v.Max)
}

// Update folds one non-null encoded value into the summary (mirrors
// CABWriter::updateValueInfo). A no-op for variable-size types.
func (v *ColumnValueInfo) Update(dt datatype.DataType, value []byte) {
	if dt.DefSize() == 0 {
		return
	}
	if !v.HasMin || dt.Less(value, v.Min) {
		v.HasMin = true
		dt.Copy(v.Min, value)
	}
	if !v.HasMax || dt.Greater(value, v.Max) {
		v.HasMax = true
		dt.Copy(v.Max, value)
	}
}

// Merge folds a block summary (src) into a column summary (dst),
// mirroring CABWriter::mergeValueInfo. A no-op for variable-size types.
func Merge(dt datatype.DataType, dst, src *ColumnValueInfo) {
	if dt.DefSize() == 0 {
		return
	}
	if src.HasMin {
		if !dst.HasMin || dt.Less(src.Min, dst.Min) {
			dst.HasMin = true
			dt.Copy(dst.Min, src.Min)
		}
	}
	if src.HasMax {
		if !dst.HasMax || dt.Greater(src.Max, dst.Max) {
			dst.HasMax = true
			dt.Copy(dst.Max, src.Max)
		}
	}
}

// IsCandidate tests a lookup value against the summary's fixed-size
// min/max range (spec §4.4's isCandidate fallback when Bloom is
// unavailable). Variable-size types and summaries with no observed
// values are always candidates.
func (v *ColumnValueInfo) IsCandidate(dt datatype.DataType, value []byte) bool {
	if dt.DefSize() == 0 {
		return true
	}
	if !v.HasMin || !v.HasMax {
		return true
	}
	return dt.NotLess(value, v.Min) && dt.NotGreater(value, v.Max)
}

func (v *ColumnValueInfo) writeTo(w io.Writer, width int) (int64, error) {
	var total int64
	var flags byte
	if v.HasMin {
		flags |= 1
	}
	if v.HasMax {
		flags |= 2
	}
	n, err := w.Write([]byte{flags})
	total += int64(n)
	if err != nil {
		return total, fmt.Errorf("cabinfo: write value-info flags: %w", err)
	}
	if width == 0 {
		return total, nil
	}
	min := v.Min
	max := v.Max
	if len(min) != width {
		min = make([]byte, width)
	}
	if len(max) != width {
		max = make([]byte, width)
	}
	bn, err := w.Write(min)
	total += int64(bn)
	if err != nil {
		return total, fmt.Errorf("cabinfo: write min: %w", err)
	}
	bn, err = w.Write(max)
	total += int64(bn)
	if err != nil {
		return total, fmt.Errorf("cabinfo: write max: %w", err)
	}
	return total, nil
}

func (v *ColumnValueInfo) readFrom(r io.Reader, width int) (int64, error) {
	var total int64
	var flagBuf [1]byte
	n, err := io.ReadFull(r, flagBuf[:])
	total += int64(n)
	if err != nil {
		return total, fmt.Errorf("cabinfo: read value-info flags: %w", err)
	}
	v.HasMin = flagBuf[0]&1 != 0
	v.HasMax = flagBuf[0]&2 != 0
	if width == 0 {
		v.Min, v.Max = nil, nil
		return total, nil
	}
	v.Min = make([]byte, width)
	v.Max = make([]byte, width)
	bn, err := io.ReadFull(r, v.Min)
	total += int64(bn)
	if err != nil {
		return total, fmt.Errorf("cabinfo: read min: %w", err)
	}
	bn, err = io.ReadFull(r, v.Max)
	total += int64(bn)
	if err != nil {
		return total, fmt.Errorf("cabinfo: read max: %w", err)
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

func writeUint64(w io.Writer, v uint64) (int, error) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return w.Write(buf[:])
}

func readUint64(r io.Reader) (uint64, int, error) {
	var buf [8]byte
	n, err := io.ReadFull(r, buf[:])
	if err != nil {
		return 0, n, err
	}
	return binary.LittleEndian.Uint64(buf[:]), n, nil
}
