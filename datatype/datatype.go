// Package datatype is the external data-type descriptor collaborator
// spec.md names in §1: fixed- or variable-size typed compare/copy
// primitives. The CAB engine only ever touches values through this
// interface, never by assuming a concrete Go type.
package datatype

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// DataType describes one schema-tree leaf's value representation.
//
// A DataType is either fixed-size (DefSize() > 0, every encoded value is
// exactly that many bytes, min/max tracking and predicate pushdown both
// apply) or variable-size (DefSize() == 0, no value-summary tracking —
// spec §9 Open Questions).
type DataType interface {
	// Name identifies the type for diagnostics.
	Name() string

	// DefSize returns the fixed encoded width in bytes, or 0 if values
	// of this type vary in length.
	DefSize() int

	// FillNull writes this type's null-sentinel bytes into dst. dst must
	// be DefSize() bytes long; a no-op for variable-size types.
	FillNull(dst []byte)

	// Copy copies a DefSize()-byte encoded value from src into dst.
	Copy(dst, src []byte)

	// Less reports whether a sorts strictly before b.
	Less(a, b []byte) bool
	// Greater reports whether a sorts strictly after b.
	Greater(a, b []byte) bool
	// NotLess reports whether a does not sort before b (a >= b).
	NotLess(a, b []byte) bool
	// NotGreater reports whether a does not sort after b (a <= b).
	NotGreater(a, b []byte) bool

	// EncodeText parses the textual representation of a value into this
	// type's on-disk byte encoding.
	EncodeText(text string) ([]byte, error)
	// EncodeBinary validates/normalizes a raw binary value.
	EncodeBinary(bin []byte) ([]byte, error)
	// DecodeToText renders an encoded value back to text for debugging.
	DecodeToText(bin []byte) (string, error)
}

// ---- Int32 ----

// Int32 is a fixed-size, signed 32-bit integer DataType.
type Int32 struct{}

func (Int32) Name() string { return "int32" }
func (Int32) DefSize() int { return 4 }

func (Int32) FillNull(dst []byte) {
	v := int32(math.MinInt32)
	binary.LittleEndian.PutUint32(dst, uint32(v))
}

func (Int32) Copy(dst, src []byte) { copy(dst, src[:4]) }

func (t Int32) Less(a, b []byte) bool       { return t.get(a) < t.get(b) }
func (t Int32) Greater(a, b []byte) bool    { return t.get(a) > t.get(b) }
func (t Int32) NotLess(a, b []byte) bool    { return t.get(a) >= t.get(b) }
func (t Int32) NotGreater(a, b []byte) bool { return t.get(a) <= t.get(b) }

func (Int32) get(b []byte) int32 { return int32(binary.LittleEndian.Uint32(b)) }

func (Int32) EncodeText(text string) ([]byte, error) {
	var v int32
	if _, err := fmt.Sscan(text, &v); err != nil {
		return nil, fmt.Errorf("datatype: int32 parse %q: %w", text, err)
	}
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(v))
	return buf, nil
}

func (Int32) EncodeBinary(bin []byte) ([]byte, error) {
	if len(bin) != 4 {
		return nil, fmt.Errorf("datatype: int32 wants 4 bytes, got %d", len(bin))
	}
	out := make([]byte, 4)
	copy(out, bin)
	return out, nil
}

func (t Int32) DecodeToText(bin []byte) (string, error) {
	return fmt.Sprintf("%d", t.get(bin)), nil
}

// ---- Int64 ----

// Int64 is a fixed-size, signed 64-bit integer DataType.
type Int64 struct{}

func (Int64) Name() string { return "int64" }
func (Int64) DefSize() int { return 8 }

func (Int64) FillNull(dst []byte) {
	v := int64(math.MinInt64)
	binary.LittleEndian.PutUint64(dst, uint64(v))
}

func (Int64) Copy(dst, src []byte) { copy(dst, src[:8]) }

func (t Int64) Less(a, b []byte) bool       { return t.get(a) < t.get(b) }
func (t Int64) Greater(a, b []byte) bool    { return t.get(a) > t.get(b) }
func (t Int64) NotLess(a, b []byte) bool    { return t.get(a) >= t.get(b) }
func (t Int64) NotGreater(a, b []byte) bool { return t.get(a) <= t.get(b) }

func (Int64) get(b []byte) int64 { return int64(binary.LittleEndian.Uint64(b)) }

func (Int64) EncodeText(text string) ([]byte, error) {
	var v int64
	if _, err := fmt.Sscan(text, &v); err != nil {
		return nil, fmt.Errorf("datatype: int64 parse %q: %w", text, err)
	}
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(v))
	return buf, nil
}

func (Int64) EncodeBinary(bin []byte) ([]byte, error) {
	if len(bin) != 8 {
		return nil, fmt.Errorf("datatype: int64 wants 8 bytes, got %d", len(bin))
	}
	out := make([]byte, 8)
	copy(out, bin)
	return out, nil
}

func (t Int64) DecodeToText(bin []byte) (string, error) {
	return fmt.Sprintf("%d", t.get(bin)), nil
}

// ---- Float64 ----

// Float64 is a fixed-size, IEEE-754 double-precision DataType.
type Float64 struct{}

func (Float64) Name() string { return "float64" }
func (Float64) DefSize() int { return 8 }

func (Float64) FillNull(dst []byte) {
	binary.LittleEndian.PutUint64(dst, math.Float64bits(math.Inf(-1)))
}

func (Float64) Copy(dst, src []byte) { copy(dst, src[:8]) }

func (t Float64) Less(a, b []byte) bool       { return t.get(a) < t.get(b) }
func (t Float64) Greater(a, b []byte) bool    { return t.get(a) > t.get(b) }
func (t Float64) NotLess(a, b []byte) bool    { return t.get(a) >= t.get(b) }
func (t Float64) NotGreater(a, b []byte) bool { return t.get(a) <= t.get(b) }

func (Float64) get(b []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}

func (Float64) EncodeText(text string) ([]byte, error) {
	var v float64
	if _, err := fmt.Sscan(text, &v); err != nil {
		return nil, fmt.Errorf("datatype: float64 parse %q: %w", text, err)
	}
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
	return buf, nil
}

func (Float64) EncodeBinary(bin []byte) ([]byte, error) {
	if len(bin) != 8 {
		return nil, fmt.Errorf("datatype: float64 wants 8 bytes, got %d", len(bin))
	}
	out := make([]byte, 8)
	copy(out, bin)
	return out, nil
}

func (t Float64) DecodeToText(bin []byte) (string, error) {
	return fmt.Sprintf("%v", t.get(bin)), nil
}

// ---- Bool ----

// Bool is a fixed-size, single-byte boolean DataType.
type Bool struct{}

func (Bool) Name() string { return "bool" }
func (Bool) DefSize() int { return 1 }

func (Bool) FillNull(dst []byte) { dst[0] = 0 }
func (Bool) Copy(dst, src []byte) { dst[0] = src[0] }

func (Bool) Less(a, b []byte) bool       { return a[0] < b[0] }
func (Bool) Greater(a, b []byte) bool    { return a[0] > b[0] }
func (Bool) NotLess(a, b []byte) bool    { return a[0] >= b[0] }
func (Bool) NotGreater(a, b []byte) bool { return a[0] <= b[0] }

func (Bool) EncodeText(text string) ([]byte, error) {
	switch text {
	case "true", "1":
		return []byte{1}, nil
	case "false", "0":
		return []byte{0}, nil
	default:
		return nil, fmt.Errorf("datatype: bool parse %q", text)
	}
}

func (Bool) EncodeBinary(bin []byte) ([]byte, error) {
	if len(bin) != 1 {
		return nil, fmt.Errorf("datatype: bool wants 1 byte, got %d", len(bin))
	}
	out := make([]byte, 1)
	out[0] = bin[0]
	return out, nil
}

func (Bool) DecodeToText(bin []byte) (string, error) {
	if bin[0] != 0 {
		return "true", nil
	}
	return "false", nil
}

// ---- Bytes (variable-size) ----

// Bytes is a variable-size raw byte-string DataType. Per spec §9's Open
// Questions, variable-size types carry no min/max value summary.
type Bytes struct{}

func (Bytes) Name() string { return "bytes" }
func (Bytes) DefSize() int { return 0 }

func (Bytes) FillNull(dst []byte) {}
func (Bytes) Copy(dst, src []byte) { copy(dst, src) }

func (Bytes) Less(a, b []byte) bool       { return bytes.Compare(a, b) < 0 }
func (Bytes) Greater(a, b []byte) bool    { return bytes.Compare(a, b) > 0 }
func (Bytes) NotLess(a, b []byte) bool    { return bytes.Compare(a, b) >= 0 }
func (Bytes) NotGreater(a, b []byte) bool { return bytes.Compare(a, b) <= 0 }

func (Bytes) EncodeText(text string) ([]byte, error) { return []byte(text), nil }

func (Bytes) EncodeBinary(bin []byte) ([]byte, error) {
	out := make([]byte, len(bin))
	copy(out, bin)
	return out, nil
}

func (Bytes) DecodeToText(bin []byte) (string, error) { return string(bin), nil }

// ---- String (variable-size) ----

// String is a variable-size UTF-8 text DataType.
type String struct{}

func (String) Name() string { return "string" }
func (String) DefSize() int { return 0 }

func (String) FillNull(dst []byte) {}
func (String) Copy(dst, src []byte) { copy(dst, src) }

func (String) Less(a, b []byte) bool       { return bytes.Compare(a, b) < 0 }
func (String) Greater(a, b []byte) bool    { return bytes.Compare(a, b) > 0 }
func (String) NotLess(a, b []byte) bool    { return bytes.Compare(a, b) >= 0 }
func (String) NotGreater(a, b []byte) bool { return bytes.Compare(a, b) <= 0 }

func (String) EncodeText(text string) ([]byte, error) { return []byte(text), nil }

func (String) EncodeBinary(bin []byte) ([]byte, error) {
	out := make([]byte, len(bin))
	copy(out, bin)
	return out, nil
}

func (String) DecodeToText(bin []byte) (string, error) { return string(bin), nil }
