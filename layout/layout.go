// Package layout is the external "layouter" collaborator spec.md names
// in §1/§6: it serializes a CAB's in-memory payload to the content
// buffer and back, applying optional compression. Grounded on
// grailbio-base/compress/zstd's klauspost/compress/zstd wrapping
// (zstd_nocgo.go) for the compressed path.
package layout

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/flashcab/cabstore/buffer"
	"github.com/flashcab/cabstore/cab"
	"github.com/flashcab/cabstore/cabinfo"
	"github.com/flashcab/cabstore/config"
)

// CABLayouter serializes one column's blocks into a shared content
// Buffer, and deserializes them back out.
type CABLayouter struct {
	buf *buffer.Buffer
	cmp config.CompressionKind
}

// New returns a CABLayouter writing into (or reading from) buf using
// cmp as the block content codec.
func New(buf *buffer.Buffer, cmp config.CompressionKind) *CABLayouter {
	return &CABLayouter{buf: buf, cmp: cmp}
}

// Clear resets the backing buffer to empty, ready for the next block.
func (l *CABLayouter) Clear() { l.buf.Clear() }

// Flush serializes block's content into the layouter's buffer and
// writes it through the buffer's FileIO at the current seek position,
// filling info.StrgSize with the number of bytes written (spec §4.2
// flush step 2). A Trivial block writes zero bytes: its value is
// recoverable from info.ValueInfo.Min/Max.
func (l *CABLayouter) Flush(info *cabinfo.CABInfo, block *cab.CAB) error {
	info.BlkType = uint8(block.BlockType())

	if block.BlockType() == cab.Trivial {
		info.StrgSize = 0
		return nil
	}

	var raw bytes.Buffer
	if err := encodeBlock(&raw, block); err != nil {
		return fmt.Errorf("layout: flush: %w", err)
	}

	payload := raw.Bytes()
	if l.cmp == config.CompressionZstd {
		compressed, err := compress(payload)
		if err != nil {
			return fmt.Errorf("layout: flush: %w", err)
		}
		payload = compressed
	}

	l.buf.Clear()
	dst := l.buf.Allocate(len(payload), true)
	copy(dst, payload)
	if err := l.buf.Flush(); err != nil {
		return fmt.Errorf("layout: flush: %w", err)
	}

	info.StrgSize = uint64(len(payload))
	return nil
}

// Load reads info.StrgSize bytes from the buffer's FileIO at the
// current seek position and deserializes them into block, which must
// already be in read mode (cab.CAB.Init2Read) for info's record range
// and block type.
func (l *CABLayouter) Load(info *cabinfo.CABInfo, block *cab.CAB) error {
	if info.BlkType == uint8(cab.Trivial) {
		installTrivial(info, block)
		return nil
	}
	if err := l.buf.LoadExact(int(info.StrgSize)); err != nil {
		return fmt.Errorf("layout: load: %w", err)
	}
	return l.DecodeFromBytes(l.buf.Bytes(), info, block)
}

// DecodeFromBytes deserializes an already-in-memory block payload
// (e.g. a scratch copy reconstructed for appender resumption — spec
// §4.3's double buffering) rather than reading through this layouter's
// own buffer.
func (l *CABLayouter) DecodeFromBytes(payload []byte, info *cabinfo.CABInfo, block *cab.CAB) error {
	if info.BlkType == uint8(cab.Trivial) {
		installTrivial(info, block)
		return nil
	}

	if l.cmp == config.CompressionZstd {
		decompressed, err := decompress(payload)
		if err != nil {
			return fmt.Errorf("layout: decode: %w", err)
		}
		payload = decompressed
	}

	// Counts first: decodeBlock derives the item->value index map from
	// the item count.
	block.SetCounts(uint64(info.ItemNum), uint64(info.NullNum), uint64(info.RecordNum))
	if err := decodeBlock(bytes.NewReader(payload), block, cab.BlockType(info.BlkType)); err != nil {
		return fmt.Errorf("layout: decode: %w", err)
	}
	return nil
}

// installTrivial restores a Trivial block's counts and shared value
// directly from the descriptor, since it carries zero content bytes.
func installTrivial(info *cabinfo.CABInfo, block *cab.CAB) {
	block.SetTrivialValue(info.ValueInfo.Min)
	block.SetCounts(uint64(info.ItemNum), uint64(info.NullNum), uint64(info.RecordNum))
}

// encodeBlock writes a Normal block's (a) repetition, (b) definition,
// (c) null bitmap, (d) value payload, in that order, or an AllNull
// block's (a)(b) only, per spec §6's content region layout.
func encodeBlock(w io.Writer, block *cab.CAB) error {
	if _, err := block.RepArray().WriteTo(w); err != nil {
		return fmt.Errorf("repetition: %w", err)
	}
	if _, err := block.DefLevels().WriteTo(w); err != nil {
		return fmt.Errorf("definition: %w", err)
	}
	if block.BlockType() == cab.AllNull {
		return nil
	}
	if _, err := block.NullBits().WriteTo(w); err != nil {
		return fmt.Errorf("null bitmap: %w", err)
	}
	if _, err := block.BinValueArray().WriteTo(w); err != nil {
		return fmt.Errorf("values: %w", err)
	}
	return nil
}

func decodeBlock(r io.Reader, block *cab.CAB, blockType cab.BlockType) error {
	if _, err := block.RepArray().ReadFrom(r); err != nil {
		return fmt.Errorf("repetition: %w", err)
	}
	if _, err := block.DefLevels().ReadFrom(r); err != nil {
		return fmt.Errorf("definition: %w", err)
	}
	if blockType == cab.AllNull {
		return nil
	}
	if _, err := block.NullBits().ReadFrom(r); err != nil {
		return fmt.Errorf("null bitmap: %w", err)
	}
	if _, err := block.BinValueArray().ReadFrom(r); err != nil {
		return fmt.Errorf("values: %w", err)
	}
	block.BuildValueIdxFromNullBits()
	return nil
}

func compress(in []byte) ([]byte, error) {
	var out bytes.Buffer
	w, err := zstd.NewWriter(&out)
	if err != nil {
		return nil, fmt.Errorf("zstd: new writer: %w", err)
	}
	if _, err := w.Write(in); err != nil {
		w.Close()
		return nil, fmt.Errorf("zstd: write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("zstd: close: %w", err)
	}
	return out.Bytes(), nil
}

func decompress(in []byte) ([]byte, error) {
	r, err := zstd.NewReader(bytes.NewReader(in))
	if err != nil {
		return nil, fmt.Errorf("zstd: new reader: %w", err)
	}
	defer r.Close()
	var out bytes.Buffer
	if _, err := io.Copy(&out, r); err != nil {
		return nil, fmt.Errorf("zstd: read: %w", err)
	}
	return out.Bytes(), nil
}
