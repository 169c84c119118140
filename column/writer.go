package column

import (
	"bytes"
	"fmt"
	"io"

	"github.com/flashcab/cabstore/bloomfilter"
	"github.com/flashcab/cabstore/buffer"
	"github.com/flashcab/cabstore/cab"
	"github.com/flashcab/cabstore/cabinfo"
	"github.com/flashcab/cabstore/config"
	"github.com/flashcab/cabstore/layout"
	"github.com/flashcab/cabstore/schema"
)

// CABWriter strictly sequentially appends items to a column, per spec
// §4.2.
type CABWriter struct {
	operator
}

// Init2Write opens base for a fresh column session (or resumes writing
// a not-yet-created column at a given begin record id), creating
// `<base>.cab` and `<base>.cab.info`.
func Init2Write(base string, tree *schema.Tree, path schema.Path, cfg *config.Config, rbgn uint64) (*CABWriter, error) {
	w := &CABWriter{}
	if err := w.init(tree, path, cfg); err != nil {
		return nil, err
	}
	w.basePath = base

	contBuf, err := buffer.Init2Write(base + ".cab")
	if err != nil {
		return nil, fmt.Errorf("column: writer init2write: %w", err)
	}
	w.contBuf = contBuf
	w.layouter = layout.New(contBuf, cfg.Compression)

	infoBuf, err := cabinfo.Init2Write(base+".cab.info", w.dt, cfg.Capacity, w.repKind, cfg.Compression, w.maxDef)
	if err != nil {
		return nil, fmt.Errorf("column: writer init2write: %w", err)
	}
	w.infoBuf = infoBuf

	w.recdNum = calcAlignBegin(rbgn, cfg.Capacity)
	if err := w.prepareCAB2write(); err != nil {
		return nil, err
	}

	// Pad with nulls up to rbgn if it does not fall on a block boundary
	// (spec §8 boundaries: "rbgn not a multiple of C forces a null
	// prefix of length rbgn mod C").
	for pad := rbgn - w.recdNum; pad > 0; pad-- {
		if _, err := w.WriteNull(0, 0); err != nil {
			return nil, err
		}
	}

	return w, nil
}

// WriteNull writes one null item.
func (w *CABWriter) WriteNull(rep, def uint32) (int, error) {
	if w.failed() {
		return -1, fmt.Errorf("column: writer: session failed")
	}
	encRep := w.rept.Encode(rep)

	got := w.curCAB.WriteNull(encRep, def)
	if got == 0 {
		if err := w.rotateCAB(); err != nil {
			return -1, w.fail(err)
		}
		got = w.curCAB.WriteNull(encRep, def)
		if got != 1 {
			return -1, w.fail(fmt.Errorf("column: writer: write null to fresh CAB failed"))
		}
	}

	if encRep == 0 {
		w.recdNum++
	}
	return got, nil
}

// WriteNullN writes nnum consecutive null items, mirroring the
// teacher-facing batch convenience CABWriter::writeNull(rep, def, nnum).
func (w *CABWriter) WriteNullN(rep, def uint32, nnum uint64) (int, error) {
	got := 0
	for i := uint64(0); i < nnum; i++ {
		var err error
		if got, err = w.WriteNull(rep, def); err != nil {
			return got, err
		}
	}
	return got, nil
}

// WriteText encodes txt through the column's DataType and writes it.
func (w *CABWriter) WriteText(rep, def uint32, txt string) (int, error) {
	bin, err := w.dt.EncodeText(txt)
	if err != nil {
		return -1, fmt.Errorf("column: writer: write text: %w", err)
	}
	return w.WriteBinVal(rep, def, bin)
}

// WriteBinVal writes an already-encoded binary value.
func (w *CABWriter) WriteBinVal(rep, def uint32, bin []byte) (int, error) {
	if w.failed() {
		return -1, fmt.Errorf("column: writer: session failed")
	}
	encRep := w.rept.Encode(rep)

	got := w.curCAB.WriteValue(encRep, def, bin)
	if got == 0 {
		if err := w.rotateCAB(); err != nil {
			return -1, w.fail(err)
		}
		got = w.curCAB.WriteValue(encRep, def, bin)
		if got != 1 {
			return -1, w.fail(fmt.Errorf("column: writer: write value to fresh CAB failed"))
		}
	}

	w.curInfo.ValueInfo.Update(w.dt, bin)
	if w.bloom != nil {
		w.bloom.Add(bin)
	}

	if encRep == 0 {
		w.recdNum++
	}
	return got, nil
}

// rotateCAB flushes the full current block and prepares the next one.
func (w *CABWriter) rotateCAB() error {
	if err := w.flush(false); err != nil {
		return err
	}
	return w.prepareCAB2write()
}

// flush persists the current block, following spec §4.2's flush
// procedure.
func (w *CABWriter) flush(tail bool) error {
	// An empty current block (nothing written since it was prepared)
	// flushes to nothing: spec §8 requires "flush on an empty writer"
	// to be a no-op that still leaves the files in a valid openable
	// state, so no descriptor is appended for zero items.
	if tail && w.curCAB.ItemNum() == 0 {
		w.curCAB = nil
		w.curInfo = nil
		return nil
	}

	w.state = stateFlushing

	w.curInfo.RecordNum = uint32(w.curCAB.RecordNum())
	w.curInfo.ItemNum = uint32(w.curCAB.ItemNum())
	w.curInfo.NullNum = uint32(w.curCAB.NullNum())
	w.curInfo.BlkType = uint8(w.curCAB.Classify())
	w.curCAB.SetBlockType(w.curCAB.Classify())

	// 1. Fold block min/max into column summary.
	if err := w.infoBuf.MergeValueInfo(w.curInfo); err != nil {
		return fmt.Errorf("column: flush: %w", err)
	}

	// 2. Layouter writes content bytes and fills strg_size.
	if err := w.layouter.Flush(w.curInfo, w.curCAB); err != nil {
		return fmt.Errorf("column: flush: %w", err)
	}

	w.curInfo.Full = w.curCAB.Full()

	if w.bloom != nil {
		var buf bytes.Buffer
		if _, err := w.bloom.WriteTo(&buf); err != nil {
			return fmt.Errorf("column: flush: bloom: %w", err)
		}
		dskLen := alignUp(uint64(buf.Len()), w.cfg.Alignment)
		if err := w.infoBuf.FlushBloomContent(w.curInfo, buf.Bytes(), uint64(buf.Len()), dskLen); err != nil {
			return fmt.Errorf("column: flush: %w", err)
		}
		w.bloom.Reset()
	}

	// 3. Persist the descriptor — only after content bytes are durable
	// (spec §7 crash-consistency ordering).
	if err := w.infoBuf.AppendInfo(w.curInfo); err != nil {
		return fmt.Errorf("column: flush: %w", err)
	}

	// 4. Advance content offset; seek writer to new offset.
	w.fileOff += w.curInfo.StrgSize
	if _, err := w.contBuf.GetFileIO().SeekContent(int64(w.fileOff), io.SeekStart); err != nil {
		return fmt.Errorf("column: flush: seek: %w", err)
	}

	w.contBuf.Clear()
	w.layouter.Clear()
	w.curCAB = nil
	w.curInfo = nil
	w.state = stateWriting
	return nil
}

// prepareCAB2write obtains the next info slot and constructs a fresh
// block, per spec §4.2.
func (w *CABWriter) prepareCAB2write() error {
	w.state = statePreparing

	w.curInfo = w.infoBuf.GetNextInfo2Write()
	w.curInfo.RepType = w.repKind
	w.curInfo.CmpType = w.cfg.Compression
	w.curInfo.FileOff = w.fileOff
	w.curInfo.BgnRecd = w.recdNum
	w.curInfo.ValueInfo.InitNull(w.dt)

	w.curCAB = cab.New(w.dt, w.maxDef, w.cfg.Capacity, w.repKind)
	if err := w.curCAB.Init2Write(w.recdNum); err != nil {
		return fmt.Errorf("column: prepare: %w", err)
	}

	if w.cfg.UseBloom && w.bloom == nil {
		w.bloom = bloomfilter.New(w.cfg.Capacity)
	}

	w.state = stateWriting
	return nil
}

// Close flushes the tail block exactly once and releases resources
// (spec §4.2's destructor contract).
func (w *CABWriter) Close() error {
	if w.failed() {
		return w.closeBuffers()
	}
	if w.curCAB != nil {
		if err := w.flush(true); err != nil {
			w.state = stateFailed
			_ = w.closeBuffers()
			return err
		}
	}
	return w.closeBuffers()
}

func alignUp(n, align uint64) uint64 {
	if align == 0 {
		return n
	}
	rem := n % align
	if rem == 0 {
		return n
	}
	return n + (align - rem)
}
