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
	"github.com/flashcab/cabstore/repetition"
	"github.com/flashcab/cabstore/schema"
)

// CABReader supports random access by record id and sequential item
// iteration within the resident block, per spec §4.4.
type CABReader struct {
	operator
	cabIdx int // m_cab_idx: monotonic cursor into infoBuf's descriptors
}

// Init2Read opens an existing column for reading.
func Init2Read(base string, tree *schema.Tree, path schema.Path, cfg *config.Config) (*CABReader, error) {
	r := &CABReader{}
	if err := r.init(tree, path, cfg); err != nil {
		return nil, err
	}
	r.basePath = base

	infoBuf, err := cabinfo.Init2Read(base + ".cab.info")
	if err != nil {
		return nil, fmt.Errorf("column: reader init2read: %w", err)
	}

	// spec §7 crash semantics: a crash between a content flush and its
	// descriptor append leaves trailing bytes no descriptor points at.
	// Discard them on open rather than ever risk reading them.
	contentEnd, _ := infoBuf.ContentEnd()
	if err := buffer.TruncateFile(base+".cab", int64(contentEnd)); err != nil {
		return nil, fmt.Errorf("column: reader init2read: %w", err)
	}

	contBuf, err := buffer.Init2Read(base + ".cab")
	if err != nil {
		return nil, fmt.Errorf("column: reader init2read: %w", err)
	}
	r.contBuf = contBuf
	r.layouter = layout.New(contBuf, cfg.Compression)
	r.infoBuf = infoBuf

	return r, nil
}

// Descriptor borrows the idx-th block descriptor without loading its
// content — the cheap path for predicate pushdown across many blocks.
func (r *CABReader) Descriptor(idx int) (*cabinfo.CABInfo, error) {
	return r.infoBuf.GetCABInfo(idx)
}

// DescriptorCount reports how many blocks this column holds.
func (r *CABReader) DescriptorCount() int { return r.infoBuf.Count() }

// compareCABIndex4Record reports -1 if ridx precedes info's record
// range, +1 if it's past it, 0 if it falls inside.
func compareCABIndex4Record(info *cabinfo.CABInfo, ridx uint64) int {
	if ridx < info.BgnRecd {
		return -1
	}
	if ridx >= info.BgnRecd+uint64(info.RecordNum) {
		return 1
	}
	return 0
}

// calcCABIndex walks r.cabIdx monotonically toward the block containing
// ridx. Terminates because each step moves the cursor strictly toward
// ridx across sequentially record-ordered blocks.
func (r *CABReader) calcCABIndex(ridx uint64) error {
	for {
		info, err := r.infoBuf.GetCABInfo(r.cabIdx)
		if err != nil {
			return fmt.Errorf("column: reader: calcCABIndex: %w", err)
		}
		if info == nil {
			return fmt.Errorf("column: reader: record %d out of range", ridx)
		}
		cmp := compareCABIndex4Record(info, ridx)
		if cmp == 0 {
			return nil
		}
		r.cabIdx += cmp
	}
}

// prepareNextCAB destroys the resident block and loads the descriptor
// at r.cabIdx, advancing the cursor past it.
func (r *CABReader) prepareNextCAB() error {
	r.curCAB = nil
	r.curInfo = nil

	info, err := r.infoBuf.GetCABInfo(r.cabIdx)
	if err != nil {
		return fmt.Errorf("column: reader: prepareNextCAB: %w", err)
	}
	if info == nil {
		return io.EOF
	}
	r.cabIdx++

	block := cab.New(r.dt, r.maxDef, r.cfg.Capacity, r.repKind)
	if err := block.Init2Read(info.BgnRecd, cab.BlockType(info.BlkType)); err != nil {
		return fmt.Errorf("column: reader: prepareNextCAB: %w", err)
	}

	if cab.BlockType(info.BlkType) != cab.Trivial {
		if _, err := r.contBuf.GetFileIO().SeekContent(int64(info.FileOff), io.SeekStart); err != nil {
			return fmt.Errorf("column: reader: prepareNextCAB: seek: %w", err)
		}
	}
	if err := r.layouter.Load(info, block); err != nil {
		return fmt.Errorf("column: reader: prepareNextCAB: load: %w", err)
	}

	r.curInfo = info
	r.curCAB = block
	return nil
}

// LoadCAB4Record makes the block containing ridx resident, a no-op if
// it already is.
func (r *CABReader) LoadCAB4Record(ridx uint64) error {
	if r.curInfo != nil && ridx >= r.curInfo.BgnRecd && ridx < r.curInfo.BgnRecd+uint64(r.curInfo.RecordNum) {
		return nil
	}
	if err := r.calcCABIndex(ridx); err != nil {
		return err
	}
	return r.prepareNextCAB()
}

// Read returns the itmIdx-th item of the resident block, decoding
// repetition levels back to their logical form for Single codecs.
// Returns (item, 1) on a value, (zero, 0) at block end.
func (r *CABReader) Read(itmIdx uint64) (cab.ColumnItem, int) {
	ci, got := r.curCAB.Read(itmIdx)
	if got == 0 {
		return ci, 0
	}
	if r.repKind == repetition.Single {
		ci.Rep = r.rept.Decode(ci.Rep)
		ci.NextRep = r.rept.Decode(ci.NextRep)
	}
	return ci, 1
}

// GetRecdRange returns the item index just past the record starting at
// bgn within the resident block: bgn+1 for a non-repeating or Trivial
// block, otherwise the next record-boundary item (repetition bit ==
// encode(0)) or the block's item count.
func (r *CABReader) GetRecdRange(bgn uint64) (uint64, error) {
	block := r.curCAB
	if block.RepKind() == repetition.None || block.BlockType() == cab.Trivial {
		return bgn + 1, nil
	}

	rv := block.RepBitsVec()
	if rv.Get(bgn) != 0 {
		return 0, fmt.Errorf("column: reader: getRecdRange: item %d is not a record boundary", bgn)
	}

	n := block.ItemNum()
	for i := bgn + 1; i < n; i++ {
		if rv.Get(i) == 0 {
			return i, nil
		}
	}
	return n, nil
}

// SkipRecds advances idx across num records of the resident block.
// Returns the advanced index and how many records could not be
// consumed because the block ran out of items first.
func (r *CABReader) SkipRecds(num, idx uint64) (uint64, uint64, error) {
	for num > 0 {
		if idx >= r.curCAB.ItemNum() {
			return idx, num, nil
		}
		next, err := r.GetRecdRange(idx)
		if err != nil {
			return idx, num, err
		}
		idx = next
		num--
	}
	return idx, 0, nil
}

// GetRecdBeginItemIdx returns the item index beginning tgtRidx, given
// the caller is currently positioned at (curRidx, curIidx) within the
// same resident block.
func (r *CABReader) GetRecdBeginItemIdx(curRidx, curIidx, tgtRidx uint64) (uint64, error) {
	idx, remaining, err := r.SkipRecds(tgtRidx-curRidx, curIidx)
	if err != nil {
		return 0, err
	}
	if remaining != 0 {
		return 0, fmt.Errorf("column: reader: getRecdBeginItemIdx: record %d not resident in this block", tgtRidx)
	}
	return idx, nil
}

// GetSpecificItemIdx walks from bgn to the item addressed by vidx, a
// per-nesting-level zero-based child index: vidx[l] picks the
// vidx[l]-th item whose decoded repetition equals l+1. Bounded by the
// block's item count throughout — unlike an unbounded walk, a
// structure that lacks the requested child always terminates with an
// error instead of reading past the block.
func (r *CABReader) GetSpecificItemIdx(bgn uint64, vidx []uint32) (uint64, error) {
	idx := bgn
	n := r.curCAB.ItemNum()
	for level, want := range vidx {
		wantRep := uint32(level) + 1
		var count uint32
		found := false
		for ; idx < n; idx++ {
			ci, got := r.Read(idx)
			if got == 0 {
				break
			}
			if ci.Rep < wantRep && idx != bgn {
				break
			}
			if ci.Rep == wantRep {
				if count == want {
					found = true
					break
				}
				count++
			}
		}
		if !found {
			return 0, fmt.Errorf("column: reader: getSpecificItemIdx: no child at level %d index %d", level, want)
		}
	}
	return idx, nil
}

// IsCandidate tests whether a block described by info can possibly
// contain chkBin, without requiring that block to be loaded: a Bloom
// test when enabled, otherwise a fixed-size min/max range check.
// validThreshold excludes every block whose first record id is below it
// (e.g. a snapshot horizon).
func (r *CABReader) IsCandidate(info *cabinfo.CABInfo, chkBin []byte, validThreshold uint64) (bool, error) {
	if info.BgnRecd < validThreshold {
		return false, nil
	}
	if r.cfg.UseBloom {
		buf := make([]byte, info.BlmMemLen)
		if err := r.infoBuf.LoadBloomContent(info, buf); err != nil {
			return false, fmt.Errorf("column: reader: isCandidate: %w", err)
		}
		var bf bloomfilter.Filter
		if _, err := bf.ReadFrom(bytes.NewReader(buf)); err != nil {
			return false, fmt.Errorf("column: reader: isCandidate: %w", err)
		}
		return bf.Test(chkBin), nil
	}
	if r.dt.DefSize() == 0 {
		return true, nil
	}
	return info.ValueInfo.IsCandidate(r.dt, chkBin), nil
}

// Close releases the reader's buffers.
func (r *CABReader) Close() error {
	return r.closeBuffers()
}
