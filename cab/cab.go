// Package cab implements the column-aligned block itself: the
// capacity-bounded, record-aligned in-memory region that holds one
// column's shredded items, per spec.md §3/§4.
package cab

import (
	"bytes"
	"fmt"

	"github.com/flashcab/cabstore/bitvector"
	"github.com/flashcab/cabstore/datatype"
	"github.com/flashcab/cabstore/repetition"
	"github.com/flashcab/cabstore/valuearray"
)

// ColumnItem is one decoded item read out of a CAB: its repetition
// level, the next item's repetition level (the reader's look-ahead for
// record-boundary detection), its definition level, and — if
// non-null — its encoded value bytes.
type ColumnItem struct {
	Rep     uint32
	NextRep uint32
	Def     uint32
	Value   []byte // nil means null
}

// IsNull reports whether this item carries no value.
func (ci ColumnItem) IsNull() bool { return ci.Value == nil }

// CAB is one column-aligned block: up to Capacity records' worth of
// items for a single schema-tree leaf path.
type CAB struct {
	dt       datatype.DataType
	maxDef   uint32
	capacity uint64
	repKind  repetition.Kind

	beginRid  uint64
	recdNum   uint64 // records stored in this block so far
	itemNum   uint64
	nullNum   uint64
	blockType BlockType

	rep      repArray
	def      *bitvector.PackedInts
	nullBits *bitvector.BitVector
	values   *valuearray.BinaryValueArray
	valueIdx []int32 // item idx -> index into values, -1 if null

	trivialValue []byte
	trivialOK    bool
}

// New constructs a CAB for the given leaf type, definition maximum,
// capacity (C), and repetition kind. The returned CAB is not yet usable
// until Init2Write or Init2Read is called.
func New(dt datatype.DataType, maxDef uint32, capacity uint64, repKind repetition.Kind) *CAB {
	return &CAB{
		dt:       dt,
		maxDef:   maxDef,
		capacity: capacity,
		repKind:  repKind,
	}
}

// Init2Write resets the block to empty and prepares it to accept writes
// starting at record id beginRid.
func (c *CAB) Init2Write(beginRid uint64) error {
	if c.capacity == 0 {
		return fmt.Errorf("cab: capacity must be non-zero")
	}
	c.beginRid = beginRid
	c.recdNum = 0
	c.itemNum = 0
	c.nullNum = 0
	c.blockType = Normal
	c.rep = newRepArray(c.repKind, c.capacity)
	c.def = bitvector.NewPackedInts(bitvector.WidthFor(c.maxDef), c.capacity)
	c.nullBits = bitvector.New(c.capacity)
	c.values = valuearray.New(c.dt)
	c.valueIdx = c.valueIdx[:0]
	c.trivialValue = nil
	c.trivialOK = false
	return nil
}

// Init2Read prepares the block to be populated by a deserializer
// (the layout package) for reading, with the given begin record id and
// persisted block type.
func (c *CAB) Init2Read(beginRid uint64, blockType BlockType) error {
	c.beginRid = beginRid
	c.blockType = blockType
	c.recdNum = 0
	c.itemNum = 0
	c.nullNum = 0
	c.rep = newRepArray(c.repKind, c.capacity)
	c.def = bitvector.NewPackedInts(bitvector.WidthFor(c.maxDef), c.capacity)
	c.nullBits = bitvector.New(c.capacity)
	c.values = valuearray.New(c.dt)
	c.valueIdx = c.valueIdx[:0]
	c.trivialValue = nil
	c.trivialOK = false
	return nil
}

// DataType reports the block's element type.
func (c *CAB) DataType() datatype.DataType { return c.dt }

// MaxDef reports the schema-declared maximum definition level.
func (c *CAB) MaxDef() uint32 { return c.maxDef }

// Capacity reports C, the block's record capacity.
func (c *CAB) Capacity() uint64 { return c.capacity }

// RepKind reports the block's repetition kind.
func (c *CAB) RepKind() repetition.Kind { return c.repKind }

// BeginRid reports the record id of this block's first record.
func (c *CAB) BeginRid() uint64 { return c.beginRid }

// RecordNum reports how many records this block currently holds.
func (c *CAB) RecordNum() uint64 { return c.recdNum }

// ItemNum reports how many items this block currently holds.
func (c *CAB) ItemNum() uint64 { return c.itemNum }

// NullNum reports how many of this block's items are null.
func (c *CAB) NullNum() uint64 { return c.nullNum }

// BlockType reports the block's content classification.
func (c *CAB) BlockType() BlockType { return c.blockType }

// TrivialValue returns the shared value for a Trivial block (valid only
// when BlockType() == Trivial).
func (c *CAB) TrivialValue() []byte { return c.trivialValue }

// canAccept reports whether an item with the given (already-encoded)
// repetition value can be appended without exceeding capacity. A new
// record (rep == 0) is rejected once the block already holds Capacity
// records; a continuation item (rep != 0) is always accepted, because a
// record may never split across two blocks.
func (c *CAB) canAccept(rep uint32) bool {
	if rep == 0 {
		return c.recdNum < c.capacity
	}
	return true
}

// Full reports whether the block has reached capacity on a record
// boundary (no partial record pending).
func (c *CAB) Full() bool {
	return c.recdNum >= c.capacity
}

// WriteNull appends a null item. Returns 1 on success, 0 if the block is
// full (caller must flush and retry against a fresh block), matching
// spec §4.2's writeNull contract.
func (c *CAB) WriteNull(rep, def uint32) int {
	if !c.canAccept(rep) {
		return 0
	}
	c.appendItem(rep, def, nil)
	return 1
}

// WriteValue appends a non-null item with an already-encoded value.
// Returns 1 on success, 0 if the block is full.
func (c *CAB) WriteValue(rep, def uint32, value []byte) int {
	if !c.canAccept(rep) {
		return 0
	}
	c.appendItem(rep, def, value)
	return 1
}

func (c *CAB) appendItem(rep, def uint32, value []byte) {
	c.rep.Append(rep)
	c.def.Append(def)

	isNull := value == nil
	c.nullBits.Append(isNull)

	if isNull {
		c.nullNum++
		c.valueIdx = append(c.valueIdx, -1)
		c.trivialOK = false
	} else {
		idx := int32(c.values.Len())
		c.values.Append(value)
		c.valueIdx = append(c.valueIdx, idx)

		if c.nullNum > 0 {
			c.trivialOK = false
		} else if c.trivialValue == nil {
			c.trivialValue = append([]byte(nil), value...)
			c.trivialOK = true
		} else if c.trivialOK && !bytes.Equal(c.trivialValue, value) {
			c.trivialOK = false
		}
	}

	c.itemNum++
	if rep == 0 {
		c.recdNum++
	}
}

// Classify derives this block's BlockType from its current content,
// per spec §3's "Block type classification". Called once, at flush
// time, before the block is handed to the layouter.
//
// Trivial requires repetition kind None in addition to "every item
// shares one value": a trivial block stores zero content bytes, so
// repetition and definition must also be fully derivable (one item per
// record, rep always 0, def always max_def). A repeated or nested
// column can share one value across every item yet still need its
// rep/def arrays on disk, so it classifies as Normal instead.
func (c *CAB) Classify() BlockType {
	if c.itemNum == 0 {
		return Normal
	}
	if c.nullNum == c.itemNum {
		return AllNull
	}
	if c.nullNum == 0 && c.trivialOK && c.repKind == repetition.None {
		return Trivial
	}
	return Normal
}

// SetBlockType stamps the block's classification — called by the writer
// after Classify, and by the layouter after deserializing a persisted
// block's type tag.
func (c *CAB) SetBlockType(t BlockType) { c.blockType = t }

// SetTrivialValue installs the shared value for a Trivial block,
// recovered from the descriptor's value summary (min == max == the
// single stored value) since Trivial blocks carry no content bytes.
func (c *CAB) SetTrivialValue(value []byte) { c.trivialValue = value }

// SetCounts restores item/null/record counts when Init2Read populates a
// block directly from persisted arrays rather than via appendItem.
func (c *CAB) SetCounts(itemNum, nullNum, recdNum uint64) {
	c.itemNum = itemNum
	c.nullNum = nullNum
	c.recdNum = recdNum
}

// Read returns the itm_idx-th item. Returns (item, 1) on success,
// (ColumnItem{}, 0) at block end (spec §4.4's read contract).
func (c *CAB) Read(itmIdx uint64) (ColumnItem, int) {
	if itmIdx >= c.itemNum {
		return ColumnItem{}, 0
	}

	// A Trivial block stores zero content bytes: rep/def/value are all
	// derivable (one item per record, always present, shared value).
	if c.blockType == Trivial {
		return ColumnItem{Rep: 0, NextRep: 0, Def: c.maxDef, Value: c.trivialValue}, 1
	}

	ci := ColumnItem{
		Rep: c.rep.Get(itmIdx),
		Def: c.def.Get(itmIdx),
	}
	if itmIdx+1 < c.itemNum {
		ci.NextRep = c.rep.Get(itmIdx + 1)
	}

	switch c.blockType {
	case AllNull:
		// no value stored; leave Value nil
	default:
		if vi := c.valueIdx[itmIdx]; vi >= 0 {
			ci.Value = c.values.Get(int(vi))
		}
	}

	return ci, 1
}

// CopyContent replays every item of src into c, in order — used by the
// appender to restore a reconstructed tail block's exact in-memory state
// into a fresh write-mode block (spec §4.3).
func (c *CAB) CopyContent(src *CAB) {
	for i := uint64(0); i < src.itemNum; i++ {
		item, _ := src.Read(i)
		c.appendItem(item.Rep, item.Def, item.Value)
	}
}

// RepBitsVec exposes the repetition array for the reader's cached
// per-item repetition lookups (spec §4.4's m_rep_vec). Valid regardless
// of repetition kind; for Kind None it always returns 0.
func (c *CAB) RepBitsVec() repArrayView { return c.rep }

// repArrayView is the read-only subset of repArray exposed outside this
// package.
type repArrayView interface {
	Get(idx uint64) uint32
	Len() uint64
}

// BinValueArray exposes the block's raw value container.
func (c *CAB) BinValueArray() *valuearray.BinaryValueArray { return c.values }

// DefLevels exposes the block's packed definition levels.
func (c *CAB) DefLevels() *bitvector.PackedInts { return c.def }

// NullBits exposes the block's null bitmap.
func (c *CAB) NullBits() *bitvector.BitVector { return c.nullBits }

// RepArray exposes the block's raw repetition array for serialization.
func (c *CAB) RepArray() repArray { return c.rep }

// SetValueIdx restores the item->value index map when populating a
// block from persisted arrays (used by Init2Read callers after loading
// null bits and values).
func (c *CAB) SetValueIdx(idx []int32) { c.valueIdx = idx }

// BuildValueIdxFromNullBits derives the item->value index map from a
// freshly-loaded null bitmap and item count — used after deserializing
// a Normal block, where nulls are interleaved with present values.
func (c *CAB) BuildValueIdxFromNullBits() {
	idx := make([]int32, c.itemNum)
	var next int32
	for i := uint64(0); i < c.itemNum; i++ {
		if c.nullBits.Get(i) {
			idx[i] = -1
		} else {
			idx[i] = next
			next++
		}
	}
	c.valueIdx = idx
}
