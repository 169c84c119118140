// Package column implements the CAB operator family spec.md §4 names:
// CABWriter, CABAppender, and CABReader, sharing the operator base
// state spec §9's "Design Notes" asks for — modeled here as one shared
// struct embedded by each session variant (tagged by construction, not
// dynamic dispatch), rather than the original's virtual-inheritance
// operator hierarchy.
package column

import (
	"fmt"

	"github.com/flashcab/cabstore/bloomfilter"
	"github.com/flashcab/cabstore/buffer"
	"github.com/flashcab/cabstore/cab"
	"github.com/flashcab/cabstore/cabinfo"
	"github.com/flashcab/cabstore/config"
	"github.com/flashcab/cabstore/datatype"
	"github.com/flashcab/cabstore/layout"
	"github.com/flashcab/cabstore/repetition"
	"github.com/flashcab/cabstore/schema"
	"github.com/flashcab/cabstore/valuearray"
)

// state is the block-boundary lifecycle spec §4.2 describes:
// WRITING -> FLUSHING -> PREPARING -> WRITING, with FAILED terminal on
// any I/O error.
type state uint8

const (
	stateWriting state = iota
	stateFlushing
	statePreparing
	stateFailed
)

// operator holds the state every CAB session variant shares: schema
// resolution, codec, block metadata, current block, current info
// record, content buffer, and layouter (spec §3's "Ownership &
// lifecycle").
type operator struct {
	basePath string
	cfg      *config.Config

	dt      datatype.DataType
	maxRep  uint32
	maxDef  uint32
	repKind repetition.Kind
	rept    *repetition.Codec

	recdNum uint64
	fileOff uint64

	contBuf  *buffer.Buffer
	layouter *layout.CABLayouter
	infoBuf  *cabinfo.CABInfoBuffer

	curCAB  *cab.CAB
	curInfo *cabinfo.CABInfo

	bloom *bloomfilter.Filter

	state state
}

// init resolves path against tree and stamps the operator's immutable
// per-column facts. Mirrors CABOperator::init.
func (o *operator) init(tree *schema.Tree, path schema.Path, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("column: init: %w", err)
	}
	dt, maxRep, maxDef, repKind, err := tree.Resolve(path)
	if err != nil {
		return fmt.Errorf("column: init: %w", err)
	}
	o.cfg = cfg
	o.dt = dt
	o.maxRep = maxRep
	o.maxDef = maxDef
	o.repKind = repKind
	o.rept = repetition.New(maxRep)
	return nil
}

func (o *operator) failed() bool { return o.state == stateFailed }

func (o *operator) fail(err error) error {
	o.state = stateFailed
	return err
}

// calcAlignBegin floors rbgn down to the nearest multiple of the block
// capacity, mirroring Utility::calcAlignBegin.
func calcAlignBegin(rbgn, capacity uint64) uint64 {
	return (rbgn / capacity) * capacity
}

// GetDataType exposes the resolved column data type (e.g. for a
// caller encoding text/binary literals before calling WriteText).
func (o *operator) GetDataType() datatype.DataType { return o.dt }

// GetType reports the current block's classification (spec §4.1's
// getType, a view on the current info record). Panics if no block is
// current — callers are expected to have loaded one first.
func (o *operator) GetType() cab.BlockType { return cab.BlockType(o.curInfo.BlkType) }

// IsTrivialCAB reports whether the current block is a Trivial block.
func (o *operator) IsTrivialCAB() bool { return o.GetType() == cab.Trivial }

// IsAllNullCAB reports whether the current block is an AllNull block.
func (o *operator) IsAllNullCAB() bool { return o.GetType() == cab.AllNull }

// GetCABBeginRid reports the current block's first record id.
func (o *operator) GetCABBeginRid() uint64 { return o.curInfo.BgnRecd }

// GetItemNumber reports how many items the current block holds.
func (o *operator) GetItemNumber() uint64 { return uint64(o.curInfo.ItemNum) }

// GetBinValueArray borrows the current block's raw value container.
func (o *operator) GetBinValueArray() *valuearray.BinaryValueArray {
	return o.curCAB.BinValueArray()
}

// GetRepValueArray borrows the current block's repetition bit/packed
// array for fast per-item repetition lookups.
func (o *operator) GetRepValueArray() repArrayView { return o.curCAB.RepBitsVec() }

// repArrayView mirrors cab's own read-only repetition-array accessor
// interface, so GetRepValueArray can return it without naming cab's
// unexported type.
type repArrayView interface {
	Get(idx uint64) uint32
	Len() uint64
}

// closeBuffers closes the content and info files, returning the first
// close error. A second call closes already-closed files and returns
// that error.
func (o *operator) closeBuffers() error {
	var firstErr error
	if o.contBuf != nil {
		if fio := o.contBuf.GetFileIO(); fio != nil {
			if err := fio.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	if o.infoBuf != nil {
		if err := o.infoBuf.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
