package column

import (
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

// CABAppender reopens an existing column and resumes writing,
// reconciling with a possibly non-full tail block, per spec §4.3.
type CABAppender struct {
	CABWriter
}

// Init2Append reopens base for continued writing.
func Init2Append(base string, tree *schema.Tree, path schema.Path, cfg *config.Config) (*CABAppender, error) {
	a := &CABAppender{}
	if err := a.init(tree, path, cfg); err != nil {
		return nil, err
	}
	a.basePath = base

	infoBuf, err := cabinfo.Init2Append(base + ".cab.info")
	if err != nil {
		return nil, fmt.Errorf("column: appender init2append: %w", err)
	}
	a.infoBuf = infoBuf

	tail, err := infoBuf.GetTailInfo2Append()
	if err != nil {
		return nil, fmt.Errorf("column: appender init2append: %w", err)
	}

	// spec §7 crash semantics: discard any content bytes a prior crash
	// left past the last durable descriptor before resuming writes.
	if contentEnd, ok := infoBuf.ContentEnd(); ok {
		if err := buffer.TruncateFile(base+".cab", int64(contentEnd)); err != nil {
			return nil, fmt.Errorf("column: appender init2append: %w", err)
		}
	}

	contBuf, err := buffer.Init2Modify(base + ".cab")
	if err != nil {
		return nil, fmt.Errorf("column: appender init2append: %w", err)
	}
	a.contBuf = contBuf
	a.layouter = layout.New(contBuf, cfg.Compression)

	a.recdNum = tail.BgnRecd + uint64(tail.RecordNum)
	a.fileOff = tail.FileOff

	if tail.Full {
		// Tail block is sealed; resume exactly like a fresh writer.
		a.fileOff += tail.StrgSize
		if _, err := a.contBuf.GetFileIO().SeekContent(int64(a.fileOff), io.SeekStart); err != nil {
			return nil, fmt.Errorf("column: appender: seek: %w", err)
		}
		if err := a.prepareCAB2write(); err != nil {
			return nil, err
		}
		return a, nil
	}

	if err := a.reconcileTail(tail); err != nil {
		return nil, err
	}
	return a, nil
}

// reconcileTail reconstructs a partial tail block and replays its
// items into a fresh write-mode block, per spec §4.3's algorithm and
// §9's double-buffering design note.
func (a *CABAppender) reconcileTail(tail *cabinfo.CABInfo) error {
	if _, err := a.contBuf.GetFileIO().SeekContent(int64(a.fileOff), io.SeekStart); err != nil {
		return fmt.Errorf("column: appender: seek: %w", err)
	}

	// Load the tail block's raw bytes into the live content buffer,
	// then copy them into a scratch buffer before the live buffer is
	// reused as the new block's write target — aliasing it as both
	// read source and write destination would be unsafe.
	if err := a.contBuf.LoadExact(int(tail.StrgSize)); err != nil {
		return fmt.Errorf("column: appender: load tail: %w", err)
	}
	scratch := buffer.NewInMemory()
	buffer.CopyInto(scratch, a.contBuf)
	a.contBuf.Clear()

	tailBlock := cab.New(a.dt, a.maxDef, a.cfg.Capacity, a.repKind)
	if err := tailBlock.Init2Read(tail.BgnRecd, cab.BlockType(tail.BlkType)); err != nil {
		return fmt.Errorf("column: appender: init tail block: %w", err)
	}
	if err := a.layouter.DecodeFromBytes(scratch.Bytes(), tail, tailBlock); err != nil {
		return fmt.Errorf("column: appender: decode tail: %w", err)
	}

	// Construct the new current block over the live content buffer and
	// replay the tail block's items into it, restoring the exact
	// in-memory state a writer would have had just before block-full.
	a.curInfo = tail
	a.curCAB = cab.New(a.dt, a.maxDef, a.cfg.Capacity, a.repKind)
	if err := a.curCAB.Init2Write(tail.BgnRecd); err != nil {
		return fmt.Errorf("column: appender: init new block: %w", err)
	}
	a.curCAB.CopyContent(tailBlock)

	if a.cfg.UseBloom && a.bloom == nil {
		a.bloom = bloomfilter.New(a.cfg.Capacity)
		for i := uint64(0); i < tailBlock.ItemNum(); i++ {
			item, _ := tailBlock.Read(i)
			if !item.IsNull() {
				a.bloom.Add(item.Value)
			}
		}
	}

	// Seek content back so the next flush overwrites the tail in place.
	if _, err := a.contBuf.GetFileIO().SeekContent(int64(a.fileOff), io.SeekStart); err != nil {
		return fmt.Errorf("column: appender: seek: %w", err)
	}
	return nil
}
