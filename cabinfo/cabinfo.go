// Package cabinfo owns the info file: the append-only sequence of
// per-block descriptors (CABInfo) plus the column-level value summary,
// per spec.md §4.5 / §6.
package cabinfo

import (
	"bytes"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/flashcab/cabstore/buffer"
	"github.com/flashcab/cabstore/config"
	"github.com/flashcab/cabstore/datatype"
	"github.com/flashcab/cabstore/repetition"
)

// CABInfo is the fixed-shape descriptor spec §3/§6 defines for one
// block. A CABInfo returned by CABInfoBuffer is a borrow: it is backed
// by a pointer into CABInfoBuffer's own descriptor slice (a slice of
// pointers, not values), so appending later descriptors never
// invalidates it (spec §9's "Borrow lifetime of CABInfo*").
type CABInfo struct {
	BgnRecd   uint64
	RecordNum uint32
	ItemNum   uint32
	NullNum   uint32
	FileOff   uint64
	StrgSize  uint64
	RepType   repetition.Kind
	CmpType   config.CompressionKind
	BlkType   uint8 // cab.BlockType, kept untyped here to avoid an import cycle
	// Full is an explicit replacement for the ambiguous
	// `record_num % C == 0` tail-full test spec §9 flags — set by the
	// writer at flush time, consulted directly by the appender.
	Full      bool
	ValueInfo ColumnValueInfo

	BlmFileOff uint64
	BlmMemLen  uint64
	BlmDskLen  uint64

	// diskOff/persisted track whether this descriptor already occupies
	// an on-disk entry slot. Descriptors are append-only with one
	// exception (spec §9): an appender resuming a non-full tail block
	// reuses the same in-memory CABInfo, and its eventual re-flush must
	// overwrite that tail's existing slot in place rather than append a
	// duplicate. AppendInfo uses these to tell the two cases apart.
	diskOff   uint64
	persisted bool
}

// Header is the info file's fixed preamble: column-wide metadata plus
// the column-level value summary (spec §6).
type Header struct {
	Capacity      uint64
	RepType       repetition.Kind
	CmpType       config.CompressionKind
	TypeID        datatype.ID
	MaxDef        uint8
	ColumnSummary ColumnValueInfo
}

const (
	entryKindDescriptor = 1
	entryKindBloom       = 2
)

// CABInfoBuffer owns one column's info file.
type CABInfoBuffer struct {
	buf   *buffer.Buffer
	dt    datatype.DataType
	width int

	header      Header
	descriptors []*CABInfo

	tailOff uint64 // next append position
}

func headerPayloadSize(width int) int {
	return 8 + 1 + 1 + 2 + 1 + 1 + valueInfoSize(width)
}

func valueInfoSize(width int) int {
	return 1 + 2*width
}

func descriptorPayloadSize(width int) int {
	return 8 + 4 + 4 + 4 + 8 + 8 + 1 + 1 + 1 + 1 + valueInfoSize(width) + 8 + 8 + 8
}

// Init2Write creates a new info file for a fresh column session.
func Init2Write(path string, dt datatype.DataType, cap uint64, repKind repetition.Kind, cmp config.CompressionKind, maxDef uint32) (*CABInfoBuffer, error) {
	buf, err := buffer.Init2Write(path)
	if err != nil {
		return nil, fmt.Errorf("cabinfo: init2write %s: %w", path, err)
	}
	typeID, err := datatype.TypeID(dt)
	if err != nil {
		return nil, fmt.Errorf("cabinfo: init2write: %w", err)
	}
	b := &CABInfoBuffer{
		buf:   buf,
		dt:    dt,
		width: dt.DefSize(),
		header: Header{
			Capacity: cap,
			RepType:  repKind,
			CmpType:  cmp,
			TypeID:   typeID,
			MaxDef:   uint8(maxDef),
		},
	}
	b.header.ColumnSummary.InitNull(dt)
	if err := b.writeHeader(); err != nil {
		return nil, err
	}
	b.tailOff = uint64(headerPayloadSize(b.width))
	return b, nil
}

// Init2Read opens an existing info file read-only and indexes every
// descriptor.
func Init2Read(path string) (*CABInfoBuffer, error) {
	buf, err := buffer.Init2Read(path)
	if err != nil {
		return nil, fmt.Errorf("cabinfo: init2read %s: %w", path, err)
	}
	return load(buf)
}

// Init2Append opens an existing info file for read+write resumption,
// indexing every descriptor and positioning for further appends.
func Init2Append(path string) (*CABInfoBuffer, error) {
	buf, err := buffer.Init2Modify(path)
	if err != nil {
		return nil, fmt.Errorf("cabinfo: init2append %s: %w", path, err)
	}
	return load(buf)
}

func load(buf *buffer.Buffer) (*CABInfoBuffer, error) {
	b := &CABInfoBuffer{buf: buf}
	if err := b.readHeader(); err != nil {
		return nil, err
	}
	dt, err := datatype.FromID(b.header.TypeID)
	if err != nil {
		return nil, fmt.Errorf("cabinfo: load: %w", err)
	}
	b.dt = dt
	b.width = dt.DefSize()

	off := uint64(headerPayloadSize(b.width))
	fio := b.buf.GetFileIO()
	for {
		entryOff := off
		kind, payload, next, err := readEntry(fio, off)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("cabinfo: load: %w", err)
		}
		if kind == entryKindDescriptor {
			info, err := decodeDescriptor(payload, b.width)
			if err != nil {
				return nil, fmt.Errorf("cabinfo: load: %w", err)
			}
			info.diskOff = entryOff
			info.persisted = true
			b.descriptors = append(b.descriptors, info)
		}
		off = next
	}
	b.tailOff = off
	return b, nil
}

// GetValueInfo returns the column-level value summary, mutable in
// place by the writer.
func (b *CABInfoBuffer) GetValueInfo() *ColumnValueInfo { return &b.header.ColumnSummary }

// DataType reports the column's resolved data type (populated on
// Init2Read/Init2Append; zero value on Init2Write, where the caller
// already knows it).
func (b *CABInfoBuffer) DataType() datatype.DataType { return b.dt }

// Header exposes the parsed header, e.g. for an appender or reader to
// recover Capacity/RepType/CmpType/MaxDef.
func (b *CABInfoBuffer) Header() Header { return b.header }

// Count reports how many descriptors have been indexed.
func (b *CABInfoBuffer) Count() int { return len(b.descriptors) }

// ContentEnd reports the content-file byte offset just past the last
// indexed descriptor's region, and whether any descriptor exists. A
// caller opening the content file truncates it to this offset on open
// (spec §7's crash semantics): a crash between a block's content write
// and its descriptor append leaves trailing bytes in the content file
// that no descriptor ever points at, and they are discarded rather than
// ever read.
func (b *CABInfoBuffer) ContentEnd() (uint64, bool) {
	if len(b.descriptors) == 0 {
		return 0, false
	}
	last := b.descriptors[len(b.descriptors)-1]
	return last.FileOff + last.StrgSize, true
}

// GetCABInfo borrows the idx-th descriptor, or (nil, nil) at EOF.
func (b *CABInfoBuffer) GetCABInfo(idx int) (*CABInfo, error) {
	if idx < 0 {
		return nil, fmt.Errorf("cabinfo: negative index %d", idx)
	}
	if idx >= len(b.descriptors) {
		return nil, nil
	}
	return b.descriptors[idx], nil
}

// GetNextInfo2Write reserves a new descriptor slot and returns a borrow
// to it. The slot is visible to later GetCABInfo calls immediately
// (matching a sequential writer's own view of its in-flight block) but
// is not durable until AppendInfo persists it.
func (b *CABInfoBuffer) GetNextInfo2Write() *CABInfo {
	info := &CABInfo{}
	b.descriptors = append(b.descriptors, info)
	return info
}

// GetTailInfo2Append locates the last descriptor for appender
// resumption.
func (b *CABInfoBuffer) GetTailInfo2Append() (*CABInfo, error) {
	if len(b.descriptors) == 0 {
		return nil, fmt.Errorf("cabinfo: no descriptors to resume from")
	}
	return b.descriptors[len(b.descriptors)-1], nil
}

// MergeValueInfo folds info's block summary into the column summary
// and persists the updated header (spec §4.2 flush step 1).
func (b *CABInfoBuffer) MergeValueInfo(info *CABInfo) error {
	Merge(b.dt, &b.header.ColumnSummary, &info.ValueInfo)
	return b.writeHeader()
}

// AppendInfo persists info as a descriptor entry. Must only be called
// after the corresponding content bytes are durable (spec §7's
// crash-consistency ordering). If info already occupies an on-disk
// slot — the appender-resumed tail descriptor, reusing the same
// *CABInfo across a seal-in-place re-flush — this overwrites that slot
// rather than appending a duplicate, since the entry's encoded size
// never changes for a given column. Every other descriptor is brand
// new and gets appended.
func (b *CABInfoBuffer) AppendInfo(info *CABInfo) error {
	payload, err := encodeDescriptor(info, b.width)
	if err != nil {
		return fmt.Errorf("cabinfo: append: %w", err)
	}
	if info.persisted {
		if _, err := writeEntryAt(b.buf.GetFileIO(), info.diskOff, entryKindDescriptor, payload); err != nil {
			return fmt.Errorf("cabinfo: rewrite tail: %w", err)
		}
		return nil
	}
	entryOff := b.tailOff
	next, err := writeEntry(b.buf.GetFileIO(), b.tailOff, entryKindDescriptor, payload)
	if err != nil {
		return fmt.Errorf("cabinfo: append: %w", err)
	}
	info.diskOff = entryOff
	info.persisted = true
	b.tailOff = next
	return nil
}

// FlushBloomContent appends a Bloom filter payload and stamps info's
// Blm* fields with its location (spec §4.5's flushBloomContent, aligned
// per config.Config.Alignment — mirrors UTILITY_CALC_ALIGN_SIZE).
func (b *CABInfoBuffer) FlushBloomContent(info *CABInfo, bin []byte, memLen, dskLen uint64) error {
	padded := make([]byte, dskLen)
	copy(padded, bin)
	payloadOff, next, err := writeEntryWithPayloadOffset(b.buf.GetFileIO(), b.tailOff, entryKindBloom, padded)
	if err != nil {
		return fmt.Errorf("cabinfo: flush bloom: %w", err)
	}
	info.BlmFileOff = payloadOff
	info.BlmMemLen = memLen
	info.BlmDskLen = dskLen
	b.tailOff = next
	return nil
}

// LoadBloomContent reads a previously flushed Bloom payload into dst,
// sized to info.BlmMemLen.
func (b *CABInfoBuffer) LoadBloomContent(info *CABInfo, dst []byte) error {
	fio := b.buf.GetFileIO()
	if _, err := fio.SeekContent(int64(info.BlmFileOff), io.SeekStart); err != nil {
		return fmt.Errorf("cabinfo: load bloom: %w", err)
	}
	if _, err := fio.Read(dst); err != nil {
		return fmt.Errorf("cabinfo: load bloom: %w", err)
	}
	return nil
}

// Close releases the backing file.
func (b *CABInfoBuffer) Close() error {
	if fio := b.buf.GetFileIO(); fio != nil {
		return fio.Close()
	}
	return nil
}

func (b *CABInfoBuffer) writeHeader() error {
	payload := encodeHeader(&b.header, b.width)
	fio := b.buf.GetFileIO()
	if _, err := fio.SeekContent(0, io.SeekStart); err != nil {
		return fmt.Errorf("cabinfo: write header: %w", err)
	}
	if _, err := fio.Write(payload); err != nil {
		return fmt.Errorf("cabinfo: write header: %w", err)
	}
	if _, err := fio.SeekContent(int64(b.tailOff), io.SeekStart); err != nil {
		return fmt.Errorf("cabinfo: write header: %w", err)
	}
	return nil
}

func (b *CABInfoBuffer) readHeader() error {
	fio := b.buf.GetFileIO()
	if _, err := fio.SeekContent(0, io.SeekStart); err != nil {
		return fmt.Errorf("cabinfo: read header: %w", err)
	}
	// Read the fixed non-value-info prefix first to learn TypeID, then
	// the data type's width to size the value-info tail.
	prefix := make([]byte, 8+1+1+2+1+1)
	if _, err := fio.Read(prefix); err != nil {
		return fmt.Errorf("cabinfo: read header: %w", err)
	}
	r := bytes.NewReader(prefix)
	cap64, _, err := readUint64(r)
	if err != nil {
		return fmt.Errorf("cabinfo: read header: %w", err)
	}
	repByte, _ := readByte(r)
	cmpByte, _ := readByte(r)
	typeID, _, err := readUint16(r)
	if err != nil {
		return fmt.Errorf("cabinfo: read header: %w", err)
	}
	maxDef, _ := readByte(r)
	_, _ = readByte(r) // reserved

	dt, err := datatype.FromID(datatype.ID(typeID))
	if err != nil {
		return fmt.Errorf("cabinfo: read header: %w", err)
	}
	width := dt.DefSize()

	viBuf := make([]byte, valueInfoSize(width))
	if _, err := fio.Read(viBuf); err != nil {
		return fmt.Errorf("cabinfo: read header: %w", err)
	}
	var vi ColumnValueInfo
	if _, err := vi.readFrom(bytes.NewReader(viBuf), width); err != nil {
		return fmt.Errorf("cabinfo: read header: %w", err)
	}

	b.header = Header{
		Capacity:      cap64,
		RepType:       repetition.Kind(repByte),
		CmpType:       config.CompressionKind(cmpByte),
		TypeID:        datatype.ID(typeID),
		MaxDef:        maxDef,
		ColumnSummary: vi,
	}
	return nil
}

func encodeHeader(h *Header, width int) []byte {
	var buf bytes.Buffer
	writeUint64(&buf, h.Capacity)
	buf.WriteByte(byte(h.RepType))
	buf.WriteByte(byte(h.CmpType))
	writeUint16(&buf, uint16(h.TypeID))
	buf.WriteByte(h.MaxDef)
	buf.WriteByte(0) // reserved
	h.ColumnSummary.writeTo(&buf, width)
	return buf.Bytes()
}

func encodeDescriptor(info *CABInfo, width int) ([]byte, error) {
	var buf bytes.Buffer
	writeUint64(&buf, info.BgnRecd)
	writeUint32(&buf, info.RecordNum)
	writeUint32(&buf, info.ItemNum)
	writeUint32(&buf, info.NullNum)
	writeUint64(&buf, info.FileOff)
	writeUint64(&buf, info.StrgSize)
	buf.WriteByte(byte(info.RepType))
	buf.WriteByte(byte(info.CmpType))
	buf.WriteByte(info.BlkType)
	if info.Full {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	if _, err := info.ValueInfo.writeTo(&buf, width); err != nil {
		return nil, err
	}
	writeUint64(&buf, info.BlmFileOff)
	writeUint64(&buf, info.BlmMemLen)
	writeUint64(&buf, info.BlmDskLen)
	return buf.Bytes(), nil
}

func decodeDescriptor(payload []byte, width int) (*CABInfo, error) {
	r := bytes.NewReader(payload)
	info := &CABInfo{}
	var err error
	if info.BgnRecd, _, err = readUint64(r); err != nil {
		return nil, err
	}
	if info.RecordNum, _, err = readUint32(r); err != nil {
		return nil, err
	}
	if info.ItemNum, _, err = readUint32(r); err != nil {
		return nil, err
	}
	if info.NullNum, _, err = readUint32(r); err != nil {
		return nil, err
	}
	if info.FileOff, _, err = readUint64(r); err != nil {
		return nil, err
	}
	if info.StrgSize, _, err = readUint64(r); err != nil {
		return nil, err
	}
	repByte, err := readByte(r)
	if err != nil {
		return nil, err
	}
	cmpByte, err := readByte(r)
	if err != nil {
		return nil, err
	}
	blkByte, err := readByte(r)
	if err != nil {
		return nil, err
	}
	fullByte, err := readByte(r)
	if err != nil {
		return nil, err
	}
	info.RepType = repetition.Kind(repByte)
	info.CmpType = config.CompressionKind(cmpByte)
	info.BlkType = blkByte
	info.Full = fullByte != 0
	if _, err := info.ValueInfo.readFrom(r, width); err != nil {
		return nil, err
	}
	if info.BlmFileOff, _, err = readUint64(r); err != nil {
		return nil, err
	}
	if info.BlmMemLen, _, err = readUint64(r); err != nil {
		return nil, err
	}
	if info.BlmDskLen, _, err = readUint64(r); err != nil {
		return nil, err
	}
	return info, nil
}

// writeEntry appends a length-prefixed, CRC32-checked entry at off and
// returns the offset just past it.
func writeEntry(fio *buffer.FileIO, off uint64, kind byte, payload []byte) (uint64, error) {
	next, err := writeEntryAt(fio, off, kind, payload)
	return next, err
}

func writeEntryWithPayloadOffset(fio *buffer.FileIO, off uint64, kind byte, payload []byte) (payloadOff, next uint64, err error) {
	if _, err = fio.SeekContent(int64(off), io.SeekStart); err != nil {
		return 0, 0, err
	}
	if err = writeEntryHeader(fio, kind, uint64(len(payload))); err != nil {
		return 0, 0, err
	}
	payloadOff = off + 9
	if _, err = fio.Write(payload); err != nil {
		return 0, 0, err
	}
	if err = writeCRC(fio, payload); err != nil {
		return 0, 0, err
	}
	next = payloadOff + uint64(len(payload)) + 4
	return payloadOff, next, nil
}

func writeEntryAt(fio *buffer.FileIO, off uint64, kind byte, payload []byte) (uint64, error) {
	_, next, err := writeEntryWithPayloadOffset(fio, off, kind, payload)
	return next, err
}

func writeEntryHeader(fio *buffer.FileIO, kind byte, length uint64) error {
	var buf bytes.Buffer
	buf.WriteByte(kind)
	writeUint64(&buf, length)
	_, err := fio.Write(buf.Bytes())
	return err
}

func writeCRC(fio *buffer.FileIO, payload []byte) error {
	var buf bytes.Buffer
	writeUint32(&buf, crc32.ChecksumIEEE(payload))
	_, err := fio.Write(buf.Bytes())
	return err
}

// readEntry reads one length-prefixed entry at off, returning its kind,
// payload, and the offset just past it. Returns io.EOF if off is at the
// file's end.
func readEntry(fio *buffer.FileIO, off uint64) (kind byte, payload []byte, next uint64, err error) {
	if _, err = fio.SeekContent(int64(off), io.SeekStart); err != nil {
		return 0, nil, 0, fmt.Errorf("cabinfo: seek entry: %w", err)
	}
	var prefix [9]byte
	if _, err = fio.Read(prefix[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, nil, 0, io.EOF
		}
		return 0, nil, 0, err
	}
	kind = prefix[0]
	length, _, err := readUint64(bytes.NewReader(prefix[1:]))
	if err != nil {
		return 0, nil, 0, err
	}
	payload = make([]byte, length)
	if length > 0 {
		if _, err = fio.Read(payload); err != nil {
			return 0, nil, 0, err
		}
	}
	var crcBuf [4]byte
	if _, err = fio.Read(crcBuf[:]); err != nil {
		return 0, nil, 0, err
	}
	if crc32.ChecksumIEEE(payload) != byteOrderUint32(crcBuf) {
		return 0, nil, 0, fmt.Errorf("cabinfo: corrupt entry at offset %d: crc mismatch", off)
	}
	next = off + 9 + length + 4
	return kind, payload, next, nil
}

func byteOrderUint32(b [4]byte) uint32 {
	v, _, _ := readUint32(bytes.NewReader(b[:]))
	return v
}

func readByte(r io.Reader) (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func writeUint16(w io.Writer, v uint16) {
	var buf [2]byte
	buf[0] = byte(v)
	buf[1] = byte(v >> 8)
	w.Write(buf[:])
}

func readUint16(r io.Reader) (uint16, int, error) {
	var buf [2]byte
	n, err := io.ReadFull(r, buf[:])
	if err != nil {
		return 0, n, err
	}
	return uint16(buf[0]) | uint16(buf[1])<<8, n, nil
}
