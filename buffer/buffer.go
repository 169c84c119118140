// Package buffer is the external buffer/file-I/O collaborator spec.md
// §1 and §6 name: memory-resident and file-backed byte buffers with
// seek. A CAB session's layouter serializes into (or deserializes from)
// a Buffer's memory region; the FileIO half moves that region to or from
// the content file at a caller-chosen offset.
package buffer

import (
	"fmt"
	"io"
	"os"
)

// FileIO wraps the backing *os.File for a Buffer opened in file mode.
// SeekContent is the one operation spec §6 names explicitly; the rest
// (Read/Write at the current position) follow the teacher's own direct
// *os.File usage in wal/wal_writer.go and sst/writer.go.
type FileIO struct {
	f *os.File
}

// SeekContent repositions the file's content cursor, mirroring the
// stdlib io.Seeker whence constants.
func (fio *FileIO) SeekContent(offset int64, whence int) (int64, error) {
	pos, err := fio.f.Seek(offset, whence)
	if err != nil {
		return 0, fmt.Errorf("fileio: seek: %w", err)
	}
	return pos, nil
}

// Write writes p at the file's current position.
func (fio *FileIO) Write(p []byte) (int, error) {
	n, err := fio.f.Write(p)
	if err != nil {
		return n, fmt.Errorf("fileio: write: %w", err)
	}
	return n, nil
}

// Read reads into p from the file's current position.
func (fio *FileIO) Read(p []byte) (int, error) {
	n, err := io.ReadFull(fio.f, p)
	if err != nil {
		return n, fmt.Errorf("fileio: read: %w", err)
	}
	return n, nil
}

// Truncate truncates the backing file to size bytes — used for crash
// recovery (spec §7: truncate content file to the last valid
// descriptor's end).
func (fio *FileIO) Truncate(size int64) error {
	if err := fio.f.Truncate(size); err != nil {
		return fmt.Errorf("fileio: truncate: %w", err)
	}
	return nil
}

// Sync flushes the backing file to stable storage.
func (fio *FileIO) Sync() error {
	if err := fio.f.Sync(); err != nil {
		return fmt.Errorf("fileio: sync: %w", err)
	}
	return nil
}

// Close closes the backing file.
func (fio *FileIO) Close() error {
	if err := fio.f.Close(); err != nil {
		return fmt.Errorf("fileio: close: %w", err)
	}
	return nil
}

// Buffer is a growable in-memory byte region, optionally backed by a
// file for persistence. Content bytes for one CAB are staged here by the
// layout package before being written through FileIO, or read back
// through FileIO before being deserialized by the layout package.
type Buffer struct {
	data []byte
	fio  *FileIO
}

// NewInMemory returns a Buffer with no backing file — used for the
// appender's double-buffering scratch copy (spec §4.3, "Design Notes:
// Double buffering in appender").
func NewInMemory() *Buffer {
	return &Buffer{}
}

// TruncateFile truncates the file at path to size bytes by its path
// rather than an already-open FileIO, so a caller can recover a content
// file (spec §7's crash semantics) before deciding whether to reopen it
// read-only, read-write, or for fresh writing.
func TruncateFile(path string, size int64) error {
	if err := os.Truncate(path, size); err != nil {
		return fmt.Errorf("buffer: truncate %s: %w", path, err)
	}
	return nil
}

// Init2Write opens (creating/truncating) path for exclusive write.
func Init2Write(path string) (*Buffer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("buffer: init2write %s: %w", path, err)
	}
	return &Buffer{fio: &FileIO{f: f}}, nil
}

// Init2Read opens path read-only.
func Init2Read(path string) (*Buffer, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("buffer: init2read %s: %w", path, err)
	}
	return &Buffer{fio: &FileIO{f: f}}, nil
}

// Init2Modify opens an existing path for read+write without truncating
// — used by the appender to resume a column in place.
func Init2Modify(path string) (*Buffer, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("buffer: init2modify %s: %w", path, err)
	}
	return &Buffer{fio: &FileIO{f: f}}, nil
}

// GetFileIO returns the backing FileIO, or nil for a pure in-memory
// Buffer.
func (b *Buffer) GetFileIO() *FileIO { return b.fio }

// Used reports how many bytes are currently staged in memory.
func (b *Buffer) Used() int { return len(b.data) }

// Allocate grows the memory region by n bytes and returns a slice over
// the newly appended region. If zero is true the new bytes are
// zero-filled (they always are in Go, but the flag documents intent the
// way the original C++ Buffer::allocate's zero-fill parameter does).
func (b *Buffer) Allocate(n int, zero bool) []byte {
	start := len(b.data)
	b.data = append(b.data, make([]byte, n)...)
	return b.data[start : start+n]
}

// GetPosition returns a slice over the memory region starting at
// offset.
func (b *Buffer) GetPosition(offset int) []byte {
	return b.data[offset:]
}

// Bytes returns the full staged memory region.
func (b *Buffer) Bytes() []byte { return b.data }

// Clear resets the memory region to empty without releasing capacity.
func (b *Buffer) Clear() { b.data = b.data[:0] }

// LoadExact reads n bytes through the backing FileIO (at its current
// seek position) into the memory region, replacing any prior content.
func (b *Buffer) LoadExact(n int) error {
	b.data = make([]byte, n)
	if n == 0 {
		return nil
	}
	if _, err := b.fio.Read(b.data); err != nil {
		return fmt.Errorf("buffer: load: %w", err)
	}
	return nil
}

// Flush writes the memory region through the backing FileIO at its
// current seek position.
func (b *Buffer) Flush() error {
	if len(b.data) == 0 {
		return nil
	}
	if _, err := b.fio.Write(b.data); err != nil {
		return fmt.Errorf("buffer: flush: %w", err)
	}
	return nil
}

// CopyInto deep-copies src's staged bytes into dst's memory region —
// the appender's double-buffering step: the reconstructed tail content
// must be copied out before the live buffer is reused as a write target
// (spec Design Notes).
func CopyInto(dst, src *Buffer) {
	dst.data = append(dst.data[:0], src.data...)
}
