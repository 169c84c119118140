package cab

import (
	"encoding/binary"
	"io"
)

func writeUint64(w io.Writer, v uint64) (int64, error) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	n, err := w.Write(buf[:])
	return int64(n), err
}

func readUint64(r io.Reader) (uint64, int64, error) {
	var buf [8]byte
	n, err := io.ReadFull(r, buf[:])
	if err != nil {
		return 0, int64(n), err
	}
	return binary.LittleEndian.Uint64(buf[:]), int64(n), nil
}
