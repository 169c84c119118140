// Command cabdemo wires one CAB column end to end: write a handful of
// records, close, reopen, and read them back. It exists to exercise the
// column package from outside its tests, mirroring the teacher's own
// trivial stub main.go rather than building a multi-column DB on top.
package main

import (
	"fmt"
	"os"

	"github.com/flashcab/cabstore/column"
	"github.com/flashcab/cabstore/config"
	"github.com/flashcab/cabstore/datatype"
	"github.com/flashcab/cabstore/schema"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "cabdemo:", err)
		os.Exit(1)
	}
}

func run() error {
	dir, err := os.MkdirTemp("", "cabdemo")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	tree := schema.NewTree()
	tree.AddLeaf("user.age", datatype.Int32{}, 0, 1)

	cfg := config.New(4)
	base := dir + "/user.age"

	w, err := column.Init2Write(base, tree, "user.age", cfg, 0)
	if err != nil {
		return fmt.Errorf("init2write: %w", err)
	}
	values := []int32{10, 20, 30, 40, 50, 60, 70}
	for _, v := range values {
		bin, err := w.GetDataType().EncodeText(fmt.Sprint(v))
		if err != nil {
			return err
		}
		if _, err := w.WriteBinVal(0, 1, bin); err != nil {
			return fmt.Errorf("write: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}

	r, err := column.Init2Read(base, tree, "user.age", cfg)
	if err != nil {
		return fmt.Errorf("init2read: %w", err)
	}
	defer r.Close()

	for rid := uint64(0); rid < uint64(len(values)); rid++ {
		if err := r.LoadCAB4Record(rid); err != nil {
			return fmt.Errorf("load record %d: %w", rid, err)
		}
		idx := rid - r.GetCABBeginRid()
		ci, got := r.Read(idx)
		if got == 0 {
			return fmt.Errorf("record %d: unexpected EOF", rid)
		}
		text, err := r.GetDataType().DecodeToText(ci.Value)
		if err != nil {
			return err
		}
		fmt.Printf("record %d: %s\n", rid, text)
	}
	return nil
}
