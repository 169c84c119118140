package layout

import (
	"path/filepath"
	"testing"

	"github.com/flashcab/cabstore/buffer"
	"github.com/flashcab/cabstore/cab"
	"github.com/flashcab/cabstore/cabinfo"
	"github.com/flashcab/cabstore/config"
	"github.com/flashcab/cabstore/datatype"
	"github.com/flashcab/cabstore/repetition"
)

func writeBlock(t *testing.T, dt datatype.DataType, values []int32, repKind repetition.Kind) *cab.CAB {
	t.Helper()
	block := cab.New(dt, 1, uint64(len(values))+1, repKind)
	if err := block.Init2Write(0); err != nil {
		t.Fatal(err)
	}
	for _, v := range values {
		bin, err := dt.EncodeText(itoa(v))
		if err != nil {
			t.Fatal(err)
		}
		if block.WriteValue(0, 1, bin) != 1 {
			t.Fatal("write rejected unexpectedly")
		}
	}
	return block
}

func itoa(v int32) string {
	neg := v < 0
	if neg {
		v = -v
	}
	if v == 0 {
		return "0"
	}
	var digits []byte
	for v > 0 {
		digits = append([]byte{byte('0' + v%10)}, digits...)
		v /= 10
	}
	if neg {
		digits = append([]byte{'-'}, digits...)
	}
	return string(digits)
}

func roundTrip(t *testing.T, cmp config.CompressionKind, values []int32, repKind repetition.Kind) *cab.CAB {
	t.Helper()
	dt := datatype.Int32{}
	block := writeBlock(t, dt, values, repKind)
	block.SetBlockType(block.Classify())

	path := filepath.Join(t.TempDir(), "col.cab")
	wbuf, err := buffer.Init2Write(path)
	if err != nil {
		t.Fatal(err)
	}
	writer := New(wbuf, cmp)

	info := &cabinfo.CABInfo{
		BgnRecd:   0,
		RecordNum: uint32(block.RecordNum()),
		ItemNum:   uint32(block.ItemNum()),
		NullNum:   uint32(block.NullNum()),
	}
	info.ValueInfo.InitNull(dt)
	if block.BlockType() == cab.Trivial {
		info.ValueInfo.Update(dt, block.TrivialValue())
	}

	if err := writer.Flush(info, block); err != nil {
		t.Fatal(err)
	}
	if err := wbuf.GetFileIO().Close(); err != nil {
		t.Fatal(err)
	}

	rbuf, err := buffer.Init2Read(path)
	if err != nil {
		t.Fatal(err)
	}
	defer rbuf.GetFileIO().Close()
	reader := New(rbuf, cmp)

	out := cab.New(dt, 1, uint64(len(values))+1, repKind)
	if err := out.Init2Read(0, cab.BlockType(info.BlkType)); err != nil {
		t.Fatal(err)
	}
	if err := reader.Load(info, out); err != nil {
		t.Fatal(err)
	}
	return out
}

func assertValuesMatch(t *testing.T, dt datatype.DataType, block *cab.CAB, want []int32) {
	t.Helper()
	if block.ItemNum() != uint64(len(want)) {
		t.Fatalf("want %d items got %d", len(want), block.ItemNum())
	}
	for i, w := range want {
		item, got := block.Read(uint64(i))
		if got == 0 {
			t.Fatalf("item %d: unexpected end of block", i)
		}
		text, err := dt.DecodeToText(item.Value)
		if err != nil {
			t.Fatal(err)
		}
		if text != itoa(w) {
			t.Fatalf("item %d: want %d got %s", i, w, text)
		}
	}
}

func TestFlushLoadRoundTripNormalBlock(t *testing.T) {
	values := []int32{10, 20, 10, 30}
	out := roundTrip(t, config.CompressionNone, values, repetition.None)
	if out.BlockType() != cab.Normal {
		t.Fatalf("want Normal block got %v", out.BlockType())
	}
	assertValuesMatch(t, datatype.Int32{}, out, values)
}

func TestFlushLoadRoundTripTrivialBlockWritesZeroBytes(t *testing.T) {
	values := []int32{42, 42, 42}
	dt := datatype.Int32{}
	block := writeBlock(t, dt, values, repetition.None)
	if block.Classify() != cab.Trivial {
		t.Fatalf("want Trivial classification got %v", block.Classify())
	}
	block.SetBlockType(cab.Trivial)
	info := &cabinfo.CABInfo{StrgSize: 1}
	if err := New(buffer.NewInMemory(), config.CompressionNone).Flush(info, block); err != nil {
		t.Fatal(err)
	}
	if info.StrgSize != 0 {
		t.Fatalf("want 0 stored bytes for a Trivial block got %d", info.StrgSize)
	}

	out := roundTrip(t, config.CompressionNone, values, repetition.None)
	if out.BlockType() != cab.Trivial {
		t.Fatalf("want Trivial block got %v", out.BlockType())
	}
	assertValuesMatch(t, dt, out, values)
}

func TestFlushLoadRoundTripWithZstdCompression(t *testing.T) {
	values := []int32{1, 2, 3, 4, 5, 6, 7, 8}
	out := roundTrip(t, config.CompressionZstd, values, repetition.None)
	assertValuesMatch(t, datatype.Int32{}, out, values)
}

func TestFlushLoadRoundTripAllNullBlock(t *testing.T) {
	dt := datatype.Int32{}
	block := cab.New(dt, 1, 4, repetition.None)
	if err := block.Init2Write(0); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if block.WriteNull(0, 0) != 1 {
			t.Fatal("write rejected unexpectedly")
		}
	}
	if block.Classify() != cab.AllNull {
		t.Fatalf("want AllNull classification got %v", block.Classify())
	}
	block.SetBlockType(block.Classify())

	path := filepath.Join(t.TempDir(), "col.cab")
	wbuf, err := buffer.Init2Write(path)
	if err != nil {
		t.Fatal(err)
	}
	writer := New(wbuf, config.CompressionNone)
	info := &cabinfo.CABInfo{ItemNum: uint32(block.ItemNum()), NullNum: uint32(block.NullNum()), RecordNum: uint32(block.RecordNum())}
	info.ValueInfo.InitNull(dt)
	if err := writer.Flush(info, block); err != nil {
		t.Fatal(err)
	}
	if err := wbuf.GetFileIO().Close(); err != nil {
		t.Fatal(err)
	}

	rbuf, err := buffer.Init2Read(path)
	if err != nil {
		t.Fatal(err)
	}
	defer rbuf.GetFileIO().Close()
	reader := New(rbuf, config.CompressionNone)
	out := cab.New(dt, 1, 4, repetition.None)
	if err := out.Init2Read(0, cab.BlockType(info.BlkType)); err != nil {
		t.Fatal(err)
	}
	if err := reader.Load(info, out); err != nil {
		t.Fatal(err)
	}
	for i := uint64(0); i < out.ItemNum(); i++ {
		item, got := out.Read(i)
		if got == 0 {
			t.Fatalf("item %d: unexpected end of block", i)
		}
		if !item.IsNull() {
			t.Fatalf("item %d: want null", i)
		}
	}
}

func TestDecodeFromBytesMatchesLoad(t *testing.T) {
	dt := datatype.Int32{}
	values := []int32{5, 6, 7}
	block := writeBlock(t, dt, values, repetition.None)
	block.SetBlockType(block.Classify())

	path := filepath.Join(t.TempDir(), "col.cab")
	wbuf, err := buffer.Init2Write(path)
	if err != nil {
		t.Fatal(err)
	}
	writer := New(wbuf, config.CompressionNone)
	info := &cabinfo.CABInfo{ItemNum: uint32(block.ItemNum()), RecordNum: uint32(block.RecordNum())}
	info.ValueInfo.InitNull(dt)
	if err := writer.Flush(info, block); err != nil {
		t.Fatal(err)
	}
	if err := wbuf.GetFileIO().Close(); err != nil {
		t.Fatal(err)
	}

	rbuf, err := buffer.Init2Read(path)
	if err != nil {
		t.Fatal(err)
	}
	defer rbuf.GetFileIO().Close()
	if err := rbuf.LoadExact(int(info.StrgSize)); err != nil {
		t.Fatal(err)
	}
	payload := append([]byte(nil), rbuf.Bytes()...)

	reader := New(rbuf, config.CompressionNone)
	out := cab.New(dt, 1, 4, repetition.None)
	if err := out.Init2Read(0, cab.BlockType(info.BlkType)); err != nil {
		t.Fatal(err)
	}
	if err := reader.DecodeFromBytes(payload, info, out); err != nil {
		t.Fatal(err)
	}
	assertValuesMatch(t, dt, out, values)
}
