package column

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/flashcab/cabstore/cab"
	"github.com/flashcab/cabstore/config"
	"github.com/flashcab/cabstore/datatype"
	"github.com/flashcab/cabstore/schema"
)

func newFlatTree(t *testing.T, p schema.Path, dt datatype.DataType, maxRep, maxDef uint32) *schema.Tree {
	t.Helper()
	return schema.NewTree().AddLeaf(p, dt, maxRep, maxDef)
}

// Scenario 1: aligned writer, fixed-size ints, C=4, no repetition —
// two descriptors {bgn=0,n=4},{bgn=4,n=3}, column min=10/max=70.
func TestAlignedWriterTwoBlocksWithColumnSummary(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "amount")
	tree := newFlatTree(t, "amount", datatype.Int32{}, 0, 0)
	cfg := config.New(4)

	w, err := Init2Write(base, tree, "amount", cfg, 0)
	if err != nil {
		t.Fatal(err)
	}
	for v := 10; v <= 70; v += 10 {
		if _, err := w.WriteText(0, 0, itoa(int32(v))); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := Init2Read(base, tree, "amount", cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	if r.DescriptorCount() != 2 {
		t.Fatalf("want 2 descriptors got %d", r.DescriptorCount())
	}
	d0, err := r.Descriptor(0)
	if err != nil {
		t.Fatal(err)
	}
	d1, err := r.Descriptor(1)
	if err != nil {
		t.Fatal(err)
	}
	if d0.BgnRecd != 0 || d0.RecordNum != 4 {
		t.Fatalf("descriptor 0 mismatch: %+v", d0)
	}
	if d1.BgnRecd != 4 || d1.RecordNum != 3 {
		t.Fatalf("descriptor 1 mismatch: %+v", d1)
	}

	summary := r.infoBuf.GetValueInfo()
	minText, _ := r.GetDataType().DecodeToText(summary.Min)
	maxText, _ := r.GetDataType().DecodeToText(summary.Max)
	if minText != "10" || maxText != "70" {
		t.Fatalf("want column summary [10,70] got [%s,%s]", minText, maxText)
	}

	for rid := uint64(0); rid < 7; rid++ {
		if err := r.LoadCAB4Record(rid); err != nil {
			t.Fatal(err)
		}
		idx := rid - r.GetCABBeginRid()
		item, got := r.Read(idx)
		if got == 0 {
			t.Fatalf("record %d: unexpected end of block", rid)
		}
		text, err := r.GetDataType().DecodeToText(item.Value)
		if err != nil {
			t.Fatal(err)
		}
		want := itoa(int32((rid + 1) * 10))
		if text != want {
			t.Fatalf("record %d: want %s got %s", rid, want, text)
		}
	}
}

// Scenario 2: single repetition, nested — a repeated field written as
// rep=0 (new record) followed by rep=1 continuation items, C=4 records
// per block. Exercises GetRecdRange/SkipRecds/GetRecdBeginItemIdx/
// GetSpecificItemIdx, the navigation path spec §4.4 builds around
// repetition levels.
func TestSingleRepetitionNestedNavigation(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "tag")
	tree := newFlatTree(t, "tag", datatype.Int32{}, 1, 1)
	cfg := config.New(4)

	// Records (repeated field "tag" per record id):
	//   r0: [1,2,3]  r1: [4]  r2: [5,6]  r3: [7]   (block 0, 4 records)
	//   r4: [8,9]    r5: [10] r6: [11,12,13] r7: [14] (block 1, 4 records)
	records := [][]int32{
		{1, 2, 3}, {4}, {5, 6}, {7},
		{8, 9}, {10}, {11, 12, 13}, {14},
	}

	w, err := Init2Write(base, tree, "tag", cfg, 0)
	if err != nil {
		t.Fatal(err)
	}
	for _, vals := range records {
		for i, v := range vals {
			rep := uint32(0)
			if i > 0 {
				rep = 1
			}
			if _, err := w.WriteText(rep, 1, itoa(v)); err != nil {
				t.Fatal(err)
			}
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := Init2Read(base, tree, "tag", cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	if r.DescriptorCount() != 2 {
		t.Fatalf("want 2 descriptors got %d", r.DescriptorCount())
	}

	if err := r.LoadCAB4Record(0); err != nil {
		t.Fatal(err)
	}

	// r0 occupies items [0,3), r1 [3,4), r2 [4,6), r3 [6,7) — block 0
	// holds 7 items total across its 4 records.
	wantRanges := []struct{ bgn, end uint64 }{
		{0, 3}, {3, 4}, {4, 6}, {6, 7},
	}
	for _, wr := range wantRanges {
		got, err := r.GetRecdRange(wr.bgn)
		if err != nil {
			t.Fatal(err)
		}
		if got != wr.end {
			t.Fatalf("GetRecdRange(%d): want %d got %d", wr.bgn, wr.end, got)
		}
	}

	// SkipRecds(2, 0) should land on r2's first item (idx 4) with nothing
	// left to skip.
	idx, remaining, err := r.SkipRecds(2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if idx != 4 || remaining != 0 {
		t.Fatalf("SkipRecds(2,0): want (4,0) got (%d,%d)", idx, remaining)
	}

	// SkipRecds past the end of the resident block reports the records
	// it could not consume.
	idx, remaining, err = r.SkipRecds(10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if idx != 7 || remaining != 6 {
		t.Fatalf("SkipRecds(10,0): want (7,6) got (%d,%d)", idx, remaining)
	}

	// GetRecdBeginItemIdx(0, 0, 2) should also resolve to r2's first item.
	beginIdx, err := r.GetRecdBeginItemIdx(0, 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if beginIdx != 4 {
		t.Fatalf("GetRecdBeginItemIdx(0,0,2): want 4 got %d", beginIdx)
	}

	// GetSpecificItemIdx walks to the requested child of r0's repeated
	// field: vidx={0} is the second tag (value 2), vidx={1} the third
	// (value 3).
	for _, tc := range []struct {
		want  uint32
		idx   uint64
		value string
	}{
		{0, 1, "2"},
		{1, 2, "3"},
	} {
		got, err := r.GetSpecificItemIdx(0, []uint32{tc.want})
		if err != nil {
			t.Fatal(err)
		}
		if got != tc.idx {
			t.Fatalf("GetSpecificItemIdx(0,[%d]): want idx %d got %d", tc.want, tc.idx, got)
		}
		item, readOK := r.Read(got)
		if readOK == 0 {
			t.Fatalf("GetSpecificItemIdx(0,[%d]): unexpected end of block", tc.want)
		}
		text, err := r.GetDataType().DecodeToText(item.Value)
		if err != nil {
			t.Fatal(err)
		}
		if text != tc.value {
			t.Fatalf("GetSpecificItemIdx(0,[%d]): want value %s got %s", tc.want, tc.value, text)
		}
	}

	// A request for a child beyond what the record holds fails rather
	// than reading into the next record.
	if _, err := r.GetSpecificItemIdx(0, []uint32{2}); err == nil {
		t.Fatal("GetSpecificItemIdx(0,[2]): want error, r0 only has 3 tags")
	}

	// Cross into block 1 and confirm navigation still lines up after a
	// block switch.
	if err := r.LoadCAB4Record(4); err != nil {
		t.Fatal(err)
	}
	if r.GetCABBeginRid() != 4 {
		t.Fatalf("want block 1 begin rid 4 got %d", r.GetCABBeginRid())
	}
	got, err := r.GetRecdRange(0)
	if err != nil {
		t.Fatal(err)
	}
	if got != 2 {
		t.Fatalf("GetRecdRange(0) in block 1: want 2 (r4 has 2 tags) got %d", got)
	}
}

// Scenario 3: unaligned append — writer closes mid-block, appender
// resumes and reconciles the tail; the final reader sees every record
// as if written in one continuous session.
func TestAppenderReconcilesUnalignedTail(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "amount")
	tree := newFlatTree(t, "amount", datatype.Int32{}, 0, 0)
	cfg := config.New(4)

	w, err := Init2Write(base, tree, "amount", cfg, 0)
	if err != nil {
		t.Fatal(err)
	}
	for v := 10; v <= 30; v += 10 { // 3 records: partial first block
		if _, err := w.WriteText(0, 0, itoa(int32(v))); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	a, err := Init2Append(base, tree, "amount", cfg)
	if err != nil {
		t.Fatal(err)
	}
	for v := 40; v <= 70; v += 10 { // 4 more records: fills block 0, starts block 1
		if _, err := a.WriteText(0, 0, itoa(int32(v))); err != nil {
			t.Fatal(err)
		}
	}
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := Init2Read(base, tree, "amount", cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	if r.DescriptorCount() != 2 {
		t.Fatalf("want 2 descriptors got %d", r.DescriptorCount())
	}
	d0, _ := r.Descriptor(0)
	d1, _ := r.Descriptor(1)
	if d0.RecordNum != 4 || d1.RecordNum != 3 {
		t.Fatalf("want record counts [4,3] got [%d,%d]", d0.RecordNum, d1.RecordNum)
	}

	for rid := uint64(0); rid < 7; rid++ {
		if err := r.LoadCAB4Record(rid); err != nil {
			t.Fatal(err)
		}
		idx := rid - r.GetCABBeginRid()
		item, got := r.Read(idx)
		if got == 0 {
			t.Fatalf("record %d: unexpected end of block", rid)
		}
		text, err := r.GetDataType().DecodeToText(item.Value)
		if err != nil {
			t.Fatal(err)
		}
		want := itoa(int32((rid + 1) * 10))
		if text != want {
			t.Fatalf("record %d: want %s got %s", rid, want, text)
		}
	}
}

// Scenario 4: all-null block — descriptor type AllNull, reader returns
// nulls with correct definition levels.
func TestAllNullBlockRoundTrip(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "optional")
	tree := newFlatTree(t, "optional", datatype.Int32{}, 0, 1)
	cfg := config.New(4)

	w, err := Init2Write(base, tree, "optional", cfg, 0)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 4; i++ {
		if _, err := w.WriteNull(0, 0); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := Init2Read(base, tree, "optional", cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	if r.DescriptorCount() != 1 {
		t.Fatalf("want 1 descriptor got %d", r.DescriptorCount())
	}
	d0, _ := r.Descriptor(0)
	if cab.BlockType(d0.BlkType) != cab.AllNull {
		t.Fatalf("want AllNull descriptor got %v", cab.BlockType(d0.BlkType))
	}

	if err := r.LoadCAB4Record(0); err != nil {
		t.Fatal(err)
	}
	if !r.IsAllNullCAB() {
		t.Fatal("want IsAllNullCAB true")
	}
	for i := uint64(0); i < 4; i++ {
		item, got := r.Read(i)
		if got == 0 {
			t.Fatalf("item %d: unexpected end of block", i)
		}
		if !item.IsNull() {
			t.Fatalf("item %d: want null", i)
		}
	}
}

// Scenario 5: predicate pushdown — fixed-size IsCandidate accepts a
// value inside a block's min/max range and rejects one outside it.
func TestIsCandidatePredicatePushdown(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "amount")
	tree := newFlatTree(t, "amount", datatype.Int32{}, 0, 0)
	cfg := config.New(4)

	w, err := Init2Write(base, tree, "amount", cfg, 0)
	if err != nil {
		t.Fatal(err)
	}
	for v := 10; v <= 40; v += 10 {
		if _, err := w.WriteText(0, 0, itoa(int32(v))); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := Init2Read(base, tree, "amount", cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	d0, err := r.Descriptor(0)
	if err != nil {
		t.Fatal(err)
	}

	inRange, _ := datatype.Int32{}.EncodeText("25")
	ok, err := r.IsCandidate(d0, inRange, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("want candidate true for a value inside [10,40]")
	}

	outOfRange, _ := datatype.Int32{}.EncodeText("999")
	ok, err = r.IsCandidate(d0, outOfRange, 0)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("want candidate false for a value outside [10,40]")
	}
}

// Scenario 6: crash recovery — a content write with no matching
// descriptor append is truncated away on reopen.
func TestCrashRecoveryTruncatesDanglingContentBytes(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "amount")
	tree := newFlatTree(t, "amount", datatype.Int32{}, 0, 0)
	cfg := config.New(4)

	w, err := Init2Write(base, tree, "amount", cfg, 0)
	if err != nil {
		t.Fatal(err)
	}
	for v := 10; v <= 30; v += 10 {
		if _, err := w.WriteText(0, 0, itoa(int32(v))); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	// Simulate a crash between a content flush and its descriptor append
	// by appending garbage bytes directly to the content file.
	contPath := base + ".cab"
	f, err := os.OpenFile(contPath, os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write([]byte{0xde, 0xad, 0xbe, 0xef}); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := Init2Read(base, tree, "amount", cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	if r.DescriptorCount() != 1 {
		t.Fatalf("want 1 descriptor got %d", r.DescriptorCount())
	}
	if err := r.LoadCAB4Record(0); err != nil {
		t.Fatal(err)
	}
	item, got := r.Read(0)
	if got == 0 {
		t.Fatal("unexpected end of block")
	}
	text, _ := r.GetDataType().DecodeToText(item.Value)
	if text != "10" {
		t.Fatalf("want 10 got %s", text)
	}
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
