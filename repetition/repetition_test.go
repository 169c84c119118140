package repetition

import "testing"

func TestNewDerivesKindFromMaxRep(t *testing.T) {
	cases := []struct {
		maxRep uint32
		want   Kind
	}{
		{0, None},
		{1, Single},
		{2, Multi},
		{5, Multi},
	}
	for _, tc := range cases {
		if got := New(tc.maxRep).Type(); got != tc.want {
			t.Fatalf("maxRep=%d: want %v got %v", tc.maxRep, tc.want, got)
		}
	}
}

func TestEncodeDecodeIsIdentity(t *testing.T) {
	c := New(2)
	for rep := uint32(0); rep <= 2; rep++ {
		enc := c.Encode(rep)
		if got := c.Decode(enc); got != rep {
			t.Fatalf("rep %d: round trip got %d", rep, got)
		}
	}
}

func TestKindString(t *testing.T) {
	if None.String() != "none" || Single.String() != "single" || Multi.String() != "multi" {
		t.Fatal("unexpected Kind.String() output")
	}
}
