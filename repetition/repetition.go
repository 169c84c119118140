// Package repetition is the external repetition-codec collaborator
// spec.md names in §1: it encodes a logical repetition level into the
// compact in-block representation a CAB actually stores, and decodes it
// back on read.
package repetition

import "fmt"

// Kind selects how repetition levels are packed in a CAB's content.
type Kind uint8

const (
	// None means the path never repeats; nothing is stored per item.
	None Kind = iota
	// Single means repetition only ever takes the values 0 or 1 (the
	// path repeats at a single nesting level); one bit per item.
	Single
	// Multi means repetition can take any value up to a schema maximum;
	// a small integer per item.
	Multi
)

func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case Single:
		return "single"
	case Multi:
		return "multi"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Codec encodes/decodes repetition levels for one schema-tree path.
// Storage never sees a logical level directly (spec §4.2): every write
// routes the caller's rep value through Encode first.
type Codec struct {
	kind   Kind
	maxRep uint32
}

// New builds a Codec for the given maximum repetition level. kind is
// derived from maxRep: 0 is None, 1 is Single, anything higher is Multi.
func New(maxRep uint32) *Codec {
	kind := Multi
	switch {
	case maxRep == 0:
		kind = None
	case maxRep == 1:
		kind = Single
	}
	return &Codec{kind: kind, maxRep: maxRep}
}

// NewWithKind builds a Codec with an explicit kind, used when
// reconstructing a codec from a persisted RepType byte.
func NewWithKind(kind Kind, maxRep uint32) *Codec {
	return &Codec{kind: kind, maxRep: maxRep}
}

// Type reports this codec's Kind.
func (c *Codec) Type() Kind { return c.kind }

// MaxRep reports the schema-declared maximum repetition level.
func (c *Codec) MaxRep() uint32 { return c.maxRep }

// Encode maps a logical repetition level to storage representation. A
// Single codec's caller only ever presents 0 or 1 (maxRep == 1), so all
// three kinds store the logical level unchanged; what differs between
// kinds is how many bits of the bit vector each item occupies (one for
// Single, none for None, a small packed integer for Multi), which is the
// bitvector package's concern, not this one's.
func (c *Codec) Encode(rep uint32) uint32 {
	return rep
}

// Decode maps a stored repetition value back to a logical level. Kept
// distinct from Encode because spec §4.4 always routes reads through an
// explicit decode step (CABReader.read decodes stored rep/next_rep for
// Single codecs), even though the transform is the identity here.
func (c *Codec) Decode(stored uint32) uint32 {
	return stored
}
