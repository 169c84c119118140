package schema

import (
	"testing"

	"github.com/flashcab/cabstore/datatype"
	"github.com/flashcab/cabstore/repetition"
)

func TestResolveKnownPath(t *testing.T) {
	tree := NewTree().AddLeaf("user.addresses.city", datatype.String{}, 1, 2)

	dt, maxRep, maxDef, kind, err := tree.Resolve("user.addresses.city")
	if err != nil {
		t.Fatal(err)
	}
	if dt.Name() != "string" || maxRep != 1 || maxDef != 2 || kind != repetition.Single {
		t.Fatalf("unexpected resolution: dt=%v rep=%d def=%d kind=%v", dt, maxRep, maxDef, kind)
	}
}

func TestResolveUnknownPathFails(t *testing.T) {
	tree := NewTree()
	if _, _, _, _, err := tree.Resolve("does.not.exist"); err == nil {
		t.Fatal("expected an error resolving an unregistered path")
	}
}
