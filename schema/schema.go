// Package schema is the external schema-tree/schema-path collaborator
// spec.md §1 names: it resolves a leaf path to the repetition/definition
// maxima and data-type descriptor a CAB session needs, and nothing else
// (global catalog management and higher-level record assembly are out of
// scope per spec §1).
package schema

import (
	"fmt"

	"github.com/flashcab/cabstore/datatype"
	"github.com/flashcab/cabstore/repetition"
)

// Path identifies one leaf in a schema tree by its dotted field path,
// e.g. "user.addresses.city".
type Path string

// Leaf is everything a CAB session needs to know about one schema-tree
// leaf: its value type and its repetition/definition maxima.
type Leaf struct {
	DataType datatype.DataType
	MaxRep   uint32
	MaxDef   uint32
}

// Tree is a minimal in-memory schema catalog: a flat map from leaf path
// to Leaf. A full schema-tree product (with nested group nodes, path
// validation against a wire schema, etc.) is out of this spec's scope;
// this is exactly enough surface for CABOperator.init to resolve a path.
type Tree struct {
	leaves map[Path]Leaf
}

// NewTree returns an empty Tree.
func NewTree() *Tree {
	return &Tree{leaves: make(map[Path]Leaf)}
}

// AddLeaf registers a leaf path's type and repetition/definition maxima.
// Returns the Tree to allow chaining multiple registrations.
func (t *Tree) AddLeaf(path Path, dt datatype.DataType, maxRep, maxDef uint32) *Tree {
	t.leaves[path] = Leaf{DataType: dt, MaxRep: maxRep, MaxDef: maxDef}
	return t
}

// Resolve maps a path to its DataType, max repetition, max definition,
// and derived RepetitionCodec Kind. Fails if the path has not been
// registered (spec §4.1: "fails if the path does not exist").
func (t *Tree) Resolve(path Path) (datatype.DataType, uint32, uint32, repetition.Kind, error) {
	leaf, ok := t.leaves[path]
	if !ok {
		return nil, 0, 0, 0, fmt.Errorf("schema: path %q does not exist", path)
	}
	kind := repetition.New(leaf.MaxRep).Type()
	return leaf.DataType, leaf.MaxRep, leaf.MaxDef, kind, nil
}
