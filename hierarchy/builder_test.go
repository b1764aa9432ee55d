package hierarchy

import (
	"path/filepath"
	"sort"
	"testing"

	"github.com/dsilvavinicius/omicron/octreedim"
	"github.com/dsilvavinicius/omicron/store"
	"github.com/dsilvavinicius/omicron/surfel"
	"github.com/soypat/geometry/ms3"
)

type fakeSource struct {
	surfels []surfel.Surfel
}

func (f fakeSource) Read(onSurfel func(surfel.Surfel)) error {
	for _, s := range f.surfels {
		onSurfel(s)
	}
	return nil
}

func newStores(t *testing.T) (*store.SurfelStore, *store.IndexStore) {
	t.Helper()
	dir := t.TempDir()
	ss, err := store.OpenSurfelStore(filepath.Join(dir, "surfels.bin"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ss.Close() })
	is, err := store.OpenIndexStore(filepath.Join(dir, "index.bin"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { is.Close() })
	return ss, is
}

// TestSinglePointRootIsLeafChain covers spec §8's "Single-point input"
// boundary behavior: every level above the leaf collapses to a
// single-child chain, with the deepest Node carrying the one surfel.
func TestSinglePointRootIsLeafChain(t *testing.T) {
	ss, is := newStores(t)
	dim := octreedim.New(ms3.Vec{}, ms3.Vec{X: 8, Y: 8, Z: 8}, 3)
	b := NewBuilder(Config{LeafLevel: 3, NWorkers: 2}, dim, ss, is, nil)

	sf := surfel.FromNormal(ms3.Vec{X: 0.5, Y: 0.5, Z: 0.5}, ms3.Vec{Z: 1}, 0.01)
	root, err := b.Build(fakeSource{surfels: []surfel.Surfel{sf}})
	if err != nil {
		t.Fatal(err)
	}
	n := root
	depth := 0
	for !n.IsLeaf() {
		if len(n.Children) != 1 {
			t.Fatalf("expected single-child chain, node at depth %d has %d children", depth, len(n.Children))
		}
		if n.Children[0].Parent != n {
			t.Fatalf("child parent back-reference broken at depth %d", depth)
		}
		n = n.Children[0]
		depth++
	}
	if n.IndexSize != 1 {
		t.Fatalf("leaf IndexSize = %d, want 1", n.IndexSize)
	}
}

// TestEightOctantsYieldOneRootWithEightChildren covers spec §8's
// "Exactly 8 siblings filling every slot" boundary behavior.
func TestEightOctantsYieldOneRootWithEightChildren(t *testing.T) {
	ss, is := newStores(t)
	dim := octreedim.New(ms3.Vec{}, ms3.Vec{X: 2, Y: 2, Z: 2}, 1)

	type entry struct {
		code uint64
		sf   surfel.Surfel
	}
	var entries []entry
	for x := 0; x < 2; x++ {
		for y := 0; y < 2; y++ {
			for z := 0; z < 2; z++ {
				pos := ms3.Vec{X: float32(x) + 0.5, Y: float32(y) + 0.5, Z: float32(z) + 0.5}
				sf := surfel.FromNormal(pos, ms3.Vec{Z: 1}, 0.01)
				code, err := dim.Morton(sf.Center)
				if err != nil {
					t.Fatal(err)
				}
				entries = append(entries, entry{code: code.Bits(), sf: sf})
			}
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].code < entries[j].code })
	var surfels []surfel.Surfel
	for _, e := range entries {
		surfels = append(surfels, e.sf)
	}

	b := NewBuilder(Config{LeafLevel: 1, NWorkers: 4}, dim, ss, is, nil)
	root, err := b.Build(fakeSource{surfels: surfels})
	if err != nil {
		t.Fatal(err)
	}
	if root.IsLeaf() {
		t.Fatal("root should be an inner node")
	}
	if len(root.Children) != 8 {
		t.Fatalf("root has %d children, want 8", len(root.Children))
	}
	for i, c := range root.Children {
		if c.Parent != root {
			t.Fatalf("child %d parent back-reference broken", i)
		}
		if !c.IsLeaf() {
			t.Fatalf("child %d should be a leaf", i)
		}
		if i > 0 && root.Children[i-1].Morton.Bits() >= c.Morton.Bits() {
			t.Fatalf("children not strictly Morton-ordered at %d", i)
		}
	}
}
