package store

import (
	"path/filepath"
	"testing"

	"github.com/dsilvavinicius/omicron/morton"
	"github.com/dsilvavinicius/omicron/surfel"
	"github.com/soypat/geometry/ms3"
)

func TestSurfelStoreAppendAt(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenSurfelStore(filepath.Join(dir, "surfels.bin"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	want := surfel.Surfel{Center: ms3.Vec{X: 1, Y: 2, Z: 3}, U: ms3.Vec{X: 1}, V: ms3.Vec{Y: 1}}
	idx, err := s.Append(want)
	if err != nil {
		t.Fatal(err)
	}
	if idx != 0 {
		t.Fatalf("first append index = %d, want 0", idx)
	}
	got, err := s.At(idx)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Fatalf("At(0) = %+v, want %+v", got, want)
	}
	if s.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", s.Len())
	}
}

func TestIndexStoreReserveWriteRead(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenIndexStore(filepath.Join(dir, "index.bin"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	off1 := s.Reserve(3)
	off2 := s.Reserve(2)
	if off2 != off1+3 {
		t.Fatalf("second reservation offset = %d, want %d", off2, off1+3)
	}
	if err := s.WriteAt(off1, []uint64{10, 11, 12}); err != nil {
		t.Fatal(err)
	}
	if err := s.WriteAt(off2, []uint64{20, 21}); err != nil {
		t.Fatal(err)
	}
	got, err := s.ReadRange(off1, 5)
	if err != nil {
		t.Fatal(err)
	}
	want := []uint64{10, 11, 12, 20, 21}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ReadRange()[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestNodeStoreStoreLoad(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenNodeStore(filepath.Join(dir, "nodes.bin"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	parent, err := morton.Build(1, 2, 3, 4)
	if err != nil {
		t.Fatal(err)
	}
	p := Persisted{ParentMorton: parent, IndexOffsets: []uint64{5, 9}, IndexSizes: []uint32{4, 2}}
	if err := s.Store(p); err != nil {
		t.Fatal(err)
	}
	got, ok, err := s.Load(parent)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected group to be found")
	}
	if got.ParentMorton != parent || len(got.IndexOffsets) != 2 || got.IndexOffsets[1] != 9 || got.IndexSizes[0] != 4 {
		t.Fatalf("Load() = %+v", got)
	}

	other, err := morton.Build(7, 7, 7, 4)
	if err != nil {
		t.Fatal(err)
	}
	_, ok, err = s.Load(other)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected no group for unwritten parent")
	}
}
