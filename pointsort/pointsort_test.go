package pointsort

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dsilvavinicius/omicron/surfel"
	"github.com/soypat/geometry/ms3"
)

func writeFixture(t *testing.T, dir string, pts []rawPoint) string {
	t.Helper()
	path := filepath.Join(dir, "input.bin")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	for _, p := range pts {
		if err := writeRawPoint(f, p); err != nil {
			t.Fatal(err)
		}
	}
	return path
}

// TestExternalSortMatchesSpecExample exercises spec §8 end-to-end
// scenario 1: eleven surfels on a line, normalized by 1/0.3.
func TestExternalSortMatchesSpecExample(t *testing.T) {
	dir := t.TempDir()
	positions := []ms3.Vec{
		{X: 0.01, Y: 0.02, Z: 0.03}, {X: 0.04, Y: 0.05, Z: 0.06},
		{X: 0.07, Y: 0.08, Z: 0.09}, {X: 0.1, Y: 0.11, Z: 0.12},
		{X: 0.13, Y: 0.14, Z: 0.15}, {X: 0.16, Y: 0.17, Z: 0.18},
		{X: 0.19, Y: 0.2, Z: 0.21}, {X: 0.22, Y: 0.23, Z: 0.24},
		{X: 0.25, Y: 0.26, Z: 0.27}, {X: 0.28, Y: 0.29, Z: 0.3},
		{X: 0.31, Y: 0.32, Z: 0.33},
	}
	var pts []rawPoint
	for _, p := range positions {
		pts = append(pts, rawPoint{Pos: p, Normal: ms3.Vec{X: 1}})
	}
	path := writeFixture(t, dir, pts)

	dims, err := Prescan(path, 10)
	if err != nil {
		t.Fatal(err)
	}

	s := NewSorter(dims, 4, dir)
	if err := s.Run(path); err != nil {
		t.Fatal(err)
	}
	if len(s.RunPaths()) == 0 {
		t.Fatal("expected at least one run file")
	}

	r, err := NewReader(s.RunPaths())
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	var out []surfel.Surfel
	if err := r.Read(func(sf surfel.Surfel) { out = append(out, sf) }); err != nil {
		t.Fatal(err)
	}
	if len(out) != len(positions) {
		t.Fatalf("got %d surfels, want %d", len(out), len(positions))
	}

	var prevCode uint64
	for i, sf := range out {
		code, err := dims.Morton(sf.Center)
		if err != nil {
			t.Fatal(err)
		}
		if i > 0 && code.Bits() < prevCode {
			t.Fatalf("output not Morton-sorted at %d", i)
		}
		prevCode = code.Bits()
	}

	// spec §8 scenario 1 names the exact expected output order, not just
	// "some sorted order": points 5,6,1,2,7,8,10,11,9,3,4 (1-indexed).
	wantOrder := []int{4, 5, 0, 1, 6, 7, 9, 10, 8, 2, 3} // 0-indexed
	gotOrder := make([]int, len(out))
	for i, sf := range out {
		idx := -1
		for j, p := range positions {
			if sf.Center == p {
				idx = j
				break
			}
		}
		if idx == -1 {
			t.Fatalf("output surfel %d (center %v) doesn't match any input position", i, sf.Center)
		}
		gotOrder[i] = idx
	}
	for i := range wantOrder {
		if gotOrder[i] != wantOrder[i] {
			t.Fatalf("output order = %v, want %v (spec §8 scenario 1: points 5,6,1,2,7,8,10,11,9,3,4 1-indexed)", gotOrder, wantOrder)
		}
	}
}

func TestSorterSkipsZeroNormalSurfels(t *testing.T) {
	dir := t.TempDir()
	pts := []rawPoint{
		{Pos: ms3.Vec{X: 0.1}, Normal: ms3.Vec{X: 1}},
		{Pos: ms3.Vec{X: 0.2}, Normal: ms3.Vec{}}, // zero normal, discarded
	}
	path := writeFixture(t, dir, pts)

	dims, err := Prescan(path, 8)
	if err != nil {
		t.Fatal(err)
	}
	s := NewSorter(dims, 100, dir)
	if err := s.Run(path); err != nil {
		t.Fatal(err)
	}
	r, err := NewReader(s.RunPaths())
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	count := 0
	if err := r.Read(func(surfel.Surfel) { count++ }); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("got %d surfels, want 1 (zero-normal point should be skipped)", count)
	}
}

func TestPrescanEmptyInput(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, nil)
	dims, err := Prescan(path, 5)
	if err != nil {
		t.Fatal(err)
	}
	_ = dims // must not panic on zero-extent fallback
}
