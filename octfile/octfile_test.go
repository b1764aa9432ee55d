package octfile

import (
	"bytes"
	"testing"

	"github.com/soypat/geometry/ms3"

	"github.com/dsilvavinicius/omicron/surfel"
)

func sampleTree() *Node {
	leafA := &Node{Surfels: []surfel.Surfel{{Center: ms3.Vec{X: 1}, U: ms3.Vec{X: 0.1}, V: ms3.Vec{Y: 0.1}}}}
	leafB := &Node{Surfels: []surfel.Surfel{
		{Center: ms3.Vec{X: 2}, U: ms3.Vec{X: 0.1}, V: ms3.Vec{Y: 0.1}},
		{Center: ms3.Vec{X: 3}, U: ms3.Vec{X: 0.1}, V: ms3.Vec{Y: 0.1}},
	}}
	leafC := &Node{Surfels: []surfel.Surfel{{Center: ms3.Vec{X: 4}, U: ms3.Vec{X: 0.1}, V: ms3.Vec{Y: 0.1}}}}
	root := &Node{
		Surfels:  []surfel.Surfel{{Center: ms3.Vec{X: 0}, U: ms3.Vec{X: 0.2}, V: ms3.Vec{Y: 0.2}}},
		Children: []*Node{leafA, leafB, leafC},
	}
	return root
}

func sameShape(t *testing.T, a, b *Node) {
	t.Helper()
	if len(a.Surfels) != len(b.Surfels) {
		t.Fatalf("surfel count mismatch: %d vs %d", len(a.Surfels), len(b.Surfels))
	}
	for i := range a.Surfels {
		if a.Surfels[i] != b.Surfels[i] {
			t.Fatalf("surfel %d mismatch: %+v vs %+v", i, a.Surfels[i], b.Surfels[i])
		}
	}
	if len(a.Children) != len(b.Children) {
		t.Fatalf("child count mismatch: %d vs %d", len(a.Children), len(b.Children))
	}
	for i := range a.Children {
		sameShape(t, a.Children[i], b.Children[i])
	}
}

func TestWriteReadRoundTripDepthFirst(t *testing.T) {
	root := sampleTree()
	var buf bytes.Buffer
	if err := Write(&buf, root, DepthFirst); err != nil {
		t.Fatal(err)
	}
	got, ordering, err := Read(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if ordering != DepthFirst {
		t.Fatalf("ordering = %d, want DepthFirst", ordering)
	}
	sameShape(t, root, got)
}

func TestWriteReadRoundTripBreadthFirst(t *testing.T) {
	root := sampleTree()
	var buf bytes.Buffer
	if err := Write(&buf, root, BreadthFirst); err != nil {
		t.Fatal(err)
	}
	got, ordering, err := Read(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if ordering != BreadthFirst {
		t.Fatalf("ordering = %d, want BreadthFirst", ordering)
	}
	sameShape(t, root, got)
}

func TestReadBFSStreamingReturnsRootSynchronouslyAndInvokesLevelCallback(t *testing.T) {
	root := sampleTree()
	var buf bytes.Buffer
	if err := Write(&buf, root, BreadthFirst); err != nil {
		t.Fatal(err)
	}

	var levels [][]*Node
	got, done, err := ReadBFSStreaming(&buf, func(level int, nodes []*Node) {
		levels = append(levels, nodes)
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Surfels) != len(root.Surfels) {
		t.Fatalf("root returned synchronously has wrong surfel count: %d vs %d", len(got.Surfels), len(root.Surfels))
	}
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if len(levels) != 2 {
		t.Fatalf("expected 2 BFS levels (root, then 3 leaves), got %d: %v", len(levels), levels)
	}
	if len(levels[0]) != 1 {
		t.Fatalf("level 0 should contain exactly the root, got %d nodes", len(levels[0]))
	}
	if len(levels[1]) != 3 {
		t.Fatalf("level 1 should contain exactly 3 leaves, got %d nodes", len(levels[1]))
	}
	sameShape(t, root, got)
}

func TestSingleLeafRoundTrip(t *testing.T) {
	leaf := &Node{Surfels: []surfel.Surfel{{Center: ms3.Vec{X: 1}, U: ms3.Vec{X: 1}, V: ms3.Vec{Y: 1}}}}
	var buf bytes.Buffer
	if err := Write(&buf, leaf, DepthFirst); err != nil {
		t.Fatal(err)
	}
	got, _, err := Read(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsLeaf() {
		t.Fatal("round-tripped single leaf should still be a leaf")
	}
	sameShape(t, leaf, got)
}
