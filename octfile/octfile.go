// Package octfile implements the binary octree file format (spec §6):
// a header byte selecting depth-first or breadth-first node ordering,
// followed by a recursive is_leaf/surfel_count/surfels/child_count/children
// record per node. Breadth-first files support streaming reconstruction
// with a per-level completion callback.
package octfile

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/dsilvavinicius/omicron/hierarchy"
	"github.com/dsilvavinicius/omicron/store"
	"github.com/dsilvavinicius/omicron/surfel"
)

// Ordering selects the on-disk node sequence.
type Ordering byte

const (
	DepthFirst Ordering = iota
	BreadthFirst
)

// Node is an in-memory octree node for file serialization: a flat
// surfel sample plus child subtrees. It is independent of
// hierarchy.Node, which indexes surfels in external stores rather than
// embedding them; see [FromHierarchy] for the bridge between the two.
type Node struct {
	Surfels  []surfel.Surfel
	Children []*Node
}

// IsLeaf reports whether n has no children.
func (n *Node) IsLeaf() bool { return len(n.Children) == 0 }

// FromHierarchy walks a built hierarchy tree, resolving each node's
// sample from the external stores, and produces the serializable
// octfile.Node tree rooted at it.
func FromHierarchy(root *hierarchy.Node, sstore *store.SurfelStore, istore *store.IndexStore) (*Node, error) {
	idxs, err := istore.ReadRange(root.IndexOffset, root.IndexSize)
	if err != nil {
		return nil, fmt.Errorf("octfile: resolve node sample: %w", err)
	}
	surfels := make([]surfel.Surfel, len(idxs))
	for i, idx := range idxs {
		sf, err := sstore.At(idx)
		if err != nil {
			return nil, fmt.Errorf("octfile: resolve surfel %d: %w", idx, err)
		}
		surfels[i] = sf
	}
	n := &Node{Surfels: surfels}
	for _, c := range root.Children {
		cn, err := FromHierarchy(c, sstore, istore)
		if err != nil {
			return nil, err
		}
		n.Children = append(n.Children, cn)
	}
	return n, nil
}

// Write serializes root to w in the given ordering.
func Write(w io.Writer, root *Node, ordering Ordering) error {
	bw := bufio.NewWriter(w)
	if err := bw.WriteByte(byte(ordering)); err != nil {
		return fmt.Errorf("octfile: write header: %w", err)
	}
	var err error
	switch ordering {
	case DepthFirst:
		err = writeDepthFirst(bw, root)
	case BreadthFirst:
		err = writeBreadthFirst(bw, root)
	default:
		return fmt.Errorf("octfile: unknown ordering %d", ordering)
	}
	if err != nil {
		return err
	}
	return bw.Flush()
}

func writeNodeRecord(w io.Writer, n *Node) error {
	isLeaf := byte(0)
	if n.IsLeaf() {
		isLeaf = 1
	}
	if _, err := w.Write([]byte{isLeaf}); err != nil {
		return err
	}
	var cbuf [4]byte
	binary.LittleEndian.PutUint32(cbuf[:], uint32(len(n.Surfels)))
	if _, err := w.Write(cbuf[:]); err != nil {
		return err
	}
	buf := make([]byte, 0, surfel.ByteSize)
	for _, sf := range n.Surfels {
		buf = surfel.Encode(buf[:0], sf)
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	if !n.IsLeaf() {
		binary.LittleEndian.PutUint32(cbuf[:], uint32(len(n.Children)))
		if _, err := w.Write(cbuf[:]); err != nil {
			return err
		}
	}
	return nil
}

func writeDepthFirst(w io.Writer, n *Node) error {
	if err := writeNodeRecord(w, n); err != nil {
		return err
	}
	for _, c := range n.Children {
		if err := writeDepthFirst(w, c); err != nil {
			return err
		}
	}
	return nil
}

func writeBreadthFirst(w io.Writer, root *Node) error {
	queue := []*Node{root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if err := writeNodeRecord(w, n); err != nil {
			return err
		}
		queue = append(queue, n.Children...)
	}
	return nil
}

func readNodeRecord(r io.Reader) (surfels []surfel.Surfel, childCount uint32, isLeaf bool, err error) {
	var hdr [1]byte
	if _, err = io.ReadFull(r, hdr[:]); err != nil {
		return
	}
	isLeaf = hdr[0] != 0
	var cbuf [4]byte
	if _, err = io.ReadFull(r, cbuf[:]); err != nil {
		return
	}
	count := binary.LittleEndian.Uint32(cbuf[:])
	surfels = make([]surfel.Surfel, count)
	sbuf := make([]byte, surfel.ByteSize)
	for i := range surfels {
		if _, err = io.ReadFull(r, sbuf); err != nil {
			return
		}
		surfels[i] = surfel.Decode(sbuf)
	}
	if !isLeaf {
		if _, err = io.ReadFull(r, cbuf[:]); err != nil {
			return
		}
		childCount = binary.LittleEndian.Uint32(cbuf[:])
	}
	return
}

// Read deserializes a full octree file, blocking until the whole tree
// is read. Use [ReadBFSStreaming] to reconstruct a breadth-first file
// incrementally instead.
func Read(r io.Reader) (*Node, Ordering, error) {
	br := bufio.NewReader(r)
	var hdr [1]byte
	if _, err := io.ReadFull(br, hdr[:]); err != nil {
		return nil, 0, fmt.Errorf("octfile: read header: %w", err)
	}
	ordering := Ordering(hdr[0])
	var root *Node
	var err error
	switch ordering {
	case DepthFirst:
		root, err = readDepthFirst(br)
	case BreadthFirst:
		root, err = readBreadthFirstSync(br)
	default:
		return nil, 0, fmt.Errorf("octfile: unknown ordering %d", ordering)
	}
	if err != nil {
		return nil, 0, err
	}
	return root, ordering, nil
}

func readDepthFirst(r io.Reader) (*Node, error) {
	surfels, childCount, isLeaf, err := readNodeRecord(r)
	if err != nil {
		return nil, err
	}
	n := &Node{Surfels: surfels}
	if !isLeaf {
		n.Children = make([]*Node, childCount)
		for i := range n.Children {
			c, err := readDepthFirst(r)
			if err != nil {
				return nil, err
			}
			n.Children[i] = c
		}
	}
	return n, nil
}

type pendingSlot struct {
	parent *Node
	idx    int
}

func readBreadthFirstSync(r io.Reader) (*Node, error) {
	surfels, childCount, isLeaf, err := readNodeRecord(r)
	if err != nil {
		return nil, err
	}
	root := &Node{Surfels: surfels}
	var queue []pendingSlot
	if !isLeaf {
		root.Children = make([]*Node, childCount)
		for i := 0; i < int(childCount); i++ {
			queue = append(queue, pendingSlot{root, i})
		}
	}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		surfels, childCount, isLeaf, err := readNodeRecord(r)
		if err != nil {
			return nil, err
		}
		n := &Node{Surfels: surfels}
		p.parent.Children[p.idx] = n
		if !isLeaf {
			n.Children = make([]*Node, childCount)
			for i := 0; i < int(childCount); i++ {
				queue = append(queue, pendingSlot{n, i})
			}
		}
	}
	return root, nil
}

// ReadBFSStreaming reads a breadth-first-ordered file, returning the
// root synchronously and populating deeper levels on a background
// goroutine, invoking onLevelComplete after every BFS frontier
// finishes (spec §6 "breadth-first files are streamable"). The
// returned channel receives exactly one value (nil on success) once
// the whole tree has been read.
func ReadBFSStreaming(r io.Reader, onLevelComplete func(level int, nodesAtLevel []*Node)) (root *Node, done <-chan error, err error) {
	br := bufio.NewReader(r)
	var hdr [1]byte
	if _, err = io.ReadFull(br, hdr[:]); err != nil {
		return nil, nil, fmt.Errorf("octfile: read header: %w", err)
	}
	if Ordering(hdr[0]) != BreadthFirst {
		return nil, nil, fmt.Errorf("octfile: streaming read requires a breadth-first file")
	}

	surfels, childCount, isLeaf, err := readNodeRecord(br)
	if err != nil {
		return nil, nil, err
	}
	root = &Node{Surfels: surfels}
	doneCh := make(chan error, 1)

	if isLeaf {
		onLevelComplete(0, []*Node{root})
		doneCh <- nil
		return root, doneCh, nil
	}
	root.Children = make([]*Node, childCount)
	frontier := make([]pendingSlot, childCount)
	for i := range frontier {
		frontier[i] = pendingSlot{root, i}
	}
	onLevelComplete(0, []*Node{root})

	go func() {
		level := 1
		for len(frontier) > 0 {
			var next []pendingSlot
			levelNodes := make([]*Node, 0, len(frontier))
			for _, p := range frontier {
				surfels, childCount, isLeaf, err := readNodeRecord(br)
				if err != nil {
					doneCh <- err
					return
				}
				n := &Node{Surfels: surfels}
				p.parent.Children[p.idx] = n
				levelNodes = append(levelNodes, n)
				if !isLeaf {
					n.Children = make([]*Node, childCount)
					for i := 0; i < int(childCount); i++ {
						next = append(next, pendingSlot{n, i})
					}
				}
			}
			onLevelComplete(level, levelNodes)
			level++
			frontier = next
		}
		doneCh <- nil
	}()
	return root, doneCh, nil
}
