// Package front implements the out-of-core GPU cut tracker (spec
// component H): an ordered, view-dependent set of currently rendered
// Nodes that prunes and branches per frame, grounded on
// original_source's Front.h.
package front

import (
	"container/list"
	"math"
	"sync"
	"sync/atomic"

	"github.com/dsilvavinicius/omicron/hierarchy"
	"github.com/dsilvavinicius/omicron/octreedim"
	"github.com/soypat/geometry/ms3"
)

// DefaultSegmentsPerFront bounds the per-frame tracking workload to
// 1/DefaultSegmentsPerFront of the cut, amortizing tracking cost over
// several frames (spec §4.5, §9 "Front iteration segmentation").
const DefaultSegmentsPerFront = 8

// Renderer is the subset of the splat renderer's contract (spec §4.6)
// the front consults while tracking.
type Renderer interface {
	IsCullable(box ms3.Box) bool
	IsRenderable(box ms3.Box, projThreshold float32) bool
	Render(n *hierarchy.Node)
}

// GPUStatus lets the front query and drive a Node's GPU residency
// without depending on the gpuload package directly (gpuload depends on
// hierarchy, not the other way around; front stays decoupled the same
// way).
type GPUStatus interface {
	IsLoaded(n *hierarchy.Node) bool
	RequestLoad(n *hierarchy.Node)
	Unload(n *hierarchy.Node)
}

// Front is the ordered, Morton-sorted cut of the octree currently
// rendered. Zero value is not usable; construct with [New].
type Front struct {
	dim octreedim.Dims // at the leaf level; node boxes are derived by re-leveling per Node.Morton.Level().

	mu  sync.Mutex
	cut *list.List // of *hierarchy.Node

	iter *list.Element

	pendingMu sync.Mutex
	pending   [][]*hierarchy.Node // per-thread insertion buffers

	lastParentExamined *hierarchy.Node
	leafLvlLoaded      atomic.Bool

	SegmentsPerFront int
}

// New creates an empty Front over the given leaf-level octree
// dimensions, sized for nThreads concurrent inserters (the hierarchy
// builder's worker count).
func New(dim octreedim.Dims, nThreads int) *Front {
	if nThreads < 1 {
		nThreads = 1
	}
	return &Front{
		dim:              dim,
		cut:              list.New(),
		pending:          make([][]*hierarchy.Node, nThreads),
		SegmentsPerFront: DefaultSegmentsPerFront,
	}
}

// InsertIntoBufferEnd appends node to thread threadIdx's pending
// insertion buffer. The buffered nodes join the front at the next
// NotifyInsertionEnd or TrackFront (spec §4.5 "Insertion").
func (f *Front) InsertIntoBufferEnd(threadIdx int, node *hierarchy.Node) {
	f.pendingMu.Lock()
	f.pending[threadIdx] = append(f.pending[threadIdx], node)
	f.pendingMu.Unlock()
}

// NotifyInsertionEnd splices every thread's pending buffer onto the
// cut's tail, in thread-index order, preserving Morton order since
// workers emit leaves in Morton order (spec §4.5, §5 ordering guarantee).
func (f *Front) NotifyInsertionEnd() {
	f.pendingMu.Lock()
	bufs := f.pending
	f.pending = make([][]*hierarchy.Node, len(bufs))
	f.pendingMu.Unlock()

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, buf := range bufs {
		for _, n := range buf {
			f.cut.PushBack(n)
		}
	}
}

// NotifyLeafLvlLoaded records that the producer has finished emitting
// surfels. Before this, the front must not prune a sibling group at its
// tail, since it may still be incomplete.
func (f *Front) NotifyLeafLvlLoaded() { f.leafLvlLoaded.Store(true) }

// Len returns the number of Nodes currently in the cut.
func (f *Front) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cut.Len()
}

// Nodes returns a snapshot of the cut in order, for inspection/testing.
func (f *Front) Nodes() []*hierarchy.Node {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*hierarchy.Node, 0, f.cut.Len())
	for e := f.cut.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(*hierarchy.Node))
	}
	return out
}

func (f *Front) boxOf(n *hierarchy.Node) ms3.Box {
	return f.dim.WithLevel(n.Morton.Level()).Box(n.Morton)
}

// TrackFront processes one segment of the cut (spec §4.5 "Per-frame
// tracking"): it first splices pending insertions, then walks
// ceil(len/SegmentsPerFront) nodes from the iterator, calling trackNode
// on each.
func (f *Front) TrackFront(r Renderer, gpu GPUStatus, projThreshold float32) {
	f.NotifyInsertionEnd()

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cut.Len() == 0 {
		return
	}
	if f.iter == nil {
		f.iter = f.cut.Front()
	}

	// Reset the last-examined-parent suppression each frame: it exists
	// to avoid re-testing one sibling group's parent redundantly while
	// scanning consecutive siblings within this frame's segment, not to
	// suppress re-examination across frames.
	f.lastParentExamined = nil

	segs := f.SegmentsPerFront
	if segs < 1 {
		segs = 1
	}
	n := int(math.Ceil(float64(f.cut.Len()) / float64(segs)))
	for i := 0; i < n; i++ {
		if f.iter == nil {
			break // ran off the tail mid-segment; next frame resets to front.
		}
		f.trackNode(r, gpu, projThreshold)
	}
}

// trackNode implements the decision tree of spec §4.5. Caller holds
// f.mu.
func (f *Front) trackNode(r Renderer, gpu GPUStatus, projThreshold float32) {
	elem := f.iter
	node := elem.Value.(*hierarchy.Node)

	// 1. Prune check.
	if node.Parent != nil && node.Parent != f.lastParentExamined {
		parent := node.Parent
		box := f.boxOf(parent)
		if r.IsCullable(box) || r.IsRenderable(box, projThreshold) {
			if f.tryPrune(parent, gpu) {
				r.Render(parent)
				f.lastParentExamined = parent
				return
			}
			if !gpu.IsLoaded(parent) {
				gpu.RequestLoad(parent)
			}
			f.lastParentExamined = parent
			// Deferred: fall through to cull/render this node as-is.
		}
	}

	// 2. Branch check.
	if !node.IsLeaf() {
		box := f.boxOf(node)
		if !r.IsRenderable(box, projThreshold) && !r.IsCullable(box) {
			allLoaded := true
			for _, c := range node.Children {
				if !gpu.IsLoaded(c) {
					gpu.RequestLoad(c)
					allLoaded = false
				}
			}
			if allLoaded {
				f.branch(node, r)
				return
			}
			f.advance()
			return
		}
	}

	// 3. Cull or render.
	box := f.boxOf(node)
	if r.IsCullable(box) {
		f.advance()
		return
	}
	r.Render(node)
	f.advance()
}

// tryPrune attempts to replace parent's children, starting at f.iter,
// with parent itself. Reports whether the prune was performed.
func (f *Front) tryPrune(parent *hierarchy.Node, gpu GPUStatus) bool {
	k := len(parent.Children)
	if k == 0 {
		return false
	}
	// (a) contiguity: the k children must occupy [f.iter, f.iter+k) in
	// Morton order, matching parent.Children.
	e := f.iter
	for i := 0; i < k; i++ {
		if e == nil || e.Value.(*hierarchy.Node) != parent.Children[i] {
			return false
		}
		e = e.Next()
	}
	// (b) leaf-level completeness: a sibling group at the tail may
	// still be incomplete until the producer signals EOF.
	if e == nil && !f.leafLvlLoaded.Load() {
		return false
	}
	// (c) parent must already be resident.
	if !gpu.IsLoaded(parent) {
		return false
	}

	start := f.iter
	for i := 0; i < k; i++ {
		gpu.Unload(parent.Children[i])
	}
	next := start
	for i := 0; i < k; i++ {
		toRemove := next
		next = next.Next()
		f.cut.Remove(toRemove)
	}
	if next != nil {
		f.iter = f.cut.InsertBefore(parent, next)
	} else {
		f.iter = f.cut.PushBack(parent)
	}
	return true
}

// branch replaces node with its children, in order, advancing the
// iterator past the inserted run and rendering every non-cullable
// child.
func (f *Front) branch(node *hierarchy.Node, r Renderer) {
	e := f.iter
	next := e.Next()
	f.cut.Remove(e)
	at := next
	for _, c := range node.Children {
		if at != nil {
			f.cut.InsertBefore(c, at)
		} else {
			f.cut.PushBack(c)
		}
		box := f.boxOf(c)
		if !r.IsCullable(box) {
			r.Render(c)
		}
	}
	f.iter = next
}

func (f *Front) advance() {
	f.iter = f.iter.Next()
}
