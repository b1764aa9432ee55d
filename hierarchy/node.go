// Package hierarchy implements the bottom-up parallel octree builder
// (spec components F and G), grounded on original_source's
// HierarchyCreator.h and O1OctreeNode.h.
package hierarchy

import (
	"github.com/dsilvavinicius/omicron/morton"
)

// GPUHandle is satisfied by gpuload.SurfelCloud; declared here, rather
// than imported from gpuload, so that hierarchy has no dependency on
// the rendering stack — only the GPU loader depends on hierarchy.
type GPUHandle interface {
	Release()
}

// Node is an in-memory octree node (spec component F). A Node exclusively
// owns its Children slice and GPU handle; Parent is a non-owning
// back-reference valid from the moment Children is finalized until the
// root is dropped.
type Node struct {
	Morton morton.Code64
	Parent *Node

	// Children is empty iff the node is a leaf. Siblings are stored in
	// increasing Morton order, matching the §8 invariant
	// c_0.morton < c_1.morton < … < c_{k-1}.morton.
	Children []*Node

	// IndexOffset/IndexSize describe this node's sample: a contiguous
	// range reserved in the external index store (spec component B).
	IndexOffset uint64
	IndexSize   uint32

	GPU GPUHandle
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool { return len(n.Children) == 0 }

// SetParent sets n's parent pointer exactly once. Calling it a second
// time with a different parent indicates a bug in the builder: the §9
// design note states the transition happens exactly once per node.
// The one documented exception — a boundary-split partial parent
// getting discarded in favor of the true cross-boundary parent during
// hierarchy merge — goes through reparent instead, which bypasses this
// assertion deliberately rather than weakening it here.
func (n *Node) SetParent(p *Node) {
	if n.Parent != nil && n.Parent != p {
		panic("hierarchy: parent pointer set twice")
	}
	n.Parent = p
}

// reparent reassigns n's parent without SetParent's debug assertion.
// Only buildParentFromChildren's boundary-reconciliation path and
// collapseSingleLeafChild (which runs only when nodeCollapse is true)
// call this; every other call site goes through SetParent.
func (n *Node) reparent(p *Node) {
	n.Parent = p
}

// SiblingIndex returns n's index within its parent's Children slice, or
// -1 if n is the root. This replaces the source's address-arithmetic
// sibling lookup (§9 "Sibling-address arithmetic") with a safe,
// explicit scan.
func (n *Node) SiblingIndex() int {
	if n.Parent == nil {
		return -1
	}
	for i, c := range n.Parent.Children {
		if c == n {
			return i
		}
	}
	return -1
}
