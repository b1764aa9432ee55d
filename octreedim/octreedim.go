// Package octreedim maps world-space positions to Morton codes and back
// for a given octree level, grounded on original_source's
// OctreeDimensions.h.
package octreedim

import (
	"fmt"

	"github.com/dsilvavinicius/omicron/morton"
	"github.com/soypat/geometry/ms3"
)

// Dims holds an octree's spatial frame — origin and extent — together
// with a fixed level, and derives Morton codes and bounding boxes within
// that frame. Two Dims values may coexist over the same spatial frame
// at different levels, e.g. one for the leaf level and one rebuilt per
// inner level during front tracking.
type Dims struct {
	Origin ms3.Vec
	Size   ms3.Vec
	Level  int

	nodeSize ms3.Vec
}

// New builds a Dims for the given origin, world-space size and level.
func New(origin, size ms3.Vec, level int) Dims {
	scale := float32(1) / float32(int64(1)<<uint(level))
	return Dims{
		Origin:   origin,
		Size:     size,
		Level:    level,
		nodeSize: ms3.Scale(scale, size),
	}
}

// WithLevel returns a copy of d reframed to a different level over the
// same origin/size, mirroring OctreeDimensions's level-rebinding
// constructor.
func (d Dims) WithLevel(level int) Dims {
	return New(d.Origin, d.Size, level)
}

// Morton returns the Morton code of the node at d.Level containing pos.
// A pos on the frame's far faces belongs to the last node along that
// axis; a pos outside the frame is an error.
func (d Dims) Morton(pos ms3.Vec) (morton.Code64, error) {
	rel := ms3.Sub(pos, d.Origin)
	cells := float32(int64(1) << uint(d.Level))
	fx, fy, fz := rel.X/d.nodeSize.X, rel.Y/d.nodeSize.Y, rel.Z/d.nodeSize.Z
	if !(fx >= 0 && fy >= 0 && fz >= 0 && fx <= cells && fy <= cells && fz <= cells) {
		return 0, fmt.Errorf("octreedim: position %+v outside the octree frame", pos)
	}
	last := uint32(cells) - 1
	return morton.Build(min(uint32(fx), last), min(uint32(fy), last), min(uint32(fz), last), d.Level)
}

// Box returns the world-space bounding box of the node identified by
// code, which must have been built at d.Level.
func (d Dims) Box(code morton.Code64) ms3.Box {
	x, y, z := code.Decode()
	minv := ms3.Add(d.Origin, ms3.Vec{
		X: float32(x) * d.nodeSize.X,
		Y: float32(y) * d.nodeSize.Y,
		Z: float32(z) * d.nodeSize.Z,
	})
	return ms3.Box{Min: minv, Max: ms3.Add(minv, d.nodeSize)}
}

// NodeSize returns the world-space size of one node at d.Level.
func (d Dims) NodeSize() ms3.Vec { return d.nodeSize }

// Contains reports whether box contains pos, used by the round-trip
// invariant in spec §8: decoding a node's Morton at its level must
// yield a box containing every surfel filed under it.
func Contains(box ms3.Box, pos ms3.Vec) bool {
	return pos.X >= box.Min.X && pos.X <= box.Max.X &&
		pos.Y >= box.Min.Y && pos.Y <= box.Max.Y &&
		pos.Z >= box.Min.Z && pos.Z <= box.Max.Z
}
