package surfel

import "github.com/chewxy/math32"

// TangentTable maps an octree level to the multiplier applied to a
// surfel's U/V tangent magnitudes when it is uploaded to the GPU at
// that level (§3: "tangent magnitudes scale with depth by a per-level
// multiplier table"). Coarser (shallower) levels hold a parent's
// down-sampled point union (§4.3); each surviving sample must cover
// more screen area to avoid gaps, so its splat radius is inflated in
// proportion to how many leaf-level samples it stands in for.
type TangentTable struct {
	// LeafLevel is the deepest level, where the multiplier is always 1.
	LeafLevel int
	// ParentPointsRatio is the same k used by the hierarchy builder to
	// sub-sample a parent's points from its children (§4.3,
	// PARENT_POINTS_RATIO). The multiplier per level up is
	// 1/sqrt(ParentPointsRatio), since a splat's area (not radius)
	// must grow in proportion to the points it represents.
	ParentPointsRatio float32
}

// Multiplier returns the scale factor for tangents at the given level.
// Levels shallower than 0 or deeper than LeafLevel clamp to the nearest
// valid level.
func (t TangentTable) Multiplier(level int) float32 {
	if level > t.LeafLevel {
		level = t.LeafLevel
	}
	if level < 0 {
		level = 0
	}
	levelsUp := t.LeafLevel - level
	ratio := t.ParentPointsRatio
	if ratio <= 0 || ratio >= 1 {
		ratio = 0.125 // PARENT_POINTS_RATIO default, see hierarchy.ParentPointsRatio.
	}
	m := float32(1)
	perLevel := 1 / math32.Sqrt(ratio)
	for i := 0; i < levelsUp; i++ {
		m *= perLevel
	}
	return m
}

// Scale returns a copy of s with U and V scaled by the level's
// multiplier, leaving Center untouched.
func (t TangentTable) Scale(s Surfel, level int) Surfel {
	m := t.Multiplier(level)
	s.U.X *= m
	s.U.Y *= m
	s.U.Z *= m
	s.V.X *= m
	s.V.Y *= m
	s.V.Z *= m
	return s
}
