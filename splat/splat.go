// Package splat implements the surfel renderer's contract (spec
// component J): cull/renderable predicates and a single-pass point-splat
// begin/end-frame draw cycle (there is no separate depth-only visibility
// pass and no additive attribute pass), grounded on soypat-gsdf's gsdfaux/ui.go
// render-loop shape and forge/textsdf's go:embed shader convention.
package splat

import (
	"github.com/soypat/geometry/ms3"
)

// Config bounds the renderer's per-frame behavior.
type Config struct {
	// ProjThreshold is the threshold, in squared pixels, on a box's
	// squared projected size below which its contents are rendered
	// as-is rather than branched into, per spec §4.6.
	ProjThreshold float32
	// PointSize is the splat's on-screen point size (its full width, as
	// used for gl_PointSize), in pixels, applied
	// uniformly to every surfel drawn this frame.
	PointSize float32
}

// ViewState is the subset of camera state the predicates need: a
// view-projection matrix together with the eye position, refreshed once
// per frame by the caller.
type ViewState struct {
	ViewProj [16]float32
	EyePos   ms3.Vec
	Viewport [2]int // width, height in pixels
}

// IsCullable reports whether box lies entirely outside the view
// frustum, tested against the 6 planes derived from vs.ViewProj (spec
// §4.6 "cullable").
func IsCullable(vs ViewState, box ms3.Box) bool {
	planes := frustumPlanes(vs.ViewProj)
	corners := boxCorners(box)
	for _, p := range planes {
		allOutside := true
		for _, c := range corners {
			if p.distance(c) >= 0 {
				allOutside = false
				break
			}
		}
		if allOutside {
			return true
		}
	}
	return false
}

// IsRenderable reports whether box's projected screen-space size falls
// below threshold, i.e. it is small enough to render as-is rather than
// branch into its children (spec §4.6 "renderable"). It projects the
// box's two main diagonals into window space through vs.ViewProj
// (including the perspective divide) and compares the larger of the
// two squared pixel lengths against threshold, exactly as spec.md's
// "projects two box diagonals to window space, takes the max squared
// length, compares against threshold."
func IsRenderable(vs ViewState, box ms3.Box, threshold float32) bool {
	if threshold <= 0 {
		return false
	}
	corners := boxCorners(box)
	diagonals := [2][2]ms3.Vec{
		{corners[0], corners[7]}, // min corner <-> max corner
		{corners[1], corners[6]}, // the other two opposite corners
	}
	var maxSq float32
	for _, d := range diagonals {
		x0, y0, ok0 := projectToWindow(vs.ViewProj, vs.Viewport, d[0])
		x1, y1, ok1 := projectToWindow(vs.ViewProj, vs.Viewport, d[1])
		if !ok0 || !ok1 {
			continue // behind the eye; the cull test handles visibility.
		}
		dx, dy := x1-x0, y1-y0
		if sq := dx*dx + dy*dy; sq > maxSq {
			maxSq = sq
		}
	}
	return maxSq < threshold
}

// projectToWindow transforms p by the column-major matrix m, performs
// the perspective divide, and maps the result into [0,viewport] pixel
// coordinates. ok is false when w is degenerate (p behind the eye).
func projectToWindow(m [16]float32, viewport [2]int, p ms3.Vec) (x, y float32, ok bool) {
	at := func(r, c int) float32 { return m[c*4+r] }
	cx := at(0, 0)*p.X + at(0, 1)*p.Y + at(0, 2)*p.Z + at(0, 3)
	cy := at(1, 0)*p.X + at(1, 1)*p.Y + at(1, 2)*p.Z + at(1, 3)
	cw := at(3, 0)*p.X + at(3, 1)*p.Y + at(3, 2)*p.Z + at(3, 3)
	if cw <= 1e-6 {
		return 0, 0, false
	}
	ndcX, ndcY := cx/cw, cy/cw
	x = (ndcX*0.5 + 0.5) * float32(viewport[0])
	y = (ndcY*0.5 + 0.5) * float32(viewport[1])
	return x, y, true
}

type plane struct {
	normal ms3.Vec
	d      float32
}

func (p plane) distance(pt ms3.Vec) float32 {
	return ms3.Dot(p.normal, pt) + p.d
}

// frustumPlanes extracts the 6 view-frustum planes from a
// column-major view-projection matrix (Gribb/Hartmann method).
func frustumPlanes(m [16]float32) [6]plane {
	at := func(r, c int) float32 { return m[c*4+r] }
	mk := func(a, b, c, d float32) plane {
		n := ms3.Vec{X: a, Y: b, Z: c}
		l := ms3.Norm(n)
		if l == 0 {
			return plane{}
		}
		return plane{normal: ms3.Scale(1/l, n), d: d / l}
	}
	return [6]plane{
		mk(at(3, 0)+at(0, 0), at(3, 1)+at(0, 1), at(3, 2)+at(0, 2), at(3, 3)+at(0, 3)), // left
		mk(at(3, 0)-at(0, 0), at(3, 1)-at(0, 1), at(3, 2)-at(0, 2), at(3, 3)-at(0, 3)), // right
		mk(at(3, 0)+at(1, 0), at(3, 1)+at(1, 1), at(3, 2)+at(1, 2), at(3, 3)+at(1, 3)), // bottom
		mk(at(3, 0)-at(1, 0), at(3, 1)-at(1, 1), at(3, 2)-at(1, 2), at(3, 3)-at(1, 3)), // top
		mk(at(3, 0)+at(2, 0), at(3, 1)+at(2, 1), at(3, 2)+at(2, 2), at(3, 3)+at(2, 3)), // near
		mk(at(3, 0)-at(2, 0), at(3, 1)-at(2, 1), at(3, 2)-at(2, 2), at(3, 3)-at(2, 3)), // far
	}
}

func boxCorners(b ms3.Box) [8]ms3.Vec {
	return [8]ms3.Vec{
		{X: b.Min.X, Y: b.Min.Y, Z: b.Min.Z},
		{X: b.Max.X, Y: b.Min.Y, Z: b.Min.Z},
		{X: b.Min.X, Y: b.Max.Y, Z: b.Min.Z},
		{X: b.Max.X, Y: b.Max.Y, Z: b.Min.Z},
		{X: b.Min.X, Y: b.Min.Y, Z: b.Max.Z},
		{X: b.Max.X, Y: b.Min.Y, Z: b.Max.Z},
		{X: b.Min.X, Y: b.Max.Y, Z: b.Max.Z},
		{X: b.Max.X, Y: b.Max.Y, Z: b.Max.Z},
	}
}
