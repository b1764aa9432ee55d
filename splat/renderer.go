package splat

import (
	"github.com/soypat/geometry/ms3"
)

// Renderer draws the surfel splats of Nodes the front hands it,
// implementing front.Renderer. Construct with [New]; call BeginFrame
// once per frame before the front's TrackFront, then EndFrame after.
type Renderer struct {
	cfg Config
	vs  ViewState

	renderedPoints uint64
}

// New creates a Renderer with the given configuration.
func New(cfg Config) *Renderer {
	return &Renderer{cfg: cfg}
}

// SetViewState refreshes the camera state the cull/renderable
// predicates consult. Call once per frame, before BeginFrame.
func (r *Renderer) SetViewState(vs ViewState) { r.vs = vs }

// IsCullable reports whether box is entirely outside the frustum.
func (r *Renderer) IsCullable(box ms3.Box) bool { return IsCullable(r.vs, box) }

// IsRenderable reports whether box's squared projected size is below
// threshold.
func (r *Renderer) IsRenderable(box ms3.Box, threshold float32) bool {
	return IsRenderable(r.vs, box, threshold)
}

// RenderedPointCount returns the number of surfels drawn since the last
// BeginFrame (spec §4.6 end_frame's return value).
func (r *Renderer) RenderedPointCount() uint64 { return r.renderedPoints }
