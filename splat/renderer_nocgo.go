//go:build tinygo || !cgo

package splat

import "github.com/dsilvavinicius/omicron/hierarchy"

// BeginFrame is a no-op without GL support: resets the counter only.
func (r *Renderer) BeginFrame() error {
	r.renderedPoints = 0
	return nil
}

// EndFrame returns the (always zero) rendered-point count.
func (r *Renderer) EndFrame() uint64 { return r.renderedPoints }

// Render is a no-op without GL support.
func (r *Renderer) Render(n *hierarchy.Node) {}
