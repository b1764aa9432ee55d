//go:build !tinygo && cgo

package splat

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/go-gl/gl/v4.6-core/gl"
	"github.com/soypat/glgl/v4.6-core/glgl"

	"github.com/dsilvavinicius/omicron/gpuload"
	"github.com/dsilvavinicius/omicron/hierarchy"
)

//go:embed splat.vert
var splatVertSrc string

//go:embed splat.frag
var splatFragSrc string

// program is process-wide: every Renderer on the same GL context
// shares one compiled splat shader, compiled lazily on first use.
var (
	programOnce      sync.Once
	program          glgl.Program
	programErr       error
	viewProjUniform  int32
	pointSizeUniform int32
)

func compileProgram() {
	program, programErr = glgl.CompileProgram(glgl.ShaderSource{
		Vertex:   splatVertSrc + "\x00",
		Fragment: splatFragSrc + "\x00",
	})
	if programErr != nil {
		programErr = fmt.Errorf("splat: compile program: %w", programErr)
		return
	}
	viewProjUniform, programErr = program.UniformLocation("uViewProj\x00")
	if programErr != nil {
		return
	}
	pointSizeUniform, programErr = program.UniformLocation("uPointSize\x00")
}

// BeginFrame compiles the splat shader on first call, binds it, and
// uploads this frame's view-projection matrix and point size (spec
// §4.6 "begin_frame").
func (r *Renderer) BeginFrame() error {
	programOnce.Do(compileProgram)
	if programErr != nil {
		return programErr
	}
	r.renderedPoints = 0
	program.Bind()
	gl.Enable(gl.PROGRAM_POINT_SIZE)
	gl.Enable(gl.DEPTH_TEST)
	gl.UniformMatrix4fv(viewProjUniform, 1, false, &r.vs.ViewProj[0])
	gl.Uniform1f(pointSizeUniform, r.cfg.PointSize)
	return nil
}

// EndFrame unbinds the program and returns the number of points drawn
// this frame (spec §4.6 "end_frame").
func (r *Renderer) EndFrame() uint64 {
	program.Unbind()
	return r.renderedPoints
}

// Render draws n's GPU-resident surfel cloud as a point splat batch.
// Nodes without a fully-loaded GPU handle are silently skipped.
func (r *Renderer) Render(n *hierarchy.Node) {
	cloud, ok := n.GPU.(*gpuload.SurfelCloud)
	if !ok || cloud == nil || cloud.State() != gpuload.StateLoaded {
		return
	}
	gl.BindVertexArray(cloud.VAO())
	gl.DrawArrays(gl.POINTS, 0, int32(cloud.NumPoints()))
	r.renderedPoints += uint64(cloud.NumPoints())
}
