//go:build !tinygo && cgo

package gpuload

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/go-gl/gl/v4.6-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/dsilvavinicius/omicron/hierarchy"
	"github.com/dsilvavinicius/omicron/surfel"
)

// Run starts the loader's GL-context goroutine. It locks that
// goroutine to its OS thread for the loader's lifetime (GL contexts
// are bound to the thread that made them current, cgo/GL
// single-writer discipline, spec §5) and bootstraps a hidden GLFW
// window whose context shares object namespace with shareContext, if
// one was set via SetShareContext — so VBOs/VAOs the loader creates
// are visible to the renderer's own context without any cross-thread
// GL call. Mirrors gleval/gpu.go's thread-locked evaluator goroutine
// and gsdfaux/ui.go's startGLFW window bootstrap. Run blocks until the
// context is ready (or bootstrap failed) before returning.
func (l *Loader) Run() error {
	ready := make(chan error, 1)
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		win, err := bootstrapContext(l.shareContext)
		ready <- err
		if err != nil {
			return
		}
		defer win.Destroy()

		for {
			select {
			case <-l.stop:
				return
			case req := <-l.intake:
				l.handle(req)
			}
		}
	}()
	return <-ready
}

// bootstrapContext creates a hidden 1x1 GLFW window — the loader draws
// nothing, it only needs a current context to issue buffer calls on —
// sharing object namespace with share when share is a non-nil
// *glfw.Window. Like gsdfaux's startGLFW, window creation must happen
// on the thread Run locked; on some platforms (notably macOS) GLFW
// further requires that thread to be the process's main thread, a
// constraint inherited from the teacher's own glfw usage.
func bootstrapContext(share any) (*glfw.Window, error) {
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("gpuload: glfw init: %w", err)
	}
	shareWin, _ := share.(*glfw.Window)

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 6)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)

	win, err := glfw.CreateWindow(1, 1, "omicron-gpuload", nil, shareWin)
	if err != nil {
		return nil, fmt.Errorf("gpuload: create shared context: %w", err)
	}
	win.MakeContextCurrent()
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("gpuload: gl init: %w", err)
	}
	return win, nil
}

func (l *Loader) handle(req Request) {
	switch req.Kind {
	case ReqLoad:
		l.load(req.Node)
	case ReqUnload:
		l.unload(req.Node)
	case ReqReleaseSiblings:
		var drop func(ns []*hierarchy.Node)
		drop = func(ns []*hierarchy.Node) {
			for _, c := range ns {
				l.unload(c)
				drop(c.Children)
			}
		}
		drop(req.Node.Children)
		req.Node.Children = nil
	case reqFinalize:
		l.finalize(req.Node)
	}
}

// load creates a VBO/VAO sized for node's sample, maps it, and hands the
// mapping to an async copy goroutine. The copy goroutine touches only
// CPU-visible mapped memory, never GL itself; the mapping is unmapped
// back on this, the GL-context goroutine, once the copy signals
// completion via a reqFinalize request (spec §9 "Never call GL from the
// copy task").
func (l *Loader) load(n *hierarchy.Node) {
	byteSize := uint64(n.IndexSize) * surfel.ByteSize
	if l.cfg.GPUQuota != 0 && uint64(l.usedBytes.Load())+byteSize > l.cfg.GPUQuota {
		return // denied; front retries the load next frame (spec §7).
	}
	if byteSize == 0 {
		return
	}

	var vbo, vao uint32
	gl.GenVertexArrays(1, &vao)
	gl.GenBuffers(1, &vbo)
	gl.BindVertexArray(vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, vbo)
	gl.BufferData(gl.ARRAY_BUFFER, int(byteSize), nil, gl.STATIC_DRAW)

	ptr := gl.MapBufferRange(gl.ARRAY_BUFFER, 0, int(byteSize), gl.MAP_WRITE_BIT)
	if ptr == nil {
		gl.DeleteBuffers(1, &vbo)
		gl.DeleteVertexArrays(1, &vao)
		return
	}

	cloud := &SurfelCloud{vbo: vbo, vao: vao, numPoints: n.IndexSize, byteSize: byteSize}
	cloud.state.Store(int32(StateLoading))
	n.GPU = cloud
	l.usedBytes.Add(int64(byteSize))

	dst := unsafe.Slice((*byte)(ptr), byteSize)
	go l.copyInto(n, dst)
}

// copyInto fills dst, the mapped VBO range, with n's sample surfels
// scaled by the tangent table for n's octree level, then requests
// finalization on the GL-context goroutine.
func (l *Loader) copyInto(n *hierarchy.Node, dst []byte) {
	level := n.Morton.Level()
	idxs, err := l.istore.ReadRange(n.IndexOffset, n.IndexSize)
	if err == nil {
		off := 0
		for _, idx := range idxs {
			sf, err := l.sstore.At(idx)
			if err != nil {
				break
			}
			sf = l.tangents.Scale(sf, level)
			surfel.Encode(dst[off:off], sf) // writes in place: dst[off:off] shares dst's backing array with ample capacity.
			off += surfel.ByteSize
		}
	}
	l.Submit(Request{Kind: reqFinalize, Node: n})
}

func (l *Loader) finalize(n *hierarchy.Node) {
	c, ok := n.GPU.(*SurfelCloud)
	if !ok || c == nil {
		return
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, c.vbo)
	gl.UnmapBuffer(gl.ARRAY_BUFFER)
	c.state.Store(int32(StateLoaded))
}

func (l *Loader) unload(n *hierarchy.Node) {
	c, ok := n.GPU.(*SurfelCloud)
	if !ok || c == nil {
		return
	}
	gl.DeleteBuffers(1, &c.vbo)
	gl.DeleteVertexArrays(1, &c.vao)
	l.usedBytes.Add(-int64(c.byteSize))
	n.GPU = nil
}
