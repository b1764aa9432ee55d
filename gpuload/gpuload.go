// Package gpuload implements the asynchronous GPU loader/unloader (spec
// component I): a single GL-context goroutine that owns the shared
// context while worker threads submit load/unload requests through a
// buffered channel intake, grounded on soypat-gsdf's gleval GPU
// mapped-buffer upload pattern and the cgo/!cgo split used throughout
// that package.
package gpuload

import (
	"sync"
	"sync/atomic"

	"github.com/dsilvavinicius/omicron/hierarchy"
	"github.com/dsilvavinicius/omicron/store"
	"github.com/dsilvavinicius/omicron/surfel"
)

// LoadState is a SurfelCloud's position in the Loading->Loaded state
// machine (spec §3).
type LoadState int32

const (
	StateLoading LoadState = iota
	StateLoaded
)

// SurfelCloud is the GPU handle referenced by hierarchy.Node.GPU: a
// VBO/VAO pair plus the point count it was sized for. It implements
// hierarchy.GPUHandle.
type SurfelCloud struct {
	vbo, vao  uint32
	numPoints uint32
	byteSize  uint64
	state     atomic.Int32
}

// NumPoints returns the number of surfels the cloud's VBO holds.
func (c *SurfelCloud) NumPoints() uint32 { return c.numPoints }

// VAO returns the cloud's vertex array object name, for binding by a
// renderer on the same GL context. Only meaningful once State() is
// StateLoaded.
func (c *SurfelCloud) VAO() uint32 { return c.vao }

// State returns the cloud's current Loading/Loaded state.
func (c *SurfelCloud) State() LoadState { return LoadState(c.state.Load()) }

// Release is a no-op on SurfelCloud itself: GL deallocation happens on
// the loader's GL-context goroutine via an Unload request, since only
// that goroutine may call GL (spec §5 "GPU state: single-writer"). It
// exists to satisfy hierarchy.GPUHandle for callers that drop a Node
// without going through a Loader (e.g. tests).
func (c *SurfelCloud) Release() {}

// RequestKind enumerates the operations batched into the loader's
// intake queue, flushed as they arrive (spec §4.4).
type RequestKind int

const (
	ReqLoad RequestKind = iota
	ReqUnload
	ReqReleaseSiblings
	reqFinalize // internal: issued by the async copy task once it fills the mapping.
)

// Request is one entry in the loader's intake queue.
type Request struct {
	Kind RequestKind
	Node *hierarchy.Node
}

// Config bounds the Loader's GPU byte budget. Zero disables the check.
type Config struct {
	GPUQuota uint64
}

// Loader asynchronously creates and destroys GPU buffers under cfg's
// byte budget. All GL calls originate from the goroutine started by
// Run; every other method is safe to call from any goroutine.
type Loader struct {
	cfg      Config
	sstore   *store.SurfelStore
	istore   *store.IndexStore
	tangents surfel.TangentTable

	intake chan Request
	stop   chan struct{}
	wg     sync.WaitGroup

	usedBytes atomic.Int64

	// shareContext optionally holds a *glfw.Window (the renderer's
	// visible window) whose GL context the loader's own bootstrap
	// context should share object namespace with, so buffers the
	// loader creates are visible to the renderer's context. Stored as
	// any so this file stays free of the cgo/GL build tags; only
	// loader_cgo.go's Run type-asserts it.
	shareContext any
}

// NewLoader prepares a Loader. Run bootstraps its own GL context (see
// loader_cgo.go); call SetShareContext first if that context should
// share object namespace with an existing window's context.
func NewLoader(cfg Config, sstore *store.SurfelStore, istore *store.IndexStore, tangents surfel.TangentTable) *Loader {
	return &Loader{
		cfg:      cfg,
		sstore:   sstore,
		istore:   istore,
		tangents: tangents,
		intake:   make(chan Request, 256),
		stop:     make(chan struct{}),
	}
}

// SetShareContext records the window (typically *glfw.Window) whose GL
// context Run's bootstrap context should share object namespace with.
// Must be called before Run.
func (l *Loader) SetShareContext(w any) { l.shareContext = w }

// Submit enqueues req. Safe for concurrent use; the channel itself is
// the mutex-protected intake buffer described in spec §5.
func (l *Loader) Submit(req Request) { l.intake <- req }

// UsedBytes returns the current GPU byte budget consumption estimate.
func (l *Loader) UsedBytes() uint64 { return uint64(l.usedBytes.Load()) }

// IsLoaded reports whether n currently has a resident, fully-copied GPU
// cloud. Satisfies front.GPUStatus.
func (l *Loader) IsLoaded(n *hierarchy.Node) bool {
	c, ok := n.GPU.(*SurfelCloud)
	return ok && c != nil && c.State() == StateLoaded
}

// RequestLoad enqueues a load for n if it has no GPU handle yet.
// Satisfies front.GPUStatus.
func (l *Loader) RequestLoad(n *hierarchy.Node) {
	if n.GPU != nil {
		return
	}
	l.Submit(Request{Kind: ReqLoad, Node: n})
}

// Unload enqueues an unload for n if it currently has a GPU handle.
// Satisfies front.GPUStatus.
func (l *Loader) Unload(n *hierarchy.Node) {
	if n.GPU == nil {
		return
	}
	l.Submit(Request{Kind: ReqUnload, Node: n})
}

// ReleaseSiblings enqueues a request to drop n's owned child array
// (and, transitively, any GPU handles within it).
func (l *Loader) ReleaseSiblings(n *hierarchy.Node) {
	l.Submit(Request{Kind: ReqReleaseSiblings, Node: n})
}

// Close stops the loader's GL-context goroutine and waits for it to
// return.
func (l *Loader) Close() {
	close(l.stop)
	l.wg.Wait()
}
