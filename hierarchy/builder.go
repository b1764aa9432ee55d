package hierarchy

import (
	"fmt"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/dsilvavinicius/omicron/morton"
	"github.com/dsilvavinicius/omicron/octreedim"
	"github.com/dsilvavinicius/omicron/store"
	"github.com/dsilvavinicius/omicron/surfel"
)

// ParentPointsRatio is the default fraction of a child's samples carried
// up into its parent's displayable sample (k in spec §4.3), matching
// original_source's PARENT_POINTS_RATIO.
const ParentPointsRatio = 0.125

// nodeCollapse mirrors original_source's NODE_COLAPSE compile-time
// flag (spec §9): off by default. With it off, a parent with a single
// leaf child keeps that child as a distinct Node one level down. Left
// as a future extension — see collapseSingleLeafChild.
const nodeCollapse = false

// collapseSingleLeafChild folds parent into its one surviving leaf
// child when nodeCollapse is on, shortening that branch by one level.
// Never exercised while nodeCollapse is false; changing the depth of
// part of the hierarchy this way has ripple effects on every
// level-indexed consumer (front, gpuload) that this extension hasn't
// been threaded through yet.
func collapseSingleLeafChild(parent *Node) *Node {
	if !nodeCollapse || len(parent.Children) != 1 || !parent.Children[0].IsLeaf() {
		return parent
	}
	leaf := parent.Children[0]
	leaf.reparent(parent.Parent)
	return leaf
}

// Config configures a Builder; it is the Go-native shape of spec §6's
// runtime configuration value restricted to the fields the hierarchy
// builder consumes.
type Config struct {
	// LeafLevel is the octree level leaf Nodes are built at.
	LeafLevel int
	// NWorkers bounds the number of sibling-group work items processed
	// in parallel per level per pass; zero defaults to GOMAXPROCS.
	NWorkers int
	// LoadPerThread is the number of leaf/inner Nodes packed into one
	// work item (expectedLoadPerThread in the source).
	LoadPerThread int
	// RAMQuota is the soft byte budget on the surfel store before the
	// builder enters release mode and blocks the producer. Zero
	// disables the check.
	RAMQuota uint64
	// ParentPointsRatio is k; zero defaults to [ParentPointsRatio].
	ParentPointsRatio float32
}

// SurfelSource streams surfels in non-decreasing leaf-level Morton
// order, the contract implemented by pointsort.Reader.
type SurfelSource interface {
	Read(onSurfel func(surfel.Surfel)) error
}

// Builder assembles an octree bottom-up from a Morton-sorted surfel
// stream, one producer goroutine and a worker pool per level, grounded
// on original_source's HierarchyCreator.
type Builder struct {
	cfg    Config
	dim    octreedim.Dims
	sstore *store.SurfelStore
	istore *store.IndexStore
	nstore *store.NodeStore

	levels []*levelQueue

	producerDone atomic.Bool
	ramBytes     atomic.Int64

	releaseMu   sync.Mutex
	releaseCond *sync.Cond
	releasing   bool

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewBuilder prepares a Builder over dim (the leaf-level octree
// dimensions, as produced by [pointsort.Prescan]). nstore may be nil.
// The Builder keeps nstore but writes nothing to it: nodes evicted in
// release mode are not persisted anywhere.
func NewBuilder(cfg Config, dim octreedim.Dims, sstore *store.SurfelStore, istore *store.IndexStore, nstore *store.NodeStore) *Builder {
	if cfg.NWorkers <= 0 {
		cfg.NWorkers = runtime.GOMAXPROCS(0)
	}
	if cfg.LoadPerThread <= 0 {
		cfg.LoadPerThread = 1024
	}
	if cfg.ParentPointsRatio <= 0 || cfg.ParentPointsRatio >= 1 {
		cfg.ParentPointsRatio = ParentPointsRatio
	}
	b := &Builder{
		cfg:    cfg,
		dim:    dim,
		sstore: sstore,
		istore: istore,
		nstore: nstore,
		rng:    rand.New(rand.NewSource(1)),
	}
	b.releaseCond = sync.NewCond(&b.releaseMu)
	return b
}

// Build drains src and returns the completed hierarchy's root Node.
func (b *Builder) Build(src SurfelSource) (*Node, error) {
	b.levels = make([]*levelQueue, b.cfg.LeafLevel+1)
	for i := range b.levels {
		b.levels[i] = newLevelQueue()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- b.produce(src) }()

	for {
		for level := b.cfg.LeafLevel; level >= 1; level-- {
			if err := b.processLevel(level); err != nil {
				return nil, fmt.Errorf("hierarchy: process level %d: %w", level, err)
			}
		}
		b.clearReleaseIfBelowQuota()

		select {
		case err := <-errCh:
			if err != nil {
				return nil, fmt.Errorf("hierarchy: producer: %w", err)
			}
			errCh = nil
		default:
		}

		if b.isDone() {
			break
		}
		if !b.producerDone.Load() && b.levels[b.cfg.LeafLevel].len() == 0 {
			runtime.Gosched()
		}
	}

	items := b.levels[0].popAll()
	if len(items) != 1 || len(items[0]) != 1 {
		return nil, fmt.Errorf("hierarchy: construction ended with %d root candidates", len(items))
	}
	return items[0][0], nil
}

func (b *Builder) isDone() bool {
	if !b.producerDone.Load() {
		return false
	}
	for level := 1; level <= b.cfg.LeafLevel; level++ {
		if b.levels[level].len() != 0 {
			return false
		}
	}
	b.levels[0].mu.Lock()
	defer b.levels[0].mu.Unlock()
	return len(b.levels[0].items) == 1 && len(b.levels[0].items[0]) == 1
}

func (b *Builder) clearReleaseIfBelowQuota() {
	if b.cfg.RAMQuota == 0 || uint64(b.ramBytes.Load()) > b.cfg.RAMQuota {
		return
	}
	b.releaseMu.Lock()
	if b.releasing {
		b.releasing = false
		b.releaseCond.Broadcast()
	}
	b.releaseMu.Unlock()
}

// produce reads src, writes every valid surfel into the surfel store,
// groups consecutive equal-Morton surfels into one leaf Node, and packs
// leaves into work items pushed to the leaf-level queue.
func (b *Builder) produce(src SurfelSource) error {
	var (
		haveCur  bool
		curCode  morton.Code64
		curIdxs  []uint64
		batch    []*Node
		firstErr error
	)

	flushLeaf := func() {
		if !haveCur || len(curIdxs) == 0 {
			haveCur = false
			curIdxs = curIdxs[:0]
			return
		}
		offset := b.istore.Reserve(uint64(len(curIdxs)))
		if err := b.istore.WriteAt(offset, curIdxs); err != nil {
			firstErr = err
			return
		}
		batch = append(batch, &Node{Morton: curCode, IndexOffset: offset, IndexSize: uint32(len(curIdxs))})
		if len(batch) >= b.cfg.LoadPerThread {
			b.levels[b.cfg.LeafLevel].push(batch)
			batch = nil
		}
		haveCur = false
		curIdxs = curIdxs[:0]
	}

	err := src.Read(func(sf surfel.Surfel) {
		if firstErr != nil {
			return
		}
		if sf.HasZeroNormal() || !sf.IsFinite() {
			return
		}
		code, err := b.dim.Morton(sf.Center)
		if err != nil {
			firstErr = fmt.Errorf("pointsort stream out of leaf-level range: %w", err)
			return
		}
		if haveCur && code.Bits() != curCode.Bits() {
			flushLeaf()
		}
		idx, err := b.sstore.Append(sf)
		if err != nil {
			firstErr = err
			return
		}
		curCode = code
		haveCur = true
		curIdxs = append(curIdxs, idx)
		b.ramBytes.Add(surfel.ByteSize)
		b.maybeReleaseWait()
	})
	if err != nil {
		return err
	}
	if firstErr != nil {
		return firstErr
	}
	flushLeaf()
	if firstErr != nil {
		return firstErr
	}
	if len(batch) > 0 {
		b.levels[b.cfg.LeafLevel].push(batch)
	}
	b.producerDone.Store(true)
	return nil
}

func (b *Builder) maybeReleaseWait() {
	if b.cfg.RAMQuota == 0 || uint64(b.ramBytes.Load()) <= b.cfg.RAMQuota {
		return
	}
	b.releaseMu.Lock()
	b.releasing = true
	for b.releasing {
		b.releaseCond.Wait()
	}
	b.releaseMu.Unlock()
}

// processLevel dispatches up to cfg.NWorkers work items from level's
// queue in parallel, reconciles boundary duplicates, and pushes the
// merged output one level shallower.
func (b *Builder) processLevel(level int) error {
	q := b.levels[level]
	n := q.len()
	if n == 0 {
		return nil
	}
	batch := q.popN(min(n, b.cfg.NWorkers))
	if len(batch) == 0 {
		return nil
	}

	results := make([][]*Node, len(batch))
	var eg errgroup.Group
	for i, item := range batch {
		i, item := i, item
		eg.Go(func() error {
			out, err := b.processWorkItem(item)
			if err != nil {
				return err
			}
			results[i] = out
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	merged, err := b.mergeAdjacentDuplicates(results)
	if err != nil {
		return err
	}
	if level == 1 {
		return b.pushRootCandidates(merged)
	}
	pushChunks(b.levels[level-1], merged, b.cfg.LoadPerThread)
	return nil
}

// processWorkItem scans a Morton-sorted list of same-level Nodes,
// collecting runs of up to eight siblings sharing a parent Morton, and
// builds one parent Node per run.
func (b *Builder) processWorkItem(items []*Node) ([]*Node, error) {
	var out []*Node
	i := 0
	for i < len(items) {
		parentCode := items[i].Morton.TraverseUp64()
		j := i + 1
		for j < len(items) && items[j].Morton.TraverseUp64().Bits() == parentCode.Bits() && j-i < 8 {
			j++
		}
		parent, err := b.buildParentFromChildren(items[i:j], false)
		if err != nil {
			return nil, err
		}
		out = append(out, collapseSingleLeafChild(parent))
		i = j
	}
	return out, nil
}

// mergeAdjacentDuplicates reconciles boundary-adjacent worker outputs:
// if one worker's last Node and the next worker's first Node share a
// parent Morton, they are the same true parent split across the
// boundary and are combined.
func (b *Builder) mergeAdjacentDuplicates(results [][]*Node) ([]*Node, error) {
	var out []*Node
	for _, r := range results {
		for _, node := range r {
			if len(out) > 0 && out[len(out)-1].Morton.Bits() == node.Morton.Bits() {
				combined := append(append([]*Node{}, out[len(out)-1].Children...), node.Children...)
				merged, err := b.buildParentFromChildren(combined, true)
				if err != nil {
					return nil, err
				}
				out[len(out)-1] = merged
			} else {
				out = append(out, node)
			}
		}
	}
	return out, nil
}

// pushRootCandidates merges newly produced level-1 parents with any
// root candidate already resident at level 0, since all level-1 Nodes
// share the same (universal) parent Morton.
func (b *Builder) pushRootCandidates(nodes []*Node) error {
	existing := b.levels[0].popAll()
	all := nodes
	for _, it := range existing {
		all = append(all, it...)
	}
	if len(all) == 0 {
		return nil
	}
	if len(all) == 1 {
		b.levels[0].push(all)
		return nil
	}
	root, err := b.buildParentFromChildren(all, false)
	if err != nil {
		return err
	}
	b.levels[0].push([]*Node{root})
	return nil
}

// buildParentFromChildren builds an inner Node owning children (which
// must be Morton-sorted), reserving and filling its index range with a
// uniform sub-sample of each child's indices in proportion
// cfg.ParentPointsRatio — the "BHZK05"-style multi-level LOD of spec
// §4.3. reconciling marks the one documented exception to "parent set
// exactly once" (§9): mergeAdjacentDuplicates discarding a
// boundary-split partial parent in favor of the true cross-boundary
// one.
func (b *Builder) buildParentFromChildren(children []*Node, reconciling bool) (*Node, error) {
	if len(children) == 0 {
		return nil, fmt.Errorf("hierarchy: empty sibling group")
	}
	parentCode := children[0].Morton.TraverseUp64()

	counts := make([]int, len(children))
	total := 0
	for i, c := range children {
		cnt := int(float32(c.IndexSize) * b.cfg.ParentPointsRatio)
		if cnt < 1 {
			cnt = 1
		}
		if cnt > int(c.IndexSize) {
			cnt = int(c.IndexSize)
		}
		counts[i] = cnt
		total += cnt
	}

	values := make([]uint64, 0, total)
	for i, c := range children {
		childIdxs, err := b.istore.ReadRange(c.IndexOffset, c.IndexSize)
		if err != nil {
			return nil, err
		}
		for _, k := range b.sampleIndices(int(c.IndexSize), counts[i]) {
			values = append(values, childIdxs[k])
		}
	}
	offset := b.istore.Reserve(uint64(len(values)))
	if err := b.istore.WriteAt(offset, values); err != nil {
		return nil, err
	}

	parent := &Node{Morton: parentCode, Children: children, IndexOffset: offset, IndexSize: uint32(len(values))}
	for _, c := range children {
		if reconciling {
			// c already carries a Parent pointing at the now-discarded
			// boundary-split partial parent; SetParent's assertion
			// would panic on this legitimate reassignment, so it is
			// bypassed via reparent instead of silently weakened.
			c.reparent(parent)
		} else {
			c.SetParent(parent)
		}
	}
	return parent, nil
}

// sampleIndices returns k distinct indices in [0,n) chosen uniformly at
// random via partial Fisher-Yates.
func (b *Builder) sampleIndices(n, k int) []int {
	if k > n {
		k = n
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	b.rngMu.Lock()
	defer b.rngMu.Unlock()
	for i := 0; i < k; i++ {
		j := i + b.rng.Intn(n-i)
		idx[i], idx[j] = idx[j], idx[i]
	}
	return idx[:k]
}
