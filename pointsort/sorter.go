package pointsort

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/dsilvavinicius/omicron/octreedim"
	"github.com/dsilvavinicius/omicron/surfel"
)

// DefaultSurfelRadius is the tangent length assigned to every surfel
// derived from a bare (position, normal) input record, in the unit-cube
// space the Dims scales into. The actual splat radius used at render
// time is this value further scaled by the tangent multiplier table
// (surfel.TangentTable), so the exact magnitude here is not load-bearing.
const DefaultSurfelRadius = 0.002

// keyedSurfel pairs a surfel with the leaf-level Morton key it is
// sorted by, so equal keys keep input order ("stable with respect to
// ties", spec §4.2).
type keyedSurfel struct {
	key   uint64
	seq   uint64
	value surfel.Surfel
}

// Sorter performs the first ("input") phase of the external sort: it
// streams the raw point file, discards invalid surfels, and partitions
// the rest into disk-resident runs sorted by leaf-level Morton code,
// each run bounded by maxRunSurfels in memory.
type Sorter struct {
	dim           octreedim.Dims
	maxRunSurfels int
	runDir        string
	runPaths      []string
	nextSeq       uint64
}

// NewSorter prepares a Sorter over dim (as produced by [Prescan]),
// writing intermediate runs under runDir.
func NewSorter(dim octreedim.Dims, maxRunSurfels int, runDir string) *Sorter {
	if maxRunSurfels <= 0 {
		maxRunSurfels = 1 << 20
	}
	return &Sorter{dim: dim, maxRunSurfels: maxRunSurfels, runDir: runDir}
}

// Run reads every point in path, scales it into the Sorter's Dims, and
// writes one or more sorted run files. Invalid surfels (NaN/Inf
// coordinates or a zero normal) are skipped silently, per §4.2's
// resolution of "zero-normal surfels".
func (s *Sorter) Run(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("pointsort: open input: %w", err)
	}
	defer f.Close()
	r := bufio.NewReader(f)

	var batch []keyedSurfel
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		sort.Slice(batch, func(i, j int) bool {
			if batch[i].key != batch[j].key {
				return batch[i].key < batch[j].key
			}
			return batch[i].seq < batch[j].seq
		})
		runPath, err := s.writeRun(batch)
		if err != nil {
			return err
		}
		s.runPaths = append(s.runPaths, runPath)
		batch = batch[:0]
		return nil
	}

	for {
		p, err := readRawPoint(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("pointsort: read input: %w", err)
		}
		sf := surfel.FromNormal(p.Pos, p.Normal, DefaultSurfelRadius)
		if sf.HasZeroNormal() || !sf.IsFinite() {
			continue
		}
		code, err := s.dim.Morton(sf.Center)
		if err != nil {
			return fmt.Errorf("pointsort: morton out of range: %w", err)
		}
		batch = append(batch, keyedSurfel{key: code.Bits(), seq: s.nextSeq, value: sf})
		s.nextSeq++
		if len(batch) >= s.maxRunSurfels {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}

func (s *Sorter) writeRun(batch []keyedSurfel) (string, error) {
	path := filepath.Join(s.runDir, fmt.Sprintf("run-%04d.bin", len(s.runPaths)))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("pointsort: create run file: %w", err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	for _, ks := range batch {
		var keyBuf [8]byte
		putUint64(keyBuf[:], ks.key)
		if _, err := w.Write(keyBuf[:]); err != nil {
			return "", fmt.Errorf("pointsort: write run key: %w", err)
		}
		surfelBuf := surfel.Encode(make([]byte, 0, surfel.ByteSize), ks.value)
		if _, err := w.Write(surfelBuf); err != nil {
			return "", fmt.Errorf("pointsort: write run record: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return "", fmt.Errorf("pointsort: flush run file: %w", err)
	}
	return path, nil
}

// RunPaths returns the run files produced by Run, for use by [NewReader].
func (s *Sorter) RunPaths() []string { return s.runPaths }

// Dims returns the octree dimensions the Sorter scaled points into.
func (s *Sorter) Dims() octreedim.Dims { return s.dim }

func putUint64(dst []byte, v uint64) {
	for i := 0; i < 8; i++ {
		dst[i] = byte(v >> (8 * i))
	}
}

func getUint64(src []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(src[i]) << (8 * i)
	}
	return v
}
