package pointsort

import (
	"bufio"
	"container/heap"
	"fmt"
	"io"
	"os"

	"github.com/dsilvavinicius/omicron/surfel"
)

const runRecordSize = 8 + surfel.ByteSize

// Reader performs the second ("output") phase of the external sort: a
// k-way merge of the Sorter's run files, emitting surfels in
// non-decreasing leaf-level Morton order.
type Reader struct {
	runs []*runCursor
}

type runCursor struct {
	f     *os.File
	r     *bufio.Reader
	key   uint64
	sf    surfel.Surfel
	order int // position in runPaths; breaks key ties in input order
}

func (c *runCursor) advance() (bool, error) {
	var rec [runRecordSize]byte
	if _, err := io.ReadFull(c.r, rec[:]); err != nil {
		if err == io.EOF {
			return false, nil
		}
		return false, fmt.Errorf("pointsort: read merge record: %w", err)
	}
	c.key = getUint64(rec[0:8])
	c.sf = surfel.Decode(rec[8:])
	return true, nil
}

// runHeap is a min-heap over runCursor ordered by key, then by run
// order, used to drive the k-way merge.
type runHeap []*runCursor

func (h runHeap) Len() int { return len(h) }
func (h runHeap) Less(i, j int) bool {
	if h[i].key != h[j].key {
		return h[i].key < h[j].key
	}
	return h[i].order < h[j].order
}
func (h runHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *runHeap) Push(x interface{}) { *h = append(*h, x.(*runCursor)) }
func (h *runHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// NewReader opens every path in runPaths for merging. Caller must call
// Close when done, even on error.
func NewReader(runPaths []string) (*Reader, error) {
	r := &Reader{}
	for _, p := range runPaths {
		f, err := os.Open(p)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("pointsort: open run %s: %w", p, err)
		}
		r.runs = append(r.runs, &runCursor{f: f, r: bufio.NewReader(f), order: len(r.runs)})
	}
	return r, nil
}

// Read merges all open runs and invokes onSurfel once per surfel in
// non-decreasing Morton order, matching the contract of original_source's
// ExternalSortReader::read.
func (r *Reader) Read(onSurfel func(surfel.Surfel)) error {
	h := make(runHeap, 0, len(r.runs))
	for _, c := range r.runs {
		ok, err := c.advance()
		if err != nil {
			return err
		}
		if ok {
			h = append(h, c)
		}
	}
	heap.Init(&h)
	for h.Len() > 0 {
		c := h[0]
		onSurfel(c.sf)
		ok, err := c.advance()
		if err != nil {
			return err
		}
		if ok {
			heap.Fix(&h, 0)
		} else {
			heap.Pop(&h)
		}
	}
	return nil
}

// Close closes every open run file.
func (r *Reader) Close() error {
	var first error
	for _, c := range r.runs {
		if c.f == nil {
			continue
		}
		if err := c.f.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
