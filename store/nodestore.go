package store

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"sync"

	"github.com/dsilvavinicius/omicron/morton"
)

// NodeStore persists sibling groups evicted from memory during the
// hierarchy builder's release mode (§4.3 step 4). It is regenerated
// from scratch each run — a Go analogue of the teacher's per-run memory
// pools, repurposed here as an on-disk escape valve rather than an
// in-process allocator, since Go's GC already owns in-process memory
// pooling.
type NodeStore struct {
	mu sync.Mutex
	f  *os.File
	// offsets maps a parent Morton's bit pattern to its byte offset in
	// f, so a later reload can seek directly to a persisted group.
	offsets map[uint64]int64
}

// OpenNodeStore creates (or truncates) the node store at path.
func OpenNodeStore(path string) (*NodeStore, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("store: open node store: %w", err)
	}
	return &NodeStore{f: f, offsets: make(map[uint64]int64)}, nil
}

// Persisted describes one evicted sibling group: the parent's Morton
// code and the index-store offsets/sizes of each surviving child.
type Persisted struct {
	ParentMorton morton.Code64
	IndexOffsets []uint64
	IndexSizes   []uint32
}

// Store appends p and records its offset for later retrieval.
func (s *NodeStore) Store(p Persisted) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	off, err := s.f.Seek(0, os.SEEK_END)
	if err != nil {
		return fmt.Errorf("store: seek node store: %w", err)
	}
	w := bufio.NewWriter(s.f)
	var hdr [8 + 4]byte
	binary.LittleEndian.PutUint64(hdr[0:8], p.ParentMorton.Bits())
	binary.LittleEndian.PutUint32(hdr[8:12], uint32(len(p.IndexOffsets)))
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("store: write node header: %w", err)
	}
	for i, idxOff := range p.IndexOffsets {
		var rec [12]byte
		binary.LittleEndian.PutUint64(rec[0:8], idxOff)
		binary.LittleEndian.PutUint32(rec[8:12], p.IndexSizes[i])
		if _, err := w.Write(rec[:]); err != nil {
			return fmt.Errorf("store: write node record %d: %w", i, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("store: flush node store: %w", err)
	}
	s.offsets[p.ParentMorton.Bits()] = off
	return nil
}

// Load retrieves a previously stored sibling group by its parent's
// Morton code. Reports false if no group was persisted for it.
func (s *NodeStore) Load(parent morton.Code64) (Persisted, bool, error) {
	s.mu.Lock()
	off, ok := s.offsets[parent.Bits()]
	s.mu.Unlock()
	if !ok {
		return Persisted{}, false, nil
	}

	var hdr [8 + 4]byte
	if _, err := s.f.ReadAt(hdr[:], off); err != nil {
		return Persisted{}, false, fmt.Errorf("store: read node header: %w", err)
	}
	bits := binary.LittleEndian.Uint64(hdr[0:8])
	n := binary.LittleEndian.Uint32(hdr[8:12])

	out := Persisted{
		ParentMorton: morton.Code64(bits),
		IndexOffsets: make([]uint64, n),
		IndexSizes:   make([]uint32, n),
	}
	buf := make([]byte, 12*int(n))
	if _, err := s.f.ReadAt(buf, off+int64(len(hdr))); err != nil {
		return Persisted{}, false, fmt.Errorf("store: read node records: %w", err)
	}
	for i := uint32(0); i < n; i++ {
		rec := buf[i*12 : i*12+12]
		out.IndexOffsets[i] = binary.LittleEndian.Uint64(rec[0:8])
		out.IndexSizes[i] = binary.LittleEndian.Uint32(rec[8:12])
	}
	return out, true, nil
}

// Close closes the underlying file.
func (s *NodeStore) Close() error { return s.f.Close() }
