package store

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync/atomic"
)

// IndexStore is a growing sequence of uint64 indices into a SurfelStore.
// Parallel writers reserve a contiguous range with Reserve, then fill it
// without further coordination — no element is ever rewritten.
type IndexStore struct {
	f    *os.File
	size atomic.Uint64 // reserved length, in elements
}

// OpenIndexStore creates (or truncates) the index store at path.
func OpenIndexStore(path string) (*IndexStore, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("store: open index store: %w", err)
	}
	return &IndexStore{f: f}, nil
}

// Reserve atomically reserves n contiguous slots and returns the
// starting offset. The caller fills [offset, offset+n) via WriteAt
// without coordinating with other reservers.
func (s *IndexStore) Reserve(n uint64) uint64 {
	return s.size.Add(n) - n
}

// WriteAt fills the reserved slot at offset with values, which must lie
// entirely within a previously returned [offset, offset+n) range.
func (s *IndexStore) WriteAt(offset uint64, values []uint64) error {
	buf := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[i*8:], v)
	}
	if _, err := s.f.WriteAt(buf, int64(offset)*8); err != nil {
		return fmt.Errorf("store: write index range at %d: %w", offset, err)
	}
	return nil
}

// ReadRange reads n values starting at offset.
func (s *IndexStore) ReadRange(offset uint64, n uint32) ([]uint64, error) {
	buf := make([]byte, 8*int(n))
	if _, err := s.f.ReadAt(buf, int64(offset)*8); err != nil {
		return nil, fmt.Errorf("store: read index range at %d: %w", offset, err)
	}
	out := make([]uint64, n)
	for i := range out {
		out[i] = binary.LittleEndian.Uint64(buf[i*8:])
	}
	return out, nil
}

// Len returns the number of reserved elements.
func (s *IndexStore) Len() uint64 { return s.size.Load() }

// Close closes the underlying file.
func (s *IndexStore) Close() error { return s.f.Close() }
