// Package store implements the external surfel and index stores (spec
// components A and B): append-only, random-access flat files shared by
// the parallel hierarchy builder, plus a regenerate-per-run on-disk node
// store for release-mode eviction.
package store

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/dsilvavinicius/omicron/surfel"
)

// SurfelStore is a growing, random-access sequence of surfel.Surfel
// backed by a flat file of fixed-size records. Index equals insertion
// order; once written, a record is never rewritten.
type SurfelStore struct {
	f    *os.File
	next atomic.Uint64 // count of surfels appended so far
}

// OpenSurfelStore creates (or truncates) the surfel store at path.
func OpenSurfelStore(path string) (*SurfelStore, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("store: open surfel store: %w", err)
	}
	return &SurfelStore{f: f}, nil
}

// Append writes s as the next record and returns its index.
func (s *SurfelStore) Append(sf surfel.Surfel) (uint64, error) {
	idx := s.next.Add(1) - 1
	var buf [surfel.ByteSize]byte
	surfel.Encode(buf[:0], sf)
	if _, err := s.f.WriteAt(buf[:], int64(idx)*surfel.ByteSize); err != nil {
		return 0, fmt.Errorf("store: append surfel %d: %w", idx, err)
	}
	return idx, nil
}

// At reads the surfel at idx.
func (s *SurfelStore) At(idx uint64) (surfel.Surfel, error) {
	var buf [surfel.ByteSize]byte
	if _, err := s.f.ReadAt(buf[:], int64(idx)*surfel.ByteSize); err != nil {
		return surfel.Surfel{}, fmt.Errorf("store: read surfel %d: %w", idx, err)
	}
	return surfel.Decode(buf[:]), nil
}

// Len returns the number of surfels appended so far.
func (s *SurfelStore) Len() uint64 { return s.next.Load() }

// Close closes the underlying file.
func (s *SurfelStore) Close() error { return s.f.Close() }
