// Package pointsort implements the external sort/reader (spec component
// E): a two-phase k-way merge that turns an unsorted point file into a
// Morton-sorted surfel stream, grounded on original_source's
// external_sort_reader.h (which wraps STXXL's runs_creator/runs_merger;
// here the run files and the merge heap are hand-rolled since no STXXL
// analogue exists in the pack).
package pointsort

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/soypat/geometry/ms3"
)

// rawPointSize is the on-disk size of one input record: (x,y,z,nx,ny,nz)
// as six little-endian float32s, per spec §6's input point format.
const rawPointSize = 6 * 4

type rawPoint struct {
	Pos, Normal ms3.Vec
}

func readRawPoint(r io.Reader) (rawPoint, error) {
	var buf [rawPointSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return rawPoint{}, err
	}
	return decodeRawPoint(buf[:]), nil
}

func decodeRawPoint(buf []byte) rawPoint {
	_ = buf[rawPointSize-1]
	return rawPoint{
		Pos: ms3.Vec{
			X: math.Float32frombits(binary.LittleEndian.Uint32(buf[0:4])),
			Y: math.Float32frombits(binary.LittleEndian.Uint32(buf[4:8])),
			Z: math.Float32frombits(binary.LittleEndian.Uint32(buf[8:12])),
		},
		Normal: ms3.Vec{
			X: math.Float32frombits(binary.LittleEndian.Uint32(buf[12:16])),
			Y: math.Float32frombits(binary.LittleEndian.Uint32(buf[16:20])),
			Z: math.Float32frombits(binary.LittleEndian.Uint32(buf[20:24])),
		},
	}
}

func encodeRawPoint(dst []byte, p rawPoint) []byte {
	var buf [rawPointSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(p.Pos.X))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(p.Pos.Y))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(p.Pos.Z))
	binary.LittleEndian.PutUint32(buf[12:16], math.Float32bits(p.Normal.X))
	binary.LittleEndian.PutUint32(buf[16:20], math.Float32bits(p.Normal.Y))
	binary.LittleEndian.PutUint32(buf[20:24], math.Float32bits(p.Normal.Z))
	return append(dst, buf[:]...)
}

func writeRawPoint(w io.Writer, p rawPoint) error {
	buf := encodeRawPoint(make([]byte, 0, rawPointSize), p)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("pointsort: write point: %w", err)
	}
	return nil
}
