package pointsort

import (
	"fmt"
	"io"
	"os"

	"github.com/dsilvavinicius/omicron/octreedim"
	"github.com/soypat/geometry/ms3"
)

// Prescan reads path once to compute the global bounding box, then
// derives an [octreedim.Dims] that maps the input into the unit cube at
// leafLevel, uniformly (aspect-preserving), per spec §4.2's "pre-scan
// the file once to compute the global bounding box and scale".
func Prescan(path string, leafLevel int) (octreedim.Dims, error) {
	f, err := os.Open(path)
	if err != nil {
		return octreedim.Dims{}, fmt.Errorf("pointsort: prescan open: %w", err)
	}
	defer f.Close()

	var (
		first      = true
		min, max   ms3.Vec
		sawAPoint  bool
	)
	for {
		p, err := readRawPoint(f)
		if err == io.EOF {
			break
		}
		if err != nil {
			return octreedim.Dims{}, fmt.Errorf("pointsort: prescan read: %w", err)
		}
		sawAPoint = true
		if first {
			min, max = p.Pos, p.Pos
			first = false
			continue
		}
		min = ms3.MinElem(min, p.Pos)
		max = ms3.MaxElem(max, p.Pos)
	}
	if !sawAPoint {
		// Empty input: spec §4.2 "empty input (zero invocations)". Any
		// well-formed Dims works since Read will never call back.
		return octreedim.New(ms3.Vec{}, ms3.Vec{X: 1, Y: 1, Z: 1}, leafLevel), nil
	}

	extent := ms3.Sub(max, min)
	longest := extent.X
	if extent.Y > longest {
		longest = extent.Y
	}
	if extent.Z > longest {
		longest = extent.Z
	}
	if longest == 0 {
		longest = 1 // all points coincide; §8 boundary behavior.
	}
	// Aspect-preserving uniform scale into a cube of side `longest`,
	// large enough to contain every point without distortion.
	return octreedim.New(min, ms3.Vec{X: longest, Y: longest, Z: longest}, leafLevel), nil
}
