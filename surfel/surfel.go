// Package surfel defines the elliptical splat primitive stored in the
// external surfel store and its on-disk encoding.
package surfel

import (
	"encoding/binary"
	"math"

	"github.com/soypat/geometry/ms3"
)

// Surfel is an oriented elliptical disk: a center and two tangent axes
// whose magnitudes encode the ellipse's radii along each axis.
type Surfel struct {
	Center ms3.Vec
	U      ms3.Vec
	V      ms3.Vec
}

// ByteSize is the on-disk size of a surfel: nine 32-bit IEEE-754 floats
// in center/u/v order, per spec §6.
const ByteSize = 9 * 4

// HasZeroNormal reports whether the surfel's orientation (U×V) is
// degenerate, i.e. both tangents are zero or parallel. Such surfels
// carry no usable normal and are skipped during reading, per the §4.2
// resolution of "zero-normal surfels": discard rather than assign an
// arbitrary tangent, matching original_source's OutOfCorePlyPointReader.
func (s Surfel) HasZeroNormal() bool {
	n := ms3.Cross(s.U, s.V)
	return n == (ms3.Vec{})
}

// IsFinite reports whether every component of the surfel is a finite
// float (no NaN or Inf), the other half of the §4.2 "invalid surfel"
// check alongside [Surfel.HasZeroNormal].
func (s Surfel) IsFinite() bool {
	return finiteVec(s.Center) && finiteVec(s.U) && finiteVec(s.V)
}

// FromNormal builds a Surfel centered at center with tangents u,v
// spanning the plane orthogonal to normal, each of length radius. normal
// need not be unit length; a zero normal yields a zero-tangent (and
// thus HasZeroNormal) Surfel, left to the caller to discard.
func FromNormal(center, normal ms3.Vec, radius float32) Surfel {
	if normal == (ms3.Vec{}) {
		return Surfel{Center: center}
	}
	ref := ms3.Vec{X: 1}
	if math.Abs(float64(normal.X)) > 0.9*float64(vecLen(normal)) {
		ref = ms3.Vec{Y: 1}
	}
	u := ms3.Cross(normal, ref)
	u = scaleTo(u, radius)
	v := ms3.Cross(normal, u)
	v = scaleTo(v, radius)
	return Surfel{Center: center, U: u, V: v}
}

func vecLen(v ms3.Vec) float32 {
	return float32(math.Sqrt(float64(v.X*v.X + v.Y*v.Y + v.Z*v.Z)))
}

func scaleTo(v ms3.Vec, length float32) ms3.Vec {
	l := vecLen(v)
	if l == 0 {
		return v
	}
	k := length / l
	return ms3.Vec{X: v.X * k, Y: v.Y * k, Z: v.Z * k}
}

func finiteVec(v ms3.Vec) bool {
	return !math.IsNaN(float64(v.X)) && !math.IsInf(float64(v.X), 0) &&
		!math.IsNaN(float64(v.Y)) && !math.IsInf(float64(v.Y), 0) &&
		!math.IsNaN(float64(v.Z)) && !math.IsInf(float64(v.Z), 0)
}

// Encode appends the surfel's disk representation (center, u, v as nine
// little-endian float32s) to dst and returns the extended slice.
func Encode(dst []byte, s Surfel) []byte {
	var buf [ByteSize]byte
	putVec(buf[0:12], s.Center)
	putVec(buf[12:24], s.U)
	putVec(buf[24:36], s.V)
	return append(dst, buf[:]...)
}

// Decode reads a surfel from its 36-byte disk representation.
func Decode(src []byte) Surfel {
	_ = src[ByteSize-1] // bounds check hint
	return Surfel{
		Center: getVec(src[0:12]),
		U:      getVec(src[12:24]),
		V:      getVec(src[24:36]),
	}
}

func putVec(dst []byte, v ms3.Vec) {
	binary.LittleEndian.PutUint32(dst[0:4], math.Float32bits(v.X))
	binary.LittleEndian.PutUint32(dst[4:8], math.Float32bits(v.Y))
	binary.LittleEndian.PutUint32(dst[8:12], math.Float32bits(v.Z))
}

func getVec(src []byte) ms3.Vec {
	return ms3.Vec{
		X: math.Float32frombits(binary.LittleEndian.Uint32(src[0:4])),
		Y: math.Float32frombits(binary.LittleEndian.Uint32(src[4:8])),
		Z: math.Float32frombits(binary.LittleEndian.Uint32(src[8:12])),
	}
}
