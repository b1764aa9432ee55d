package octreedim

import (
	"testing"

	"github.com/soypat/geometry/ms3"
)

func TestMortonBoxRoundTrip(t *testing.T) {
	d := New(ms3.Vec{}, ms3.Vec{X: 8, Y: 8, Z: 8}, 3)
	pos := ms3.Vec{X: 5.5, Y: 1.25, Z: 6.75}
	code, err := d.Morton(pos)
	if err != nil {
		t.Fatal(err)
	}
	box := d.Box(code)
	if !Contains(box, pos) {
		t.Fatalf("box %+v does not contain %+v", box, pos)
	}
}

func TestWithLevelShrinksNodeSize(t *testing.T) {
	d := New(ms3.Vec{}, ms3.Vec{X: 16, Y: 16, Z: 16}, 1)
	deeper := d.WithLevel(4)
	n0 := d.NodeSize()
	n1 := deeper.NodeSize()
	if n1.X >= n0.X || n1.Y >= n0.Y || n1.Z >= n0.Z {
		t.Fatalf("deeper level node size %+v should be smaller than %+v", n1, n0)
	}
}

func TestBoxesPartitionLevel(t *testing.T) {
	const level = 2
	d := New(ms3.Vec{}, ms3.Vec{X: 4, Y: 4, Z: 4}, level)
	seen := map[[3]uint32]bool{}
	for x := uint32(0); x < 4; x++ {
		for y := uint32(0); y < 4; y++ {
			for z := uint32(0); z < 4; z++ {
				pos := ms3.Vec{X: float32(x) + 0.5, Y: float32(y) + 0.5, Z: float32(z) + 0.5}
				code, err := d.Morton(pos)
				if err != nil {
					t.Fatal(err)
				}
				gx, gy, gz := code.Decode()
				key := [3]uint32{gx, gy, gz}
				if seen[key] {
					t.Fatalf("node %v visited twice", key)
				}
				seen[key] = true
			}
		}
	}
	if len(seen) != 64 {
		t.Fatalf("expected 64 distinct nodes, got %d", len(seen))
	}
}
