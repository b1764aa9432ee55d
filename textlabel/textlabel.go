// Package textlabel implements the debug node-ID text overlay (spec
// supplement: original_source's front.h NODE_ID_TEXT / TextEffect), an
// opt-in aid that rasterizes a node's Morton path as glyphs so it can
// be blitted over the splat front during debugging. Grounded on the
// teacher's forge/textsdf, which parses a TrueType font via
// github.com/golang/freetype/truetype and walks its glyphs with
// golang.org/x/image/font; this package reuses the same two libraries
// for the same purpose, rasterized bitmaps instead of SDF glyph
// shapes, since the overlay is blitted, not ray-marched.
package textlabel

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"strconv"
	"strings"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/dsilvavinicius/omicron/morton"
)

// Config selects the font and color an Overlay draws labels with.
type Config struct {
	// FontPath is a TrueType font file to load via
	// github.com/golang/freetype/truetype. Optional: when empty, New
	// falls back to golang.org/x/image/font/basicfont's bundled 7x13
	// bitmap face, so the overlay works with no external asset at all
	// — this is the opt-in feature's default path.
	FontPath string
	// Size is the font size in points, only meaningful with FontPath
	// set. Zero defaults to 12.
	Size float64
	// Color is the label color. Nil defaults to white.
	Color color.Color
}

// Overlay rasterizes node-ID labels using a fixed face chosen at
// construction time.
type Overlay struct {
	face  font.Face
	color color.Color
}

// New builds an Overlay per cfg. See Config.FontPath for the
// asset-free default.
func New(cfg Config) (*Overlay, error) {
	col := cfg.Color
	if col == nil {
		col = color.White
	}
	if cfg.FontPath == "" {
		return &Overlay{face: basicfont.Face7x13, color: col}, nil
	}

	raw, err := os.ReadFile(cfg.FontPath)
	if err != nil {
		return nil, fmt.Errorf("textlabel: read font: %w", err)
	}
	ttf, err := truetype.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("textlabel: parse font: %w", err)
	}
	size := cfg.Size
	if size == 0 {
		size = 12
	}
	face := truetype.NewFace(ttf, &truetype.Options{Size: size})
	return &Overlay{face: face, color: col}, nil
}

// MortonLabel formats code as the dotted octal-digit path NODE_ID_TEXT
// displays in the original: one digit per octree level, root first,
// each digit the 3-bit child octant index at that level.
func MortonLabel(code morton.Code64) string {
	level := code.Level()
	if level == 0 {
		return "root"
	}
	bits := code.Bits()
	digits := make([]string, level)
	for i := 0; i < level; i++ {
		shift := uint((level - 1 - i) * 3)
		digits[i] = strconv.FormatUint((bits>>shift)&0x7, 8)
	}
	return strings.Join(digits, ".")
}

// RenderLabel rasterizes text into a tightly-cropped RGBA image sized
// to o's face metrics, suitable for blitting over the front at a
// node's projected screen position.
func (o *Overlay) RenderLabel(text string) *image.RGBA {
	drawer := &font.Drawer{Face: o.face}
	width := drawer.MeasureString(text).Ceil()
	metrics := o.face.Metrics()
	height := (metrics.Ascent + metrics.Descent).Ceil()
	if width <= 0 || height <= 0 {
		return image.NewRGBA(image.Rect(0, 0, 1, 1))
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	drawer.Dst = img
	drawer.Src = image.NewUniform(o.color)
	drawer.Dot = fixed.Point26_6{X: 0, Y: metrics.Ascent}
	drawer.DrawString(text)
	return img
}
