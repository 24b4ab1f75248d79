// Package font builds a single-channel greyscale glyph atlas from TTF
// data (spec.md §4.2). Grounded on `golang.org/x/image/font/sfnt` for
// outline parsing and `golang.org/x/image/vector` for scan conversion —
// the teacher's only font path (`fzipp/bmfont`) consumes pre-rasterized
// bitmap-font descriptors, not raw TTF, so it cannot serve this
// contract; sfnt+vector are the rasterization pair the rest of the
// pack's image-heavy repos already depend on transitively via
// golang.org/x/image.
package font

import (
	"fmt"
	"image"

	"golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

// DefaultAtlasSize is the fixed atlas dimension spec.md §3 calls "a
// fixed-size greyscale bitmap".
const DefaultAtlasSize = 1024

// FallbackRune is substituted for any codepoint outside the built
// ranges (spec.md §3/§8).
const FallbackRune = '?'

// CodepointRange is an inclusive [Low, High] rune range to rasterize.
type CodepointRange struct {
	Low, High rune
}

// DefaultRanges covers printable ASCII, matching the teacher's default
// bitmap-font glyph coverage.
var DefaultRanges = []CodepointRange{{Low: 0x20, High: 0x7E}}

// Glyph describes one rasterized codepoint's placement in the atlas and
// its typographic metrics, scaled to the atlas's pixel height.
type Glyph struct {
	// U0, V0, U1, V1 are normalized atlas UV coordinates.
	U0, V0, U1, V1 float32
	// Width, Height are the glyph's bitmap size in pixels.
	Width, Height float32
	// BearingX, BearingY offset the glyph quad from the pen position.
	BearingX, BearingY float32
	// Advance is the horizontal pen advance after drawing this glyph.
	Advance float32
}

// Atlas is an immutable packed glyph atlas (spec.md §4.2: "immutable
// after construction").
type Atlas struct {
	Width, Height int
	Pixels        []byte // single-channel R8, row-major, Width*Height bytes
	Ascent        float32
	Descent       float32
	PixelHeight   int

	glyphs   map[rune]Glyph
	fallback Glyph
}

// Glyph returns r's glyph entry, or the '?' fallback if r was not in
// any requested range.
func (a *Atlas) Glyph(r rune) Glyph {
	if g, ok := a.glyphs[r]; ok {
		return g
	}
	return a.fallback
}

// shelfPacker is a row-based bin packer: rows grow left to right until
// full, then a new row starts below the tallest glyph placed in the
// current row. Matches the teacher's grow-by-doubling-free dynamic
// array idiom in spirit (amortized linear packing, no backtracking),
// adapted here to a fixed-size atlas per spec.md §3.
type shelfPacker struct {
	width, height int
	penX, penY    int
	rowHeight     int
}

func newShelfPacker(width, height int) *shelfPacker {
	return &shelfPacker{width: width, height: height}
}

func (p *shelfPacker) place(w, h int) (x, y int, ok bool) {
	if p.penX+w > p.width {
		p.penX = 0
		p.penY += p.rowHeight
		p.rowHeight = 0
	}
	if p.penY+h > p.height {
		return 0, 0, false
	}
	x, y = p.penX, p.penY
	p.penX += w
	if h > p.rowHeight {
		p.rowHeight = h
	}
	return x, y, true
}

// Build parses ttf, rasterizes every codepoint in ranges (DefaultRanges
// if empty) at pixelHeight, packs them into an atlasSize x atlasSize
// (DefaultAtlasSize if 0) greyscale bitmap, and returns the resulting
// Atlas.
func Build(ttf []byte, pixelHeight int, atlasSize int, ranges []CodepointRange) (*Atlas, error) {
	if pixelHeight <= 0 {
		return nil, fmt.Errorf("font: pixelHeight must be positive, got %d", pixelHeight)
	}
	if atlasSize <= 0 {
		atlasSize = DefaultAtlasSize
	}
	if len(ranges) == 0 {
		ranges = DefaultRanges
	}

	f, err := sfnt.Parse(ttf)
	if err != nil {
		return nil, fmt.Errorf("font: parse TTF: %w", err)
	}

	var buf sfnt.Buffer
	ppem := fixed.Int26_6(pixelHeight << 6)

	metrics, err := f.Metrics(&buf, ppem, font.HintingNone)
	if err != nil {
		return nil, fmt.Errorf("font: read metrics: %w", err)
	}

	pixels := make([]byte, atlasSize*atlasSize)
	packer := newShelfPacker(atlasSize, atlasSize)
	glyphs := map[rune]Glyph{}

	place := func(r rune) (Glyph, bool, error) {
		idx, err := f.GlyphIndex(&buf, r)
		if err != nil {
			return Glyph{}, false, fmt.Errorf("font: glyph index for %q: %w", r, err)
		}
		if idx == 0 {
			return Glyph{}, false, nil
		}

		segments, err := f.LoadGlyph(&buf, idx, ppem, nil)
		if err != nil {
			return Glyph{}, false, fmt.Errorf("font: load glyph %q: %w", r, err)
		}

		adv, err := f.GlyphAdvance(&buf, idx, ppem, font.HintingNone)
		if err != nil {
			return Glyph{}, false, fmt.Errorf("font: glyph advance %q: %w", r, err)
		}

		bounds, _, err := f.GlyphBounds(&buf, idx, ppem, font.HintingNone)
		if err != nil {
			return Glyph{}, false, fmt.Errorf("font: glyph bounds %q: %w", r, err)
		}

		w := (bounds.Max.X - bounds.Min.X).Ceil()
		h := (bounds.Max.Y - bounds.Min.Y).Ceil()
		if w <= 0 || h <= 0 {
			// Whitespace and similarly empty glyphs still advance the pen
			// but occupy no atlas space.
			return Glyph{Advance: fix26ToFloat(adv)}, true, nil
		}

		raster := vector.NewRasterizer(w, h)
		offX := -bounds.Min.X
		offY := -bounds.Min.Y
		for _, seg := range segments {
			switch seg.Op {
			case sfnt.SegmentOpMoveTo:
				raster.MoveTo(fix26ToF32(seg.Args[0].X+offX), fix26ToF32(seg.Args[0].Y+offY))
			case sfnt.SegmentOpLineTo:
				raster.LineTo(fix26ToF32(seg.Args[0].X+offX), fix26ToF32(seg.Args[0].Y+offY))
			case sfnt.SegmentOpQuadTo:
				raster.QuadTo(
					fix26ToF32(seg.Args[0].X+offX), fix26ToF32(seg.Args[0].Y+offY),
					fix26ToF32(seg.Args[1].X+offX), fix26ToF32(seg.Args[1].Y+offY),
				)
			case sfnt.SegmentOpCubeTo:
				raster.CubeTo(
					fix26ToF32(seg.Args[0].X+offX), fix26ToF32(seg.Args[0].Y+offY),
					fix26ToF32(seg.Args[1].X+offX), fix26ToF32(seg.Args[1].Y+offY),
					fix26ToF32(seg.Args[2].X+offX), fix26ToF32(seg.Args[2].Y+offY),
				)
			}
		}

		dst := image.NewAlpha(image.Rect(0, 0, w, h))
		raster.Draw(dst, dst.Bounds(), image.Opaque, image.Point{})

		x, y, ok := packer.place(w, h)
		if !ok {
			return Glyph{}, false, fmt.Errorf("font: atlas full, could not place glyph %q", r)
		}
		for row := 0; row < h; row++ {
			srcRow := dst.Pix[row*dst.Stride : row*dst.Stride+w]
			copy(pixels[(y+row)*atlasSize+x:], srcRow)
		}

		return Glyph{
			U0:       float32(x) / float32(atlasSize),
			V0:       float32(y) / float32(atlasSize),
			U1:       float32(x+w) / float32(atlasSize),
			V1:       float32(y+h) / float32(atlasSize),
			Width:    float32(w),
			Height:   float32(h),
			BearingX: fix26ToFloat(bounds.Min.X),
			BearingY: fix26ToFloat(bounds.Min.Y),
			Advance:  fix26ToFloat(adv),
		}, true, nil
	}

	for _, r := range ranges {
		for cp := r.Low; cp <= r.High; cp++ {
			g, ok, err := place(cp)
			if err != nil {
				return nil, err
			}
			if ok {
				glyphs[cp] = g
			}
		}
	}

	fallback, ok := glyphs[FallbackRune]
	if !ok {
		g, placed, err := place(FallbackRune)
		if err != nil {
			return nil, err
		}
		if placed {
			glyphs[FallbackRune] = g
			fallback = g
		}
	}

	return &Atlas{
		Width:       atlasSize,
		Height:      atlasSize,
		Pixels:      pixels,
		Ascent:      fix26ToFloat(metrics.Ascent),
		Descent:     fix26ToFloat(metrics.Descent),
		PixelHeight: pixelHeight,
		glyphs:      glyphs,
		fallback:    fallback,
	}, nil
}

func fix26ToFloat(v fixed.Int26_6) float32 {
	return float32(v) / 64
}

func fix26ToF32(v fixed.Int26_6) float32 {
	return float32(v) / 64
}
