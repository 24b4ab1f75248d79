package ui

import (
	"sort"
	"unicode/utf8"

	"github.com/kiln-engine/kiln/font"
	"github.com/kiln-engine/kiln/geom"
)

// RectItem is one filled rectangle in the DisplayList (spec.md §3
// "DisplayList / ViewModel").
type RectItem struct {
	ID     string
	Box    geom.Rect
	ZIndex int
	Color  geom.Color
}

// GlyphQuad is one rasterized glyph's screen-space placement (spec.md
// §3).
type GlyphQuad struct {
	Min, Max geom.Vec2
	UV0, UV1 geom.Vec2
	Color    geom.Color
	ZIndex   int
}

// DisplayList is the per-frame output of translating a Widget array
// into GPU-instanceable primitives.
type DisplayList struct {
	Rects  []RectItem
	Glyphs []GlyphQuad
}

// orderedRect and orderedGlyph carry a same-z-index sub-order so a
// widget's own extras (border, fill, scrollbar) draw in a fixed
// relative sequence even though they share one z-index (spec.md §4.8:
// "sorted by z-index (stable)").
type orderedRect struct {
	item RectItem
	sub  int
}

type orderedGlyph struct {
	item GlyphQuad
	sub  int
}

// zOf converts an integer z-index plus a sub-order offset into a
// comparable key.
func zOf(zIndex, offset int) int { return zIndex*1000 + offset }

// BuildDisplayList translates frame's widgets into a DisplayList,
// applying scroll offsets, borders, per-kind extras (hslider/scrollbar),
// clipping, and text shaping, then stable-sorts by z-index (spec.md
// §4.8). atlas may be nil, in which case text widgets contribute no
// glyphs (still useful for layout-only tests).
func BuildDisplayList(frame *Frame, atlas *font.Atlas) *DisplayList {
	dl := &DisplayList{}

	var rects []orderedRect
	var glyphs []orderedGlyph

	for i := range frame.Widgets {
		w := &frame.Widgets[i]
		rect := w.effectiveRect()

		if w.ScrollArea != "" && !w.ScrollStatic {
			if area, ok := frame.ScrollAreas[w.ScrollArea]; ok {
				rect.Y -= area.Offset
			}
		}

		clip, hasClip := rect, false
		if w.HasClipRect {
			if c, ok := rect.Intersect(w.ClipRect); ok {
				clip, hasClip = c, true
			} else {
				clip, hasClip = geom.Rect{}, true
			}
		}

		if w.Style.BorderThickness > 0 {
			border := RectItem{
				ID: w.ID + ":border", ZIndex: w.ZIndex,
				Color: w.Style.BorderColor,
				Box: geom.Rect{
					X: rect.X - w.Style.BorderThickness, Y: rect.Y - w.Style.BorderThickness,
					W: rect.W + 2*w.Style.BorderThickness, H: rect.H + 2*w.Style.BorderThickness,
				},
			}
			rects = append(rects, orderedRect{border, 0})
		}

		rects = append(rects, orderedRect{RectItem{ID: w.ID, Box: rect, ZIndex: w.ZIndex, Color: w.Style.Color}, 1})

		if w.Kind == KindHSlider {
			rects = append(rects, sliderQuads(w, rect)...)
		}

		if w.ScrollArea != "" {
			if area, ok := frame.ScrollAreas[w.ScrollArea]; ok {
				if track, thumb, show := scrollbarQuads(w, rect, area); show {
					rects = append(rects, orderedRect{track, 2}, orderedRect{thumb, 3})
				}
			}
		}

		if w.Text != "" && atlas != nil {
			glyphs = append(glyphs, shapeText(w, rect, clip, hasClip, atlas)...)
		}
	}

	sort.SliceStable(rects, func(i, j int) bool {
		return zOf(rects[i].item.ZIndex, rects[i].sub) < zOf(rects[j].item.ZIndex, rects[j].sub)
	})
	for _, r := range rects {
		dl.Rects = append(dl.Rects, r.item)
	}

	sort.SliceStable(glyphs, func(i, j int) bool {
		return zOf(glyphs[i].item.ZIndex, glyphs[i].sub) < zOf(glyphs[j].item.ZIndex, glyphs[j].sub)
	})
	for _, g := range glyphs {
		dl.Glyphs = append(dl.Glyphs, g.item)
	}

	return dl
}

// sliderQuads builds the track/fill/knob triple for an hslider widget,
// with z-offsets {base, base+1, base+2} per spec.md §4.8. Geometry and
// color mapping follow the original renderer's W_HSLIDER case: the
// track is a reduced-height band centered in rect, not the full rect;
// the knob is taller than it is wide; track gets widget.color at 0.35
// alpha, fill gets the full widget.color, and the knob gets
// widget.text_color (falling back to opaque white when that color's
// alpha is zero).
func sliderQuads(w *Widget, rect geom.Rect) []orderedRect {
	t := clamp01((w.Value - w.Min) / maxf(w.Max-w.Min, 1e-6))

	trackHeight := maxf(rect.H*0.35, 6)
	trackY := rect.Y + (rect.H-trackHeight)*0.5
	fillW := rect.W * t

	knobW := maxf(trackHeight, rect.H*0.3)
	knobX := clampf(rect.X+fillW-knobW/2, rect.X, rect.X+rect.W-knobW)
	knobH := trackHeight * 1.5
	knobY := trackY + (trackHeight-knobH)*0.5

	trackColor := w.Style.Color
	trackColor.W *= 0.35

	knobColor := w.Style.TextColor
	if knobColor.W <= 0 {
		knobColor = geom.Color{X: 1, Y: 1, Z: 1, W: 1}
	}

	track := RectItem{ID: w.ID + ":track", Box: geom.Rect{X: rect.X, Y: trackY, W: rect.W, H: trackHeight}, ZIndex: w.ZIndex, Color: trackColor}
	fill := RectItem{ID: w.ID + ":fill", Box: geom.Rect{X: rect.X, Y: trackY, W: fillW, H: trackHeight}, ZIndex: w.ZIndex, Color: w.Style.Color}
	knob := RectItem{ID: w.ID + ":knob", Box: geom.Rect{X: knobX, Y: knobY, W: knobW, H: knobH}, ZIndex: w.ZIndex, Color: knobColor}

	return []orderedRect{{track, 10}, {fill, 11}, {knob, 12}}
}

// scrollbarQuads builds the track/thumb pair for a scrollable widget
// when content exceeds viewport by more than 1 unit, at a fixed
// always-on-top z-index (spec.md §4.8).
func scrollbarQuads(w *Widget, rect geom.Rect, area *ScrollArea) (track, thumb RectItem, show bool) {
	if w.ScrollContent <= w.ScrollViewport+1 {
		return RectItem{}, RectItem{}, false
	}
	trackRect := geom.Rect{X: rect.X + rect.W - 8, Y: rect.Y, W: 8, H: rect.H}
	ratio := w.ScrollViewport / w.ScrollContent
	thumbH := maxf(rect.H*ratio, 12)
	maxOffset := w.ScrollContent - w.ScrollViewport
	frac := float32(0)
	if maxOffset > 0 {
		frac = clamp01(area.Offset / maxOffset)
	}
	thumbY := trackRect.Y + frac*(trackRect.H-thumbH)
	thumbRect := geom.Rect{X: trackRect.X, Y: thumbY, W: trackRect.W, H: thumbH}

	track = RectItem{ID: w.ID + ":scroll_track", Box: trackRect, ZIndex: ScrollbarZOffset, Color: w.Style.BorderColor}
	thumb = RectItem{ID: w.ID + ":scroll_thumb", Box: thumbRect, ZIndex: ScrollbarZOffset, Color: w.Style.TextColor}
	return track, thumb, true
}

// shapeText walks w.Text one codepoint at a time, advancing a pen from
// (rect.X+padding, rect.Y+padding+ascent), falling back to '?' for
// glyphs outside the atlas, and clipping each glyph quad to clip when
// hasClip is set (spec.md §4.8).
func shapeText(w *Widget, rect, clip geom.Rect, hasClip bool, atlas *font.Atlas) []orderedGlyph {
	var out []orderedGlyph
	penX := rect.X + w.Style.Padding
	baseline := rect.Y + w.Style.Padding + atlas.Ascent

	for i, text := 0, w.Text; len(text) > 0; i++ {
		r, size := utf8.DecodeRuneInString(text)
		text = text[size:]

		g := atlas.Glyph(r)
		quadMin := geom.Vec2{X: penX + g.BearingX, Y: baseline - g.Height - g.BearingY}
		quadMax := geom.Vec2{X: quadMin.X + g.Width, Y: quadMin.Y + g.Height}
		uv0, uv1 := geom.Vec2{X: g.U0, Y: g.V0}, geom.Vec2{X: g.U1, Y: g.V1}

		if hasClip {
			var ok bool
			quadMin, quadMax, uv0, uv1, ok = clipGlyph(quadMin, quadMax, uv0, uv1, clip)
			if !ok {
				penX += g.Advance
				continue
			}
		}

		out = append(out, orderedGlyph{
			GlyphQuad{Min: quadMin, Max: quadMax, UV0: uv0, UV1: uv1, Color: w.Style.TextColor, ZIndex: w.ZIndex},
			100 + i,
		})

		penX += g.Advance
	}
	return out
}

// clipGlyph intersects a glyph's screen rect with clip, adjusting UVs
// proportionally so a partially-clipped glyph shows only the visible
// strip (spec.md §4.8). ok is false when nothing remains visible.
func clipGlyph(min, max, uv0, uv1 geom.Vec2, clip geom.Rect) (geom.Vec2, geom.Vec2, geom.Vec2, geom.Vec2, bool) {
	r := geom.Rect{X: min.X, Y: min.Y, W: max.X - min.X, H: max.Y - min.Y}
	inter, ok := r.Intersect(clip)
	if !ok || r.W <= 0 || r.H <= 0 {
		return min, max, uv0, uv1, false
	}

	u0 := uv0.X + (inter.X-r.X)/r.W*(uv1.X-uv0.X)
	u1 := uv0.X + (inter.X+inter.W-r.X)/r.W*(uv1.X-uv0.X)
	v0 := uv0.Y + (inter.Y-r.Y)/r.H*(uv1.Y-uv0.Y)
	v1 := uv0.Y + (inter.Y+inter.H-r.Y)/r.H*(uv1.Y-uv0.Y)

	return geom.Vec2{X: inter.X, Y: inter.Y}, geom.Vec2{X: inter.X + inter.W, Y: inter.Y + inter.H},
		geom.Vec2{X: u0, Y: v0}, geom.Vec2{X: u1, Y: v1}, true
}

func clamp01(v float32) float32 { return clampf(v, 0, 1) }

func clampf(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxf(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}
