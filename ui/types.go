// Package ui translates a declarative layout tree into a flat Widget
// array, then into a DisplayList of rectangles and glyph quads ready for
// GPU instancing (spec.md §4.8 "UI Layout -> Draw List"). Grounded on the
// teacher's `engine/ui` panel/widget tree shape (type tag + rect +
// style fields on one struct rather than a class hierarchy) and on
// `original_source/app/scroll.c` for scroll-area aggregation semantics.
package ui

import "github.com/kiln-engine/kiln/geom"

// Kind identifies a Widget's rendering behavior.
type Kind int

const (
	KindPanel Kind = iota
	KindLabel
	KindButton
	KindHSlider
	KindRect
	KindSpacer
	KindCheckbox
	KindProgress
)

// UIZOrderScale maps a widget's integer z-index to a floating clip-space
// depth offset (spec.md §4.8 "scaled by a fixed UI_Z_ORDER_SCALE
// constant").
const UIZOrderScale = 1.0 / 1_000_000.0

// ScrollbarZOffset keeps a scroll track/thumb on top of same-parent
// content regardless of the parent's own z-index (spec.md §4.8).
const ScrollbarZOffset = 1_000_000

// Style carries the subset of padding/border/color fields a layout node
// applies to every widget it materialises, matching the teacher's
// cascading "zeroPad"-style named style blocks.
type Style struct {
	BasePadding    float32
	Padding        float32
	BorderThickness float32
	BorderColor    geom.Color
	Color          geom.Color
	TextColor      geom.Color
}

// ApplyPaddingScale recomputes Padding from BasePadding rather than
// compounding the existing Padding, so repeated calls with the same
// scale are idempotent (spec.md §8 S4).
func (s *Style) ApplyPaddingScale(scale float32) {
	s.Padding = s.BasePadding * scale
}

// Widget is a materialised leaf UI element (spec.md §3 "Widget").
type Widget struct {
	ID   string
	Kind Kind
	Rect geom.Rect

	// FloatingRect overrides Rect for absolute-positioned widgets; zero
	// value means "use Rect".
	FloatingRect geom.Rect

	Style Style
	Text  string

	Min, Max, Value float32

	ZIndex int

	ScrollArea   string
	ScrollStatic bool

	ScrollViewport float32
	ScrollContent  float32

	ClipRect    geom.Rect
	HasClipRect bool
}

// effectiveRect returns FloatingRect when the widget carries one,
// otherwise Rect.
func (w *Widget) effectiveRect() geom.Rect {
	if w.FloatingRect.W > 0 || w.FloatingRect.H > 0 {
		return w.FloatingRect
	}
	return w.Rect
}

// ScrollArea aggregates the bounding box of every member widget and
// holds the area's current scroll offset (grounded on
// original_source/app/scroll.c: areas are keyed by name, bounds are the
// running union of member rects, and `scroll_static` members are always
// rendered at offset 0).
type ScrollArea struct {
	Name       string
	Bounds     geom.Rect
	Offset     float32
	MemberCount int
}

// ScrollWheelConstant is the original's `yoff*24.0f` scroll-speed
// constant (original_source/app/scroll.c).
const ScrollWheelConstant = 24.0

// ApplyWheel adjusts the area's offset by yoff*24.0, matching the
// original's scroll speed exactly.
func (a *ScrollArea) ApplyWheel(yoff float32) {
	a.Offset += yoff * ScrollWheelConstant
}

// Frame is one fully materialised UI snapshot: the flat widget array
// plus the resolved scroll areas, suitable for publishing into a
// framepacket.Pipeline.
type Frame struct {
	Widgets      []Widget
	ScrollAreas  map[string]*ScrollArea
	Transformer  geom.CoordinateTransformer
}
