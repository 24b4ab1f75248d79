package ui

import (
	"testing"

	"github.com/kiln-engine/kiln/geom"
)

func approxEqual(a, b float32) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-4
}

// S1 — Row layout.
func TestRowLayoutPositionsChildrenLeftToRight(t *testing.T) {
	root := &Node{
		Kind:    LayoutRow,
		Spacing: 5,
		Children: []*Node{
			{WidgetKind: KindButton, ID: "btn", Width: 50, Height: 20},
			{WidgetKind: KindLabel, ID: "lbl", Width: 30, Height: 10},
		},
	}
	widgets, _ := Materialize(root, geom.Vec2{})
	if len(widgets) != 2 {
		t.Fatalf("expected 2 widgets, got %d", len(widgets))
	}
	if widgets[0].Rect.X != 0 || widgets[0].Rect.Y != 0 {
		t.Errorf("widget 0 at (%v,%v), want (0,0)", widgets[0].Rect.X, widgets[0].Rect.Y)
	}
	if widgets[1].Rect.X != 55 || widgets[1].Rect.Y != 0 {
		t.Errorf("widget 1 at (%v,%v), want (55,0)", widgets[1].Rect.X, widgets[1].Rect.Y)
	}
}

// S2 — Column with scroll area.
func TestColumnLayoutWithScrollArea(t *testing.T) {
	root := &Node{
		Kind:    LayoutColumn,
		Spacing: 7,
		Children: []*Node{
			{WidgetKind: KindButton, ID: "a", Width: 40, Height: 18, ScrollArea: "area1"},
			{WidgetKind: KindButton, ID: "b", Width: 40, Height: 12, ScrollArea: "area1"},
		},
	}
	widgets, areas := Materialize(root, geom.Vec2{})

	if widgets[0].Rect.X != 0 || widgets[0].Rect.Y != 0 {
		t.Errorf("widget 0 at (%v,%v), want (0,0)", widgets[0].Rect.X, widgets[0].Rect.Y)
	}
	if widgets[1].Rect.X != 0 || widgets[1].Rect.Y != 25 {
		t.Errorf("widget 1 at (%v,%v), want (0,25)", widgets[1].Rect.X, widgets[1].Rect.Y)
	}

	area, ok := areas["area1"]
	if !ok || area == nil {
		t.Fatalf("expected non-nil scroll area context")
	}
	if area.Offset != 0 {
		t.Errorf("initial scroll offset = %v, want 0", area.Offset)
	}
}

// S3 — Table layout.
func TestTableLayoutPositionsRowMajor(t *testing.T) {
	root := &Node{
		Kind:    LayoutTable,
		Columns: 2,
		Spacing: 3,
		Children: []*Node{
			{WidgetKind: KindPanel, ID: "p0", Width: 10, Height: 10},
			{WidgetKind: KindPanel, ID: "p1", Width: 12, Height: 8},
			{WidgetKind: KindPanel, ID: "p2", Width: 6, Height: 14},
		},
	}
	widgets, _ := Materialize(root, geom.Vec2{})

	want := []geom.Vec2{{X: 0, Y: 0}, {X: 13, Y: 0}, {X: 0, Y: 13}}
	for i, w := range want {
		if widgets[i].Rect.X != w.X || widgets[i].Rect.Y != w.Y {
			t.Errorf("widget %d at (%v,%v), want (%v,%v)", i, widgets[i].Rect.X, widgets[i].Rect.Y, w.X, w.Y)
		}
	}
}

// S4 — Padding idempotence.
func TestPaddingScaleIsIdempotentRelativeToBase(t *testing.T) {
	s := Style{BasePadding: 10, Padding: 10}

	s.ApplyPaddingScale(2)
	if !approxEqual(s.Padding, 20) {
		t.Fatalf("padding after scale 2 = %v, want 20", s.Padding)
	}

	s.ApplyPaddingScale(2)
	if !approxEqual(s.Padding, 20) {
		t.Fatalf("padding after re-applying scale 2 = %v, want 20 (idempotent)", s.Padding)
	}

	s.ApplyPaddingScale(0.5)
	if !approxEqual(s.Padding, 5) {
		t.Fatalf("padding after scale 0.5 = %v, want 5", s.Padding)
	}
}

func TestScrollAreaWheelAppliesOriginalConstant(t *testing.T) {
	a := &ScrollArea{Name: "area1"}
	a.ApplyWheel(1)
	if !approxEqual(a.Offset, 24.0) {
		t.Fatalf("offset after yoff=1 = %v, want 24.0", a.Offset)
	}
	a.ApplyWheel(-0.5)
	if !approxEqual(a.Offset, 12.0) {
		t.Fatalf("offset after yoff=-0.5 = %v, want 12.0", a.Offset)
	}
}

func TestScrollStaticWidgetIgnoresOffsetInDrawList(t *testing.T) {
	frame := &Frame{
		Widgets: []Widget{
			{ID: "moving", Rect: geom.Rect{X: 0, Y: 0, W: 10, H: 10}, ScrollArea: "a"},
			{ID: "static", Rect: geom.Rect{X: 0, Y: 0, W: 10, H: 10}, ScrollArea: "a", ScrollStatic: true},
		},
		ScrollAreas: map[string]*ScrollArea{"a": {Name: "a", Offset: 50}},
	}
	dl := BuildDisplayList(frame, nil)

	var moving, static RectItem
	for _, r := range dl.Rects {
		switch r.ID {
		case "moving":
			moving = r
		case "static":
			static = r
		}
	}
	if moving.Box.Y != -50 {
		t.Errorf("moving widget Y = %v, want -50", moving.Box.Y)
	}
	if static.Box.Y != 0 {
		t.Errorf("scroll_static widget Y = %v, want 0 (ignores offset)", static.Box.Y)
	}
}

func TestDisplayListSortedByZIndexStable(t *testing.T) {
	frame := &Frame{
		Widgets: []Widget{
			{ID: "back", Rect: geom.Rect{W: 1, H: 1}, ZIndex: 0},
			{ID: "front", Rect: geom.Rect{W: 1, H: 1}, ZIndex: 5},
			{ID: "middle", Rect: geom.Rect{W: 1, H: 1}, ZIndex: 2},
		},
	}
	dl := BuildDisplayList(frame, nil)
	want := []string{"back", "middle", "front"}
	for i, id := range want {
		if dl.Rects[i].ID != id {
			t.Fatalf("order = %v, want %v", idsOf(dl.Rects), want)
		}
	}
}

func idsOf(rects []RectItem) []string {
	out := make([]string, len(rects))
	for i, r := range rects {
		out[i] = r.ID
	}
	return out
}
