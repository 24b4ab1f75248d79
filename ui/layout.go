package ui

import "github.com/kiln-engine/kiln/geom"

// LayoutKind selects how a Node arranges its children (spec.md §3
// "Layout tree / UI tree").
type LayoutKind int

const (
	LayoutNone LayoutKind = iota
	LayoutRow
	LayoutColumn
	LayoutTable
	LayoutAbsolute
)

// Node is one level of the declarative layout tree. Leaves (no
// children) materialise directly into a Widget; interior nodes arrange
// their children's materialised rects according to Kind.
type Node struct {
	Kind    LayoutKind
	Spacing float32
	Columns int

	Style Style

	// Leaf fields: populated when Children is empty.
	WidgetKind Kind
	Text       string
	Min, Max, Value float32
	Width, Height   float32
	ID              string
	ZIndex          int
	ScrollArea      string
	ScrollStatic    bool

	// Absolute-layout-only placement, relative to the parent's origin.
	X, Y float32

	Children []*Node
}

// Materialize walks the tree rooted at n, starting at origin, and
// returns the flat Widget array plus the ScrollArea table built from
// every ScrollArea member encountered.
func Materialize(n *Node, origin geom.Vec2) ([]Widget, map[string]*ScrollArea) {
	areas := map[string]*ScrollArea{}
	var widgets []Widget
	materializeNode(n, origin, &widgets, areas)
	return widgets, areas
}

func materializeNode(n *Node, origin geom.Vec2, out *[]Widget, areas map[string]*ScrollArea) {
	if n == nil {
		return
	}
	if len(n.Children) == 0 {
		w := Widget{
			ID:           n.ID,
			Kind:         n.WidgetKind,
			Rect:         geom.Rect{X: origin.X, Y: origin.Y, W: n.Width, H: n.Height},
			Style:        n.Style,
			Text:         n.Text,
			Min:          n.Min,
			Max:          n.Max,
			Value:        n.Value,
			ZIndex:       n.ZIndex,
			ScrollArea:   n.ScrollArea,
			ScrollStatic: n.ScrollStatic,
		}
		*out = append(*out, w)
		if n.ScrollArea != "" {
			registerScrollMember(areas, n.ScrollArea, w.Rect)
		}
		return
	}

	switch n.Kind {
	case LayoutRow:
		x := origin.X
		for _, c := range n.Children {
			materializeNode(c, geom.Vec2{X: x, Y: origin.Y}, out, areas)
			x += childExtent(c, true) + n.Spacing
		}
	case LayoutColumn:
		y := origin.Y
		for _, c := range n.Children {
			materializeNode(c, geom.Vec2{X: origin.X, Y: y}, out, areas)
			y += childExtent(c, false) + n.Spacing
		}
	case LayoutTable:
		materializeTable(n, origin, out, areas)
	case LayoutAbsolute:
		for _, c := range n.Children {
			materializeNode(c, geom.Vec2{X: origin.X + c.X, Y: origin.Y + c.Y}, out, areas)
		}
	default: // LayoutNone: stack children at the same origin
		for _, c := range n.Children {
			materializeNode(c, origin, out, areas)
		}
	}
}

// childExtent returns a child's width (horizontal=true) or height used
// by row/column layout to advance the cursor. Only leaf children carry
// explicit Width/Height; interior nodes are measured by the bounding
// box of their own materialised widgets, matching the teacher's
// layout->measure->assign phase split (spec.md §3).
func childExtent(n *Node, horizontal bool) float32 {
	if len(n.Children) == 0 {
		if horizontal {
			return n.Width
		}
		return n.Height
	}
	tmp, _ := Materialize(n, geom.Vec2{})
	var maxX, maxY float32
	for _, w := range tmp {
		r := w.effectiveRect()
		if r.X+r.W > maxX {
			maxX = r.X + r.W
		}
		if r.Y+r.H > maxY {
			maxY = r.Y + r.H
		}
	}
	if horizontal {
		return maxX
	}
	return maxY
}

// materializeTable lays children out in row-major order across
// n.Columns columns. Column widths and row heights are each the max
// extent of cells sharing that column/row index (two-pass: measure all
// cells, then assign cumulative positions), matching spec.md §8 S3.
func materializeTable(n *Node, origin geom.Vec2, out *[]Widget, areas map[string]*ScrollArea) {
	cols := n.Columns
	if cols <= 0 {
		cols = 1
	}
	rows := (len(n.Children) + cols - 1) / cols

	colWidths := make([]float32, cols)
	rowHeights := make([]float32, rows)

	for i, c := range n.Children {
		col, row := i%cols, i/cols
		w := childExtent(c, true)
		h := childExtent(c, false)
		if w > colWidths[col] {
			colWidths[col] = w
		}
		if h > rowHeights[row] {
			rowHeights[row] = h
		}
	}

	colX := make([]float32, cols)
	var acc float32
	for c := 0; c < cols; c++ {
		colX[c] = acc
		acc += colWidths[c] + n.Spacing
	}
	rowY := make([]float32, rows)
	acc = 0
	for r := 0; r < rows; r++ {
		rowY[r] = acc
		acc += rowHeights[r] + n.Spacing
	}

	for i, c := range n.Children {
		col, row := i%cols, i/cols
		materializeNode(c, geom.Vec2{X: origin.X + colX[col], Y: origin.Y + rowY[row]}, out, areas)
	}
}

func registerScrollMember(areas map[string]*ScrollArea, name string, r geom.Rect) {
	a, ok := areas[name]
	if !ok {
		a = &ScrollArea{Name: name, Bounds: r}
		areas[name] = a
	} else {
		a.Bounds = a.Bounds.Union(r)
	}
	a.MemberCount++
}
