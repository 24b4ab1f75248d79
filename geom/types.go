// Package geom provides the POD math primitives shared by every other
// package: Vec2/Vec3/Vec4, a column-major Mat4, a logical-space Rect, and
// the CoordinateTransformer that maps between world, logical, and screen
// space. Adapted from the teacher's engine/math package, narrowed to what
// a 2D UI + node-graph renderer needs (no tangents/quaternions beyond the
// camera transform).
package geom

// KFloatEpsilon is the default tolerance used by Compare-style helpers,
// matching the teacher's K_FLOAT_EPSILON.
const KFloatEpsilon float32 = 0.000001

// Vec2 is a 2D vector.
type Vec2 struct {
	X, Y float32
}

// Vec3 is a 3D vector.
type Vec3 struct {
	X, Y, Z float32
}

// Vec4 is a 4D vector, also used as an RGBA color.
type Vec4 struct {
	X, Y, Z, W float32
}

// Color is an RGBA color in [0,1]; an alias kept distinct from Vec4 so
// call sites read intent rather than raw components.
type Color = Vec4

// Mat4 is a column-major 4x4 matrix, 16 float32s, std140/std430-compatible.
type Mat4 struct {
	Data [16]float32
}

// Rect is a logical-space rectangle: x, y, w, h.
type Rect struct {
	X, Y, W, H float32
}

func (r Rect) Contains(x, y float32) bool {
	return x >= r.X && x <= r.X+r.W && y >= r.Y && y <= r.Y+r.H
}

// Intersect returns the intersection of r and other, and whether the
// intersection is non-empty.
func (r Rect) Intersect(other Rect) (Rect, bool) {
	x0 := max32(r.X, other.X)
	y0 := max32(r.Y, other.Y)
	x1 := min32(r.X+r.W, other.X+other.W)
	y1 := min32(r.Y+r.H, other.Y+other.H)
	if x1 <= x0 || y1 <= y0 {
		return Rect{}, false
	}
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}, true
}

// Union returns the smallest rect containing both r and other; an empty
// (zero-area) r is treated as the identity so callers can accumulate a
// bounding box starting from a zero Rect (ui.ScrollArea does this).
func (r Rect) Union(other Rect) Rect {
	if r.W == 0 && r.H == 0 {
		return other
	}
	x0 := min32(r.X, other.X)
	y0 := min32(r.Y, other.Y)
	x1 := max32(r.X+r.W, other.X+other.W)
	y1 := max32(r.Y+r.H, other.Y+other.H)
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func min32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}
