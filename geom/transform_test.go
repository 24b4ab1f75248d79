package geom

import "testing"

const eps = 1e-4

func almostEqual(a, b float32) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < eps
}

// S5 — Coordinate round-trip.
func TestCoordinateTransformerRoundTrip(t *testing.T) {
	ct := NewCoordinateTransformer(2.0, 1.5, 300, 200)

	world := Vec2{X: 10, Y: 20}
	logical := ct.WorldToLogical(world)
	if !almostEqual(logical.X, 15) || !almostEqual(logical.Y, 30) {
		t.Fatalf("WorldToLogical = %+v, want (15,30)", logical)
	}

	screen := ct.LogicalToScreen(logical)
	if !almostEqual(screen.X, 30) || !almostEqual(screen.Y, 60) {
		t.Fatalf("LogicalToScreen = %+v, want (30,60)", screen)
	}

	back := ct.ScreenToWorld(screen)
	if !almostEqual(back.X, world.X) || !almostEqual(back.Y, world.Y) {
		t.Fatalf("ScreenToWorld(WorldToScreen(w)) = %+v, want %+v", back, world)
	}
}

// S6 — Layout hit test.
func TestCoordinateTransformerDeviceSizeHitTest(t *testing.T) {
	ct := NewCoordinateTransformer(2.0, 1.0, 640, 480)

	origin := Vec2{X: 5, Y: 5}
	w, h := ct.DeviceSize(10, 10)
	if !almostEqual(w, 20) || !almostEqual(h, 20) {
		t.Fatalf("DeviceSize = (%v,%v), want (20,20)", w, h)
	}

	box := Rect{X: origin.X, Y: origin.Y, W: w, H: h}

	if !box.Contains(7, 7) {
		t.Fatalf("expected (7,7) inside device box %+v", box)
	}
	if box.Contains(40, 3) {
		t.Fatalf("expected (40,3) outside device box %+v", box)
	}
}

func TestRectIntersect(t *testing.T) {
	a := Rect{X: 0, Y: 0, W: 10, H: 10}
	b := Rect{X: 5, Y: 5, W: 10, H: 10}
	got, ok := a.Intersect(b)
	if !ok {
		t.Fatalf("expected intersection")
	}
	want := Rect{X: 5, Y: 5, W: 5, H: 5}
	if got != want {
		t.Fatalf("Intersect = %+v, want %+v", got, want)
	}

	c := Rect{X: 20, Y: 20, W: 5, H: 5}
	if _, ok := a.Intersect(c); ok {
		t.Fatalf("expected no intersection")
	}
}
