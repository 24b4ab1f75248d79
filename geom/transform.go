package geom

// CoordinateTransformer carries the DPI scale, logical-unit scale, and
// viewport size needed to round-trip between world, logical, and screen
// space, and to produce the projection matrix the UI layer feeds into
// push constants (spec.md §3, §4.8, scenario S5).
//
//   logical = world * LogicalScale
//   screen  = logical * DPIScale
type CoordinateTransformer struct {
	DPIScale     float32
	LogicalScale float32
	ViewportW    float32
	ViewportH    float32
}

func NewCoordinateTransformer(dpiScale, logicalScale, viewportW, viewportH float32) *CoordinateTransformer {
	return &CoordinateTransformer{
		DPIScale:     dpiScale,
		LogicalScale: logicalScale,
		ViewportW:    viewportW,
		ViewportH:    viewportH,
	}
}

// WorldToLogical scales a world-space point into logical UI units.
func (c *CoordinateTransformer) WorldToLogical(w Vec2) Vec2 {
	return Vec2{X: w.X * c.LogicalScale, Y: w.Y * c.LogicalScale}
}

// LogicalToScreen scales a logical-space point into device pixels.
func (c *CoordinateTransformer) LogicalToScreen(l Vec2) Vec2 {
	return Vec2{X: l.X * c.DPIScale, Y: l.Y * c.DPIScale}
}

// WorldToScreen composes WorldToLogical and LogicalToScreen.
func (c *CoordinateTransformer) WorldToScreen(w Vec2) Vec2 {
	return c.LogicalToScreen(c.WorldToLogical(w))
}

// ScreenToLogical is the inverse of LogicalToScreen.
func (c *CoordinateTransformer) ScreenToLogical(s Vec2) Vec2 {
	if c.DPIScale == 0 {
		return Vec2{}
	}
	return Vec2{X: s.X / c.DPIScale, Y: s.Y / c.DPIScale}
}

// LogicalToWorld is the inverse of WorldToLogical.
func (c *CoordinateTransformer) LogicalToWorld(l Vec2) Vec2 {
	if c.LogicalScale == 0 {
		return Vec2{}
	}
	return Vec2{X: l.X / c.LogicalScale, Y: l.Y / c.LogicalScale}
}

// ScreenToWorld is the full inverse of WorldToScreen.
func (c *CoordinateTransformer) ScreenToWorld(s Vec2) Vec2 {
	return c.LogicalToWorld(c.ScreenToLogical(s))
}

// DeviceSize scales a logical-space size (e.g. a widget's box) into
// device pixels, applying only the DPI scale (scenario S6: a layout hit
// test operates against already-logical boxes scaled to device pixels).
func (c *CoordinateTransformer) DeviceSize(logicalW, logicalH float32) (float32, float32) {
	return logicalW * c.DPIScale, logicalH * c.DPIScale
}

// Projection returns the orthographic projection matrix for the current
// viewport, used as the view_proj push constant (spec.md §4.6 pipeline
// layout conventions).
func (c *CoordinateTransformer) Projection() Mat4 {
	return NewMat4Orthographic(0, c.ViewportW, c.ViewportH, 0, -1.0, 1.0)
}
