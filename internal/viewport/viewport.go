// Package viewport holds the shared pan/zoom transform. The canvas surface
// is its single writer; the cursor broadcaster and overlays read it so
// screen/world conversions stay consistent everywhere.
package viewport

import "sync"

// Zoom limits and step, matching the zoom controls.
const (
	MinZoom  = 0.3
	MaxZoom  = 3.0
	ZoomStep = 1.2
)

// Point is a 2D coordinate.
type Point struct {
	X float64
	Y float64
}

// Viewport is the pan/zoom state in screen units. Zoom is always > 0.
type Viewport struct {
	mu   sync.RWMutex
	zoom float64
	pos  Point
}

// New centers the viewport for the given surface size at zoom 1.
func New(width, height float64) *Viewport {
	return &Viewport{zoom: 1.0, pos: Point{X: width / 2, Y: height / 2}}
}

// Zoom returns the current zoom factor.
func (v *Viewport) Zoom() float64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.zoom
}

// Position returns the current pan offset in screen units.
func (v *Viewport) Position() Point {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.pos
}

// Pan shifts the viewport by a screen-space delta.
func (v *Viewport) Pan(dx, dy float64) {
	v.mu.Lock()
	v.pos.X += dx
	v.pos.Y += dy
	v.mu.Unlock()
}

// SetPosition replaces the pan offset.
func (v *Viewport) SetPosition(p Point) {
	v.mu.Lock()
	v.pos = p
	v.mu.Unlock()
}

// SetZoom replaces the zoom factor, clamped to [MinZoom, MaxZoom].
func (v *Viewport) SetZoom(z float64) {
	if z < MinZoom {
		z = MinZoom
	}
	if z > MaxZoom {
		z = MaxZoom
	}
	v.mu.Lock()
	v.zoom = z
	v.mu.Unlock()
}

// ZoomIn steps the zoom up, clamped to MaxZoom.
func (v *Viewport) ZoomIn() {
	v.mu.Lock()
	v.zoom *= ZoomStep
	if v.zoom > MaxZoom {
		v.zoom = MaxZoom
	}
	v.mu.Unlock()
}

// ZoomOut steps the zoom down, clamped to MinZoom.
func (v *Viewport) ZoomOut() {
	v.mu.Lock()
	v.zoom /= ZoomStep
	if v.zoom < MinZoom {
		v.zoom = MinZoom
	}
	v.mu.Unlock()
}

// ScreenToWorld converts a screen point to world coordinates.
func (v *Viewport) ScreenToWorld(sx, sy float64) (float64, float64) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return (sx - v.pos.X) / v.zoom, (sy - v.pos.Y) / v.zoom
}

// WorldToScreen converts a world point to screen coordinates.
func (v *Viewport) WorldToScreen(wx, wy float64) (float64, float64) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return wx*v.zoom + v.pos.X, wy*v.zoom + v.pos.Y
}

// VisibleWorldBounds returns the world-space rectangle covered by a surface
// of the given screen size, used for grid rendering.
func (v *Viewport) VisibleWorldBounds(width, height float64) (minX, minY, maxX, maxY float64) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	minX = -v.pos.X / v.zoom
	maxX = (-v.pos.X + width) / v.zoom
	minY = -v.pos.Y / v.zoom
	maxY = (-v.pos.Y + height) / v.zoom
	return
}
