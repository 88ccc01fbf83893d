package viewport

import (
	"math"
	"testing"
)

func TestScreenWorldRoundTrip(t *testing.T) {
	v := New(800, 600)
	v.Pan(37, -12)
	v.ZoomIn()

	wx, wy := v.ScreenToWorld(123, 456)
	sx, sy := v.WorldToScreen(wx, wy)
	if math.Abs(sx-123) > 1e-9 || math.Abs(sy-456) > 1e-9 {
		t.Fatalf("round trip drifted: got (%v, %v)", sx, sy)
	}
}

func TestNewCentersAtUnitZoom(t *testing.T) {
	v := New(800, 600)
	if v.Zoom() != 1.0 {
		t.Fatalf("zoom should start at 1, got %v", v.Zoom())
	}
	if p := v.Position(); p.X != 400 || p.Y != 300 {
		t.Fatalf("position should start at the surface center, got %+v", p)
	}
	// Screen center maps to the world origin.
	wx, wy := v.ScreenToWorld(400, 300)
	if wx != 0 || wy != 0 {
		t.Fatalf("screen center should be world origin, got (%v, %v)", wx, wy)
	}
}

func TestZoomClamps(t *testing.T) {
	v := New(800, 600)
	for i := 0; i < 50; i++ {
		v.ZoomIn()
	}
	if v.Zoom() != MaxZoom {
		t.Fatalf("zoom must clamp at %v, got %v", MaxZoom, v.Zoom())
	}
	for i := 0; i < 50; i++ {
		v.ZoomOut()
	}
	if v.Zoom() != MinZoom {
		t.Fatalf("zoom must clamp at %v, got %v", MinZoom, v.Zoom())
	}
	if v.Zoom() <= 0 {
		t.Fatal("zoom must stay positive")
	}
}

func TestSetZoomExactAndClamped(t *testing.T) {
	v := New(800, 600)
	for i := 0; i < 50; i++ {
		v.ZoomOut()
	}
	// Stepping back by the multiplicative factor cannot land on 1 exactly;
	// SetZoom must.
	v.SetZoom(1)
	if v.Zoom() != 1.0 {
		t.Fatalf("SetZoom(1) must be exact, got %v", v.Zoom())
	}
	v.SetZoom(0.01)
	if v.Zoom() != MinZoom {
		t.Fatalf("SetZoom below range must clamp to %v, got %v", MinZoom, v.Zoom())
	}
	v.SetZoom(100)
	if v.Zoom() != MaxZoom {
		t.Fatalf("SetZoom above range must clamp to %v, got %v", MaxZoom, v.Zoom())
	}
}

func TestVisibleWorldBounds(t *testing.T) {
	v := New(800, 600) // pos (400, 300), zoom 1
	minX, minY, maxX, maxY := v.VisibleWorldBounds(800, 600)
	if minX != -400 || maxX != 400 || minY != -300 || maxY != 300 {
		t.Fatalf("unexpected bounds (%v %v %v %v)", minX, minY, maxX, maxY)
	}
}
