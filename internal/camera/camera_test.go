package camera

import (
	"math"
	"testing"
	"time"

	"github.com/vovakirdan/tilegrid/internal/core"
)

type countingRequester struct {
	n int
}

func (r *countingRequester) Request() { r.n++ }

func TestZoomClampedAtAssignment(t *testing.T) {
	req := &countingRequester{}
	c := New(Config{Zoom: 290, MinZoom: 100, MaxZoom: 300}, req)

	c.ZoomBy(500)
	if c.Zoom() != 300 {
		t.Errorf("Zoom() = %v, expected 300", c.Zoom())
	}

	c.ZoomBy(-1000)
	if c.Zoom() != 100 {
		t.Errorf("Zoom() = %v, expected 100", c.Zoom())
	}

	c.SetZoom(math.NaN())
	if c.Zoom() != 100 {
		t.Errorf("Zoom() after NaN = %v, expected 100", c.Zoom())
	}
	if req.n != 2 {
		t.Errorf("requests = %d, expected 2", req.n)
	}
}

func TestInitialZoomClamped(t *testing.T) {
	c := New(Config{Zoom: 1000, MinZoom: 10, MaxZoom: 300}, nil)
	if c.Zoom() != 300 {
		t.Errorf("Zoom() = %v, expected 300", c.Zoom())
	}
}

func TestSettersRequestRedraw(t *testing.T) {
	req := &countingRequester{}
	c := New(Config{Zoom: 100, MinZoom: 10, MaxZoom: 300}, req)

	c.SetPosition(1, 2)
	c.Move(0.5, 0.5)
	c.GoTo(core.T(3, 4))
	c.SetZoom(120)
	c.SetPanVelocity(0, time.Now())

	if req.n != 5 {
		t.Errorf("requests = %d, expected 5", req.n)
	}
	if c.X() != 3.5 || c.Y() != 4.5 {
		t.Errorf("position = (%v, %v), expected (3.5, 4.5)", c.X(), c.Y())
	}
}

func TestWorldScreenRoundTrip(t *testing.T) {
	c := New(Config{X: 0.5, Y: 0.5, Zoom: 40, MinZoom: 10, MaxZoom: 300}, nil)
	const vw, vh = 160, 90

	px, py := c.WorldToScreen(0.5, 0.5, vw, vh)
	if px != 80 || py != 45 {
		t.Errorf("WorldToScreen(camera) = (%v, %v), expected viewport centre (80, 45)", px, py)
	}

	px, py = c.WorldToScreen(2, -1, vw, vh)
	tx, ty := c.ScreenToWorld(px, py, vw, vh)
	if math.Abs(tx-2) > 1e-9 || math.Abs(ty+1) > 1e-9 {
		t.Errorf("ScreenToWorld(WorldToScreen(2, -1)) = (%v, %v)", tx, ty)
	}

	if tile := c.TileAt(0, 0, vw, vh); tile != core.T(-2, -1) {
		t.Errorf("TileAt(0, 0) = %v, expected -2,-1", tile)
	}
}

func TestVisibleRange(t *testing.T) {
	c := New(Config{X: 0.5, Y: 0.5, Zoom: 50, MinZoom: 10, MaxZoom: 300}, nil)

	left, top, right, bottom := c.VisibleRange(200, 100)
	if left != -4 || right != 4 || top != -3 || bottom != 3 {
		t.Errorf("VisibleRange() = (%d, %d, %d, %d), expected (-4, -3, 4, 3)", left, top, right, bottom)
	}
}

func TestSpeeding(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := New(Config{Zoom: 100, MinZoom: 10, MaxZoom: 300}, nil)

	c.SetPanVelocity(0.0005, now)
	if c.Speeding(now) {
		t.Error("Speeding() = true below the speed limit")
	}

	c.SetPanVelocity(0.01, now)
	if !c.Speeding(now.Add(499 * time.Millisecond)) {
		t.Error("Speeding() = false within the hold period")
	}
	if c.Speeding(now.Add(500 * time.Millisecond)) {
		t.Error("Speeding() = true after the hold period")
	}
}
