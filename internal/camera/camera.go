// Package camera holds the virtual camera over the tile grid and maps
// between world (tile) space and screen (pixel) space.
package camera

import (
	"math"
	"time"

	"github.com/vovakirdan/tilegrid/internal/core"
)

// Requester is notified whenever the camera changes.
// *scheduler.Scheduler implements it.
type Requester interface {
	Request()
}

// Camera defaults. Pan speed above SpeedLimit tiles per frame suppresses
// clicks for SpeedHold.
const (
	DefaultMaxZoom    = 300
	DefaultSpeedLimit = 0.001
	DefaultSpeedHold  = 500 * time.Millisecond
)

// Config holds the initial camera state.
type Config struct {
	X, Y       float64
	Zoom       float64
	MinZoom    float64
	MaxZoom    float64
	SpeedLimit float64
	SpeedHold  time.Duration
}

// Camera is a position and zoom over the grid. All mutation goes through
// its setters, each of which requests a redraw.
type Camera struct {
	x, y    float64
	zoom    float64
	minZoom float64
	maxZoom float64

	panVelocity   float64
	speedLimit    float64
	speedHold     time.Duration
	speedingUntil time.Time

	requester Requester
}

// New creates a camera. A nil requester is allowed.
func New(cfg Config, requester Requester) *Camera {
	if cfg.MaxZoom <= 0 {
		cfg.MaxZoom = DefaultMaxZoom
	}
	if cfg.MinZoom <= 0 || cfg.MinZoom > cfg.MaxZoom {
		cfg.MinZoom = math.Min(1, cfg.MaxZoom)
	}
	if cfg.SpeedLimit <= 0 {
		cfg.SpeedLimit = DefaultSpeedLimit
	}
	if cfg.SpeedHold <= 0 {
		cfg.SpeedHold = DefaultSpeedHold
	}
	if cfg.Zoom == 0 {
		cfg.Zoom = cfg.MinZoom
	}

	return &Camera{
		x:          cfg.X,
		y:          cfg.Y,
		zoom:       core.ClampF(cfg.Zoom, cfg.MinZoom, cfg.MaxZoom),
		minZoom:    cfg.MinZoom,
		maxZoom:    cfg.MaxZoom,
		speedLimit: cfg.SpeedLimit,
		speedHold:  cfg.SpeedHold,
		requester:  requester,
	}
}

// X returns the horizontal position in tiles.
func (c *Camera) X() float64 { return c.x }

// Y returns the vertical position in tiles.
func (c *Camera) Y() float64 { return c.y }

// Zoom returns the size of one tile in pixels.
func (c *Camera) Zoom() float64 { return c.zoom }

// MinZoom returns the lower zoom bound.
func (c *Camera) MinZoom() float64 { return c.minZoom }

// MaxZoom returns the upper zoom bound.
func (c *Camera) MaxZoom() float64 { return c.maxZoom }

// PanVelocity returns the last pan speed in tiles per frame.
func (c *Camera) PanVelocity() float64 { return c.panVelocity }

// Center returns the tile under the camera centre.
func (c *Camera) Center() core.Tile {
	return core.T(int(math.Floor(c.x)), int(math.Floor(c.y)))
}

// SetPosition moves the camera to (x, y).
func (c *Camera) SetPosition(x, y float64) {
	c.x, c.y = x, y
	c.request()
}

// Move shifts the camera by (dx, dy) tiles.
func (c *Camera) Move(dx, dy float64) {
	c.x += dx
	c.y += dy
	c.request()
}

// GoTo centres the camera on tile t.
func (c *Camera) GoTo(t core.Tile) {
	c.SetPosition(float64(t.X)+0.5, float64(t.Y)+0.5)
}

// SetZoom sets the zoom, clamped to the zoom bounds.
func (c *Camera) SetZoom(z float64) {
	if math.IsNaN(z) {
		return
	}
	c.zoom = core.ClampF(z, c.minZoom, c.maxZoom)
	c.request()
}

// ZoomBy changes the zoom by delta, clamped to the zoom bounds.
func (c *Camera) ZoomBy(delta float64) {
	c.SetZoom(c.zoom + delta)
}

// SetZoomBounds replaces the zoom bounds and re-clamps the zoom.
func (c *Camera) SetZoomBounds(min, max float64) {
	if min <= 0 || max < min {
		return
	}
	c.minZoom, c.maxZoom = min, max
	c.SetZoom(c.zoom)
}

// SetPanVelocity records the pan speed in tiles per frame. Speeds above
// the speed limit mark the camera as speeding for the hold period.
func (c *Camera) SetPanVelocity(v float64, now time.Time) {
	c.panVelocity = v
	if v > c.speedLimit {
		c.speedingUntil = now.Add(c.speedHold)
	}
	c.request()
}

// Speeding reports whether the camera moved too fast recently for a
// pointer release to count as a click.
func (c *Camera) Speeding(now time.Time) bool {
	return now.Before(c.speedingUntil)
}

// WorldToScreen maps world coordinates to pixels in a vw×vh viewport.
func (c *Camera) WorldToScreen(tx, ty float64, vw, vh int) (px, py float64) {
	px = (tx-c.x)*c.zoom + float64(vw)/2
	py = (ty-c.y)*c.zoom + float64(vh)/2
	return px, py
}

// ScreenToWorld maps viewport pixels to world coordinates.
func (c *Camera) ScreenToWorld(px, py float64, vw, vh int) (tx, ty float64) {
	tx = (px-float64(vw)/2)/c.zoom + c.x
	ty = (py-float64(vh)/2)/c.zoom + c.y
	return tx, ty
}

// TileAt returns the tile under viewport pixel (px, py).
func (c *Camera) TileAt(px, py float64, vw, vh int) core.Tile {
	tx, ty := c.ScreenToWorld(px, py, vw, vh)
	return core.T(int(math.Floor(tx)), int(math.Floor(ty)))
}

// VisibleRange returns the inclusive tile range to draw for a vw×vh
// viewport, with a two-tile margin on each side.
func (c *Camera) VisibleRange(vw, vh int) (left, top, right, bottom int) {
	hw := float64(vw) / (2 * c.zoom)
	hh := float64(vh) / (2 * c.zoom)
	left = int(math.Floor(c.x-hw)) - 2
	right = int(math.Floor(c.x+hw)) + 2
	top = int(math.Floor(c.y-hh)) - 2
	bottom = int(math.Floor(c.y+hh)) + 2
	return left, top, right, bottom
}

// Invalidate requests a redraw without changing the camera.
func (c *Camera) Invalidate() {
	c.request()
}

func (c *Camera) request() {
	if c.requester != nil {
		c.requester.Request()
	}
}
