// Package input turns pointer, wheel, touch and key events into camera
// motion with inertia.
package input

import (
	"math"
	"time"

	"github.com/vovakirdan/tilegrid/internal/camera"
	"github.com/vovakirdan/tilegrid/internal/core"
	"github.com/vovakirdan/tilegrid/internal/momentum"
)

const (
	// DefaultFriction is the decay used for both pan and zoom inertia.
	DefaultFriction = 0.035

	// ResetSteps is the length of the zoom reset animation in frames.
	ResetSteps = 20

	// resetDivisor sets how much of the remaining distance each reset
	// frame covers.
	resetDivisor = 5
)

// CameraControl owns the pan and zoom momenta of a camera. Pan values are
// in screen pixels and are converted to tiles with the current zoom.
type CameraControl struct {
	cam  *camera.Camera
	pan  *momentum.Value[core.Vec]
	zoom *momentum.Value[float64]
	now  func() time.Time

	friction    float64
	initialZoom float64
	resetLeft   int

	focus    core.Vec
	focused  bool
	viewport [2]int
}

// NewCameraControl attaches momenta to cam. The current zoom becomes the
// reset target. A non-positive friction selects DefaultFriction.
func NewCameraControl(cam *camera.Camera, friction float64, now func() time.Time) *CameraControl {
	if friction <= 0 {
		friction = DefaultFriction
	}
	if now == nil {
		now = time.Now
	}
	c := &CameraControl{
		cam:         cam,
		now:         now,
		friction:    friction,
		initialZoom: cam.Zoom(),
	}
	c.pan = momentum.NewVector(friction, core.Vec{}, c.onPan)
	c.zoom = momentum.NewScalar(friction, cam.Zoom(), c.onZoom)
	return c
}

// Camera returns the controlled camera.
func (c *CameraControl) Camera() *camera.Camera {
	return c.cam
}

// Pan returns the pan momentum.
func (c *CameraControl) Pan() *momentum.Value[core.Vec] {
	return c.pan
}

// Zoom returns the zoom momentum.
func (c *CameraControl) Zoom() *momentum.Value[float64] {
	return c.zoom
}

// InitialZoom returns the zoom Reset animates back to.
func (c *CameraControl) InitialZoom() float64 {
	return c.initialZoom
}

// SetInitialZoom replaces the reset target.
func (c *CameraControl) SetInitialZoom(z float64) {
	c.initialZoom = z
}

// SetFocus anchors zooming at viewport pixel (px, py) of a w×h viewport.
func (c *CameraControl) SetFocus(px, py float64, w, h int) {
	c.focus = core.V(px, py)
	c.focused = true
	c.viewport = [2]int{w, h}
}

// ClearFocus makes zooming anchor at the viewport centre.
func (c *CameraControl) ClearFocus() {
	c.focused = false
}

// BeginPan starts a locked pan gesture.
func (c *CameraControl) BeginPan() {
	c.Interrupt()
	c.pan.Init(c.pan.Get())
}

// PanBy moves the camera by d screen pixels during a pan gesture.
func (c *CameraControl) PanBy(d core.Vec) {
	c.resetLeft = 0
	c.pan.Change(d)
}

// EndPan releases the pan gesture into inertia.
func (c *CameraControl) EndPan() {
	c.pan.Unlock()
}

// BeginZoom starts a locked zoom gesture.
func (c *CameraControl) BeginZoom() {
	c.Interrupt()
	c.zoom.Init(c.cam.Zoom())
}

// ZoomBy changes the zoom by d during a zoom gesture.
func (c *CameraControl) ZoomBy(d float64) {
	c.resetLeft = 0
	c.zoom.Change(d)
}

// EndZoom releases the zoom gesture into inertia.
func (c *CameraControl) EndZoom() {
	c.zoom.Unlock()
}

// Nudge pans by (dx, dy) tiles with inertia, so the camera coasts about
// that far in total.
func (c *CameraControl) Nudge(dx, dy float64) {
	step := c.cam.Zoom() * c.friction / (1 + c.friction)
	c.BeginPan()
	c.pan.Change(core.V(dx*step, dy*step))
	c.pan.Unlock()
}

// ZoomStep zooms by factor k around the focus with inertia.
func (c *CameraControl) ZoomStep(k float64) {
	z := c.cam.Zoom()
	target := core.ClampF(z*k, c.cam.MinZoom(), c.cam.MaxZoom())
	d := (target - z) * c.friction / (1 + c.friction)
	c.BeginZoom()
	c.zoom.Change(d)
	c.zoom.Unlock()
}

// Reset animates the zoom back to its initial value.
func (c *CameraControl) Reset() {
	c.zoom.Stop()
	c.resetLeft = ResetSteps
	c.cam.Invalidate()
}

// Resetting reports whether the reset animation is running.
func (c *CameraControl) Resetting() bool {
	return c.resetLeft > 0
}

// Interrupt cancels the reset animation.
func (c *CameraControl) Interrupt() {
	c.resetLeft = 0
}

// Tick advances inertia and the reset animation by one frame. It reports
// whether anything is still moving.
func (c *CameraControl) Tick() bool {
	moving := c.pan.Tick()
	if c.zoom.Tick() {
		moving = true
	}
	if c.resetLeft > 0 {
		c.resetLeft--
		c.applyZoom((c.initialZoom - c.cam.Zoom()) / resetDivisor)
		moving = moving || c.resetLeft > 0
	}
	return moving
}

// Moving reports whether a gesture or inertia is active.
func (c *CameraControl) Moving() bool {
	return c.pan.Locked() || c.pan.Animating() || c.zoom.Locked() || c.zoom.Animating() || c.resetLeft > 0
}

func (c *CameraControl) onPan(_, velocity core.Vec) {
	zoom := c.cam.Zoom()
	c.cam.Move(velocity.X/zoom, velocity.Y/zoom)
	c.cam.SetPanVelocity(velocity.Len()/zoom, c.now())
}

func (c *CameraControl) onZoom(_, velocity float64) {
	c.applyZoom(velocity)
}

func (c *CameraControl) applyZoom(d float64) {
	if d == 0 || math.IsNaN(d) {
		return
	}
	if !c.focused {
		c.cam.ZoomBy(d)
		return
	}
	w, h := c.viewport[0], c.viewport[1]
	bx, by := c.cam.ScreenToWorld(c.focus.X, c.focus.Y, w, h)
	c.cam.ZoomBy(d)
	ax, ay := c.cam.ScreenToWorld(c.focus.X, c.focus.Y, w, h)
	c.cam.Move(bx-ax, by-ay)
}
