package input

import "time"

// Controls routes raw events to every controller of one viewport.
type Controls struct {
	ctrl  *CameraControl
	drag  *DragPan
	wheel *WheelPanZoom
	pinch *PinchZoom
	tap   *TapZoom
	click *Click

	width, height int
	captured      bool
}

// NewControls wires the standard controllers to ctrl. target may be nil.
func NewControls(ctrl *CameraControl, target Clicker) *Controls {
	return &Controls{
		ctrl:  ctrl,
		drag:  NewDragPan(ctrl),
		wheel: NewWheelPanZoom(ctrl),
		pinch: NewPinchZoom(ctrl),
		tap:   NewTapZoom(ctrl),
		click: NewClick(target),
	}
}

// Control returns the camera control.
func (c *Controls) Control() *CameraControl {
	return c.ctrl
}

// SetViewport records the viewport size in pixels.
func (c *Controls) SetViewport(w, h int) {
	c.width, c.height = w, h
}

// PointerDown handles a press.
func (c *Controls) PointerDown(e PointerEvent) {
	if c.tap.Down(e) {
		c.captured = true
		c.click.Cancel()
		c.ctrl.SetFocus(e.X, e.Y, c.width, c.height)
		return
	}
	c.drag.Down(e)
	c.click.Down(e)
}

// PointerMove handles motion while pressed.
func (c *Controls) PointerMove(e PointerEvent) {
	if c.captured {
		c.tap.Move(e)
		return
	}
	c.drag.Move(e)
}

// PointerUp handles a release. It reports whether a click was delivered.
func (c *Controls) PointerUp(e PointerEvent) bool {
	if c.captured {
		c.captured = false
		c.tap.Up(e)
		return false
	}
	c.drag.Up(e)
	c.tap.Up(e)
	return c.click.Up(e, c.width, c.height)
}

// Wheel handles a scroll.
func (c *Controls) Wheel(e WheelEvent) {
	if e.Zoom {
		c.ctrl.SetFocus(e.X, e.Y, c.width, c.height)
	}
	c.wheel.Wheel(e)
}

// Touch handles a multi-finger update.
func (c *Controls) Touch(e TouchEvent) {
	mid := e.Midpoint()
	c.ctrl.SetFocus(mid.X, mid.Y, c.width, c.height)
	c.pinch.Touch(e)
}

// Tick releases expired wheel gestures and advances inertia. It reports
// whether the camera is still moving.
func (c *Controls) Tick(now time.Time) bool {
	c.wheel.Tick(now)
	moving := c.ctrl.Tick()
	return moving || c.wheel.Pending() || c.ctrl.Moving()
}
