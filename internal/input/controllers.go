package input

import (
	"math"
	"time"

	"github.com/vovakirdan/tilegrid/internal/core"
)

// Gesture timings.
const (
	WheelPanRelease  = 50 * time.Millisecond
	WheelZoomRelease = 10 * time.Millisecond
	DoubleTapWindow  = 300 * time.Millisecond
	QuickTap         = 200 * time.Millisecond
)

// ClickSlop is the largest pointer travel in pixels that still counts as
// a click or a tap.
const ClickSlop = 10

// wheelZoomSpeed converts wheel units into a fraction of the zoom.
const wheelZoomSpeed = 0.01

// tapStill is the zoom velocity under which a double tap counts as still.
const tapStill = 0.001

// DragPan pans while a pointer is held down and releases into inertia.
type DragPan struct {
	ctrl   *CameraControl
	last   core.Vec
	active bool
}

// NewDragPan creates a drag controller.
func NewDragPan(ctrl *CameraControl) *DragPan {
	return &DragPan{ctrl: ctrl}
}

// Down starts a drag.
func (d *DragPan) Down(e PointerEvent) {
	d.active = true
	d.last = e.Pos()
	d.ctrl.BeginPan()
}

// Move pans opposite to the pointer motion, so the grid follows it.
func (d *DragPan) Move(e PointerEvent) {
	if !d.active {
		return
	}
	delta := e.Pos().Sub(d.last)
	d.last = e.Pos()
	d.ctrl.PanBy(delta.Mul(-1))
}

// Up ends the drag.
func (d *DragPan) Up(PointerEvent) {
	if !d.active {
		return
	}
	d.active = false
	d.ctrl.EndPan()
}

// Active reports whether a drag is in progress.
func (d *DragPan) Active() bool {
	return d.active
}

// WheelPanZoom pans on plain scrolls and zooms on modified scrolls. Each
// gesture is released by a deadline checked in Tick.
type WheelPanZoom struct {
	ctrl      *CameraControl
	panUntil  time.Time
	zoomUntil time.Time
}

// NewWheelPanZoom creates a wheel controller.
func NewWheelPanZoom(ctrl *CameraControl) *WheelPanZoom {
	return &WheelPanZoom{ctrl: ctrl}
}

// Wheel handles one scroll event.
func (w *WheelPanZoom) Wheel(e WheelEvent) {
	if e.Zoom {
		if !w.ctrl.zoom.Locked() {
			w.ctrl.BeginZoom()
		}
		w.ctrl.ZoomBy(-e.DY * w.ctrl.cam.Zoom() * wheelZoomSpeed)
		w.zoomUntil = e.Time.Add(WheelZoomRelease)
		return
	}

	if !w.ctrl.pan.Locked() {
		w.ctrl.BeginPan()
	}
	w.ctrl.PanBy(core.V(e.DX, e.DY))
	w.panUntil = e.Time.Add(WheelPanRelease)
}

// Tick releases gestures whose deadline passed.
func (w *WheelPanZoom) Tick(now time.Time) {
	if !w.panUntil.IsZero() && !now.Before(w.panUntil) {
		w.panUntil = time.Time{}
		// A trailing zero delta stops the pan instead of coasting.
		w.ctrl.PanBy(core.Vec{})
		w.ctrl.EndPan()
	}
	if !w.zoomUntil.IsZero() && !now.Before(w.zoomUntil) {
		w.zoomUntil = time.Time{}
		w.ctrl.EndZoom()
	}
}

// Pending reports whether a wheel gesture awaits release.
func (w *WheelPanZoom) Pending() bool {
	return !w.panUntil.IsZero() || !w.zoomUntil.IsZero()
}

// PinchZoom zooms by the change in distance between two fingers.
type PinchZoom struct {
	ctrl   *CameraControl
	last   float64
	active bool
}

// NewPinchZoom creates a pinch controller.
func NewPinchZoom(ctrl *CameraControl) *PinchZoom {
	return &PinchZoom{ctrl: ctrl}
}

// Touch handles a touch update. Fewer than two fingers ends the pinch.
func (p *PinchZoom) Touch(e TouchEvent) {
	spread, ok := e.Spread()
	if !ok {
		if p.active {
			p.active = false
			p.ctrl.EndZoom()
		}
		return
	}
	if !p.active {
		p.active = true
		p.last = spread
		p.ctrl.BeginZoom()
		return
	}
	p.ctrl.ZoomBy(spread - p.last)
	p.last = spread
}

// Active reports whether a pinch is in progress.
func (p *PinchZoom) Active() bool {
	return p.active
}

// TapZoom zooms by vertical drag after a double tap. A double tap that
// does not drag resets the zoom.
type TapZoom struct {
	ctrl *CameraControl

	downAt  time.Time
	downPos core.Vec
	lastUp  time.Time
	lastPos core.Vec

	active bool
	lastY  float64
}

// NewTapZoom creates a tap-zoom controller.
func NewTapZoom(ctrl *CameraControl) *TapZoom {
	return &TapZoom{ctrl: ctrl}
}

// Down records a press. It reports true when the press completes a double
// tap, in which case the gesture belongs to TapZoom until Up.
func (t *TapZoom) Down(e PointerEvent) bool {
	t.downAt = e.Time
	t.downPos = e.Pos()

	if t.lastUp.IsZero() || e.Time.Sub(t.lastUp) > DoubleTapWindow {
		return false
	}
	if e.Pos().Sub(t.lastPos).Len() >= ClickSlop {
		return false
	}
	t.active = true
	t.lastY = e.Y
	t.ctrl.BeginZoom()
	return true
}

// Move zooms by the vertical travel while active.
func (t *TapZoom) Move(e PointerEvent) {
	if !t.active {
		return
	}
	t.ctrl.ZoomBy(e.Y - t.lastY)
	t.lastY = e.Y
}

// Up ends the press.
func (t *TapZoom) Up(e PointerEvent) {
	quick := e.Time.Sub(t.downAt) < QuickTap

	if t.active {
		t.active = false
		t.lastUp = time.Time{}
		if quick && math.Abs(t.ctrl.zoom.Velocity()) < tapStill {
			t.ctrl.Reset()
			return
		}
		t.ctrl.EndZoom()
		return
	}

	if quick && e.Pos().Sub(t.downPos).Len() < ClickSlop {
		t.lastUp = e.Time
		t.lastPos = e.Pos()
		return
	}
	t.lastUp = time.Time{}
}

// Active reports whether a double-tap drag is in progress.
func (t *TapZoom) Active() bool {
	return t.active
}

// Clicker receives clicks in viewport pixels. *render.Grid implements it.
type Clicker interface {
	Click(px, py float64, w, h int, now time.Time) bool
}

// Click turns a short press into a click.
type Click struct {
	target  Clicker
	down    core.Vec
	pressed bool
}

// NewClick creates a click controller.
func NewClick(target Clicker) *Click {
	return &Click{target: target}
}

// Down records a press.
func (c *Click) Down(e PointerEvent) {
	c.pressed = true
	c.down = e.Pos()
}

// Cancel forgets the current press.
func (c *Click) Cancel() {
	c.pressed = false
}

// Up forwards a click when the pointer barely moved. It reports whether
// the target accepted the click.
func (c *Click) Up(e PointerEvent, w, h int) bool {
	if !c.pressed {
		return false
	}
	c.pressed = false
	if e.Pos().Sub(c.down).Len() >= ClickSlop || c.target == nil {
		return false
	}
	return c.target.Click(e.X, e.Y, w, h, e.Time)
}
