package input

import (
	"math"
	"testing"
	"time"

	"github.com/vovakirdan/tilegrid/internal/camera"
	"github.com/vovakirdan/tilegrid/internal/core"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newControl() (*camera.Camera, *CameraControl) {
	cam := camera.New(camera.Config{X: 0.5, Y: 0.5, Zoom: 100, MinZoom: 10, MaxZoom: 300}, nil)
	return cam, NewCameraControl(cam, 0, func() time.Time { return t0 })
}

func settle(t *testing.T, c *Controls, now time.Time) int {
	t.Helper()
	for i := 0; i < 10000; i++ {
		if !c.Tick(now) {
			return i
		}
	}
	t.Fatal("controls never settled")
	return 0
}

func closeTo(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

type fakeClicker struct {
	clicks []core.Vec
}

func (f *fakeClicker) Click(px, py float64, _, _ int, _ time.Time) bool {
	f.clicks = append(f.clicks, core.V(px, py))
	return true
}

func TestDragPan(t *testing.T) {
	cam, ctrl := newControl()
	c := NewControls(ctrl, nil)
	c.SetViewport(200, 200)

	c.PointerDown(PointerEvent{X: 0, Y: 0, Time: t0})
	c.PointerMove(PointerEvent{X: 50, Y: 0, Time: t0.Add(16 * time.Millisecond)})

	if !closeTo(cam.X(), 0, 1e-9) {
		t.Errorf("X() after drag = %v, expected 0", cam.X())
	}
	if !closeTo(cam.PanVelocity(), 0.5, 1e-9) {
		t.Errorf("PanVelocity() = %v, expected 0.5", cam.PanVelocity())
	}

	c.PointerUp(PointerEvent{X: 50, Y: 0, Time: t0.Add(32 * time.Millisecond)})
	if !ctrl.Pan().Animating() {
		t.Fatal("pan is not coasting after release")
	}

	settle(t, c, t0)
	if cam.X() >= 0 {
		t.Errorf("X() after inertia = %v, expected < 0", cam.X())
	}
	if cam.PanVelocity() != 0 {
		t.Errorf("PanVelocity() after settle = %v, expected 0", cam.PanVelocity())
	}
}

func TestWheelPanStopsOnRelease(t *testing.T) {
	cam, ctrl := newControl()
	c := NewControls(ctrl, nil)
	c.SetViewport(200, 200)

	c.Wheel(WheelEvent{DY: 30, Time: t0})
	if !closeTo(cam.Y(), 0.8, 1e-9) {
		t.Fatalf("Y() after wheel = %v, expected 0.8", cam.Y())
	}

	if !c.Tick(t0.Add(10 * time.Millisecond)) {
		t.Error("Tick() before release = false, expected true")
	}
	if c.Tick(t0.Add(WheelPanRelease)) {
		t.Error("Tick() at release = true, expected false")
	}
	if !closeTo(cam.Y(), 0.8, 1e-9) {
		t.Errorf("Y() after release = %v, expected 0.8", cam.Y())
	}
}

func TestWheelZoom(t *testing.T) {
	cam, ctrl := newControl()
	c := NewControls(ctrl, nil)
	c.SetViewport(200, 200)

	c.Wheel(WheelEvent{X: 100, Y: 100, DY: -10, Zoom: true, Time: t0})
	if !closeTo(cam.Zoom(), 110, 1e-9) {
		t.Errorf("Zoom() = %v, expected 110", cam.Zoom())
	}
	if !closeTo(cam.X(), 0.5, 1e-9) || !closeTo(cam.Y(), 0.5, 1e-9) {
		t.Errorf("centre zoom moved camera to (%v, %v)", cam.X(), cam.Y())
	}

	settle(t, c, t0.Add(WheelZoomRelease))
	if cam.Zoom() <= 110 {
		t.Errorf("Zoom() after inertia = %v, expected > 110", cam.Zoom())
	}
}

func TestZoomKeepsFocusFixed(t *testing.T) {
	cam, ctrl := newControl()
	ctrl.SetFocus(150, 50, 200, 200)
	bx, by := cam.ScreenToWorld(150, 50, 200, 200)

	ctrl.BeginZoom()
	ctrl.ZoomBy(50)

	ax, ay := cam.ScreenToWorld(150, 50, 200, 200)
	if !closeTo(ax, bx, 1e-9) || !closeTo(ay, by, 1e-9) {
		t.Errorf("focus moved from (%v, %v) to (%v, %v)", bx, by, ax, ay)
	}
}

func TestZoomClamped(t *testing.T) {
	cam := camera.New(camera.Config{Zoom: 290, MinZoom: 100, MaxZoom: 300}, nil)
	ctrl := NewCameraControl(cam, 0, nil)

	ctrl.BeginZoom()
	ctrl.ZoomBy(500)

	if cam.Zoom() != 300 {
		t.Errorf("Zoom() = %v, expected 300", cam.Zoom())
	}
}

func TestReset(t *testing.T) {
	cam, ctrl := newControl()
	cam.SetZoom(200)

	ctrl.Reset()
	for i := 0; i < ResetSteps; i++ {
		ctrl.Tick()
	}

	if ctrl.Resetting() {
		t.Error("Resetting() = true after all steps, expected false")
	}
	expected := 100 + 100*math.Pow(0.8, ResetSteps)
	if !closeTo(cam.Zoom(), expected, 1e-6) {
		t.Errorf("Zoom() = %v, expected %v", cam.Zoom(), expected)
	}
}

func TestResetPreemptedByGesture(t *testing.T) {
	cam, ctrl := newControl()
	cam.SetZoom(200)

	ctrl.Reset()
	ctrl.Tick()
	ctrl.Tick()
	ctrl.BeginPan()

	if ctrl.Resetting() {
		t.Fatal("Resetting() = true after a new gesture, expected false")
	}
	z := cam.Zoom()
	ctrl.Tick()
	if cam.Zoom() != z {
		t.Errorf("Zoom() changed to %v after preemption, expected %v", cam.Zoom(), z)
	}
}

func TestDoubleTapResets(t *testing.T) {
	cam, ctrl := newControl()
	cam.SetZoom(250)
	c := NewControls(ctrl, nil)
	c.SetViewport(200, 200)

	c.PointerDown(PointerEvent{X: 50, Y: 50, Time: t0})
	c.PointerUp(PointerEvent{X: 50, Y: 50, Time: t0.Add(50 * time.Millisecond)})
	c.PointerDown(PointerEvent{X: 52, Y: 50, Time: t0.Add(150 * time.Millisecond)})
	c.PointerUp(PointerEvent{X: 52, Y: 50, Time: t0.Add(200 * time.Millisecond)})

	if !ctrl.Resetting() {
		t.Fatal("Resetting() = false after double tap, expected true")
	}
	settle(t, c, t0)
	if cam.Zoom() >= 250 {
		t.Errorf("Zoom() = %v, expected it to move back towards 100", cam.Zoom())
	}
}

func TestDoubleTapDragZooms(t *testing.T) {
	cam, ctrl := newControl()
	c := NewControls(ctrl, nil)
	c.SetViewport(200, 200)

	c.PointerDown(PointerEvent{X: 100, Y: 100, Time: t0})
	c.PointerUp(PointerEvent{X: 100, Y: 100, Time: t0.Add(50 * time.Millisecond)})
	c.PointerDown(PointerEvent{X: 100, Y: 100, Time: t0.Add(150 * time.Millisecond)})
	c.PointerMove(PointerEvent{X: 100, Y: 120, Time: t0.Add(300 * time.Millisecond)})

	if !closeTo(cam.Zoom(), 120, 1e-9) {
		t.Errorf("Zoom() = %v, expected 120", cam.Zoom())
	}
	if !closeTo(cam.Y(), 0.5, 1e-9) {
		t.Errorf("Y() = %v, expected the drag not to pan", cam.Y())
	}

	c.PointerUp(PointerEvent{X: 100, Y: 120, Time: t0.Add(500 * time.Millisecond)})
	if ctrl.Resetting() {
		t.Error("Resetting() = true after a drag, expected false")
	}
}

func TestClick(t *testing.T) {
	tests := []struct {
		name     string
		up       core.Vec
		expected int
	}{
		{"still", core.V(12, 12), 1},
		{"dragged", core.V(40, 10), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ctrl := newControl()
			target := &fakeClicker{}
			c := NewControls(ctrl, target)
			c.SetViewport(200, 200)

			c.PointerDown(PointerEvent{X: 10, Y: 10, Time: t0})
			c.PointerMove(PointerEvent{X: tt.up.X, Y: tt.up.Y, Time: t0.Add(time.Second)})
			c.PointerUp(PointerEvent{X: tt.up.X, Y: tt.up.Y, Time: t0.Add(time.Second)})

			if len(target.clicks) != tt.expected {
				t.Errorf("clicks = %d, expected %d", len(target.clicks), tt.expected)
			}
		})
	}
}

func TestPinchZoom(t *testing.T) {
	cam, ctrl := newControl()
	c := NewControls(ctrl, nil)
	c.SetViewport(200, 200)

	c.Touch(TouchEvent{Touches: []core.Vec{core.V(50, 100), core.V(150, 100)}, Time: t0})
	c.Touch(TouchEvent{Touches: []core.Vec{core.V(25, 100), core.V(175, 100)}, Time: t0})

	if !closeTo(cam.Zoom(), 150, 1e-9) {
		t.Errorf("Zoom() = %v, expected 150", cam.Zoom())
	}

	c.Touch(TouchEvent{Touches: []core.Vec{core.V(25, 100)}, Time: t0})
	if ctrl.Zoom().Locked() {
		t.Error("zoom still locked after lifting a finger")
	}
}

func TestNudgeTravelsAboutOneTile(t *testing.T) {
	cam, ctrl := newControl()
	c := NewControls(ctrl, nil)

	ctrl.Nudge(1, 0)
	settle(t, c, t0)

	if !closeTo(cam.X(), 1.5, 0.05) {
		t.Errorf("X() after nudge = %v, expected about 1.5", cam.X())
	}
}
