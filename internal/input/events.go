package input

import (
	"time"

	"github.com/vovakirdan/tilegrid/internal/core"
)

// PointerEvent is a mouse or single-finger event in viewport pixels.
type PointerEvent struct {
	X, Y float64
	Time time.Time
}

// Pos returns the event position.
func (e PointerEvent) Pos() core.Vec {
	return core.V(e.X, e.Y)
}

// WheelEvent is a scroll. Zoom is set when a zoom modifier (ctrl or meta)
// was held.
type WheelEvent struct {
	X, Y   float64
	DX, DY float64
	Zoom   bool
	Time   time.Time
}

// TouchEvent carries every finger currently on the surface.
type TouchEvent struct {
	Touches []core.Vec
	Time    time.Time
}

// Spread returns the distance between the first two fingers.
func (e TouchEvent) Spread() (float64, bool) {
	if len(e.Touches) < 2 {
		return 0, false
	}
	return e.Touches[0].Sub(e.Touches[1]).Len(), true
}

// Midpoint returns the point between the first two fingers.
func (e TouchEvent) Midpoint() core.Vec {
	if len(e.Touches) < 2 {
		if len(e.Touches) == 1 {
			return e.Touches[0]
		}
		return core.Vec{}
	}
	return e.Touches[0].Add(e.Touches[1]).Mul(0.5)
}
