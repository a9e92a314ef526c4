// Package momentum turns discrete input deltas into a decaying-velocity
// animation of a scalar or a 2D value.
//
// A Value is driven by its owner: while locked, Change and Set move it
// directly and record the last delta as its velocity; after Unlock, each
// call to Tick applies one frame of exponential decay until the velocity
// falls under Epsilon. A Value is not safe for concurrent use.
package momentum

import "github.com/vovakirdan/tilegrid/internal/core"

const (
	// DefaultFriction is the decay constant used when none is given.
	DefaultFriction = 0.05

	// Epsilon is the velocity magnitude under which decay stops.
	Epsilon = 0.01
)

// Ops describes the arithmetic a Value needs from its element type.
type Ops[T any] struct {
	Add  func(a, b T) T
	Diff func(a, b T) T // a - b
	Mul  func(a T, k float64) T
	Len  func(a T) float64
}

// ScalarOps are the operations for float64 values (zoom).
var ScalarOps = Ops[float64]{
	Add:  func(a, b float64) float64 { return a + b },
	Diff: func(a, b float64) float64 { return a - b },
	Mul:  func(a float64, k float64) float64 { return a * k },
	Len: func(a float64) float64 {
		if a < 0 {
			return -a
		}
		return a
	},
}

// VectorOps are the operations for 2D values (pan).
var VectorOps = Ops[core.Vec]{
	Add:  core.Vec.Add,
	Diff: core.Vec.Sub,
	Mul:  core.Vec.Mul,
	Len:  core.Vec.Len,
}

// Callback receives the value and velocity after every change.
type Callback[T any] func(value, velocity T)

// Value is a momentum-carrying value.
type Value[T any] struct {
	ops      Ops[T]
	friction float64
	onChange Callback[T]

	value       T
	velocity    T
	hasVelocity bool
	locked      bool
	animating   bool
}

// New creates an idle Value holding initial.
// A non-positive friction selects DefaultFriction.
func New[T any](ops Ops[T], friction float64, initial T, onChange Callback[T]) *Value[T] {
	if friction <= 0 {
		friction = DefaultFriction
	}
	return &Value[T]{
		ops:      ops,
		friction: friction,
		onChange: onChange,
		value:    initial,
	}
}

// NewScalar creates a float64 Value.
func NewScalar(friction, initial float64, onChange Callback[float64]) *Value[float64] {
	return New(ScalarOps, friction, initial, onChange)
}

// NewVector creates a 2D Value.
func NewVector(friction float64, initial core.Vec, onChange Callback[core.Vec]) *Value[core.Vec] {
	return New(VectorOps, friction, initial, onChange)
}

// Init begins a locked session at v with no velocity.
// Any running decay is abandoned.
func (m *Value[T]) Init(v T) {
	var zero T
	m.value = v
	m.velocity = zero
	m.hasVelocity = false
	m.locked = true
	m.animating = false
}

// Change adds delta to the value and records it as the velocity.
// It is ignored unless the value is locked.
func (m *Value[T]) Change(delta T) {
	if !m.locked {
		return
	}
	m.velocity = delta
	m.hasVelocity = true
	m.value = m.ops.Add(m.value, delta)
	m.emit()
}

// Set moves the value to v, recording the implied delta as the velocity.
// It is ignored unless the value is locked.
func (m *Value[T]) Set(v T) {
	if !m.locked {
		return
	}
	m.velocity = m.ops.Diff(v, m.value)
	m.hasVelocity = true
	m.value = v
	m.emit()
}

// Unlock ends the locked session and starts free decay from the last
// recorded velocity. Without any recorded velocity the value settles at
// once with a zero-velocity callback. Unlocking an unlocked value is a no-op.
func (m *Value[T]) Unlock() {
	if !m.locked {
		return
	}
	m.locked = false

	if !m.hasVelocity {
		m.settle()
		return
	}
	m.animating = true
}

// Tick applies one frame of decay. It reports whether the value is still
// animating afterwards.
func (m *Value[T]) Tick() bool {
	if m.locked || !m.animating {
		return false
	}

	if m.ops.Len(m.velocity) <= Epsilon {
		m.settle()
		return false
	}

	m.velocity = m.ops.Mul(m.velocity, 1/(1+m.friction))
	m.value = m.ops.Add(m.value, m.velocity)
	m.emit()
	return true
}

// Stop halts any decay in place without a callback.
func (m *Value[T]) Stop() {
	var zero T
	m.animating = false
	m.locked = false
	m.velocity = zero
}

// Get returns the current value.
func (m *Value[T]) Get() T {
	return m.value
}

// Velocity returns the current velocity.
func (m *Value[T]) Velocity() T {
	return m.velocity
}

// Locked reports whether input is driving the value.
func (m *Value[T]) Locked() bool {
	return m.locked
}

// Animating reports whether decay is in progress.
func (m *Value[T]) Animating() bool {
	return m.animating
}

func (m *Value[T]) settle() {
	var zero T
	m.velocity = zero
	m.hasVelocity = true
	m.animating = false
	m.emit()
}

func (m *Value[T]) emit() {
	if m.onChange != nil {
		m.onChange(m.value, m.velocity)
	}
}
