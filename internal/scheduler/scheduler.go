// Package scheduler decides, on every display refresh, whether the grid
// should be redrawn.
//
// A change signal arms a countdown of "smoothness" frames so that images
// and mask chunks arriving during a gesture are picked up without every
// source having to request frames itself. Independently, a slow keep-warm
// cadence forces a redraw so visible tiles stay fresh in the caches.
package scheduler

import (
	"sync/atomic"
	"time"
)

// Default frame budgets.
const (
	DefaultSmoothness      = 32
	DefaultSmallSmoothness = 2
	DefaultKeepWarm        = time.Second
	DefaultSmallViewport   = 800
)

// Scheduler is a dirty-countdown redraw scheduler. Request may be called
// from any goroutine; Tick is called by the render loop only.
type Scheduler struct {
	smoothness atomic.Int32
	countdown  atomic.Int32
	keepWarm   time.Duration
	lastWarm   time.Time
}

// New creates a scheduler. Non-positive arguments select the defaults.
func New(smoothness int, keepWarm time.Duration) *Scheduler {
	if smoothness <= 0 {
		smoothness = DefaultSmoothness
	}
	if keepWarm <= 0 {
		keepWarm = DefaultKeepWarm
	}
	s := &Scheduler{keepWarm: keepWarm}
	s.smoothness.Store(int32(smoothness))
	return s
}

// Smoothness picks the frame count for a viewport: constrained viewports
// whose larger side is at most threshold get small, others get large.
func Smoothness(w, h, threshold, small, large int) int {
	if max(w, h) <= threshold {
		return small
	}
	return large
}

// SetSmoothness changes the countdown armed by later requests.
func (s *Scheduler) SetSmoothness(n int) {
	if n > 0 {
		s.smoothness.Store(int32(n))
	}
}

// Request marks the frame dirty.
func (s *Scheduler) Request() {
	s.countdown.Store(s.smoothness.Load())
}

// Pending returns the remaining forced redraws.
func (s *Scheduler) Pending() int {
	return int(s.countdown.Load())
}

// Tick reports whether a redraw is due at now, consuming one frame of the
// countdown when it is armed.
func (s *Scheduler) Tick(now time.Time) bool {
	for {
		n := s.countdown.Load()
		if n <= 0 {
			break
		}
		if s.countdown.CompareAndSwap(n, n-1) {
			s.warm(now)
			return true
		}
	}
	return s.warm(now)
}

// warm advances the keep-warm clock, which runs regardless of the
// countdown, and reports whether its period elapsed.
func (s *Scheduler) warm(now time.Time) bool {
	if now.Sub(s.lastWarm) >= s.keepWarm {
		s.lastWarm = now
		return true
	}
	return false
}
