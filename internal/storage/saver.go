package storage

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Default save timings: a burst of camera updates is written once it has
// been quiet for DefaultDebounce, and at least every DefaultMaxWait while
// the burst lasts.
const (
	DefaultDebounce = 250 * time.Millisecond
	DefaultMaxWait  = time.Second
)

// PositionWriter persists positions. *Store implements it.
type PositionWriter interface {
	SavePosition(p Position) error
}

// Saver debounces position writes.
type Saver struct {
	writer   PositionWriter
	debounce time.Duration
	maxWait  time.Duration
	logger   *log.Logger

	mu      sync.Mutex
	pending *Position
	first   time.Time
	timer   *time.Timer
	closed  bool

	writeMu sync.Mutex
}

// NewSaver creates a saver. Non-positive durations select the defaults and
// a nil logger discards write errors.
func NewSaver(w PositionWriter, debounce, maxWait time.Duration, logger *log.Logger) *Saver {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if maxWait < debounce {
		maxWait = max(DefaultMaxWait, debounce)
	}
	return &Saver{
		writer:   w,
		debounce: debounce,
		maxWait:  maxWait,
		logger:   logger,
	}
}

// Update schedules p to be written.
func (s *Saver) Update(p Position) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	now := time.Now()
	s.pending = &p
	if s.first.IsZero() {
		s.first = now
	}

	delay := s.debounce
	if left := s.maxWait - now.Sub(s.first); left < delay {
		delay = max(left, 0)
	}

	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(delay, s.fire)
}

// Flush writes the pending position now.
func (s *Saver) Flush() error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	p := s.take()
	s.mu.Unlock()

	return s.write(p)
}

// Close flushes and stops accepting updates.
func (s *Saver) Close() error {
	err := s.Flush()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return err
}

func (s *Saver) fire() {
	s.mu.Lock()
	p := s.take()
	s.mu.Unlock()

	if err := s.write(p); err != nil && s.logger != nil {
		s.logger.Warn("cannot save position", "error", err)
	}
}

// take must be called with mu held.
func (s *Saver) take() *Position {
	p := s.pending
	s.pending = nil
	s.first = time.Time{}
	return p
}

func (s *Saver) write(p *Position) error {
	if p == nil {
		return nil
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.writer.SavePosition(*p)
}
