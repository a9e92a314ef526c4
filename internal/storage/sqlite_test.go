package storage

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreOpenClose(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "nested", "test.db")

	store, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer store.Close()

	// Check that the file was created
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
}

func TestStoreSaveAndLoad(t *testing.T) {
	store := openTestStore(t)

	if _, ok, err := store.LoadPosition("demo"); err != nil || ok {
		t.Fatalf("LoadPosition() on empty store = (%v, %v), expected (false, nil)", ok, err)
	}

	if err := store.SavePosition(Position{Source: "demo", X: 1.5, Y: -3.25, Zoom: 120}); err != nil {
		t.Fatalf("SavePosition() failed: %v", err)
	}
	if err := store.SavePosition(Position{Source: "demo", X: 10.5, Y: 2.5, Zoom: 80}); err != nil {
		t.Fatalf("SavePosition() failed: %v", err)
	}

	p, ok, err := store.LoadPosition("demo")
	if err != nil || !ok {
		t.Fatalf("LoadPosition() = (%v, %v), expected a saved position", ok, err)
	}
	if p.X != 10.5 || p.Y != 2.5 || p.Zoom != 80 {
		t.Errorf("LoadPosition() = %+v, expected the second save", p)
	}
	if p.UpdatedAt.IsZero() {
		t.Error("UpdatedAt is zero, expected a timestamp")
	}
}

func TestStorePositionsAndReset(t *testing.T) {
	store := openTestStore(t)

	for _, src := range []string{"demo", "bucket"} {
		if err := store.SavePosition(Position{Source: src, Zoom: 100}); err != nil {
			t.Fatalf("SavePosition(%q) failed: %v", src, err)
		}
	}

	positions, err := store.Positions()
	if err != nil {
		t.Fatalf("Positions() failed: %v", err)
	}
	if len(positions) != 2 {
		t.Fatalf("len(Positions()) = %d, expected 2", len(positions))
	}

	if err := store.ResetPosition("demo"); err != nil {
		t.Fatalf("ResetPosition() failed: %v", err)
	}
	if _, ok, _ := store.LoadPosition("demo"); ok {
		t.Error("LoadPosition() after reset found a position, expected none")
	}
	if _, ok, _ := store.LoadPosition("bucket"); !ok {
		t.Error("ResetPosition() removed another source")
	}

	if err := store.ClearPositions(); err != nil {
		t.Fatalf("ClearPositions() failed: %v", err)
	}
	if positions, _ := store.Positions(); len(positions) != 0 {
		t.Errorf("len(Positions()) after clear = %d, expected 0", len(positions))
	}
}

type recordingWriter struct {
	mu     sync.Mutex
	writes []Position
	err    error
}

func (r *recordingWriter) SavePosition(p Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = append(r.writes, p)
	return r.err
}

func (r *recordingWriter) snapshot() []Position {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Position(nil), r.writes...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestSaverDebounces(t *testing.T) {
	w := &recordingWriter{}
	s := NewSaver(w, 30*time.Millisecond, time.Second, nil)
	defer s.Close()

	for i := 0; i < 5; i++ {
		s.Update(Position{Source: "demo", X: float64(i)})
	}

	waitFor(t, func() bool { return len(w.snapshot()) == 1 })
	time.Sleep(60 * time.Millisecond)

	writes := w.snapshot()
	if len(writes) != 1 {
		t.Fatalf("writes = %d, expected 1", len(writes))
	}
	if writes[0].X != 4 {
		t.Errorf("written X = %v, expected the last update 4", writes[0].X)
	}
}

func TestSaverMaxWait(t *testing.T) {
	w := &recordingWriter{}
	s := NewSaver(w, 50*time.Millisecond, 100*time.Millisecond, nil)
	defer s.Close()

	stop := time.Now().Add(400 * time.Millisecond)
	for i := 0; time.Now().Before(stop); i++ {
		s.Update(Position{Source: "demo", X: float64(i)})
		time.Sleep(10 * time.Millisecond)
	}

	// Updates never pause for the debounce period, so only the max wait
	// can have produced writes.
	if got := len(w.snapshot()); got < 2 {
		t.Errorf("writes during a continuous burst = %d, expected at least 2", got)
	}
}

func TestSaverFlushAndClose(t *testing.T) {
	w := &recordingWriter{err: errors.New("disk full")}
	s := NewSaver(w, time.Hour, time.Hour, nil)

	if err := s.Flush(); err != nil {
		t.Errorf("Flush() with nothing pending = %v, expected nil", err)
	}

	s.Update(Position{Source: "demo", Zoom: 42})
	if err := s.Close(); err == nil {
		t.Error("Close() = nil, expected the writer error")
	}
	if writes := w.snapshot(); len(writes) != 1 || writes[0].Zoom != 42 {
		t.Errorf("writes = %+v, expected the pending position", writes)
	}

	s.Update(Position{Source: "demo", Zoom: 7})
	if err := s.Flush(); err != nil {
		t.Errorf("Flush() after Close = %v, expected nil", err)
	}
	if writes := w.snapshot(); len(writes) != 1 {
		t.Errorf("writes after Close = %d, expected 1", len(writes))
	}
}
