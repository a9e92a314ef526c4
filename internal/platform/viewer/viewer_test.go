package viewer

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/tilegrid/internal/config"
	"github.com/vovakirdan/tilegrid/internal/registry"
	_ "github.com/vovakirdan/tilegrid/internal/source/demo"
	"github.com/vovakirdan/tilegrid/internal/storage"
)

type memoryStore struct {
	mu    sync.Mutex
	saved map[string]storage.Position
	count int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{saved: make(map[string]storage.Position)}
}

func (s *memoryStore) SavePosition(p storage.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved[p.Source] = p
	s.count++
	return nil
}

func (s *memoryStore) LoadPosition(source string) (storage.Position, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.saved[source]
	return p, ok, nil
}

func (s *memoryStore) get(source string) (storage.Position, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved[source], s.count
}

func testConfig() config.GridConfig {
	cfg := config.DefaultGridConfig()
	cfg.Mask.ChunkSize = 32
	cfg.Source.ChunkSize = 32
	cfg.Storage.Debounce = 10 * time.Millisecond
	cfg.Storage.MaxWait = 20 * time.Millisecond
	return cfg
}

func newTestViewer(t *testing.T, store PositionStore, w, h int) *Viewer {
	t.Helper()
	cfg := testConfig()
	ep, err := registry.Open(cfg.Source)
	if err != nil {
		t.Fatalf("registry.Open() failed: %v", err)
	}
	opts := Options{Config: cfg, Endpoint: ep, Width: w, Height: h}
	if store != nil {
		opts.Store = store
	}
	v, err := New(opts)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	t.Cleanup(func() { v.Close() })
	return v
}

func TestZoomFor(t *testing.T) {
	tests := []struct {
		name     string
		w, h     int
		cfg      config.CameraConfig
		expected Zoom
	}{
		{"large", 1600, 1000, config.CameraConfig{}, Zoom{Min: 200, Initial: 1000 / 3.5, Max: 300}},
		{"small", 400, 800, config.CameraConfig{}, Zoom{Min: 100, Initial: 160, Max: 300}},
		{"initial capped", 4000, 3000, config.CameraConfig{}, Zoom{Min: 300, Initial: 300, Max: 300}},
		{"configured", 1600, 1000, config.CameraConfig{Zoom: 120, MinZoom: 50, MaxZoom: 150}, Zoom{Min: 50, Initial: 120, Max: 150}},
		{"configured zoom clamped", 1600, 1000, config.CameraConfig{Zoom: 10, MinZoom: 50}, Zoom{Min: 50, Initial: 50, Max: 300}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ZoomFor(tt.w, tt.h, tt.cfg, 800)
			if math.Abs(got.Min-tt.expected.Min) > 1e-9 || math.Abs(got.Initial-tt.expected.Initial) > 1e-9 || got.Max != tt.expected.Max {
				t.Errorf("ZoomFor() = %+v, expected %+v", got, tt.expected)
			}
		})
	}
}

func TestCapacityFor(t *testing.T) {
	// ceil(1000/200)+4 = 9, ceil(1600/200)+4 = 12
	if got := CapacityFor(1600, 1000, 200); got != 9*12*2 {
		t.Errorf("CapacityFor() = %d, expected %d", got, 9*12*2)
	}
}

func TestSettleResolvesVisibleTiles(t *testing.T) {
	v := newTestViewer(t, nil, 160, 120)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := v.Settle(ctx); err != nil {
		t.Fatalf("Settle() failed: %v", err)
	}
	if !v.resolved() {
		t.Error("resolved() = false after Settle()")
	}
	if v.Gallery().Len() == 0 {
		t.Error("gallery is empty, expected images for published tiles")
	}
}

func TestFrameFollowsScheduler(t *testing.T) {
	v := newTestViewer(t, nil, 160, 120)
	now := time.Now()

	if !v.Frame(now) {
		t.Fatal("first Frame() = false, expected a draw")
	}

	// Let the fetches land so no cache event arrives while draining.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := v.Settle(ctx); err != nil {
		t.Fatalf("Settle() failed: %v", err)
	}
	for i := 0; i < 256 && v.Frame(now); i++ {
	}
	if v.Frame(now) {
		t.Error("Frame() = true with nothing requested")
	}
	v.Camera().Move(1, 0)
	if !v.Frame(now) {
		t.Error("Frame() = false after the camera moved")
	}
}

func TestPositionRestoredAndSaved(t *testing.T) {
	store := newMemoryStore()
	cfg := testConfig()
	ep, _ := registry.Open(cfg.Source)
	store.saved[ep.Key] = storage.Position{Source: ep.Key, X: 12.5, Y: -3.5, Zoom: 40}

	v := newTestViewer(t, store, 160, 120)
	cam := v.Camera()
	if cam.X() != 12.5 || cam.Y() != -3.5 {
		t.Errorf("camera = (%v, %v), expected the saved (12.5, -3.5)", cam.X(), cam.Y())
	}

	cam.Move(2, 1)
	v.Frame(time.Now())

	deadline := time.Now().Add(2 * time.Second)
	for {
		p, _ := store.get(ep.Key)
		if p.X == 14.5 && p.Y == -2.5 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("saved = %+v, expected (14.5, -2.5)", p)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestResizeRederivesBounds(t *testing.T) {
	v := newTestViewer(t, nil, 160, 120)
	v.Resize(1600, 1000)

	if w, h := v.Size(); w != 1600 || h != 1000 {
		t.Errorf("Size() = %dx%d, expected 1600x1000", w, h)
	}
	if got := v.Camera().MinZoom(); got != 200 {
		t.Errorf("MinZoom() = %v, expected 200", got)
	}
	if got := v.Gallery().Capacity(); got != CapacityFor(1600, 1000, 200) {
		t.Errorf("Capacity() = %d, expected %d", got, CapacityFor(1600, 1000, 200))
	}
	if got := v.Canvas().Width(); got != 1600 {
		t.Errorf("canvas width = %d, expected 1600", got)
	}
}
