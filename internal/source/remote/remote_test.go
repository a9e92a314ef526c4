package remote

import (
	"context"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/tilegrid/internal/bucket"
	"github.com/vovakirdan/tilegrid/internal/config"
	"github.com/vovakirdan/tilegrid/internal/core"
	"github.com/vovakirdan/tilegrid/internal/fetch"
	"github.com/vovakirdan/tilegrid/internal/gallery"
	"github.com/vovakirdan/tilegrid/internal/registry"
)

type patch struct {
	tile  core.Tile
	value bool
	meta  *fetch.Meta
}

type recorder struct {
	mu      sync.Mutex
	mask    []patch
	gallery []patch
}

func (r *recorder) Patch(x, y int, value bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mask = append(r.mask, patch{tile: core.T(x, y), value: value})
}

type galleryRecorder struct{ *recorder }

func (g galleryRecorder) Patch(tile core.Tile, opts gallery.PatchOptions) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gallery = append(g.gallery, patch{tile: tile, meta: opts.Meta})
	return nil
}

func (r *recorder) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.mask), len(r.gallery)
}

func TestOpen(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.SourceConfig
		events  string
		wantErr bool
	}{
		{"plain", config.SourceConfig{Name: ID, BaseURL: "http://localhost:8089"}, "", false},
		{"live", config.SourceConfig{Name: ID, BaseURL: "http://localhost:8089/tiles/", Live: true}, "ws://localhost:8089/tiles/events", false},
		{"tls", config.SourceConfig{Name: ID, BaseURL: "https://cdn.example", Live: true}, "wss://cdn.example/events", false},
		{"missing", config.SourceConfig{Name: ID}, "", true},
		{"scheme", config.SourceConfig{Name: ID, BaseURL: "ftp://host"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ep, err := registry.Open(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Open() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if ep.EventsURL != tt.events {
				t.Errorf("EventsURL = %q, expected %q", ep.EventsURL, tt.events)
			}
			if !strings.HasPrefix(ep.MaskURL(0, 0), strings.TrimRight(tt.cfg.BaseURL, "/")+"/tilemap-") {
				t.Errorf("MaskURL() = %q, expected it under the base url", ep.MaskURL(0, 0))
			}
		})
	}
}

func TestOpenKeysByBucket(t *testing.T) {
	a, _ := registry.Open(config.SourceConfig{Name: ID, BaseURL: "http://a.example/x/"})
	b, _ := registry.Open(config.SourceConfig{Name: ID, BaseURL: "http://b.example/x"})
	if a.Key == b.Key {
		t.Errorf("Key = %q for both buckets, expected distinct keys", a.Key)
	}
}

func TestApply(t *testing.T) {
	rec := &recorder{}
	f := NewFollower("", rec, galleryRecorder{rec}, nil)

	f.Apply(bucket.Event{Type: bucket.EventTile, X: 1, Y: 2, Published: true})
	f.Apply(bucket.Event{Type: bucket.EventTile, X: 3, Y: 4, Published: false})
	meta := &fetch.Meta{Title: "New"}
	f.Apply(bucket.Event{Type: bucket.EventMeta, X: 1, Y: 2, Published: true, Meta: meta})
	f.Apply(bucket.Event{Type: "unknown"})

	if len(rec.mask) != 2 || rec.mask[0] != (patch{tile: core.T(1, 2), value: true}) || rec.mask[1].value {
		t.Errorf("mask patches = %+v", rec.mask)
	}
	if len(rec.gallery) != 2 {
		t.Fatalf("gallery patches = %d, expected 2", len(rec.gallery))
	}
	if rec.gallery[0].meta != nil {
		t.Error("tile event patched meta, expected a reload")
	}
	if rec.gallery[1].meta != meta {
		t.Error("meta event did not carry the new meta")
	}
}

func TestFollowerReceivesBucketEvents(t *testing.T) {
	dir := t.TempDir()
	srv, err := bucket.New(bucket.Config{Dir: dir, ChunkSize: 16})
	if err != nil {
		t.Fatalf("bucket.New() failed: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	base, _ := url.Parse(ts.URL)
	rec := &recorder{}
	f := NewFollower(EventsURL(base), rec, galleryRecorder{rec}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()

	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	go func() { _ = srv.Watch(watchCtx) }()

	// Keep adding tiles until one lands after both the watcher and the
	// follower are attached.
	deadline := time.Now().Add(5 * time.Second)
	for i := 0; ; i++ {
		if n, _ := rec.counts(); n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no event reached the follower")
		}
		name := filepath.Join(dir, "tile-"+strings.Repeat("1", i%5+1)+"-0.png")
		_ = os.WriteFile(name, []byte("x"), 0o644)
		time.Sleep(50 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v, expected nil after cancel", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("Run() did not return after cancel")
	}
}
