package render

import (
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/gogpu/gg"

	"github.com/vovakirdan/tilegrid/internal/camera"
	"github.com/vovakirdan/tilegrid/internal/core"
	"github.com/vovakirdan/tilegrid/internal/fetch"
	"github.com/vovakirdan/tilegrid/internal/gallery"
)

type fakeMask map[core.Tile]bool

func (m fakeMask) Has(x, y int) (bool, bool) {
	return m[core.T(x, y)], true
}

type fakeGallery struct {
	images map[core.Tile]gallery.Image
	scales []float64
}

func (g *fakeGallery) Get(tile core.Tile, scale float64) (gallery.Image, bool) {
	g.scales = append(g.scales, scale)
	img, ok := g.images[tile]
	return img, ok
}

func solid(w, h int, c color.RGBA) *gg.ImageBuf {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return gg.ImageBufFromImage(img)
}

func newCamera() *camera.Camera {
	return camera.New(camera.Config{X: 0.5, Y: 0.5, Zoom: 100, MinZoom: 10, MaxZoom: 300}, nil)
}

func near(got color.Color, want gg.RGBA) bool {
	r, g, b, _ := got.RGBA()
	w := want.Color()
	wr, wg, wb, _ := w.RGBA()
	d := func(a, b uint32) bool {
		a >>= 8
		b >>= 8
		if a > b {
			return a-b <= 3
		}
		return b-a <= 3
	}
	return d(r, wr) && d(g, wg) && d(b, wb)
}

func TestDrawTileFill(t *testing.T) {
	red := color.RGBA{R: 255, A: 255}

	tests := []struct {
		name     string
		mask     fakeMask
		images   map[core.Tile]gallery.Image
		expected gg.RGBA
	}{
		{
			name:     "empty",
			mask:     fakeMask{},
			expected: colorTile,
		},
		{
			name:     "published without image",
			mask:     fakeMask{core.T(0, 0): true},
			expected: colorPublished,
		},
		{
			name: "published with image",
			mask: fakeMask{core.T(0, 0): true},
			images: map[core.Tile]gallery.Image{
				core.T(0, 0): {Image: solid(64, 32, red)},
			},
			expected: gg.RGBA2(1, 0, 0, 1),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dc := gg.NewContext(200, 200)
			defer dc.Close()

			state := &State{
				Camera:  newCamera(),
				Width:   200,
				Height:  200,
				Mask:    tt.mask,
				Gallery: &fakeGallery{images: tt.images},
			}
			DrawTile(dc, core.T(0, 0), state)

			if got := dc.Image().At(100, 100); !near(got, tt.expected) {
				t.Errorf("pixel at centre = %v, expected %v", got, tt.expected.Color())
			}
		})
	}
}

func TestDrawTileSkipsGalleryForEmptyTiles(t *testing.T) {
	dc := gg.NewContext(200, 200)
	defer dc.Close()

	gal := &fakeGallery{}
	state := &State{Camera: newCamera(), Width: 200, Height: 200, Mask: fakeMask{}, Gallery: gal}
	hit, _ := DrawTile(dc, core.T(0, 0), state)

	if len(gal.scales) != 0 {
		t.Errorf("gallery queried %d times, expected 0", len(gal.scales))
	}
	if hit.Published {
		t.Error("Hit.Published = true, expected false")
	}
}

func TestEffectiveScale(t *testing.T) {
	cam := newCamera()
	state := &State{Camera: cam, Width: 200, Height: 200}

	if got := state.EffectiveScale(); got != 100 {
		t.Errorf("EffectiveScale() at rest = %v, expected 100", got)
	}
	if got := state.TextAlpha(); got != 1 {
		t.Errorf("TextAlpha() at rest = %v, expected 1", got)
	}

	cam.SetPanVelocity(0.25, time.Now())
	if got := state.EffectiveScale(); got != 100.0/16 {
		t.Errorf("EffectiveScale() while panning = %v, expected %v", got, 100.0/16)
	}
	if got := state.TextAlpha(); got != 0.5+0.5/16 {
		t.Errorf("TextAlpha() while panning = %v, expected %v", got, 0.5+0.5/16)
	}
}

func TestHoverIntensity(t *testing.T) {
	tests := []struct {
		name      string
		px, py    float64
		zoomedOut bool
		expected  float64
	}{
		{"centre", 50, 50, false, 1},
		{"far", 500, 500, false, 0},
		{"half way", 50, 100, false, 0.5},
		{"half way zoomed out", 50, 150, true, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HoverIntensity(tt.px, tt.py, 0, 0, 100, tt.zoomedOut); got != tt.expected {
				t.Errorf("HoverIntensity() = %v, expected %v", got, tt.expected)
			}
		})
	}
}

func TestFillSquare(t *testing.T) {
	tests := []struct {
		w, h     int
		expected image.Rectangle
	}{
		{200, 100, image.Rect(50, 0, 150, 100)},
		{100, 300, image.Rect(0, 100, 100, 200)},
		{64, 64, image.Rect(0, 0, 64, 64)},
	}

	for _, tt := range tests {
		if got := FillSquare(tt.w, tt.h); got != tt.expected {
			t.Errorf("FillSquare(%d, %d) = %v, expected %v", tt.w, tt.h, got, tt.expected)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"short", "short"},
		{"exactly twenty-eight chars!!", "exactly twenty-eight chars!!"},
		{"this subtitle is far too long to fit", "this subtitle is far too …"},
		{"ääääääääääääääääääääääääääääää", "äääääääääääääääääääääääää…"},
	}

	for _, tt := range tests {
		if got := Truncate(tt.in, subtitleMax); got != tt.expected {
			t.Errorf("Truncate(%q) = %q, expected %q", tt.in, got, tt.expected)
		}
	}
}

func TestGridHoverIsEdgeTriggered(t *testing.T) {
	grid := NewGrid(newCamera(), fakeMask{core.T(0, 0): true}, &fakeGallery{}, nil)
	dc := gg.NewContext(200, 200)
	defer dc.Close()

	var events []HoverEvent
	grid.OnHover(func(e HoverEvent) { events = append(events, e) })

	grid.SetPointer(Pointer{X: 100, Y: 100, Present: true, Hover: true})
	grid.Draw(dc)
	grid.Draw(dc)
	grid.Draw(dc)

	if len(events) != 1 {
		t.Fatalf("hover events = %d, expected 1", len(events))
	}
	if events[0].Tile == nil || *events[0].Tile != core.T(0, 0) {
		t.Errorf("hovered tile = %v, expected 0,0", events[0].Tile)
	}

	grid.SetPointer(Pointer{X: 190, Y: 100, Present: true, Hover: true})
	grid.Draw(dc)
	if len(events) != 2 || events[1].Tile == nil || *events[1].Tile != core.T(1, 0) {
		t.Fatalf("after move events = %+v, expected hover on 1,0", events)
	}

	grid.SetPointer(Pointer{})
	grid.Draw(dc)
	grid.Draw(dc)
	if len(events) != 3 || events[2].Tile != nil {
		t.Errorf("after leave events = %d, expected a third event with no tile", len(events))
	}
	if _, ok := grid.Hovered(); ok {
		t.Error("Hovered() ok = true after leave, expected false")
	}
}

func TestGridClick(t *testing.T) {
	cam := newCamera()
	meta := fetch.Meta{Title: "hello"}
	gal := &fakeGallery{images: map[core.Tile]gallery.Image{
		core.T(0, 0): {Image: solid(8, 8, color.RGBA{A: 255}), Meta: meta},
	}}
	grid := NewGrid(cam, fakeMask{core.T(0, 0): true}, gal, nil)
	dc := gg.NewContext(200, 200)
	defer dc.Close()

	var clicks []ClickEvent
	grid.OnClick(func(e ClickEvent) { clicks = append(clicks, e) })

	grid.SetPointer(Pointer{X: 100, Y: 100, Present: true, Hover: true})
	grid.Draw(dc)

	now := time.Now()
	if !grid.Click(100, 100, 200, 200, now) {
		t.Fatal("Click() = false, expected true")
	}
	if !grid.Click(20, 100, 200, 200, now) {
		t.Fatal("Click() on empty tile = false, expected true")
	}
	for _, px := range []float64{51, 149} {
		if !grid.Click(px, 100, 200, 200, now) {
			t.Errorf("Click(%v) in tile spacing = false, expected true", px)
		}
	}
	if len(clicks) != 2 {
		t.Fatalf("clicks = %d, expected 2", len(clicks))
	}
	if !clicks[0].Published || clicks[0].Meta.Title != "hello" {
		t.Errorf("first click = %+v, expected published tile with meta", clicks[0])
	}
	if clicks[1].Tile != core.T(-1, 0) || clicks[1].Published {
		t.Errorf("second click = %+v, expected empty tile -1,0", clicks[1])
	}

	cam.SetPanVelocity(1, now)
	if grid.Click(100, 100, 200, 200, now.Add(100*time.Millisecond)) {
		t.Error("Click() while speeding = true, expected false")
	}
	if !grid.Click(100, 100, 200, 200, now.Add(time.Second)) {
		t.Error("Click() after speed hold = false, expected true")
	}
}

func TestFontsQuantizeSizes(t *testing.T) {
	fonts, err := NewFonts()
	if err != nil {
		t.Fatalf("NewFonts() failed: %v", err)
	}
	defer fonts.Close()

	a := fonts.Regular(12)
	b := fonts.Regular(12.01)
	if a != b {
		t.Error("Regular(12) and Regular(12.01) returned different faces")
	}
	fonts.Bold(12)
	if got := fonts.Len(); got != 2 {
		t.Errorf("Len() = %d, expected 2", got)
	}
}
