package render

import (
	"math"
	"time"

	"github.com/gogpu/gg"

	"github.com/vovakirdan/tilegrid/internal/camera"
	"github.com/vovakirdan/tilegrid/internal/core"
	"github.com/vovakirdan/tilegrid/internal/fetch"
)

var colorBackground = gg.Hex("#121212")

// HoverEvent reports a change of hovered tile. Tile is nil when the
// pointer left every tile.
type HoverEvent struct {
	Tile *core.Tile
	Meta fetch.Meta
}

// ClickEvent reports a click on a tile.
type ClickEvent struct {
	Tile      core.Tile
	Published bool
	Meta      fetch.Meta
}

// Grid draws every visible tile and turns pointer state into hover and
// click events.
type Grid struct {
	camera  *camera.Camera
	mask    Mask
	gallery Gallery
	fonts   *Fonts

	pointer Pointer
	hovered *Hit

	hover core.Topic[HoverEvent]
	click core.Topic[ClickEvent]
}

// NewGrid creates a grid. fonts may be nil to skip text.
func NewGrid(cam *camera.Camera, mask Mask, gallery Gallery, fonts *Fonts) *Grid {
	return &Grid{
		camera:  cam,
		mask:    mask,
		gallery: gallery,
		fonts:   fonts,
	}
}

// Camera returns the grid camera.
func (g *Grid) Camera() *camera.Camera {
	return g.camera
}

// SetPointer updates the pointer used by the next Draw.
func (g *Grid) SetPointer(p Pointer) {
	g.pointer = p
}

// Pointer returns the current pointer.
func (g *Grid) Pointer() Pointer {
	return g.pointer
}

// Hovered returns the tile hovered during the last Draw.
func (g *Grid) Hovered() (Hit, bool) {
	if g.hovered == nil {
		return Hit{}, false
	}
	return *g.hovered, true
}

// OnHover subscribes to hover changes.
func (g *Grid) OnHover(fn func(HoverEvent)) (unsubscribe func()) {
	return g.hover.Listen(fn)
}

// OnClick subscribes to clicks.
func (g *Grid) OnClick(fn func(ClickEvent)) (unsubscribe func()) {
	return g.click.Listen(fn)
}

// Draw clears dc and paints every tile in the visible range.
func (g *Grid) Draw(dc *gg.Context) {
	w, h := dc.Width(), dc.Height()
	dc.ClearWithColor(colorBackground)

	state := &State{
		Camera:  g.camera,
		Width:   w,
		Height:  h,
		Pointer: g.pointer,
		Mask:    g.mask,
		Gallery: g.gallery,
		Fonts:   g.fonts,
	}

	var hovered *Hit
	left, top, right, bottom := g.camera.VisibleRange(w, h)
	for ty := top; ty <= bottom; ty++ {
		for tx := left; tx <= right; tx++ {
			hit, active := DrawTile(dc, core.T(tx, ty), state)
			if active {
				hovered = &hit
			}
		}
	}
	g.setHovered(hovered)
}

// Click emits a click for the tile under (px, py) in a w×h viewport.
// Points in the spacing between tiles hit nothing. Clicks while the camera
// is moving fast are dropped and reported as false.
func (g *Grid) Click(px, py float64, w, h int, now time.Time) bool {
	if g.camera.Speeding(now) {
		return false
	}
	wx, wy := g.camera.ScreenToWorld(px, py, w, h)
	if inGap(wx) || inGap(wy) {
		return true
	}
	t := core.T(int(math.Floor(wx)), int(math.Floor(wy)))
	ev := ClickEvent{Tile: t}
	ev.Published, _ = g.mask.Has(t.X, t.Y)
	if g.hovered != nil && g.hovered.Tile == t {
		ev.Meta = g.hovered.Meta
	}
	g.click.Publish(ev)
	return true
}

// inGap reports whether world coordinate v falls in the spacing around
// its tile.
func inGap(v float64) bool {
	f := v - math.Floor(v)
	return f < Spacing || f > 1-Spacing
}

func (g *Grid) setHovered(hit *Hit) {
	switch {
	case hit == nil && g.hovered == nil:
		return
	case hit != nil && g.hovered != nil && hit.Tile == g.hovered.Tile:
		// Meta can arrive after the first hover frame.
		g.hovered.Meta = hit.Meta
		g.hovered.Published = hit.Published
		return
	}
	g.hovered = hit
	ev := HoverEvent{}
	if hit != nil {
		t := hit.Tile
		ev.Tile = &t
		ev.Meta = hit.Meta
	}
	g.hover.Publish(ev)
}
