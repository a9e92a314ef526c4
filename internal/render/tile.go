// Package render paints the tile grid onto a gg canvas.
package render

import (
	"image"
	"math"
	"unicode/utf8"

	"github.com/gogpu/gg"

	"github.com/vovakirdan/tilegrid/internal/camera"
	"github.com/vovakirdan/tilegrid/internal/core"
	"github.com/vovakirdan/tilegrid/internal/fetch"
	"github.com/vovakirdan/tilegrid/internal/gallery"
)

// Tile geometry as fractions of a tile.
const (
	Spacing = 0.025
	Radius  = 0.05
)

// Speed bias applied to pan velocity before it scales tiers and text.
const speedBias = 64

const subtitleMax = 28

var (
	colorTile      = gg.Hex("#212121")
	colorPublished = gg.Hex("#424242")
	colorLabel     = gg.Hex("#616161")
)

// Mask answers occupancy. *mask.Mask implements it.
type Mask interface {
	Has(x, y int) (value, known bool)
}

// Gallery serves tile images. *gallery.Gallery implements it.
type Gallery interface {
	Get(tile core.Tile, scale float64) (gallery.Image, bool)
}

// Pointer is the mouse state for one frame.
type Pointer struct {
	X, Y float64

	// Present is false when the pointer left the viewport.
	Present bool

	// Hover is true for devices that can hover (mouse, not touch).
	Hover bool
}

// State is everything a tile needs to draw itself.
type State struct {
	Camera  *camera.Camera
	Width   int
	Height  int
	Pointer Pointer
	Mask    Mask
	Gallery Gallery
	Fonts   *Fonts
}

// Hit describes the tile under the pointer.
type Hit struct {
	Tile      core.Tile
	Published bool
	Meta      fetch.Meta
}

// ZoomedOut reports whether tiles are small relative to the viewport.
func (s *State) ZoomedOut() bool {
	return s.Camera.Zoom() <= float64(min(s.Width, s.Height))/4
}

// speed returns the biased pan speed, at least 1.
func (s *State) speed() float64 {
	return math.Max(1, s.Camera.PanVelocity()*speedBias)
}

// EffectiveScale is the tile scale used to pick an image tier. Fast
// panning lowers it so cheaper tiers are requested.
func (s *State) EffectiveScale() float64 {
	return s.Camera.Zoom() / s.speed()
}

// TextAlpha fades titles while the camera moves fast.
func (s *State) TextAlpha() float64 {
	return math.Min(1, 0.5+0.5/s.speed())
}

// HoverIntensity returns 0..1 for a tile at (x, y) of the given size.
func HoverIntensity(px, py, x, y, size float64, zoomedOut bool) float64 {
	dx := px - (x + size/2)
	dy := py - (y + size/2)
	k := 1.0
	if zoomedOut {
		k = 2
	}
	return 1 - math.Min(math.Sqrt(2*dx*dx+dy*dy)/(k*size), 1)
}

// FillSquare returns the centred square of an iw×ih image that covers a
// square destination without letterboxing.
func FillSquare(iw, ih int) image.Rectangle {
	side := min(iw, ih)
	x := (iw - side) / 2
	y := (ih - side) / 2
	return image.Rect(x, y, x+side, y+side)
}

// Truncate shortens s to n runes, ending with an ellipsis.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-3]) + "…"
}

// DrawTile paints tile t. It reports the tile when the pointer is inside it.
func DrawTile(dc *gg.Context, t core.Tile, s *State) (Hit, bool) {
	cam := s.Camera
	zoom := cam.Zoom()
	zoomedOut := s.ZoomedOut()

	x, y := cam.WorldToScreen(float64(t.X)+Spacing, float64(t.Y)+Spacing, s.Width, s.Height)
	size := zoom * (1 - 2*Spacing)
	radius := Radius * zoom

	p := s.Pointer
	active := p.Present && p.X > x && p.X < x+size && p.Y > y && p.Y < y+size
	hover := p.Hover && active

	var hoverK float64
	if p.Present && p.Hover {
		hoverK = HoverIntensity(p.X, p.Y, x, y, size, zoomedOut)
		lift := 4.0
		if zoomedOut {
			lift = 8
		}
		y -= hoverK * lift
	}

	dc.SetColor(colorTile.Color())
	dc.DrawRoundedRectangle(x, y, size, size, radius)
	_ = dc.Fill()

	inset := (Spacing + Radius) * zoom
	if s.Fonts != nil {
		dc.SetFont(s.Fonts.Regular(zoom / 18))
		dc.SetColor(colorLabel.Color())
		dc.DrawStringAnchored(t.String(), x+size-inset, y+size-inset, 1, 0.5)
	}

	hit := Hit{Tile: t}
	if published, _ := s.Mask.Has(t.X, t.Y); published {
		hit.Published = true

		dc.SetColor(colorPublished.Color())
		dc.DrawRoundedRectangle(x, y, size, size, radius)
		_ = dc.Fill()

		if img, ok := s.Gallery.Get(t, s.EffectiveScale()); ok {
			hit.Meta = img.Meta
			drawImage(dc, img, x, y, size)
			drawCaption(dc, img.Meta, x, y, size, radius, s)
		}
	}

	if hover && hoverK > 0 {
		alpha := 0.25
		if zoomedOut {
			alpha = 0.5
		}
		dc.PushLayer(gg.BlendOverlay, hoverK*alpha)
		dc.SetRGBA(1, 1, 1, 1)
		dc.DrawRoundedRectangle(x, y, size, size, radius)
		_ = dc.Fill()
		dc.PopLayer()
	}

	return hit, active
}

func drawImage(dc *gg.Context, img gallery.Image, x, y, size float64) {
	if img.Image == nil {
		return
	}
	iw, ih := img.Image.Bounds()
	if iw == 0 || ih == 0 {
		return
	}
	src := FillSquare(iw, ih)
	dc.DrawImageEx(img.Image, gg.DrawImageOptions{
		X:         x,
		Y:         y,
		DstWidth:  size,
		DstHeight: size,
		SrcRect:   &src,
	})
}

func drawCaption(dc *gg.Context, meta fetch.Meta, x, y, size, radius float64, s *State) {
	if meta.Title == "" && meta.Subtitle == "" {
		return
	}
	zoom := s.Camera.Zoom()

	grad := gg.NewLinearGradientBrush(0, y, 0, y+size).
		AddColorStop(0, gg.RGBA2(0, 0, 0, 0)).
		AddColorStop(1, gg.RGBA2(0, 0, 0, 0.65))
	dc.SetFillBrush(grad)
	dc.DrawRoundedRectangle(x, y, size, size, radius)
	_ = dc.Fill()

	if s.Fonts == nil {
		return
	}
	alpha := s.TextAlpha()
	left := x + 2*Spacing*zoom
	bottom := y + size

	if meta.Title != "" {
		ty := bottom - 2*Spacing*zoom
		if meta.Subtitle != "" {
			ty = bottom - (4*Spacing+0.1)*zoom
		}
		dc.SetFont(s.Fonts.Bold(zoom / 12))
		dc.SetRGBA(1, 1, 1, alpha)
		dc.DrawString(meta.Title, left, ty)
	}
	if meta.Subtitle != "" {
		dc.SetFont(s.Fonts.Regular(zoom / 16))
		dc.SetRGBA(1, 1, 1, alpha)
		dc.DrawString(Truncate(meta.Subtitle, subtitleMax), left, bottom-4*Spacing*zoom)
	}
}
