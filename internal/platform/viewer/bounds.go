package viewer

import (
	"math"

	"github.com/vovakirdan/tilegrid/internal/camera"
	"github.com/vovakirdan/tilegrid/internal/config"
)

// Zoom holds the zoom bounds and the starting zoom for a viewport.
type Zoom struct {
	Min, Initial, Max float64
}

// ZoomFor derives zoom bounds from the viewport. Small viewports (larger
// side at most smallViewport) show fewer, bigger tiles. Non-zero config
// values win over the derived ones.
func ZoomFor(w, h int, cfg config.CameraConfig, smallViewport int) Zoom {
	wmin := float64(max(min(w, h), 1))
	small := max(w, h) <= smallViewport

	z := Zoom{Min: wmin / 5, Initial: wmin / 3.5, Max: camera.DefaultMaxZoom}
	if small {
		z.Min, z.Initial = wmin/4, wmin/2.5
	}
	if cfg.MaxZoom > 0 {
		z.Max = cfg.MaxZoom
	}
	if cfg.MinZoom > 0 {
		z.Min = cfg.MinZoom
	}
	z.Min = math.Min(z.Min, z.Max)
	if cfg.Zoom > 0 {
		z.Initial = cfg.Zoom
	}
	z.Initial = math.Max(z.Min, math.Min(z.Initial, z.Max))
	return z
}

// CapacityFor is the number of gallery entries that covers a viewport at
// the smallest zoom, twice over.
func CapacityFor(w, h int, minZoom float64) int {
	if minZoom <= 0 {
		minZoom = 1
	}
	wmin, wmax := float64(min(w, h)), float64(max(w, h))
	return (int(math.Ceil(wmin/minZoom))+4)*(int(math.Ceil(wmax/minZoom))+4)*2
}
