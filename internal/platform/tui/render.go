package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/gogpu/gg"
)

// halfBlock paints the upper pixel of a cell in the foreground color and
// the lower one in the background color.
const halfBlock = "▀"

// Presenter converts a canvas to terminal cells, two pixels per cell.
type Presenter struct {
	renderer *lipgloss.Renderer
	styles   map[uint64]lipgloss.Style // bounded, see Present
}

// NewPresenter creates a presenter. A nil renderer selects the default one.
func NewPresenter(r *lipgloss.Renderer) *Presenter {
	if r == nil {
		r = lipgloss.DefaultRenderer()
	}
	return &Presenter{renderer: r, styles: make(map[uint64]lipgloss.Style)}
}

// CanvasSize returns the canvas size for a cols×rows cell area where every
// terminal pixel is scale×scale canvas pixels.
func CanvasSize(cols, rows, scale int) (int, int) {
	scale = max(scale, 1)
	return max(cols, 1) * scale, max(rows, 1) * 2 * scale
}

// Present renders dc into cols×rows cells. Adjacent cells with the same
// colors share one styled run.
func (p *Presenter) Present(dc *gg.Context, cols, rows, scale int) string {
	scale = max(scale, 1)
	_ = dc.FlushGPU()
	pm := dc.ResizeTarget()
	data, stride, height := pm.Data(), pm.Width(), pm.Height()

	if len(p.styles) > 4096 {
		clear(p.styles)
	}

	var sb strings.Builder
	sb.Grow(cols * rows * 4)

	for cy := 0; cy < rows; cy++ {
		if cy > 0 {
			sb.WriteByte('\n')
		}
		cx := 0
		for cx < cols {
			key := p.cell(data, stride, height, cx, cy, scale)
			n := 1
			for cx+n < cols && p.cell(data, stride, height, cx+n, cy, scale) == key {
				n++
			}
			sb.WriteString(p.style(key).Render(strings.Repeat(halfBlock, n)))
			cx += n
		}
	}
	return sb.String()
}

// cell packs the top and bottom colors of a cell into one key.
func (p *Presenter) cell(data []uint8, stride, height, cx, cy, scale int) uint64 {
	top := average(data, stride, height, cx*scale, 2*cy*scale, scale)
	bottom := average(data, stride, height, cx*scale, (2*cy+1)*scale, scale)
	return uint64(top)<<24 | uint64(bottom)
}

func (p *Presenter) style(key uint64) lipgloss.Style {
	if s, ok := p.styles[key]; ok {
		return s
	}
	s := p.renderer.NewStyle().
		Foreground(lipgloss.Color(hex(uint32(key >> 24)))).
		Background(lipgloss.Color(hex(uint32(key & 0xffffff))))
	p.styles[key] = s
	return s
}

// average returns the mean RGB of the n×n block at (x0, y0) as 0xRRGGBB.
// Pixels outside the buffer are skipped.
func average(data []uint8, stride, height, x0, y0, n int) uint32 {
	var r, g, b, count int
	for y := y0; y < y0+n && y < height; y++ {
		for x := x0; x < x0+n && x < stride; x++ {
			i := (y*stride + x) * 4
			r += int(data[i])
			g += int(data[i+1])
			b += int(data[i+2])
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return uint32(r/count)<<16 | uint32(g/count)<<8 | uint32(b/count)
}

func hex(c uint32) string {
	return fmt.Sprintf("#%06x", c&0xffffff)
}
