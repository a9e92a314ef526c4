// Package demo is a self-contained content source. It answers mask and
// tile requests in-process with a deterministic sparse layout and
// procedurally drawn images, so the grid runs without any bucket.
package demo

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"

	"github.com/gogpu/gg"
	"github.com/gogpu/gg/cache"

	"github.com/vovakirdan/tilegrid/internal/fetch"
	"github.com/vovakirdan/tilegrid/internal/mask"
)

// imageCacheSize bounds the number of rendered tiles kept.
const imageCacheSize = 512

var words = []string{
	"amber", "harbor", "lantern", "meadow", "quartz", "ridge", "saffron",
	"tundra", "velvet", "willow", "cobalt", "ember", "fjord", "juniper",
}

// Transport is an http.RoundTripper serving the demo bucket layout.
type Transport struct {
	chunkSize int
	images    *cache.ShardedCache[string, []byte]
}

// NewTransport creates a transport whose masks use chunkSize.
func NewTransport(chunkSize int) *Transport {
	if chunkSize <= 0 {
		chunkSize = mask.DefaultChunkSize
	}
	return &Transport{
		chunkSize: chunkSize,
		images:    cache.NewSharded[string, []byte](imageCacheSize, cache.StringHasher),
	}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		return respond(req, http.StatusMethodNotAllowed, nil, nil), nil
	}
	name := req.URL.Path[strings.LastIndexByte(req.URL.Path, '/')+1:]

	var ex, ey int
	if _, err := fmt.Sscanf(name, "tilemap-%d-%d.bin", &ex, &ey); err == nil {
		return respond(req, http.StatusOK, t.Chunk(ex, ey), nil), nil
	}

	var x, y, size int
	if _, err := fmt.Sscanf(name, "tile-%d-%d-%d.jpg", &x, &y, &size); err == nil {
		if !Published(x, y) || size <= 0 || size > 4096 {
			return respond(req, http.StatusNotFound, nil, nil), nil
		}
		body, err := t.Image(x, y, size)
		if err != nil {
			return nil, fmt.Errorf("demo: cannot render tile %d,%d: %w", x, y, err)
		}
		h := http.Header{}
		h.Set("Content-Type", "image/png")
		MetaFor(x, y).WriteHeader(h)
		return respond(req, http.StatusOK, body, h), nil
	}

	return respond(req, http.StatusNotFound, nil, nil), nil
}

// Chunk returns the mask bitmap of the chunk at (ex, ey).
func (t *Transport) Chunk(ex, ey int) mask.Bitmap {
	b := mask.NewBitmap(t.chunkSize)
	for ly := 0; ly < t.chunkSize; ly++ {
		for lx := 0; lx < t.chunkSize; lx++ {
			if Published(ex+lx, ey+ly) {
				b.Set(lx, ly, t.chunkSize, true)
			}
		}
	}
	return b
}

// Image renders the tile at (x, y) as a size×size PNG.
func (t *Transport) Image(x, y, size int) ([]byte, error) {
	key := fmt.Sprintf("%d:%d:%d", x, y, size)
	if b, ok := t.images.Get(key); ok {
		return b, nil
	}

	dc := gg.NewContext(size, size)
	defer dc.Close()

	h := hash(x, y)
	hue := float64(h%360) / 360
	s := float64(size)

	grad := gg.NewLinearGradientBrush(0, 0, s, s).
		AddColorStop(0, hsl(hue, 0.55, 0.45)).
		AddColorStop(1, hsl(math.Mod(hue+0.15, 1), 0.6, 0.25))
	dc.SetFillBrush(grad)
	dc.DrawRectangle(0, 0, s, s)
	if err := dc.Fill(); err != nil {
		return nil, err
	}

	// A few discs seeded by the coordinate give every tile its own face.
	for i := 0; i < 3; i++ {
		r := hash(x+i*7919, y-i*104729)
		cx := float64(r%1000) / 1000 * s
		cy := float64((r/1000)%1000) / 1000 * s
		rad := (0.1 + float64((r/1000000)%300)/1000) * s
		dc.SetColor(hsl(math.Mod(hue+0.5, 1), 0.5, 0.7).Color())
		dc.PushLayer(gg.BlendNormal, 0.35)
		dc.DrawCircle(cx, cy, rad)
		_ = dc.Fill()
		dc.PopLayer()
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, err
	}
	body := buf.Bytes()
	t.images.Set(key, body)
	return body, nil
}

// Published reports whether the demo layout occupies (x, y). Tiles near
// the origin are dense and the rest of the plane is sparse.
func Published(x, y int) bool {
	density := uint64(12)
	if x*x+y*y <= 64 {
		density = 60
	}
	return hash(x, y)%100 < density
}

// MetaFor returns the metadata of a demo tile.
func MetaFor(x, y int) fetch.Meta {
	h := hash(y, x)
	a := words[h%uint64(len(words))]
	b := words[(h/31)%uint64(len(words))]
	return fetch.Meta{
		Title:       fmt.Sprintf("Plot %d,%d", x, y),
		Subtitle:    a + " " + b + " by the " + words[(h/977)%uint64(len(words))],
		Description: fmt.Sprintf("A procedurally drawn plot at %d,%d.", x, y),
		Link:        fmt.Sprintf("https://example.com/plots/%d/%d", x, y),
		Details: map[string]any{
			"preview": h%4 != 0,
			"seed":    float64(h % 100000),
		},
	}
}

// hash mixes a coordinate pair (splitmix64 finalizer).
func hash(x, y int) uint64 {
	z := uint64(int64(x))*0x9e3779b97f4a7c15 ^ uint64(int64(y))*0xbf58476d1ce4e5b9
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func hsl(h, s, l float64) gg.RGBA {
	c := (1 - math.Abs(2*l-1)) * s
	hp := h * 6
	x := c * (1 - math.Abs(math.Mod(hp, 2)-1))
	var r, g, b float64
	switch {
	case hp < 1:
		r, g = c, x
	case hp < 2:
		r, g = x, c
	case hp < 3:
		g, b = c, x
	case hp < 4:
		g, b = x, c
	case hp < 5:
		r, b = x, c
	default:
		r, b = c, x
	}
	m := l - c/2
	return gg.RGBA2(r+m, g+m, b+m, 1)
}

func respond(req *http.Request, code int, body []byte, h http.Header) *http.Response {
	if h == nil {
		h = http.Header{}
	}
	if req.Method == http.MethodHead {
		body = nil
	}
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", code, http.StatusText(code)),
		StatusCode:    code,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        h,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}
