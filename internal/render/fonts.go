package render

import (
	"fmt"
	"math"

	"github.com/gogpu/gg/cache"
	"github.com/gogpu/gg/text"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

// faceCacheSize bounds the number of distinct (weight, size) faces kept.
const faceCacheSize = 256

// Fonts hands out label faces. Sizes are quantized to quarter points so
// continuous zooming does not create a new face every frame.
type Fonts struct {
	regular *text.FontSource
	bold    *text.FontSource
	faces   *cache.ShardedCache[uint64, text.Face]
}

// NewFonts loads the embedded Go fonts.
func NewFonts() (*Fonts, error) {
	regular, err := text.NewFontSource(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("render: cannot load regular font: %w", err)
	}
	bold, err := text.NewFontSource(gobold.TTF)
	if err != nil {
		_ = regular.Close()
		return nil, fmt.Errorf("render: cannot load bold font: %w", err)
	}
	return &Fonts{
		regular: regular,
		bold:    bold,
		faces:   cache.NewSharded[uint64, text.Face](faceCacheSize, cache.Uint64Hasher),
	}, nil
}

// Regular returns the regular face at size.
func (f *Fonts) Regular(size float64) text.Face {
	return f.face(f.regular, size, 0)
}

// Bold returns the bold face at size.
func (f *Fonts) Bold(size float64) text.Face {
	return f.face(f.bold, size, 1)
}

// Len returns the number of cached faces.
func (f *Fonts) Len() int {
	return f.faces.Len()
}

// Close releases the font sources.
func (f *Fonts) Close() error {
	f.faces.Clear()
	err := f.regular.Close()
	if berr := f.bold.Close(); err == nil {
		err = berr
	}
	return err
}

func (f *Fonts) face(src *text.FontSource, size float64, weight uint64) text.Face {
	q := math.Max(1, math.Round(size*4))
	key := uint64(q)<<1 | weight
	return f.faces.GetOrCreate(key, func() text.Face {
		return src.Face(q / 4)
	})
}
