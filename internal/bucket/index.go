package bucket

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/vovakirdan/tilegrid/internal/core"
	"github.com/vovakirdan/tilegrid/internal/mask"
)

// imageExts are the object extensions served as tile images, in lookup order.
var imageExts = []string{".jpg", ".jpeg", ".png", ".webp", ".gif"}

// parseTile extracts the tile coordinate from an object or file name of the
// form tile-{x}-{y}[-{size}].{ext}.
func parseTile(name string) (core.Tile, bool) {
	ext := filepath.Ext(name)
	if !isImageExt(ext) && ext != ".yaml" {
		return core.Tile{}, false
	}
	var x, y int
	if _, err := fmt.Sscanf(strings.TrimSuffix(name, ext), "tile-%d-%d", &x, &y); err != nil {
		return core.Tile{}, false
	}
	return core.T(x, y), true
}

func isImageExt(ext string) bool {
	for _, e := range imageExts {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

// index tracks which tiles have at least one image file, so mask chunks can
// be synthesized for directories that carry no tilemap files.
type index struct {
	size int

	mu    sync.RWMutex
	files map[core.Tile]int // image files per tile
}

func newIndex(size int) *index {
	if size <= 0 {
		size = mask.DefaultChunkSize
	}
	return &index{size: size, files: make(map[core.Tile]int)}
}

// scan rebuilds the index from the image files in dir.
func (ix *index) scan(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("bucket: cannot read %s: %w", dir, err)
	}
	files := make(map[core.Tile]int)
	for _, e := range entries {
		if e.IsDir() || !isImageExt(filepath.Ext(e.Name())) {
			continue
		}
		if t, ok := parseTile(e.Name()); ok {
			files[t]++
		}
	}
	ix.mu.Lock()
	ix.files = files
	ix.mu.Unlock()
	return nil
}

// add records an image file for t and reports whether t became published.
func (ix *index) add(t core.Tile) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.files[t]++
	return ix.files[t] == 1
}

// remove forgets an image file of t and reports whether t became empty.
func (ix *index) remove(t core.Tile) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	n, ok := ix.files[t]
	if !ok {
		return false
	}
	if n <= 1 {
		delete(ix.files, t)
		return true
	}
	ix.files[t] = n - 1
	return false
}

func (ix *index) has(t core.Tile) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.files[t] > 0
}

// chunk returns the bitmap of the chunk with origin (ex, ey), or false when
// no tile of the chunk is published.
func (ix *index) chunk(ex, ey int) (mask.Bitmap, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	b := mask.NewBitmap(ix.size)
	found := false
	for t := range ix.files {
		lx, ly := t.X-ex, t.Y-ey
		if lx < 0 || ly < 0 || lx >= ix.size || ly >= ix.size {
			continue
		}
		b.Set(lx, ly, ix.size, true)
		found = true
	}
	return b, found
}

func (ix *index) len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.files)
}
