package core

import (
	"fmt"
	"strconv"
	"strings"
)

// Tile is one cell of the unbounded integer grid.
type Tile struct {
	X, Y int
}

// T is shorthand for Tile{x, y}.
func T(x, y int) Tile {
	return Tile{X: x, Y: y}
}

// Key returns the cache key "x:y".
func (t Tile) Key() string {
	return strconv.Itoa(t.X) + ":" + strconv.Itoa(t.Y)
}

// String returns the label form "x,y".
func (t Tile) String() string {
	return strconv.Itoa(t.X) + "," + strconv.Itoa(t.Y)
}

// ParseTile parses "x,y" or "x:y" (surrounding spaces allowed).
func ParseTile(s string) (Tile, error) {
	s = strings.TrimSpace(s)
	sep := strings.IndexAny(s, ",:")
	if sep < 0 {
		return Tile{}, fmt.Errorf("core: cannot parse tile %q: missing separator", s)
	}
	x, err := strconv.Atoi(strings.TrimSpace(s[:sep]))
	if err != nil {
		return Tile{}, fmt.Errorf("core: cannot parse tile %q: %w", s, err)
	}
	y, err := strconv.Atoi(strings.TrimSpace(s[sep+1:]))
	if err != nil {
		return Tile{}, fmt.Errorf("core: cannot parse tile %q: %w", s, err)
	}
	return Tile{X: x, Y: y}, nil
}
