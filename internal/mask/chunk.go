package mask

import (
	"strconv"

	"github.com/bits-and-blooms/bitset"

	"github.com/vovakirdan/tilegrid/internal/core"
)

// DefaultChunkSize is the side of a chunk in tiles.
const DefaultChunkSize = 256

// ChunkState is the cache state of one chunk.
type ChunkState uint8

const (
	// Absent means the chunk was never requested (or was evicted).
	Absent ChunkState = iota
	// Pending means a fetch for the chunk is in flight.
	Pending
	// Resolved means the chunk bitmap is known; a missing chunk resolves empty.
	Resolved
)

func (s ChunkState) String() string {
	switch s {
	case Absent:
		return "absent"
	case Pending:
		return "pending"
	case Resolved:
		return "resolved"
	}
	return "unknown"
}

// ChunkOrigin returns the top-left tile of the chunk covering (x, y).
func ChunkOrigin(x, y, size int) (int, int) {
	return core.FloorDiv(x, size) * size, core.FloorDiv(y, size) * size
}

// BitPos returns the byte index and bit within the byte for the tile at
// local chunk coordinates (lx, ly). Rows are laid out one after another,
// least significant bit first.
func BitPos(lx, ly, size int) (byteIndex, bit int) {
	pos := ly*size + lx
	return pos >> 3, pos & 7
}

// BitmapLen returns the wire length of a chunk bitmap.
func BitmapLen(size int) int {
	return (size*size + 7) / 8
}

// Bitmap is the wire form of one chunk.
type Bitmap []byte

// NewBitmap returns an all-empty bitmap for a chunk of the given size.
func NewBitmap(size int) Bitmap {
	return make(Bitmap, BitmapLen(size))
}

// Set marks the tile at local coordinates (lx, ly).
func (b Bitmap) Set(lx, ly, size int, v bool) {
	i, bit := BitPos(lx, ly, size)
	if i >= len(b) {
		return
	}
	if v {
		b[i] |= 1 << bit
	} else {
		b[i] &^= 1 << bit
	}
}

// Test reports whether the tile at local coordinates (lx, ly) is marked.
func (b Bitmap) Test(lx, ly, size int) bool {
	i, bit := BitPos(lx, ly, size)
	return i < len(b) && b[i]&(1<<bit) != 0
}

// chunk is a resolved chunk. A nil bit set is the empty chunk of a
// missing resource. Chunks are never mutated once cached.
type chunk struct {
	bits *bitset.BitSet
}

// decodeChunk packs wire bytes into 64-bit words. Both layouts are least
// significant bit first, so bit i of the bitmap is bit i of the set.
func decodeChunk(body []byte, size int) *chunk {
	n := BitmapLen(size)
	if len(body) > n {
		body = body[:n]
	}
	words := make([]uint64, (size*size+63)/64)
	for i, b := range body {
		words[i/8] |= uint64(b) << (8 * (i % 8))
	}
	return &chunk{bits: bitset.From(words)}
}

func (c *chunk) test(lx, ly, size int) bool {
	if c.bits == nil {
		return false
	}
	return c.bits.Test(uint(ly*size + lx))
}

// with returns a copy of c with one tile changed.
func (c *chunk) with(lx, ly, size int, v bool) *chunk {
	var bits *bitset.BitSet
	if c.bits == nil {
		bits = bitset.New(uint(size * size))
	} else {
		bits = c.bits.Clone()
	}
	bits.SetTo(uint(ly*size+lx), v)
	return &chunk{bits: bits}
}

func chunkKey(ex, ey int) string {
	return strconv.Itoa(ex) + ":" + strconv.Itoa(ey)
}
