// Package mask answers whether a tile has published content.
//
// Occupancy is hosted remotely as one bitmap per square chunk of tiles.
// Chunks are fetched on first lookup and kept in a cost-bounded cache;
// lookups for a chunk that is still loading report "unknown" and never
// issue a second request.
package mask

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/dgraph-io/ristretto/v2"

	"github.com/vovakirdan/tilegrid/internal/core"
	"github.com/vovakirdan/tilegrid/internal/fetch"
)

// Fetcher issues deduplicated fetches. *fetch.Worker implements it.
type Fetcher interface {
	Fetch(url string, kind fetch.Kind, reload bool) *fetch.Call
}

// Config holds mask settings.
type Config struct {
	// ChunkSize is the side of a chunk in tiles.
	ChunkSize int

	// CacheSize is the number of resolved chunks kept.
	CacheSize int64

	// URL returns the resource for the chunk with origin (ex, ey).
	URL func(ex, ey int) string

	// Logger receives fetch failures; discarded when nil.
	Logger *log.Logger
}

// Mask is a chunked occupancy cache.
type Mask struct {
	size    int
	url     func(ex, ey int) string
	fetcher Fetcher
	logger  *log.Logger

	resolved *ristretto.Cache[string, *chunk]

	mu       sync.Mutex
	pending  map[string]struct{}
	disposed bool

	changed core.Topic[core.Rect]
}

// New creates a mask backed by fetcher.
func New(cfg Config, fetcher Fetcher) (*Mask, error) {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 1000
	}
	if cfg.URL == nil {
		return nil, fmt.Errorf("mask: chunk URL builder is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard)
	}

	resolved, err := ristretto.NewCache(&ristretto.Config[string, *chunk]{
		NumCounters:        cfg.CacheSize * 10,
		MaxCost:            cfg.CacheSize,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("mask: cannot create chunk cache: %w", err)
	}

	return &Mask{
		size:     cfg.ChunkSize,
		url:      cfg.URL,
		fetcher:  fetcher,
		logger:   cfg.Logger,
		resolved: resolved,
		pending:  make(map[string]struct{}),
	}, nil
}

// ChunkSize returns the side of a chunk in tiles.
func (m *Mask) ChunkSize() int {
	return m.size
}

// Has reports whether tile (x, y) is occupied. known is false while the
// covering chunk is absent or pending; in that case a fetch is started
// unless one is already in flight, and the caller should ask again later.
func (m *Mask) Has(x, y int) (value, known bool) {
	ex, ey := ChunkOrigin(x, y, m.size)
	key := chunkKey(ex, ey)

	if c, ok := m.resolved.Get(key); ok {
		return c.test(x-ex, y-ey, m.size), true
	}

	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return false, false
	}
	if _, inFlight := m.pending[key]; inFlight {
		m.mu.Unlock()
		return false, false
	}
	// The chunk may have resolved between the lookup and the lock.
	if c, ok := m.resolved.Get(key); ok {
		m.mu.Unlock()
		return c.test(x-ex, y-ey, m.size), true
	}
	m.pending[key] = struct{}{}
	m.mu.Unlock()

	call := m.fetcher.Fetch(m.url(ex, ey), fetch.KindBytes, false)
	go m.await(key, ex, ey, call)

	return false, false
}

// State returns the cache state of the chunk covering (x, y).
func (m *Mask) State(x, y int) ChunkState {
	ex, ey := ChunkOrigin(x, y, m.size)
	key := chunkKey(ex, ey)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.resolved.Get(key); ok {
		return Resolved
	}
	if _, ok := m.pending[key]; ok {
		return Pending
	}
	return Absent
}

// Patch overrides the occupancy of tile (x, y) locally. It is a no-op
// unless the covering chunk is resolved.
func (m *Mask) Patch(x, y int, value bool) {
	ex, ey := ChunkOrigin(x, y, m.size)
	key := chunkKey(ex, ey)

	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return
	}
	c, ok := m.resolved.Get(key)
	if !ok {
		m.mu.Unlock()
		return
	}
	m.store(key, c.with(x-ex, y-ey, m.size, value))
	m.mu.Unlock()

	m.changed.Publish(m.bounds(ex, ey))
}

// Listen registers fn to receive the bounds of every chunk that changes.
func (m *Mask) Listen(fn func(bounds core.Rect)) (unsubscribe func()) {
	return m.changed.Listen(fn)
}

// Dispose drops every chunk and listener. Fetches still in flight are
// ignored when they complete.
func (m *Mask) Dispose() {
	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return
	}
	m.disposed = true
	m.pending = make(map[string]struct{})
	m.mu.Unlock()

	m.changed.Clear()
	m.resolved.Close()
}

// await stores the outcome of a chunk fetch. Caller must not hold mu.
func (m *Mask) await(key string, ex, ey int, call *fetch.Call) {
	res := call.Result()

	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return
	}
	delete(m.pending, key)

	switch {
	case res.Err == nil:
		m.store(key, decodeChunk(res.Body, m.size))
	case fetch.IsAbsent(res.Err):
		m.store(key, &chunk{})
	default:
		m.mu.Unlock()
		m.logger.Debug("mask chunk fetch failed", "chunk", key, "error", res.Err)
		return
	}
	m.mu.Unlock()

	m.changed.Publish(m.bounds(ex, ey))
}

// store caches c under key. Caller must hold mu.
func (m *Mask) store(key string, c *chunk) {
	if !m.resolved.Set(key, c, 1) {
		m.logger.Debug("mask chunk dropped by cache", "chunk", key)
	}
	m.resolved.Wait()
}

func (m *Mask) bounds(ex, ey int) core.Rect {
	return core.NewRect(ex, ey, m.size, m.size)
}
