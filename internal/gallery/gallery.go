// Package gallery is the multi-resolution image cache for tiles.
//
// Every tile can be served at several resolution tiers. A lookup returns
// the best tier already decoded while starting the load of the tier that
// fits the requested scale, so the caller always has something to draw
// once any tier has arrived. Entries are evicted by a periodic sweep that
// enforces a hard capacity and a time-to-live.
package gallery

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gogpu/gg"

	"github.com/vovakirdan/tilegrid/internal/core"
	"github.com/vovakirdan/tilegrid/internal/fetch"
)

// Fetcher issues deduplicated fetches. *fetch.Worker implements it.
type Fetcher interface {
	Fetch(url string, kind fetch.Kind, reload bool) *fetch.Call
}

// Config holds gallery settings.
type Config struct {
	// Tiers is the resolution ladder, smallest first.
	Tiers []Tier

	// Capacity is the number of entries kept after a sweep.
	Capacity int

	// TTL evicts entries untouched for longer.
	TTL time.Duration

	// SweepInterval is the eviction period; negative disables the
	// background sweeper (Sweep can still be called directly).
	SweepInterval time.Duration

	// URL returns the resource for a tile at a tier size.
	URL func(tile core.Tile, size int) string

	// Logger receives load failures; discarded when nil.
	Logger *log.Logger

	// Now is the clock; time.Now when nil.
	Now func() time.Time
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Tiers:         DefaultTiers(),
		Capacity:      1000,
		TTL:           10 * time.Second,
		SweepInterval: 200 * time.Millisecond,
	}
}

// Image is a lookup result.
type Image struct {
	Image *gg.ImageBuf
	Tier  Tier
	Meta  fetch.Meta
}

// Event reports that a tier of a tile changed.
type Event struct {
	Tile core.Tile
	Tier Tier
}

// PatchOptions describes a content replacement.
type PatchOptions struct {
	// Meta replaces the metadata when set.
	Meta *fetch.Meta

	// Image, when set, is decoded and swapped into every loaded tier.
	// Otherwise loaded tiers are reloaded from the network.
	Image []byte
}

type entry struct {
	tile    core.Tile
	slots   []slot
	meta    fetch.Meta
	touched time.Time
}

// Gallery is a multi-resolution image cache.
type Gallery struct {
	tiers   []Tier
	ttl     time.Duration
	url     func(core.Tile, int) string
	fetcher Fetcher
	logger  *log.Logger
	now     func() time.Time

	mu       sync.Mutex
	entries  map[core.Tile]*entry
	capacity int
	tokens   uint64
	disposed bool

	changed core.Topic[Event]

	stop chan struct{}
	done chan struct{}
}

// New creates a gallery backed by fetcher and starts its sweeper.
func New(cfg Config, fetcher Fetcher) (*Gallery, error) {
	defaults := DefaultConfig()
	if cfg.Tiers == nil {
		cfg.Tiers = defaults.Tiers
	}
	if err := ValidateTiers(cfg.Tiers); err != nil {
		return nil, err
	}
	if cfg.URL == nil {
		return nil, fmt.Errorf("gallery: tile URL builder is required")
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = defaults.Capacity
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaults.TTL
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = defaults.SweepInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	g := &Gallery{
		tiers:    append([]Tier(nil), cfg.Tiers...),
		ttl:      cfg.TTL,
		url:      cfg.URL,
		fetcher:  fetcher,
		logger:   cfg.Logger,
		now:      cfg.Now,
		entries:  make(map[core.Tile]*entry),
		capacity: cfg.Capacity,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	if cfg.SweepInterval > 0 {
		go g.sweepLoop(cfg.SweepInterval)
	} else {
		close(g.done)
	}

	return g, nil
}

// Tiers returns the resolution ladder.
func (g *Gallery) Tiers() []Tier {
	return append([]Tier(nil), g.tiers...)
}

// Get returns the best decoded image for tile at the given effective scale
// (screen pixels per tile). It reports false when no tier has decoded yet;
// a first lookup creates the entry and starts loading the initial tier.
func (g *Gallery) Get(tile core.Tile, scale float64) (Image, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.disposed {
		return Image{}, false
	}

	e, ok := g.entries[tile]
	if !ok {
		e = &entry{
			tile:    tile,
			slots:   make([]slot, len(g.tiers)),
			touched: g.now(),
		}
		g.entries[tile] = e
		g.load(e, 0, false)
		return Image{}, false
	}
	e.touched = g.now()

	want := target(g.tiers, scale)
	if e.slots[want].state == unloaded {
		g.load(e, want, false)
	}

	b := best(g.tiers, e.slots, want, scale)
	if b < 0 {
		return Image{}, false
	}
	return Image{Image: e.slots[b].image, Tier: g.tiers[b], Meta: e.meta}, true
}

// Missing reports whether the source has no initial image for tile.
func (g *Gallery) Missing(tile core.Tile) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.entries[tile]
	return ok && e.slots[0].state == absent
}

// Contains reports whether tile has an entry, without touching it.
func (g *Gallery) Contains(tile core.Tile) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.entries[tile]
	return ok
}

// Len returns the number of entries.
func (g *Gallery) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}

// Limit changes the capacity enforced by the next sweep.
func (g *Gallery) Limit(capacity int) {
	if capacity < 1 {
		capacity = 1
	}
	g.mu.Lock()
	g.capacity = capacity
	g.mu.Unlock()
}

// Capacity returns the current capacity.
func (g *Gallery) Capacity() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.capacity
}

// Patch replaces the content of a cached tile. Tiers that decoded or were
// found missing take the new image, or reload when none is given. Tiles
// without an entry are left alone; they will load fresh content on their
// next lookup.
func (g *Gallery) Patch(tile core.Tile, opts PatchOptions) error {
	var img *gg.ImageBuf
	if len(opts.Image) > 0 {
		decodedImg, err := fetch.DecodeImage(opts.Image)
		if err != nil {
			return fmt.Errorf("gallery: cannot patch %s: %w", tile, err)
		}
		img = decodedImg
	}

	g.mu.Lock()
	e, ok := g.entries[tile]
	if g.disposed || !ok {
		g.mu.Unlock()
		return nil
	}
	if opts.Meta != nil {
		e.meta = *opts.Meta
	}

	var swapped []Tier
	for i := range e.slots {
		if st := e.slots[i].state; st != decoded && st != absent {
			continue
		}
		if img != nil {
			e.slots[i] = slot{state: decoded, image: img}
			swapped = append(swapped, g.tiers[i])
			continue
		}
		g.load(e, i, true)
	}
	g.mu.Unlock()

	for _, tier := range swapped {
		g.changed.Publish(Event{Tile: tile, Tier: tier})
	}
	return nil
}

// Listen registers fn to receive an event whenever a tier decodes or is
// patched.
func (g *Gallery) Listen(fn func(Event)) (unsubscribe func()) {
	return g.changed.Listen(fn)
}

// Sweep evicts entries over capacity, oldest-touched first, and then every
// entry untouched for longer than the TTL. It returns the number evicted.
func (g *Gallery) Sweep() int {
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	evicted := 0
	if over := len(g.entries) - g.capacity; over > 0 {
		byAge := make([]*entry, 0, len(g.entries))
		for _, e := range g.entries {
			byAge = append(byAge, e)
		}
		sort.Slice(byAge, func(i, j int) bool {
			return byAge[i].touched.Before(byAge[j].touched)
		})
		for _, e := range byAge[:over] {
			g.evict(e)
			evicted++
		}
	}

	for _, e := range g.entries {
		if now.Sub(e.touched) > g.ttl {
			g.evict(e)
			evicted++
		}
	}

	return evicted
}

// Dispose stops the sweeper and releases every entry. Loads still in
// flight are ignored when they complete.
func (g *Gallery) Dispose() {
	g.mu.Lock()
	if g.disposed {
		g.mu.Unlock()
		return
	}
	g.disposed = true
	for _, e := range g.entries {
		g.evict(e)
	}
	g.mu.Unlock()

	close(g.stop)
	<-g.done
	g.changed.Clear()
}

// load starts fetching tier i of e. Caller must hold mu.
func (g *Gallery) load(e *entry, i int, reload bool) {
	g.tokens++
	token := g.tokens
	e.slots[i].state = loading
	e.slots[i].token = token

	call := g.fetcher.Fetch(g.url(e.tile, g.tiers[i].Size), fetch.KindImage, reload)
	go g.await(e, i, token, call)
}

// evict releases every tier of e and drops it. Caller must hold mu.
func (g *Gallery) evict(e *entry) {
	for i := range e.slots {
		e.slots[i].release()
	}
	delete(g.entries, e.tile)
}

func (g *Gallery) await(e *entry, i int, token uint64, call *fetch.Call) {
	res := call.Result()

	g.mu.Lock()
	if g.disposed || g.entries[e.tile] != e || e.slots[i].token != token {
		g.mu.Unlock()
		return
	}

	if res.Err != nil {
		if fetch.IsAbsent(res.Err) {
			e.slots[i] = slot{state: absent}
			g.mu.Unlock()
			g.logger.Debug("tile image missing", "tile", e.tile, "tier", g.tiers[i].Name)
			return
		}
		e.slots[i].release()
		g.mu.Unlock()
		g.logger.Warn("tile image load failed", "tile", e.tile, "tier", g.tiers[i].Name, "error", res.Err)
		return
	}

	e.slots[i] = slot{state: decoded, image: res.Image}
	e.meta.Fill(res.Meta)
	g.mu.Unlock()

	g.changed.Publish(Event{Tile: e.tile, Tier: g.tiers[i]})
}

func (g *Gallery) sweepLoop(interval time.Duration) {
	defer close(g.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-g.stop:
			return
		case <-ticker.C:
			g.Sweep()
		}
	}
}
