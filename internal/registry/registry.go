// Package registry provides a global registry of tile content sources.
// Sources register themselves in init() functions, allowing the platform
// to discover and open them without hardcoded dependencies.
package registry

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/vovakirdan/tilegrid/internal/config"
	"github.com/vovakirdan/tilegrid/internal/core"
)

// Source is a provider of mask chunks and tile images.
type Source interface {
	// ID returns a unique identifier for this source (e.g., "demo").
	// Used for CLI flags and position storage.
	ID() string

	// Title returns a human-readable name for display.
	Title() string

	// Open resolves the endpoint the grid fetches from.
	Open(cfg config.SourceConfig) (*Endpoint, error)
}

// Endpoint tells the caches where resources live.
type Endpoint struct {
	// Key identifies the content for position storage.
	Key string

	// MaskURL returns the chunk resource for a chunk origin.
	MaskURL func(ex, ey int) string

	// TileURL returns the image resource for a tile at a tier size.
	TileURL func(t core.Tile, size int) string

	// EventsURL is the live update stream; empty when unsupported.
	EventsURL string

	// Client performs the requests.
	Client *http.Client
}

// MaskPath is the object name of a mask chunk.
func MaskPath(ex, ey int) string {
	return fmt.Sprintf("tilemap-%d-%d.bin", ex, ey)
}

// TilePath is the object name of a tile image at a tier size.
func TilePath(x, y, size int) string {
	return fmt.Sprintf("tile-%d-%d-%d.jpg", x, y, size)
}

// NewEndpoint lays the standard object names out under base.
func NewEndpoint(key, base string, client *http.Client) *Endpoint {
	base = strings.TrimRight(base, "/")
	if client == nil {
		client = http.DefaultClient
	}
	return &Endpoint{
		Key: key,
		MaskURL: func(ex, ey int) string {
			return base + "/" + MaskPath(ex, ey)
		},
		TileURL: func(t core.Tile, size int) string {
			return base + "/" + TilePath(t.X, t.Y, size)
		},
		Client: client,
	}
}

// SourceInfo contains metadata about a registered source.
type SourceInfo struct {
	ID    string
	Title string
}

// Factory is a function that creates a new instance of a source.
type Factory func() Source

var (
	factories = make(map[string]Factory)
	titles    = make(map[string]string)
	mu        sync.RWMutex
)

// Register adds a source factory to the registry.
// Typically called from a source's init() function.
// Panics if a source with the same ID is already registered.
func Register(id string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if _, exists := factories[id]; exists {
		panic(fmt.Sprintf("registry: source %q already registered", id))
	}

	factories[id] = f
	titles[id] = f().Title()
}

// List returns information about all registered sources, sorted by ID.
func List() []SourceInfo {
	mu.RLock()
	defer mu.RUnlock()

	result := make([]SourceInfo, 0, len(factories))
	for id := range factories {
		result = append(result, SourceInfo{
			ID:    id,
			Title: titles[id],
		})
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})

	return result
}

// Create instantiates a new source by its ID.
// Returns an error if the source ID is not registered.
func Create(id string) (Source, error) {
	mu.RLock()
	defer mu.RUnlock()

	f, ok := factories[id]
	if !ok {
		return nil, fmt.Errorf("registry: unknown source %q", id)
	}

	return f(), nil
}

// Open creates the source named by cfg and opens it.
func Open(cfg config.SourceConfig) (*Endpoint, error) {
	src, err := Create(cfg.Name)
	if err != nil {
		return nil, err
	}
	ep, err := src.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("registry: cannot open source %q: %w", cfg.Name, err)
	}
	return ep, nil
}

// Exists checks if a source with the given ID is registered.
func Exists(id string) bool {
	mu.RLock()
	defer mu.RUnlock()

	_, ok := factories[id]
	return ok
}
