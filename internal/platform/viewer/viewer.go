// Package viewer assembles the grid core for one viewport: the fetch
// worker, the mask and gallery caches, the camera with its controls, the
// render scheduler and the canvas the grid is drawn on. Front ends (the
// TUI, the SSH server and the snapshot command) drive it frame by frame.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gogpu/gg"

	"github.com/vovakirdan/tilegrid/internal/camera"
	"github.com/vovakirdan/tilegrid/internal/config"
	"github.com/vovakirdan/tilegrid/internal/core"
	"github.com/vovakirdan/tilegrid/internal/fetch"
	"github.com/vovakirdan/tilegrid/internal/gallery"
	"github.com/vovakirdan/tilegrid/internal/input"
	"github.com/vovakirdan/tilegrid/internal/mask"
	"github.com/vovakirdan/tilegrid/internal/registry"
	"github.com/vovakirdan/tilegrid/internal/render"
	"github.com/vovakirdan/tilegrid/internal/scheduler"
	"github.com/vovakirdan/tilegrid/internal/source/remote"
	"github.com/vovakirdan/tilegrid/internal/storage"
)

// settlePoll is the redraw period while waiting for the caches to settle.
const settlePoll = 25 * time.Millisecond

// PositionStore loads and saves camera positions. *storage.Store
// implements it.
type PositionStore interface {
	storage.PositionWriter
	LoadPosition(source string) (storage.Position, bool, error)
}

// Options configures a viewer.
type Options struct {
	Config   config.GridConfig
	Endpoint *registry.Endpoint

	// Width and Height are the canvas size in pixels.
	Width, Height int

	// Store restores and persists the camera; nil disables both.
	Store PositionStore

	// Logger is discarded when nil.
	Logger *log.Logger

	// Now is the clock; time.Now when nil.
	Now func() time.Time
}

// Viewer is one live view over the grid. It is not safe for concurrent use;
// the caches it owns are.
type Viewer struct {
	cfg    config.GridConfig
	key    string
	logger *log.Logger

	worker    *fetch.Worker
	mask      *mask.Mask
	gallery   *gallery.Gallery
	camera    *camera.Camera
	scheduler *scheduler.Scheduler
	fonts     *render.Fonts
	grid      *render.Grid
	controls  *input.Controls
	saver     *storage.Saver

	canvas *gg.Context
	width  int
	height int
	saved  storage.Position

	unsubscribe []func()
	stopLive    context.CancelFunc
}

// New builds a viewer over opts.Endpoint.
func New(opts Options) (_ *Viewer, err error) {
	if opts.Endpoint == nil {
		return nil, errors.New("viewer: endpoint is required")
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("viewer: invalid canvas size %dx%d", opts.Width, opts.Height)
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	cfg := opts.Config
	ep := opts.Endpoint

	v := &Viewer{
		cfg:    cfg,
		key:    ep.Key,
		logger: opts.Logger,
		width:  opts.Width,
		height: opts.Height,
	}
	defer func() {
		if err != nil {
			v.Close()
		}
	}()

	v.worker = fetch.NewWorker(fetch.Config{
		Workers:           cfg.Fetch.Workers,
		QueueSize:         cfg.Fetch.QueueSize,
		RequestsPerSecond: cfg.Fetch.RequestsPerSecond,
		Burst:             cfg.Fetch.Burst,
		Timeout:           cfg.Fetch.Timeout,
		Client:            ep.Client,
		Logger:            opts.Logger.WithPrefix("fetch"),
	})

	v.scheduler = scheduler.New(v.smoothness(), cfg.Render.KeepWarm)

	v.mask, err = mask.New(mask.Config{
		ChunkSize: cfg.Mask.ChunkSize,
		CacheSize: cfg.Mask.CacheSize,
		URL:       ep.MaskURL,
		Logger:    opts.Logger.WithPrefix("mask"),
	}, v.worker)
	if err != nil {
		return nil, err
	}

	zoom := ZoomFor(opts.Width, opts.Height, cfg.Camera, cfg.Render.SmallViewport)
	capacity := cfg.Gallery.Capacity
	if capacity <= 0 {
		capacity = CapacityFor(opts.Width, opts.Height, zoom.Min)
	}
	v.gallery, err = gallery.New(gallery.Config{
		Tiers:         Tiers(cfg.Gallery.Tiers),
		Capacity:      capacity,
		TTL:           cfg.Gallery.TTL,
		SweepInterval: cfg.Gallery.SweepInterval,
		URL:           ep.TileURL,
		Logger:        opts.Logger.WithPrefix("gallery"),
		Now:           opts.Now,
	}, v.worker)
	if err != nil {
		return nil, err
	}

	start := storage.Position{Source: ep.Key, X: cfg.Camera.X, Y: cfg.Camera.Y, Zoom: zoom.Initial}
	if opts.Store != nil {
		if p, ok, loadErr := opts.Store.LoadPosition(ep.Key); loadErr != nil {
			v.logger.Warn("cannot load saved position", "source", ep.Key, "error", loadErr)
		} else if ok {
			start = p
		}
		v.saver = storage.NewSaver(opts.Store, cfg.Storage.Debounce, cfg.Storage.MaxWait, opts.Logger.WithPrefix("storage"))
	}
	v.saved = start

	v.camera = camera.New(camera.Config{
		X:          start.X,
		Y:          start.Y,
		Zoom:       start.Zoom,
		MinZoom:    zoom.Min,
		MaxZoom:    zoom.Max,
		SpeedLimit: cfg.Camera.SpeedLimit,
		SpeedHold:  cfg.Camera.SpeedHold,
	}, v.scheduler)

	ctrl := input.NewCameraControl(v.camera, cfg.Input.Friction, opts.Now)
	ctrl.SetInitialZoom(zoom.Initial)

	v.fonts, err = render.NewFonts()
	if err != nil {
		return nil, fmt.Errorf("viewer: cannot load fonts: %w", err)
	}
	v.grid = render.NewGrid(v.camera, v.mask, v.gallery, v.fonts)
	v.controls = input.NewControls(ctrl, v.grid)
	v.controls.SetViewport(opts.Width, opts.Height)
	v.canvas = gg.NewContext(opts.Width, opts.Height)

	v.unsubscribe = append(v.unsubscribe,
		v.mask.Listen(func(core.Rect) { v.scheduler.Request() }),
		v.gallery.Listen(func(gallery.Event) { v.scheduler.Request() }),
	)

	if ep.EventsURL != "" {
		ctx, cancel := context.WithCancel(context.Background())
		v.stopLive = cancel
		follower := remote.NewFollower(ep.EventsURL, v.mask, v.gallery, opts.Logger.WithPrefix("live"))
		go func() { _ = follower.Run(ctx) }()
	}

	v.scheduler.Request()
	return v, nil
}

// Tiers converts configured tiers to gallery tiers.
func Tiers(tiers []config.TierConfig) []gallery.Tier {
	if len(tiers) == 0 {
		return nil
	}
	out := make([]gallery.Tier, len(tiers))
	for i, t := range tiers {
		out[i] = gallery.Tier{Name: t.Name, Size: t.Size}
	}
	return out
}

func (v *Viewer) smoothness() int {
	r := v.cfg.Render
	return scheduler.Smoothness(v.width, v.height, r.SmallViewport, r.SmallSmoothness, r.Smoothness)
}

// Key returns the content key positions are stored under.
func (v *Viewer) Key() string { return v.key }

// Camera returns the camera.
func (v *Viewer) Camera() *camera.Camera { return v.camera }

// Controls returns the input router.
func (v *Viewer) Controls() *input.Controls { return v.controls }

// Control returns the camera control behind the input router.
func (v *Viewer) Control() *input.CameraControl { return v.controls.Control() }

// Grid returns the grid renderer.
func (v *Viewer) Grid() *render.Grid { return v.grid }

// Mask returns the occupancy cache.
func (v *Viewer) Mask() *mask.Mask { return v.mask }

// Gallery returns the image cache.
func (v *Viewer) Gallery() *gallery.Gallery { return v.gallery }

// Canvas returns the canvas of the last drawn frame.
func (v *Viewer) Canvas() *gg.Context { return v.canvas }

// Size returns the canvas size in pixels.
func (v *Viewer) Size() (int, int) { return v.width, v.height }

// Resize changes the canvas size and rederives the zoom bounds and cache
// capacity for it.
func (v *Viewer) Resize(w, h int) {
	if w <= 0 || h <= 0 || (w == v.width && h == v.height) {
		return
	}
	v.width, v.height = w, h

	if err := v.canvas.Resize(w, h); err != nil {
		v.logger.Error("cannot resize canvas", "error", err)
		return
	}

	zoom := ZoomFor(w, h, v.cfg.Camera, v.cfg.Render.SmallViewport)
	v.camera.SetZoomBounds(zoom.Min, zoom.Max)
	v.Control().SetInitialZoom(zoom.Initial)
	if v.cfg.Gallery.Capacity <= 0 {
		v.gallery.Limit(CapacityFor(w, h, zoom.Min))
	}
	v.controls.SetViewport(w, h)
	v.scheduler.SetSmoothness(v.smoothness())
	v.scheduler.Request()
}

// Invalidate forces the next frame to redraw.
func (v *Viewer) Invalidate() {
	v.scheduler.Request()
}

// Frame advances input at now and redraws when the scheduler asks for it.
// It reports whether the canvas changed.
func (v *Viewer) Frame(now time.Time) bool {
	v.controls.Tick(now)
	if !v.scheduler.Tick(now) {
		return false
	}
	v.grid.Draw(v.canvas)
	v.track(now)
	return true
}

// track hands the camera position to the saver when it moved.
func (v *Viewer) track(now time.Time) {
	if v.saver == nil {
		return
	}
	p := storage.Position{Source: v.key, X: v.camera.X(), Y: v.camera.Y(), Zoom: v.camera.Zoom()}
	if p.X == v.saved.X && p.Y == v.saved.Y && p.Zoom == v.saved.Zoom {
		return
	}
	p.UpdatedAt = now
	v.saved = p
	v.saver.Update(p)
}

// Settle redraws until every visible tile is resolved and no fetch is in
// flight, or ctx is done.
func (v *Viewer) Settle(ctx context.Context) error {
	calm := 0
	for {
		v.grid.Draw(v.canvas)
		if v.worker.Pending() == 0 && v.resolved() {
			calm++
		} else {
			calm = 0
		}
		// Two calm frames in a row: a decode may finish just after its
		// fetch leaves the worker.
		if calm >= 2 {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("viewer: caches did not settle: %w", ctx.Err())
		case <-time.After(settlePoll):
		}
	}
}

// resolved reports whether every visible tile has a known occupancy and
// every published one has an image or is known to have none.
func (v *Viewer) resolved() bool {
	left, top, right, bottom := v.camera.VisibleRange(v.width, v.height)
	for ty := top; ty <= bottom; ty++ {
		for tx := left; tx <= right; tx++ {
			published, known := v.mask.Has(tx, ty)
			if !known {
				return false
			}
			if !published {
				continue
			}
			t := core.T(tx, ty)
			if _, ok := v.gallery.Get(t, v.camera.Zoom()); !ok && !v.gallery.Missing(t) {
				return false
			}
		}
	}
	return true
}

// Close flushes the position and releases every resource.
func (v *Viewer) Close() error {
	var errs []error
	if v.stopLive != nil {
		v.stopLive()
	}
	for _, unsubscribe := range v.unsubscribe {
		unsubscribe()
	}
	if v.saver != nil {
		if err := v.saver.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if v.gallery != nil {
		v.gallery.Dispose()
	}
	if v.mask != nil {
		v.mask.Dispose()
	}
	if v.worker != nil {
		if err := v.worker.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if v.fonts != nil {
		if err := v.fonts.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if v.canvas != nil {
		if err := v.canvas.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
