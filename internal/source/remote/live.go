package remote

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/vovakirdan/tilegrid/internal/bucket"
	"github.com/vovakirdan/tilegrid/internal/core"
	"github.com/vovakirdan/tilegrid/internal/gallery"
)

// Reconnect backoff bounds.
const (
	minBackoff = time.Second
	maxBackoff = 60 * time.Second
)

// MaskPatcher is the part of *mask.Mask live updates touch.
type MaskPatcher interface {
	Patch(x, y int, value bool)
}

// GalleryPatcher is the part of *gallery.Gallery live updates touch.
type GalleryPatcher interface {
	Patch(tile core.Tile, opts gallery.PatchOptions) error
}

// Follower applies a bucket's events stream to the local caches.
type Follower struct {
	url     string
	mask    MaskPatcher
	gallery GalleryPatcher
	logger  *log.Logger
	dialer  *websocket.Dialer
}

// NewFollower creates a follower of the stream at url.
func NewFollower(url string, m MaskPatcher, g GalleryPatcher, logger *log.Logger) *Follower {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Follower{
		url:     url,
		mask:    m,
		gallery: g,
		logger:  logger,
		dialer:  websocket.DefaultDialer,
	}
}

// Run follows the stream until ctx is done, reconnecting with exponential
// backoff whenever the connection drops.
func (f *Follower) Run(ctx context.Context) error {
	backoff := minBackoff
	for {
		connected, err := f.follow(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			backoff = minBackoff
		}
		f.logger.Warn("events stream lost", "url", f.url, "error", err, "retry", backoff)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

// follow reads one connection until it fails. connected reports whether the
// dial succeeded.
func (f *Follower) follow(ctx context.Context) (connected bool, err error) {
	conn, _, err := f.dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return false, err
	}
	defer conn.Close()
	f.logger.Info("following events", "url", f.url)

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}
		var e bucket.Event
		if err := json.Unmarshal(msg, &e); err != nil {
			f.logger.Warn("malformed event", "error", err)
			continue
		}
		f.Apply(e)
	}
}

// Apply updates the caches for one event. Only tiles already cached are
// touched; the rest pick the change up when they are first fetched.
func (f *Follower) Apply(e bucket.Event) {
	tile := core.T(e.X, e.Y)
	switch e.Type {
	case bucket.EventTile:
		f.mask.Patch(e.X, e.Y, e.Published)
		if !e.Published {
			return
		}
		if err := f.gallery.Patch(tile, gallery.PatchOptions{}); err != nil {
			f.logger.Warn("cannot reload tile", "tile", tile, "error", err)
		}
	case bucket.EventMeta:
		if err := f.gallery.Patch(tile, gallery.PatchOptions{Meta: e.Meta}); err != nil {
			f.logger.Warn("cannot patch meta", "tile", tile, "error", err)
		}
	default:
		f.logger.Debug("ignoring event", "type", e.Type)
	}
}
