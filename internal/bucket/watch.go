package bucket

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch follows changes in the served directory and broadcasts them on the
// events stream until ctx is done.
func (s *Server) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("bucket: cannot create watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(s.dir); err != nil {
		return fmt.Errorf("bucket: cannot watch %s: %w", s.dir, err)
	}
	s.logger.Info("watching bucket", "dir", s.dir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			s.handle(ev)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				s.logger.Warn("watcher overflow, rescanning", "dir", s.dir)
				if err := s.index.scan(s.dir); err != nil {
					s.logger.Error("rescan failed", "error", err)
				}
				continue
			}
			s.logger.Error("watcher error", "error", err)
		}
	}
}

// handle turns one filesystem event into index updates and broadcasts.
func (s *Server) handle(ev fsnotify.Event) {
	name := filepath.Base(ev.Name)
	t, ok := parseTile(name)
	if !ok {
		return
	}

	if filepath.Ext(name) == ".yaml" {
		if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
			return
		}
		meta, err := readMeta(ev.Name)
		if err != nil {
			s.logger.Warn("cannot read sidecar", "file", name, "error", err)
			return
		}
		s.hub.broadcast(Event{Type: EventMeta, X: t.X, Y: t.Y, Published: s.index.has(t), Meta: &meta})
		return
	}

	switch {
	case ev.Has(fsnotify.Create):
		s.index.add(t)
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		// A rename reports the old name; the new one arrives as a Create.
		if _, err := os.Stat(ev.Name); err == nil {
			return
		}
		s.index.remove(t)
	case ev.Has(fsnotify.Write):
	default:
		return
	}

	s.logger.Debug("tile changed", "tile", t, "op", ev.Op.String())
	s.hub.broadcast(Event{Type: EventTile, X: t.X, Y: t.Y, Published: s.index.has(t)})
}
