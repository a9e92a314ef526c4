// Package bucket serves a directory of tile objects the way an
// S3-compatible bucket would: mask chunks, tile images with x-amz-meta-*
// headers read from sidecar YAML files, and 404 for anything missing. A
// websocket stream announces tiles as they appear in the directory.
package bucket

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/vovakirdan/tilegrid/internal/core"
	"github.com/vovakirdan/tilegrid/internal/fetch"
	"github.com/vovakirdan/tilegrid/internal/mask"
)

// Config holds bucket server settings.
type Config struct {
	// Address is the host:port to listen on (e.g., ":8089").
	Address string

	// Dir is the directory holding the objects. Created when missing.
	Dir string

	// ChunkSize lays out synthesized mask chunks; it must match the
	// viewers' mask.chunk_size.
	ChunkSize int

	// CORSOrigins are the browser origins allowed to read objects;
	// "*" allows any. Empty disables CORS headers.
	CORSOrigins []string

	// Watch follows the directory and enables the /events stream updates.
	Watch bool

	// Logger receives request and watcher logs; discarded when nil.
	Logger *log.Logger
}

// Server is a read-only bucket over a directory.
type Server struct {
	config Config
	dir    string
	index  *index
	hub    *hub
	engine *gin.Engine
	logger *log.Logger
}

// New creates a server over cfg.Dir and indexes the tiles it holds.
func New(cfg Config) (*Server, error) {
	if cfg.Dir == "" {
		return nil, errors.New("bucket: directory is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard)
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = mask.DefaultChunkSize
	}

	dir, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("bucket: cannot resolve %s: %w", cfg.Dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("bucket: cannot create %s: %w", dir, err)
	}

	s := &Server{
		config: cfg,
		dir:    dir,
		index:  newIndex(cfg.ChunkSize),
		logger: cfg.Logger,
	}
	if err := s.index.scan(dir); err != nil {
		return nil, err
	}
	s.hub = newHub(s.allowOrigin, cfg.Logger)
	s.engine = s.routes()

	s.logger.Info("bucket indexed", "dir", dir, "tiles", s.index.len())
	return s, nil
}

// Handler returns the HTTP handler of the bucket.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	if c, ok := s.cors(); ok {
		r.Use(cors.New(c))
	}

	r.GET("/events", func(c *gin.Context) {
		s.hub.serve(c.Writer, c.Request)
	})
	r.GET("/:name", s.object)
	r.HEAD("/:name", s.object)
	return r
}

func (s *Server) cors() (cors.Config, bool) {
	if len(s.config.CORSOrigins) == 0 {
		return cors.Config{}, false
	}
	c := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		ExposeHeaders: []string{
			fetch.HeaderTitle, fetch.HeaderSubtitle, fetch.HeaderDescription,
			fetch.HeaderLink, fetch.HeaderDetails,
		},
		MaxAge: 12 * time.Hour,
	}
	if slices.Contains(s.config.CORSOrigins, "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = s.config.CORSOrigins
	}
	return c, true
}

// allowOrigin applies the CORS origins to websocket upgrades.
func (s *Server) allowOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range s.config.CORSOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// requestLogger logs each request at debug level, failures at warn.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		kv := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", time.Since(start),
		}
		if status >= http.StatusInternalServerError {
			s.logger.Warn("request failed", kv...)
			return
		}
		s.logger.Debug("request", kv...)
	}
}

// object serves one object by name.
func (s *Server) object(c *gin.Context) {
	name := c.Param("name")
	if name != filepath.Base(name) || strings.HasPrefix(name, ".") || filepath.Ext(name) == ".yaml" {
		c.Status(http.StatusNotFound)
		return
	}

	var ex, ey int
	if _, err := fmt.Sscanf(name, "tilemap-%d-%d.bin", &ex, &ey); err == nil {
		s.chunk(c, name, ex, ey)
		return
	}
	if t, ok := parseTile(name); ok {
		s.tile(c, name, t)
		return
	}
	c.Status(http.StatusNotFound)
}

// chunk serves a tilemap file, or synthesizes one from the index.
func (s *Server) chunk(c *gin.Context, name string, ex, ey int) {
	path := filepath.Join(s.dir, name)
	if isFile(path) {
		c.File(path)
		return
	}
	b, ok := s.index.chunk(ex, ey)
	if !ok {
		c.Status(http.StatusNotFound)
		return
	}
	c.Data(http.StatusOK, "application/octet-stream", b)
}

// tile serves the image for t. Requests for a tier fall back to the same
// tier in another format, then to a size-less image of the tile.
func (s *Server) tile(c *gin.Context, name string, t core.Tile) {
	path, ok := s.lookup(name, t)
	if !ok {
		c.Status(http.StatusNotFound)
		return
	}

	meta, err := readMeta(filepath.Join(s.dir, sidecarName(t)))
	switch {
	case err == nil:
		meta.WriteHeader(c.Writer.Header())
	case !errors.Is(err, os.ErrNotExist):
		s.logger.Warn("cannot read sidecar", "tile", t, "error", err)
	}
	c.File(path)
}

func (s *Server) lookup(name string, t core.Tile) (string, bool) {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	stems := []string{stem}
	if plain := fmt.Sprintf("tile-%d-%d", t.X, t.Y); plain != stem {
		stems = append(stems, plain)
	}

	if path := filepath.Join(s.dir, name); isFile(path) {
		return path, true
	}
	for _, st := range stems {
		for _, ext := range imageExts {
			if path := filepath.Join(s.dir, st+ext); isFile(path) {
				return path, true
			}
		}
	}
	return "", false
}

func sidecarName(t core.Tile) string {
	return fmt.Sprintf("tile-%d-%d.yaml", t.X, t.Y)
}

func readMeta(path string) (fetch.Meta, error) {
	var meta fetch.Meta
	data, err := os.ReadFile(path)
	if err != nil {
		return meta, err
	}
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("bucket: cannot parse %s: %w", filepath.Base(path), err)
	}
	return meta, nil
}

func isFile(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}

// Run serves on cfg.Address, and watches the directory when enabled, until
// ctx is done or either fails.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Address,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("starting bucket server", "address", s.config.Address, "dir", s.dir)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("bucket: server error: %w", err)
		}
		return nil
	})
	if s.config.Watch {
		g.Go(func() error {
			return s.Watch(ctx)
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		s.logger.Info("shutting down...")
		s.hub.closeAll()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
