// Package config provides YAML-based configuration for the tile grid
// viewer, the bucket server and the SSH server.
package config

import (
	"errors"
	"fmt"
	"time"
)

// GridConfig contains all configuration for a grid viewer.
type GridConfig struct {
	Source  SourceConfig  `yaml:"source"`
	Fetch   FetchConfig   `yaml:"fetch"`
	Mask    MaskConfig    `yaml:"mask"`
	Gallery GalleryConfig `yaml:"gallery"`
	Camera  CameraConfig  `yaml:"camera"`
	Render  RenderConfig  `yaml:"render"`
	Input   InputConfig   `yaml:"input"`
	Storage StorageConfig `yaml:"storage"`
	SSH     SSHConfig     `yaml:"ssh"`
	Bucket  BucketConfig  `yaml:"bucket"`
	Log     LogConfig     `yaml:"log"`
}

// SourceConfig selects where tiles come from.
type SourceConfig struct {
	Name    string `yaml:"name"`     // registered source id: "demo" or "bucket"
	BaseURL string `yaml:"base_url"` // bucket root for the "bucket" source
	Live    bool   `yaml:"live"`     // follow the bucket's /events stream

	// ChunkSize is copied from mask.chunk_size by the caller so sources
	// that synthesize masks lay them out the same way.
	ChunkSize int `yaml:"-"`
}

// FetchConfig defines the network worker pool.
type FetchConfig struct {
	Workers           int           `yaml:"workers"`
	QueueSize         int           `yaml:"queue_size"`
	RequestsPerSecond float64       `yaml:"requests_per_second"` // 0 = unlimited
	Burst             int           `yaml:"burst"`
	Timeout           time.Duration `yaml:"timeout"`
}

// MaskConfig defines the occupancy mask cache.
type MaskConfig struct {
	ChunkSize int   `yaml:"chunk_size"`
	CacheSize int64 `yaml:"cache_size"` // resolved chunks kept in memory
}

// TierConfig is one image resolution.
type TierConfig struct {
	Name string `yaml:"name"`
	Size int    `yaml:"size"`
}

// GalleryConfig defines the image cache.
type GalleryConfig struct {
	Tiers         []TierConfig  `yaml:"tiers"`
	Capacity      int           `yaml:"capacity"` // 0 = derived from viewport and zoom bounds
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// CameraConfig defines the initial view and zoom bounds. Zero zoom values
// are derived from the viewport size.
type CameraConfig struct {
	X          float64       `yaml:"x"`
	Y          float64       `yaml:"y"`
	Zoom       float64       `yaml:"zoom"`
	MinZoom    float64       `yaml:"min_zoom"`
	MaxZoom    float64       `yaml:"max_zoom"`
	SpeedLimit float64       `yaml:"speed_limit"`
	SpeedHold  time.Duration `yaml:"speed_hold"`
}

// RenderConfig defines the frame loop.
type RenderConfig struct {
	FPS             int           `yaml:"fps"`
	Smoothness      int           `yaml:"smoothness"`
	SmallSmoothness int           `yaml:"small_smoothness"`
	SmallViewport   int           `yaml:"small_viewport"` // max dimension in pixels
	KeepWarm        time.Duration `yaml:"keep_warm"`

	// Supersample renders terminal frames at this many canvas pixels per
	// terminal pixel and averages them down.
	Supersample int `yaml:"supersample"`
}

// InputConfig defines gesture inertia.
type InputConfig struct {
	Friction float64 `yaml:"friction"`
}

// StorageConfig defines camera position persistence.
type StorageConfig struct {
	Path     string        `yaml:"path"`
	Debounce time.Duration `yaml:"debounce"`
	MaxWait  time.Duration `yaml:"max_wait"`
}

// SSHConfig defines the SSH server.
type SSHConfig struct {
	Address     string        `yaml:"address"`
	HostKeyPath string        `yaml:"host_key_path"`
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// BucketConfig defines the bucket server.
type BucketConfig struct {
	Address     string   `yaml:"address"`
	Dir         string   `yaml:"dir"`
	ChunkSize   int      `yaml:"chunk_size"`
	CORSOrigins []string `yaml:"cors_origins"`
	Watch       bool     `yaml:"watch"`
}

// LogConfig defines the rotating log file used while the TUI owns the
// terminal. An empty File discards logs.
type LogConfig struct {
	File       string `yaml:"file"`
	Level      string `yaml:"level"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Validate checks the config for values the grid cannot run with.
func (c GridConfig) Validate() error {
	var errs []error

	if c.Mask.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("mask.chunk_size must be positive, got %d", c.Mask.ChunkSize))
	}
	if len(c.Gallery.Tiers) == 0 {
		errs = append(errs, errors.New("gallery.tiers must not be empty"))
	}
	for i, t := range c.Gallery.Tiers {
		if t.Size <= 0 {
			errs = append(errs, fmt.Errorf("gallery.tiers[%d] size must be positive, got %d", i, t.Size))
		}
		if i > 0 && t.Size <= c.Gallery.Tiers[i-1].Size {
			errs = append(errs, fmt.Errorf("gallery.tiers must be sorted by size, %s follows %s", t.Name, c.Gallery.Tiers[i-1].Name))
		}
	}
	if c.Camera.MinZoom < 0 || c.Camera.MaxZoom < 0 {
		errs = append(errs, errors.New("camera zoom bounds must not be negative"))
	}
	if c.Camera.MinZoom > 0 && c.Camera.MaxZoom > 0 && c.Camera.MinZoom > c.Camera.MaxZoom {
		errs = append(errs, fmt.Errorf("camera.min_zoom %v exceeds camera.max_zoom %v", c.Camera.MinZoom, c.Camera.MaxZoom))
	}
	if c.Render.Supersample < 0 || c.Render.Supersample > 8 {
		errs = append(errs, fmt.Errorf("render.supersample must be within [0, 8], got %d", c.Render.Supersample))
	}
	if c.Render.FPS <= 0 {
		errs = append(errs, fmt.Errorf("render.fps must be positive, got %d", c.Render.FPS))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: invalid: %w", errors.Join(errs...))
	}
	return nil
}
