package config

import (
	_ "embed"
	"time"
)

//go:embed defaults/grid.yaml
var defaultGridYAML []byte

// DefaultGridConfig returns the default grid configuration.
func DefaultGridConfig() GridConfig {
	return GridConfig{
		Source: SourceConfig{
			Name: "demo",
		},
		Fetch: FetchConfig{
			Workers:   8,
			QueueSize: 256,
			Burst:     16,
			Timeout:   10 * time.Second,
		},
		Mask: MaskConfig{
			ChunkSize: 256,
			CacheSize: 256,
		},
		Gallery: GalleryConfig{
			Tiers: []TierConfig{
				{Name: "i", Size: 64},
				{Name: "s", Size: 128},
				{Name: "m", Size: 256},
				{Name: "l", Size: 512},
				{Name: "x", Size: 1024},
			},
			TTL:           10 * time.Second,
			SweepInterval: 200 * time.Millisecond,
		},
		Camera: CameraConfig{
			X:          0.5,
			Y:          0.5,
			MaxZoom:    300,
			SpeedLimit: 0.001,
			SpeedHold:  500 * time.Millisecond,
		},
		Render: RenderConfig{
			FPS:             30,
			Smoothness:      32,
			SmallSmoothness: 2,
			SmallViewport:   800,
			KeepWarm:        time.Second,
			Supersample:     2,
		},
		Input: InputConfig{
			Friction: 0.035,
		},
		Storage: StorageConfig{
			Path:     "~/.tilegrid/positions.db",
			Debounce: 250 * time.Millisecond,
			MaxWait:  time.Second,
		},
		SSH: SSHConfig{
			Address:     ":23235",
			IdleTimeout: 30 * time.Minute,
		},
		Bucket: BucketConfig{
			Address:     ":8089",
			Dir:         "./bucket",
			ChunkSize:   256,
			CORSOrigins: []string{"*"},
			Watch:       true,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// DefaultGridYAML returns the embedded default YAML.
func DefaultGridYAML() []byte {
	return defaultGridYAML
}
