package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/tilegrid/internal/platform/viewer"
	"github.com/vovakirdan/tilegrid/internal/registry"
)

var (
	snapshotFlags   gridFlags
	flagSnapWidth   int
	flagSnapHeight  int
	flagSnapTimeout time.Duration
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot <file.png>",
	Short: "Render a viewport to PNG",
	Long: `Render the grid headlessly and save it as PNG. The command waits until
every visible tile is resolved and loaded, or until --timeout, then draws
the frame. Saved positions are neither read nor written.

Examples:
  tilegrid snapshot grid.png
  tilegrid snapshot grid.png --x 10 --y -4 --zoom 120 --width 1920 --height 1080
  tilegrid snapshot live.png --url http://localhost:8089`,
	Args: cobra.ExactArgs(1),
	Run:  runSnapshot,
}

func init() {
	snapshotFlags.register(snapshotCmd)
	snapshotCmd.Flags().IntVar(&flagSnapWidth, "width", 1280, "Image width in pixels")
	snapshotCmd.Flags().IntVar(&flagSnapHeight, "height", 800, "Image height in pixels")
	snapshotCmd.Flags().DurationVar(&flagSnapTimeout, "timeout", 30*time.Second, "How long to wait for tiles")
}

func runSnapshot(cmd *cobra.Command, args []string) {
	path := args[0]

	cfg := loadConfig()
	snapshotFlags.apply(cmd, &cfg)
	cfg.Source.Live = false
	logger := newLogger(cfg.Log, os.Stderr)

	ep, err := registry.Open(cfg.Source)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	v, err := viewer.New(viewer.Options{
		Config:   cfg,
		Endpoint: ep,
		Width:    flagSnapWidth,
		Height:   flagSnapHeight,
		Logger:   logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating viewer: %v\n", err)
		os.Exit(1)
	}
	defer v.Close()
	snapshotFlags.place(cmd, v)

	ctx, cancel := context.WithTimeout(cmd.Context(), flagSnapTimeout)
	defer cancel()

	start := time.Now()
	if err := v.Settle(ctx); err != nil {
		// Still save what arrived; missing tiles are drawn as placeholders.
		logger.Warn("saving incomplete snapshot", "error", err)
	}

	if err := v.Canvas().SavePNG(path); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving snapshot: %v\n", err)
		os.Exit(1)
	}

	cam := v.Camera()
	logger.Info("snapshot saved",
		"path", path,
		"center", cam.Center().String(),
		"zoom", cam.Zoom(),
		"took", time.Since(start).Round(time.Millisecond),
	)
}
