package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vovakirdan/tilegrid/internal/config"
	"github.com/vovakirdan/tilegrid/internal/platform/tui"
	"github.com/vovakirdan/tilegrid/internal/platform/viewer"
	"github.com/vovakirdan/tilegrid/internal/registry"
)

// gridFlags are the source and camera flags shared by view and snapshot.
type gridFlags struct {
	source string
	url    string
	live   bool
	x, y   float64
	zoom   float64
}

func (f *gridFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.source, "source", "", "Content source id (see 'tilegrid sources')")
	cmd.Flags().StringVar(&f.url, "url", "", "Bucket base URL for the bucket source")
	cmd.Flags().BoolVar(&f.live, "live", false, "Follow the bucket's live updates")
	cmd.Flags().Float64Var(&f.x, "x", 0, "Camera x in tiles")
	cmd.Flags().Float64Var(&f.y, "y", 0, "Camera y in tiles")
	cmd.Flags().Float64Var(&f.zoom, "zoom", 0, "Tile size in canvas pixels")
}

// apply writes the flags the user set into cfg.
func (f *gridFlags) apply(cmd *cobra.Command, cfg *config.GridConfig) {
	flags := cmd.Flags()
	if flags.Changed("source") {
		cfg.Source.Name = f.source
	}
	if flags.Changed("url") {
		cfg.Source.BaseURL = f.url
		if !flags.Changed("source") {
			cfg.Source.Name = "bucket"
		}
	}
	if flags.Changed("live") {
		cfg.Source.Live = f.live
	}
	if flags.Changed("x") {
		cfg.Camera.X = f.x
	}
	if flags.Changed("y") {
		cfg.Camera.Y = f.y
	}
	if flags.Changed("zoom") {
		cfg.Camera.Zoom = f.zoom
	}
}

// place moves the camera to the flags the user set, over any saved position.
func (f *gridFlags) place(cmd *cobra.Command, v *viewer.Viewer) {
	flags := cmd.Flags()
	cam := v.Camera()
	if flags.Changed("x") || flags.Changed("y") {
		x, y := cam.X(), cam.Y()
		if flags.Changed("x") {
			x = f.x
		}
		if flags.Changed("y") {
			y = f.y
		}
		cam.SetPosition(x, y)
	}
	if flags.Changed("zoom") {
		cam.SetZoom(f.zoom)
	}
}

var viewFlags gridFlags

var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Browse a tile grid",
	Long: `Open the grid in the terminal. Each cell is drawn with half blocks,
so a tile needs a few rows before its image is recognisable; zoom in.

Controls:
  Drag / Arrows / hjkl   - Pan
  Wheel                  - Pan (with Ctrl or Alt: zoom)
  + / -                  - Zoom
  0                      - Reset zoom
  g                      - Go to a tile
  Enter / Click          - Open the tile under the pointer
  ?                      - Help
  q / Ctrl+C             - Quit

Examples:
  tilegrid view
  tilegrid view --x 120 --y -40
  tilegrid view --url http://localhost:8089 --live
  tilegrid view --log ./tilegrid.log --log-level debug`,
	Run: runView,
}

func init() {
	viewFlags.register(viewCmd)
}

func runView(cmd *cobra.Command, _ []string) {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "Error: view needs a terminal; try 'tilegrid snapshot'")
		os.Exit(1)
	}

	cfg := loadConfig()
	viewFlags.apply(cmd, &cfg)
	logger := newLogger(cfg.Log, io.Discard)

	ep, err := registry.Open(cfg.Source)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprintln(os.Stderr, "Run 'tilegrid sources' to see available sources.")
		os.Exit(1)
	}

	// Get terminal size
	cols, rows := 80, 24 // Defaults
	if w, h, termErr := term.GetSize(int(os.Stdout.Fd())); termErr == nil {
		cols, rows = w, h
	}
	scale := max(cfg.Render.Supersample, 1)
	w, h := tui.CanvasSize(cols, max(rows-2, 1), scale)

	opts := viewer.Options{
		Config:   cfg,
		Endpoint: ep,
		Width:    w,
		Height:   h,
		Logger:   logger,
	}
	store := openStore(cfg.Storage, logger)
	if store != nil {
		opts.Store = store
	}

	v, err := viewer.New(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating viewer: %v\n", err)
		os.Exit(1)
	}
	viewFlags.place(cmd, v)

	runErr := tui.Run(v, cols, rows, tui.Options{
		Title:       ep.Key,
		FPS:         cfg.Render.FPS,
		Supersample: scale,
	})

	// Close the viewer before the store so the last position is written
	if err := v.Close(); err != nil {
		logger.Warn("viewer close failed", "error", err)
	}
	if store != nil {
		store.Close()
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error running viewer: %v\n", runErr)
		os.Exit(1)
	}
}
