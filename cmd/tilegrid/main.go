// tilegrid is an infinite, pannable and zoomable grid of image tiles for
// the terminal.
//
// Usage:
//
//	tilegrid view              - Browse a tile grid interactively
//	tilegrid snapshot <file>   - Render a viewport to PNG without a terminal
//	tilegrid serve             - Serve the grid over SSH
//	tilegrid bucket            - Serve a directory of tiles over HTTP
//	tilegrid sources           - List content sources
//	tilegrid positions         - Browse or forget saved camera positions
//
// Global flags:
//
//	--config <path>  - Grid config YAML (default: search ~/.tilegrid/configs, ./configs)
//	--db <path>      - Position database (default: ~/.tilegrid/positions.db)
//	--log <path>     - Log file; the interactive viewer discards logs without it
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/log"
	"github.com/gogpu/gg"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/vovakirdan/tilegrid/internal/config"
	"github.com/vovakirdan/tilegrid/internal/storage"

	// Import sources to register them
	_ "github.com/vovakirdan/tilegrid/internal/source/demo"
	_ "github.com/vovakirdan/tilegrid/internal/source/remote"
)

var (
	// Global flags
	flagConfig   string
	flagDBPath   string
	flagLogPath  string
	flagLogLevel string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tilegrid",
	Short: "tilegrid - An infinite grid of image tiles in your terminal",
	Long: `tilegrid shows an unbounded two-dimensional grid of tiles. Some cells
hold an image with a title, most are empty. Drag or use the arrow keys to
pan, scroll or press +/- to zoom.

Available commands:
  view       - Browse a tile grid interactively
  snapshot   - Render a viewport to PNG
  serve      - Serve the grid over SSH
  bucket     - Serve a directory of tiles over HTTP
  sources    - List content sources
  positions  - Browse or forget saved camera positions

Examples:
  tilegrid view
  tilegrid view --source bucket --url http://localhost:8089 --live
  tilegrid snapshot grid.png --x 10 --y -4 --zoom 120
  tilegrid bucket --dir ./tiles
  tilegrid serve --ssh :2222`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to grid config YAML")
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", "", "Path to positions database (overrides storage.path)")
	rootCmd.PersistentFlags().StringVar(&flagLogPath, "log", "", "Path to log file (overrides log.file)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")

	// Add subcommands
	rootCmd.AddCommand(viewCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(bucketCmd)
	rootCmd.AddCommand(sourcesCmd)
	rootCmd.AddCommand(positionsCmd)
}

// loadConfig loads the grid config and applies the global flags.
func loadConfig() config.GridConfig {
	cfg, err := config.LoadGrid(flagConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if flagDBPath != "" {
		cfg.Storage.Path = flagDBPath
	}
	if flagLogPath != "" {
		cfg.Log.File = flagLogPath
	}
	if flagLogLevel != "" {
		cfg.Log.Level = flagLogLevel
	}
	cfg.Source.ChunkSize = cfg.Mask.ChunkSize
	return cfg
}

// newLogger builds the logger for a command. Logs go to the configured file,
// or to fallback when no file is set. The renderer's own logging is routed
// through the same logger.
func newLogger(cfg config.LogConfig, fallback io.Writer) *log.Logger {
	w := fallback
	if cfg.File != "" {
		w = &lumberjack.Logger{
			Filename:   config.ExpandPath(cfg.File),
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
	}

	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Prefix:          "tilegrid",
	})
	if cfg.Level != "" {
		level, err := log.ParseLevel(cfg.Level)
		if err != nil {
			logger.Warn("unknown log level, using info", "level", cfg.Level)
		} else {
			logger.SetLevel(level)
		}
	}

	gg.SetLogger(slog.New(logger.WithPrefix("gg")))
	return logger
}

// openStore opens the position database. Failure is not fatal: the grid
// still works, it just forgets where it was.
func openStore(cfg config.StorageConfig, logger *log.Logger) *storage.Store {
	if cfg.Path == "" {
		return nil
	}
	store, err := storage.Open(cfg.Path)
	if err != nil {
		logger.Warn("could not open positions database", "path", cfg.Path, "error", err)
		return nil
	}
	return store
}
