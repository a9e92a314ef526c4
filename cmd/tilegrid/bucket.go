package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/tilegrid/internal/bucket"
	"github.com/vovakirdan/tilegrid/internal/config"
)

var (
	flagBucketAddr  string
	flagBucketDir   string
	flagBucketWatch bool
	flagBucketCORS  []string
)

var bucketCmd = &cobra.Command{
	Use:   "bucket",
	Short: "Serve a directory of tiles over HTTP",
	Long: `Serve a directory the way an S3-compatible bucket would, so the
bucket source can browse it.

Objects:
  tile-<x>-<y>-<size>.jpg   - Tile image at a resolution tier
  tile-<x>-<y>.png          - Tile image used for every tier
  tile-<x>-<y>.yaml         - Title, subtitle, description and link,
                              sent as x-amz-meta-* headers
  tilemap-<x>-<y>.bin       - Occupancy chunk; synthesized from the
                              tile files when missing

With --watch, tiles added or removed while the server runs are pushed to
viewers that follow /events (tilegrid view --live).

Examples:
  tilegrid bucket --dir ./tiles
  tilegrid bucket --dir ./tiles --addr :9000 --cors https://example.com`,
	Run: runBucket,
}

func init() {
	bucketCmd.Flags().StringVar(&flagBucketAddr, "addr", "", "Listen address (host:port, overrides bucket.address)")
	bucketCmd.Flags().StringVar(&flagBucketDir, "dir", "", "Directory to serve (overrides bucket.dir)")
	bucketCmd.Flags().BoolVar(&flagBucketWatch, "watch", true, "Watch the directory and stream changes")
	bucketCmd.Flags().StringSliceVar(&flagBucketCORS, "cors", nil, "Allowed CORS origins (overrides bucket.cors_origins)")
}

func runBucket(cmd *cobra.Command, _ []string) {
	cfg := loadConfig()
	bc := cfg.Bucket
	if flagBucketAddr != "" {
		bc.Address = flagBucketAddr
	}
	if flagBucketDir != "" {
		bc.Dir = flagBucketDir
	}
	if cmd.Flags().Changed("watch") {
		bc.Watch = flagBucketWatch
	}
	if cmd.Flags().Changed("cors") {
		bc.CORSOrigins = flagBucketCORS
	}
	if bc.ChunkSize != cfg.Mask.ChunkSize {
		fmt.Fprintf(os.Stderr, "Warning: bucket.chunk_size %d differs from mask.chunk_size %d\n", bc.ChunkSize, cfg.Mask.ChunkSize)
	}
	logger := newLogger(cfg.Log, os.Stderr)

	gin.SetMode(gin.ReleaseMode)
	server, err := bucket.New(bucket.Config{
		Address:     bc.Address,
		Dir:         config.ExpandPath(bc.Dir),
		ChunkSize:   bc.ChunkSize,
		CORSOrigins: bc.CORSOrigins,
		Watch:       bc.Watch,
		Logger:      logger.WithPrefix("bucket"),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating bucket server: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Serving %s on %s\n", bc.Dir, bc.Address)
	fmt.Println("Press Ctrl+C to stop")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}
