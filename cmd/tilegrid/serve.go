package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/tilegrid/internal/platform/tui"
)

var (
	flagSSHAddr     string
	flagHostKey     string
	flagIdleTimeout int
	serveFlags      gridFlags
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the grid over SSH",
	Long: `Start an SSH server where every connection gets its own grid viewer.
All sessions browse the same source and share its saved position.

Host key handling:
  - If --host-key is provided, uses that key file
  - Otherwise, auto-generates a key at ~/.tilegrid/host_key

Examples:
  tilegrid serve                                 # Listen on :23235 with the demo source
  tilegrid serve --ssh :2222                     # Listen on port 2222
  tilegrid serve --url http://localhost:8089 --live

Users can connect with:
  ssh localhost -p 23235`,
	Run: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagSSHAddr, "ssh", "", "SSH server address (host:port, overrides ssh.address)")
	serveCmd.Flags().StringVar(&flagHostKey, "host-key", "", "Path to host key file (auto-generated if not specified)")
	serveCmd.Flags().IntVar(&flagIdleTimeout, "idle-timeout", 0, "Idle timeout in minutes before disconnecting (overrides ssh.idle_timeout)")
	serveFlags.register(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) {
	cfg := loadConfig()
	serveFlags.apply(cmd, &cfg)
	if flagSSHAddr != "" {
		cfg.SSH.Address = flagSSHAddr
	}
	if flagHostKey != "" {
		cfg.SSH.HostKeyPath = flagHostKey
	}
	if flagIdleTimeout > 0 {
		cfg.SSH.IdleTimeout = time.Duration(flagIdleTimeout) * time.Minute
	}
	logger := newLogger(cfg.Log, os.Stderr)

	store := openStore(cfg.Storage, logger)
	if store != nil {
		defer store.Close()
	}

	server, err := tui.NewSSHServer(tui.SSHServerConfig{
		Grid:   cfg,
		Store:  store,
		Logger: logger.WithPrefix("ssh"),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating server: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Starting tilegrid SSH server on %s\n", server.Addr())
	fmt.Println("Press Ctrl+C to stop")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
	}
}
