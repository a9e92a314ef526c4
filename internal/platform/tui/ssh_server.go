package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/bubbletea"

	"github.com/vovakirdan/tilegrid/internal/config"
	"github.com/vovakirdan/tilegrid/internal/platform/viewer"
	"github.com/vovakirdan/tilegrid/internal/registry"
	"github.com/vovakirdan/tilegrid/internal/storage"
)

// SSHServerConfig holds configuration for the SSH server.
type SSHServerConfig struct {
	// Grid configures the viewer opened for every session.
	Grid config.GridConfig

	// Store keeps camera positions. Sessions share it; nil disables
	// persistence.
	Store *storage.Store

	// Logger receives session events. The default logs to stderr.
	Logger *log.Logger
}

// SSHServer serves one grid viewer per SSH session.
type SSHServer struct {
	config SSHServerConfig
	server *ssh.Server
	logger *log.Logger
}

// NewSSHServer creates a new SSH server with the given configuration.
func NewSSHServer(cfg SSHServerConfig) (*SSHServer, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{
			ReportTimestamp: true,
			Prefix:          "tilegrid-ssh",
		})
	}

	if _, err := registry.Open(cfg.Grid.Source); err != nil {
		return nil, fmt.Errorf("cannot open source: %w", err)
	}

	srv := &SSHServer{
		config: cfg,
		logger: logger,
	}

	// Resolve host key path
	hostKeyPath := cfg.Grid.SSH.HostKeyPath
	if hostKeyPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cannot get home directory: %w", err)
		}
		hostKeyPath = filepath.Join(home, ".tilegrid", "host_key")
	}
	if err := os.MkdirAll(filepath.Dir(hostKeyPath), 0o700); err != nil {
		return nil, fmt.Errorf("cannot create host key directory: %w", err)
	}

	opts := []ssh.Option{
		wish.WithAddress(cfg.Grid.SSH.Address),
		wish.WithHostKeyPath(hostKeyPath),
		wish.WithMiddleware(
			bubbletea.Middleware(srv.teaHandler),
			srv.loggingMiddleware,
		),
	}
	if cfg.Grid.SSH.IdleTimeout > 0 {
		opts = append(opts, wish.WithIdleTimeout(cfg.Grid.SSH.IdleTimeout))
	}

	server, err := wish.NewServer(opts...)
	if err != nil {
		return nil, fmt.Errorf("cannot create SSH server: %w", err)
	}

	srv.server = server
	return srv, nil
}

// teaHandler opens a viewer sized to the session's terminal. The viewer
// is closed when the session ends.
func (s *SSHServer) teaHandler(sess ssh.Session) (tea.Model, []tea.ProgramOption) {
	pty, _, ok := sess.Pty()
	if !ok {
		s.logger.Warn("no PTY requested", "user", sess.User())
		return nil, nil
	}

	cfg := s.config.Grid
	ep, err := registry.Open(cfg.Source)
	if err != nil {
		s.logger.Error("cannot open source", "user", sess.User(), "error", err)
		return nil, nil
	}

	scale := max(cfg.Render.Supersample, 1)
	cols, rows := pty.Window.Width, pty.Window.Height
	w, h := CanvasSize(cols, max(rows-hudRows, 1), scale)

	opts := viewer.Options{
		Config:   cfg,
		Endpoint: ep,
		Width:    w,
		Height:   h,
		Logger:   s.logger.WithPrefix(sess.User()),
	}
	if s.config.Store != nil {
		opts.Store = s.config.Store
	}
	v, err := viewer.New(opts)
	if err != nil {
		s.logger.Error("cannot create viewer", "user", sess.User(), "error", err)
		return nil, nil
	}
	context.AfterFunc(sess.Context(), func() {
		if err := v.Close(); err != nil {
			s.logger.Warn("viewer close failed", "user", sess.User(), "error", err)
		}
	})

	model := NewModel(v, cols, rows, Options{
		Title:       ep.Key,
		FPS:         cfg.Render.FPS,
		Supersample: scale,
		Renderer:    bubbletea.MakeRenderer(sess),
	})

	return model, []tea.ProgramOption{
		tea.WithAltScreen(),
		tea.WithMouseAllMotion(),
	}
}

// loggingMiddleware logs SSH session events.
func (s *SSHServer) loggingMiddleware(next ssh.Handler) ssh.Handler {
	return func(sess ssh.Session) {
		start := time.Now()
		s.logger.Info("session started",
			"user", sess.User(),
			"remote", sess.RemoteAddr().String(),
		)
		next(sess)
		s.logger.Info("session ended",
			"user", sess.User(),
			"remote", sess.RemoteAddr().String(),
			"duration", time.Since(start).Round(time.Second),
		)
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *SSHServer) Run(ctx context.Context) error {
	s.logger.Info("starting SSH server", "address", s.Addr())

	errc := make(chan error, 1)
	go func() {
		errc <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, ssh.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down...")
	return s.Shutdown()
}

// Shutdown gracefully stops the server.
func (s *SSHServer) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// Addr returns the server's listen address string.
func (s *SSHServer) Addr() string {
	return s.config.Grid.SSH.Address
}
